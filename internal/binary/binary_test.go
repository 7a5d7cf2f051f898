// Copyright 2019 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package binary

import (
	"bytes"
	"testing"
)

func TestExpectBytes(t *testing.T) {
	testCases := []struct {
		want  []byte
		input []byte
		match bool
	}{
		{[]byte("BAM\x01"), []byte("BAM\x01"), true},
		{[]byte("BAM\x01"), []byte("BAM\x01EXTRA"), true},
		{[]byte("BAM\x01"), []byte("BAM\x02"), false},
		{[]byte("BAM\x01"), []byte("BAM"), false},
		{[]byte("BAM\x01"), []byte(""), false},
	}

	for _, tc := range testCases {
		t.Run(string(tc.input), func(t *testing.T) {
			err := ExpectBytes(bytes.NewReader(tc.input), tc.want)
			if err != nil && tc.match {
				t.Fatalf("ExpectBytes returned unexpected error: %v", err)
			} else if err == nil && !tc.match {
				t.Fatalf("ExpectBytes accepted mismatched input %q", tc.input)
			}
		})
	}
}

func TestRead(t *testing.T) {
	var v struct {
		A int32
		B uint16
	}
	if err := Read(bytes.NewReader([]byte{1, 0, 0, 0, 2, 1}), &v); err != nil {
		t.Fatalf("Read() returned error: %v", err)
	}
	if v.A != 1 || v.B != 0x0102 {
		t.Errorf("Wrong value: got %+v", v)
	}
}

func TestCursor(t *testing.T) {
	c := NewCursor([]byte{
		0xff, 0xff, 0xff, 0xff, // -1
		0x07,       // 7
		0x34, 0x12, // 0x1234
		'a', 'b',
	})

	if got, want := c.Int32(), int32(-1); got != want {
		t.Errorf("Wrong Int32: got %d, want %d", got, want)
	}
	if got, want := c.Uint8(), uint8(7); got != want {
		t.Errorf("Wrong Uint8: got %d, want %d", got, want)
	}
	if got, want := c.Uint16(), uint16(0x1234); got != want {
		t.Errorf("Wrong Uint16: got 0x%04x, want 0x%04x", got, want)
	}
	if got, want := string(c.Bytes(2)), "ab"; got != want {
		t.Errorf("Wrong Bytes: got %q, want %q", got, want)
	}
	if got, want := c.Offset(), 9; got != want {
		t.Errorf("Wrong offset: got %d, want %d", got, want)
	}
	if err := c.Err(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if got := c.Uint32(); got != 0 {
		t.Errorf("Read past end returned %d, want 0", got)
	}
	if c.Err() == nil {
		t.Fatal("Expected error after reading past end")
	}
	if got := c.Uint8(); got != 0 {
		t.Errorf("Read after error returned %d, want 0", got)
	}
}
