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

// Package bamtest builds small synthetic BAM files for tests.
package bamtest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"testing"

	"github.com/googlegenomics/covstats/internal/bgzf"
)

// Reference is an entry in the reference dictionary of a built file.
type Reference struct {
	Name   string
	Length int32
}

// Read describes one alignment record.  Pos is 0-based and Cigar uses the SAM
// text form, for example "5M1D5M".
type Read struct {
	Name  string
	RefID int32
	Pos   int32
	MapQ  uint8
	Flags uint16
	Cigar string
}

// Build returns a BGZF compressed BAM file containing refs and reads.
func Build(refs []Reference, reads []Read) ([]byte, error) {
	var raw bytes.Buffer
	put := func(v interface{}) {
		binary.Write(&raw, binary.LittleEndian, v)
	}

	text := "@HD\tVN:1.6\tSO:coordinate\n"
	for _, ref := range refs {
		text += fmt.Sprintf("@SQ\tSN:%s\tLN:%d\n", ref.Name, ref.Length)
	}

	raw.WriteString("BAM\x01")
	put(int32(len(text)))
	raw.WriteString(text)
	put(int32(len(refs)))
	for _, ref := range refs {
		put(int32(len(ref.Name) + 1))
		raw.WriteString(ref.Name)
		raw.WriteByte(0)
		put(ref.Length)
	}

	for _, read := range reads {
		cigar, err := parseCigar(read.Cigar)
		if err != nil {
			return nil, fmt.Errorf("read %q: %v", read.Name, err)
		}
		var record bytes.Buffer
		rput := func(v interface{}) {
			binary.Write(&record, binary.LittleEndian, v)
		}
		rput(read.RefID)
		rput(read.Pos)
		rput(uint8(len(read.Name) + 1))
		rput(read.MapQ)
		rput(uint16(4680)) // bin, unused by readers here
		rput(uint16(len(cigar)))
		rput(read.Flags)
		rput(uint32(0)) // l_seq
		rput(int32(-1)) // next_refID
		rput(int32(-1)) // next_pos
		rput(int32(0))  // tlen
		record.WriteString(read.Name)
		record.WriteByte(0)
		for _, op := range cigar {
			rput(op)
		}
		put(int32(record.Len()))
		raw.Write(record.Bytes())
	}

	var out bytes.Buffer
	w := bgzf.NewWriter(&out)
	if _, err := w.Write(raw.Bytes()); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// MustBuild is like Build but fails tb on error.
func MustBuild(tb testing.TB, refs []Reference, reads []Read) []byte {
	tb.Helper()
	data, err := Build(refs, reads)
	if err != nil {
		tb.Fatalf("Building BAM: %v", err)
	}
	return data
}

const cigarCodes = "MIDNSHP=X"

func parseCigar(s string) ([]uint32, error) {
	var ops []uint32
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			continue
		}
		code := bytes.IndexByte([]byte(cigarCodes), s[i])
		if code < 0 {
			return nil, fmt.Errorf("invalid CIGAR operation %q", s[i])
		}
		n, err := strconv.ParseUint(s[start:i], 10, 28)
		if err != nil {
			return nil, fmt.Errorf("invalid CIGAR length %q: %v", s[start:i], err)
		}
		ops = append(ops, uint32(n)<<4|uint32(code))
		start = i + 1
	}
	if start != len(s) {
		return nil, fmt.Errorf("trailing CIGAR length %q", s[start:])
	}
	return ops, nil
}
