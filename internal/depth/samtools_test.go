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

package depth

import (
	"context"
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSamtools stands in for samtools: "depth -aa <file>" prints the file,
// with a few magic file names triggering failure modes.
const fakeSamtools = `#!/bin/sh
[ "$1" = "depth" ] && [ "$2" = "-aa" ] || { echo "usage: depth -aa <in.bam>" >&2; exit 2; }
case "$3" in
  *fail.bam) echo "[main_depth] fail to open \"$3\"" >&2; exit 1 ;;
  *empty.bam) exit 0 ;;
  *hang.bam) exec sleep 30 ;;
esac
exec cat "$3"
`

func writeFakeSamtools(t *testing.T) string {
	if runtime.GOOS == "windows" {
		t.Skip("fake samtools requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "samtools")
	require.NoError(t, ioutil.WriteFile(path, []byte(fakeSamtools), 0755))
	return path
}

func TestSamtools_Depth(t *testing.T) {
	tool := writeFakeSamtools(t)
	input := filepath.Join(t.TempDir(), "S1.bam")
	want := "chr1\t1\t0\nchr1\t2\t3\n"
	require.NoError(t, ioutil.WriteFile(input, []byte(want), 0644))

	rc, err := (&Samtools{Path: tool}).Depth(context.Background(), input)
	require.NoError(t, err)
	defer rc.Close()
	got, err := ioutil.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, want, string(got))
}

func TestSamtools_DepthErrors(t *testing.T) {
	tool := writeFakeSamtools(t)
	testCases := []struct {
		name   string
		tool   string
		input  string
		stderr string
	}{
		{"non-zero exit", tool, "fail.bam", "fail to open"},
		{"no output", tool, "empty.bam", ""},
		{"missing binary", filepath.Join(t.TempDir(), "nonexistent"), "x.bam", ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := (&Samtools{Path: tc.tool}).Depth(context.Background(), tc.input)
			var toolErr *ExternalToolError
			if !errors.As(err, &toolErr) {
				t.Fatalf("Depth() returned %v, want *ExternalToolError", err)
			}
			assert.Equal(t, tc.input, toolErr.Path)
			assert.Contains(t, toolErr.Stderr, tc.stderr)
		})
	}
}

func TestSamtools_DepthTimeout(t *testing.T) {
	tool := writeFakeSamtools(t)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := (&Samtools{Path: tool}).Depth(ctx, "hang.bam")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestSamtools_DefaultPath(t *testing.T) {
	dir := filepath.Dir(writeFakeSamtools(t))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))

	input := filepath.Join(t.TempDir(), "S1.bam")
	require.NoError(t, ioutil.WriteFile(input, []byte("seg\t1\t4\n"), 0644))

	rc, err := (&Samtools{}).Depth(context.Background(), input)
	require.NoError(t, err)
	rc.Close()
}
