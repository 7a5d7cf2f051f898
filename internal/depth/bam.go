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
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/googlegenomics/covstats/internal/bam"
)

const (
	nativeTool = "bam"

	// Reads carrying any of these flags do not contribute depth, matching the
	// samtools depth default filter.
	skipFlags = bam.FlagUnmapped | bam.FlagSecondary | bam.FlagQCFail | bam.FlagDuplicate

	// How many records to process between cancellation checks.
	cancelCheckInterval = 4096
)

// BAM computes depth directly from a BAM file, producing the same listing as
// "samtools depth -aa" with default options.  Only M, = and X CIGAR
// operations add depth; deletions and reference skips do not.
//
// Depth is accumulated per reference in memory proportional to the total
// length of the references that have at least one aligned read.
type BAM struct {
	Opener Opener
}

// Depth implements Source.  The listing is generated while the returned reader
// is consumed; closing it early stops generation.
func (b *BAM) Depth(ctx context.Context, path string) (io.ReadCloser, error) {
	fail := func(err error) error {
		return &ExternalToolError{Tool: nativeTool, Path: path, Err: err}
	}

	f, err := b.Opener.Open(ctx, path)
	if err != nil {
		return nil, fail(err)
	}
	defer f.Close()

	r, err := bam.NewReader(f)
	if err != nil {
		return nil, fail(fmt.Errorf("reading header: %v", err))
	}
	if len(r.Header.References) == 0 {
		return nil, fail(errNoOutput)
	}
	diffs, err := accumulate(ctx, r)
	if err != nil {
		return nil, fail(err)
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(writeListing(pw, r.Header.References, diffs))
	}()
	return pr, nil
}

// accumulate returns, for each reference, a difference array whose running
// sum is the depth at each position.  References without aligned reads have
// a nil entry.
func accumulate(ctx context.Context, r *bam.Reader) ([][]int32, error) {
	refs := r.Header.References
	diffs := make([][]int32, len(refs))
	for n := 0; ; n++ {
		if n%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		record, err := r.Next()
		if err == io.EOF {
			return diffs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading record %d: %v", n, err)
		}
		if record.RefID < 0 || record.Pos < 0 || record.Flags&skipFlags != 0 {
			continue
		}

		length := int(refs[record.RefID].Length)
		diff := diffs[record.RefID]
		pos := int(record.Pos)
		for _, op := range record.Cigar {
			if op.AlignsBase() {
				start, end := pos, pos+op.Len()
				if end > length {
					end = length
				}
				if start < end {
					if diff == nil {
						diff = make([]int32, length+1)
						diffs[record.RefID] = diff
					}
					diff[start]++
					diff[end]--
				}
			}
			if op.ConsumesReference() {
				pos += op.Len()
			}
		}
	}
}

func writeListing(w io.Writer, refs []bam.Reference, diffs [][]int32) error {
	bw := bufio.NewWriter(w)
	var line []byte
	for i, ref := range refs {
		var depth int64
		for pos := 0; pos < int(ref.Length); pos++ {
			if diffs[i] != nil {
				depth += int64(diffs[i][pos])
			}
			line = append(line[:0], ref.Name...)
			line = append(line, '\t')
			line = strconv.AppendInt(line, int64(pos+1), 10)
			line = append(line, '\t')
			line = strconv.AppendInt(line, depth, 10)
			line = append(line, '\n')
			if _, err := bw.Write(line); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}
