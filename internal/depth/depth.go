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

// Package depth produces per-position read depth listings for alignment
// files.
//
// Every Source yields the tab separated format written by
// "samtools depth -aa": one "<segment>\t<position>\t<depth>" line for every
// position of every reference segment, including positions with no coverage.
package depth

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Source produces depth listings.  The returned reader must be closed by the
// caller.
type Source interface {
	Depth(ctx context.Context, path string) (io.ReadCloser, error)
}

// Opener opens alignment files by path.  storage.Store implements it.
type Opener interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// Supported source kinds for New.
const (
	KindSamtools = "samtools"
	KindBAM      = "bam"
)

var errNoOutput = errors.New("no output")

// ExternalToolError reports a failure to produce a depth listing.
type ExternalToolError struct {
	Tool string
	Path string
	// Stderr holds anything the tool wrote to its standard error stream.
	Stderr string
	Err    error
}

func (e *ExternalToolError) Error() string {
	msg := fmt.Sprintf("%s depth %q: %v", e.Tool, e.Path, e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ExternalToolError) Unwrap() error {
	return e.Err
}

// New returns the Source named by kind.  samtools is the samtools binary used
// by KindSamtools and opener is used by KindBAM.
func New(kind, samtools string, opener Opener) (Source, error) {
	switch kind {
	case "", KindSamtools:
		return &Samtools{Path: samtools}, nil
	case KindBAM:
		if opener == nil {
			return nil, errors.New("bam depth source requires an opener")
		}
		return &BAM{Opener: opener}, nil
	}
	return nil, fmt.Errorf("unknown depth source %q", kind)
}
