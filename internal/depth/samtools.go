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
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"os/exec"
	"strings"
)

const defaultSamtools = "samtools"

// Samtools runs "samtools depth -aa" and returns its complete output.
type Samtools struct {
	// Path to the samtools binary.  If empty, samtools is looked up in PATH.
	Path string
}

// Depth implements Source.  The process is killed if ctx is cancelled.
func (s *Samtools) Depth(ctx context.Context, path string) (io.ReadCloser, error) {
	tool := s.Path
	if tool == "" {
		tool = defaultSamtools
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, tool, "depth", "-aa", path)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err == nil && len(out) == 0 {
		err = errNoOutput
	}
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, &ExternalToolError{
			Tool:   tool,
			Path:   path,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}
	return ioutil.NopCloser(bytes.NewReader(out)), nil
}
