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

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/googlegenomics/covstats/internal/bam/bamtest"
	"github.com/googlegenomics/covstats/internal/config"
	"github.com/googlegenomics/covstats/internal/report"
)

func writeBAM(t *testing.T, dir, name string, depthReads int) string {
	var reads []bamtest.Read
	for i := 0; i < depthReads; i++ {
		reads = append(reads, bamtest.Read{Name: fmt.Sprintf("r%d", i), RefID: 0, Pos: 0, Cigar: "4M"})
	}
	data := bamtest.MustBuild(t, []bamtest.Reference{{Name: "seg1", Length: 4}}, reads)
	path := filepath.Join(dir, name+".bam")
	require.NoError(t, ioutil.WriteFile(path, data, 0644))
	return path
}

func execute(args ...string) (string, error) {
	cmd := newRootCmd()
	var stderr bytes.Buffer
	cmd.SetErr(&stderr)
	cmd.SetOut(ioutil.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stderr.String(), err
}

func TestRoot_NativeDepth(t *testing.T) {
	dir := t.TempDir()
	s1 := writeBAM(t, dir, "S1", 1)
	s2 := writeBAM(t, dir, "S2", 3)
	output := filepath.Join(dir, "coverage.csv")

	_, err := execute(
		"--genome", "g",
		"--depth-source", "bam",
		"--bam", s2, "--sample", "S2",
		"--bam", s1, "--sample", "S1",
		"-o", output,
	)
	require.NoError(t, err)

	got, err := ioutil.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t,
		"Genome,Segment,Sample,Min,Max,Mean,Median,Std Dev,Segment Coverage,Segment Length\n"+
			"g,seg1,S1,1,1,1,1,0,4,4\n"+
			"g,seg1,S2,3,3,3,3,0,4,4\n",
		string(got))
}

func TestRoot_Config(t *testing.T) {
	dir := t.TempDir()
	s1 := writeBAM(t, dir, "S1", 2)
	output := filepath.Join(dir, "coverage.csv")
	manifest := fmt.Sprintf(`
genome: from-config
output: %s
depth:
  source: bam
samples:
  - name: S1
    bam: %s
`, output, s1)
	configPath := filepath.Join(dir, "covstats.yaml")
	require.NoError(t, ioutil.WriteFile(configPath, []byte(manifest), 0644))

	_, err := execute("--config", configPath, "--genome", "from-flag")
	require.NoError(t, err)

	got, err := ioutil.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(got), "from-flag,seg1,S1,2,2,2,2,0,4,4\n")
}

func TestRoot_SampleCountMismatch(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "coverage.csv")

	stderr, err := execute("--genome", "g", "--bam", "a.bam", "--bam", "b.bam", "--sample", "A", "-o", output)
	assert.True(t, errors.Is(err, report.ErrSampleCountMismatch), "got %v", err)
	assert.Contains(t, stderr, "covstats:")

	_, statErr := os.Stat(output)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRoot_InvalidInvocations(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{"missing genome", []string{"--bam", "a.bam", "--sample", "A", "-o", "out.csv"}},
		{"missing output", []string{"--genome", "g", "--bam", "a.bam", "--sample", "A"}},
		{"no samples", []string{"--genome", "g", "-o", "out.csv"}},
		{"unknown depth source", []string{"--genome", "g", "--bam", "a.bam", "--sample", "A",
			"-o", filepath.Join(t.TempDir(), "out.csv"), "--depth-source", "mosdepth"}},
		{"positional arguments", []string{"extra"}},
		{"missing config", []string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := execute(tc.args...)
			assert.Error(t, err)
		})
	}
}

func TestOptionsResolve_FlagOverrides(t *testing.T) {
	opts := &options{}
	cmd := newCommand(opts)
	require.NoError(t, cmd.ParseFlags([]string{
		"--genome", "g",
		"--bam", "gs://reads/S1.bam", "--sample", "S1",
		"-o", "gs://results/out.csv",
		"--timeout", "90s",
		"--credentials", "public",
		"--samtools", "/opt/bin/samtools",
	}))

	cfg, err := opts.resolve(cmd)
	require.NoError(t, err)
	assert.Equal(t, "g", cfg.Genome)
	assert.Equal(t, "gs://results/out.csv", cfg.Output)
	assert.Equal(t, config.Duration(90*time.Second), cfg.Depth.Timeout)
	assert.Equal(t, "public", cfg.Storage.Credentials)
	assert.Equal(t, "/opt/bin/samtools", cfg.Depth.Samtools)
	assert.Equal(t, "samtools", cfg.Depth.Source)
	assert.Equal(t, []config.Sample{{Name: "S1", BAM: "gs://reads/S1.bam"}}, cfg.Samples)
}

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	local := config.Default()
	local.Output = "out.csv"
	local.Samples = []config.Sample{{Name: "S1", BAM: "gs://reads/S1.bam"}}
	store, err := newStore(ctx, local)
	require.NoError(t, err)
	assert.Nil(t, store.Client, "samtools reads gs:// inputs itself")

	cloud := config.Default()
	cloud.Output = "gs://results/out.csv"
	cloud.Storage.Credentials = "public"
	store, err = newStore(ctx, cloud)
	require.NoError(t, err)
	assert.NotNil(t, store.Client)

	badToken := config.Default()
	badToken.Output = "gs://results/out.csv"
	badToken.Storage.Credentials = "token"
	t.Setenv(tokenEnv, "")
	_, err = newStore(ctx, badToken)
	assert.Error(t, err)
}
