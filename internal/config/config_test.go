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

package config

import (
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const manifest = `
genome: phiX174
output: gs://results/phiX/coverage.csv
depth:
  source: bam
  timeout: 30m
storage:
  credentials: public
samples:
  - name: S2
    bam: /data/S2.bam
  - name: S1
    bam: gs://reads/S1.bam
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "covstats.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte(manifest), 0644))

	got, err := Load(path)
	require.NoError(t, err)

	want := &Config{
		Genome: "phiX174",
		Output: "gs://results/phiX/coverage.csv",
		Depth: DepthConfig{
			Source:   "bam",
			Samtools: "samtools",
			Timeout:  Duration(30 * time.Minute),
		},
		Storage: StorageConfig{Credentials: "public"},
		Samples: []Sample{
			{Name: "S2", BAM: "/data/S2.bam"},
			{Name: "S1", BAM: "gs://reads/S1.bam"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
	assert.NoError(t, got.Validate())
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParse_Empty(t *testing.T) {
	got, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), got)
}

func TestParse_Errors(t *testing.T) {
	testCases := []struct {
		name string
		data string
	}{
		{"unknown field", "genome: x\nsampels: []\n"},
		{"bad timeout", "depth:\n  timeout: soon\n"},
		{"wrong type", "samples: S1\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.data))
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Genome = "g"
		cfg.Output = "out.csv"
		cfg.Samples = []Sample{{Name: "S1", BAM: "S1.bam"}}
		return cfg
	}
	testCases := []struct {
		name   string
		modify func(*Config)
	}{
		{"no genome", func(c *Config) { c.Genome = "" }},
		{"no output", func(c *Config) { c.Output = "" }},
		{"no samples", func(c *Config) { c.Samples = nil }},
		{"sample without bam", func(c *Config) { c.Samples[0].BAM = "" }},
		{"sample without name", func(c *Config) { c.Samples[0].Name = "" }},
		{"negative timeout", func(c *Config) { c.Depth.Timeout = Duration(-time.Second) }},
	}
	require.NoError(t, valid().Validate())
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
