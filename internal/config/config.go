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

// Package config loads covstats run manifests.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"time"

	"gopkg.in/yaml.v3"
)

// Config describes one coverage report run.
type Config struct {
	// Genome labels every report row.
	Genome string `yaml:"genome"`
	// Output is a local path or gs://bucket/object.
	Output  string        `yaml:"output"`
	Depth   DepthConfig   `yaml:"depth"`
	Storage StorageConfig `yaml:"storage"`
	Samples []Sample      `yaml:"samples"`
}

// DepthConfig selects and configures the depth source.
type DepthConfig struct {
	Source   string `yaml:"source"`   // samtools, bam
	Samtools string `yaml:"samtools"` // samtools binary
	// Timeout bounds the depth computation of each sample.  Zero means no
	// limit.
	Timeout Duration `yaml:"timeout"`
}

// StorageConfig configures access to Google Cloud Storage paths.
type StorageConfig struct {
	Credentials string `yaml:"credentials"` // default, public, token
}

// Sample pairs a sample name with its alignment file.
type Sample struct {
	Name string `yaml:"name"`
	BAM  string `yaml:"bam"`
}

// Duration is a time.Duration that unmarshals from strings such as "30m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if s == "" || s == "0" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %v", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Default returns a Config with the default depth source and credentials.
func Default() *Config {
	return &Config{
		Depth: DepthConfig{
			Source:   "samtools",
			Samtools: "samtools",
		},
		Storage: StorageConfig{
			Credentials: "default",
		},
	}
}

// Load reads and parses the manifest at path.
func Load(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %v", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	return cfg, nil
}

// Parse decodes a manifest on top of Default.  Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parsing config: %v", err)
	}
	return cfg, nil
}

// Validate checks that cfg describes a complete run.
func (cfg *Config) Validate() error {
	if cfg.Genome == "" {
		return errors.New("genome is required")
	}
	if cfg.Output == "" {
		return errors.New("output is required")
	}
	if len(cfg.Samples) == 0 {
		return errors.New("at least one sample is required")
	}
	for i, sample := range cfg.Samples {
		if sample.Name == "" || sample.BAM == "" {
			return fmt.Errorf("sample %d: name and bam are required", i+1)
		}
	}
	if cfg.Depth.Timeout < 0 {
		return fmt.Errorf("negative depth timeout %v", time.Duration(cfg.Depth.Timeout))
	}
	return nil
}
