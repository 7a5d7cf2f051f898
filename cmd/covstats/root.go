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
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/googlegenomics/covstats/internal/config"
	"github.com/googlegenomics/covstats/internal/depth"
	"github.com/googlegenomics/covstats/internal/log"
	"github.com/googlegenomics/covstats/internal/report"
	"github.com/googlegenomics/covstats/internal/storage"
)

// The environment variable holding the access token for "token" credentials.
const tokenEnv = "COVSTATS_GCS_TOKEN"

type options struct {
	configPath  string
	genome      string
	bams        []string
	samples     []string
	output      string
	depthSource string
	samtools    string
	timeout     time.Duration
	credentials string
	debug       bool
	profileDir  string
}

func newRootCmd() *cobra.Command {
	return newCommand(&options{})
}

func newCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "covstats",
		Short: "Summarize per-segment alignment coverage",
		Long: `covstats computes min, max, mean, median, population standard deviation,
breadth and length of read depth for every reference segment of every sample
and writes them as one CSV row per (segment, sample).

Samples are given either as repeated --bam/--sample pairs (matched by
position) or in a YAML manifest passed with --config.  Paths may be local
files or gs://bucket/object URLs.

Example:
  covstats --genome phiX174 --bam S2.bam --sample S2 --bam S1.bam --sample S1 -o coverage.csv`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := run(cmd, opts)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "covstats: %v\n", err)
			}
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "YAML run manifest")
	flags.StringVar(&opts.genome, "genome", "", "genome name written on every row")
	flags.StringArrayVar(&opts.bams, "bam", nil, "alignment file (repeatable, paired with --sample)")
	flags.StringArrayVar(&opts.samples, "sample", nil, "sample name (repeatable, paired with --bam)")
	flags.StringVarP(&opts.output, "output", "o", "", "output CSV path")
	flags.StringVar(&opts.depthSource, "depth-source", depth.KindSamtools, "depth source: samtools or bam")
	flags.StringVar(&opts.samtools, "samtools", "samtools", "samtools binary")
	flags.DurationVar(&opts.timeout, "timeout", 0, "per-sample depth timeout (0 for none)")
	flags.StringVar(&opts.credentials, "credentials", storage.CredentialsDefault,
		"cloud storage credentials: default, public or token ($"+tokenEnv+")")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	flags.StringVar(&opts.profileDir, "profile", "", "write a CPU profile to this directory")
	return cmd
}

// resolve merges the manifest, if any, with explicitly set flags.
func (o *options) resolve(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("genome") {
		cfg.Genome = o.genome
	}
	if flags.Changed("output") {
		cfg.Output = o.output
	}
	if flags.Changed("depth-source") {
		cfg.Depth.Source = o.depthSource
	}
	if flags.Changed("samtools") {
		cfg.Depth.Samtools = o.samtools
	}
	if flags.Changed("timeout") {
		cfg.Depth.Timeout = config.Duration(o.timeout)
	}
	if flags.Changed("credentials") {
		cfg.Storage.Credentials = o.credentials
	}
	if len(o.bams) > 0 || len(o.samples) > 0 {
		samples, err := report.Pair(o.bams, o.samples)
		if err != nil {
			return nil, err
		}
		cfg.Samples = nil
		for _, s := range samples {
			cfg.Samples = append(cfg.Samples, config.Sample{Name: s.Name, BAM: s.Path})
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %v", err)
	}
	return cfg, nil
}

func run(cmd *cobra.Command, opts *options) error {
	if err := log.Init(opts.debug); err != nil {
		return err
	}
	defer log.Sync()

	if opts.profileDir != "" {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(opts.profileDir), profile.Quiet).Stop()
	}

	cfg, err := opts.resolve(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	source, err := depth.New(cfg.Depth.Source, cfg.Depth.Samtools, store)
	if err != nil {
		return err
	}

	var samples []report.Sample
	for _, s := range cfg.Samples {
		samples = append(samples, report.Sample{Name: s.Name, Path: s.BAM})
	}

	generator := &report.Generator{
		Source:  source,
		Store:   store,
		Timeout: time.Duration(cfg.Depth.Timeout),
		Logger:  log.GetSugaredLogger(),
	}
	return generator.WriteReport(ctx, cfg.Genome, samples, cfg.Output)
}

// newStore returns a Store with a cloud storage client when any path the
// process itself opens is a gs:// URL.  samtools resolves gs:// inputs on its
// own.
func newStore(ctx context.Context, cfg *config.Config) (*storage.Store, error) {
	paths := []string{cfg.Output}
	if cfg.Depth.Source == depth.KindBAM {
		for _, s := range cfg.Samples {
			paths = append(paths, s.BAM)
		}
	}

	store := &storage.Store{}
	for _, path := range paths {
		if _, _, ok, _ := storage.ParsePath(path); ok {
			client, err := storage.NewClient(ctx, cfg.Storage.Credentials, os.Getenv(tokenEnv))
			if err != nil {
				return nil, err
			}
			store.Client = client
			break
		}
	}
	return store, nil
}
