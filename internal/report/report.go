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

// Package report assembles per-segment coverage statistics for a set of
// samples into a CSV report.
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/googlegenomics/covstats/internal/coverage"
	"github.com/googlegenomics/covstats/internal/depth"
	"github.com/googlegenomics/covstats/internal/storage"
)

// Header is the first row of every report.
var Header = []string{
	"Genome",
	"Segment",
	"Sample",
	"Min",
	"Max",
	"Mean",
	"Median",
	"Std Dev",
	"Segment Coverage",
	"Segment Length",
}

// ErrSampleCountMismatch is returned by Pair when the number of alignment
// files and sample names differ.
var ErrSampleCountMismatch = errors.New("number of alignment files and sample names differ")

// Sample is a named alignment file.
type Sample struct {
	Name string
	Path string
}

// Pair matches alignment paths with sample names by position.
func Pair(paths, names []string) ([]Sample, error) {
	if len(paths) != len(names) {
		return nil, fmt.Errorf("%w: %d files, %d names", ErrSampleCountMismatch, len(paths), len(names))
	}
	samples := make([]Sample, len(paths))
	for i := range paths {
		samples[i] = Sample{Name: names[i], Path: paths[i]}
	}
	return samples, nil
}

// Sort returns a copy of samples ordered by name, then path.
func Sort(samples []Sample) []Sample {
	sorted := append([]Sample(nil), samples...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}
		return sorted[i].Path < sorted[j].Path
	})
	return sorted
}

// Report is the complete set of rows for one genome.
type Report struct {
	// RunID identifies the run in logs.
	RunID  string
	Genome string
	Rows   []coverage.SegmentStats
}

// Write writes the header and all rows to w as CSV.
func (r *Report) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing header: %v", err)
	}
	for _, row := range r.Rows {
		if err := cw.Write(FormatRow(row)); err != nil {
			return fmt.Errorf("writing row: %v", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatRow renders s in Header order.  Floating point values use the
// shortest decimal representation that round-trips, without an exponent.
func FormatRow(s coverage.SegmentStats) []string {
	return []string{
		s.Genome,
		s.Segment,
		s.Sample,
		formatFloat(s.Min),
		formatFloat(s.Max),
		formatFloat(s.Mean),
		formatFloat(s.Median),
		formatFloat(s.StdDev),
		strconv.Itoa(s.Breadth),
		strconv.Itoa(s.Length),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Creator creates report outputs.  storage.Store implements it.
type Creator interface {
	Create(ctx context.Context, path string) (io.WriteCloser, error)
}

// Generator builds and writes coverage reports.  Source is required; the
// other fields are optional.
type Generator struct {
	Source depth.Source
	// Store creates the output.  If nil, outputs are local files.
	Store Creator
	// Timeout bounds the depth computation of each sample.  Zero means no
	// limit.
	Timeout time.Duration
	Logger  *zap.SugaredLogger
}

func (g *Generator) logger() *zap.SugaredLogger {
	if g.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return g.Logger
}

// Build computes the statistics of every sample, one sample at a time in Sort
// order, and returns them as a Report.  The first failing sample aborts the
// build.
func (g *Generator) Build(ctx context.Context, genome string, samples []Sample) (*Report, error) {
	report := &Report{RunID: uuid.New().String(), Genome: genome}
	logger := g.logger().With("run", report.RunID, "genome", genome)

	logger.Infow("Building coverage report", "samples", len(samples))
	for _, sample := range Sort(samples) {
		rows, err := g.sample(ctx, genome, sample)
		if err != nil {
			logger.Errorw("Sample failed", "sample", sample.Name, "path", sample.Path, "error", err)
			return nil, fmt.Errorf("processing sample %q: %w", sample.Name, err)
		}
		logger.Debugw("Sample complete", "sample", sample.Name, "path", sample.Path, "segments", len(rows))
		report.Rows = append(report.Rows, rows...)
	}
	logger.Infow("Built coverage report", "rows", len(report.Rows))
	return report, nil
}

func (g *Generator) sample(ctx context.Context, genome string, sample Sample) ([]coverage.SegmentStats, error) {
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	rc, err := g.Source.Depth(ctx, sample.Path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return coverage.Compute(genome, sample.Name, rc)
}

// WriteReport builds the report for samples and writes it to output,
// replacing any previous content.  Nothing is written if the build fails.
func (g *Generator) WriteReport(ctx context.Context, genome string, samples []Sample, output string) error {
	report, err := g.Build(ctx, genome, samples)
	if err != nil {
		return err
	}

	var buffer bytes.Buffer
	if err := report.Write(&buffer); err != nil {
		return fmt.Errorf("rendering report: %v", err)
	}
	size := buffer.Len()

	store := g.Store
	if store == nil {
		store = &storage.Store{}
	}
	w, err := store.Create(ctx, output)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	if _, err := buffer.WriteTo(w); err != nil {
		w.Close()
		return fmt.Errorf("writing report: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing report: %w", err)
	}

	g.logger().Infow("Wrote coverage report", "run", report.RunID, "output", output, "bytes", size)
	return nil
}

// Generate pairs bams with sampleNames by position and writes the coverage
// report for genome to output.
func (g *Generator) Generate(ctx context.Context, genome string, bams, sampleNames []string, output string) error {
	samples, err := Pair(bams, sampleNames)
	if err != nil {
		return err
	}
	return g.WriteReport(ctx, genome, samples, output)
}
