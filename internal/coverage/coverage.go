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

// Package coverage turns per-position depth listings into per-segment
// coverage statistics.
//
// The input is the tab separated output of "samtools depth -aa": one
// "<segment>\t<position>\t<depth>" line for every position of every segment,
// zero depths included.  Compute groups the depths by segment, preserving the
// order in which segments are first seen, and reduces each group with
// Summarize.
package coverage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrEmptySegment is returned by Summarize when given no depth values.
var ErrEmptySegment = errors.New("segment has no depth values")

// Record is a single parsed depth line.
type Record struct {
	Segment  string
	Position uint64
	Depth    uint32
}

// Summary holds the statistics computed over one segment's depth values.
type Summary struct {
	Min, Max, Mean, Median, StdDev float64
	// Breadth is the number of positions with a depth greater than zero.
	Breadth int
	// Length is the number of positions in the segment.
	Length int
}

// SegmentStats is one report row: the Summary of a segment in a sample.
type SegmentStats struct {
	Genome  string
	Segment string
	Sample  string
	Summary
}

// ParseError reports a depth line that could not be parsed.
type ParseError struct {
	Sample string
	// Line is the 1-based line number within the sample's depth listing.
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("sample %q: line %d %q: %v", e.Sample, e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// EmptySegmentError reports a segment that was registered without any depth
// values.  It indicates a bug rather than bad input.
type EmptySegmentError struct {
	Sample  string
	Segment string
}

func (e *EmptySegmentError) Error() string {
	return fmt.Sprintf("sample %q: segment %q: %v", e.Sample, e.Segment, ErrEmptySegment)
}

func (e *EmptySegmentError) Unwrap() error {
	return ErrEmptySegment
}

// ParseRecord parses one "<segment>\t<position>\t<depth>" line.
func ParseRecord(line string) (Record, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != 3 {
		return Record{}, fmt.Errorf("expected 3 tab separated fields, found %d", len(fields))
	}
	if fields[0] == "" {
		return Record{}, errors.New("empty segment name")
	}
	position, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("parsing position: %v", err)
	}
	if position < 1 {
		return Record{}, fmt.Errorf("invalid position %d", position)
	}
	depth, err := strconv.ParseUint(fields[2], 10, 32)
	if err != nil {
		return Record{}, fmt.Errorf("parsing depth: %v", err)
	}
	return Record{fields[0], position, uint32(depth)}, nil
}

// Compute reads depth lines from r and returns one SegmentStats per segment,
// in the order the segments first appear.  Any malformed line aborts the
// computation with a *ParseError.
func Compute(genome, sample string, r io.Reader) ([]SegmentStats, error) {
	var (
		order  []string
		series = make(map[string][]uint32)
	)

	scanner := bufio.NewScanner(r)
	line := 1
	for ; scanner.Scan(); line++ {
		record, err := ParseRecord(scanner.Text())
		if err != nil {
			return nil, &ParseError{sample, line, scanner.Text(), err}
		}
		values, ok := series[record.Segment]
		if !ok {
			order = append(order, record.Segment)
		}
		series[record.Segment] = append(values, record.Depth)
	}
	if err := scanner.Err(); err != nil {
		if err == bufio.ErrTooLong {
			return nil, &ParseError{sample, line, "", err}
		}
		return nil, fmt.Errorf("sample %q: reading depth: %v", sample, err)
	}

	stats := make([]SegmentStats, 0, len(order))
	for _, segment := range order {
		summary, err := Summarize(series[segment])
		if err != nil {
			return nil, &EmptySegmentError{sample, segment}
		}
		stats = append(stats, SegmentStats{genome, segment, sample, summary})
		delete(series, segment)
	}
	return stats, nil
}

// Summarize computes the statistics of depths.  The standard deviation is the
// population standard deviation (divisor n) and the median of an even number
// of values is the mean of the two middle values.
func Summarize(depths []uint32) (Summary, error) {
	if len(depths) == 0 {
		return Summary{}, ErrEmptySegment
	}

	values := make([]float64, len(depths))
	breadth := 0
	for i, depth := range depths {
		values[i] = float64(depth)
		if depth > 0 {
			breadth++
		}
	}

	summary := Summary{
		Min:     floats.Min(values),
		Max:     floats.Max(values),
		Breadth: breadth,
		Length:  len(values),
	}
	if len(values) == 1 {
		summary.Mean = values[0]
	} else {
		summary.Mean, summary.StdDev = stat.PopMeanStdDev(values, nil)
	}

	sort.Float64s(values)
	middle := len(values) / 2
	if len(values)%2 == 1 {
		summary.Median = values[middle]
	} else {
		summary.Median = (values[middle-1] + values[middle]) / 2
	}
	return summary, nil
}
