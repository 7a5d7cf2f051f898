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

// Package bam provides support for parsing BAM files.
package bam

import (
	"fmt"
	"io"

	"github.com/googlegenomics/covstats/internal/bgzf"
	"github.com/googlegenomics/covstats/internal/binary"
)

const (
	bamMagic = "BAM\x01"

	// This is just to prevent arbitrarily long allocations due to malformed
	// data.  No reference name should be longer than this in practice.
	maximumNameLength = 1024

	// The fixed portion of an alignment record, up to and excluding the read
	// name, as laid out in the SAM specification section 4.2.
	fixedRecordSize = 32

	// Upper bound on a single alignment record, again to guard allocations.
	maximumRecordSize = 1 << 26
)

// Alignment flags used when deciding whether a record contributes depth.
const (
	FlagUnmapped  = 0x4
	FlagSecondary = 0x100
	FlagQCFail    = 0x200
	FlagDuplicate = 0x400
)

// Reference is an entry in the BAM reference dictionary.
type Reference struct {
	Name   string
	Length int32
}

// Header holds the SAM text header and the reference dictionary.
type Header struct {
	Text       string
	References []Reference
}

// CigarOp is a single packed CIGAR operation: the length in the upper 28 bits
// and the operation code in the lower 4.
type CigarOp uint32

const cigarCodes = "MIDNSHP=X"

// Type returns the operation character, for example 'M' or 'D'.
func (op CigarOp) Type() byte {
	if code := int(op & 0xf); code < len(cigarCodes) {
		return cigarCodes[code]
	}
	return '?'
}

// Len returns the operation length.
func (op CigarOp) Len() int {
	return int(op >> 4)
}

// ConsumesReference reports whether the operation advances along the
// reference.
func (op CigarOp) ConsumesReference() bool {
	switch op.Type() {
	case 'M', 'D', 'N', '=', 'X':
		return true
	}
	return false
}

// AlignsBase reports whether the operation places a read base on the
// reference.
func (op CigarOp) AlignsBase() bool {
	switch op.Type() {
	case 'M', '=', 'X':
		return true
	}
	return false
}

// String returns the SAM representation of op, for example "10M".
func (op CigarOp) String() string {
	return fmt.Sprintf("%d%c", op.Len(), op.Type())
}

// Record is the subset of a BAM alignment record needed to compute depth.
type Record struct {
	Name  string
	RefID int32
	// Pos is the 0-based leftmost mapping position.
	Pos   int32
	MapQ  uint8
	Flags uint16
	Cigar []CigarOp
}

// Reader reads alignment records from a BAM stream.  Use NewReader to create
// one.
type Reader struct {
	r      io.Reader
	Header *Header
}

// NewReader decompresses bam and parses its header, leaving the returned
// Reader positioned at the first alignment record.
func NewReader(bam io.Reader) (*Reader, error) {
	r := bgzf.NewReader(bam)
	header, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	return &Reader{r: r, Header: header}, nil
}

func readHeader(r io.Reader) (*Header, error) {
	if err := binary.ExpectBytes(r, []byte(bamMagic)); err != nil {
		return nil, fmt.Errorf("reading magic: %v", err)
	}
	var length int32
	if err := binary.Read(r, &length); err != nil {
		return nil, fmt.Errorf("reading SAM header length: %v", err)
	}
	if length < 0 {
		return nil, fmt.Errorf("invalid SAM header length (%d bytes)", length)
	}
	text := make([]byte, length)
	if _, err := io.ReadFull(r, text); err != nil {
		return nil, fmt.Errorf("reading SAM header: %v", err)
	}
	var count int32
	if err := binary.Read(r, &count); err != nil {
		return nil, fmt.Errorf("reading references count: %v", err)
	}
	if count < 0 {
		return nil, fmt.Errorf("invalid references count (%d)", count)
	}

	header := &Header{Text: string(text)}
	for i := int32(0); i < count; i++ {
		if err := binary.Read(r, &length); err != nil {
			return nil, fmt.Errorf("reading name length: %v", err)
		}
		// The name length includes a null terminating character.
		if length < 1 || length > maximumNameLength {
			return nil, fmt.Errorf("invalid name length (%d bytes)", length)
		}
		name := make([]byte, length)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, fmt.Errorf("reading name: %v", err)
		}
		var ref Reference
		ref.Name = string(name[:length-1])
		if err := binary.Read(r, &ref.Length); err != nil {
			return nil, fmt.Errorf("reading reference length: %v", err)
		}
		if ref.Length < 0 {
			return nil, fmt.Errorf("invalid length %d for reference %q", ref.Length, ref.Name)
		}
		header.References = append(header.References, ref)
	}
	return header, nil
}

// Next returns the next alignment record.  It returns io.EOF when there are
// no more records.
func (r *Reader) Next() (*Record, error) {
	var size int32
	if err := binary.Read(r.r, &size); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("reading record size: %v", err)
	}
	if size < fixedRecordSize || size > maximumRecordSize {
		return nil, fmt.Errorf("invalid record size (%d bytes)", size)
	}
	block := make([]byte, size)
	if _, err := io.ReadFull(r.r, block); err != nil {
		return nil, fmt.Errorf("reading record: %v", err)
	}

	c := binary.NewCursor(block)
	record := &Record{
		RefID: c.Int32(),
		Pos:   c.Int32(),
	}
	nameLength := int(c.Uint8())
	record.MapQ = c.Uint8()
	c.Uint16() // bin
	cigarCount := int(c.Uint16())
	record.Flags = c.Uint16()
	c.Bytes(16) // l_seq, next_refID, next_pos, tlen
	if name := c.Bytes(nameLength); len(name) > 0 {
		record.Name = string(name[:len(name)-1])
	}
	record.Cigar = make([]CigarOp, cigarCount)
	for i := range record.Cigar {
		record.Cigar[i] = CigarOp(c.Uint32())
	}
	if err := c.Err(); err != nil {
		return nil, fmt.Errorf("decoding record: %v", err)
	}

	if record.RefID < -1 || int(record.RefID) >= len(r.Header.References) {
		return nil, fmt.Errorf("record %q: invalid reference ID %d", record.Name, record.RefID)
	}
	return record, nil
}
