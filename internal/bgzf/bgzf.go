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

// Package bgzf provides support for reading and writing BGZF files.
package bgzf

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
)

// MaximumBlockSize is the maximum BGZF block size.
const MaximumBlockSize = 65536

// The amount of uncompressed data written into each block by Writer.  This
// matches htslib and leaves room for incompressible input to fit inside
// MaximumBlockSize once compressed.
const writerBlockSize = 0xff00

// EOFMarker is the empty block that terminates a well formed BGZF file.
var EOFMarker = []byte{
	0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00, 0x00, 0x00,
	0x00, 0xff, 0x06, 0x00, 0x42, 0x43, 0x02, 0x00,
	0x1b, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}

// DecodeBlock decodes a single BGZF block from r and returns the uncompressed
// data and the original block size (or an error).  Note that DecodeBlock may
// read bytes past the end of the block if r does not implement io.ByteReader.
func DecodeBlock(r io.Reader) ([]byte, uint16, error) {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return nil, 0, fmt.Errorf("initializing gzip reader: %v", err)
	}
	defer gzr.Close()

	extra := gzr.Header.Extra
	if len(extra) < 6 {
		return nil, 0, fmt.Errorf("missing BGZF extra field (%d bytes)", len(extra))
	}
	if extra[0] != 0x42 || extra[1] != 0x43 {
		return nil, 0, fmt.Errorf("unexpected extra ID: %x", extra[0:2])
	}
	if extra[2] != 2 || extra[3] != 0 {
		return nil, 0, fmt.Errorf("unexpected extra length: %x", extra[2:4])
	}

	gzr.Multistream(false)
	var buffer bytes.Buffer
	if _, err := io.Copy(&buffer, gzr); err != nil {
		return nil, 0, fmt.Errorf("decompressing data: %v", err)
	}
	return buffer.Bytes(), (uint16(extra[4]) | uint16(extra[5])<<8) + 1, nil
}

// EncodeBlock returns a single BGZF block that encodes the bytes in data.
func EncodeBlock(data []byte) ([]byte, error) {
	if len(data) > MaximumBlockSize {
		return nil, errors.New("data exceeds maximum block size")
	}

	var buffer bytes.Buffer
	gzw := gzip.NewWriter(&buffer)

	gzw.Header.Extra = []byte{
		0x42, 0x43, // Extra ID.
		0x02, 0x00, // Length of extra data (2 bytes).
		0x88, 0x88, // BSIZE (filled in after writing the archive).
	}
	if _, err := gzw.Write(data); err != nil {
		return nil, fmt.Errorf("writing compressed data: %v", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("closing writer: %v", err)
	}
	if buffer.Len() > MaximumBlockSize {
		return nil, fmt.Errorf("compressed block too large (%d bytes)", buffer.Len())
	}
	bsize := buffer.Len() - 1
	encoded := buffer.Bytes()
	encoded[16] = byte(bsize)
	encoded[17] = byte(bsize >> 8)
	return encoded, nil
}

// Reader decompresses a BGZF stream one block at a time.
type Reader struct {
	r     *bufio.Reader
	block []byte
	off   int
}

// NewReader returns a Reader that decodes consecutive BGZF blocks from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Read implements io.Reader.  It returns io.EOF once the compressed stream is
// exhausted at a block boundary.
func (r *Reader) Read(p []byte) (int, error) {
	for r.off >= len(r.block) {
		if _, err := r.r.Peek(1); err != nil {
			return 0, err
		}
		data, _, err := DecodeBlock(r.r)
		if err != nil {
			return 0, err
		}
		r.block, r.off = data, 0
	}
	n := copy(p, r.block[r.off:])
	r.off += n
	return n, nil
}

// Writer compresses data written to it into BGZF blocks.  Close must be
// called to flush the final block and append the EOF marker.
type Writer struct {
	w       io.Writer
	pending []byte
}

// NewWriter returns a Writer that writes BGZF blocks to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	w.pending = append(w.pending, p...)
	for len(w.pending) >= writerBlockSize {
		if err := w.flush(writerBlockSize); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Close flushes buffered data and writes the EOF marker.  It does not close
// the underlying writer.
func (w *Writer) Close() error {
	if len(w.pending) > 0 {
		if err := w.flush(len(w.pending)); err != nil {
			return err
		}
	}
	if _, err := w.w.Write(EOFMarker); err != nil {
		return fmt.Errorf("writing EOF marker: %v", err)
	}
	return nil
}

func (w *Writer) flush(n int) error {
	block, err := EncodeBlock(w.pending[:n])
	if err != nil {
		return err
	}
	if _, err := w.w.Write(block); err != nil {
		return fmt.Errorf("writing block: %v", err)
	}
	w.pending = w.pending[n:]
	return nil
}
