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

// Package storage opens and creates report inputs and outputs on the local
// file system or in Google Cloud Storage.
//
// Paths of the form gs://bucket/object are served by a Client; anything else
// is treated as a local file name.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const gcsScheme = "gs://"

var (
	errNoClient     = errors.New("no cloud storage client configured")
	errMissingToken = errors.New("missing access token")
)

// Client is an interface to the storage engine.
type Client interface {
	// NewObjectHandle returns a handle to a specified object in
	// the storage engine.
	NewObjectHandle(bucket, object string) ObjectHandle
}

// ObjectHandle is an interface to the actual storage engine in use.
type ObjectHandle interface {
	// NewReader returns a reader for the whole object.
	NewReader(ctx context.Context) (io.ReadCloser, error)
	// NewWriter returns a writer that replaces the object's content.  The
	// object is only committed once Close returns without error.
	NewWriter(ctx context.Context) io.WriteCloser
}

// Store opens and creates local files and cloud storage objects.  The zero
// value only supports local files.
type Store struct {
	Client Client
}

// ParsePath splits a gs://bucket/object path.  ok is false for local paths.
func ParsePath(path string) (bucket, object string, ok bool, err error) {
	rest := strings.TrimPrefix(path, gcsScheme)
	if rest == path {
		return "", "", false, nil
	}
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" || strings.HasSuffix(parts[1], "/") {
		return "", "", true, fmt.Errorf("invalid cloud storage path %q", path)
	}
	return parts[0], parts[1], true, nil
}

// Open opens path for reading.
func (s *Store) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	handle, err := s.handle(path)
	if err != nil {
		return nil, err
	}
	if handle == nil {
		return os.Open(path)
	}
	r, err := handle.NewReader(ctx)
	if err != nil {
		return nil, newStorageError(path, err)
	}
	return r, nil
}

// Create creates or truncates path for writing.
func (s *Store) Create(ctx context.Context, path string) (io.WriteCloser, error) {
	handle, err := s.handle(path)
	if err != nil {
		return nil, err
	}
	if handle == nil {
		return os.Create(path)
	}
	return &objectWriter{path, handle.NewWriter(ctx)}, nil
}

func (s *Store) handle(path string) (ObjectHandle, error) {
	bucket, object, ok, err := ParsePath(path)
	if err != nil || !ok {
		return nil, err
	}
	if s == nil || s.Client == nil {
		return nil, fmt.Errorf("%s: %v", path, errNoClient)
	}
	return s.Client.NewObjectHandle(bucket, object), nil
}

// objectWriter maps errors reported by the cloud storage writer, which
// surface on Write or Close.
type objectWriter struct {
	path string
	w    io.WriteCloser
}

func (w *objectWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	if err != nil {
		err = newStorageError(w.path, err)
	}
	return n, err
}

func (w *objectWriter) Close() error {
	if err := w.w.Close(); err != nil {
		return newStorageError(w.path, err)
	}
	return nil
}
