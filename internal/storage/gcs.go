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

package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GCSClient is Client for accessing Google Cloud Storage.
type GCSClient struct {
	*storage.Client
}

// NewObjectHandle returns a handle to a specified object in the
// storage engine.
func (c GCSClient) NewObjectHandle(bucket, object string) ObjectHandle {
	return gcsObjectHandle{c.Bucket(bucket).Object(object)}
}

type gcsObjectHandle struct {
	*storage.ObjectHandle
}

func (h gcsObjectHandle) NewReader(ctx context.Context) (io.ReadCloser, error) {
	return h.ObjectHandle.NewReader(ctx)
}

func (h gcsObjectHandle) NewWriter(ctx context.Context) io.WriteCloser {
	w := h.ObjectHandle.NewWriter(ctx)
	if strings.HasSuffix(h.ObjectName(), ".csv") {
		w.ContentType = "text/csv"
	}
	return w
}

var (
	defaultStorageClient           *storage.Client
	defaultStorageClientErr        error
	initializeDefaultStorageClient sync.Once
)

// NewDefaultClient returns a storage client that uses the application default
// credentials.  It caches the storage client for efficiency.
func NewDefaultClient(ctx context.Context) (Client, error) {
	initializeDefaultStorageClient.Do(func() {
		defaultStorageClient, defaultStorageClientErr = storage.NewClient(ctx)
	})
	if defaultStorageClientErr != nil {
		return nil, fmt.Errorf("creating default storage client: %v", defaultStorageClientErr)
	}
	return GCSClient{defaultStorageClient}, nil
}

// NewPublicClient returns a storage client that does not use any form of
// client authorization.  It can only be used to read publicly-readable
// objects.
func NewPublicClient(ctx context.Context) (Client, error) {
	client, err := storage.NewClient(ctx, option.WithHTTPClient(http.DefaultClient))
	if err != nil {
		return nil, fmt.Errorf("creating public storage client: %v", err)
	}
	return GCSClient{client}, nil
}

// NewClientFromBearerToken constructs a storage client that authorizes every
// request with the provided OAuth2 access token.
func NewClientFromBearerToken(ctx context.Context, accessToken string) (Client, error) {
	if accessToken == "" {
		return nil, errMissingToken
	}
	token := oauth2.Token{
		TokenType:   "Bearer",
		AccessToken: accessToken,
	}
	client, err := storage.NewClient(ctx, option.WithTokenSource(oauth2.StaticTokenSource(&token)))
	if err != nil {
		return nil, fmt.Errorf("creating client with token source: %v", err)
	}
	return GCSClient{client}, nil
}

// Credential modes accepted by NewClient.
const (
	CredentialsDefault = "default"
	CredentialsPublic  = "public"
	CredentialsToken   = "token"
)

// NewClient returns a Client for the named credential mode.  token is only
// used by CredentialsToken.
func NewClient(ctx context.Context, credentials, token string) (Client, error) {
	switch credentials {
	case "", CredentialsDefault:
		return NewDefaultClient(ctx)
	case CredentialsPublic:
		return NewPublicClient(ctx)
	case CredentialsToken:
		return NewClientFromBearerToken(ctx, token)
	}
	return nil, fmt.Errorf("unknown credentials mode %q", credentials)
}

func newStorageError(path string, err error) error {
	if err == storage.ErrObjectNotExist || err == storage.ErrBucketNotExist {
		return &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	if apiErr, ok := err.(*googleapi.Error); ok {
		switch apiErr.Code {
		case http.StatusNotFound:
			return &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%s: %v: %w", path, apiErr.Message, fs.ErrPermission)
		}
	}
	return fmt.Errorf("%s: %v", path, err)
}
