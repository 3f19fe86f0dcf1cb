// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package filescheme implements scheme.Scheme over the local filesystem
// (spec §4.1 "File"). It is the only scheme with no third-party
// library behind it — ordinary file I/O has no ecosystem dependency
// anywhere in the retrieval pack, so stdlib os/path is used directly.
package filescheme

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/prefetchcache/prefetchcache/errs"
)

const prefix = "file://"

// Scheme implements scheme.Scheme for "file://" URLs.
type Scheme struct{}

// New returns a local-filesystem scheme.
func New() *Scheme { return &Scheme{} }

func (Scheme) Name() string { return "file" }

func (Scheme) Validate(url string) bool {
	return strings.HasPrefix(url, prefix)
}

func (Scheme) path(url string) (string, error) {
	if !strings.HasPrefix(url, prefix) {
		return "", fmt.Errorf("filescheme: not a file:// url: %s", url)
	}
	return strings.TrimPrefix(url, prefix), nil
}

func (s Scheme) OpenRead(_ context.Context, url string) (io.ReadCloser, error) {
	path, err := s.path(url)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path) //nolint:gosec // path is the cache's own descriptor, not raw user input
	if err != nil {
		return nil, errs.RemoteIO("open", url, err)
	}
	return f, nil
}

func (s Scheme) OpenWrite(_ context.Context, url string) (io.WriteCloser, error) {
	path, err := s.path(url)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errs.RemoteIO("mkdir", url, err)
	}
	f, err := os.Create(path) //nolint:gosec // path is the cache's own descriptor, not raw user input
	if err != nil {
		return nil, errs.RemoteIO("create", url, err)
	}
	return f, nil
}

func (s Scheme) Size(_ context.Context, url string) (int64, error) {
	path, err := s.path(url)
	if err != nil {
		return 0, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return 0, errs.RemoteIO("stat", url, err)
	}
	return fi.Size(), nil
}
