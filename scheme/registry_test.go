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

package scheme

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prefetchcache/prefetchcache/errs"
)

type fakeScheme struct {
	name   string
	prefix string
}

func (f fakeScheme) Name() string         { return f.name }
func (f fakeScheme) Validate(u string) bool {
	return len(u) >= len(f.prefix) && u[:len(f.prefix)] == f.prefix
}
func (fakeScheme) OpenRead(context.Context, string) (io.ReadCloser, error)   { return nil, nil }
func (fakeScheme) OpenWrite(context.Context, string) (io.WriteCloser, error) { return nil, nil }
func (fakeScheme) Size(context.Context, string) (int64, error)              { return 0, nil }

func TestRegistry_ResolvesFirstMatchInDeclarationOrder(t *testing.T) {
	r := NewRegistry(fakeScheme{name: "file", prefix: "file://"})
	r.Register(fakeScheme{name: "s3", prefix: "s3://"})
	r.Register(fakeScheme{name: "gs", prefix: "gs://"})

	s, normalized, err := r.Resolve("s3://bucket/key")

	require.NoError(t, err)
	assert.Equal(t, "s3", s.Name())
	assert.Equal(t, "s3://bucket/key", normalized)
}

func TestRegistry_NormalizesBarePathToFileScheme(t *testing.T) {
	r := NewRegistry(fakeScheme{name: "file", prefix: "file://"})

	s, normalized, err := r.Resolve("/abs/path/to/file.wav")

	require.NoError(t, err)
	assert.Equal(t, "file", s.Name())
	assert.Contains(t, normalized, "file:///abs/path/to/file.wav")
}

func TestRegistry_UnknownSchemeReturnsSchemeNotFound(t *testing.T) {
	r := NewRegistry(fakeScheme{name: "file", prefix: "file://"})

	_, _, err := r.Resolve("ftp://host/path")

	assert.True(t, errors.Is(err, errs.ErrSchemeNotFound))
}
