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

package gcsscheme

import (
	"context"
	"io"
	"testing"

	"github.com/fsouza/fake-gcs-server/fakestorage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prefetchcache/prefetchcache/errs"
)

func newTestServer(t *testing.T, objs ...fakestorage.Object) *fakestorage.Server {
	t.Helper()
	server, err := fakestorage.NewServerWithOptions(fakestorage.Options{
		InitialObjects: objs,
	})
	require.NoError(t, err)
	t.Cleanup(server.Stop)
	return server
}

func TestScheme_ValidatesGSURLsOnly(t *testing.T) {
	s := New(nil, "proj")

	assert.True(t, s.Validate("gs://bucket/object"))
	assert.False(t, s.Validate("file:///tmp/a"))
}

func TestScheme_ReadRoundTripsExistingObject(t *testing.T) {
	server := newTestServer(t, fakestorage.Object{
		ObjectAttrs: fakestorage.ObjectAttrs{BucketName: "corpus", Name: "clip.wav"},
		Content:     []byte("rolling window"),
	})
	s := New(server.Client(), "proj")

	r, err := s.OpenRead(context.Background(), "gs://corpus/clip.wav")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)

	require.NoError(t, err)
	assert.Equal(t, "rolling window", string(data))
}

func TestScheme_WriteCreatesMissingBucket(t *testing.T) {
	server := newTestServer(t)
	s := New(server.Client(), "proj")

	w, err := s.OpenWrite(context.Background(), "gs://fresh-bucket/new.wav")
	require.NoError(t, err)
	_, err = w.Write([]byte("staged"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := s.OpenRead(context.Background(), "gs://fresh-bucket/new.wav")
	require.NoError(t, err)
	defer r.Close()
	data, _ := io.ReadAll(r)
	assert.Equal(t, "staged", string(data))
}

func TestScheme_SizeIsUnsupported(t *testing.T) {
	s := New(nil, "proj")

	_, err := s.Size(context.Background(), "gs://bucket/object")

	assert.ErrorIs(t, err, errs.ErrUnsupported)
}
