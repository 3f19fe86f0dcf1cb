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

package metastore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prefetchcache/prefetchcache/scheme"
)

func TestLoadDBCache_MissingFileIsNotAnError(t *testing.T) {
	_, ok, err := LoadDBCache(t.TempDir())

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDBCacheState_RoundTripsThroughSave(t *testing.T) {
	dir := t.TempDir()
	want := DBCacheState{
		AllFiles:          []string{"a.wav", "b.wav"},
		AllSizes:          []int64{100, 100},
		Groups:            [][]scheme.FileDescriptor{{{URL: "file:///a.wav", Size: 100}}},
		CurrentGroupIndex: 1,
		CurrentSlot:       "B",
	}

	require.NoError(t, SaveDBCache(dir, want))
	got, ok, err := LoadDBCache(dir)

	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestRWCacheState_RoundTripsThroughSave(t *testing.T) {
	dir := t.TempDir()
	want := RWCacheState{
		Uncached: []scheme.FileDescriptor{{URL: "s3://bucket/c.wav", Size: 10}},
		Staged:   []scheme.FileDescriptor{{URL: "s3://bucket/b.wav", Size: 10}},
		Active:   []scheme.FileDescriptor{{URL: "s3://bucket/a.wav", Size: 10}},
		Evicted:  nil,
	}

	require.NoError(t, SaveRWCache(dir, want))
	got, ok, err := LoadRWCache(dir)

	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestSave_CreatesMetadataFileAtFixedName(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, SaveRWCache(dir, RWCacheState{}))

	_, err := os.Stat(filepath.Join(dir, Filename))
	assert.NoError(t, err)
}

func TestLoad_TruncatedFileIsTreatedAsAbsent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(Path(dir), []byte("not a gob stream"), 0o644))

	_, ok, err := LoadRWCache(dir)

	require.NoError(t, err)
	assert.False(t, ok)
}
