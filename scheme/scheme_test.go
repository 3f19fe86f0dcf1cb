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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBasename(t *testing.T) {
	cases := map[string]string{
		"file:///data/a.wav":       "a.wav",
		"s3://bucket/path/b.flac":  "b.flac",
		"gs://bucket/name/c.ogg":   "c.ogg",
		"/local/plain/path/d.wav":  "d.wav",
	}
	for url, want := range cases {
		assert.Equal(t, want, Basename(url), url)
	}
}

func TestSchemeOf(t *testing.T) {
	assert.Equal(t, "file", SchemeOf("file:///a"))
	assert.Equal(t, "s3", SchemeOf("s3://bucket/key"))
	assert.Equal(t, "", SchemeOf("/bare/path"))
}
