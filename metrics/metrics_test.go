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

package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersWithoutError(t *testing.T) {
	h, err := New()

	require.NoError(t, err)
	require.NotNil(t, h)
}

func TestHandle_RecordsWithoutPanicking(t *testing.T) {
	h, err := New()
	require.NoError(t, err)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		h.BlockBytesCopied(ctx, 1024, "file")
		h.BlockCopyLatency(ctx, 50*time.Millisecond, "file")
		h.FilesCopied(ctx, 20, "file")
		h.TransitionCount(ctx, "rwcache")
		h.ActiveSetBytes(ctx, 50*1024*1024, "rwcache")
	})
}

func TestNoopHandle_Satisfies(t *testing.T) {
	var h Handle = NoopHandle{}
	assert.NotPanics(t, func() {
		h.BlockBytesCopied(context.Background(), 1, "s3")
	})
}
