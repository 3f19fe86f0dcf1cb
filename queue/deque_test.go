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

package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeque_PushPopOrder(t *testing.T) {
	d := New[int]()
	assert.True(t, d.IsEmpty())

	d.PushBack(1)
	d.PushBack(2)
	d.PushBack(3)

	require.Equal(t, 3, d.Len())
	assert.Equal(t, 1, d.PopFront())
	assert.Equal(t, 2, d.PopFront())
	assert.Equal(t, 1, d.Len())
}

func TestDeque_PeekFrontNDoesNotMutate(t *testing.T) {
	d := Of([]string{"a", "b", "c", "d"})

	peeked := d.PeekFrontN(2)

	assert.Equal(t, []string{"a", "b"}, peeked)
	assert.Equal(t, 4, d.Len())
}

func TestDeque_PeekFrontNClampsToLength(t *testing.T) {
	d := Of([]int{1, 2})

	assert.Equal(t, []int{1, 2}, d.PeekFrontN(20))
}

func TestDeque_PopFrontNCommitsExactlyWhatWasPeeked(t *testing.T) {
	d := Of([]int{1, 2, 3, 4, 5})

	peeked := d.PeekFrontN(3)
	popped := d.PopFrontN(len(peeked))

	assert.Equal(t, peeked, popped)
	assert.Equal(t, []int{4, 5}, d.Snapshot())
}

func TestDeque_Drain(t *testing.T) {
	d := Of([]int{1, 2, 3})

	drained := d.Drain()

	assert.Equal(t, []int{1, 2, 3}, drained)
	assert.True(t, d.IsEmpty())
}

func TestDeque_PopFrontPanicsWhenEmpty(t *testing.T) {
	d := New[int]()

	assert.Panics(t, func() { d.PopFront() })
}

func TestDeque_PushAllBackAppendsInOrder(t *testing.T) {
	d := Of([]int{1})

	d.PushAllBack([]int{2, 3})

	assert.Equal(t, []int{1, 2, 3}, d.Snapshot())
}
