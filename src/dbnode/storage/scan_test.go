// Copyright (c) 2021 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunksToFetchRowKeyGap(t *testing.T) {
	// Three resident chunks, oldest starting at t=1000.
	p := fakePartition{key: "p1", numChunks: 3, earliest: 1000}

	// The query wants history older than the resident extent: fetch only
	// the missing prefix.
	fetch, needed := chunksToFetch(p, NewRowKeyChunkScan(500, 2000))
	require.True(t, needed)
	assert.Equal(t, NewRowKeyChunkScan(500, 999), fetch)

	// The query range is fully covered by resident chunks.
	_, needed = chunksToFetch(p, NewRowKeyChunkScan(1500, 2000))
	assert.False(t, needed)

	// A scan starting exactly at the earliest resident time needs nothing.
	_, needed = chunksToFetch(p, NewRowKeyChunkScan(1000, 2000))
	assert.False(t, needed)
}

func TestChunksToFetchRowKeyNoResidentChunks(t *testing.T) {
	p := fakePartition{key: "p1", numChunks: 0, earliest: 0}

	// Nothing resident means the full requested range must be read back.
	fetch, needed := chunksToFetch(p, NewRowKeyChunkScan(500, 2000))
	require.True(t, needed)
	assert.Equal(t, NewRowKeyChunkScan(500, 2000), fetch)
}

func TestChunksToFetchAllChunksAlwaysPages(t *testing.T) {
	p := fakePartition{key: "p1", numChunks: 3, earliest: 1000}

	fetch, needed := chunksToFetch(p, NewAllChunkScan())
	require.True(t, needed)
	assert.Equal(t, NewAllChunkScan(), fetch)
}

func TestChunksToFetchMemoryOnlyKindsNeverPage(t *testing.T) {
	p := fakePartition{key: "p1", numChunks: 0, earliest: 0}

	_, needed := chunksToFetch(p, NewInMemoryChunkScan())
	assert.False(t, needed)

	_, needed = chunksToFetch(p, NewLastSampleChunkScan())
	assert.False(t, needed)
}

func TestBoundingScanUnion(t *testing.T) {
	scan := boundingScan([]ChunkScanMethod{
		NewRowKeyChunkScan(10, 50),
		NewRowKeyChunkScan(5, 40),
		NewRowKeyChunkScan(20, 90),
	})
	assert.Equal(t, NewRowKeyChunkScan(5, 90), scan)
}

func TestBoundingScanWidensToAllChunks(t *testing.T) {
	assert.Equal(t, NewAllChunkScan(), boundingScan(nil))
	assert.Equal(t, NewAllChunkScan(), boundingScan([]ChunkScanMethod{
		NewRowKeyChunkScan(10, 50),
		NewAllChunkScan(),
	}))
}

func TestChunkScanKindStrings(t *testing.T) {
	for _, k := range ChunkScanKinds() {
		assert.NotEqual(t, "Unknown", k.String())
	}
	assert.Equal(t, "Unknown", ChunkScanKind(127).String())
	assert.Equal(t, "RowKeyChunkScan(5, 9)", NewRowKeyChunkScan(5, 9).String())
}
