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

import "fmt"

// ChunkScanKind enumerates chunk selection methods.
type ChunkScanKind int

const (
	// AllChunkScan selects every chunk, resident or not.
	AllChunkScan ChunkScanKind = iota
	// RowKeyChunkScan selects chunks intersecting a time range.
	RowKeyChunkScan
	// InMemoryChunkScan selects only memory resident chunks.
	InMemoryChunkScan
	// LastSampleChunkScan selects only the most recent resident sample.
	LastSampleChunkScan
)

// ChunkScanKinds returns all the possible chunk scan kinds.
func ChunkScanKinds() []ChunkScanKind {
	return []ChunkScanKind{
		AllChunkScan,
		RowKeyChunkScan,
		InMemoryChunkScan,
		LastSampleChunkScan,
	}
}

// String returns the string representation of the chunk scan kind.
func (k ChunkScanKind) String() string {
	switch k {
	case AllChunkScan:
		return "AllChunkScan"
	case RowKeyChunkScan:
		return "RowKeyChunkScan"
	case InMemoryChunkScan:
		return "InMemoryChunkScan"
	case LastSampleChunkScan:
		return "LastSampleChunkScan"
	}
	return "Unknown"
}

// ChunkScanMethod selects which chunks of a partition a query reads.
type ChunkScanMethod struct {
	// Kind tags the method.
	Kind ChunkScanKind

	// Start and End bound row key scans, inclusive epoch milliseconds.
	Start int64
	End   int64
}

// NewAllChunkScan returns a scan over every chunk.
func NewAllChunkScan() ChunkScanMethod {
	return ChunkScanMethod{Kind: AllChunkScan}
}

// NewRowKeyChunkScan returns a scan over chunks intersecting [start, end].
func NewRowKeyChunkScan(start, end int64) ChunkScanMethod {
	return ChunkScanMethod{Kind: RowKeyChunkScan, Start: start, End: end}
}

// NewInMemoryChunkScan returns a scan over resident chunks only.
func NewInMemoryChunkScan() ChunkScanMethod {
	return ChunkScanMethod{Kind: InMemoryChunkScan}
}

// NewLastSampleChunkScan returns a scan over the latest resident sample.
func NewLastSampleChunkScan() ChunkScanMethod {
	return ChunkScanMethod{Kind: LastSampleChunkScan}
}

// String returns the string representation of the chunk scan method.
func (m ChunkScanMethod) String() string {
	if m.Kind == RowKeyChunkScan {
		return fmt.Sprintf("RowKeyChunkScan(%d, %d)", m.Start, m.End)
	}
	return m.Kind.String()
}

// PartitionScanKind enumerates partition selection methods.
type PartitionScanKind int

const (
	// SinglePartitionScan selects one partition by key.
	SinglePartitionScan PartitionScanKind = iota
	// FilteredPartitionScan selects partitions matching a filter.
	FilteredPartitionScan
)

// PartitionScanMethod selects which partitions a scan visits. The filter is
// opaque to this layer and interpreted by the index and the column store.
type PartitionScanMethod struct {
	Kind   PartitionScanKind
	Key    PartitionKey
	Filter string
}

// NewSinglePartitionScan returns a selection of one partition by key.
func NewSinglePartitionScan(key PartitionKey) PartitionScanMethod {
	return PartitionScanMethod{Kind: SinglePartitionScan, Key: key}
}

// NewFilteredPartitionScan returns a selection of partitions by filter.
func NewFilteredPartitionScan(filter string) PartitionScanMethod {
	return PartitionScanMethod{Kind: FilteredPartitionScan, Filter: filter}
}

// chunksToFetch returns the cold storage scan covering what the query needs
// beyond the partition's memory resident extent, and whether any fetch is
// needed at all.
//
// The resident suffix is never refetched: a row key scan starting at or
// after the earliest resident time is fully covered by memory. No index
// guarantee exists for "all chunks", so an all-chunk scan always pages.
func chunksToFetch(p ReadablePartition, method ChunkScanMethod) (ChunkScanMethod, bool) {
	switch method.Kind {
	case AllChunkScan:
		return method, true
	case RowKeyChunkScan:
		if p.NumChunks() == 0 {
			return method, true
		}
		earliest := p.EarliestTime()
		if method.Start >= earliest {
			return ChunkScanMethod{}, false
		}
		return NewRowKeyChunkScan(method.Start, earliest-1), true
	case InMemoryChunkScan, LastSampleChunkScan:
		return ChunkScanMethod{}, false
	}
	return ChunkScanMethod{}, false
}

// boundingScan returns the single scan covering every candidate range in a
// batched cold read: the union [min start, max end]. An empty candidate set
// or an all-chunk candidate widens the read to every chunk.
func boundingScan(methods []ChunkScanMethod) ChunkScanMethod {
	if len(methods) == 0 {
		return NewAllChunkScan()
	}
	var (
		start = int64(0)
		end   = int64(0)
		first = true
	)
	for _, m := range methods {
		if m.Kind != RowKeyChunkScan {
			return NewAllChunkScan()
		}
		if first || m.Start < start {
			start = m.Start
		}
		if first || m.End > end {
			end = m.End
		}
		first = false
	}
	return NewRowKeyChunkScan(start, end)
}
