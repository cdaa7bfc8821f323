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

// Package storage implements the on-demand paging engine that completes
// query results by fetching cold storage chunks a query needs beyond what is
// memory resident.
//
// Known gap: under bounded-concurrency fan-out, a cold read failure for one
// partition aborts the entire scan instead of failing only that partition.
package storage

import (
	"context"

	"github.com/stratumdb/stratum/src/cluster/shard"
	"github.com/stratumdb/stratum/src/x/clock"
	"github.com/stratumdb/stratum/src/x/instrument"
)

// PartitionKey identifies a partition, a single time series within a shard.
type PartitionKey string

// ReadablePartition is a memory resident partition: ordered chunks of one
// time series.
type ReadablePartition interface {
	// Key returns the partition key.
	Key() PartitionKey

	// NumChunks returns the number of memory resident chunks.
	NumChunks() int

	// EarliestTime returns the start time of the oldest memory resident
	// chunk, in epoch milliseconds.
	EarliestTime() int64
}

// RawChunk is an opaque encoded chunk set covering one contiguous time
// range. Its binary layout belongs to the columnar codec, not this layer.
type RawChunk struct {
	Start int64
	End   int64
	Data  []byte
}

// RawPartition is one partition's chunks as read back from cold storage,
// before materialization into the in-memory store.
type RawPartition struct {
	Key    PartitionKey
	Chunks []RawChunk
}

// RawPartitionIterator iterates raw partitions streamed from a cold storage
// read. Iterators are finite and cannot be restarted.
type RawPartitionIterator interface {
	// Next moves to the next raw partition, returning false at the end.
	Next() bool

	// Current returns the current raw partition.
	Current() RawPartition

	// Err returns the error that ended iteration early, if any.
	Err() error

	// Close releases the iterator's resources.
	Close() error
}

// PartitionIterator iterates the partitions produced by a scan. It is meant
// for a single consumer; Close ends iteration early.
type PartitionIterator interface {
	// Next moves to the next partition, returning false at the end.
	Next() bool

	// Current returns the current partition.
	Current() ReadablePartition

	// Err returns the error that ended iteration early, if any.
	Err() error

	// Close releases the iterator's resources.
	Close() error
}

// ColumnStore reads persisted chunk data back from cold storage.
type ColumnStore interface {
	// ReadRawPartitions streams raw partitions matching the partition and
	// chunk selections.
	ReadRawPartitions(
		ctx context.Context,
		dataset shard.DatasetRef,
		columnIDs []int,
		partMethod PartitionScanMethod,
		chunkMethod ChunkScanMethod,
	) (RawPartitionIterator, error)
}

// PartitionMaker materializes raw chunks into the shard's in-memory
// partition structure. Implementations mutate native memory and must never
// run under more than one writer; the pager drives all calls through one
// serializing worker.
type PartitionMaker interface {
	// PopulateRawChunks materializes a raw partition.
	PopulateRawChunks(ctx context.Context, raw RawPartition) (ReadablePartition, error)
}

// PartitionIndex enumerates the memory resident partitions matching a scan.
type PartitionIndex interface {
	// IteratePartitions returns the candidate partitions for the partition
	// selection, index backed.
	IteratePartitions(
		partMethod PartitionScanMethod,
		chunkMethod ChunkScanMethod,
	) ([]ReadablePartition, error)
}

// PartitionEvictionPolicy decides whether the in-memory store can take more
// partitions. Eviction itself happens outside this layer.
type PartitionEvictionPolicy interface {
	// CanAccept reports whether another partition may be materialized given
	// the current resident count.
	CanAccept(residentPartitions int) bool
}

// OnDemandPager produces fully populated partitions for a query, fetching
// from cold storage only the minimal missing ranges.
type OnDemandPager interface {
	// Scan returns a lazy sequence of populated partitions. Partitions
	// served from memory precede any paged partition; paged partitions
	// arrive in fetch completion order. The iterator applies backpressure
	// once its buffer fills.
	Scan(
		ctx context.Context,
		columnIDs []int,
		partMethod PartitionScanMethod,
		chunkMethod ChunkScanMethod,
	) (PartitionIterator, error)
}

// Options bundle the pager's collaborators and tuning knobs.
type Options interface {
	// Validate validates the options.
	Validate() error

	// SetInstrumentOptions sets the instrument options.
	SetInstrumentOptions(value instrument.Options) Options

	// InstrumentOptions returns the instrument options.
	InstrumentOptions() instrument.Options

	// SetClockOptions sets the clock options.
	SetClockOptions(value clock.Options) Options

	// ClockOptions returns the clock options.
	ClockOptions() clock.Options

	// SetColumnStore sets the cold storage reader.
	SetColumnStore(value ColumnStore) Options

	// ColumnStore returns the cold storage reader.
	ColumnStore() ColumnStore

	// SetPartitionMaker sets the partition materializer.
	SetPartitionMaker(value PartitionMaker) Options

	// PartitionMaker returns the partition materializer.
	PartitionMaker() PartitionMaker

	// SetPartitionEvictionPolicy sets the eviction policy consulted before
	// materializing fetched partitions.
	SetPartitionEvictionPolicy(value PartitionEvictionPolicy) Options

	// PartitionEvictionPolicy returns the eviction policy.
	PartitionEvictionPolicy() PartitionEvictionPolicy

	// SetMultiPartitionEnabled selects one batched cold read for all paging
	// candidates instead of one read per candidate.
	SetMultiPartitionEnabled(value bool) Options

	// MultiPartitionEnabled returns whether batched cold reads are enabled.
	MultiPartitionEnabled() bool

	// SetDemandPagingParallelism sets the max concurrent cold reads in
	// per-partition mode.
	SetDemandPagingParallelism(value int) Options

	// DemandPagingParallelism returns the max concurrent cold reads.
	DemandPagingParallelism() int

	// SetResultBufferSize sets the capacity of the buffer between the
	// paging stage and the consumer.
	SetResultBufferSize(value int) Options

	// ResultBufferSize returns the result buffer capacity.
	ResultBufferSize() int
}
