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
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/stratumdb/stratum/src/cluster/shard"
)

const testScanDataset = shard.DatasetRef("telemetry")

type fakePartition struct {
	key       PartitionKey
	numChunks int
	earliest  int64
}

func (p fakePartition) Key() PartitionKey  { return p.key }
func (p fakePartition) NumChunks() int     { return p.numChunks }
func (p fakePartition) EarliestTime() int64 { return p.earliest }

type sliceRawIterator struct {
	raws []RawPartition
	idx  int
	err  error
}

func newSliceRawIterator(raws ...RawPartition) *sliceRawIterator {
	return &sliceRawIterator{raws: raws, idx: -1}
}

func (it *sliceRawIterator) Next() bool {
	if it.err != nil || it.idx+1 >= len(it.raws) {
		return false
	}
	it.idx++
	return true
}

func (it *sliceRawIterator) Current() RawPartition { return it.raws[it.idx] }
func (it *sliceRawIterator) Err() error            { return it.err }
func (it *sliceRawIterator) Close() error          { return nil }

func testRaw(key PartitionKey) RawPartition {
	return RawPartition{
		Key:    key,
		Chunks: []RawChunk{{Start: 500, End: 999, Data: []byte{0x1}}},
	}
}

func newTestPager(t *testing.T, index PartitionIndex, opts Options) OnDemandPager {
	p, err := NewOnDemandPager(testScanDataset, 3, index, opts)
	require.NoError(t, err)
	return p
}

func drain(t *testing.T, it PartitionIterator) ([]PartitionKey, error) {
	var keys []PartitionKey
	for it.Next() {
		keys = append(keys, it.Current().Key())
	}
	err := it.Err()
	require.NoError(t, it.Close())
	return keys, err
}

func TestScanServesMemoryFirstWithBatchedColdRead(t *testing.T) {
	defer leaktest.Check(t)()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var (
		m1 = fakePartition{key: "m1", numChunks: 2, earliest: 400}
		m2 = fakePartition{key: "m2", numChunks: 1, earliest: 500}
		p1 = fakePartition{key: "p1", numChunks: 3, earliest: 1000}
		p2 = fakePartition{key: "p2", numChunks: 3, earliest: 1000}
		p3 = fakePartition{key: "p3", numChunks: 3, earliest: 1000}
	)

	index := NewMockPartitionIndex(ctrl)
	index.EXPECT().
		IteratePartitions(gomock.Any(), gomock.Any()).
		Return([]ReadablePartition{m1, p1, m2, p2, p3}, nil)

	// One cold read covers all three gaps.
	store := NewMockColumnStore(ctrl)
	store.EXPECT().
		ReadRawPartitions(gomock.Any(), testScanDataset, []int{0, 1},
			gomock.Any(), NewRowKeyChunkScan(500, 999)).
		Return(newSliceRawIterator(testRaw("p1"), testRaw("p2"), testRaw("p3")), nil)

	maker := NewMockPartitionMaker(ctrl)
	maker.EXPECT().
		PopulateRawChunks(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, raw RawPartition) (ReadablePartition, error) {
			return fakePartition{key: raw.Key, numChunks: 4, earliest: 500}, nil
		}).
		Times(3)

	opts := NewOptions().
		SetColumnStore(store).
		SetPartitionMaker(maker).
		SetMultiPartitionEnabled(true)
	pager := newTestPager(t, index, opts)

	it, err := pager.Scan(context.Background(), []int{0, 1},
		NewFilteredPartitionScan(`app="api"`), NewRowKeyChunkScan(500, 2000))
	require.NoError(t, err)

	keys, err := drain(t, it)
	require.NoError(t, err)
	require.Len(t, keys, 5)

	// Fully resident partitions come out before any paged partition.
	assert.Equal(t, []PartitionKey{"m1", "m2"}, keys[:2])
	assert.ElementsMatch(t, []PartitionKey{"p1", "p2", "p3"}, keys[2:])
}

func TestScanPerPartitionBoundedParallelism(t *testing.T) {
	defer leaktest.Check(t)()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	parts := make([]ReadablePartition, 0, 6)
	for _, key := range []PartitionKey{"a", "b", "c", "d", "e", "f"} {
		parts = append(parts, fakePartition{key: key, numChunks: 1, earliest: 1000})
	}

	index := NewMockPartitionIndex(ctrl)
	index.EXPECT().IteratePartitions(gomock.Any(), gomock.Any()).Return(parts, nil)

	var (
		inFlight    = atomic.NewInt64(0)
		maxInFlight = atomic.NewInt64(0)
	)
	store := NewMockColumnStore(ctrl)
	store.EXPECT().
		ReadRawPartitions(gomock.Any(), testScanDataset, gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(
			_ context.Context,
			_ shard.DatasetRef,
			_ []int,
			partMethod PartitionScanMethod,
			_ ChunkScanMethod,
		) (RawPartitionIterator, error) {
			n := inFlight.Inc()
			for {
				m := maxInFlight.Load()
				if n <= m || maxInFlight.CAS(m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Dec()
			require.Equal(t, SinglePartitionScan, partMethod.Kind)
			return newSliceRawIterator(testRaw(partMethod.Key)), nil
		}).
		Times(6)

	maker := NewMockPartitionMaker(ctrl)
	maker.EXPECT().
		PopulateRawChunks(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, raw RawPartition) (ReadablePartition, error) {
			return fakePartition{key: raw.Key, numChunks: 2, earliest: 500}, nil
		}).
		Times(6)

	opts := NewOptions().
		SetColumnStore(store).
		SetPartitionMaker(maker).
		SetDemandPagingParallelism(2)
	pager := newTestPager(t, index, opts)

	it, err := pager.Scan(context.Background(), nil,
		NewFilteredPartitionScan(`app="api"`), NewRowKeyChunkScan(500, 2000))
	require.NoError(t, err)

	keys, err := drain(t, it)
	require.NoError(t, err)
	assert.ElementsMatch(t, []PartitionKey{"a", "b", "c", "d", "e", "f"}, keys)
	assert.True(t, maxInFlight.Load() <= 2, "max in flight %d", maxInFlight.Load())
}

func TestScanEmptyFetchFallsBackToResident(t *testing.T) {
	defer leaktest.Check(t)()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var (
		missing = fakePartition{key: "missing", numChunks: 1, earliest: 1000}
		empty   = fakePartition{key: "empty", numChunks: 1, earliest: 1000}
	)

	index := NewMockPartitionIndex(ctrl)
	index.EXPECT().
		IteratePartitions(gomock.Any(), gomock.Any()).
		Return([]ReadablePartition{missing, empty}, nil)

	// Cold storage has nothing for one key and an empty result for the
	// other. Neither reaches the materializer.
	store := NewMockColumnStore(ctrl)
	store.EXPECT().
		ReadRawPartitions(gomock.Any(), testScanDataset, gomock.Any(), gomock.Any(), gomock.Any()).
		Return(newSliceRawIterator(RawPartition{Key: "empty"}), nil)

	maker := NewMockPartitionMaker(ctrl)

	opts := NewOptions().
		SetColumnStore(store).
		SetPartitionMaker(maker).
		SetMultiPartitionEnabled(true)
	pager := newTestPager(t, index, opts)

	it, err := pager.Scan(context.Background(), nil,
		NewFilteredPartitionScan(`app="api"`), NewRowKeyChunkScan(500, 2000))
	require.NoError(t, err)

	keys, err := drain(t, it)
	require.NoError(t, err)
	assert.Equal(t, []PartitionKey{"missing", "empty"}, keys)
}

func TestScanEvictionDeclineFallsBackToResident(t *testing.T) {
	defer leaktest.Check(t)()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	p1 := fakePartition{key: "p1", numChunks: 1, earliest: 1000}

	index := NewMockPartitionIndex(ctrl)
	index.EXPECT().
		IteratePartitions(gomock.Any(), gomock.Any()).
		Return([]ReadablePartition{p1}, nil)

	store := NewMockColumnStore(ctrl)
	store.EXPECT().
		ReadRawPartitions(gomock.Any(), testScanDataset, gomock.Any(), gomock.Any(), gomock.Any()).
		Return(newSliceRawIterator(testRaw("p1")), nil)

	maker := NewMockPartitionMaker(ctrl)

	eviction := NewMockPartitionEvictionPolicy(ctrl)
	eviction.EXPECT().CanAccept(1).Return(false)

	opts := NewOptions().
		SetColumnStore(store).
		SetPartitionMaker(maker).
		SetPartitionEvictionPolicy(eviction)
	pager := newTestPager(t, index, opts)

	it, err := pager.Scan(context.Background(), nil,
		NewSinglePartitionScan("p1"), NewRowKeyChunkScan(500, 2000))
	require.NoError(t, err)

	keys, err := drain(t, it)
	require.NoError(t, err)
	assert.Equal(t, []PartitionKey{"p1"}, keys)
}

func TestScanColdReadFailureAbortsScan(t *testing.T) {
	defer leaktest.Check(t)()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var (
		errRead = errors.New("object store unavailable")
		p1      = fakePartition{key: "p1", numChunks: 1, earliest: 1000}
		p2      = fakePartition{key: "p2", numChunks: 1, earliest: 1000}
	)

	index := NewMockPartitionIndex(ctrl)
	index.EXPECT().
		IteratePartitions(gomock.Any(), gomock.Any()).
		Return([]ReadablePartition{p1, p2}, nil)

	store := NewMockColumnStore(ctrl)
	store.EXPECT().
		ReadRawPartitions(gomock.Any(), testScanDataset, gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errRead).
		AnyTimes()

	maker := NewMockPartitionMaker(ctrl)

	opts := NewOptions().
		SetColumnStore(store).
		SetPartitionMaker(maker)
	pager := newTestPager(t, index, opts)

	it, err := pager.Scan(context.Background(), nil,
		NewFilteredPartitionScan(`app="api"`), NewRowKeyChunkScan(500, 2000))
	require.NoError(t, err)

	_, err = drain(t, it)
	require.Equal(t, errRead, err)
}

func TestScanRawIteratorErrorAbortsScan(t *testing.T) {
	defer leaktest.Check(t)()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var (
		errStream = errors.New("truncated chunk stream")
		p1        = fakePartition{key: "p1", numChunks: 1, earliest: 1000}
	)

	index := NewMockPartitionIndex(ctrl)
	index.EXPECT().
		IteratePartitions(gomock.Any(), gomock.Any()).
		Return([]ReadablePartition{p1}, nil)

	store := NewMockColumnStore(ctrl)
	store.EXPECT().
		ReadRawPartitions(gomock.Any(), testScanDataset, gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&sliceRawIterator{idx: -1, err: errStream}, nil)

	maker := NewMockPartitionMaker(ctrl)

	opts := NewOptions().
		SetColumnStore(store).
		SetPartitionMaker(maker).
		SetMultiPartitionEnabled(true)
	pager := newTestPager(t, index, opts)

	it, err := pager.Scan(context.Background(), nil,
		NewSinglePartitionScan("p1"), NewRowKeyChunkScan(500, 2000))
	require.NoError(t, err)

	_, err = drain(t, it)
	require.Equal(t, errStream, err)
}

func TestScanInMemoryKindNeverTouchesColdStorage(t *testing.T) {
	defer leaktest.Check(t)()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var (
		p1 = fakePartition{key: "p1", numChunks: 1, earliest: 1000}
		p2 = fakePartition{key: "p2", numChunks: 0, earliest: 0}
	)

	index := NewMockPartitionIndex(ctrl)
	index.EXPECT().
		IteratePartitions(gomock.Any(), gomock.Any()).
		Return([]ReadablePartition{p1, p2}, nil)

	store := NewMockColumnStore(ctrl)
	maker := NewMockPartitionMaker(ctrl)

	opts := NewOptions().
		SetColumnStore(store).
		SetPartitionMaker(maker)
	pager := newTestPager(t, index, opts)

	it, err := pager.Scan(context.Background(), nil,
		NewFilteredPartitionScan(`app="api"`), NewInMemoryChunkScan())
	require.NoError(t, err)

	keys, err := drain(t, it)
	require.NoError(t, err)
	assert.Equal(t, []PartitionKey{"p1", "p2"}, keys)
}

func TestScanIndexErrorFailsFast(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	errIndex := errors.New("index rebuild in progress")

	index := NewMockPartitionIndex(ctrl)
	index.EXPECT().
		IteratePartitions(gomock.Any(), gomock.Any()).
		Return(nil, errIndex)

	opts := NewOptions().
		SetColumnStore(NewMockColumnStore(ctrl)).
		SetPartitionMaker(NewMockPartitionMaker(ctrl))
	pager := newTestPager(t, index, opts)

	_, err := pager.Scan(context.Background(), nil,
		NewSinglePartitionScan("p1"), NewAllChunkScan())
	require.Equal(t, errIndex, err)
}

func TestScanCloseCancelsProduction(t *testing.T) {
	defer leaktest.Check(t)()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	parts := make([]ReadablePartition, 0, 8)
	for i := 0; i < 8; i++ {
		parts = append(parts, fakePartition{
			key: PartitionKey('a' + rune(i)), numChunks: 1, earliest: 400,
		})
	}

	index := NewMockPartitionIndex(ctrl)
	index.EXPECT().IteratePartitions(gomock.Any(), gomock.Any()).Return(parts, nil)

	opts := NewOptions().
		SetColumnStore(NewMockColumnStore(ctrl)).
		SetPartitionMaker(NewMockPartitionMaker(ctrl)).
		SetResultBufferSize(1)
	pager := newTestPager(t, index, opts)

	it, err := pager.Scan(context.Background(), nil,
		NewFilteredPartitionScan(`app="api"`), NewRowKeyChunkScan(500, 2000))
	require.NoError(t, err)

	require.True(t, it.Next())
	require.NoError(t, it.Close())
	require.NoError(t, it.Err())
}

func TestOptionsValidate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	require.Equal(t, errNoColumnStore, NewOptions().Validate())

	opts := NewOptions().SetColumnStore(NewMockColumnStore(ctrl))
	require.Equal(t, errNoPartitionMaker, opts.Validate())

	opts = opts.SetPartitionMaker(NewMockPartitionMaker(ctrl))
	require.NoError(t, opts.Validate())

	require.Equal(t, errNonPositiveParallelism,
		opts.SetDemandPagingParallelism(0).Validate())
	require.Equal(t, errNonPositiveBufferSize,
		opts.SetResultBufferSize(0).Validate())
}
