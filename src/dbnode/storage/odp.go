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
	"sync"

	"github.com/uber-go/tally"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/stratumdb/stratum/src/cluster/shard"
	"github.com/stratumdb/stratum/src/x/clock"
	xsync "github.com/stratumdb/stratum/src/x/sync"
)

var errNoPartitionIndex = errors.New("no partition index configured")

type pagerMetrics struct {
	servedFromMemory tally.Counter
	paged            tally.Counter
	emptyFetches     tally.Counter
	evictionDeclined tally.Counter
	fetchErrors      tally.Counter
	fetchLatency     tally.Timer
}

func newPagerMetrics(scope tally.Scope) pagerMetrics {
	return pagerMetrics{
		servedFromMemory: scope.Counter("served-from-memory"),
		paged:            scope.Counter("paged"),
		emptyFetches:     scope.Counter("empty-fetches"),
		evictionDeclined: scope.Counter("eviction-declined"),
		fetchErrors:      scope.Counter("fetch-errors"),
		fetchLatency:     scope.Timer("fetch-latency"),
	}
}

type pager struct {
	dataset        shard.DatasetRef
	index          PartitionIndex
	store          ColumnStore
	maker          PartitionMaker
	eviction       PartitionEvictionPolicy
	multiPartition bool
	parallelism    int64
	bufferSize     int

	// materialize has exactly one worker so PopulateRawChunks never runs
	// under two writers.
	materialize xsync.WorkerPool

	nowFn   clock.NowFn
	metrics pagerMetrics
	log     *zap.Logger
}

// NewOnDemandPager creates a pager over one shard's partitions.
func NewOnDemandPager(
	dataset shard.DatasetRef,
	shardID uint32,
	index PartitionIndex,
	opts Options,
) (OnDemandPager, error) {
	if opts == nil {
		opts = NewOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if index == nil {
		return nil, errNoPartitionIndex
	}
	materialize := xsync.NewWorkerPool(1)
	materialize.Init()
	iopts := opts.InstrumentOptions()
	return &pager{
		dataset:        dataset,
		index:          index,
		store:          opts.ColumnStore(),
		maker:          opts.PartitionMaker(),
		eviction:       opts.PartitionEvictionPolicy(),
		multiPartition: opts.MultiPartitionEnabled(),
		parallelism:    int64(opts.DemandPagingParallelism()),
		bufferSize:     opts.ResultBufferSize(),
		materialize:    materialize,
		nowFn:          opts.ClockOptions().NowFn(),
		metrics:        newPagerMetrics(iopts.MetricsScope().SubScope("odp")),
		log: iopts.Logger().With(
			zap.String("dataset", string(dataset)),
			zap.Uint32("shard", shardID),
		),
	}, nil
}

// pageCandidate is a resident partition whose query range extends past its
// resident chunks, paired with the cold scan that fills the gap.
type pageCandidate struct {
	partition ReadablePartition
	fetch     ChunkScanMethod
}

func (p *pager) Scan(
	ctx context.Context,
	columnIDs []int,
	partMethod PartitionScanMethod,
	chunkMethod ChunkScanMethod,
) (PartitionIterator, error) {
	resident, err := p.index.IteratePartitions(partMethod, chunkMethod)
	if err != nil {
		return nil, err
	}

	var (
		inMemory []ReadablePartition
		toPage   []pageCandidate
	)
	for _, part := range resident {
		fetch, needed := chunksToFetch(part, chunkMethod)
		if !needed {
			inMemory = append(inMemory, part)
			continue
		}
		toPage = append(toPage, pageCandidate{partition: part, fetch: fetch})
	}

	it := newPartitionIterator(ctx, p.bufferSize)
	go p.produce(it, columnIDs, partMethod, len(resident), inMemory, toPage)
	return it, nil
}

func (p *pager) produce(
	it *partitionIterator,
	columnIDs []int,
	partMethod PartitionScanMethod,
	residentCount int,
	inMemory []ReadablePartition,
	toPage []pageCandidate,
) {
	defer it.finish()

	// Fully resident partitions go out first, before any cold read returns.
	for _, part := range inMemory {
		p.metrics.servedFromMemory.Inc(1)
		if !it.push(part) {
			return
		}
	}
	if len(toPage) == 0 {
		return
	}
	if p.multiPartition {
		p.pageAll(it, columnIDs, partMethod, residentCount, toPage)
		return
	}
	p.pageEach(it, columnIDs, residentCount, toPage)
}

// pageAll fetches every candidate's gap with one cold read bounded by the
// union of their ranges, then materializes the results one by one.
func (p *pager) pageAll(
	it *partitionIterator,
	columnIDs []int,
	partMethod PartitionScanMethod,
	residentCount int,
	toPage []pageCandidate,
) {
	methods := make([]ChunkScanMethod, 0, len(toPage))
	for _, c := range toPage {
		methods = append(methods, c.fetch)
	}

	raws, err := p.readRaw(it.ctx, columnIDs, partMethod, boundingScan(methods))
	if err != nil {
		it.fail(err)
		return
	}

	byKey := make(map[PartitionKey]RawPartition, len(raws))
	for _, raw := range raws {
		byKey[raw.Key] = raw
	}

	for _, c := range toPage {
		raw, ok := byKey[c.partition.Key()]
		if !ok {
			p.metrics.emptyFetches.Inc(1)
			if !it.push(c.partition) {
				return
			}
			continue
		}
		part, err := p.deliver(it.ctx, c.partition, raw, residentCount)
		if err != nil {
			it.fail(err)
			return
		}
		if !it.push(part) {
			return
		}
	}
}

// pageEach fetches each candidate's gap with its own cold read, at most
// parallelism reads in flight. A failed read fails the whole scan.
func (p *pager) pageEach(
	it *partitionIterator,
	columnIDs []int,
	residentCount int,
	toPage []pageCandidate,
) {
	var (
		sem = semaphore.NewWeighted(p.parallelism)
		wg  sync.WaitGroup
	)
	for _, c := range toPage {
		if err := sem.Acquire(it.ctx, 1); err != nil {
			break
		}
		c := c
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			key := c.partition.Key()
			raws, err := p.readRaw(it.ctx, columnIDs, NewSinglePartitionScan(key), c.fetch)
			if err != nil {
				it.fail(err)
				return
			}

			raw, ok := RawPartition{}, false
			for _, r := range raws {
				if r.Key == key {
					raw, ok = r, true
					break
				}
			}
			if !ok {
				p.metrics.emptyFetches.Inc(1)
				it.push(c.partition)
				return
			}

			part, err := p.deliver(it.ctx, c.partition, raw, residentCount)
			if err != nil {
				it.fail(err)
				return
			}
			it.push(part)
		}()
	}
	wg.Wait()
}

// readRaw performs one cold storage read and drains it into memory.
func (p *pager) readRaw(
	ctx context.Context,
	columnIDs []int,
	partMethod PartitionScanMethod,
	chunkMethod ChunkScanMethod,
) ([]RawPartition, error) {
	start := p.nowFn()
	rawIter, err := p.store.ReadRawPartitions(ctx, p.dataset, columnIDs, partMethod, chunkMethod)
	if err != nil {
		p.metrics.fetchErrors.Inc(1)
		p.log.Warn("cold storage read failed", zap.Error(err))
		return nil, err
	}

	var raws []RawPartition
	for rawIter.Next() {
		raws = append(raws, rawIter.Current())
	}
	err = rawIter.Err()
	if cerr := rawIter.Close(); err == nil {
		err = cerr
	}
	p.metrics.fetchLatency.Record(p.nowFn().Sub(start))
	if err != nil {
		p.metrics.fetchErrors.Inc(1)
		p.log.Warn("cold storage read failed", zap.Error(err))
		return nil, err
	}
	return raws, nil
}

// deliver materializes one fetched partition on the single materialization
// worker and returns the populated partition. Empty fetches and eviction
// pressure fall back to the resident partition as is.
func (p *pager) deliver(
	ctx context.Context,
	resident ReadablePartition,
	raw RawPartition,
	residentCount int,
) (ReadablePartition, error) {
	if len(raw.Chunks) == 0 {
		p.metrics.emptyFetches.Inc(1)
		return resident, nil
	}
	if !p.eviction.CanAccept(residentCount) {
		p.metrics.evictionDeclined.Inc(1)
		return resident, nil
	}

	var (
		part ReadablePartition
		err  error
		done = make(chan struct{})
	)
	scheduled := p.materialize.GoWithContext(ctx, func() {
		defer close(done)
		part, err = p.maker.PopulateRawChunks(ctx, raw)
	})
	if !scheduled {
		return nil, ctx.Err()
	}
	<-done
	if err != nil {
		return nil, err
	}
	p.metrics.paged.Inc(1)
	return part, nil
}

// partitionIterator hands scan results to a single consumer through a
// bounded buffer. The producer blocks once the buffer fills.
type partitionIterator struct {
	ctx    context.Context
	cancel context.CancelFunc
	ch     chan ReadablePartition

	current ReadablePartition

	mu     sync.Mutex
	err    error
	closed bool
}

func newPartitionIterator(ctx context.Context, buffer int) *partitionIterator {
	ctx, cancel := context.WithCancel(ctx)
	return &partitionIterator{
		ctx:    ctx,
		cancel: cancel,
		ch:     make(chan ReadablePartition, buffer),
	}
}

// push delivers a partition to the consumer, returning false once the scan
// has been canceled or failed.
func (it *partitionIterator) push(p ReadablePartition) bool {
	select {
	case it.ch <- p:
		return true
	case <-it.ctx.Done():
		return false
	}
}

// fail records the first error and cancels all in-flight work.
func (it *partitionIterator) fail(err error) {
	it.mu.Lock()
	if it.err == nil && !it.closed {
		it.err = err
	}
	it.mu.Unlock()
	it.cancel()
}

// finish marks the end of production. Called exactly once by the producer.
func (it *partitionIterator) finish() {
	it.mu.Lock()
	if it.err == nil && !it.closed {
		it.err = it.ctx.Err()
	}
	it.mu.Unlock()
	close(it.ch)
}

func (it *partitionIterator) Next() bool {
	part, ok := <-it.ch
	if !ok {
		it.current = nil
		return false
	}
	it.current = part
	return true
}

func (it *partitionIterator) Current() ReadablePartition {
	return it.current
}

func (it *partitionIterator) Err() error {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.err
}

func (it *partitionIterator) Close() error {
	it.mu.Lock()
	it.closed = true
	it.mu.Unlock()
	it.cancel()
	return nil
}
