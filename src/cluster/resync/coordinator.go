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

package resync

import (
	"errors"
	"sync"

	"github.com/uber-go/tally"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/stratumdb/stratum/src/cluster/shard"
	"github.com/stratumdb/stratum/src/x/instrument"
)

const defaultSubscriptionBuffer = 1024

var (
	errDatasetNotDeployed     = errors.New("dataset not deployed")
	errDatasetAlreadyDeployed = errors.New("dataset already deployed")
)

type coordinatorMetrics struct {
	published      tally.Counter
	publishErrors  tally.Counter
	eventsApplied  tally.Counter
	eventsDropped  tally.Counter
	datasetsActive tally.Gauge
}

func newCoordinatorMetrics(scope tally.Scope) coordinatorMetrics {
	scope = scope.SubScope("shard-coordinator")
	return coordinatorMetrics{
		published:      scope.Counter("published"),
		publishErrors:  scope.Counter("publish-errors"),
		eventsApplied:  scope.Counter("events-applied"),
		eventsDropped:  scope.Counter("events-dropped"),
		datasetsActive: scope.Gauge("datasets-active"),
	}
}

type datasetState struct {
	mapper  *shard.Mapper
	version *atomic.Int64
	subs    map[int]chan shard.Event
	nextSub int
}

// Coordinator owns one shard mapper per deployed dataset. It is the single
// mutator of each mapper: it applies shard events, fans them out to
// subscribers, and publishes versioned full-map broadcasts after every
// change. Snapshot queries are answered from copy-on-read views.
type Coordinator struct {
	mu        sync.RWMutex
	writer    Writer
	metaStore MetaStore
	datasets  map[shard.DatasetRef]*datasetState
	metrics   coordinatorMetrics
	log       *zap.Logger
}

// NewCoordinator creates a coordinator broadcasting through the given
// writer. The meta store is optional; pass nil to skip version persistence.
func NewCoordinator(writer Writer, metaStore MetaStore, iopts instrument.Options) *Coordinator {
	return &Coordinator{
		writer:    writer,
		metaStore: metaStore,
		datasets:  make(map[shard.DatasetRef]*datasetState),
		metrics:   newCoordinatorMetrics(iopts.MetricsScope()),
		log:       iopts.Logger(),
	}
}

// DeployDataset registers a dataset with a fixed shard count. If a meta
// store is configured the broadcast version resumes past the highest version
// already published.
func (c *Coordinator) DeployDataset(dataset shard.DatasetRef, numShards int) error {
	mapper, err := shard.NewMapper(dataset, numShards)
	if err != nil {
		return err
	}

	version := int64(0)
	if c.metaStore != nil {
		version, err = c.metaStore.ReadHighestVersion(dataset)
		if err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.datasets[dataset]; ok {
		return errDatasetAlreadyDeployed
	}
	c.datasets[dataset] = &datasetState{
		mapper:  mapper,
		version: atomic.NewInt64(version),
		subs:    make(map[int]chan shard.Event),
	}
	c.metrics.datasetsActive.Update(float64(len(c.datasets)))
	c.log.Info("deployed dataset",
		zap.String("dataset", string(dataset)),
		zap.Int("numShards", numShards),
		zap.Int64("resumeVersion", version))
	return nil
}

// UndeployDataset discards a dataset's mapper and closes its subscriptions.
func (c *Coordinator) UndeployDataset(dataset shard.DatasetRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.datasets[dataset]
	if !ok {
		return errDatasetNotDeployed
	}
	for _, ch := range state.subs {
		close(ch)
	}
	state.subs = nil
	delete(c.datasets, dataset)
	c.metrics.datasetsActive.Update(float64(len(c.datasets)))
	c.log.Info("undeployed dataset", zap.String("dataset", string(dataset)))
	return nil
}

// ApplyEvent applies a shard event to its dataset's mapper, notifies
// subscribers, and broadcasts the updated full map under the next version.
func (c *Coordinator) ApplyEvent(ev shard.Event) error {
	c.mu.RLock()
	state, ok := c.datasets[ev.Dataset]
	c.mu.RUnlock()
	if !ok {
		return errDatasetNotDeployed
	}

	if err := state.mapper.Apply(ev); err != nil {
		return err
	}
	c.metrics.eventsApplied.Inc(1)

	c.mu.RLock()
	for _, ch := range state.subs {
		select {
		case ch <- ev:
		default:
			// A subscriber that cannot keep up loses events; it can
			// resubscribe to obtain a fresh snapshot.
			c.metrics.eventsDropped.Inc(1)
			c.log.Warn("dropped shard event for slow subscriber",
				zap.String("dataset", string(ev.Dataset)),
				zap.Stringer("event", ev))
		}
	}
	c.mu.RUnlock()

	return c.publish(state, ev.Dataset, state.version.Inc())
}

// ForceResync broadcasts the dataset's current map with the force-apply
// sentinel version, making every receiver apply it unconditionally without
// advancing their version ordering.
func (c *Coordinator) ForceResync(dataset shard.DatasetRef) error {
	c.mu.RLock()
	state, ok := c.datasets[dataset]
	c.mu.RUnlock()
	if !ok {
		return errDatasetNotDeployed
	}
	return c.publish(state, dataset, ForceApplyVersion)
}

func (c *Coordinator) publish(state *datasetState, dataset shard.DatasetRef, version int64) error {
	c.mu.RLock()
	_, deployed := c.datasets[dataset]
	c.mu.RUnlock()
	if !deployed {
		return errDatasetNotDeployed
	}

	msg := IngestionState{
		Version:  version,
		Dataset:  dataset,
		Snapshot: state.mapper.CurrentSnapshot(),
	}
	if err := c.writer.Write(msg); err != nil {
		c.metrics.publishErrors.Inc(1)
		return err
	}
	c.metrics.published.Inc(1)

	if c.metaStore != nil && version != ForceApplyVersion {
		if err := c.metaStore.WriteHighestVersion(dataset, version); err != nil {
			// Best effort: a stale persisted version only widens the resume
			// gap after restart.
			c.log.Warn("failed to persist resync version",
				zap.String("dataset", string(dataset)),
				zap.Int64("version", version),
				zap.Error(err))
		}
	}
	return nil
}

// CurrentSnapshot returns the full per-shard view of a deployed dataset.
func (c *Coordinator) CurrentSnapshot(dataset shard.DatasetRef) (shard.CurrentSnapshot, error) {
	c.mu.RLock()
	state, ok := c.datasets[dataset]
	c.mu.RUnlock()
	if !ok {
		return shard.CurrentSnapshot{}, errDatasetNotDeployed
	}
	return state.mapper.CurrentSnapshot(), nil
}

// ShardMapV2 returns the compressed ownership-only snapshot of a deployed
// dataset.
func (c *Coordinator) ShardMapV2(dataset shard.DatasetRef, replicaCount int32, hostFormat string) (shard.MapperV2, error) {
	c.mu.RLock()
	state, ok := c.datasets[dataset]
	c.mu.RUnlock()
	if !ok {
		return shard.MapperV2{}, errDatasetNotDeployed
	}
	return shard.NewMapperV2(state.mapper, replicaCount, hostFormat), nil
}

// Subscription is a live feed of one dataset's shard events. The channel
// first carries the minimal event sequence reproducing each shard's status
// at subscription time, then live events.
type Subscription struct {
	// Snapshot is the full map at subscription time.
	Snapshot shard.CurrentSnapshot

	// C receives replayed then live events. Closed on Close or undeploy.
	C <-chan shard.Event

	closeOnce sync.Once
	closeFn   func()
}

// Close cancels the subscription.
func (s *Subscription) Close() {
	s.closeOnce.Do(s.closeFn)
}

// Subscribe returns a subscription primed with the minimal events that
// reproduce the dataset's current state, so a new observer replays a
// constant number of events per shard.
func (c *Coordinator) Subscribe(dataset shard.DatasetRef) (*Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.datasets[dataset]
	if !ok {
		return nil, errDatasetNotDeployed
	}

	snap := state.mapper.CurrentSnapshot()
	buffer := defaultSubscriptionBuffer
	if min := 2*snap.NumShards() + 16; min > buffer {
		buffer = min
	}
	ch := make(chan shard.Event, buffer)
	for i, status := range snap.Statuses {
		for _, ev := range shard.MinimalEvents(status, dataset, uint32(i), snap.Nodes[i]) {
			ch <- ev
		}
	}

	id := state.nextSub
	state.nextSub++
	state.subs[id] = ch

	return &Subscription{
		Snapshot: snap,
		C:        ch,
		closeFn: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if cur, ok := c.datasets[dataset]; ok {
				if sub, ok := cur.subs[id]; ok {
					delete(cur.subs, id)
					close(sub)
				}
			}
		},
	}, nil
}
