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
	"sync"

	"github.com/uber-go/tally"
	"go.uber.org/zap"

	"github.com/stratumdb/stratum/src/cluster/shard"
	"github.com/stratumdb/stratum/src/x/instrument"
)

type receiverMetrics struct {
	applied tally.Counter
	forced  tally.Counter
	stale   tally.Counter
}

func newReceiverMetrics(scope tally.Scope) receiverMetrics {
	scope = scope.SubScope("resync")
	return receiverMetrics{
		applied: scope.Counter("applied"),
		forced:  scope.Counter("forced"),
		stale:   scope.Counter("stale"),
	}
}

// Receiver applies versioned full shard map broadcasts on an ingestion
// agent, tolerating duplicate and out of order delivery. Applies are
// serialized; the apply function runs with the receiver lock held.
type Receiver struct {
	mu          sync.Mutex
	lastApplied map[shard.DatasetRef]int64
	applyFn     ApplyFn
	metrics     receiverMetrics
	log         *zap.Logger
}

// NewReceiver creates a receiver delivering accepted states to applyFn.
func NewReceiver(applyFn ApplyFn, iopts instrument.Options) *Receiver {
	return &Receiver{
		lastApplied: make(map[shard.DatasetRef]int64),
		applyFn:     applyFn,
		metrics:     newReceiverMetrics(iopts.MetricsScope()),
		log:         iopts.Logger(),
	}
}

// Receive applies the state if it is forced, first for its dataset, or newer
// than the last applied version, and returns whether it was applied. Stale
// and duplicate deliveries are discarded silently: they are expected under
// at-least-once transports, not errors.
func (r *Receiver) Receive(state IngestionState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if state.Version == ForceApplyVersion {
		// A forced apply leaves version ordering untouched.
		r.applyFn(state)
		r.metrics.forced.Inc(1)
		r.log.Info("force applied shard map",
			zap.String("dataset", string(state.Dataset)))
		return true
	}

	last, seen := r.lastApplied[state.Dataset]
	if seen && state.Version <= last {
		r.metrics.stale.Inc(1)
		r.log.Debug("discarded stale shard map",
			zap.String("dataset", string(state.Dataset)),
			zap.Int64("version", state.Version),
			zap.Int64("lastApplied", last))
		return false
	}

	r.lastApplied[state.Dataset] = state.Version
	r.applyFn(state)
	r.metrics.applied.Inc(1)
	return true
}

// LastApplied returns the last applied non-forced version for a dataset and
// whether one exists.
func (r *Receiver) LastApplied(dataset shard.DatasetRef) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	version, ok := r.lastApplied[dataset]
	return version, ok
}
