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

// Package resync implements the versioned full-state shard map broadcast
// that reconciles distributed views of shard ownership. A full snapshot is
// idempotent under at-least-once redelivery by construction, so no per-event
// reconciliation is needed.
package resync

import (
	"github.com/stratumdb/stratum/src/cluster/shard"
)

// ForceApplyVersion is the sentinel version meaning "apply unconditionally".
// A forced snapshot does not advance version ordering, so it never blocks
// future real versions.
const ForceApplyVersion int64 = 0

// IngestionState is the authoritative full shard map broadcast for one
// dataset. Version is a per-dataset monotonic counter.
type IngestionState struct {
	Version  int64
	Dataset  shard.DatasetRef
	Snapshot shard.CurrentSnapshot
}

// Writer delivers an ingestion state broadcast to the cluster transport.
// Delivery may be at-least-once and out of order; receivers tolerate both.
type Writer interface {
	Write(state IngestionState) error
}

// MetaStore persists the highest published resync version per dataset so a
// restarted coordinator resumes from a version newer than anything already
// broadcast.
type MetaStore interface {
	// WriteHighestVersion records the highest published version for a dataset.
	WriteHighestVersion(dataset shard.DatasetRef, version int64) error

	// ReadHighestVersion returns the highest recorded version for a dataset,
	// or zero if none was recorded.
	ReadHighestVersion(dataset shard.DatasetRef) (int64, error)
}

// ApplyFn is invoked with each accepted ingestion state.
type ApplyFn func(state IngestionState)
