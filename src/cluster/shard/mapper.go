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

package shard

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	errNumShardsNonPositive = errors.New("number of shards must be positive")
	errShardOutOfRange      = errors.New("shard index out of range")
	errDatasetMismatch      = errors.New("event dataset does not match mapper dataset")
	errSnapshotShape        = errors.New("snapshot shard count does not match mapper")
)

// Mapper tracks the status and owning node of every shard in one dataset.
// The number of shards is fixed at creation. A mapper is mutated only by its
// dataset's coordinator; every read hands out copies, so snapshots need no
// lock beyond the consistent-read guarantee here.
type Mapper struct {
	mu       sync.RWMutex
	dataset  DatasetRef
	statuses []Status
	nodes    []NodeID
}

// NewMapper creates a mapper with all shards unassigned.
func NewMapper(dataset DatasetRef, numShards int) (*Mapper, error) {
	if numShards <= 0 {
		return nil, errNumShardsNonPositive
	}
	return &Mapper{
		dataset:  dataset,
		statuses: make([]Status, numShards),
		nodes:    make([]NodeID, numShards),
	}, nil
}

// Dataset returns the dataset the mapper belongs to.
func (m *Mapper) Dataset() DatasetRef {
	return m.dataset
}

// NumShards returns the fixed number of shards in the dataset.
func (m *Mapper) NumShards() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.statuses)
}

// Status returns the status of a shard.
func (m *Mapper) Status(shard uint32) (Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if int(shard) >= len(m.statuses) {
		return Status{}, errShardOutOfRange
	}
	return m.statuses[shard], nil
}

// Node returns the owning node of a shard, which is the zero NodeID while
// the shard is unassigned.
func (m *Mapper) Node(shard uint32) (NodeID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if int(shard) >= len(m.nodes) {
		return "", errShardOutOfRange
	}
	return m.nodes[shard], nil
}

// Apply transitions a shard to the status the event resolves to and records
// the owning node the event carries.
func (m *Mapper) Apply(ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev.Dataset != m.dataset {
		return errDatasetMismatch
	}
	if int(ev.Shard) >= len(m.statuses) {
		return errShardOutOfRange
	}
	m.statuses[ev.Shard] = ev.Status()
	if ev.Node != "" {
		m.nodes[ev.Shard] = ev.Node
	}
	return nil
}

// ApplySnapshot replaces the mapper's contents with a full snapshot. Used on
// the receiving side of a resync broadcast.
func (m *Mapper) ApplySnapshot(snap CurrentSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if snap.Dataset != m.dataset {
		return errDatasetMismatch
	}
	if len(snap.Statuses) != len(m.statuses) || len(snap.Nodes) != len(m.nodes) {
		return errSnapshotShape
	}
	copy(m.statuses, snap.Statuses)
	copy(m.nodes, snap.Nodes)
	return nil
}

// OwnedShards returns the shard indices with a non-unassigned owner, in
// ascending order.
func (m *Mapper) OwnedShards() []uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []uint32
	for i, s := range m.statuses {
		if s.Owned() {
			ids = append(ids, uint32(i))
		}
	}
	return ids
}

// ShardsForCode returns the shard indices currently in a given status code,
// in ascending order.
func (m *Mapper) ShardsForCode(code Code) []uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []uint32
	for i, s := range m.statuses {
		if s.Code == code {
			ids = append(ids, uint32(i))
		}
	}
	return ids
}

// NumShardsForCode returns the number of shards in a given status code.
func (m *Mapper) NumShardsForCode(code Code) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, s := range m.statuses {
		if s.Code == code {
			count++
		}
	}
	return count
}

// Clone returns a deep copy of the mapper.
func (m *Mapper) Clone() *Mapper {
	m.mu.RLock()
	defer m.mu.RUnlock()
	clone := &Mapper{
		dataset:  m.dataset,
		statuses: make([]Status, len(m.statuses)),
		nodes:    make([]NodeID, len(m.nodes)),
	}
	copy(clone.statuses, m.statuses)
	copy(clone.nodes, m.nodes)
	return clone
}

// Equals reports whether two mappers hold the same dataset, statuses and
// owners.
func (m *Mapper) Equals(other *Mapper) bool {
	snap, otherSnap := m.CurrentSnapshot(), other.CurrentSnapshot()
	if snap.Dataset != otherSnap.Dataset || len(snap.Statuses) != len(otherSnap.Statuses) {
		return false
	}
	for i := range snap.Statuses {
		if snap.Statuses[i] != otherSnap.Statuses[i] || snap.Nodes[i] != otherSnap.Nodes[i] {
			return false
		}
	}
	return true
}

// CurrentSnapshot returns a full copy-on-read view of the mapper.
func (m *Mapper) CurrentSnapshot() CurrentSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := CurrentSnapshot{
		Dataset:  m.dataset,
		Statuses: make([]Status, len(m.statuses)),
		Nodes:    make([]NodeID, len(m.nodes)),
	}
	copy(snap.Statuses, m.statuses)
	copy(snap.Nodes, m.nodes)
	return snap
}

// String returns the string representation of the mapper.
func (m *Mapper) String() string {
	var strs []string
	for _, code := range Codes() {
		strs = append(strs, fmt.Sprintf("%s=%v", code, m.ShardsForCode(code)))
	}
	return fmt.Sprintf("[%s]", strings.Join(strs, ", "))
}

// CurrentSnapshot is the full, uncompressed per-shard view of one dataset's
// map, sent once to a newly subscribed consumer that needs complete status
// detail.
type CurrentSnapshot struct {
	Dataset  DatasetRef
	Statuses []Status
	Nodes    []NodeID
}

// NumShards returns the number of shards in the snapshot.
func (s CurrentSnapshot) NumShards() int {
	return len(s.Statuses)
}
