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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stratumdb/stratum/src/cluster/shard"
	"github.com/stratumdb/stratum/src/x/instrument"
)

const (
	testDataset = shard.DatasetRef("telemetry")
	testNode    = shard.NodeID("node-3")
)

func testState(t *testing.T, version int64, owned ...uint32) IngestionState {
	m, err := shard.NewMapper(testDataset, 8)
	require.NoError(t, err)
	for _, id := range owned {
		require.NoError(t, m.Apply(shard.NewIngestionStarted(testDataset, id, testNode)))
	}
	return IngestionState{
		Version:  version,
		Dataset:  testDataset,
		Snapshot: m.CurrentSnapshot(),
	}
}

func TestReceiverAppliesInOrder(t *testing.T) {
	var applied []int64
	r := NewReceiver(func(state IngestionState) {
		applied = append(applied, state.Version)
	}, instrument.NewOptions())

	require.True(t, r.Receive(testState(t, 1, 0)))
	require.True(t, r.Receive(testState(t, 2, 0, 1)))
	require.True(t, r.Receive(testState(t, 5, 0, 1, 2)))
	require.Equal(t, []int64{1, 2, 5}, applied)

	version, ok := r.LastApplied(testDataset)
	require.True(t, ok)
	require.Equal(t, int64(5), version)
}

func TestReceiverDiscardsStaleAndDuplicate(t *testing.T) {
	var applied []int64
	r := NewReceiver(func(state IngestionState) {
		applied = append(applied, state.Version)
	}, instrument.NewOptions())

	require.True(t, r.Receive(testState(t, 3)))
	// Duplicate redelivery.
	require.False(t, r.Receive(testState(t, 3)))
	// Out of order stale delivery.
	require.False(t, r.Receive(testState(t, 2)))
	require.Equal(t, []int64{3}, applied)

	version, _ := r.LastApplied(testDataset)
	require.Equal(t, int64(3), version)
}

func TestReceiverForceApply(t *testing.T) {
	var applied []int64
	r := NewReceiver(func(state IngestionState) {
		applied = append(applied, state.Version)
	}, instrument.NewOptions())

	require.True(t, r.Receive(testState(t, 7)))

	// A forced snapshot always applies but never blocks future versions.
	require.True(t, r.Receive(testState(t, ForceApplyVersion)))
	version, ok := r.LastApplied(testDataset)
	require.True(t, ok)
	require.Equal(t, int64(7), version)

	require.True(t, r.Receive(testState(t, 8)))
	require.Equal(t, []int64{7, 0, 8}, applied)
}

func TestReceiverForceApplyBeforeAnyVersion(t *testing.T) {
	var applied int
	r := NewReceiver(func(IngestionState) { applied++ }, instrument.NewOptions())

	require.True(t, r.Receive(testState(t, ForceApplyVersion)))
	_, ok := r.LastApplied(testDataset)
	require.False(t, ok)

	// Any real version is still accepted afterwards.
	require.True(t, r.Receive(testState(t, 1)))
	require.Equal(t, 2, applied)
}

func TestReceiverTracksDatasetsIndependently(t *testing.T) {
	r := NewReceiver(func(IngestionState) {}, instrument.NewOptions())

	require.True(t, r.Receive(testState(t, 5)))

	other := testState(t, 1)
	other.Dataset = "other"
	other.Snapshot.Dataset = "other"
	require.True(t, r.Receive(other))

	version, _ := r.LastApplied(testDataset)
	require.Equal(t, int64(5), version)
	version, _ = r.LastApplied("other")
	require.Equal(t, int64(1), version)
}

func TestReceiverAppliesToLocalMapper(t *testing.T) {
	local, err := shard.NewMapper(testDataset, 8)
	require.NoError(t, err)
	r := NewReceiver(func(state IngestionState) {
		require.NoError(t, local.ApplySnapshot(state.Snapshot))
	}, instrument.NewOptions())

	require.True(t, r.Receive(testState(t, 1, 2, 4)))
	require.Equal(t, []uint32{2, 4}, local.OwnedShards())

	require.True(t, r.Receive(testState(t, 2, 2)))
	require.Equal(t, []uint32{2}, local.OwnedShards())
}
