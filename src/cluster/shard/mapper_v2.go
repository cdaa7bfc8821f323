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
)

var errBitmapLength = errors.New("bitmap length does not match shard count")

// MapperV2 is an immutable, compressed ownership-only snapshot of a shard
// map: O(numShards/8) bytes on the wire instead of one node reference per
// shard. Every non-unassigned sub-state (active, recovery, error, ...)
// collapses into a single owned bit; the snapshot answers ownership, not
// health. It is only meaningful under a host-naming based assignment
// strategy, conveyed out of band by HostFormat.
type MapperV2 struct {
	// ReplicaCount is the number of replicas per shard.
	ReplicaCount int32

	// NumShards is the fixed number of shards in the dataset.
	NumShards int32

	// HostFormat is the naming convention resolving shard index to host.
	HostFormat string

	// Bitmap holds ceil(NumShards/8) bytes. Bit i, most significant bit
	// first within each byte, is set iff shard i has an owner recorded.
	Bitmap []byte
}

// NewMapperV2 encodes the mapper's current ownership into a compressed
// snapshot.
func NewMapperV2(m *Mapper, replicaCount int32, hostFormat string) MapperV2 {
	snap := m.CurrentSnapshot()
	numShards := snap.NumShards()
	bitmap := make([]byte, (numShards+7)/8)
	for i, s := range snap.Statuses {
		if s.Owned() {
			bitmap[i/8] |= 1 << (7 - uint(i)%8)
		}
	}
	return MapperV2{
		ReplicaCount: replicaCount,
		NumShards:    int32(numShards),
		HostFormat:   hostFormat,
		Bitmap:       bitmap,
	}
}

// Owned reports whether the given shard has an owner recorded in the
// snapshot.
func (v MapperV2) Owned(shard uint32) bool {
	if int32(shard) >= v.NumShards {
		return false
	}
	return v.Bitmap[shard/8]&(1<<(7-shard%8)) != 0
}

// NumOwned returns the number of owned shards in the snapshot.
func (v MapperV2) NumOwned() int {
	count := 0
	for i := uint32(0); int32(i) < v.NumShards; i++ {
		if v.Owned(i) {
			count++
		}
	}
	return count
}

// Validate checks the snapshot's structural invariants.
func (v MapperV2) Validate() error {
	if v.NumShards <= 0 {
		return errNumShardsNonPositive
	}
	if len(v.Bitmap) != int(v.NumShards+7)/8 {
		return errBitmapLength
	}
	return nil
}

// String returns the string representation of the snapshot.
func (v MapperV2) String() string {
	return fmt.Sprintf("MapperV2{replicas=%d, shards=%d, owned=%d, hostFormat=%q}",
		v.ReplicaCount, v.NumShards, v.NumOwned(), v.HostFormat)
}
