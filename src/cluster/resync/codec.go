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
	"bytes"

	"github.com/pkg/errors"
	"gopkg.in/vmihailenco/msgpack.v2"

	"github.com/stratumdb/stratum/src/cluster/shard"
)

// Wire payload object types.
type objectType int

const (
	ingestionStateType objectType = iota + 1
	currentSnapshotType
	shardSnapshotType
	eventType
)

const codecVersion = 1

var (
	emptyIngestionState IngestionState
	emptySnapshot       shard.CurrentSnapshot
	emptyMapperV2       shard.MapperV2
	emptyEvent          shard.Event
)

// Encoder encodes resync wire messages as msgpack. Not safe for concurrent
// use; errors stick until Reset.
type Encoder struct {
	buf *bytes.Buffer
	enc *msgpack.Encoder
	err error
}

// NewEncoder creates a new encoder.
func NewEncoder() *Encoder {
	buf := bytes.NewBuffer(nil)
	return &Encoder{
		buf: buf,
		enc: msgpack.NewEncoder(buf),
	}
}

// Reset resets the encoder for reuse.
func (enc *Encoder) Reset() {
	enc.buf.Truncate(0)
	enc.err = nil
}

// Bytes returns the encoded bytes, valid until the next Reset.
func (enc *Encoder) Bytes() []byte {
	return enc.buf.Bytes()
}

// EncodeIngestionState encodes an ingestion state broadcast.
func (enc *Encoder) EncodeIngestionState(state IngestionState) error {
	if enc.err != nil {
		return enc.err
	}
	enc.encodeRootObject(ingestionStateType)
	enc.encodeArrayLen(2)
	enc.encodeInt64(state.Version)
	enc.encodeSnapshot(state.Snapshot)
	return enc.err
}

// EncodeCurrentSnapshot encodes a full per-shard snapshot message.
func (enc *Encoder) EncodeCurrentSnapshot(snap shard.CurrentSnapshot) error {
	if enc.err != nil {
		return enc.err
	}
	enc.encodeRootObject(currentSnapshotType)
	enc.encodeSnapshot(snap)
	return enc.err
}

// EncodeShardSnapshot encodes a compressed ownership-only snapshot message.
func (enc *Encoder) EncodeShardSnapshot(v2 shard.MapperV2) error {
	if enc.err != nil {
		return enc.err
	}
	if err := v2.Validate(); err != nil {
		enc.err = err
		return enc.err
	}
	enc.encodeRootObject(shardSnapshotType)
	enc.encodeArrayLen(4)
	enc.encodeInt64(int64(v2.ReplicaCount))
	enc.encodeInt64(int64(v2.NumShards))
	enc.encodeString(v2.HostFormat)
	enc.encodeBytes(v2.Bitmap)
	return enc.err
}

// EncodeEvent encodes a tagged shard event record.
func (enc *Encoder) EncodeEvent(ev shard.Event) error {
	if enc.err != nil {
		return enc.err
	}
	enc.encodeRootObject(eventType)
	enc.encodeArrayLen(6)
	enc.encodeInt64(int64(ev.Kind))
	enc.encodeString(string(ev.Dataset))
	enc.encodeInt64(int64(ev.Shard))
	enc.encodeString(string(ev.Node))
	enc.encodeInt64(int64(ev.Progress))
	enc.encodeString(ev.Cause)
	return enc.err
}

func (enc *Encoder) encodeRootObject(objType objectType) {
	enc.encodeArrayLen(2)
	enc.encodeInt64(codecVersion)
	enc.encodeInt64(int64(objType))
}

func (enc *Encoder) encodeSnapshot(snap shard.CurrentSnapshot) {
	enc.encodeArrayLen(3)
	enc.encodeString(string(snap.Dataset))
	enc.encodeArrayLen(len(snap.Statuses))
	for _, status := range snap.Statuses {
		enc.encodeArrayLen(2)
		enc.encodeInt64(int64(status.Code))
		enc.encodeInt64(int64(status.Progress))
	}
	enc.encodeArrayLen(len(snap.Nodes))
	for _, node := range snap.Nodes {
		enc.encodeString(string(node))
	}
}

func (enc *Encoder) encodeArrayLen(value int) {
	if enc.err != nil {
		return
	}
	enc.err = enc.enc.EncodeArrayLen(value)
}

func (enc *Encoder) encodeInt64(value int64) {
	if enc.err != nil {
		return
	}
	enc.err = enc.enc.EncodeInt64(value)
}

func (enc *Encoder) encodeString(value string) {
	if enc.err != nil {
		return
	}
	enc.err = enc.enc.EncodeString(value)
}

func (enc *Encoder) encodeBytes(value []byte) {
	if enc.err != nil {
		return
	}
	enc.err = enc.enc.EncodeBytes(value)
}

// Decoder decodes resync wire messages. Not safe for concurrent use; errors
// stick until Reset.
type Decoder struct {
	dec *msgpack.Decoder
	err error
}

// NewDecoder creates a new decoder.
func NewDecoder() *Decoder {
	return &Decoder{dec: msgpack.NewDecoder(bytes.NewReader(nil))}
}

// Reset resets the data to decode from.
func (dec *Decoder) Reset(data []byte) {
	dec.dec.Reset(bytes.NewReader(data))
	dec.err = nil
}

// DecodeIngestionState decodes an ingestion state broadcast.
func (dec *Decoder) DecodeIngestionState() (IngestionState, error) {
	if dec.err != nil {
		return emptyIngestionState, dec.err
	}
	dec.decodeRootObject(ingestionStateType)
	dec.checkArrayLen(2, "ingestion state")
	version := dec.decodeInt64()
	snapshot := dec.decodeSnapshot()
	if dec.err != nil {
		return emptyIngestionState, dec.err
	}
	return IngestionState{
		Version:  version,
		Dataset:  snapshot.Dataset,
		Snapshot: snapshot,
	}, nil
}

// DecodeCurrentSnapshot decodes a full per-shard snapshot message.
func (dec *Decoder) DecodeCurrentSnapshot() (shard.CurrentSnapshot, error) {
	if dec.err != nil {
		return emptySnapshot, dec.err
	}
	dec.decodeRootObject(currentSnapshotType)
	snapshot := dec.decodeSnapshot()
	if dec.err != nil {
		return emptySnapshot, dec.err
	}
	return snapshot, nil
}

// DecodeShardSnapshot decodes a compressed ownership-only snapshot message
// and validates its bitmap shape.
func (dec *Decoder) DecodeShardSnapshot() (shard.MapperV2, error) {
	if dec.err != nil {
		return emptyMapperV2, dec.err
	}
	dec.decodeRootObject(shardSnapshotType)
	dec.checkArrayLen(4, "shard snapshot")
	v2 := shard.MapperV2{
		ReplicaCount: int32(dec.decodeInt64()),
		NumShards:    int32(dec.decodeInt64()),
		HostFormat:   dec.decodeString(),
		Bitmap:       dec.decodeBytes(),
	}
	if dec.err != nil {
		return emptyMapperV2, dec.err
	}
	if err := v2.Validate(); err != nil {
		return emptyMapperV2, err
	}
	return v2, nil
}

// DecodeEvent decodes a tagged shard event record.
func (dec *Decoder) DecodeEvent() (shard.Event, error) {
	if dec.err != nil {
		return emptyEvent, dec.err
	}
	dec.decodeRootObject(eventType)
	dec.checkArrayLen(6, "event")
	ev := shard.Event{
		Kind:    shard.EventKind(dec.decodeInt64()),
		Dataset: shard.DatasetRef(dec.decodeString()),
	}
	ev.Shard = uint32(dec.decodeInt64())
	ev.Node = shard.NodeID(dec.decodeString())
	ev.Progress = int(dec.decodeInt64())
	ev.Cause = dec.decodeString()
	if dec.err != nil {
		return emptyEvent, dec.err
	}
	return ev, nil
}

func (dec *Decoder) decodeRootObject(expected objectType) {
	dec.checkArrayLen(2, "root object")
	version := dec.decodeInt64()
	if dec.err == nil && version != codecVersion {
		dec.err = errors.Errorf("unsupported codec version %d", version)
		return
	}
	actual := objectType(dec.decodeInt64())
	if dec.err == nil && actual != expected {
		dec.err = errors.Errorf("unexpected object type %d, expected %d", actual, expected)
	}
}

func (dec *Decoder) decodeSnapshot() shard.CurrentSnapshot {
	dec.checkArrayLen(3, "snapshot")
	snap := shard.CurrentSnapshot{
		Dataset: shard.DatasetRef(dec.decodeString()),
	}
	numStatuses := dec.decodeArrayLen()
	if dec.err != nil {
		return emptySnapshot
	}
	snap.Statuses = make([]shard.Status, 0, numStatuses)
	for i := 0; i < numStatuses; i++ {
		dec.checkArrayLen(2, "status")
		code := shard.Code(dec.decodeInt64())
		progress := int(dec.decodeInt64())
		if dec.err != nil {
			return emptySnapshot
		}
		snap.Statuses = append(snap.Statuses, shard.Status{Code: code, Progress: progress})
	}
	numNodes := dec.decodeArrayLen()
	if dec.err != nil {
		return emptySnapshot
	}
	if numNodes != numStatuses {
		dec.err = errors.Errorf("snapshot node count %d does not match shard count %d",
			numNodes, numStatuses)
		return emptySnapshot
	}
	snap.Nodes = make([]shard.NodeID, 0, numNodes)
	for i := 0; i < numNodes; i++ {
		snap.Nodes = append(snap.Nodes, shard.NodeID(dec.decodeString()))
	}
	return snap
}

func (dec *Decoder) checkArrayLen(expected int, what string) {
	actual := dec.decodeArrayLen()
	if dec.err == nil && actual != expected {
		dec.err = errors.Errorf("%s has %d fields, expected %d", what, actual, expected)
	}
}

func (dec *Decoder) decodeArrayLen() int {
	if dec.err != nil {
		return 0
	}
	value, err := dec.dec.DecodeArrayLen()
	if err != nil {
		dec.err = errors.Wrap(err, "decode array len")
	}
	return value
}

func (dec *Decoder) decodeInt64() int64 {
	if dec.err != nil {
		return 0
	}
	value, err := dec.dec.DecodeInt64()
	if err != nil {
		dec.err = errors.Wrap(err, "decode int64")
	}
	return value
}

func (dec *Decoder) decodeString() string {
	if dec.err != nil {
		return ""
	}
	value, err := dec.dec.DecodeString()
	if err != nil {
		dec.err = errors.Wrap(err, "decode string")
	}
	return value
}

func (dec *Decoder) decodeBytes() []byte {
	if dec.err != nil {
		return nil
	}
	value, err := dec.dec.DecodeBytes()
	if err != nil {
		dec.err = errors.Wrap(err, "decode bytes")
	}
	return value
}
