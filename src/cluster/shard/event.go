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

import "fmt"

// EventKind enumerates shard lifecycle events.
type EventKind int

const (
	// AssignmentStarted signals a shard was handed to a node.
	AssignmentStarted EventKind = iota
	// IngestionStarted signals a shard began ingesting data.
	IngestionStarted
	// RecoveryInProgress signals a shard is part way through recovery.
	RecoveryInProgress
	// IngestionError signals a shard's ingestion hit an error.
	IngestionError
	// IngestionStopped signals a shard's ingestion was stopped.
	IngestionStopped
	// RecoveryStarted signals a shard entered recovery.
	RecoveryStarted
	// ShardDown signals the shard's owning node went down.
	ShardDown
)

// EventKinds returns all the possible event kinds.
func EventKinds() []EventKind {
	return []EventKind{
		AssignmentStarted,
		IngestionStarted,
		RecoveryInProgress,
		IngestionError,
		IngestionStopped,
		RecoveryStarted,
		ShardDown,
	}
}

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case AssignmentStarted:
		return "AssignmentStarted"
	case IngestionStarted:
		return "IngestionStarted"
	case RecoveryInProgress:
		return "RecoveryInProgress"
	case IngestionError:
		return "IngestionError"
	case IngestionStopped:
		return "IngestionStopped"
	case RecoveryStarted:
		return "RecoveryStarted"
	case ShardDown:
		return "ShardDown"
	}
	return "Unknown"
}

// Event is a tagged shard lifecycle event record.
type Event struct {
	// Kind tags the record.
	Kind EventKind

	// Dataset is the dataset the shard belongs to.
	Dataset DatasetRef

	// Shard is the shard index within the dataset.
	Shard uint32

	// Node is the owning node, where relevant.
	Node NodeID

	// Progress is the recovery percent complete. Recovery events only.
	Progress int

	// Cause is the underlying failure description. IngestionError only.
	Cause string
}

// NewAssignmentStarted returns an assignment started event.
func NewAssignmentStarted(dataset DatasetRef, shard uint32, node NodeID) Event {
	return Event{Kind: AssignmentStarted, Dataset: dataset, Shard: shard, Node: node}
}

// NewIngestionStarted returns an ingestion started event.
func NewIngestionStarted(dataset DatasetRef, shard uint32, node NodeID) Event {
	return Event{Kind: IngestionStarted, Dataset: dataset, Shard: shard, Node: node}
}

// NewRecoveryInProgress returns a recovery in progress event.
func NewRecoveryInProgress(dataset DatasetRef, shard uint32, node NodeID, progress int) Event {
	return Event{Kind: RecoveryInProgress, Dataset: dataset, Shard: shard, Node: node, Progress: progress}
}

// NewIngestionError returns an ingestion error event carrying its cause.
func NewIngestionError(dataset DatasetRef, shard uint32, node NodeID, cause string) Event {
	return Event{Kind: IngestionError, Dataset: dataset, Shard: shard, Node: node, Cause: cause}
}

// NewIngestionStopped returns an ingestion stopped event.
func NewIngestionStopped(dataset DatasetRef, shard uint32, node NodeID) Event {
	return Event{Kind: IngestionStopped, Dataset: dataset, Shard: shard, Node: node}
}

// NewRecoveryStarted returns a recovery started event.
func NewRecoveryStarted(dataset DatasetRef, shard uint32, node NodeID, progress int) Event {
	return Event{Kind: RecoveryStarted, Dataset: dataset, Shard: shard, Node: node, Progress: progress}
}

// NewShardDown returns a shard down event.
func NewShardDown(dataset DatasetRef, shard uint32, node NodeID) Event {
	return Event{Kind: ShardDown, Dataset: dataset, Shard: shard, Node: node}
}

// Status returns the shard status resulting from the event.
func (e Event) Status() Status {
	switch e.Kind {
	case AssignmentStarted:
		return NewStatus(Assigned)
	case IngestionStarted:
		return NewStatus(Active)
	case RecoveryInProgress, RecoveryStarted:
		return NewRecoveryStatus(e.Progress)
	case IngestionError:
		return NewStatus(Error)
	case IngestionStopped:
		return NewStatus(Stopped)
	case ShardDown:
		return NewStatus(Down)
	}
	return NewStatus(Unassigned)
}

// String returns the string representation of the event.
func (e Event) String() string {
	switch e.Kind {
	case RecoveryInProgress, RecoveryStarted:
		return fmt.Sprintf("%s(%s/%d, %d%%)", e.Kind, e.Dataset, e.Shard, e.Progress)
	case IngestionError:
		return fmt.Sprintf("%s(%s/%d, %q)", e.Kind, e.Dataset, e.Shard, e.Cause)
	}
	return fmt.Sprintf("%s(%s/%d)", e.Kind, e.Dataset, e.Shard)
}

// MinimalEvents returns the shortest ordered event sequence that reproduces
// the given status on a fresh unassigned shard entry. A newly subscribed
// observer replays a constant number of events per shard regardless of the
// shard's real history, at the cost of losing historical timing.
//
// An Error status reproduces as an active ingest; the failure cause only
// travels in live IngestionError events.
func MinimalEvents(s Status, dataset DatasetRef, shard uint32, node NodeID) []Event {
	switch s.Code {
	case Unassigned:
		return nil
	case Assigned:
		return []Event{NewAssignmentStarted(dataset, shard, node)}
	case Active, Error:
		return []Event{NewIngestionStarted(dataset, shard, node)}
	case Recovery:
		return []Event{NewRecoveryInProgress(dataset, shard, node, s.Progress)}
	case Stopped:
		return []Event{
			NewIngestionStarted(dataset, shard, node),
			NewIngestionStopped(dataset, shard, node),
		}
	case Down:
		return []Event{
			NewIngestionStarted(dataset, shard, node),
			NewShardDown(dataset, shard, node),
		}
	}
	return nil
}
