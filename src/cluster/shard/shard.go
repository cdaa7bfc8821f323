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

// Package shard models the lifecycle of dataset shards across the cluster.
package shard

import "fmt"

// DatasetRef identifies a dataset, the table-like unit a shard belongs to.
type DatasetRef string

// NodeID is an opaque handle to the cluster node that owns a shard.
type NodeID string

// Code represents the status of a shard.
type Code int

const (
	// Unassigned represents a shard with no owner recorded.
	Unassigned Code = iota
	// Assigned represents a shard handed to a node, before ingestion starts.
	Assigned
	// Active represents a shard actively ingesting data.
	Active
	// Error represents a shard whose ingestion hit an error.
	Error
	// Recovery represents a shard replaying data to catch up with the stream.
	Recovery
	// Stopped represents a shard whose ingestion was stopped.
	Stopped
	// Down represents a shard whose owning node went down.
	Down
)

// Codes returns all the possible status codes.
func Codes() []Code {
	return []Code{
		Unassigned,
		Assigned,
		Active,
		Error,
		Recovery,
		Stopped,
		Down,
	}
}

// String returns the string representation of the status code.
func (c Code) String() string {
	switch c {
	case Unassigned:
		return "Unassigned"
	case Assigned:
		return "Assigned"
	case Active:
		return "Active"
	case Error:
		return "Error"
	case Recovery:
		return "Recovery"
	case Stopped:
		return "Stopped"
	case Down:
		return "Down"
	}
	return "Unknown"
}

// Status is a shard status code together with its payload.
type Status struct {
	// Code is the status code.
	Code Code

	// Progress is the recovery percent complete, 0 to 100. Only meaningful
	// when Code is Recovery.
	Progress int
}

// NewStatus returns a status for a code that carries no payload.
func NewStatus(code Code) Status {
	return Status{Code: code}
}

// NewRecoveryStatus returns a recovery status at the given percent complete.
func NewRecoveryStatus(progress int) Status {
	return Status{Code: Recovery, Progress: progress}
}

// Owned reports whether the shard has an owner recorded, regardless of
// the owner's health.
func (s Status) Owned() bool {
	return s.Code != Unassigned
}

// String returns the string representation of the status.
func (s Status) String() string {
	if s.Code == Recovery {
		return fmt.Sprintf("Recovery(%d%%)", s.Progress)
	}
	return s.Code.String()
}
