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
	"errors"

	"github.com/stratumdb/stratum/src/x/clock"
	"github.com/stratumdb/stratum/src/x/instrument"
)

const (
	defaultDemandPagingParallelism = 4
	defaultResultBufferSize        = 1000
)

var (
	errNoColumnStore          = errors.New("no column store configured")
	errNoPartitionMaker       = errors.New("no partition maker configured")
	errNonPositiveParallelism = errors.New("demand paging parallelism must be positive")
	errNonPositiveBufferSize  = errors.New("result buffer size must be positive")
)

// acceptAllEvictionPolicy never pushes back on materialization.
type acceptAllEvictionPolicy struct{}

func (acceptAllEvictionPolicy) CanAccept(int) bool { return true }

type options struct {
	instrumentOpts instrument.Options
	clockOpts      clock.Options
	columnStore    ColumnStore
	partitionMaker PartitionMaker
	evictionPolicy PartitionEvictionPolicy
	multiPartition bool
	parallelism    int
	bufferSize     int
}

// NewOptions creates new pager options with default tuning.
func NewOptions() Options {
	return &options{
		instrumentOpts: instrument.NewOptions(),
		clockOpts:      clock.NewOptions(),
		evictionPolicy: acceptAllEvictionPolicy{},
		parallelism:    defaultDemandPagingParallelism,
		bufferSize:     defaultResultBufferSize,
	}
}

func (o *options) Validate() error {
	if o.columnStore == nil {
		return errNoColumnStore
	}
	if o.partitionMaker == nil {
		return errNoPartitionMaker
	}
	if o.parallelism <= 0 {
		return errNonPositiveParallelism
	}
	if o.bufferSize <= 0 {
		return errNonPositiveBufferSize
	}
	return nil
}

func (o *options) SetInstrumentOptions(value instrument.Options) Options {
	opts := *o
	opts.instrumentOpts = value
	return &opts
}

func (o *options) InstrumentOptions() instrument.Options {
	return o.instrumentOpts
}

func (o *options) SetClockOptions(value clock.Options) Options {
	opts := *o
	opts.clockOpts = value
	return &opts
}

func (o *options) ClockOptions() clock.Options {
	return o.clockOpts
}

func (o *options) SetColumnStore(value ColumnStore) Options {
	opts := *o
	opts.columnStore = value
	return &opts
}

func (o *options) ColumnStore() ColumnStore {
	return o.columnStore
}

func (o *options) SetPartitionMaker(value PartitionMaker) Options {
	opts := *o
	opts.partitionMaker = value
	return &opts
}

func (o *options) PartitionMaker() PartitionMaker {
	return o.partitionMaker
}

func (o *options) SetPartitionEvictionPolicy(value PartitionEvictionPolicy) Options {
	opts := *o
	opts.evictionPolicy = value
	return &opts
}

func (o *options) PartitionEvictionPolicy() PartitionEvictionPolicy {
	return o.evictionPolicy
}

func (o *options) SetMultiPartitionEnabled(value bool) Options {
	opts := *o
	opts.multiPartition = value
	return &opts
}

func (o *options) MultiPartitionEnabled() bool {
	return o.multiPartition
}

func (o *options) SetDemandPagingParallelism(value int) Options {
	opts := *o
	opts.parallelism = value
	return &opts
}

func (o *options) DemandPagingParallelism() int {
	return o.parallelism
}

func (o *options) SetResultBufferSize(value int) Options {
	opts := *o
	opts.bufferSize = value
	return &opts
}

func (o *options) ResultBufferSize() int {
	return o.bufferSize
}
