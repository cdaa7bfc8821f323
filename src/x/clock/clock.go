// Copyright (c) 2019 Uber Technologies, Inc.
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

// Package clock provides facilities for accessing the current time.
package clock

import "time"

// NowFn is the function supplying the current time.
type NowFn func() time.Time

// Options represents the options for the clock.
type Options interface {
	// SetNowFn sets the nowFn.
	SetNowFn(value NowFn) Options

	// NowFn returns the nowFn.
	NowFn() NowFn
}

type options struct {
	nowFn NowFn
}

// NewOptions creates new clock options.
func NewOptions() Options {
	return &options{nowFn: time.Now}
}

func (o *options) SetNowFn(value NowFn) Options {
	opts := *o
	opts.nowFn = value
	return &opts
}

func (o *options) NowFn() NowFn {
	return o.nowFn
}
