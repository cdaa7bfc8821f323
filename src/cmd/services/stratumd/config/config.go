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

// Package config defines the configuration for the stratumd service.
package config

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/stratumdb/stratum/src/dbnode/storage"
)

// Configuration is the top level stratumd configuration.
type Configuration struct {
	// Logging configuration.
	Logging LoggingConfiguration `yaml:"logging"`

	// Resync is the shard state coordination configuration.
	Resync ResyncConfiguration `yaml:"resync"`

	// Paging tunes the on-demand paging engine.
	Paging PagingConfiguration `yaml:"paging"`
}

// LoggingConfiguration defines logging configuration.
type LoggingConfiguration struct {
	File   string                 `yaml:"file"`
	Level  string                 `yaml:"level"`
	Fields map[string]interface{} `yaml:"fields"`
}

// BuildLogger builds a new logger based on the configuration.
func (cfg LoggingConfiguration) BuildLogger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.OutputPaths = []string{"stdout"}
	if cfg.File != "" {
		zc.OutputPaths = append(zc.OutputPaths, cfg.File)
	}
	if cfg.Level != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, err
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	if len(cfg.Fields) != 0 {
		zc.InitialFields = cfg.Fields
	}
	return zc.Build()
}

// ResyncConfiguration configures shard state coordination.
type ResyncConfiguration struct {
	// PublishAddress is the UDP address ingestion state snapshots are
	// published to. Empty disables publishing.
	PublishAddress string `yaml:"publishAddress"`

	// Datasets deployed at startup.
	Datasets []DatasetConfiguration `yaml:"datasets"`
}

// DatasetConfiguration describes one dataset to deploy.
type DatasetConfiguration struct {
	Name      string `yaml:"name"`
	NumShards int    `yaml:"numShards"`
}

// PagingConfiguration tunes the on-demand paging engine.
type PagingConfiguration struct {
	// MultiPartitionODP selects one batched cold read per scan instead of
	// one read per partition.
	MultiPartitionODP *bool `yaml:"multiPartitionODP"`

	// DemandPagingParallelism bounds concurrent cold reads in
	// per-partition mode.
	DemandPagingParallelism *int `yaml:"demandPagingParallelism"`

	// ResultBufferSize is the scan result buffer capacity.
	ResultBufferSize *int `yaml:"resultBufferSize"`
}

// NewOptions creates paging options from the configuration. Collaborators
// such as the column store and partition maker are wired by the caller.
func (cfg PagingConfiguration) NewOptions() storage.Options {
	opts := storage.NewOptions()
	if cfg.MultiPartitionODP != nil {
		opts = opts.SetMultiPartitionEnabled(*cfg.MultiPartitionODP)
	}
	if cfg.DemandPagingParallelism != nil {
		opts = opts.SetDemandPagingParallelism(*cfg.DemandPagingParallelism)
	}
	if cfg.ResultBufferSize != nil {
		opts = opts.SetResultBufferSize(*cfg.ResultBufferSize)
	}
	return opts
}
