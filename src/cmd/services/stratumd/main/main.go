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

package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/uber-go/tally"
	"go.uber.org/zap"

	"github.com/stratumdb/stratum/src/cluster/resync"
	"github.com/stratumdb/stratum/src/cluster/shard"
	"github.com/stratumdb/stratum/src/cmd/services/stratumd/config"
	xconfig "github.com/stratumdb/stratum/src/x/config"
	"github.com/stratumdb/stratum/src/x/instrument"
)

const metricsReportInterval = time.Second

func main() {
	configFile := flag.String("f", "stratumd.yml", "configuration file")
	flag.Parse()

	if len(*configFile) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	var cfg config.Configuration
	if err := xconfig.LoadFile(&cfg, *configFile); err != nil {
		fmt.Printf("error loading config file: %v\n", err)
		os.Exit(1)
	}

	logger, err := cfg.Logging.BuildLogger()
	if err != nil {
		fmt.Printf("error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	scope, closer := tally.NewRootScope(tally.ScopeOptions{
		Prefix: "stratumd",
	}, metricsReportInterval)
	defer closer.Close()

	instrumentOpts := instrument.NewOptions().
		SetLogger(logger).
		SetMetricsScope(scope).
		SetReportInterval(metricsReportInterval)

	writer, err := newStateWriter(cfg.Resync.PublishAddress, logger)
	if err != nil {
		logger.Fatal("error creating state writer", zap.Error(err))
	}
	defer writer.Close()

	coordinator := resync.NewCoordinator(writer, nil, instrumentOpts)
	for _, dataset := range cfg.Resync.Datasets {
		ref := shard.DatasetRef(dataset.Name)
		if err := coordinator.DeployDataset(ref, dataset.NumShards); err != nil {
			logger.Fatal("error deploying dataset",
				zap.String("dataset", dataset.Name), zap.Error(err))
		}
		logger.Info("deployed dataset",
			zap.String("dataset", dataset.Name),
			zap.Int("numShards", dataset.NumShards))
	}

	pagingOpts := cfg.Paging.NewOptions().
		SetInstrumentOptions(instrumentOpts)
	logger.Info("paging configured",
		zap.Bool("multiPartition", pagingOpts.MultiPartitionEnabled()),
		zap.Int("parallelism", pagingOpts.DemandPagingParallelism()),
		zap.Int("bufferSize", pagingOpts.ResultBufferSize()))

	logger.Warn("interrupt", zap.Error(interrupt()))

	for _, dataset := range cfg.Resync.Datasets {
		if err := coordinator.UndeployDataset(shard.DatasetRef(dataset.Name)); err != nil {
			logger.Error("error undeploying dataset",
				zap.String("dataset", dataset.Name), zap.Error(err))
		}
	}
	logger.Info("clean shutdown")
}

func interrupt() error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	return fmt.Errorf("%s", <-c)
}

// stateWriter publishes encoded ingestion state snapshots over UDP. With no
// publish address configured it logs and drops the publishes instead.
type stateWriter struct {
	mu   sync.Mutex
	conn net.Conn
	enc  *resync.Encoder
	log  *zap.Logger
}

func newStateWriter(address string, log *zap.Logger) (*stateWriter, error) {
	w := &stateWriter{enc: resync.NewEncoder(), log: log}
	if address == "" {
		log.Info("no publish address configured, state publishing disabled")
		return w, nil
	}
	conn, err := net.Dial("udp", address)
	if err != nil {
		return nil, err
	}
	w.conn = conn
	return w, nil
}

func (w *stateWriter) Write(state resync.IngestionState) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.enc.Reset()
	if err := w.enc.EncodeIngestionState(state); err != nil {
		return err
	}
	if w.conn == nil {
		w.log.Debug("dropping ingestion state publish",
			zap.String("dataset", string(state.Dataset)),
			zap.Int64("version", state.Version))
		return nil
	}
	_, err := w.conn.Write(w.enc.Bytes())
	return err
}

func (w *stateWriter) Close() error {
	if w.conn == nil {
		return nil
	}
	return w.conn.Close()
}
