// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gavel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/blinklabs-io/gavel/api"
	"github.com/blinklabs-io/gavel/database"
	"github.com/blinklabs-io/gavel/event"
	"github.com/blinklabs-io/gavel/event/redisstream"
	"github.com/blinklabs-io/gavel/governance"
)

type Node struct {
	eventBus      *event.EventBus
	db            *database.Database
	engine        *governance.Engine
	api           *api.Server
	eventSink     *redisstream.Sink
	shutdownFuncs []func(context.Context) error
	config        Config
	done          chan struct{}
	ready         chan struct{}
	shutdownOnce  sync.Once
	readyOnce     sync.Once
}

func New(cfg Config) (*Node, error) {
	eventBus := event.NewEventBus(cfg.promRegistry, cfg.logger)
	n := &Node{
		config:   cfg,
		eventBus: eventBus,
		done:     make(chan struct{}),
		ready:    make(chan struct{}),
	}
	if err := n.configValidate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return n, nil
}

// Run starts every component and blocks until ctx is cancelled or Stop is
// called
func (n *Node) Run(ctx context.Context) error {
	// Configure tracing
	if n.config.tracing {
		if err := n.setupTracing(ctx); err != nil {
			return err
		}
	}
	// Load database
	db, err := database.New(&database.Config{
		DataDir:        n.config.dataDir,
		Logger:         n.config.logger,
		PromRegistry:   n.config.promRegistry,
		BlobPlugin:     n.config.blobPlugin,
		MetadataPlugin: n.config.metadataPlugin,
	})
	if db == nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	n.db = db
	if err != nil {
		var dbErr database.CommitTimestampError
		if !errors.As(err, &dbErr) {
			return fmt.Errorf("failed to open database: %w", err)
		}
		n.config.logger.Warn(
			"database initialization error, needs recovery",
			"error",
			err,
		)
		if err := n.db.RecoverCommitTimestampConflict(); err != nil {
			return fmt.Errorf("failed to recover database: %w", err)
		}
	}
	// Forward events to Redis
	if n.config.redisURL != "" {
		sinkOpts := []redisstream.SinkOptionFunc{
			redisstream.WithURL(n.config.redisURL),
			redisstream.WithLogger(n.config.logger),
		}
		if n.config.redisStream != "" {
			sinkOpts = append(
				sinkOpts,
				redisstream.WithStream(n.config.redisStream),
			)
		}
		sink, err := redisstream.New(sinkOpts...)
		if err != nil {
			return fmt.Errorf("failed to configure redis event sink: %w", err)
		}
		n.eventSink = sink
		sink.Register(n.eventBus, governance.EventTypes...)
	}
	// Load governance state
	engine, err := governance.NewEngine(governance.EngineConfig{
		Logger:                  n.config.logger,
		PromRegistry:            n.config.promRegistry,
		EventBus:                n.eventBus,
		Membership:              n.config.membership,
		Marketplace:             n.config.marketplace,
		Ledger:                  n.db,
		Clock:                   n.config.clock,
		InitialDeposit:          n.config.initialDeposit,
		InitialDepositor:        n.config.initialDepositor,
		InsufficientFundsPolicy: n.config.insufficientFundsPolicy,
		VotingPeriod:            n.config.votingPeriod,
		OracleTimeout:           n.config.oracleTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create governance engine: %w", err)
	}
	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("failed to load governance state: %w", err)
	}
	n.engine = engine
	// Configure REST API
	if n.config.apiListenAddress != "" {
		n.api = api.New(
			api.Config{
				History:          n.db,
				ListenAddress:    n.config.apiListenAddress,
				CorsAllowOrigins: n.config.corsAllowOrigins,
				AllowDeposits:    n.config.apiDeposits,
			},
			n.engine,
			n.config.logger,
		)
		if err := n.api.Start(ctx); err != nil {
			return err
		}
	}
	n.readyOnce.Do(func() { close(n.ready) })

	// Wait for shutdown signal
	select {
	case <-ctx.Done():
	case <-n.done:
	}
	return nil
}

// Ready is closed once Run has started every component
func (n *Node) Ready() <-chan struct{} {
	return n.ready
}

// Engine returns the governance engine. It is nil until Run has loaded state.
func (n *Node) Engine() *governance.Engine {
	return n.engine
}

// EventBus returns the node event bus
func (n *Node) EventBus() *event.EventBus {
	return n.eventBus
}

// APIAddr returns the bound REST API address, or nil if the API is disabled
func (n *Node) APIAddr() net.Addr {
	if n.api == nil {
		return nil
	}
	return n.api.Addr()
}

func (n *Node) Stop() error {
	var err error
	n.shutdownOnce.Do(func() {
		err = n.shutdown()
	})
	return err
}

func (n *Node) shutdown() error {
	// Create shutdown context with timeout (default 30s if not configured)
	shutdownTimeout := 30 * time.Second
	if n.config.shutdownTimeout > 0 {
		shutdownTimeout = n.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error

	n.config.logger.Debug("starting graceful shutdown")

	// Phase 1: Stop accepting new work
	n.config.logger.Debug("shutdown phase 1: stopping new work")

	if n.api != nil {
		if stopErr := n.api.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("api shutdown: %w", stopErr))
		}
	}

	// Phase 2: Drain events
	n.config.logger.Debug("shutdown phase 2: draining events")

	if n.eventBus != nil {
		n.eventBus.Stop()
	}
	if n.eventSink != nil {
		n.eventSink.Close()
	}

	// Phase 3: Close database
	n.config.logger.Debug("shutdown phase 3: closing database")

	if n.db != nil {
		if closeErr := n.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}

	// Phase 4: Cleanup resources
	n.config.logger.Debug("shutdown phase 4: cleanup resources")

	// Call registered shutdown functions
	for _, fn := range n.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	n.shutdownFuncs = nil

	n.config.logger.Debug("graceful shutdown complete")
	close(n.done)
	return err
}
