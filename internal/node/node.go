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

package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof" // #nosec G108
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blinklabs-io/gavel"
	"github.com/blinklabs-io/gavel/governance"
	"github.com/blinklabs-io/gavel/internal/config"
)

// NodeConfig translates the loaded configuration into node options
func NodeConfig(
	cfg *config.Config,
	logger *slog.Logger,
	membership governance.MembershipOracle,
	marketplace governance.PurchaseOracle,
) (gavel.Config, error) {
	shutdownTimeout, err := cfg.ParsedShutdownTimeout()
	if err != nil {
		return gavel.Config{}, err
	}
	votingPeriod, err := cfg.ParsedVotingPeriod()
	if err != nil {
		return gavel.Config{}, err
	}
	oracleTimeout, err := cfg.ParsedOracleTimeout()
	if err != nil {
		return gavel.Config{}, err
	}
	initialDeposit, err := cfg.ParsedInitialDeposit()
	if err != nil {
		return gavel.Config{}, err
	}
	opts := []gavel.ConfigOptionFunc{
		gavel.WithLogger(logger),
		gavel.WithDatabasePath(cfg.DatabasePath),
		gavel.WithBlobPlugin(cfg.BlobPlugin),
		gavel.WithMetadataPlugin(cfg.MetadataPlugin),
		gavel.WithMembershipOracle(membership),
		gavel.WithPurchaseOracle(marketplace),
		gavel.WithInitialDeposit(
			initialDeposit,
			governance.Address(cfg.InitialDepositor),
		),
		gavel.WithInsufficientFundsPolicy(
			governance.InsufficientFundsPolicy(cfg.InsufficientFundsPolicy),
		),
		gavel.WithVotingPeriod(votingPeriod),
		gavel.WithOracleTimeout(oracleTimeout),
		gavel.WithCorsAllowOrigins(cfg.CorsAllowOrigins...),
		gavel.WithApiDeposits(cfg.ApiDeposits),
		gavel.WithShutdownTimeout(shutdownTimeout),
		gavel.WithTracing(cfg.Tracing),
		gavel.WithTracingStdout(cfg.TracingStdout),
		// Enable metrics with default prometheus registry
		gavel.WithPrometheusRegistry(prometheus.DefaultRegisterer),
	}
	if cfg.ApiPort > 0 {
		opts = append(
			opts,
			gavel.WithApiListenAddress(
				fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.ApiPort),
			),
		)
	}
	if cfg.RedisUrl != "" {
		opts = append(opts, gavel.WithRedisEvents(cfg.RedisUrl, cfg.RedisStream))
	}
	return gavel.NewConfig(opts...), nil
}

func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")
	membership, marketplace, err := Oracles(cfg, logger)
	if err != nil {
		return err
	}
	nodeCfg, err := NodeConfig(cfg, logger, membership, marketplace)
	if err != nil {
		return err
	}
	shutdownTimeout, err := cfg.ParsedShutdownTimeout()
	if err != nil {
		return err
	}
	n, err := gavel.New(nodeCfg)
	if err != nil {
		return err
	}

	// Metrics and debug listener
	var metricsServer *http.Server
	if cfg.MetricsPort > 0 {
		http.Handle("/metrics", promhttp.Handler())
		metricsAddr := fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.MetricsPort)
		logger.Info(
			"serving prometheus metrics on "+metricsAddr,
			"component",
			"node",
		)
		metricsServer = &http.Server{
			Addr:              metricsAddr,
			ReadHeaderTimeout: 60 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil &&
				!errors.Is(err, http.ErrServerClosed) {
				logger.Error(
					fmt.Sprintf("failed to start metrics listener: %s", err),
					"component", "node",
				)
			}
		}()
	}
	stopMetrics := func() {
		if metricsServer == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}
	}

	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	// Run node in goroutine
	errChan := make(chan error, 1)
	go func() {
		//nolint:contextcheck
		errChan <- n.Run(signalCtx)
	}()

	// Wait for signal or error
	select {
	case <-signalCtx.Done():
		logger.Info("signal received, initiating graceful shutdown")
		stopMetrics()
		if err := n.Stop(); err != nil {
			logger.Error("shutdown errors occurred", "error", err)
			return err
		}
		logger.Info("shutdown complete")
		return nil

	case err := <-errChan:
		stopMetrics()
		if err == nil {
			logger.Info("node stopped")
			if err := n.Stop(); err != nil {
				logger.Error("shutdown errors occurred", "error", err)
				return err
			}
			return nil
		}
		logger.Error("node error", "error", err)
		if stopErr := n.Stop(); stopErr != nil {
			logger.Error(
				"shutdown errors occurred during error cleanup",
				"error",
				stopErr,
			)
		}
		return err
	}
}
