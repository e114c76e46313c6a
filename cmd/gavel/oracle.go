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

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/blinklabs-io/gavel/internal/config"
	"github.com/blinklabs-io/gavel/internal/node"
	"github.com/blinklabs-io/gavel/oracle/remote"
)

// oracleRun serves the in-memory development oracles over HTTP so that
// several nodes can share one registry and marketplace
func oracleRun(cfg *config.Config) error {
	logger := commonRun()
	registry, marketplace, err := node.DevOracles(cfg)
	if err != nil {
		return err
	}
	shutdownTimeout, err := cfg.ParsedShutdownTimeout()
	if err != nil {
		return err
	}
	if !globalFlags.debug {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := remote.NewHandler(registry, marketplace, logger)
	listenAddr := fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.OraclePort)
	server := &http.Server{
		Addr:              listenAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 60 * time.Second,
	}
	logger.Info(
		"serving development oracles on "+listenAddr,
		"component", programName,
		"members", registry.TotalSupply(),
	)

	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.ListenAndServe()
	}()
	select {
	case <-signalCtx.Done():
		logger.Info("signal received, shutting down oracle server")
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func oracleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oracle",
		Short: "Serve the in-memory membership and purchase oracles",
		Run: func(cmd *cobra.Command, args []string) {
			if err := oracleRun(configFromCommand(cmd)); err != nil {
				slog.Error(err.Error())
				os.Exit(1)
			}
		},
	}
	return cmd
}
