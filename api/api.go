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

// Package api is the REST interface to the governance engine. The caller
// address of a mutating request is taken from the X-Gavel-Caller header.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const (
	DefaultListenAddress = ":8080"
	// CallerHeader carries the address a request acts on behalf of
	CallerHeader    = "X-Gavel-Caller"
	RequestIDHeader = "X-Request-ID"

	shutdownTimeout = 30 * time.Second
)

type Config struct {
	// History serves receipts and the treasury journal when set
	History          HistoryStore
	ListenAddress    string
	CorsAllowOrigins []string
	// AllowDeposits exposes the unauthenticated treasury deposit route
	AllowDeposits bool
}

// Server is the governance REST API server
type Server struct {
	config     Config
	logger     *slog.Logger
	engine     GovernanceEngine
	router     *gin.Engine
	httpServer *http.Server
	addr       net.Addr
	mu         sync.Mutex
}

// New creates a new API server instance
func New(
	cfg Config,
	engine GovernanceEngine,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.New(
			slog.NewJSONHandler(io.Discard, nil),
		)
	}
	logger = logger.With("component", "api")
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	s := &Server{
		config: cfg,
		logger: logger,
		engine: engine,
	}
	s.router = s.newRouter()
	return s
}

// Handler returns the HTTP handler serving every route
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the bound listener address while the server is running
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) newRouter() *gin.Engine {
	g := gin.New()
	g.Use(gin.Recovery())
	g.Use(s.requestID())
	g.Use(s.accessLog())
	corsConfig := cors.DefaultConfig()
	if len(s.config.CorsAllowOrigins) > 0 {
		corsConfig.AllowOrigins = s.config.CorsAllowOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowHeaders(CallerHeader, RequestIDHeader)
	corsConfig.AddExposeHeaders(RequestIDHeader)
	g.Use(cors.New(corsConfig))

	g.GET("/health", s.handleHealth)
	v1 := g.Group("/v1")
	{
		v1.GET("/proposals", s.handleListProposals)
		v1.GET("/proposals/count", s.handleProposalCount)
		v1.GET("/proposals/:id", s.handleGetProposal)
		v1.GET("/proposals/:id/votes/:token", s.handleHasVoted)
		v1.GET("/proposals/:id/receipt", s.handleGetReceipt)
		v1.GET("/treasury", s.handleTreasury)
		v1.GET("/treasury/entries", s.handleTreasuryEntries)
		v1.GET("/members/:address", s.handleGetMember)
		if s.config.AllowDeposits {
			v1.POST("/treasury/deposits", s.handleDeposit)
		}

		member := v1.Group("", requireCaller())
		member.POST("/proposals", s.handleCreateProposal)
		member.POST("/proposals/:id/votes", s.handleVote)
		member.POST("/proposals/:id/execute", s.handleExecute)
	}
	return g
}

// Start starts the HTTP server in a background goroutine. The server shuts
// down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.httpServer != nil {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	server := &http.Server{
		Addr:              s.config.ListenAddress,
		Handler:           s.router,
		ReadHeaderTimeout: 60 * time.Second,
	}
	// Bind first so port conflicts are reported immediately
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen for API server: %w", err)
	}
	s.httpServer = server
	s.addr = ln.Addr()
	s.mu.Unlock()

	go func() {
		if err := server.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(
				"API server error",
				"error", err,
			)
		}
	}()
	s.logger.Info(
		"API listener started on " + ln.Addr().String(),
	)

	go func() {
		<-ctx.Done()
		//nolint:contextcheck
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		//nolint:contextcheck
		if err := s.Stop(shutdownCtx); err != nil {
			s.logger.Error(
				"failed to shutdown API server on context cancellation",
				"error", err,
			)
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.addr = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	s.logger.Debug("shutting down API server")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown API server: %w", err)
	}
	return nil
}
