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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/blinklabs-io/gavel/governance"
)

type Config struct {
	promRegistry            prometheus.Registerer
	logger                  *slog.Logger
	membership              governance.MembershipOracle
	marketplace             governance.PurchaseOracle
	clock                   governance.Clock
	initialDeposit          *big.Int
	dataDir                 string
	blobPlugin              string
	metadataPlugin          string
	initialDepositor        governance.Address
	insufficientFundsPolicy governance.InsufficientFundsPolicy
	apiListenAddress        string
	redisURL                string
	redisStream             string
	corsAllowOrigins        []string
	votingPeriod            time.Duration
	oracleTimeout           time.Duration
	shutdownTimeout         time.Duration
	tracing                 bool
	tracingStdout           bool
	apiDeposits             bool
}

func (n *Node) configValidate() error {
	if n.config.membership == nil {
		return errors.New("no membership oracle configured")
	}
	if n.config.marketplace == nil {
		return errors.New("no purchase oracle configured")
	}
	if !n.config.insufficientFundsPolicy.Valid() {
		return fmt.Errorf(
			"invalid insufficient funds policy: %q",
			n.config.insufficientFundsPolicy,
		)
	}
	if n.config.initialDeposit != nil && n.config.initialDeposit.Sign() < 0 {
		return fmt.Errorf(
			"invalid initial deposit: %s",
			n.config.initialDeposit.String(),
		)
	}
	if n.config.votingPeriod < 0 {
		return fmt.Errorf("invalid voting period: %s", n.config.votingPeriod)
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the node config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new gavel config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithDatabasePath specifies the persistent data directory to use. The default is to store everything in memory
func WithDatabasePath(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithBlobPlugin specifies the blob storage plugin to use.
func WithBlobPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.blobPlugin = plugin
	}
}

// WithMetadataPlugin specifies the metadata storage plugin to use.
func WithMetadataPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.metadataPlugin = plugin
	}
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to. In most cases, prometheus.DefaultRegistry would be
// a good choice to get metrics working
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithMembershipOracle specifies the membership token registry consulted for every operation
func WithMembershipOracle(oracle governance.MembershipOracle) ConfigOptionFunc {
	return func(c *Config) {
		c.membership = oracle
	}
}

// WithPurchaseOracle specifies the marketplace used for quotes and purchases
func WithPurchaseOracle(oracle governance.PurchaseOracle) ConfigOptionFunc {
	return func(c *Config) {
		c.marketplace = oracle
	}
}

// WithClock overrides the source of the current time. This is mostly useful for tests
func WithClock(clock governance.Clock) ConfigOptionFunc {
	return func(c *Config) {
		c.clock = clock
	}
}

// WithInitialDeposit specifies the amount credited to the treasury the first time the node starts against an empty database
func WithInitialDeposit(
	amount *big.Int,
	depositor governance.Address,
) ConfigOptionFunc {
	return func(c *Config) {
		c.initialDeposit = amount
		c.initialDepositor = depositor
	}
}

// WithInsufficientFundsPolicy specifies what happens when a passed proposal costs more than the treasury holds.
// The default is to reject the execution attempt and allow a retry
func WithInsufficientFundsPolicy(
	policy governance.InsufficientFundsPolicy,
) ConfigOptionFunc {
	return func(c *Config) {
		c.insufficientFundsPolicy = policy
	}
}

// WithVotingPeriod specifies how long proposals accept votes. The default is 5 minutes
func WithVotingPeriod(period time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.votingPeriod = period
	}
}

// WithOracleTimeout specifies the timeout for each oracle call. The default is 10 seconds
func WithOracleTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.oracleTimeout = timeout
	}
}

// WithApiListenAddress specifies the listen address for the REST API server.
// An empty string disables the server. The default is empty (disabled).
func WithApiListenAddress(addr string) ConfigOptionFunc {
	return func(c *Config) {
		c.apiListenAddress = addr
	}
}

// WithApiDeposits exposes the unauthenticated treasury deposit route on the REST API. It is disabled by default
func WithApiDeposits(enabled bool) ConfigOptionFunc {
	return func(c *Config) {
		c.apiDeposits = enabled
	}
}

// WithCorsAllowOrigins restricts the origins allowed by the REST API. All origins are allowed by default
func WithCorsAllowOrigins(origins ...string) ConfigOptionFunc {
	return func(c *Config) {
		c.corsAllowOrigins = append(c.corsAllowOrigins, origins...)
	}
}

// WithRedisEvents publishes governance events to a Redis stream at the given URL.
// An empty stream name uses the default
func WithRedisEvents(url string, stream string) ConfigOptionFunc {
	return func(c *Config) {
		c.redisURL = url
		c.redisStream = stream
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) endpoint using OTLP. This can be configured
// using the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. The default is 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}
