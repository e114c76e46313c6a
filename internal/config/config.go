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

package config

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/blinklabs-io/gavel/database/plugin"
	"github.com/blinklabs-io/gavel/governance"
)

type ctxKey string

const configContextKey ctxKey = "gavel.config"

const (
	DefaultShutdownTimeout = "30s"
	DefaultVotingPeriod    = "5m"
	DefaultOracleTimeout   = "10s"
	// DefaultDevAssetPrice is 0.1 ETH in wei
	DefaultDevAssetPrice = "100000000000000000"
)

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

const (
	DefaultBlobPlugin     = "badger"
	DefaultMetadataPlugin = "sqlite"
)

type tempConfig struct {
	Config   yaml.Node                 `yaml:"config,omitempty"`
	Database *databaseConfig           `yaml:"database,omitempty"`
	Blob     map[string]map[string]any `yaml:"blob,omitempty"`
	Metadata map[string]map[string]any `yaml:"metadata,omitempty"`
}

type databaseConfig struct {
	Blob     map[string]any `yaml:"blob,omitempty"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

type Config struct {
	BindAddr         string `yaml:"bindAddr"         split_words:"true"`
	DatabasePath     string `yaml:"databasePath"     split_words:"true"`
	BlobPlugin       string `yaml:"blobPlugin"       envconfig:"DATABASE_BLOB_PLUGIN"`
	MetadataPlugin   string `yaml:"metadataPlugin"   envconfig:"DATABASE_METADATA_PLUGIN"`
	ShutdownTimeout  string `yaml:"shutdownTimeout"  split_words:"true"`
	VotingPeriod     string `yaml:"votingPeriod"     split_words:"true"`
	OracleTimeout    string `yaml:"oracleTimeout"    split_words:"true"`
	InitialDeposit   string `yaml:"initialDeposit"   split_words:"true"`
	InitialDepositor string `yaml:"initialDepositor" split_words:"true"`
	// InsufficientFundsPolicy is "retry" or "reject"
	InsufficientFundsPolicy string `yaml:"insufficientFundsPolicy" split_words:"true"`
	// OracleUrl selects a remote oracle. The in-memory development oracles
	// are used when it is empty.
	OracleUrl string `yaml:"oracleUrl" split_words:"true"`
	// DevMembers seeds the in-memory registry, as address:token pairs
	DevMembers       []string `yaml:"devMembers"       split_words:"true"`
	DevAssetPrice    string   `yaml:"devAssetPrice"    split_words:"true"`
	RedisUrl         string   `yaml:"redisUrl"         split_words:"true"`
	RedisStream      string   `yaml:"redisStream"      split_words:"true"`
	CorsAllowOrigins []string `yaml:"corsAllowOrigins" split_words:"true"`
	ApiPort          uint     `yaml:"apiPort"          split_words:"true"`
	ApiDeposits      bool     `yaml:"apiDeposits"      split_words:"true"`
	MetricsPort      uint     `yaml:"metricsPort"      split_words:"true"`
	OraclePort       uint     `yaml:"oraclePort"       split_words:"true"`
	Tracing          bool     `yaml:"tracing"`
	TracingStdout    bool     `yaml:"tracingStdout"    split_words:"true"`
}

func defaultConfig() *Config {
	return &Config{
		BindAddr:                "0.0.0.0",
		DatabasePath:            ".gavel",
		BlobPlugin:              DefaultBlobPlugin,
		MetadataPlugin:          DefaultMetadataPlugin,
		ShutdownTimeout:         DefaultShutdownTimeout,
		VotingPeriod:            DefaultVotingPeriod,
		OracleTimeout:           DefaultOracleTimeout,
		InitialDeposit:          "0",
		InitialDepositor:        "deployer",
		InsufficientFundsPolicy: string(governance.InsufficientFundsRetry),
		DevAssetPrice:           DefaultDevAssetPrice,
		ApiPort:                 8080,
		MetricsPort:             12799,
		OraclePort:              8081,
	}
}

var globalConfig = defaultConfig()

func LoadConfig(configFile string) (*Config, error) {
	// Load config file as YAML if provided
	if configFile == "" {
		// Check for config file in this path: ~/.gavel/gavel.yaml
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".gavel", "gavel.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}

		// Try to check for /etc/gavel/gavel.yaml if still not found
		if configFile == "" {
			systemPath := "/etc/gavel/gavel.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}

	if configFile != "" {
		if err := loadConfigFile(configFile); err != nil {
			return nil, err
		}
	}
	// Process environment variables
	err := envconfig.Process("gavel", globalConfig)
	if err != nil {
		return nil, fmt.Errorf("error processing environment: %+w", err)
	}

	// Process plugin environment variables
	err = plugin.ProcessEnvVars()
	if err != nil {
		return nil, fmt.Errorf(
			"error processing plugin environment variables: %w",
			err,
		)
	}

	if err := globalConfig.Validate(); err != nil {
		return nil, err
	}
	return globalConfig, nil
}

func loadConfigFile(configFile string) error {
	buf, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	// First unmarshal into temp config to handle plugin sections
	var tempCfg tempConfig
	err = yaml.Unmarshal(buf, &tempCfg)
	if err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}

	// If config section exists, use it for main config
	if !tempCfg.Config.IsZero() {
		// Fields omitted from the section keep their current values
		if err := tempCfg.Config.Decode(globalConfig); err != nil {
			return fmt.Errorf("error parsing config section: %w", err)
		}
	} else {
		// Otherwise unmarshal the whole file as main config
		err = yaml.Unmarshal(buf, globalConfig)
		if err != nil {
			return fmt.Errorf("error parsing config file: %w", err)
		}
	}

	// Process plugin configurations
	pluginConfig := make(map[string]map[string]map[string]any)
	if tempCfg.Blob != nil {
		pluginConfig["blob"] = tempCfg.Blob
	}
	if tempCfg.Metadata != nil {
		pluginConfig["metadata"] = tempCfg.Metadata
	}
	// Handle database section if present
	if tempCfg.Database != nil {
		if tempCfg.Database.Blob != nil {
			name, blobConfig := splitPluginSection("blob", tempCfg.Database.Blob)
			if name != "" {
				globalConfig.BlobPlugin = name
			}
			mergePluginConfig(pluginConfig, "blob", blobConfig)
		}
		if tempCfg.Database.Metadata != nil {
			name, metadataConfig := splitPluginSection(
				"metadata",
				tempCfg.Database.Metadata,
			)
			if name != "" {
				globalConfig.MetadataPlugin = name
			}
			mergePluginConfig(pluginConfig, "metadata", metadataConfig)
		}
	}
	if len(pluginConfig) > 0 {
		err = plugin.ProcessConfig(pluginConfig)
		if err != nil {
			return fmt.Errorf(
				"error processing plugin config: %w",
				err,
			)
		}
	}
	return nil
}

// splitPluginSection separates the selected plugin name from the per-plugin
// option maps of a database section
func splitPluginSection(
	section string,
	values map[string]any,
) (string, map[string]map[string]any) {
	var name string
	if pluginVal, exists := values["plugin"]; exists {
		if pluginName, ok := pluginVal.(string); ok {
			name = pluginName
		}
	}
	ret := make(map[string]map[string]any)
	for k, v := range values {
		if k == "plugin" {
			continue
		}
		switch val := v.(type) {
		case map[string]any:
			ret[k] = val
		case map[any]any:
			stringAnyMap := make(map[string]any)
			for vk, vv := range val {
				if keyStr, ok := vk.(string); ok {
					stringAnyMap[keyStr] = vv
				}
			}
			ret[k] = stringAnyMap
		default:
			fmt.Fprintf(
				os.Stderr,
				"warning: skipping %s config entry %q: expected map, got %T\n",
				section,
				k,
				v,
			)
		}
	}
	return name, ret
}

func mergePluginConfig(
	pluginConfig map[string]map[string]map[string]any,
	section string,
	values map[string]map[string]any,
) {
	if pluginConfig[section] == nil {
		pluginConfig[section] = values
		return
	}
	for name, opts := range values {
		if pluginConfig[section][name] == nil {
			pluginConfig[section][name] = opts
			continue
		}
		for k, v := range opts {
			pluginConfig[section][name][k] = v
		}
	}
}

// Validate checks that every value parses
func (c *Config) Validate() error {
	var err error
	if _, parseErr := c.ParsedShutdownTimeout(); parseErr != nil {
		err = errors.Join(err, parseErr)
	}
	if _, parseErr := c.ParsedVotingPeriod(); parseErr != nil {
		err = errors.Join(err, parseErr)
	}
	if _, parseErr := c.ParsedOracleTimeout(); parseErr != nil {
		err = errors.Join(err, parseErr)
	}
	if _, parseErr := c.ParsedInitialDeposit(); parseErr != nil {
		err = errors.Join(err, parseErr)
	}
	if _, parseErr := c.ParsedDevAssetPrice(); parseErr != nil {
		err = errors.Join(err, parseErr)
	}
	if _, parseErr := c.ParsedDevMembers(); parseErr != nil {
		err = errors.Join(err, parseErr)
	}
	policy := governance.InsufficientFundsPolicy(c.InsufficientFundsPolicy)
	if !policy.Valid() {
		err = errors.Join(err, fmt.Errorf(
			"invalid insufficientFundsPolicy: %q (must be 'retry' or 'reject')",
			c.InsufficientFundsPolicy,
		))
	}
	return err
}

func parseDuration(name string, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: negative duration %s", name, value)
	}
	return d, nil
}

func parseAmount(name string, value string) (*big.Int, error) {
	if value == "" {
		return new(big.Int), nil
	}
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf(
			"invalid %s: %q is not a non-negative decimal integer",
			name,
			value,
		)
	}
	return amount, nil
}

func (c *Config) ParsedShutdownTimeout() (time.Duration, error) {
	return parseDuration("shutdownTimeout", c.ShutdownTimeout, 30*time.Second)
}

func (c *Config) ParsedVotingPeriod() (time.Duration, error) {
	return parseDuration(
		"votingPeriod",
		c.VotingPeriod,
		governance.DefaultVotingPeriod,
	)
}

func (c *Config) ParsedOracleTimeout() (time.Duration, error) {
	return parseDuration(
		"oracleTimeout",
		c.OracleTimeout,
		governance.DefaultOracleTimeout,
	)
}

// ParsedInitialDeposit returns the initial treasury deposit in wei
func (c *Config) ParsedInitialDeposit() (*big.Int, error) {
	return parseAmount("initialDeposit", c.InitialDeposit)
}

func (c *Config) ParsedDevAssetPrice() (*big.Int, error) {
	return parseAmount("devAssetPrice", c.DevAssetPrice)
}

// DevMember is a token assignment for the in-memory registry
type DevMember struct {
	Address governance.Address
	Token   governance.TokenID
}

func (c *Config) ParsedDevMembers() ([]DevMember, error) {
	ret := make([]DevMember, 0, len(c.DevMembers))
	for _, entry := range c.DevMembers {
		addr, token, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok || addr == "" {
			return nil, fmt.Errorf(
				"invalid devMembers entry %q: expected address:token",
				entry,
			)
		}
		tokenID, err := strconv.ParseUint(token, 10, 64)
		if err != nil {
			return nil, fmt.Errorf(
				"invalid devMembers entry %q: %w",
				entry,
				err,
			)
		}
		ret = append(ret, DevMember{
			Address: governance.Address(addr),
			Token:   governance.TokenID(tokenID),
		})
	}
	return ret, nil
}

func GetConfig() *Config {
	return globalConfig
}
