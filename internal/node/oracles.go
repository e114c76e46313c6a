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
	"fmt"
	"log/slog"

	"github.com/blinklabs-io/gavel/governance"
	"github.com/blinklabs-io/gavel/internal/config"
	"github.com/blinklabs-io/gavel/oracle/memory"
	"github.com/blinklabs-io/gavel/oracle/remote"
)

// DevOracles builds the in-memory registry and marketplace from the
// devMembers and devAssetPrice settings
func DevOracles(
	cfg *config.Config,
) (*memory.Registry, *memory.Marketplace, error) {
	members, err := cfg.ParsedDevMembers()
	if err != nil {
		return nil, nil, err
	}
	price, err := cfg.ParsedDevAssetPrice()
	if err != nil {
		return nil, nil, err
	}
	registry := memory.NewRegistry()
	for _, member := range members {
		if err := registry.Mint(member.Address, member.Token); err != nil {
			return nil, nil, fmt.Errorf("dev member %s: %w", member.Address, err)
		}
	}
	marketplace := memory.NewMarketplace(memory.WithDefaultPrice(price))
	return registry, marketplace, nil
}

// Oracles returns the membership and purchase oracles selected by cfg. A
// configured oracle URL takes precedence over the in-memory oracles.
func Oracles(
	cfg *config.Config,
	logger *slog.Logger,
) (governance.MembershipOracle, governance.PurchaseOracle, error) {
	if cfg.OracleUrl != "" {
		client, err := remote.NewClient(
			cfg.OracleUrl,
			remote.WithClientLogger(logger),
		)
		if err != nil {
			return nil, nil, err
		}
		return client, client, nil
	}
	logger.Warn(
		"no oracle URL configured, using in-memory development oracles",
		"component", "node",
	)
	registry, marketplace, err := DevOracles(cfg)
	if err != nil {
		return nil, nil, err
	}
	return registry, marketplace, nil
}
