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

package memory

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/blinklabs-io/gavel/governance"
)

// DefaultPrice is the price of every asset without an override, 0.1 ETH in wei
var DefaultPrice = big.NewInt(100_000_000_000_000_000)

// Marketplace sells each asset once at a fixed price
type Marketplace struct {
	defaultPrice *big.Int
	prices       map[governance.AssetID]*big.Int
	sold         map[governance.AssetID]bool
	mu           sync.RWMutex
}

var _ governance.PurchaseOracle = (*Marketplace)(nil)

type MarketplaceOptionFunc func(*Marketplace)

// WithDefaultPrice specifies the price of assets without an override
func WithDefaultPrice(price *big.Int) MarketplaceOptionFunc {
	return func(m *Marketplace) {
		m.defaultPrice = new(big.Int).Set(price)
	}
}

// WithAssetPrice specifies the price of a single asset
func WithAssetPrice(asset governance.AssetID, price *big.Int) MarketplaceOptionFunc {
	return func(m *Marketplace) {
		m.prices[asset] = new(big.Int).Set(price)
	}
}

func NewMarketplace(opts ...MarketplaceOptionFunc) *Marketplace {
	m := &Marketplace{
		defaultPrice: new(big.Int).Set(DefaultPrice),
		prices:       make(map[governance.AssetID]*big.Int),
		sold:         make(map[governance.AssetID]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetPrice changes the price of an asset
func (m *Marketplace) SetPrice(asset governance.AssetID, price *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[asset] = new(big.Int).Set(price)
}

// Sold reports whether an asset has been purchased
func (m *Marketplace) Sold(asset governance.AssetID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sold[asset]
}

func (m *Marketplace) price(asset governance.AssetID) *big.Int {
	if p, ok := m.prices[asset]; ok {
		return p
	}
	return m.defaultPrice
}

func (m *Marketplace) IsAvailable(
	ctx context.Context,
	asset governance.AssetID,
) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.sold[asset], nil
}

func (m *Marketplace) GetPrice(
	ctx context.Context,
	asset governance.AssetID,
) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return new(big.Int).Set(m.price(asset)), nil
}

// Purchase marks the asset sold. amount must equal the current price.
func (m *Marketplace) Purchase(
	ctx context.Context,
	asset governance.AssetID,
	amount *big.Int,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sold[asset] {
		return fmt.Errorf("%w: %d", governance.ErrAssetUnavailable, asset)
	}
	price := m.price(asset)
	if amount == nil || amount.Cmp(price) != 0 {
		return fmt.Errorf(
			"%w: asset %d costs %s",
			governance.ErrPriceChanged,
			asset,
			price.String(),
		)
	}
	m.sold[asset] = true
	return nil
}
