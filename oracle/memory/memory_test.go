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

package memory_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/gavel/governance"
	"github.com/blinklabs-io/gavel/oracle/memory"
)

func TestRegistryMintAndQuery(t *testing.T) {
	ctx := context.Background()
	r := memory.NewRegistry()
	require.NoError(t, r.Mint("alice", 3))
	require.NoError(t, r.Mint("alice", 1))
	require.NoError(t, r.Mint("bob", 2))
	require.ErrorIs(t, r.Mint("carol", 2), memory.ErrTokenExists)
	require.Error(t, r.Mint("", 9))

	tokens, err := r.TokensOwnedBy(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []governance.TokenID{1, 3}, tokens)

	balance, err := r.BalanceOf(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), balance)

	ok, err := r.OwnsAny(ctx, "carol")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, uint64(3), r.TotalSupply())
	owner, err := r.OwnerOf(2)
	require.NoError(t, err)
	assert.Equal(t, governance.Address("bob"), owner)
	_, err = r.OwnerOf(42)
	require.ErrorIs(t, err, memory.ErrTokenNotFound)
}

func TestRegistryTransfer(t *testing.T) {
	ctx := context.Background()
	r := memory.NewRegistry()
	require.NoError(t, r.Mint("alice", 1))
	require.ErrorIs(t, r.Transfer("bob", "carol", 1), memory.ErrNotOwner)
	require.ErrorIs(t, r.Transfer("alice", "bob", 7), memory.ErrTokenNotFound)
	require.NoError(t, r.Transfer("alice", "bob", 1))
	aliceOwns, err := r.OwnsAny(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, aliceOwns)
	bobOwns, err := r.OwnsAny(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, bobOwns)
}

func TestRegistryCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := memory.NewRegistry()
	_, err := r.OwnsAny(ctx, "alice")
	require.ErrorIs(t, err, context.Canceled)
}

func TestMarketplacePurchase(t *testing.T) {
	ctx := context.Background()
	m := memory.NewMarketplace(
		memory.WithAssetPrice(7, big.NewInt(50)),
	)
	price, err := m.GetPrice(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, price.Cmp(memory.DefaultPrice))

	price, err = m.GetPrice(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(50), price.Int64())

	// Callers cannot mutate the quoted price
	price.SetInt64(1)
	price, err = m.GetPrice(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(50), price.Int64())

	require.ErrorIs(t, m.Purchase(ctx, 7, big.NewInt(49)), governance.ErrPriceChanged)
	require.NoError(t, m.Purchase(ctx, 7, big.NewInt(50)))
	assert.True(t, m.Sold(7))

	available, err := m.IsAvailable(ctx, 7)
	require.NoError(t, err)
	assert.False(t, available)
	require.ErrorIs(t, m.Purchase(ctx, 7, big.NewInt(50)), governance.ErrAssetUnavailable)
}

func TestMarketplaceSetPrice(t *testing.T) {
	ctx := context.Background()
	m := memory.NewMarketplace(memory.WithDefaultPrice(big.NewInt(10)))
	m.SetPrice(3, big.NewInt(30))
	p, err := m.GetPrice(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(30), p.Int64())
	p, err = m.GetPrice(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(10), p.Int64())
}
