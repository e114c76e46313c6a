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

package governance

import (
	"context"
	"math/big"
	"time"
)

// MembershipOracle answers ownership questions about the membership token.
// It is owned by an external registry and is read-only from the engine's
// point of view.
type MembershipOracle interface {
	OwnsAny(ctx context.Context, addr Address) (bool, error)
	BalanceOf(ctx context.Context, addr Address) (uint64, error)
	// TokensOwnedBy returns every token currently owned by addr
	TokensOwnedBy(ctx context.Context, addr Address) ([]TokenID, error)
}

// PurchaseOracle quotes and executes purchases on the external marketplace.
//
// GetPrice and Purchase return ErrAssetUnavailable when the asset can no
// longer be bought. Purchase returns ErrPriceChanged if amount does not
// match the current price. Any other error is treated as a transport or
// dependency failure.
type PurchaseOracle interface {
	IsAvailable(ctx context.Context, asset AssetID) (bool, error)
	GetPrice(ctx context.Context, asset AssetID) (*big.Int, error)
	Purchase(ctx context.Context, asset AssetID, amount *big.Int) error
}

// Clock is the single authoritative time source for an engine
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
