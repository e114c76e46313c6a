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

// Package remote speaks the HTTP oracle protocol. Client consumes a remote
// membership and purchase oracle; Handler serves local oracles over the same
// protocol.
//
//	GET  /v1/members/{address}         -> MemberResponse
//	GET  /v1/assets/{asset}            -> AssetResponse
//	POST /v1/assets/{asset}/purchase   PurchaseRequest -> 200, 409 or 410
//
// Amounts are decimal strings in wei.
package remote

import (
	"fmt"
	"math/big"

	"github.com/blinklabs-io/gavel/governance"
)

const (
	membersPath = "/v1/members/"
	assetsPath  = "/v1/assets/"
)

type MemberResponse struct {
	Address string               `json:"address"`
	Tokens  []governance.TokenID `json:"tokens"`
	Balance uint64               `json:"balance"`
	OwnsAny bool                 `json:"owns_any"`
}

type AssetResponse struct {
	Price     string `json:"price,omitempty"`
	AssetID   uint64 `json:"asset_id"`
	Available bool   `json:"available"`
}

type PurchaseRequest struct {
	Amount string `json:"amount"`
}

type PurchaseResponse struct {
	Amount    string `json:"amount"`
	AssetID   uint64 `json:"asset_id"`
	Purchased bool   `json:"purchased"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func parseAmount(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount: %q", s)
	}
	return amount, nil
}
