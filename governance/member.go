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
	"slices"
)

// MemberInfo describes the membership tokens held by an address
type MemberInfo struct {
	Address Address
	Tokens  []TokenID
	Balance uint64
}

// Member reports true if the address holds at least one membership token
func (m MemberInfo) Member() bool {
	return m.Balance > 0
}

// MemberBalance returns the membership token balance of addr and the tokens
// it holds, ordered by id. It takes no lock and reflects the oracle at the
// time of the call.
func (e *Engine) MemberBalance(
	ctx context.Context,
	addr Address,
) (MemberInfo, error) {
	balance, err := e.balanceOf(ctx, addr)
	if err != nil {
		return MemberInfo{}, e.fail("member_balance", err)
	}
	tokens, err := e.tokensOwnedBy(ctx, addr)
	if err != nil {
		return MemberInfo{}, e.fail("member_balance", err)
	}
	tokens = slices.Clone(tokens)
	slices.Sort(tokens)
	tokens = slices.Compact(tokens)
	if tokens == nil {
		tokens = []TokenID{}
	}
	return MemberInfo{
		Address: addr,
		Balance: balance,
		Tokens:  tokens,
	}, nil
}

func (e *Engine) balanceOf(ctx context.Context, addr Address) (uint64, error) {
	ctx, cancel := e.oracleContext(ctx)
	defer cancel()
	balance, err := e.config.Membership.BalanceOf(ctx, addr)
	if err != nil {
		return 0, &OracleError{Op: "membership.BalanceOf", Err: err}
	}
	return balance, nil
}
