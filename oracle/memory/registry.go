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

// Package memory provides in-process membership and purchase oracles for
// development, tests and single-node deployments
package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/blinklabs-io/gavel/governance"
)

var (
	ErrTokenExists   = errors.New("token already minted")
	ErrTokenNotFound = errors.New("token not found")
	ErrNotOwner      = errors.New("address does not own token")
)

// Registry tracks ownership of membership tokens
type Registry struct {
	owners map[governance.TokenID]governance.Address
	mu     sync.RWMutex
}

var _ governance.MembershipOracle = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{
		owners: make(map[governance.TokenID]governance.Address),
	}
}

// Mint creates a new token owned by owner
func (r *Registry) Mint(owner governance.Address, token governance.TokenID) error {
	if owner == "" {
		return errors.New("owner address is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.owners[token]; ok {
		return fmt.Errorf("%w: %d", ErrTokenExists, token)
	}
	r.owners[token] = owner
	return nil
}

// Transfer moves a token between owners
func (r *Registry) Transfer(
	from governance.Address,
	to governance.Address,
	token governance.TokenID,
) error {
	if to == "" {
		return errors.New("recipient address is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, ok := r.owners[token]
	if !ok {
		return fmt.Errorf("%w: %d", ErrTokenNotFound, token)
	}
	if owner != from {
		return fmt.Errorf("%w: %s does not own %d", ErrNotOwner, from, token)
	}
	r.owners[token] = to
	return nil
}

// OwnerOf returns the owner of a token
func (r *Registry) OwnerOf(token governance.TokenID) (governance.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, ok := r.owners[token]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrTokenNotFound, token)
	}
	return owner, nil
}

// TotalSupply returns the number of minted tokens
func (r *Registry) TotalSupply() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uint64(len(r.owners))
}

func (r *Registry) OwnsAny(
	ctx context.Context,
	addr governance.Address,
) (bool, error) {
	balance, err := r.BalanceOf(ctx, addr)
	if err != nil {
		return false, err
	}
	return balance > 0, nil
}

func (r *Registry) BalanceOf(
	ctx context.Context,
	addr governance.Address,
) (uint64, error) {
	tokens, err := r.TokensOwnedBy(ctx, addr)
	if err != nil {
		return 0, err
	}
	return uint64(len(tokens)), nil
}

// TokensOwnedBy returns the tokens owned by addr in ascending order
func (r *Registry) TokensOwnedBy(
	ctx context.Context,
	addr governance.Address,
) ([]governance.TokenID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ret []governance.TokenID
	for token, owner := range r.owners {
		if owner == addr {
			ret = append(ret, token)
		}
	}
	slices.Sort(ret)
	return ret, nil
}
