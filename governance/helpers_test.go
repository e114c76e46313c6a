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

package governance_test

import (
	"context"
	"errors"
	"math/big"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/gavel/governance"
	"github.com/blinklabs-io/gavel/oracle/memory"
)

var (
	// one ETH in wei
	oneEth  = big.NewInt(1_000_000_000_000_000_000)
	halfEth = big.NewInt(500_000_000_000_000_000)
	epoch   = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
)

type fakeClock struct {
	now time.Time
	mu  sync.Mutex
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: epoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// flakyMembership fails or hangs on demand
type flakyMembership struct {
	governance.MembershipOracle
	err  error
	hang bool
	mu   sync.Mutex
}

func (f *flakyMembership) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *flakyMembership) check(ctx context.Context) error {
	f.mu.Lock()
	err, hang := f.err, f.hang
	f.mu.Unlock()
	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (f *flakyMembership) OwnsAny(ctx context.Context, addr governance.Address) (bool, error) {
	if err := f.check(ctx); err != nil {
		return false, err
	}
	return f.MembershipOracle.OwnsAny(ctx, addr)
}

func (f *flakyMembership) BalanceOf(ctx context.Context, addr governance.Address) (uint64, error) {
	if err := f.check(ctx); err != nil {
		return 0, err
	}
	return f.MembershipOracle.BalanceOf(ctx, addr)
}

func (f *flakyMembership) TokensOwnedBy(
	ctx context.Context,
	addr governance.Address,
) ([]governance.TokenID, error) {
	if err := f.check(ctx); err != nil {
		return nil, err
	}
	return f.MembershipOracle.TokensOwnedBy(ctx, addr)
}

// flakyMarketplace fails purchases on demand and counts purchase attempts
type flakyMarketplace struct {
	*memory.Marketplace
	purchaseErr error
	quoteErr    error
	purchases   int
	mu          sync.Mutex
}

func (f *flakyMarketplace) GetPrice(
	ctx context.Context,
	asset governance.AssetID,
) (*big.Int, error) {
	f.mu.Lock()
	err := f.quoteErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.Marketplace.GetPrice(ctx, asset)
}

func (f *flakyMarketplace) Purchase(
	ctx context.Context,
	asset governance.AssetID,
	amount *big.Int,
) error {
	f.mu.Lock()
	f.purchases++
	err := f.purchaseErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Marketplace.Purchase(ctx, asset, amount)
}

func (f *flakyMarketplace) Purchases() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.purchases
}

// memLedger is an in-memory governance.Ledger that can be reloaded
type memLedger struct {
	treasury  *big.Int
	proposals []governance.Proposal
	votes     []governance.VoteRecord
	entries   []governance.TreasuryEntry
	receipts  []governance.ExecutionReceipt
	failNext  error
	funded    bool
	mu        sync.Mutex
}

func newMemLedger() *memLedger {
	return &memLedger{treasury: new(big.Int)}
}

func (l *memLedger) LoadGovernanceState() (*governance.LedgerState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &governance.LedgerState{
		Treasury:  new(big.Int).Set(l.treasury),
		Proposals: slices.Clone(l.proposals),
		Votes:     slices.Clone(l.votes),
		Funded:    l.funded,
	}, nil
}

func (l *memLedger) CommitGovernanceChange(change *governance.Change) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failNext != nil {
		err := l.failNext
		l.failNext = nil
		return err
	}
	if change.Proposal != nil {
		if change.ProposalCreated {
			l.proposals = append(l.proposals, *change.Proposal)
		} else {
			l.proposals[change.Proposal.ID] = *change.Proposal
		}
	}
	l.votes = append(l.votes, change.Votes...)
	if change.Treasury != nil {
		l.treasury = new(big.Int).Set(change.Treasury)
	}
	if change.Entry != nil {
		l.entries = append(l.entries, *change.Entry)
		if change.Entry.Kind == governance.TreasuryEntryDeposit {
			l.funded = true
		}
	}
	if change.Receipt != nil {
		l.receipts = append(l.receipts, *change.Receipt)
	}
	return nil
}

func (l *memLedger) failNextCommit(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failNext = err
}

type testEnv struct {
	engine      *governance.Engine
	clock       *fakeClock
	registry    *memory.Registry
	membership  *flakyMembership
	marketplace *flakyMarketplace
	ledger      *memLedger
}

type envOption func(*governance.EngineConfig)

func withPolicy(p governance.InsufficientFundsPolicy) envOption {
	return func(cfg *governance.EngineConfig) {
		cfg.InsufficientFundsPolicy = p
	}
}

func withDeposit(amount *big.Int) envOption {
	return func(cfg *governance.EngineConfig) {
		cfg.InitialDeposit = amount
	}
}

// newTestEnv builds a started engine funded with one ETH. Alice owns token
// 1, Bob owns nothing, and asset 3 costs half an ETH.
func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	env := &testEnv{
		clock:    newFakeClock(),
		registry: memory.NewRegistry(),
		ledger:   newMemLedger(),
	}
	require.NoError(t, env.registry.Mint("alice", 1))
	env.membership = &flakyMembership{MembershipOracle: env.registry}
	env.marketplace = &flakyMarketplace{
		Marketplace: memory.NewMarketplace(
			memory.WithAssetPrice(3, halfEth),
		),
	}
	cfg := governance.EngineConfig{
		Membership:       env.membership,
		Marketplace:      env.marketplace,
		Ledger:           env.ledger,
		Clock:            env.clock,
		InitialDeposit:   oneEth,
		InitialDepositor: "deployer",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	engine, err := governance.NewEngine(cfg)
	require.NoError(t, err)
	require.NoError(t, engine.Start(context.Background()))
	env.engine = engine
	return env
}

// restart builds a new engine over the same ledger and oracles
func (env *testEnv) restart(t *testing.T) {
	t.Helper()
	engine, err := governance.NewEngine(governance.EngineConfig{
		Membership:       env.membership,
		Marketplace:      env.marketplace,
		Ledger:           env.ledger,
		Clock:            env.clock,
		InitialDeposit:   oneEth,
		InitialDepositor: "deployer",
	})
	require.NoError(t, err)
	require.NoError(t, engine.Start(context.Background()))
	env.engine = engine
}

func (env *testEnv) pastDeadline(t *testing.T, proposalID uint64) {
	t.Helper()
	p, err := env.engine.GetProposal(proposalID)
	require.NoError(t, err)
	env.clock.Set(p.Deadline)
}

var errBoom = errors.New("boom")
