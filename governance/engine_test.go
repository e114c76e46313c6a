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
	"math/big"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/gavel/event"
	"github.com/blinklabs-io/gavel/governance"
	"github.com/blinklabs-io/gavel/oracle/memory"
)

func TestNewEngineValidation(t *testing.T) {
	registry := memory.NewRegistry()
	market := memory.NewMarketplace()
	_, err := governance.NewEngine(governance.EngineConfig{Marketplace: market})
	require.Error(t, err)
	_, err = governance.NewEngine(governance.EngineConfig{Membership: registry})
	require.Error(t, err)
	_, err = governance.NewEngine(governance.EngineConfig{
		Membership:              registry,
		Marketplace:             market,
		InsufficientFundsPolicy: "maybe",
	})
	require.Error(t, err)
	_, err = governance.NewEngine(governance.EngineConfig{
		Membership:   registry,
		Marketplace:  market,
		VotingPeriod: -time.Second,
	})
	require.Error(t, err)
	e, err := governance.NewEngine(governance.EngineConfig{
		Membership:  registry,
		Marketplace: market,
	})
	require.NoError(t, err)
	assert.Equal(t, governance.DefaultVotingPeriod, e.VotingPeriod())
	assert.Equal(t, 0, e.TreasuryBalance().Sign())
}

// The walkthrough from creation through execution of a passing proposal
func TestProposalLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	e := env.engine
	require.Equal(t, 0, e.TreasuryBalance().Cmp(oneEth))

	id, err := e.CreateProposal(ctx, "alice", 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), id)
	p, err := e.GetProposal(id)
	require.NoError(t, err)
	assert.Equal(t, epoch.Add(300*time.Second), p.Deadline)
	assert.Equal(t, governance.AssetID(3), p.TargetAssetID)
	assert.Equal(t, governance.Address("alice"), p.Proposer)

	weight, err := e.VoteOnProposal(ctx, "alice", id, governance.VoteYes)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), weight)
	p, _ = e.GetProposal(id)
	assert.Equal(t, uint64(1), p.YesVotes)

	_, err = e.VoteOnProposal(ctx, "alice", id, governance.VoteYes)
	require.ErrorIs(t, err, governance.ErrAlreadyVoted)

	_, err = e.VoteOnProposal(ctx, "bob", id, governance.VoteYes)
	require.ErrorIs(t, err, governance.ErrNotAMember)

	env.pastDeadline(t, id)
	outcome, err := e.ExecuteProposal(ctx, "alice", id)
	require.NoError(t, err)
	assert.Equal(t, governance.ExecutionPurchased, outcome.Status)
	assert.Equal(t, 0, outcome.Price.Cmp(halfEth))
	assert.Equal(t, 0, outcome.TreasuryBalance.Cmp(halfEth))
	assert.NotEmpty(t, outcome.ReceiptID)
	assert.Equal(t, 0, e.TreasuryBalance().Cmp(halfEth))
	p, _ = e.GetProposal(id)
	assert.True(t, p.Executed)
	assert.Equal(t, governance.ExecutionPurchased, p.Outcome)
	assert.True(t, env.marketplace.Sold(3))

	_, err = e.ExecuteProposal(ctx, "alice", id)
	require.ErrorIs(t, err, governance.ErrAlreadyExecuted)

	require.Len(t, env.ledger.receipts, 1)
	assert.Equal(t, outcome.ReceiptID, env.ledger.receipts[0].ID)
	require.Len(t, env.ledger.entries, 2)
	assert.Equal(t, governance.TreasuryEntryPurchase, env.ledger.entries[1].Kind)
}

func TestRejectedProposal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	e := env.engine
	id, err := e.CreateProposal(ctx, "alice", 3)
	require.NoError(t, err)
	_, err = e.VoteOnProposal(ctx, "alice", id, governance.VoteNo)
	require.NoError(t, err)
	env.pastDeadline(t, id)
	outcome, err := e.ExecuteProposal(ctx, "alice", id)
	require.NoError(t, err)
	assert.Equal(t, governance.ExecutionRejected, outcome.Status)
	assert.Equal(t, 0, outcome.Price.Sign())
	assert.Equal(t, 0, e.TreasuryBalance().Cmp(oneEth))
	assert.Equal(t, 0, env.marketplace.Purchases())
	p, _ := e.GetProposal(id)
	assert.True(t, p.Executed)
	assert.Equal(t, governance.ExecutionRejected, p.Outcome)
}

func TestTiedVoteIsRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id, err := env.engine.CreateProposal(ctx, "alice", 3)
	require.NoError(t, err)
	env.pastDeadline(t, id)
	outcome, err := env.engine.ExecuteProposal(ctx, "alice", id)
	require.NoError(t, err)
	assert.Equal(t, governance.ExecutionRejected, outcome.Status)
	assert.Equal(t, 0, env.marketplace.Purchases())
}

func TestCreateProposalChecks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.engine.CreateProposal(ctx, "bob", 3)
	require.ErrorIs(t, err, governance.ErrNotAMember)

	require.NoError(t, env.marketplace.Purchase(ctx, 9, memory.DefaultPrice))
	_, err = env.engine.CreateProposal(ctx, "alice", 9)
	require.ErrorIs(t, err, governance.ErrAssetUnavailable)
	assert.Equal(t, uint64(0), env.engine.NumProposals())

	// Ids are assigned densely from zero
	for want := range uint64(3) {
		id, err := env.engine.CreateProposal(ctx, "alice", governance.AssetID(10+want))
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}
	assert.Equal(t, uint64(3), env.engine.NumProposals())
	assert.Len(t, env.engine.Proposals(), 3)
}

func TestUnknownProposal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.engine.VoteOnProposal(ctx, "alice", 7, governance.VoteYes)
	require.ErrorIs(t, err, governance.ErrProposalNotFound)
	_, err = env.engine.ExecuteProposal(ctx, "alice", 7)
	require.ErrorIs(t, err, governance.ErrProposalNotFound)
	_, err = env.engine.GetProposal(7)
	require.ErrorIs(t, err, governance.ErrProposalNotFound)
	_, err = env.engine.Status(7)
	require.ErrorIs(t, err, governance.ErrProposalNotFound)
}

func TestInvalidVoteValue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id, err := env.engine.CreateProposal(ctx, "alice", 3)
	require.NoError(t, err)
	_, err = env.engine.VoteOnProposal(ctx, "alice", id, governance.Vote(7))
	require.Error(t, err)
	p, _ := env.engine.GetProposal(id)
	assert.Zero(t, p.YesVotes+p.NoVotes)
}

func TestDeadlineGating(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	e := env.engine
	id, err := e.CreateProposal(ctx, "alice", 3)
	require.NoError(t, err)
	p, _ := e.GetProposal(id)

	env.clock.Set(p.Deadline.Add(-time.Nanosecond))
	_, err = e.ExecuteProposal(ctx, "alice", id)
	require.ErrorIs(t, err, governance.ErrDeadlineNotReached)
	status, err := e.Status(id)
	require.NoError(t, err)
	assert.Equal(t, governance.ProposalStatusVoting, status)

	// Voting closes at the deadline itself
	env.clock.Set(p.Deadline)
	_, err = e.VoteOnProposal(ctx, "alice", id, governance.VoteYes)
	require.ErrorIs(t, err, governance.ErrDeadlinePassed)
	status, _ = e.Status(id)
	assert.Equal(t, governance.ProposalStatusClosed, status)

	_, err = e.ExecuteProposal(ctx, "alice", id)
	require.NoError(t, err)
	status, _ = e.Status(id)
	assert.Equal(t, governance.ProposalStatusExecuted, status)
}

func TestDeadlineCheckedBeforeExecutedFlag(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id, err := env.engine.CreateProposal(ctx, "alice", 3)
	require.NoError(t, err)
	_, err = env.engine.ExecuteProposal(ctx, "bob", id)
	require.ErrorIs(t, err, governance.ErrDeadlineNotReached)
	env.pastDeadline(t, id)
	_, err = env.engine.ExecuteProposal(ctx, "bob", id)
	require.ErrorIs(t, err, governance.ErrNotAMember)
	_, err = env.engine.ExecuteProposal(ctx, "alice", id)
	require.NoError(t, err)
	_, err = env.engine.ExecuteProposal(ctx, "bob", id)
	require.ErrorIs(t, err, governance.ErrAlreadyExecuted)
}

func TestVoteWeightIsTokenCount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.registry.Mint("carol", 20))
	require.NoError(t, env.registry.Mint("carol", 21))
	require.NoError(t, env.registry.Mint("carol", 22))
	id, err := env.engine.CreateProposal(ctx, "carol", 3)
	require.NoError(t, err)
	weight, err := env.engine.VoteOnProposal(ctx, "carol", id, governance.VoteNo)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), weight)
	for _, tok := range []governance.TokenID{20, 21, 22} {
		assert.True(t, env.engine.HasVoted(id, tok))
	}
	assert.False(t, env.engine.HasVoted(id, 1))

	// A newly acquired token adds only its own weight
	require.NoError(t, env.registry.Transfer("alice", "carol", 1))
	weight, err = env.engine.VoteOnProposal(ctx, "carol", id, governance.VoteNo)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), weight)
	p, _ := env.engine.GetProposal(id)
	assert.Equal(t, uint64(4), p.NoVotes)
}

func TestTransferredTokenCannotRevote(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id, err := env.engine.CreateProposal(ctx, "alice", 3)
	require.NoError(t, err)
	_, err = env.engine.VoteOnProposal(ctx, "alice", id, governance.VoteYes)
	require.NoError(t, err)
	require.NoError(t, env.registry.Transfer("alice", "bob", 1))
	_, err = env.engine.VoteOnProposal(ctx, "bob", id, governance.VoteNo)
	require.ErrorIs(t, err, governance.ErrAlreadyVoted)
	// The former owner is no longer a member
	_, err = env.engine.VoteOnProposal(ctx, "alice", id, governance.VoteNo)
	require.ErrorIs(t, err, governance.ErrNotAMember)
	p, _ := env.engine.GetProposal(id)
	assert.Equal(t, uint64(1), p.YesVotes)
	assert.Equal(t, uint64(0), p.NoVotes)
}

func TestVotesAreScopedPerProposal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first, err := env.engine.CreateProposal(ctx, "alice", 3)
	require.NoError(t, err)
	second, err := env.engine.CreateProposal(ctx, "alice", 4)
	require.NoError(t, err)
	_, err = env.engine.VoteOnProposal(ctx, "alice", first, governance.VoteYes)
	require.NoError(t, err)
	_, err = env.engine.VoteOnProposal(ctx, "alice", second, governance.VoteNo)
	require.NoError(t, err)
}

func TestInsufficientFundsRetryPolicy(t *testing.T) {
	env := newTestEnv(t, withDeposit(big.NewInt(1_000)))
	ctx := context.Background()
	e := env.engine
	id, err := e.CreateProposal(ctx, "alice", 3)
	require.NoError(t, err)
	_, err = e.VoteOnProposal(ctx, "alice", id, governance.VoteYes)
	require.NoError(t, err)
	env.pastDeadline(t, id)

	_, err = e.ExecuteProposal(ctx, "alice", id)
	require.ErrorIs(t, err, governance.ErrInsufficientFunds)
	p, _ := e.GetProposal(id)
	assert.False(t, p.Executed)
	assert.Equal(t, 0, env.marketplace.Purchases())
	assert.Equal(t, int64(1_000), e.TreasuryBalance().Int64())

	_, err = e.Deposit(ctx, "donor", halfEth)
	require.NoError(t, err)
	outcome, err := e.ExecuteProposal(ctx, "alice", id)
	require.NoError(t, err)
	assert.Equal(t, governance.ExecutionPurchased, outcome.Status)
	assert.Equal(t, int64(1_000), e.TreasuryBalance().Int64())
}

func TestInsufficientFundsRejectPolicy(t *testing.T) {
	env := newTestEnv(
		t,
		withDeposit(big.NewInt(1_000)),
		withPolicy(governance.InsufficientFundsReject),
	)
	ctx := context.Background()
	e := env.engine
	id, err := e.CreateProposal(ctx, "alice", 3)
	require.NoError(t, err)
	_, err = e.VoteOnProposal(ctx, "alice", id, governance.VoteYes)
	require.NoError(t, err)
	env.pastDeadline(t, id)

	outcome, err := e.ExecuteProposal(ctx, "alice", id)
	require.NoError(t, err)
	assert.Equal(t, governance.ExecutionUnfunded, outcome.Status)
	p, _ := e.GetProposal(id)
	assert.True(t, p.Executed)
	assert.Equal(t, governance.ExecutionUnfunded, p.Outcome)
	assert.Equal(t, int64(1_000), e.TreasuryBalance().Int64())
	assert.Equal(t, 0, env.marketplace.Purchases())
	_, err = e.ExecuteProposal(ctx, "alice", id)
	require.ErrorIs(t, err, governance.ErrAlreadyExecuted)
}

func TestAssetSoldDuringVoting(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id, err := env.engine.CreateProposal(ctx, "alice", 3)
	require.NoError(t, err)
	_, err = env.engine.VoteOnProposal(ctx, "alice", id, governance.VoteYes)
	require.NoError(t, err)
	require.NoError(t, env.marketplace.Marketplace.Purchase(ctx, 3, halfEth))
	env.pastDeadline(t, id)
	_, err = env.engine.ExecuteProposal(ctx, "alice", id)
	require.ErrorIs(t, err, governance.ErrAssetUnavailable)
	p, _ := env.engine.GetProposal(id)
	assert.False(t, p.Executed)
	assert.Equal(t, 0, env.engine.TreasuryBalance().Cmp(oneEth))
}

func TestPurchaseFailureLeavesStateUnchanged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	e := env.engine
	id, err := e.CreateProposal(ctx, "alice", 3)
	require.NoError(t, err)
	_, err = e.VoteOnProposal(ctx, "alice", id, governance.VoteYes)
	require.NoError(t, err)
	env.pastDeadline(t, id)

	env.marketplace.purchaseErr = governance.ErrPriceChanged
	_, err = e.ExecuteProposal(ctx, "alice", id)
	require.ErrorIs(t, err, governance.ErrPriceChanged)
	assert.False(t, governance.IsRetryable(err))

	env.marketplace.purchaseErr = errBoom
	_, err = e.ExecuteProposal(ctx, "alice", id)
	require.ErrorIs(t, err, governance.ErrOracleUnavailable)
	require.ErrorIs(t, err, errBoom)
	assert.True(t, governance.IsRetryable(err))

	p, _ := e.GetProposal(id)
	assert.False(t, p.Executed)
	assert.Equal(t, 0, e.TreasuryBalance().Cmp(oneEth))

	env.marketplace.purchaseErr = nil
	_, err = e.ExecuteProposal(ctx, "alice", id)
	require.NoError(t, err)
}

func TestInvalidQuoteIsOracleFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id, err := env.engine.CreateProposal(ctx, "alice", 3)
	require.NoError(t, err)
	_, err = env.engine.VoteOnProposal(ctx, "alice", id, governance.VoteYes)
	require.NoError(t, err)
	env.pastDeadline(t, id)
	env.marketplace.quoteErr = errBoom
	_, err = env.engine.ExecuteProposal(ctx, "alice", id)
	require.ErrorIs(t, err, governance.ErrOracleUnavailable)
	var oracleErr *governance.OracleError
	require.ErrorAs(t, err, &oracleErr)
	assert.Equal(t, "marketplace.GetPrice", oracleErr.Op)
}

func TestOracleUnavailable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id, err := env.engine.CreateProposal(ctx, "alice", 3)
	require.NoError(t, err)
	env.membership.fail(errBoom)
	_, err = env.engine.CreateProposal(ctx, "alice", 4)
	require.ErrorIs(t, err, governance.ErrOracleUnavailable)
	_, err = env.engine.VoteOnProposal(ctx, "alice", id, governance.VoteYes)
	require.ErrorIs(t, err, governance.ErrOracleUnavailable)
	assert.Equal(t, uint64(1), env.engine.NumProposals())
	p, _ := env.engine.GetProposal(id)
	assert.Zero(t, p.YesVotes)
}

func TestOracleTimeout(t *testing.T) {
	registry := memory.NewRegistry()
	require.NoError(t, registry.Mint("alice", 1))
	membership := &flakyMembership{MembershipOracle: registry, hang: true}
	e, err := governance.NewEngine(governance.EngineConfig{
		Membership:    membership,
		Marketplace:   memory.NewMarketplace(),
		OracleTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, e.Start(context.Background()))
	start := time.Now()
	_, err = e.CreateProposal(context.Background(), "alice", 1)
	require.ErrorIs(t, err, governance.ErrOracleUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestLedgerFailureIsAtomic(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	e := env.engine

	env.ledger.failNextCommit(errBoom)
	_, err := e.CreateProposal(ctx, "alice", 3)
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, uint64(0), e.NumProposals())

	id, err := e.CreateProposal(ctx, "alice", 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), id)

	env.ledger.failNextCommit(errBoom)
	_, err = e.VoteOnProposal(ctx, "alice", id, governance.VoteYes)
	require.ErrorIs(t, err, errBoom)
	assert.False(t, e.HasVoted(id, 1))
	weight, err := e.VoteOnProposal(ctx, "alice", id, governance.VoteYes)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), weight)

	env.ledger.failNextCommit(errBoom)
	_, err = e.Deposit(ctx, "donor", big.NewInt(5))
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 0, e.TreasuryBalance().Cmp(oneEth))
}

func TestDeposit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.engine.Deposit(ctx, "donor", big.NewInt(0))
	require.ErrorIs(t, err, governance.ErrInvalidAmount)
	_, err = env.engine.Deposit(ctx, "donor", big.NewInt(-1))
	require.ErrorIs(t, err, governance.ErrInvalidAmount)
	_, err = env.engine.Deposit(ctx, "donor", nil)
	require.ErrorIs(t, err, governance.ErrInvalidAmount)
	amount := big.NewInt(25)
	balance, err := env.engine.Deposit(ctx, "donor", amount)
	require.NoError(t, err)
	want := new(big.Int).Add(oneEth, big.NewInt(25))
	assert.Equal(t, 0, balance.Cmp(want))
	// The engine keeps its own copy of the amount
	amount.SetInt64(1)
	assert.Equal(t, 0, env.engine.TreasuryBalance().Cmp(want))
	// Returned balances are copies
	env.engine.TreasuryBalance().SetInt64(0)
	assert.Equal(t, 0, env.engine.TreasuryBalance().Cmp(want))
}

func TestProposalReadsAreCopies(t *testing.T) {
	bus := event.NewEventBus(nil, nil)
	defer bus.Stop()
	_, execCh := bus.Subscribe(governance.ProposalExecutedEventType)
	env := newTestEnv(t, func(cfg *governance.EngineConfig) {
		cfg.EventBus = bus
	})
	ctx := context.Background()
	e := env.engine
	id, err := e.CreateProposal(ctx, "alice", 3)
	require.NoError(t, err)
	_, err = e.VoteOnProposal(ctx, "alice", id, governance.VoteYes)
	require.NoError(t, err)
	env.pastDeadline(t, id)
	outcome, err := e.ExecuteProposal(ctx, "alice", id)
	require.NoError(t, err)

	p, err := e.GetProposal(id)
	require.NoError(t, err)
	require.NotNil(t, p.PricePaid)
	p.PricePaid.SetInt64(42)
	p.YesVotes = 99
	e.Proposals()[0].PricePaid.SetInt64(43)
	outcome.Price.SetInt64(44)
	executed := receiveEvent(t, execCh).Data.(governance.ProposalExecutedEvent)
	executed.Outcome.Price.SetInt64(45)

	p, err = e.GetProposal(id)
	require.NoError(t, err)
	assert.Equal(t, 0, p.PricePaid.Cmp(halfEth))
	assert.Equal(t, uint64(1), p.YesVotes)
	assert.Equal(t, 0, e.Proposals()[0].PricePaid.Cmp(halfEth))
	assert.Equal(t, 0, e.TreasuryBalance().Cmp(halfEth))
}

func TestMemberBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.registry.Mint("alice", 7))
	require.NoError(t, env.registry.Mint("alice", 4))

	info, err := env.engine.MemberBalance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, governance.Address("alice"), info.Address)
	assert.Equal(t, uint64(3), info.Balance)
	assert.Equal(t, []governance.TokenID{1, 4, 7}, info.Tokens)
	assert.True(t, info.Member())

	info, err = env.engine.MemberBalance(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), info.Balance)
	assert.Empty(t, info.Tokens)
	assert.False(t, info.Member())

	env.membership.fail(errBoom)
	_, err = env.engine.MemberBalance(ctx, "alice")
	require.ErrorIs(t, err, governance.ErrOracleUnavailable)
	require.ErrorIs(t, err, errBoom)
	var oracleErr *governance.OracleError
	require.ErrorAs(t, err, &oracleErr)
	assert.Equal(t, "membership.BalanceOf", oracleErr.Op)
}

func TestRestartRestoresState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id, err := env.engine.CreateProposal(ctx, "alice", 3)
	require.NoError(t, err)
	_, err = env.engine.VoteOnProposal(ctx, "alice", id, governance.VoteYes)
	require.NoError(t, err)

	env.restart(t)
	e := env.engine
	// The initial deposit is not applied twice
	assert.Equal(t, 0, e.TreasuryBalance().Cmp(oneEth))
	assert.Equal(t, uint64(1), e.NumProposals())
	assert.True(t, e.HasVoted(id, 1))
	_, err = e.VoteOnProposal(ctx, "alice", id, governance.VoteYes)
	require.ErrorIs(t, err, governance.ErrAlreadyVoted)

	env.pastDeadline(t, id)
	_, err = e.ExecuteProposal(ctx, "alice", id)
	require.NoError(t, err)

	env.restart(t)
	_, err = env.engine.ExecuteProposal(ctx, "alice", id)
	require.ErrorIs(t, err, governance.ErrAlreadyExecuted)
	assert.Equal(t, 0, env.engine.TreasuryBalance().Cmp(halfEth))
	next, err := env.engine.CreateProposal(ctx, "alice", 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), next)
}

func TestStartRejectsGappedProposals(t *testing.T) {
	ledger := newMemLedger()
	ledger.proposals = []governance.Proposal{{ID: 0}, {ID: 2}}
	e, err := governance.NewEngine(governance.EngineConfig{
		Membership:  memory.NewRegistry(),
		Marketplace: memory.NewMarketplace(),
		Ledger:      ledger,
	})
	require.NoError(t, err)
	require.Error(t, e.Start(context.Background()))
}

func TestEventsPublished(t *testing.T) {
	bus := event.NewEventBus(nil, nil)
	defer bus.Stop()
	_, createdCh := bus.Subscribe(governance.ProposalCreatedEventType)
	_, voteCh := bus.Subscribe(governance.VoteCastEventType)
	_, execCh := bus.Subscribe(governance.ProposalExecutedEventType)
	_, depositCh := bus.Subscribe(governance.TreasuryDepositEventType)

	env := newTestEnv(t, func(cfg *governance.EngineConfig) {
		cfg.EventBus = bus
	})
	ctx := context.Background()
	deposit := receiveEvent(t, depositCh).Data.(governance.TreasuryDepositEvent)
	assert.Equal(t, governance.Address("deployer"), deposit.From)
	assert.Equal(t, 0, deposit.Balance.Cmp(oneEth))

	id, err := env.engine.CreateProposal(ctx, "alice", 3)
	require.NoError(t, err)
	created := receiveEvent(t, createdCh).Data.(governance.ProposalCreatedEvent)
	assert.Equal(t, id, created.Proposal.ID)

	_, err = env.engine.VoteOnProposal(ctx, "alice", id, governance.VoteYes)
	require.NoError(t, err)
	vote := receiveEvent(t, voteCh).Data.(governance.VoteCastEvent)
	assert.Equal(t, []governance.TokenID{1}, vote.Tokens)
	assert.Equal(t, governance.VoteYes, vote.Vote)

	env.pastDeadline(t, id)
	_, err = env.engine.ExecuteProposal(ctx, "alice", id)
	require.NoError(t, err)
	executed := receiveEvent(t, execCh).Data.(governance.ProposalExecutedEvent)
	assert.Equal(t, governance.ExecutionPurchased, executed.Outcome.Status)
}

func receiveEvent(t *testing.T, ch <-chan event.Event) event.Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
	return event.Event{}
}

func TestEngineMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	env := newTestEnv(t, func(cfg *governance.EngineConfig) {
		cfg.PromRegistry = reg
	})
	ctx := context.Background()
	_, err := env.engine.CreateProposal(ctx, "alice", 3)
	require.NoError(t, err)
	_, err = env.engine.CreateProposal(ctx, "bob", 3)
	require.ErrorIs(t, err, governance.ErrNotAMember)
	count, err := testutil.GatherAndCount(
		reg,
		"gavel_governance_proposals_created_total",
		"gavel_governance_operation_errors_total",
	)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
