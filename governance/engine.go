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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"math/big"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blinklabs-io/gavel/event"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultVotingPeriod  = 5 * time.Minute
	DefaultOracleTimeout = 10 * time.Second
)

// InsufficientFundsPolicy decides what happens when a passed proposal cannot
// be paid for
type InsufficientFundsPolicy string

const (
	// InsufficientFundsRetry rejects the execution attempt and leaves the
	// proposal executable once the treasury is funded
	InsufficientFundsRetry InsufficientFundsPolicy = "retry"
	// InsufficientFundsReject closes the proposal as unfunded
	InsufficientFundsReject InsufficientFundsPolicy = "reject"
)

// Valid returns true if the policy is a known value
func (p InsufficientFundsPolicy) Valid() bool {
	switch p {
	case InsufficientFundsRetry, InsufficientFundsReject, "":
		return true
	default:
		return false
	}
}

type EngineConfig struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	EventBus     *event.EventBus
	Membership   MembershipOracle
	Marketplace  PurchaseOracle
	// Ledger persists state. State is kept in memory only when nil.
	Ledger Ledger
	Clock  Clock
	// InitialDeposit is credited once, the first time the engine starts
	// against a ledger that has never been funded
	InitialDeposit          *big.Int
	InitialDepositor        Address
	InsufficientFundsPolicy InsufficientFundsPolicy
	VotingPeriod            time.Duration
	OracleTimeout           time.Duration
}

// snapshot is an immutable view of engine state. A new snapshot is built for
// every committed change and swapped in atomically.
type snapshot struct {
	treasury  *big.Int
	proposals []Proposal
	// voted holds the tokens that have voted, keyed by proposal id. Inner
	// sets are replaced, never modified, once published.
	voted map[uint64]map[TokenID]struct{}
}

func (s *snapshot) proposal(id uint64) (Proposal, bool) {
	if id >= uint64(len(s.proposals)) {
		return Proposal{}, false
	}
	return s.proposals[id].clone(), true
}

func (s *snapshot) hasVoted(proposalID uint64, token TokenID) bool {
	_, ok := s.voted[proposalID][token]
	return ok
}

// apply returns a new snapshot with the change applied
func (s *snapshot) apply(change *Change) *snapshot {
	next := &snapshot{
		treasury:  s.treasury,
		proposals: s.proposals,
		voted:     s.voted,
	}
	if change.Proposal != nil {
		proposal := change.Proposal.clone()
		if change.ProposalCreated {
			next.proposals = append(slices.Clip(s.proposals), proposal)
		} else {
			next.proposals = slices.Clone(s.proposals)
			next.proposals[proposal.ID] = proposal
		}
	}
	if change.Treasury != nil {
		next.treasury = new(big.Int).Set(change.Treasury)
	}
	if len(change.Votes) > 0 {
		next.voted = addVotes(s.voted, change.Votes)
	}
	return next
}

// addVotes returns a copy of voted with records added. Only the sets of the
// proposals named in records are copied.
func addVotes(
	voted map[uint64]map[TokenID]struct{},
	records []VoteRecord,
) map[uint64]map[TokenID]struct{} {
	next := maps.Clone(voted)
	if next == nil {
		next = make(map[uint64]map[TokenID]struct{})
	}
	copied := make(map[uint64]bool)
	for _, v := range records {
		if !copied[v.ProposalID] {
			tokens := maps.Clone(next[v.ProposalID])
			if tokens == nil {
				tokens = make(map[TokenID]struct{})
			}
			next[v.ProposalID] = tokens
			copied[v.ProposalID] = true
		}
		next[v.ProposalID][v.TokenID] = struct{}{}
	}
	return next
}

// Engine is the governance state machine. All mutating operations are
// serialized by a single writer lock; reads use the latest committed
// snapshot and never wait on the writer.
type Engine struct {
	config  EngineConfig
	logger  *slog.Logger
	metrics *engineMetrics
	state   atomic.Pointer[snapshot]
	mu      sync.Mutex
	funded  bool
}

// NewEngine creates a governance engine. Call Start to load persisted state.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Membership == nil {
		return nil, errors.New("membership oracle is required")
	}
	if cfg.Marketplace == nil {
		return nil, errors.New("purchase oracle is required")
	}
	if !cfg.InsufficientFundsPolicy.Valid() {
		return nil, fmt.Errorf(
			"invalid insufficient funds policy: %q",
			cfg.InsufficientFundsPolicy,
		)
	}
	if cfg.InsufficientFundsPolicy == "" {
		cfg.InsufficientFundsPolicy = InsufficientFundsRetry
	}
	if cfg.VotingPeriod < 0 {
		return nil, fmt.Errorf("invalid voting period: %s", cfg.VotingPeriod)
	}
	if cfg.VotingPeriod == 0 {
		cfg.VotingPeriod = DefaultVotingPeriod
	}
	if cfg.OracleTimeout <= 0 {
		cfg.OracleTimeout = DefaultOracleTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Ledger == nil {
		cfg.Ledger = nopLedger{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	e := &Engine{
		config: cfg,
		logger: cfg.Logger.With("component", "governance"),
	}
	e.state.Store(&snapshot{treasury: new(big.Int)})
	if cfg.PromRegistry != nil {
		e.initMetrics()
	}
	return e, nil
}

// Start loads persisted state and applies the initial deposit if the
// treasury has never been funded
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	state, err := e.config.Ledger.LoadGovernanceState()
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("load governance state: %w", err)
	}
	treasury := state.Treasury
	if treasury == nil {
		treasury = new(big.Int)
	}
	proposals := make([]Proposal, 0, len(state.Proposals))
	for i, p := range state.Proposals {
		if p.ID != uint64(i) {
			e.mu.Unlock()
			return fmt.Errorf(
				"proposal ids are not sequential: found %d at position %d",
				p.ID,
				i,
			)
		}
		proposals = append(proposals, p.clone())
	}
	e.funded = state.Funded
	snap := &snapshot{
		treasury:  new(big.Int).Set(treasury),
		proposals: proposals,
		voted:     addVotes(nil, state.Votes),
	}
	e.state.Store(snap)
	e.updateStateMetrics(snap)
	e.logger.Info(
		"governance state loaded",
		"proposals", len(proposals),
		"votes", len(state.Votes),
		"treasury", treasury.String(),
	)
	needsDeposit := !e.funded && e.config.InitialDeposit != nil &&
		e.config.InitialDeposit.Sign() > 0
	e.mu.Unlock()
	if needsDeposit {
		if _, err := e.Deposit(ctx, e.config.InitialDepositor, e.config.InitialDeposit); err != nil {
			return fmt.Errorf("initial deposit: %w", err)
		}
	}
	return nil
}

// VotingPeriod returns the configured voting window
func (e *Engine) VotingPeriod() time.Duration {
	return e.config.VotingPeriod
}

// Now returns the current time from the engine clock
func (e *Engine) Now() time.Time {
	return e.config.Clock.Now()
}

// NumProposals returns the number of proposals ever created
func (e *Engine) NumProposals() uint64 {
	return uint64(len(e.state.Load().proposals))
}

// GetProposal returns a copy of a proposal
func (e *Engine) GetProposal(id uint64) (Proposal, error) {
	p, ok := e.state.Load().proposal(id)
	if !ok {
		return Proposal{}, fmt.Errorf("%w: %d", ErrProposalNotFound, id)
	}
	return p, nil
}

// Proposals returns a copy of all proposals ordered by id
func (e *Engine) Proposals() []Proposal {
	proposals := e.state.Load().proposals
	ret := make([]Proposal, len(proposals))
	for i, p := range proposals {
		ret[i] = p.clone()
	}
	return ret
}

// Status returns the lifecycle state of a proposal now
func (e *Engine) Status(id uint64) (ProposalStatus, error) {
	p, err := e.GetProposal(id)
	if err != nil {
		return "", err
	}
	return p.StatusAt(e.config.Clock.Now()), nil
}

// TreasuryBalance returns the current treasury balance
func (e *Engine) TreasuryBalance() *big.Int {
	return new(big.Int).Set(e.state.Load().treasury)
}

// HasVoted reports whether a token has already voted on a proposal
func (e *Engine) HasVoted(proposalID uint64, token TokenID) bool {
	return e.state.Load().hasVoted(proposalID, token)
}

// Deposit credits the treasury and returns the new balance
func (e *Engine) Deposit(
	ctx context.Context,
	from Address,
	amount *big.Int,
) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, e.fail("deposit", ErrInvalidAmount)
	}
	amount = new(big.Int).Set(amount)
	e.mu.Lock()
	if err := ctx.Err(); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	snap := e.state.Load()
	balance := new(big.Int).Add(snap.treasury, amount)
	change := &Change{
		Treasury: balance,
		Entry: &TreasuryEntry{
			Timestamp:    e.config.Clock.Now(),
			Kind:         TreasuryEntryDeposit,
			Amount:       amount,
			BalanceAfter: balance,
			Counterparty: from,
		},
	}
	if err := e.commit(snap, change); err != nil {
		e.mu.Unlock()
		return nil, e.fail("deposit", err)
	}
	e.funded = true
	e.mu.Unlock()
	e.logger.Info(
		"treasury deposit",
		"from", string(from),
		"amount", amount.String(),
		"balance", balance.String(),
	)
	e.publish(TreasuryDepositEventType, TreasuryDepositEvent{
		From:    from,
		Amount:  new(big.Int).Set(amount),
		Balance: new(big.Int).Set(balance),
	})
	return new(big.Int).Set(balance), nil
}

// commit persists a change and then publishes the resulting snapshot.
// The caller must hold e.mu.
func (e *Engine) commit(snap *snapshot, change *Change) error {
	if err := e.config.Ledger.CommitGovernanceChange(change); err != nil {
		return fmt.Errorf("commit governance change: %w", err)
	}
	next := snap.apply(change)
	e.state.Store(next)
	e.updateStateMetrics(next)
	return nil
}

// fail records a rejected operation and returns err unchanged
func (e *Engine) fail(op string, err error) error {
	kind := errorKind(err)
	if e.metrics != nil {
		e.metrics.operationErrors.WithLabelValues(op, kind).Inc()
	}
	if kind == "internal" || kind == "oracle_unavailable" {
		e.logger.Error(
			"governance operation failed",
			"operation", op,
			"error", err,
		)
	} else {
		e.logger.Debug(
			"governance operation rejected",
			"operation", op,
			"error", err,
		)
	}
	return err
}

func (e *Engine) oracleContext(
	ctx context.Context,
) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.config.OracleTimeout)
}

func (e *Engine) ownsAny(ctx context.Context, addr Address) (bool, error) {
	ctx, cancel := e.oracleContext(ctx)
	defer cancel()
	ok, err := e.config.Membership.OwnsAny(ctx, addr)
	if err != nil {
		return false, &OracleError{Op: "membership.OwnsAny", Err: err}
	}
	return ok, nil
}

func (e *Engine) tokensOwnedBy(
	ctx context.Context,
	addr Address,
) ([]TokenID, error) {
	ctx, cancel := e.oracleContext(ctx)
	defer cancel()
	tokens, err := e.config.Membership.TokensOwnedBy(ctx, addr)
	if err != nil {
		return nil, &OracleError{Op: "membership.TokensOwnedBy", Err: err}
	}
	return tokens, nil
}

func (e *Engine) isAvailable(ctx context.Context, asset AssetID) (bool, error) {
	ctx, cancel := e.oracleContext(ctx)
	defer cancel()
	ok, err := e.config.Marketplace.IsAvailable(ctx, asset)
	if err != nil {
		return false, &OracleError{Op: "marketplace.IsAvailable", Err: err}
	}
	return ok, nil
}

func (e *Engine) getPrice(ctx context.Context, asset AssetID) (*big.Int, error) {
	ctx, cancel := e.oracleContext(ctx)
	defer cancel()
	price, err := e.config.Marketplace.GetPrice(ctx, asset)
	if err != nil {
		if errors.Is(err, ErrAssetUnavailable) {
			return nil, fmt.Errorf("%w: %d", ErrAssetUnavailable, asset)
		}
		return nil, &OracleError{Op: "marketplace.GetPrice", Err: err}
	}
	if price == nil || price.Sign() < 0 {
		return nil, &OracleError{
			Op:  "marketplace.GetPrice",
			Err: fmt.Errorf("invalid price quoted for asset %d", asset),
		}
	}
	return new(big.Int).Set(price), nil
}

func (e *Engine) purchase(
	ctx context.Context,
	asset AssetID,
	amount *big.Int,
) error {
	ctx, cancel := e.oracleContext(ctx)
	defer cancel()
	err := e.config.Marketplace.Purchase(ctx, asset, new(big.Int).Set(amount))
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrAssetUnavailable):
		return fmt.Errorf("%w: %d", ErrAssetUnavailable, asset)
	case errors.Is(err, ErrPriceChanged):
		return fmt.Errorf("%w: asset %d", ErrPriceChanged, asset)
	default:
		return &OracleError{Op: "marketplace.Purchase", Err: err}
	}
}
