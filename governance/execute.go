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
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// ExecuteProposal closes a proposal whose voting window has ended. Any
// member may trigger execution.
//
// If yes votes outnumber no votes the asset is bought at the current quoted
// price and the treasury is debited. Otherwise the proposal is closed as
// rejected with no treasury effect. A proposal executes at most once.
func (e *Engine) ExecuteProposal(
	ctx context.Context,
	caller Address,
	proposalID uint64,
) (ExecutionOutcome, error) {
	outcome, err := e.executeProposal(ctx, caller, proposalID)
	if err != nil {
		return ExecutionOutcome{}, e.fail("execute", err)
	}
	if e.metrics != nil {
		e.metrics.proposalsExecuted.WithLabelValues(string(outcome.Status)).Inc()
	}
	e.logger.Info(
		"proposal executed",
		"proposal_id", proposalID,
		"asset_id", uint64(outcome.AssetID),
		"status", string(outcome.Status),
		"price", outcome.Price.String(),
		"treasury", outcome.TreasuryBalance.String(),
		"executor", string(caller),
	)
	e.publish(ProposalExecutedEventType, ProposalExecutedEvent{Outcome: outcome.clone()})
	return outcome, nil
}

func (e *Engine) executeProposal(
	ctx context.Context,
	caller Address,
	proposalID uint64,
) (ExecutionOutcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.config.Clock.Now()
	snap := e.state.Load()
	proposal, ok := snap.proposal(proposalID)
	if !ok {
		return ExecutionOutcome{}, fmt.Errorf(
			"%w: %d",
			ErrProposalNotFound,
			proposalID,
		)
	}
	if now.Before(proposal.Deadline) {
		return ExecutionOutcome{}, fmt.Errorf(
			"%w: proposal %d closes in %s",
			ErrDeadlineNotReached,
			proposalID,
			proposal.Deadline.Sub(now),
		)
	}
	if proposal.Executed {
		return ExecutionOutcome{}, fmt.Errorf(
			"%w: proposal %d",
			ErrAlreadyExecuted,
			proposalID,
		)
	}
	member, err := e.ownsAny(ctx, caller)
	if err != nil {
		return ExecutionOutcome{}, err
	}
	if !member {
		return ExecutionOutcome{}, ErrNotAMember
	}
	outcome := ExecutionOutcome{
		ProposalID:      proposalID,
		AssetID:         proposal.TargetAssetID,
		Price:           new(big.Int),
		TreasuryBalance: new(big.Int).Set(snap.treasury),
	}
	change := &Change{Proposal: &proposal}
	proposal.Executed = true
	proposal.ExecutedAt = now
	if proposal.YesVotes <= proposal.NoVotes {
		outcome.Status = ExecutionRejected
		proposal.Outcome = ExecutionRejected
		if err := e.commit(snap, change); err != nil {
			return ExecutionOutcome{}, err
		}
		return outcome, nil
	}
	asset := proposal.TargetAssetID
	available, err := e.isAvailable(ctx, asset)
	if err != nil {
		return ExecutionOutcome{}, err
	}
	if !available {
		return ExecutionOutcome{}, fmt.Errorf("%w: %d", ErrAssetUnavailable, asset)
	}
	price, err := e.getPrice(ctx, asset)
	if err != nil {
		return ExecutionOutcome{}, err
	}
	if snap.treasury.Cmp(price) < 0 {
		if e.config.InsufficientFundsPolicy != InsufficientFundsReject {
			return ExecutionOutcome{}, fmt.Errorf(
				"%w: balance %s, price %s",
				ErrInsufficientFunds,
				snap.treasury.String(),
				price.String(),
			)
		}
		outcome.Status = ExecutionUnfunded
		proposal.Outcome = ExecutionUnfunded
		if err := e.commit(snap, change); err != nil {
			return ExecutionOutcome{}, err
		}
		return outcome, nil
	}
	if err := e.purchase(ctx, asset, price); err != nil {
		return ExecutionOutcome{}, err
	}
	balance := new(big.Int).Sub(snap.treasury, price)
	receiptID := uuid.NewString()
	proposal.Outcome = ExecutionPurchased
	proposal.PricePaid = price
	id := proposalID
	change.Treasury = balance
	change.Entry = &TreasuryEntry{
		Timestamp:    now,
		Kind:         TreasuryEntryPurchase,
		Amount:       price,
		BalanceAfter: balance,
		ProposalID:   &id,
	}
	change.Receipt = &ExecutionReceipt{
		ID:         receiptID,
		ProposalID: proposalID,
		AssetID:    asset,
		Price:      price,
		Status:     ExecutionPurchased,
		ExecutedAt: now,
	}
	if err := e.commit(snap, change); err != nil {
		// The purchase already happened on the marketplace
		e.logger.Error(
			"purchase completed but ledger commit failed, manual reconciliation required",
			"proposal_id", proposalID,
			"asset_id", uint64(asset),
			"price", price.String(),
			"receipt_id", receiptID,
			"error", err,
		)
		return ExecutionOutcome{}, err
	}
	outcome.Status = ExecutionPurchased
	outcome.Price = new(big.Int).Set(price)
	outcome.TreasuryBalance = new(big.Int).Set(balance)
	outcome.ReceiptID = receiptID
	return outcome, nil
}
