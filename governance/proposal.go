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
)

// CreateProposal opens a new proposal to buy asset. The caller must own at
// least one membership token and the asset must currently be purchasable.
func (e *Engine) CreateProposal(
	ctx context.Context,
	caller Address,
	asset AssetID,
) (uint64, error) {
	proposal, err := e.createProposal(ctx, caller, asset)
	if err != nil {
		return 0, e.fail("create", err)
	}
	if e.metrics != nil {
		e.metrics.proposalsCreated.Inc()
	}
	e.logger.Info(
		"proposal created",
		"proposal_id", proposal.ID,
		"asset_id", uint64(proposal.TargetAssetID),
		"proposer", string(caller),
		"deadline", proposal.Deadline,
	)
	e.publish(ProposalCreatedEventType, ProposalCreatedEvent{Proposal: proposal.clone()})
	return proposal.ID, nil
}

func (e *Engine) createProposal(
	ctx context.Context,
	caller Address,
	asset AssetID,
) (Proposal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.config.Clock.Now()
	member, err := e.ownsAny(ctx, caller)
	if err != nil {
		return Proposal{}, err
	}
	if !member {
		return Proposal{}, ErrNotAMember
	}
	available, err := e.isAvailable(ctx, asset)
	if err != nil {
		return Proposal{}, err
	}
	if !available {
		return Proposal{}, fmt.Errorf("%w: %d", ErrAssetUnavailable, asset)
	}
	snap := e.state.Load()
	proposal := Proposal{
		ID:            uint64(len(snap.proposals)),
		TargetAssetID: asset,
		Proposer:      caller,
		CreatedAt:     now,
		Deadline:      now.Add(e.config.VotingPeriod),
	}
	change := &Change{
		Proposal:        &proposal,
		ProposalCreated: true,
	}
	if err := e.commit(snap, change); err != nil {
		return Proposal{}, err
	}
	return proposal, nil
}
