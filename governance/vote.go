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
	"slices"
)

// VoteOnProposal casts one vote per membership token owned by caller that
// has not yet voted on the proposal, and returns the weight added.
//
// Vote records are kept per token, so a token that has voted can never be
// counted again on the same proposal, even after it changes hands.
func (e *Engine) VoteOnProposal(
	ctx context.Context,
	caller Address,
	proposalID uint64,
	vote Vote,
) (uint64, error) {
	if !vote.Valid() {
		return 0, e.fail("vote", fmt.Errorf("invalid vote value: %d", vote))
	}
	tokens, err := e.voteOnProposal(ctx, caller, proposalID, vote)
	if err != nil {
		return 0, e.fail("vote", err)
	}
	weight := uint64(len(tokens))
	if e.metrics != nil {
		e.metrics.votesCast.WithLabelValues(vote.String()).Add(float64(weight))
	}
	e.logger.Info(
		"vote cast",
		"proposal_id", proposalID,
		"voter", string(caller),
		"vote", vote.String(),
		"weight", weight,
	)
	e.publish(VoteCastEventType, VoteCastEvent{
		ProposalID: proposalID,
		Voter:      caller,
		Vote:       vote,
		Tokens:     tokens,
		Weight:     weight,
	})
	return weight, nil
}

func (e *Engine) voteOnProposal(
	ctx context.Context,
	caller Address,
	proposalID uint64,
	vote Vote,
) ([]TokenID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.config.Clock.Now()
	snap := e.state.Load()
	proposal, ok := snap.proposal(proposalID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrProposalNotFound, proposalID)
	}
	if !now.Before(proposal.Deadline) {
		return nil, fmt.Errorf(
			"%w: proposal %d closed at %s",
			ErrDeadlinePassed,
			proposalID,
			proposal.Deadline.UTC().Format("2006-01-02T15:04:05Z"),
		)
	}
	owned, err := e.tokensOwnedBy(ctx, caller)
	if err != nil {
		return nil, err
	}
	if len(owned) == 0 {
		return nil, ErrNotAMember
	}
	// The oracle may return tokens unordered or repeated
	owned = slices.Clone(owned)
	slices.Sort(owned)
	owned = slices.Compact(owned)
	eligible := make([]TokenID, 0, len(owned))
	for _, token := range owned {
		if snap.hasVoted(proposalID, token) {
			continue
		}
		eligible = append(eligible, token)
	}
	if len(eligible) == 0 {
		return nil, fmt.Errorf("%w: proposal %d", ErrAlreadyVoted, proposalID)
	}
	records := make([]VoteRecord, 0, len(eligible))
	for _, token := range eligible {
		records = append(records, VoteRecord{
			ProposalID: proposalID,
			TokenID:    token,
			Voter:      caller,
			Vote:       vote,
			CastAt:     now,
		})
	}
	weight := uint64(len(eligible))
	switch vote {
	case VoteYes:
		proposal.YesVotes += weight
	case VoteNo:
		proposal.NoVotes += weight
	}
	change := &Change{
		Proposal: &proposal,
		Votes:    records,
	}
	if err := e.commit(snap, change); err != nil {
		return nil, err
	}
	return eligible, nil
}
