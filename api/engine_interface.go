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

package api

import (
	"context"
	"math/big"
	"time"

	"github.com/blinklabs-io/gavel/governance"
)

// GovernanceEngine is the interface that the API server uses to run
// governance operations. It is implemented by *governance.Engine and lets
// tests substitute a mock.
type GovernanceEngine interface {
	CreateProposal(
		ctx context.Context,
		caller governance.Address,
		asset governance.AssetID,
	) (uint64, error)
	VoteOnProposal(
		ctx context.Context,
		caller governance.Address,
		proposalID uint64,
		vote governance.Vote,
	) (uint64, error)
	ExecuteProposal(
		ctx context.Context,
		caller governance.Address,
		proposalID uint64,
	) (governance.ExecutionOutcome, error)
	Deposit(
		ctx context.Context,
		from governance.Address,
		amount *big.Int,
	) (*big.Int, error)
	MemberBalance(
		ctx context.Context,
		addr governance.Address,
	) (governance.MemberInfo, error)

	NumProposals() uint64
	GetProposal(id uint64) (governance.Proposal, error)
	Proposals() []governance.Proposal
	TreasuryBalance() *big.Int
	HasVoted(proposalID uint64, token governance.TokenID) bool
	// Now returns the engine clock time used to report proposal status
	Now() time.Time
}

// HistoryStore serves persisted execution receipts and the treasury journal.
// It is optional. The related routes answer 404 without one.
type HistoryStore interface {
	Receipt(proposalID uint64) (*governance.ExecutionReceipt, error)
	TreasuryEntries(limit int) ([]governance.TreasuryEntry, error)
}

var _ GovernanceEngine = (*governance.Engine)(nil)
