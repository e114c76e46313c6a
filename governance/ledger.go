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

import "math/big"

// LedgerState is the persisted engine state loaded at startup
type LedgerState struct {
	Treasury  *big.Int
	Proposals []Proposal
	Votes     []VoteRecord
	// Funded is true once any deposit has ever been recorded
	Funded bool
}

// Change is the full set of state changes produced by one engine operation.
// A Ledger must apply all of it or none of it.
type Change struct {
	// Proposal is the created or updated proposal, if any
	Proposal *Proposal
	// Treasury is the new treasury balance, nil when unchanged
	Treasury *big.Int
	Entry    *TreasuryEntry
	Receipt  *ExecutionReceipt
	Votes    []VoteRecord
	// ProposalCreated distinguishes an insert from an update of Proposal
	ProposalCreated bool
}

// Ledger is durable storage for engine state
type Ledger interface {
	LoadGovernanceState() (*LedgerState, error)
	CommitGovernanceChange(*Change) error
}

// nopLedger keeps nothing. It is used when an engine has no persistence.
type nopLedger struct{}

func (nopLedger) LoadGovernanceState() (*LedgerState, error) {
	return &LedgerState{Treasury: new(big.Int)}, nil
}

func (nopLedger) CommitGovernanceChange(*Change) error {
	return nil
}
