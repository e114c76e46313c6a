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
	"fmt"
	"math/big"
	"strings"
	"time"
)

// Address identifies a caller (a membership token holder or a depositor)
type Address string

// TokenID identifies a single membership token instance
type TokenID uint64

// AssetID identifies an external asset offered by the purchase oracle. It is
// opaque to the engine beyond being passed to the oracle.
type AssetID uint64

// Vote is a ballot choice. The numeric values match the wire encoding used
// by existing clients (Yes=0, No=1).
type Vote uint8

const (
	VoteYes Vote = 0
	VoteNo  Vote = 1
)

func (v Vote) String() string {
	switch v {
	case VoteYes:
		return "yes"
	case VoteNo:
		return "no"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(v))
	}
}

// Valid returns true if the vote is a known choice
func (v Vote) Valid() bool {
	return v == VoteYes || v == VoteNo
}

// ParseVote parses a vote choice from its string form (case-insensitive)
func ParseVote(s string) (Vote, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "0":
		return VoteYes, nil
	case "no", "n", "1":
		return VoteNo, nil
	default:
		return 0, fmt.Errorf("invalid vote %q: must be 'yes' or 'no'", s)
	}
}

// ExecutionStatus records how a proposal was executed
type ExecutionStatus string

const (
	// ExecutionPending means the proposal has not been executed yet
	ExecutionPending ExecutionStatus = ""
	// ExecutionPurchased means the vote passed and the asset was bought
	ExecutionPurchased ExecutionStatus = "purchased"
	// ExecutionRejected means the vote did not pass (yes <= no)
	ExecutionRejected ExecutionStatus = "rejected"
	// ExecutionUnfunded means the vote passed but the treasury could not
	// cover the price and the reject policy closed the proposal
	ExecutionUnfunded ExecutionStatus = "unfunded"
)

// ProposalStatus is the lifecycle state of a proposal at a point in time
type ProposalStatus string

const (
	ProposalStatusVoting   ProposalStatus = "voting"
	ProposalStatusClosed   ProposalStatus = "closed"
	ProposalStatusExecuted ProposalStatus = "executed"
)

// Proposal is a request to spend treasury funds on a specific external asset.
//
// Proposal values handed out by the engine are deep copies, so callers may
// modify them freely.
type Proposal struct {
	CreatedAt     time.Time
	Deadline      time.Time
	ExecutedAt    time.Time
	PricePaid     *big.Int
	Proposer      Address
	Outcome       ExecutionStatus
	ID            uint64
	TargetAssetID AssetID
	YesVotes      uint64
	NoVotes       uint64
	Executed      bool
}

// clone returns a copy of the proposal that shares no memory with p
func (p Proposal) clone() Proposal {
	if p.PricePaid != nil {
		p.PricePaid = new(big.Int).Set(p.PricePaid)
	}
	return p
}

// StatusAt returns the lifecycle state of the proposal at the given time
func (p Proposal) StatusAt(now time.Time) ProposalStatus {
	if p.Executed {
		return ProposalStatusExecuted
	}
	if now.Before(p.Deadline) {
		return ProposalStatusVoting
	}
	return ProposalStatusClosed
}

// VoteRecord marks a membership token as having voted on a proposal
type VoteRecord struct {
	CastAt     time.Time
	Voter      Address
	ProposalID uint64
	TokenID    TokenID
	Vote       Vote
}

// ExecutionOutcome is the result of a completed executeProposal call
type ExecutionOutcome struct {
	Price           *big.Int
	TreasuryBalance *big.Int
	ReceiptID       string
	Status          ExecutionStatus
	ProposalID      uint64
	AssetID         AssetID
}

func (o ExecutionOutcome) clone() ExecutionOutcome {
	if o.Price != nil {
		o.Price = new(big.Int).Set(o.Price)
	}
	if o.TreasuryBalance != nil {
		o.TreasuryBalance = new(big.Int).Set(o.TreasuryBalance)
	}
	return o
}

// TreasuryEntryKind is the type of a treasury journal entry
type TreasuryEntryKind string

const (
	TreasuryEntryDeposit  TreasuryEntryKind = "deposit"
	TreasuryEntryPurchase TreasuryEntryKind = "purchase"
)

// TreasuryEntry is an append-only record of a treasury balance change
type TreasuryEntry struct {
	Timestamp    time.Time
	Amount       *big.Int
	BalanceAfter *big.Int
	ProposalID   *uint64
	Counterparty Address
	Kind         TreasuryEntryKind
}

// ExecutionReceipt documents a completed purchase
type ExecutionReceipt struct {
	ExecutedAt time.Time
	Price      *big.Int
	ID         string
	Status     ExecutionStatus
	ProposalID uint64
	AssetID    AssetID
}
