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
	"math/big"
	"time"

	"github.com/blinklabs-io/gavel/governance"
)

// Amounts are decimal strings in the smallest unit since they routinely
// exceed the range of a JSON number

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Proposals uint64 `json:"proposals"`
}

type ProposalResponse struct {
	CreatedAt     time.Time  `json:"created_at"`
	Deadline      time.Time  `json:"deadline"`
	ExecutedAt    *time.Time `json:"executed_at,omitempty"`
	Proposer      string     `json:"proposer"`
	Status        string     `json:"status"`
	Outcome       string     `json:"outcome,omitempty"`
	PricePaid     string     `json:"price_paid,omitempty"`
	ID            uint64     `json:"id"`
	TargetAssetID uint64     `json:"target_asset_id"`
	YesVotes      uint64     `json:"yes_votes"`
	NoVotes       uint64     `json:"no_votes"`
	Executed      bool       `json:"executed"`
}

func newProposalResponse(p governance.Proposal, now time.Time) ProposalResponse {
	ret := ProposalResponse{
		ID:            p.ID,
		TargetAssetID: uint64(p.TargetAssetID),
		Proposer:      string(p.Proposer),
		CreatedAt:     p.CreatedAt,
		Deadline:      p.Deadline,
		YesVotes:      p.YesVotes,
		NoVotes:       p.NoVotes,
		Executed:      p.Executed,
		Status:        string(p.StatusAt(now)),
		Outcome:       string(p.Outcome),
	}
	if !p.ExecutedAt.IsZero() {
		executedAt := p.ExecutedAt
		ret.ExecutedAt = &executedAt
	}
	if p.Executed && p.PricePaid != nil {
		ret.PricePaid = p.PricePaid.String()
	}
	return ret
}

type ProposalCountResponse struct {
	Count uint64 `json:"count"`
}

type CreateProposalRequest struct {
	AssetID *uint64 `json:"asset_id" binding:"required"`
}

type CreateProposalResponse struct {
	ProposalID uint64 `json:"proposal_id"`
}

type VoteRequest struct {
	Vote string `json:"vote" binding:"required"`
}

type VoteResponse struct {
	Vote       string `json:"vote"`
	ProposalID uint64 `json:"proposal_id"`
	Weight     uint64 `json:"weight"`
}

type HasVotedResponse struct {
	ProposalID uint64 `json:"proposal_id"`
	TokenID    uint64 `json:"token_id"`
	Voted      bool   `json:"voted"`
}

type ExecutionResponse struct {
	Status          string `json:"status"`
	Price           string `json:"price"`
	TreasuryBalance string `json:"treasury_balance"`
	ReceiptID       string `json:"receipt_id,omitempty"`
	ProposalID      uint64 `json:"proposal_id"`
	AssetID         uint64 `json:"asset_id"`
}

func newExecutionResponse(o governance.ExecutionOutcome) ExecutionResponse {
	return ExecutionResponse{
		ProposalID:      o.ProposalID,
		AssetID:         uint64(o.AssetID),
		Status:          string(o.Status),
		Price:           amountString(o.Price),
		TreasuryBalance: amountString(o.TreasuryBalance),
		ReceiptID:       o.ReceiptID,
	}
}

type ReceiptResponse struct {
	ExecutedAt time.Time `json:"executed_at"`
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	Price      string    `json:"price"`
	ProposalID uint64    `json:"proposal_id"`
	AssetID    uint64    `json:"asset_id"`
}

type MemberResponse struct {
	Address string   `json:"address"`
	Tokens  []uint64 `json:"tokens"`
	Balance uint64   `json:"balance"`
	Member  bool     `json:"member"`
}

func newMemberResponse(m governance.MemberInfo) MemberResponse {
	tokens := make([]uint64, 0, len(m.Tokens))
	for _, t := range m.Tokens {
		tokens = append(tokens, uint64(t))
	}
	return MemberResponse{
		Address: string(m.Address),
		Balance: m.Balance,
		Tokens:  tokens,
		Member:  m.Member(),
	}
}

type TreasuryResponse struct {
	Balance string `json:"balance"`
}

type DepositRequest struct {
	From   string `json:"from" binding:"required"`
	Amount string `json:"amount" binding:"required"`
}

type TreasuryEntryResponse struct {
	Timestamp    time.Time `json:"timestamp"`
	ProposalID   *uint64   `json:"proposal_id,omitempty"`
	Kind         string    `json:"kind"`
	Amount       string    `json:"amount"`
	BalanceAfter string    `json:"balance_after"`
	Counterparty string    `json:"counterparty,omitempty"`
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
