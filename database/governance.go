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

package database

import (
	"errors"
	"fmt"

	"github.com/blinklabs-io/gavel/database/models"
	"github.com/blinklabs-io/gavel/database/types"
	"github.com/blinklabs-io/gavel/governance"
)

var _ governance.Ledger = (*Database)(nil)

// LoadGovernanceState reads every proposal, vote record and the treasury
// balance
func (d *Database) LoadGovernanceState() (*governance.LedgerState, error) {
	txn := NewMetadataOnlyTxn(d, false)
	defer txn.Release()
	ms := d.Metadata()
	proposals, err := ms.GetProposals(txn.Metadata())
	if err != nil {
		return nil, err
	}
	votes, err := ms.GetVoteRecords(txn.Metadata())
	if err != nil {
		return nil, err
	}
	balance, err := ms.GetTreasuryBalance(txn.Metadata())
	if err != nil {
		return nil, err
	}
	funded, err := ms.HasDeposit(txn.Metadata())
	if err != nil {
		return nil, err
	}
	ret := &governance.LedgerState{
		Treasury:  balance,
		Proposals: make([]governance.Proposal, 0, len(proposals)),
		Votes:     make([]governance.VoteRecord, 0, len(votes)),
		Funded:    funded,
	}
	for _, p := range proposals {
		ret.Proposals = append(ret.Proposals, proposalFromModel(p))
	}
	for _, v := range votes {
		ret.Votes = append(ret.Votes, voteFromModel(v))
	}
	return ret, nil
}

// CommitGovernanceChange applies a change to both stores in one transaction
func (d *Database) CommitGovernanceChange(change *governance.Change) error {
	if change == nil {
		return nil
	}
	return d.Transaction(true).Do(func(txn *Txn) error {
		ms := d.Metadata()
		if change.Proposal != nil {
			tmpProposal := proposalToModel(change.Proposal)
			if change.ProposalCreated {
				if err := ms.CreateProposal(tmpProposal, txn.Metadata()); err != nil {
					return err
				}
			} else {
				if err := ms.UpdateProposal(tmpProposal, txn.Metadata()); err != nil {
					return err
				}
			}
		}
		if len(change.Votes) > 0 {
			tmpVotes := make([]models.VoteRecord, 0, len(change.Votes))
			for _, v := range change.Votes {
				tmpVotes = append(tmpVotes, voteToModel(v))
			}
			if err := ms.AddVoteRecords(tmpVotes, txn.Metadata()); err != nil {
				return err
			}
		}
		if change.Treasury != nil {
			if err := ms.SetTreasuryBalance(change.Treasury, txn.Metadata()); err != nil {
				return err
			}
		}
		if change.Entry != nil {
			if err := ms.AddTreasuryEntry(entryToModel(change.Entry), txn.Metadata()); err != nil {
				return err
			}
		}
		if change.Receipt != nil {
			if err := d.setReceipt(change.Receipt, txn); err != nil {
				return err
			}
		}
		return nil
	})
}

// Proposals returns every stored proposal ordered by ID
func (d *Database) Proposals() ([]governance.Proposal, error) {
	proposals, err := d.Metadata().GetProposals(nil)
	if err != nil {
		return nil, err
	}
	ret := make([]governance.Proposal, 0, len(proposals))
	for _, p := range proposals {
		ret = append(ret, proposalFromModel(p))
	}
	return ret, nil
}

// ProposalVotes returns the vote records of a proposal
func (d *Database) ProposalVotes(proposalID uint64) ([]governance.VoteRecord, error) {
	votes, err := d.Metadata().GetProposalVoteRecords(proposalID, nil)
	if err != nil {
		return nil, err
	}
	ret := make([]governance.VoteRecord, 0, len(votes))
	for _, v := range votes {
		ret = append(ret, voteFromModel(v))
	}
	return ret, nil
}

// TreasuryEntries returns the treasury journal oldest first. A limit of 0
// returns every entry.
func (d *Database) TreasuryEntries(limit int) ([]governance.TreasuryEntry, error) {
	entries, err := d.Metadata().GetTreasuryEntries(limit, nil)
	if err != nil {
		return nil, err
	}
	ret := make([]governance.TreasuryEntry, 0, len(entries))
	for _, e := range entries {
		ret = append(ret, entryFromModel(e))
	}
	return ret, nil
}

// ErrReceiptNotFound is returned when no receipt exists for a proposal
var ErrReceiptNotFound = errors.New("receipt not found")

func (d *Database) setReceipt(
	receipt *governance.ExecutionReceipt,
	txn *Txn,
) error {
	tmpBlob := types.NewReceiptBlob(
		receipt.ID,
		receipt.ProposalID,
		uint64(receipt.AssetID),
		receipt.Price,
		string(receipt.Status),
		receipt.ExecutedAt,
	)
	data, err := tmpBlob.Encode()
	if err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}
	return d.Blob().Set(
		txn.Blob(),
		types.ReceiptBlobKey(receipt.ProposalID),
		data,
	)
}

// Receipt returns the execution receipt of a proposal
func (d *Database) Receipt(proposalID uint64) (*governance.ExecutionReceipt, error) {
	txn := d.Blob().NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	data, err := d.Blob().Get(txn, types.ReceiptBlobKey(proposalID))
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return nil, ErrReceiptNotFound
		}
		return nil, err
	}
	return decodeReceipt(data)
}

// Receipts returns every execution receipt ordered by proposal ID
func (d *Database) Receipts() ([]governance.ExecutionReceipt, error) {
	txn := d.Blob().NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	keys, err := d.Blob().Keys(txn, []byte(types.ReceiptBlobKeyPrefix))
	if err != nil {
		return nil, err
	}
	ret := make([]governance.ExecutionReceipt, 0, len(keys))
	for _, key := range keys {
		data, err := d.Blob().Get(txn, key)
		if err != nil {
			return nil, err
		}
		receipt, err := decodeReceipt(data)
		if err != nil {
			return nil, err
		}
		ret = append(ret, *receipt)
	}
	return ret, nil
}

func decodeReceipt(data []byte) (*governance.ExecutionReceipt, error) {
	tmpBlob, err := types.DecodeReceiptBlob(data)
	if err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	return &governance.ExecutionReceipt{
		ID:         tmpBlob.ID,
		ProposalID: tmpBlob.ProposalID,
		AssetID:    governance.AssetID(tmpBlob.AssetID),
		Price:      tmpBlob.PriceInt(),
		Status:     governance.ExecutionStatus(tmpBlob.Status),
		ExecutedAt: tmpBlob.Time(),
	}, nil
}

func proposalToModel(p *governance.Proposal) *models.Proposal {
	ret := &models.Proposal{
		ID:            p.ID,
		TargetAssetID: uint64(p.TargetAssetID),
		Proposer:      string(p.Proposer),
		CreatedAt:     p.CreatedAt.UTC(),
		Deadline:      p.Deadline.UTC(),
		YesVotes:      p.YesVotes,
		NoVotes:       p.NoVotes,
		Executed:      p.Executed,
		Outcome:       string(p.Outcome),
		PricePaid:     types.NewBigInt(p.PricePaid),
	}
	if !p.ExecutedAt.IsZero() {
		executedAt := p.ExecutedAt.UTC()
		ret.ExecutedAt = &executedAt
	}
	return ret
}

func proposalFromModel(m models.Proposal) governance.Proposal {
	ret := governance.Proposal{
		ID:            m.ID,
		TargetAssetID: governance.AssetID(m.TargetAssetID),
		Proposer:      governance.Address(m.Proposer),
		CreatedAt:     m.CreatedAt.UTC(),
		Deadline:      m.Deadline.UTC(),
		YesVotes:      m.YesVotes,
		NoVotes:       m.NoVotes,
		Executed:      m.Executed,
		Outcome:       governance.ExecutionStatus(m.Outcome),
		PricePaid:     m.PricePaid.Big(),
	}
	if m.ExecutedAt != nil {
		ret.ExecutedAt = m.ExecutedAt.UTC()
	}
	return ret
}

func voteToModel(v governance.VoteRecord) models.VoteRecord {
	return models.VoteRecord{
		ProposalID: v.ProposalID,
		TokenID:    uint64(v.TokenID),
		Voter:      string(v.Voter),
		Vote:       uint8(v.Vote),
		CastAt:     v.CastAt.UTC(),
	}
}

func voteFromModel(m models.VoteRecord) governance.VoteRecord {
	return governance.VoteRecord{
		ProposalID: m.ProposalID,
		TokenID:    governance.TokenID(m.TokenID),
		Voter:      governance.Address(m.Voter),
		Vote:       governance.Vote(m.Vote),
		CastAt:     m.CastAt.UTC(),
	}
}

func entryToModel(e *governance.TreasuryEntry) *models.TreasuryEntry {
	ret := &models.TreasuryEntry{
		Kind:         string(e.Kind),
		Amount:       types.NewBigInt(e.Amount),
		BalanceAfter: types.NewBigInt(e.BalanceAfter),
		Counterparty: string(e.Counterparty),
		Timestamp:    e.Timestamp.UTC(),
	}
	if e.ProposalID != nil {
		proposalID := *e.ProposalID
		ret.ProposalID = &proposalID
	}
	return ret
}

func entryFromModel(m models.TreasuryEntry) governance.TreasuryEntry {
	ret := governance.TreasuryEntry{
		Kind:         governance.TreasuryEntryKind(m.Kind),
		Amount:       m.Amount.Big(),
		BalanceAfter: m.BalanceAfter.Big(),
		Counterparty: governance.Address(m.Counterparty),
		Timestamp:    m.Timestamp.UTC(),
	}
	if m.ProposalID != nil {
		proposalID := *m.ProposalID
		ret.ProposalID = &proposalID
	}
	return ret
}
