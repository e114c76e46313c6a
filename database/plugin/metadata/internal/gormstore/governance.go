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

package gormstore

import (
	"errors"
	"fmt"
	"math/big"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/blinklabs-io/gavel/database/models"
	"github.com/blinklabs-io/gavel/database/types"
)

// GetProposals returns all proposals ordered by ID
func (s *Store) GetProposals(txn types.Txn) ([]models.Proposal, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.Proposal
	if result := db.Order("id ASC").Find(&ret); result.Error != nil {
		return nil, fmt.Errorf("query proposals: %w", result.Error)
	}
	return ret, nil
}

// GetProposal returns a proposal, or nil if it does not exist
func (s *Store) GetProposal(
	id uint64,
	txn types.Txn,
) (*models.Proposal, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret models.Proposal
	if result := db.Where("id = ?", id).First(&ret); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query proposal %d: %w", id, result.Error)
	}
	return &ret, nil
}

// CreateProposal inserts a new proposal. Inserting an existing ID fails.
func (s *Store) CreateProposal(
	proposal *models.Proposal,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	if result := db.Create(proposal); result.Error != nil {
		return fmt.Errorf("create proposal %d: %w", proposal.ID, result.Error)
	}
	return nil
}

// UpdateProposal replaces the mutable fields of an existing proposal
func (s *Store) UpdateProposal(
	proposal *models.Proposal,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	result := db.Model(&models.Proposal{}).
		Where("id = ?", proposal.ID).
		Select(
			"yes_votes",
			"no_votes",
			"executed",
			"executed_at",
			"outcome",
			"price_paid",
		).
		Updates(proposal)
	if result.Error != nil {
		return fmt.Errorf("update proposal %d: %w", proposal.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("update proposal %d: %w", proposal.ID, gorm.ErrRecordNotFound)
	}
	return nil
}

// AddVoteRecords inserts vote records. A token that already voted on the
// proposal violates the unique index and fails the insert.
func (s *Store) AddVoteRecords(
	records []models.VoteRecord,
	txn types.Txn,
) error {
	if len(records) == 0 {
		return nil
	}
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	if result := db.Create(&records); result.Error != nil {
		return fmt.Errorf("create vote records: %w", result.Error)
	}
	return nil
}

// GetVoteRecords returns all vote records ordered by proposal and token
func (s *Store) GetVoteRecords(txn types.Txn) ([]models.VoteRecord, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.VoteRecord
	result := db.Order("proposal_id ASC").Order("token_id ASC").Find(&ret)
	if result.Error != nil {
		return nil, fmt.Errorf("query vote records: %w", result.Error)
	}
	return ret, nil
}

// GetProposalVoteRecords returns the vote records of one proposal
func (s *Store) GetProposalVoteRecords(
	proposalID uint64,
	txn types.Txn,
) ([]models.VoteRecord, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.VoteRecord
	result := db.Where("proposal_id = ?", proposalID).
		Order("token_id ASC").
		Find(&ret)
	if result.Error != nil {
		return nil, fmt.Errorf("query vote records: %w", result.Error)
	}
	return ret, nil
}

// GetTreasuryBalance returns the treasury balance, or zero if none was stored
func (s *Store) GetTreasuryBalance(txn types.Txn) (*big.Int, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret models.Treasury
	result := db.Where("id = ?", models.TreasuryRowID).First(&ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return new(big.Int), nil
		}
		return nil, fmt.Errorf("query treasury: %w", result.Error)
	}
	return ret.Balance.Big(), nil
}

// SetTreasuryBalance stores the treasury balance
func (s *Store) SetTreasuryBalance(balance *big.Int, txn types.Txn) error {
	if balance == nil || balance.Sign() < 0 {
		return fmt.Errorf("invalid treasury balance: %v", balance)
	}
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	tmpTreasury := models.Treasury{
		ID:      models.TreasuryRowID,
		Balance: types.NewBigInt(balance),
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"balance"}),
	}).Create(&tmpTreasury)
	if result.Error != nil {
		return fmt.Errorf("store treasury: %w", result.Error)
	}
	return nil
}

// AddTreasuryEntry appends a treasury journal entry
func (s *Store) AddTreasuryEntry(
	entry *models.TreasuryEntry,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	if result := db.Create(entry); result.Error != nil {
		return fmt.Errorf("create treasury entry: %w", result.Error)
	}
	return nil
}

// GetTreasuryEntries returns journal entries oldest first. A limit of 0
// returns every entry.
func (s *Store) GetTreasuryEntries(
	limit int,
	txn types.Txn,
) ([]models.TreasuryEntry, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	query := db.Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var ret []models.TreasuryEntry
	if result := query.Find(&ret); result.Error != nil {
		return nil, fmt.Errorf("query treasury entries: %w", result.Error)
	}
	return ret, nil
}

// HasDeposit returns true if any deposit was ever journaled
func (s *Store) HasDeposit(txn types.Txn) (bool, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return false, err
	}
	var count int64
	result := db.Model(&models.TreasuryEntry{}).
		Where("kind = ?", models.TreasuryEntryKindDeposit).
		Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("count deposits: %w", result.Error)
	}
	return count > 0, nil
}
