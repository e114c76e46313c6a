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

package models

import (
	"time"

	"github.com/blinklabs-io/gavel/database/types"
)

// ProposalOutcomePurchased is the Outcome of a proposal whose asset was bought
const ProposalOutcomePurchased = "purchased"

// Proposal is a treasury spending proposal. The ID is assigned by the
// governance engine and is never generated by the database.
type Proposal struct {
	CreatedAt     time.Time
	Deadline      time.Time `gorm:"index"`
	ExecutedAt    *time.Time
	PricePaid     types.BigInt `gorm:"type:text;not null"`
	Proposer      string       `gorm:"size:128;not null"`
	Outcome       string       `gorm:"size:16"`
	ID            uint64       `gorm:"primarykey;autoIncrement:false"`
	TargetAssetID uint64       `gorm:"index;not null"`
	YesVotes      uint64       `gorm:"not null"`
	NoVotes       uint64       `gorm:"not null"`
	Executed      bool         `gorm:"index;not null"`
}

func (Proposal) TableName() string {
	return "proposal"
}

// VoteRecord marks a membership token as having voted on a proposal
type VoteRecord struct {
	CastAt     time.Time
	Voter      string `gorm:"size:128;index;not null"`
	ID         uint   `gorm:"primarykey"`
	ProposalID uint64 `gorm:"uniqueIndex:idx_vote_record_proposal_token,priority:1;not null"`
	TokenID    uint64 `gorm:"uniqueIndex:idx_vote_record_proposal_token,priority:2;not null"`
	Vote       uint8  `gorm:"not null"` // 0=Yes, 1=No
}

func (VoteRecord) TableName() string {
	return "vote_record"
}
