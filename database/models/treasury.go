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

// TreasuryRowID is the primary key of the single treasury row
const TreasuryRowID = 1

// Treasury holds the current treasury balance
type Treasury struct {
	Balance types.BigInt `gorm:"type:text;not null"`
	ID      uint         `gorm:"primarykey"`
}

func (Treasury) TableName() string {
	return "treasury"
}

// Treasury entry kinds
const (
	TreasuryEntryKindDeposit  = "deposit"
	TreasuryEntryKindPurchase = "purchase"
)

// TreasuryEntry is an append-only journal record of a treasury balance change
type TreasuryEntry struct {
	Timestamp    time.Time    `gorm:"index"`
	Amount       types.BigInt `gorm:"type:text;not null"`
	BalanceAfter types.BigInt `gorm:"type:text;not null"`
	ProposalID   *uint64      `gorm:"index"`
	Counterparty string       `gorm:"size:128"`
	Kind         string       `gorm:"size:16;index;not null"`
	ID           uint         `gorm:"primarykey"`
}

func (TreasuryEntry) TableName() string {
	return "treasury_entry"
}
