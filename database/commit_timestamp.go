// Copyright 2025 Blink Labs Software
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
	"encoding/binary"
	"fmt"

	"github.com/blinklabs-io/gavel/database/models"
	"github.com/blinklabs-io/gavel/database/types"
)

// CommitTimestampError is returned at startup when the metadata and blob
// stores were last committed at different times, which means a previous
// commit only reached one of them
type CommitTimestampError struct {
	MetadataTimestamp int64
	BlobTimestamp     int64
}

func (e CommitTimestampError) Error() string {
	return fmt.Sprintf(
		"commit timestamp mismatch: %d (metadata) != %d (blob)",
		e.MetadataTimestamp,
		e.BlobTimestamp,
	)
}

func (d *Database) checkCommitTimestamp() error {
	metadataTimestamp, err := d.Metadata().GetCommitTimestamp()
	if err != nil {
		return fmt.Errorf("failed to get metadata commit timestamp: %w", err)
	}
	blobTimestamp, err := d.Blob().GetCommitTimestamp()
	if err != nil {
		return fmt.Errorf("failed to get blob commit timestamp: %w", err)
	}
	if blobTimestamp != metadataTimestamp {
		return CommitTimestampError{
			MetadataTimestamp: metadataTimestamp,
			BlobTimestamp:     blobTimestamp,
		}
	}
	return nil
}

func (d *Database) updateCommitTimestamp(txn *Txn, timestamp int64) error {
	if err := d.Metadata().SetCommitTimestamp(txn.Metadata(), timestamp); err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	if err := d.Blob().SetCommitTimestamp(txn.Blob(), timestamp); err != nil {
		return fmt.Errorf("blob: %w", err)
	}
	return nil
}

// RecoverCommitTimestampConflict repairs the stores after a commit that
// reached the blob store but not the metadata store. Receipts for proposals
// the metadata store does not record as purchased are removed and the blob
// commit timestamp is reset to the metadata value.
func (d *Database) RecoverCommitTimestampConflict() error {
	metadataTimestamp, err := d.Metadata().GetCommitTimestamp()
	if err != nil {
		return fmt.Errorf("failed to get metadata commit timestamp: %w", err)
	}
	proposals, err := d.Metadata().GetProposals(nil)
	if err != nil {
		return fmt.Errorf("failed to load proposals: %w", err)
	}
	purchased := make(map[uint64]bool, len(proposals))
	for _, p := range proposals {
		if p.Executed && p.Outcome == models.ProposalOutcomePurchased {
			purchased[p.ID] = true
		}
	}
	txn := d.Blob().NewTransaction(true)
	keys, err := d.Blob().Keys(txn, []byte(types.ReceiptBlobKeyPrefix))
	if err != nil {
		_ = txn.Rollback()
		return fmt.Errorf("failed to list receipts: %w", err)
	}
	for _, key := range keys {
		idBytes := key[len(types.ReceiptBlobKeyPrefix):]
		if len(idBytes) != 8 {
			continue
		}
		proposalID := binary.BigEndian.Uint64(idBytes)
		if purchased[proposalID] {
			continue
		}
		d.logger.Warn(
			"removing receipt without a committed purchase",
			"component", "database",
			"proposal_id", proposalID,
		)
		if err := d.Blob().Delete(txn, key); err != nil {
			_ = txn.Rollback()
			return fmt.Errorf("failed to remove receipt: %w", err)
		}
	}
	if err := d.Blob().SetCommitTimestamp(txn, metadataTimestamp); err != nil {
		_ = txn.Rollback()
		return fmt.Errorf("failed to reset blob commit timestamp: %w", err)
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("failed to commit recovery: %w", err)
	}
	return d.checkCommitTimestamp()
}
