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

package sqlite_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/gavel/database/models"
	"github.com/blinklabs-io/gavel/database/plugin/metadata/sqlite"
	"github.com/blinklabs-io/gavel/database/types"
)

func newStore(t *testing.T, opts ...sqlite.SqliteOptionFunc) *sqlite.MetadataStoreSqlite {
	t.Helper()
	store, err := sqlite.New(opts...)
	require.NoError(t, err)
	require.NoError(t, store.Start())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testProposal(id uint64) *models.Proposal {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &models.Proposal{
		ID:            id,
		TargetAssetID: 100 + id,
		Proposer:      "alice",
		CreatedAt:     created,
		Deadline:      created.Add(5 * time.Minute),
		PricePaid:     types.NewBigInt(nil),
	}
}

func TestInMemoryStoresAreIsolated(t *testing.T) {
	a := newStore(t)
	b := newStore(t)
	require.NoError(t, a.CreateProposal(testProposal(0), nil))
	proposals, err := b.GetProposals(nil)
	require.NoError(t, err)
	assert.Empty(t, proposals)
}

func TestProposalCreateAndUpdate(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.CreateProposal(testProposal(0), nil))
	require.NoError(t, store.CreateProposal(testProposal(1), nil))
	// IDs are assigned by the caller and must be unique
	require.Error(t, store.CreateProposal(testProposal(1), nil))

	executedAt := time.Date(2026, 1, 1, 0, 10, 0, 0, time.UTC)
	update := testProposal(0)
	update.YesVotes = 3
	update.NoVotes = 1
	update.Executed = true
	update.ExecutedAt = &executedAt
	update.Outcome = "purchased"
	update.PricePaid = types.NewBigInt(big.NewInt(500))
	// Immutable fields are not touched by an update
	update.TargetAssetID = 999
	require.NoError(t, store.UpdateProposal(update, nil))

	got, err := store.GetProposal(0, nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint64(100), got.TargetAssetID)
	assert.Equal(t, uint64(3), got.YesVotes)
	assert.Equal(t, uint64(1), got.NoVotes)
	assert.True(t, got.Executed)
	require.NotNil(t, got.ExecutedAt)
	assert.True(t, executedAt.Equal(*got.ExecutedAt))
	assert.Equal(t, "purchased", got.Outcome)
	assert.Equal(t, 0, got.PricePaid.Cmp(big.NewInt(500)))

	missing, err := store.GetProposal(42, nil)
	require.NoError(t, err)
	assert.Nil(t, missing)
	require.Error(t, store.UpdateProposal(testProposal(42), nil))

	proposals, err := store.GetProposals(nil)
	require.NoError(t, err)
	require.Len(t, proposals, 2)
	assert.Equal(t, uint64(0), proposals[0].ID)
	assert.Equal(t, uint64(1), proposals[1].ID)
}

func TestVoteRecordsUnique(t *testing.T) {
	store := newStore(t)
	castAt := time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC)
	records := []models.VoteRecord{
		{ProposalID: 0, TokenID: 1, Voter: "alice", Vote: 0, CastAt: castAt},
		{ProposalID: 0, TokenID: 2, Voter: "alice", Vote: 0, CastAt: castAt},
		{ProposalID: 1, TokenID: 1, Voter: "alice", Vote: 1, CastAt: castAt},
	}
	require.NoError(t, store.AddVoteRecords(records, nil))
	require.NoError(t, store.AddVoteRecords(nil, nil))
	// A token can't vote twice on the same proposal, even for a new owner
	dup := []models.VoteRecord{
		{ProposalID: 0, TokenID: 2, Voter: "bob", Vote: 1, CastAt: castAt},
	}
	require.Error(t, store.AddVoteRecords(dup, nil))

	all, err := store.GetVoteRecords(nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	perProposal, err := store.GetProposalVoteRecords(0, nil)
	require.NoError(t, err)
	require.Len(t, perProposal, 2)
	assert.Equal(t, uint64(1), perProposal[0].TokenID)
	assert.Equal(t, "alice", perProposal[1].Voter)
}

func TestTreasury(t *testing.T) {
	store := newStore(t)
	balance, err := store.GetTreasuryBalance(nil)
	require.NoError(t, err)
	assert.Zero(t, balance.Sign())
	funded, err := store.HasDeposit(nil)
	require.NoError(t, err)
	assert.False(t, funded)

	// Larger than an int64 column could hold
	big1, ok := new(big.Int).SetString("123456789012345678901234567890", 10)
	require.True(t, ok)
	require.NoError(t, store.SetTreasuryBalance(big1, nil))
	require.NoError(t, store.SetTreasuryBalance(new(big.Int).Add(big1, big.NewInt(1)), nil))
	balance, err = store.GetTreasuryBalance(nil)
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678901234567891", balance.String())
	require.Error(t, store.SetTreasuryBalance(big.NewInt(-1), nil))

	proposalID := uint64(4)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.AddTreasuryEntry(&models.TreasuryEntry{
		Kind:         models.TreasuryEntryKindPurchase,
		Amount:       types.NewBigInt(big.NewInt(10)),
		BalanceAfter: types.NewBigInt(big.NewInt(90)),
		ProposalID:   &proposalID,
		Timestamp:    now,
	}, nil))
	funded, err = store.HasDeposit(nil)
	require.NoError(t, err)
	assert.False(t, funded)
	require.NoError(t, store.AddTreasuryEntry(&models.TreasuryEntry{
		Kind:         models.TreasuryEntryKindDeposit,
		Amount:       types.NewBigInt(big.NewInt(100)),
		BalanceAfter: types.NewBigInt(big.NewInt(190)),
		Counterparty: "carol",
		Timestamp:    now.Add(time.Second),
	}, nil))
	funded, err = store.HasDeposit(nil)
	require.NoError(t, err)
	assert.True(t, funded)

	entries, err := store.GetTreasuryEntries(0, nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.NotNil(t, entries[0].ProposalID)
	assert.Equal(t, proposalID, *entries[0].ProposalID)
	assert.Nil(t, entries[1].ProposalID)
	assert.Equal(t, "carol", entries[1].Counterparty)
	assert.Equal(t, int64(190), entries[1].BalanceAfter.Int64())
	limited, err := store.GetTreasuryEntries(1, nil)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestTransactionRollback(t *testing.T) {
	store := newStore(t)
	txn := store.Transaction()
	require.NoError(t, store.CreateProposal(testProposal(0), txn))
	require.NoError(t, store.SetTreasuryBalance(big.NewInt(5), txn))
	require.NoError(t, store.SetCommitTimestamp(txn, 1234))
	require.NoError(t, txn.Rollback())
	// Finished transactions are rejected
	require.Error(t, store.CreateProposal(testProposal(1), txn))

	proposals, err := store.GetProposals(nil)
	require.NoError(t, err)
	assert.Empty(t, proposals)
	ts, err := store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Zero(t, ts)

	txn = store.Transaction()
	require.NoError(t, store.CreateProposal(testProposal(0), txn))
	require.NoError(t, store.SetCommitTimestamp(txn, 5678))
	require.NoError(t, txn.Commit())
	require.NoError(t, txn.Commit())
	ts, err = store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(5678), ts)
	proposals, err = store.GetProposals(nil)
	require.NoError(t, err)
	assert.Len(t, proposals, 1)
}

type otherTxn struct{}

func (otherTxn) Commit() error   { return nil }
func (otherTxn) Rollback() error { return nil }

func TestWrongTxnType(t *testing.T) {
	store := newStore(t)
	_, err := store.GetProposals(otherTxn{})
	require.ErrorIs(t, err, types.ErrTxnWrongType)
}

func TestPersistsAcrossRestart(t *testing.T) {
	dataDir := t.TempDir()
	store, err := sqlite.New(sqlite.WithDataDir(dataDir))
	require.NoError(t, err)
	require.NoError(t, store.Start())
	require.NoError(t, store.CreateProposal(testProposal(0), nil))
	require.NoError(t, store.SetTreasuryBalance(big.NewInt(77), nil))
	require.NoError(t, store.Stop())

	store = newStore(t, sqlite.WithDataDir(dataDir))
	proposals, err := store.GetProposals(nil)
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	balance, err := store.GetTreasuryBalance(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(77), balance.Int64())
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	newStore(t, sqlite.WithPromRegistry(reg))
	count, err := testutil.GatherAndCount(
		reg,
		"gavel_database_metadata_open_connections",
		"gavel_database_metadata_in_use_connections",
	)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestBusyTimeout(t *testing.T) {
	_, err := sqlite.New(sqlite.WithBusyTimeout(-time.Second))
	require.Error(t, err)
	store := newStore(t, sqlite.WithBusyTimeout(250*time.Millisecond))
	var timeout int
	require.NoError(t, store.DB().Raw("PRAGMA busy_timeout").Scan(&timeout).Error)
	assert.Equal(t, 250, timeout)
}
