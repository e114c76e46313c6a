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

package metadata

import (
	"fmt"
	"math/big"

	"gorm.io/gorm"

	"github.com/blinklabs-io/gavel/database/models"
	"github.com/blinklabs-io/gavel/database/plugin"
	"github.com/blinklabs-io/gavel/database/plugin/metadata/mysql"
	"github.com/blinklabs-io/gavel/database/plugin/metadata/postgres"
	"github.com/blinklabs-io/gavel/database/plugin/metadata/sqlite"
	"github.com/blinklabs-io/gavel/database/types"
)

type MetadataStore interface {
	plugin.Plugin

	// Database
	Close() error
	DB() *gorm.DB
	GetCommitTimestamp() (int64, error)
	SetCommitTimestamp(types.Txn, int64) error
	Transaction() types.Txn

	// Proposals
	GetProposals(types.Txn) ([]models.Proposal, error)
	GetProposal(
		uint64, // id
		types.Txn,
	) (*models.Proposal, error)
	CreateProposal(*models.Proposal, types.Txn) error
	UpdateProposal(*models.Proposal, types.Txn) error

	// Votes
	AddVoteRecords([]models.VoteRecord, types.Txn) error
	GetVoteRecords(types.Txn) ([]models.VoteRecord, error)
	GetProposalVoteRecords(
		uint64, // proposalID
		types.Txn,
	) ([]models.VoteRecord, error)

	// Treasury
	GetTreasuryBalance(types.Txn) (*big.Int, error)
	SetTreasuryBalance(*big.Int, types.Txn) error
	AddTreasuryEntry(*models.TreasuryEntry, types.Txn) error
	GetTreasuryEntries(
		int, // limit
		types.Txn,
	) ([]models.TreasuryEntry, error)
	HasDeposit(types.Txn) (bool, error)
}

var (
	_ MetadataStore = (*sqlite.MetadataStoreSqlite)(nil)
	_ MetadataStore = (*mysql.MetadataStoreMysql)(nil)
	_ MetadataStore = (*postgres.MetadataStorePostgres)(nil)
)

// New starts the named metadata store plugin
func New(
	pluginName string,
	opts plugin.CommonOptions,
) (MetadataStore, error) {
	p, err := plugin.StartPlugin(plugin.PluginTypeMetadata, pluginName, opts)
	if err != nil {
		return nil, err
	}
	ret, ok := p.(MetadataStore)
	if !ok {
		_ = p.Stop()
		return nil, fmt.Errorf(
			"plugin '%s' does not implement a metadata store",
			pluginName,
		)
	}
	return ret, nil
}
