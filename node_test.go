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

package gavel_test

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/gavel"
	"github.com/blinklabs-io/gavel/api"
	"github.com/blinklabs-io/gavel/governance"
	"github.com/blinklabs-io/gavel/oracle/memory"
)

func startNode(
	t *testing.T,
	opts ...gavel.ConfigOptionFunc,
) (*gavel.Node, chan error) {
	t.Helper()
	n, err := gavel.New(gavel.NewConfig(opts...))
	require.NoError(t, err)
	errChan := make(chan error, 1)
	go func() {
		errChan <- n.Run(context.Background())
	}()
	select {
	case <-n.Ready():
	case err := <-errChan:
		t.Fatalf("node exited during startup: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for node startup")
	}
	return n, errChan
}

func TestNodeRunAndStop(t *testing.T) {
	registry := memory.NewRegistry()
	require.NoError(t, registry.Mint("alice", 1))
	n, errChan := startNode(
		t,
		gavel.WithPrometheusRegistry(prometheus.NewRegistry()),
		gavel.WithMembershipOracle(registry),
		gavel.WithPurchaseOracle(
			memory.NewMarketplace(memory.WithDefaultPrice(big.NewInt(10))),
		),
		gavel.WithInitialDeposit(big.NewInt(100), "deployer"),
		gavel.WithApiListenAddress("127.0.0.1:0"),
	)
	_, created := n.EventBus().Subscribe(governance.ProposalCreatedEventType)

	addr := n.APIAddr()
	require.NotNil(t, addr)
	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequest(
		http.MethodPost,
		"http://"+addr.String()+"/v1/proposals",
		strings.NewReader(`{"asset_id": 3}`),
	)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.CallerHeader, "alice")
	resp, err := client.Do(req)
	require.NoError(t, err)
	var created201 api.CreateProposalResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created201))
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, uint64(0), created201.ProposalID)

	select {
	case evt := <-created:
		data, ok := evt.Data.(governance.ProposalCreatedEvent)
		require.True(t, ok)
		assert.Equal(t, governance.AssetID(3), data.Proposal.TargetAssetID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for proposal event")
	}

	assert.Equal(t, int64(100), n.Engine().TreasuryBalance().Int64())
	client.CloseIdleConnections()

	require.NoError(t, n.Stop())
	require.NoError(t, <-errChan)
	// A second stop is a no-op
	require.NoError(t, n.Stop())
}

func TestNodeWithoutAPI(t *testing.T) {
	n, errChan := startNode(
		t,
		gavel.WithMembershipOracle(memory.NewRegistry()),
		gavel.WithPurchaseOracle(memory.NewMarketplace()),
	)
	assert.Nil(t, n.APIAddr())
	assert.Equal(t, uint64(0), n.Engine().NumProposals())
	require.NoError(t, n.Stop())
	require.NoError(t, <-errChan)
}

func TestNodeBadRedisURL(t *testing.T) {
	n, err := gavel.New(gavel.NewConfig(
		gavel.WithMembershipOracle(memory.NewRegistry()),
		gavel.WithPurchaseOracle(memory.NewMarketplace()),
		gavel.WithRedisEvents("not a url", ""),
	))
	require.NoError(t, err)
	require.Error(t, n.Run(context.Background()))
	require.NoError(t, n.Stop())
}
