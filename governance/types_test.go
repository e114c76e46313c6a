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

package governance_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/gavel/governance"
)

func TestParseVote(t *testing.T) {
	testDefs := []struct {
		input   string
		want    governance.Vote
		wantErr bool
	}{
		{input: "yes", want: governance.VoteYes},
		{input: " Y ", want: governance.VoteYes},
		{input: "0", want: governance.VoteYes},
		{input: "NO", want: governance.VoteNo},
		{input: "1", want: governance.VoteNo},
		{input: "abstain", wantErr: true},
		{input: "", wantErr: true},
	}
	for _, testDef := range testDefs {
		got, err := governance.ParseVote(testDef.input)
		if testDef.wantErr {
			assert.Error(t, err, "input %q", testDef.input)
			continue
		}
		require.NoError(t, err, "input %q", testDef.input)
		assert.Equal(t, testDef.want, got, "input %q", testDef.input)
	}
}

func TestVoteString(t *testing.T) {
	assert.Equal(t, "yes", governance.VoteYes.String())
	assert.Equal(t, "no", governance.VoteNo.String())
	assert.Equal(t, "unknown(9)", governance.Vote(9).String())
	assert.False(t, governance.Vote(2).Valid())
}

func TestProposalStatusAt(t *testing.T) {
	p := governance.Proposal{Deadline: epoch}
	assert.Equal(t, governance.ProposalStatusVoting, p.StatusAt(epoch.Add(-time.Second)))
	assert.Equal(t, governance.ProposalStatusClosed, p.StatusAt(epoch))
	p.Executed = true
	assert.Equal(t, governance.ProposalStatusExecuted, p.StatusAt(epoch.Add(-time.Second)))
}

func TestOracleError(t *testing.T) {
	cause := errors.New("connection refused")
	var err error = &governance.OracleError{Op: "membership.OwnsAny", Err: cause}
	wrapped := fmt.Errorf("create: %w", err)
	assert.ErrorIs(t, wrapped, governance.ErrOracleUnavailable)
	assert.ErrorIs(t, wrapped, cause)
	assert.NotErrorIs(t, wrapped, governance.ErrNotAMember)
	assert.Contains(t, err.Error(), "membership.OwnsAny")
	assert.True(t, governance.IsRetryable(wrapped))
	assert.False(t, governance.IsRetryable(governance.ErrAlreadyVoted))
	assert.False(t, governance.IsRetryable(nil))
}

func TestInsufficientFundsPolicyValid(t *testing.T) {
	assert.True(t, governance.InsufficientFundsRetry.Valid())
	assert.True(t, governance.InsufficientFundsReject.Valid())
	assert.True(t, governance.InsufficientFundsPolicy("").Valid())
	assert.False(t, governance.InsufficientFundsPolicy("ignore").Valid())
}
