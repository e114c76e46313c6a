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

package governance

import (
	"math/big"

	"github.com/blinklabs-io/gavel/event"
)

const (
	ProposalCreatedEventType  event.EventType = "governance.proposal_created"
	VoteCastEventType         event.EventType = "governance.vote_cast"
	ProposalExecutedEventType event.EventType = "governance.proposal_executed"
	TreasuryDepositEventType  event.EventType = "governance.treasury_deposit"
)

// EventTypes lists every event type published by the engine
var EventTypes = []event.EventType{
	ProposalCreatedEventType,
	VoteCastEventType,
	ProposalExecutedEventType,
	TreasuryDepositEventType,
}

type ProposalCreatedEvent struct {
	Proposal Proposal
}

type VoteCastEvent struct {
	Voter      Address
	Tokens     []TokenID
	ProposalID uint64
	Weight     uint64
	Vote       Vote
}

type ProposalExecutedEvent struct {
	Outcome ExecutionOutcome
}

type TreasuryDepositEvent struct {
	Amount  *big.Int
	Balance *big.Int
	From    Address
}

func (e *Engine) publish(eventType event.EventType, data any) {
	if e.config.EventBus == nil {
		return
	}
	e.config.EventBus.Publish(eventType, event.NewEvent(eventType, data))
}
