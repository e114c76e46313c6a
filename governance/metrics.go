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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type engineMetrics struct {
	proposals         prometheus.Gauge
	treasuryBalance   prometheus.Gauge
	proposalsCreated  prometheus.Counter
	votesCast         *prometheus.CounterVec
	proposalsExecuted *prometheus.CounterVec
	operationErrors   *prometheus.CounterVec
}

func (e *Engine) initMetrics() {
	promautoFactory := promauto.With(e.config.PromRegistry)
	e.metrics = &engineMetrics{}
	e.metrics.proposals = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "gavel_governance_proposals",
		Help: "number of proposals",
	})
	e.metrics.treasuryBalance = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "gavel_governance_treasury_balance",
		Help: "treasury balance in the smallest currency unit (approximate)",
	})
	e.metrics.proposalsCreated = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "gavel_governance_proposals_created_total",
			Help: "number of proposals created",
		},
	)
	e.metrics.votesCast = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gavel_governance_vote_weight_total",
			Help: "token weight counted by vote choice",
		},
		[]string{"vote"},
	)
	e.metrics.proposalsExecuted = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gavel_governance_proposals_executed_total",
			Help: "number of executed proposals by outcome",
		},
		[]string{"status"},
	)
	e.metrics.operationErrors = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gavel_governance_operation_errors_total",
			Help: "number of rejected operations by operation and error kind",
		},
		[]string{"operation", "error"},
	)
}

// updateStateMetrics refreshes gauges from a snapshot
func (e *Engine) updateStateMetrics(s *snapshot) {
	if e.metrics == nil {
		return
	}
	e.metrics.proposals.Set(float64(len(s.proposals)))
	balance, _ := new(big.Float).SetInt(s.treasury).Float64()
	e.metrics.treasuryBalance.Set(balance)
}
