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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metadataMetricNamePrefix = "gavel_database_metadata_"

// RegisterMetrics exposes connection pool statistics. driver is added as a
// constant label.
func (s *Store) RegisterMetrics(promRegistry prometheus.Registerer, driver string) {
	if promRegistry == nil {
		return
	}
	promautoFactory := promauto.With(promRegistry)
	labels := prometheus.Labels{"driver": driver}
	stat := func(f func(openConns, inUse int) int) func() float64 {
		return func() float64 {
			sqlDB, err := s.db.DB()
			if err != nil {
				return 0
			}
			stats := sqlDB.Stats()
			return float64(f(stats.OpenConnections, stats.InUse))
		}
	}
	promautoFactory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name:        metadataMetricNamePrefix + "open_connections",
			Help:        "number of open metadata database connections",
			ConstLabels: labels,
		},
		stat(func(openConns, _ int) int { return openConns }),
	)
	promautoFactory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name:        metadataMetricNamePrefix + "in_use_connections",
			Help:        "number of metadata database connections in use",
			ConstLabels: labels,
		},
		stat(func(_, inUse int) int { return inUse }),
	)
}
