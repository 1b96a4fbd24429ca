// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tree

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kelp_decisions_total",
		Help: "Resolved decisions by tier and status",
	}, []string{"tier", "status"})

	decisionRetries = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kelp_decision_attempts",
		Help:    "Oracle attempts per node visit",
		Buckets: []float64{1, 2, 3, 4, 5},
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kelp_runs_total",
		Help: "Completed runs by termination reason",
	}, []string{"termination"})

	iterationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kelp_iteration_duration_seconds",
		Help:    "Duration of one decide-execute-merge iteration",
		Buckets: prometheus.DefBuckets,
	})
)
