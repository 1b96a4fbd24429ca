// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package feedback

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storeOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kelp_example_store_outcomes_total",
		Help: "Example store query outcomes by state",
	}, []string{"state"})

	tierSelections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kelp_tier_selections_total",
		Help: "Oracle tier selections by tier and reason",
	}, []string{"tier", "reason"})

	examplesRetrieved = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kelp_examples_retrieved",
		Help:    "Number of few-shot examples attached per compiled call",
		Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
	})
)
