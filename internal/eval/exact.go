// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package eval

import "strings"

// ExactMatchMetric is the result key of ExactMatch.
const ExactMatchMetric = "exact_match_score"

// ExactMatch scores 1.0 when response equals ground truth after trimming
// surrounding whitespace, else 0.0. Empty strings compare like any other, so
// two blank values match.
func ExactMatch(groundTruth, response string) Result {
	score := 0.0
	if strings.TrimSpace(groundTruth) == strings.TrimSpace(response) {
		score = 1.0
	}
	return Result{Metric: ExactMatchMetric, Judgment: Judgment{Score: score}}
}
