// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package eval

import (
	"math"
	"slices"
	"strings"

	recallerr "github.com/sigil-dev/recall/pkg/errors"
)

// Aggregator folds per-turn scores into one. NaN inputs are ignored; when
// every input is NaN, or there are none, the result is NaN.
type Aggregator func(scores []float64) float64

// DefaultAggregation names the aggregator used when none is configured.
const DefaultAggregation = "mean"

var aggregators = map[string]Aggregator{
	"mean":   Mean,
	"median": Median,
	"min":    Min,
	"max":    Max,
}

// AggregatorByName resolves one of mean, median, min or max.
func AggregatorByName(name string) (Aggregator, error) {
	if name == "" {
		name = DefaultAggregation
	}
	agg, ok := aggregators[strings.ToLower(name)]
	if !ok {
		return nil, recallerr.Errorf(recallerr.CodeConfigValidateInvalidValue,
			"unknown aggregation %q, want one of mean, median, min, max", name)
	}
	return agg, nil
}

func Mean(scores []float64) float64 {
	vals := finite(scores)
	if len(vals) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func Median(scores []float64) float64 {
	vals := finite(scores)
	if len(vals) == 0 {
		return math.NaN()
	}
	slices.Sort(vals)
	mid := len(vals) / 2
	if len(vals)%2 == 1 {
		return vals[mid]
	}
	return (vals[mid-1] + vals[mid]) / 2
}

func Min(scores []float64) float64 {
	vals := finite(scores)
	if len(vals) == 0 {
		return math.NaN()
	}
	return slices.Min(vals)
}

func Max(scores []float64) float64 {
	vals := finite(scores)
	if len(vals) == 0 {
		return math.NaN()
	}
	return slices.Max(vals)
}

// finite returns a fresh slice of the non-NaN values.
func finite(scores []float64) []float64 {
	out := make([]float64, 0, len(scores))
	for _, s := range scores {
		if !math.IsNaN(s) {
			out = append(out, s)
		}
	}
	return out
}
