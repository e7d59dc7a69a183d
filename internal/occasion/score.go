// Package occasion turns a style-attribute vector plus an occasion label
// into a single 0-100 fitness score. Scoring is a pure function of its
// inputs so it can be tested in isolation from the vision call that
// produces the attribute vector.
package occasion

import (
	"math"
	"strings"
)

// attributeWeights maps a lowercase occasion name to the style attributes
// that matter for it and how much. Unknown occasions fall back to
// defaultWeights.
var attributeWeights = map[string]map[string]float64{
	"job interview":    {"formal": 0.8, "business": 0.9, "elegant": 0.7, "casual": 0.1},
	"date night":       {"elegant": 0.8, "trendy": 0.7, "formal": 0.5, "casual": 0.3},
	"casual outing":    {"casual": 0.9, "sporty": 0.7, "trendy": 0.6, "formal": 0.1},
	"wedding":          {"formal": 0.9, "elegant": 0.8, "trendy": 0.5, "casual": 0.1},
	"workout":          {"sporty": 0.9, "casual": 0.7, "trendy": 0.4, "formal": 0.0},
	"business meeting": {"business": 0.9, "formal": 0.8, "elegant": 0.7, "casual": 0.1},
}

// defaultWeights is the balanced fallback for occasions without a
// dedicated weight map.
var defaultWeights = map[string]float64{
	"casual": 0.5, "trendy": 0.5, "formal": 0.5, "elegant": 0.5,
}

const neutralScore = 50

// Weights returns the attribute weight map for an occasion. Lookup is
// case-insensitive via the caller passing a lowercased name; Score
// handles that.
func weightsFor(occ string) map[string]float64 {
	if w, ok := attributeWeights[occ]; ok {
		return w
	}
	return defaultWeights
}

// Score computes the occasion-fit score from a style-attribute vector
// (each attribute 0-1) and the comfort and fit-confidence scores (each
// 0-100). Missing attributes contribute 0; negative comfort or
// fitConfidence values mean "unknown" and default to a neutral 50.
//
// The style component is the weighted mean of the occasion's attributes
// scaled to 0-100, blended 60/20/20 with comfort and fit confidence,
// clamped to [0, 100] and rounded to the nearest integer.
func Score(styleAttributes map[string]float64, comfort, fitConfidence float64, occ string) int {
	weights := weightsFor(strings.ToLower(occ))

	matchScore := float64(neutralScore)
	var weightedSum, totalWeight float64
	for attr, weight := range weights {
		weightedSum += styleAttributes[attr] * weight
		totalWeight += weight
	}
	if totalWeight > 0 {
		matchScore = weightedSum / totalWeight * 100
	}

	if comfort < 0 {
		comfort = neutralScore
	}
	if fitConfidence < 0 {
		fitConfidence = neutralScore
	}
	matchScore = matchScore*0.6 + comfort*0.2 + fitConfidence*0.2

	return int(math.Round(math.Min(100, math.Max(0, matchScore))))
}
