// Package confidence turns numeric scores into the four ordinal labels
// shown next to concepts, evidence and results.
package confidence

import "math"

// Label is an ordinal confidence label.
type Label string

const (
	VeryHigh Label = "Very High"
	High     Label = "High"
	Moderate Label = "Moderate"
	Low      Label = "Low"
)

// Inclusive lower bounds for each label.
const (
	VeryHighThreshold = 0.85
	HighThreshold     = 0.70
	ModerateThreshold = 0.60
)

// Classify labels a score. Non-finite scores are treated as 0.
func Classify(score float64) Label {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		score = 0
	}
	switch {
	case score >= VeryHighThreshold:
		return VeryHigh
	case score >= HighThreshold:
		return High
	case score >= ModerateThreshold:
		return Moderate
	default:
		return Low
	}
}

// Scored is anything carrying a confidence value.
type Scored interface {
	Confidence() float64
}

// LabelOf labels a Scored value.
func LabelOf(s Scored) Label { return Classify(s.Confidence()) }

func (l Label) String() string { return string(l) }
