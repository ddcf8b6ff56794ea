package domain

import (
	"math"
	"time"
)

// ScoringPolicy computes signal strength from source reliability, recency,
// and corroboration. The result is always in [0,1] and grows with evidence.
type ScoringPolicy struct {
	RecencyHalfLife time.Duration
}

// Score evaluates the policy for an insight observed now with the given
// average source reliability weight, age of the freshest evidence, and
// evidence count.
func (p ScoringPolicy) Score(avgWeight float64, age time.Duration, evidenceCount int) float64 {
	if evidenceCount <= 0 {
		return 0
	}

	halfLife := p.RecencyHalfLife
	if halfLife <= 0 {
		halfLife = 7 * 24 * time.Hour
	}

	recency := math.Exp(-math.Ln2 * age.Hours() / halfLife.Hours())
	corroboration := 1 - 1/float64(1+evidenceCount)

	return Clamp01(avgWeight * recency * corroboration)
}

// MergeSignal combines an existing aggregate with a recomputed score so that
// a topic's signal never decreases within its retention window.
func MergeSignal(existing, recomputed float64) float64 {
	return Clamp01(math.Max(existing, recomputed))
}

// Clamp01 bounds v into [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
