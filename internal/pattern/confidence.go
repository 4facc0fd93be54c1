// Package pattern implements the two pattern stores of the learning core:
// export-strategy patterns learned from outcomes and regulatory patterns
// mined from failures, requirements and change history.
package pattern

import "math"

// CalculateConfidence blends a neutral 0.5 prior with the observed success
// rate, weighted by evidence volume: f = min(n/100, 1). At n=0 the result is
// exactly 0.5; as n grows it converges to the success rate, capped at 0.99
// to stay within the range AdjustConfidence clamps to. Shared by both
// stores and by the feedback adjustment.
func CalculateConfidence(successRate float64, applicationCount int) float64 {
	if applicationCount < 0 {
		applicationCount = 0
	}
	f := math.Min(float64(applicationCount)/100, 1)
	return math.Min(0.5*(1-f)+successRate*f, 0.99)
}

// AdjustConfidence applies one piece of user feedback to a pattern's
// confidence. The feedback weight shrinks with evidence volume and the
// impact scales with the confidence the pattern carried when applied.
// Helpful feedback has diminishing returns near 1; unhelpful feedback
// penalizes high confidence harder. Result is clamped to [0.1, 0.99].
func AdjustConfidence(current, appliedConfidence float64, applicationCount int, helpful bool) float64 {
	weight := 1 / float64(applicationCount+1)
	weight = math.Min(math.Max(weight, 0.05), 0.3)

	impact := appliedConfidence * weight

	adjusted := current
	if helpful {
		adjusted += impact * (1 - current)
	} else {
		adjusted -= impact * 1.5 * current
	}
	return math.Min(math.Max(adjusted, 0.1), 0.99)
}

// UpdateSuccessRate folds one binary observation into a running success rate
// where n is the application count after the observation.
func UpdateSuccessRate(rate float64, n int, success bool) float64 {
	if n <= 0 {
		if success {
			return 1
		}
		return 0
	}
	v := 0.0
	if success {
		v = 1
	}
	return (rate*float64(n-1) + v) / float64(n)
}
