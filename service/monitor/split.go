package monitor

import (
	"fmt"
	"math"
)

// PercentageSumTolerance mirrors the config-time check: the percentages must
// sum to 100 within this slack.
const PercentageSumTolerance = 0.01

// ValidatePercentages checks that the given percentages are non-negative and
// sum to 100 within tolerance. Split assumes this has passed.
func ValidatePercentages(percentages []float64) error {
	if len(percentages) == 0 {
		return fmt.Errorf("no percentages configured")
	}
	total := 0.0
	for i, p := range percentages {
		if p < 0 {
			return fmt.Errorf("percentage %d is negative (%g)", i, p)
		}
		total += p
	}
	if math.Abs(total-100.0) > PercentageSumTolerance {
		return fmt.Errorf("percentages must sum to 100, got %g", total)
	}
	return nil
}

// Split allocates amount across percentages so the parts sum exactly to the
// input. Each share is floored; the last share absorbs the positive rounding
// remainder. The validation tolerance lets the percentage sum drift just past
// 100, in which case the floored shares overshoot the amount; the overshoot
// comes out of the largest share so every share stays within [0, amount].
// Token amounts are integers in minor units, so the sum invariant matters
// more than per-share rounding fairness.
func Split(amount uint64, percentages []float64) []uint64 {
	if len(percentages) == 0 {
		return nil
	}

	shares := make([]int64, len(percentages))
	var allocated int64
	for i, p := range percentages {
		shares[i] = int64(math.Floor(float64(amount) * p / 100.0))
		allocated += shares[i]
	}

	remainder := int64(amount) - allocated
	if remainder >= 0 {
		shares[len(shares)-1] += remainder
	} else {
		largest := 0
		for i, s := range shares {
			if s > shares[largest] {
				largest = i
			}
		}
		shares[largest] += remainder
	}

	out := make([]uint64, len(shares))
	for i, s := range shares {
		out[i] = uint64(s)
	}
	return out
}
