package derive

import (
	"math"

	"github.com/brakes/brakes-estimator/internal/estimate/domain"
)

// DefaultCostTolerance is the largest difference treated as rounding
const DefaultCostTolerance = 0.01

// EstimateTotalIndex marks a mismatch on the estimate total rather than an item
const EstimateTotalIndex = -1

// CostMismatch flags a reported cost that differs from the sum of its parts
type CostMismatch struct {
	Index      int     `json:"index"`
	Reported   float64 `json:"reported"`
	Computed   float64 `json:"computed"`
	Difference float64 `json:"difference"`
}

// CheckCostConsistency compares each item total to the sum of its material
// totals, and the estimate total to the sum of item totals. The result is
// advisory: nothing is corrected.
func CheckCostConsistency(e *domain.Estimate, tolerance float64) []CostMismatch {
	if e == nil {
		return nil
	}
	if tolerance <= 0 {
		tolerance = DefaultCostTolerance
	}

	var out []CostMismatch
	itemsSum := 0.0
	for i, item := range e.Items {
		itemsSum += item.TotalCost
		sum := 0.0
		for _, m := range item.Materials {
			sum += m.TotalCost
		}
		if diff := item.TotalCost - sum; math.Abs(diff) > tolerance {
			out = append(out, CostMismatch{Index: i, Reported: item.TotalCost, Computed: sum, Difference: diff})
		}
	}

	if diff := e.TotalCost - itemsSum; math.Abs(diff) > tolerance {
		out = append(out, CostMismatch{Index: EstimateTotalIndex, Reported: e.TotalCost, Computed: itemsSum, Difference: diff})
	}
	return out
}
