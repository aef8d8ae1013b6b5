package derive

import "github.com/brakes/brakes-estimator/internal/estimate/domain"

// Tier is a confidence band
type Tier string

const (
	TierHigh         Tier = "high"
	TierMedium       Tier = "medium"
	TierReviewNeeded Tier = "review-needed"
)

const (
	HighThreshold   = 0.95
	MediumThreshold = 0.80
)

// ClassifyConfidence maps a confidence to its tier. Boundaries belong to the higher tier.
func ClassifyConfidence(c float64) Tier {
	switch {
	case c >= HighThreshold:
		return TierHigh
	case c >= MediumThreshold:
		return TierMedium
	default:
		return TierReviewNeeded
	}
}

// TierCount tallies items per tier
type TierCount struct {
	High         int `json:"high"`
	Medium       int `json:"medium"`
	ReviewNeeded int `json:"review_needed"`
}

func (tc *TierCount) add(t Tier) {
	switch t {
	case TierHigh:
		tc.High++
	case TierMedium:
		tc.Medium++
	default:
		tc.ReviewNeeded++
	}
}

func TierCounts(items []domain.EstimateItem) TierCount {
	var tc TierCount
	for _, item := range items {
		tc.add(ClassifyConfidence(item.Intervention.Confidence))
	}
	return tc
}
