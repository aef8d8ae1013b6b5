package testutil

import (
	"fmt"
	"strings"
	"time"

	"github.com/brakes/brakes-estimator/internal/estimate/domain"
)

// SampleDocument mentions three interventions: a speed breaker with quantity
// and location, a guardrail with quantity, and road markings with neither.
const SampleDocument = "%PDF-1.4\n" +
	"Road safety audit for NH-48 approach to Vadodara.\n" +
	"Install 5 speed breakers at km 4.5 near the school zone.\n" +
	"Provide 200 meters of guardrail along the embankment.\n" +
	"Refresh road markings across the junction.\n" +
	"%%EOF\n"

// PDFDocument wraps body in a minimal PDF header and trailer
func PDFDocument(body string) []byte {
	return []byte("%PDF-1.4\n" + body + "\n%%EOF\n")
}

// PaddedPDF returns SampleDocument padded with comment lines to exactly size bytes
func PaddedPDF(size int) []byte {
	doc := []byte(SampleDocument)
	if size <= len(doc) {
		return doc[:size]
	}
	out := make([]byte, 0, size)
	out = append(out, doc...)
	line := []byte("% padding\n")
	for len(out)+len(line) <= size {
		out = append(out, line...)
	}
	for len(out) < size {
		out = append(out, ' ')
	}
	return out
}

// FixtureFactory creates domain fixtures with unique ids
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Item creates an estimate item whose single material accounts for the full cost
func Item(kind string, quantity, cost, confidence float64) domain.EstimateItem {
	return domain.EstimateItem{
		Intervention: domain.Intervention{
			Type:       kind,
			Quantity:   quantity,
			Unit:       "nos",
			Confidence: confidence,
		},
		Materials: []domain.Material{{
			Name:        strings.ReplaceAll(kind, "_", " ") + " material",
			Quantity:    quantity,
			Unit:        "nos",
			UnitPrice:   unitPrice(cost, quantity),
			TotalCost:   cost,
			IRCClause:   "IRC 67:3.2.1",
			PriceSource: "CPWD SOR 2023",
		}},
		TotalCost: cost,
	}
}

func unitPrice(cost, quantity float64) float64 {
	if quantity == 0 {
		return 0
	}
	return cost / quantity
}

// Estimate creates a completed estimate fixture
func (f *FixtureFactory) Estimate(opts ...func(*domain.Estimate)) domain.Estimate {
	seq := f.nextSeq()

	est := domain.Estimate{
		EstimateID: fmt.Sprintf("EST-20240401-%08X", seq),
		Filename:   fmt.Sprintf("audit-%d.pdf", seq),
		CreatedAt:  domain.Timestamp{Time: time.Date(2024, 4, 1, 10, 0, seq, 0, time.UTC)},
		Status:     domain.StatusCompleted,
		Metadata:   map[string]any{},
	}

	for _, opt := range opts {
		opt(&est)
	}

	if est.Items == nil {
		est.Items = []domain.EstimateItem{Item(domain.InterventionSignage, 4, 6300, 0.9)}
	}
	if est.TotalCost == 0 {
		for _, item := range est.Items {
			est.TotalCost += item.TotalCost
		}
	}
	if est.Confidence == 0 && len(est.Items) > 0 {
		var sum float64
		for _, item := range est.Items {
			sum += item.Intervention.Confidence
		}
		est.Confidence = sum / float64(len(est.Items))
	}
	return est
}

// WithEstimateID sets the estimate id
func WithEstimateID(id string) func(*domain.Estimate) {
	return func(e *domain.Estimate) {
		e.EstimateID = id
	}
}

// WithItems replaces the items
func WithItems(items ...domain.EstimateItem) func(*domain.Estimate) {
	return func(e *domain.Estimate) {
		e.Items = items
	}
}

// WithEstimateStatus sets the processing status
func WithEstimateStatus(status domain.Status) func(*domain.Estimate) {
	return func(e *domain.Estimate) {
		e.Status = status
	}
}

// WithCreatedAt sets the creation time
func WithCreatedAt(t time.Time) func(*domain.Estimate) {
	return func(e *domain.Estimate) {
		e.CreatedAt = domain.Timestamp{Time: t}
	}
}

// FiveItemEstimate is the abc123 fixture: two items tie on cost
func FiveItemEstimate() domain.Estimate {
	return NewFixtureFactory().Estimate(
		WithEstimateID("abc123"),
		WithItems(
			Item(domain.InterventionSignage, 10, 5000, 0.97),
			Item(domain.InterventionGuardrail, 120, 48000, 0.88),
			Item(domain.InterventionRoadMarking, 300, 5000, 0.79),
			Item(domain.InterventionSpeedBreaker, 4, 21000, 0.95),
			Item(domain.InterventionBarrier, 50, 12500, 0.81),
		),
	)
}
