package derive

import (
	"context"
	"fmt"

	"github.com/brakes/brakes-estimator/internal/estimate/domain"
	"github.com/brakes/brakes-estimator/pkg/config"
)

// Row is one item of a sorted view
type Row struct {
	// Index is the item's position in the service order
	Index    int
	Item     domain.EstimateItem
	Tier     Tier
	Mismatch *CostMismatch
	Expanded bool
}

// View is a sorted, tiered projection of an estimate
type View struct {
	EstimateID string
	Filename   string
	Key        SortKey
	Direction  Direction
	Rows       []Row
	Tiers      TierCount
	// Mismatches includes the estimate total entry, if any
	Mismatches []CostMismatch
	TotalCost  float64
	Confidence float64
}

// Engine bundles the derivations applied to a fetched estimate
type Engine struct {
	sorter    *Sorter
	tolerance float64
	exporter  *Exporter
}

// NewEngine builds an engine from configuration. source may be nil when no
// exports are needed.
func NewEngine(cfg config.DeriveConfig, source ExportSource) (*Engine, error) {
	sorter, err := NewSorter(cfg.Locale)
	if err != nil {
		return nil, err
	}
	e := &Engine{sorter: sorter, tolerance: cfg.CostTolerance}
	if source != nil {
		e.exporter = NewExporter(source)
	}
	return e, nil
}

func (e *Engine) Sort(items []domain.EstimateItem, key SortKey, dir Direction) ([]domain.EstimateItem, error) {
	return e.sorter.Sort(items, key, dir)
}

func (e *Engine) Export(ctx context.Context, id, format string) (*Artifact, error) {
	if e.exporter == nil {
		return nil, fmt.Errorf("export source not configured")
	}
	return e.exporter.Export(ctx, id, format)
}

// View builds the sorted projection. est is only read.
func (e *Engine) View(est *domain.Estimate, key SortKey, dir Direction, expansion *Expansion) (*View, error) {
	if est == nil {
		return nil, fmt.Errorf("estimate is nil")
	}
	order, err := e.sorter.Order(est.Items, key, dir)
	if err != nil {
		return nil, err
	}

	mismatches := CheckCostConsistency(est, e.tolerance)
	byIndex := make(map[int]*CostMismatch, len(mismatches))
	for i := range mismatches {
		byIndex[mismatches[i].Index] = &mismatches[i]
	}

	v := &View{
		EstimateID: est.EstimateID,
		Filename:   est.Filename,
		Key:        key,
		Direction:  dir,
		Rows:       make([]Row, 0, len(order)),
		Mismatches: mismatches,
		TotalCost:  est.TotalCost,
		Confidence: est.Confidence,
	}
	for _, idx := range order {
		item := est.Items[idx]
		tier := ClassifyConfidence(item.Intervention.Confidence)
		v.Tiers.add(tier)
		v.Rows = append(v.Rows, Row{
			Index:    idx,
			Item:     item,
			Tier:     tier,
			Mismatch: byIndex[idx],
			Expanded: expansion.IsExpanded(idx),
		})
	}
	return v, nil
}
