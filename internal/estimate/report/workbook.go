package report

import (
	"fmt"
	"strings"

	"github.com/brakes/brakes-estimator/internal/estimate/derive"
	"github.com/brakes/brakes-estimator/internal/estimate/domain"
	"github.com/xuri/excelize/v2"
)

const (
	SheetItems     = "Items"
	SheetMaterials = "Materials"
	SheetSummary   = "Summary"
)

var itemHeaders = []string{
	"#",
	"Intervention Type",
	"Quantity",
	"Unit",
	"Location",
	"Confidence",
	"Tier",
	"Total Cost (INR)",
	"Materials",
	"Cost Check",
	"Warnings",
	"Assumptions",
}

var materialHeaders = []string{
	"#",
	"Intervention Type",
	"Material",
	"Quantity",
	"Unit",
	"Unit Price (INR)",
	"Total Cost (INR)",
	"IRC Clause",
	"Price Source",
	"Fetched Date",
}

// Workbook renders a sorted view of est as XLSX bytes. Rows follow the
// view order; the materials sheet follows the same order.
func Workbook(est *domain.Estimate, view *derive.View) ([]byte, error) {
	if est == nil || view == nil {
		return nil, fmt.Errorf("estimate and view are required")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetItems); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetMaterials, SheetSummary} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	writeRow(f, SheetItems, 1, toAny(itemHeaders)...)
	writeRow(f, SheetMaterials, 1, toAny(materialHeaders)...)

	materialRow := 2
	for i, r := range view.Rows {
		it := r.Item
		location := ""
		if it.Intervention.Location != nil {
			location = *it.Intervention.Location
		}
		check := "OK"
		if r.Mismatch != nil {
			check = fmt.Sprintf("Mismatch: materials sum to %.2f", r.Mismatch.Computed)
		}

		writeRow(f, SheetItems, i+2,
			r.Index+1,
			it.Intervention.Type,
			it.Intervention.Quantity,
			it.Intervention.Unit,
			location,
			it.Intervention.Confidence,
			string(r.Tier),
			it.TotalCost,
			len(it.Materials),
			check,
			strings.Join(it.Warnings(), "; "),
			strings.Join(it.Assumptions, "; "),
		)

		for _, m := range it.Materials {
			fetched := ""
			if !m.FetchedDate.IsZero() {
				fetched = m.FetchedDate.Format("2006-01-02")
			}
			writeRow(f, SheetMaterials, materialRow,
				r.Index+1,
				it.Intervention.Type,
				m.Name,
				m.Quantity,
				m.Unit,
				m.UnitPrice,
				m.TotalCost,
				m.IRCClause,
				m.PriceSource,
				fetched,
			)
			materialRow++
		}
	}

	created := ""
	if !est.CreatedAt.IsZero() {
		created = est.CreatedAt.Format("2006-01-02 15:04:05")
	}
	summary := [][2]any{
		{"Estimate ID", est.EstimateID},
		{"Filename", est.Filename},
		{"Created At", created},
		{"Status", string(est.Status)},
		{"Total Cost (INR)", est.TotalCost},
		{"Confidence", est.Confidence},
		{"Items", len(est.Items)},
		{"High Confidence", view.Tiers.High},
		{"Medium Confidence", view.Tiers.Medium},
		{"Review Needed", view.Tiers.ReviewNeeded},
		{"Cost Mismatches", len(view.Mismatches)},
		{"Requires Review", est.RequiresReview()},
		{"Sorted By", fmt.Sprintf("%s %s", view.Key, view.Direction)},
	}
	for i, kv := range summary {
		writeRow(f, SheetSummary, i+1, kv[0], kv[1])
	}

	_ = f.SetColWidth(SheetItems, "B", "B", 24)
	_ = f.SetColWidth(SheetItems, "E", "E", 28)
	_ = f.SetColWidth(SheetItems, "J", "L", 40)
	_ = f.SetColWidth(SheetMaterials, "B", "C", 28)
	_ = f.SetColWidth(SheetMaterials, "H", "I", 20)
	_ = f.SetColWidth(SheetSummary, "A", "A", 22)
	_ = f.SetColWidth(SheetSummary, "B", "B", 40)

	if idx, err := f.GetSheetIndex(SheetItems); err == nil {
		f.SetActiveSheet(idx)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for col, v := range values {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
