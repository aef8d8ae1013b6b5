package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/brakes/brakes-estimator/internal/estimate/derive"
	"github.com/brakes/brakes-estimator/internal/estimate/domain"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

func inr(v float64) string {
	return printer.Sprintf("₹%.2f", v)
}

func qty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func pct(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetAutoWrapText(false)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	return t
}

func printUploadResult(w io.Writer, r *domain.UploadResult) {
	fmt.Fprintf(w, "Estimate %s (%s)\n", r.EstimateID, r.Filename)
	fmt.Fprintf(w, "  interventions: %d  total: %s  confidence: %s  processed in %dms\n",
		r.InterventionsFound, inr(r.TotalCost), pct(r.OverallConfidence), r.ProcessingTimeMs)
	fmt.Fprintf(w, "  verification: %s (%d passed, %d warnings, %d errors)\n",
		r.Verification.Status, r.Verification.PassedCount, r.Verification.WarningCount, r.Verification.ErrorCount)
	if r.RequiresReview() {
		fmt.Fprintln(w, "  requires manual review")
	}

	t := newTable(w, "Type", "Quantity", "Location", "Confidence", "Cost", "Warnings")
	for _, item := range r.Items {
		loc := "-"
		if item.Location != nil {
			loc = *item.Location
		}
		t.Append([]string{
			item.InterventionType,
			qty(item.Quantity) + " " + item.Unit,
			loc,
			pct(item.Confidence),
			inr(item.TotalCost),
			strings.Join(item.Warnings, "; "),
		})
	}
	t.Render()
}

func printDigest(w io.Writer, d *domain.EstimateDigest) {
	fmt.Fprintf(w, "Estimate %s (%s) created %s, %s\n",
		d.EstimateID, d.Filename, d.CreatedAt.Format("2006-01-02 15:04"), d.Status)
	fmt.Fprintf(w, "  %d items  total: %s  confidence: %s\n", d.ItemsCount, inr(d.TotalCost), pct(d.Confidence))
	if d.RequiresReview {
		fmt.Fprintln(w, "  requires manual review")
	}
	t := newTable(w, "Type", "Quantity", "Cost")
	for _, item := range d.ItemsSummary {
		t.Append([]string{item.Type, qty(item.Quantity) + " " + item.Unit, inr(item.Cost)})
	}
	t.Render()
}

func printEstimatePage(w io.Writer, page *domain.EstimatePage) {
	t := newTable(w, "Estimate", "Filename", "Created", "Status", "Items", "Total", "Confidence")
	for _, est := range page.Estimates {
		t.Append([]string{
			est.EstimateID,
			est.Filename,
			est.CreatedAt.Format("2006-01-02 15:04"),
			string(est.Status),
			strconv.Itoa(len(est.Items)),
			inr(est.TotalCost),
			pct(est.Confidence),
		})
	}
	t.SetFooter([]string{"", "", "", "", "", "showing", fmt.Sprintf("%d-%d of %d", page.Offset+1, page.Offset+len(page.Estimates), page.Total)})
	t.Render()
}

// printView renders the sorted item table; expanded rows list materials and audit notes
func printView(w io.Writer, v *derive.View) {
	fmt.Fprintf(w, "Estimate %s (%s) sorted by %s %s\n", v.EstimateID, v.Filename, v.Key, v.Direction)
	fmt.Fprintf(w, "  total: %s  confidence: %s  tiers: %d high, %d medium, %d review-needed\n",
		inr(v.TotalCost), pct(v.Confidence), v.Tiers.High, v.Tiers.Medium, v.Tiers.ReviewNeeded)

	t := newTable(w, "#", "Type", "Quantity", "Confidence", "Tier", "Cost", "Check")
	for _, row := range v.Rows {
		check := "OK"
		if row.Mismatch != nil {
			check = "materials sum to " + inr(row.Mismatch.Computed)
		}
		t.Append([]string{
			strconv.Itoa(row.Index + 1),
			row.Item.Intervention.Type,
			qty(row.Item.Intervention.Quantity) + " " + row.Item.Intervention.Unit,
			pct(row.Item.Intervention.Confidence),
			string(row.Tier),
			inr(row.Item.TotalCost),
			check,
		})
	}
	t.Render()

	for _, m := range v.Mismatches {
		if m.Index == derive.EstimateTotalIndex {
			fmt.Fprintf(w, "warning: reported total %s differs from item sum %s\n", inr(m.Reported), inr(m.Computed))
		}
	}

	for _, row := range v.Rows {
		if !row.Expanded {
			continue
		}
		printItemDetail(w, row)
	}
}

func printItemDetail(w io.Writer, row derive.Row) {
	item := row.Item
	fmt.Fprintf(w, "\n#%d %s\n", row.Index+1, item.Intervention.Type)
	if item.Intervention.Location != nil {
		fmt.Fprintf(w, "  location: %s\n", *item.Intervention.Location)
	}

	t := newTable(w, "Material", "Quantity", "Unit Price", "Cost", "IRC Clause", "Source")
	for _, m := range item.Materials {
		t.Append([]string{m.Name, qty(m.Quantity) + " " + m.Unit, inr(m.UnitPrice), inr(m.TotalCost), m.IRCClause, m.PriceSource})
	}
	t.Render()

	if clause := item.AuditTrail.ClauseMatching(); clause != nil {
		fmt.Fprintf(w, "  clause: %s %s %s\n", clause.Standard, clause.Clause, clause.Title)
	}
	if calc := item.AuditTrail.QuantityCalculation(); calc != nil {
		fmt.Fprintf(w, "  formula: %s\n", calc.Formula)
	}
	for _, warning := range item.Warnings() {
		fmt.Fprintf(w, "  warning: %s\n", warning)
	}
	for _, a := range item.Assumptions {
		fmt.Fprintf(w, "  assumes: %s\n", a)
	}
}

func printPrices(w io.Writer, records []domain.PriceRecord) {
	t := newTable(w, "Material", "Unit", "Price", "Category", "Source", "Item Code")
	for _, r := range records {
		t.Append([]string{r.Material, r.Unit, inr(r.PriceINR), r.Category, r.Source, r.ItemCode})
	}
	t.Render()
}

func printHealth(w io.Writer, h *domain.Health) {
	fmt.Fprintf(w, "%s (version %s, checked %s)\n", h.Status, h.Version, h.CheckedAt().Format("2006-01-02 15:04:05"))
	t := newTable(w, "Service", "Status", "Detail")
	for name, svc := range h.Services {
		detail := svc.Message
		switch {
		case svc.Error != "":
			detail = svc.Error
		case svc.Count != nil:
			detail = strconv.Itoa(*svc.Count) + " records"
		case svc.Model != "":
			detail = svc.Model
		}
		t.Append([]string{name, svc.Status, detail})
	}
	t.Render()
}
