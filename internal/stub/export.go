package stub

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/brakes/brakes-estimator/internal/estimate/domain"
	"github.com/go-pdf/fpdf"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const exportVersion = "1.0.0"

var csvHeader = []string{
	"Estimate ID",
	"Filename",
	"Created At",
	"Intervention Type",
	"Quantity",
	"Unit",
	"Material",
	"Material Quantity",
	"Material Unit",
	"Unit Price (INR)",
	"Total Cost (INR)",
	"IRC Clause",
	"Price Source",
}

// Render produces the export body for format
func Render(est *domain.Estimate, format domain.ExportFormat, now time.Time) ([]byte, error) {
	switch format {
	case domain.FormatCSV:
		return RenderCSV(est)
	case domain.FormatJSON:
		return RenderJSON(est, now)
	case domain.FormatPDF:
		return RenderPDF(est, now)
	}
	return nil, fmt.Errorf("unsupported export format %q", format)
}

// RenderCSV writes one row per material, an N/A row for items without
// materials, then a blank row and the TOTAL row.
func RenderCSV(est *domain.Estimate) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}

	created := "N/A"
	if !est.CreatedAt.IsZero() {
		created = est.CreatedAt.Format("2006-01-02 15:04:05")
	}

	for _, item := range est.Items {
		iv := item.Intervention
		prefix := []string{est.EstimateID, est.Filename, created, iv.Type, num(iv.Quantity), iv.Unit}

		if len(item.Materials) == 0 {
			if err := w.Write(append(prefix, "N/A", "0", "N/A", "0", "0", "N/A", "N/A")); err != nil {
				return nil, err
			}
			continue
		}
		for _, m := range item.Materials {
			row := append(append([]string(nil), prefix...),
				m.Name, num(m.Quantity), m.Unit, num(m.UnitPrice), num(m.TotalCost), orNA(m.IRCClause), orNA(m.PriceSource))
			if err := w.Write(row); err != nil {
				return nil, err
			}
		}
	}

	total := make([]string, len(csvHeader))
	total[0] = "TOTAL"
	total[10] = num(est.TotalCost)
	if err := w.Write(nil); err != nil {
		return nil, err
	}
	if err := w.Write(total); err != nil {
		return nil, err
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

// RenderJSON is the full estimate plus export_metadata, indented
func RenderJSON(est *domain.Estimate, now time.Time) ([]byte, error) {
	body, err := json.Marshal(est)
	if err != nil {
		return nil, err
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	meta, err := json.Marshal(map[string]string{
		"exported_at": now.UTC().Format(time.RFC3339),
		"format":      string(domain.FormatJSON),
		"version":     exportVersion,
	})
	if err != nil {
		return nil, err
	}
	doc["export_metadata"] = meta
	return json.MarshalIndent(doc, "", "  ")
}

// RenderPDF lays out the cost report on A4 pages
func RenderPDF(est *domain.Estimate, now time.Time) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("BRAKES Cost Estimate "+est.EstimateID, true)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	heading := func(text string, size float64) {
		pdf.SetFont("Helvetica", "B", size)
		pdf.CellFormat(0, 8, tr(text), "B", 1, "L", false, 0, "")
		pdf.Ln(2)
	}
	line := func(text string) {
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, tr(text), "", "L", false)
	}

	heading("BRAKES ROAD INTERVENTION COST ESTIMATE REPORT", 14)
	line("Estimate ID: " + est.EstimateID)
	line("Filename: " + orNA(est.Filename))
	if est.CreatedAt.IsZero() {
		line("Created At: N/A")
	} else {
		line("Created At: " + est.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	line("Status: " + orNA(string(est.Status)))
	line(fmt.Sprintf("Overall Confidence: %.2f%%", est.Confidence*100))
	pdf.Ln(4)

	heading("SUMMARY", 12)
	line(fmt.Sprintf("Total Interventions: %d", len(est.Items)))
	line("Total Cost: INR " + money(est.TotalCost))
	pdf.Ln(4)

	heading("DETAILED BREAKDOWN", 12)
	for i, item := range est.Items {
		iv := item.Intervention
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(0, 6, tr(fmt.Sprintf("%d. %s", i+1, strings.ToUpper(iv.Type))), "", 1, "L", false, 0, "")
		line(fmt.Sprintf("   Quantity: %s %s", num(iv.Quantity), iv.Unit))
		location := "N/A"
		if iv.Location != nil {
			location = *iv.Location
		}
		line("   Location: " + location)
		line(fmt.Sprintf("   Confidence: %.2f%%", iv.Confidence*100))
		if len(item.Materials) > 0 {
			line("   Materials:")
			for _, m := range item.Materials {
				line("     - " + m.Name)
				line(fmt.Sprintf("       Quantity: %s %s", num(m.Quantity), m.Unit))
				line("       Unit Price: INR " + money(m.UnitPrice))
				line("       Total: INR " + money(m.TotalCost))
				line("       IRC Clause: " + orNA(m.IRCClause))
				line("       Source: " + orNA(m.PriceSource))
			}
		}
		line("   Item Total Cost: INR " + money(item.TotalCost))
		pdf.Ln(3)
	}

	heading("CITATIONS AND REFERENCES", 12)
	line("This estimate is based on:")
	line("- Indian Roads Congress (IRC) specifications")
	line("- CPWD Schedule of Rates (SOR) 2023/2024")
	line("- GeM (Government e-Marketplace) pricing where applicable")
	pdf.Ln(2)
	line("Note: This is an automated estimate. Please verify with current market rates and site conditions before finalizing procurement.")
	pdf.Ln(2)
	line("Generated on: " + now.Format("2006-01-02 15:04:05"))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var moneyPrinter = message.NewPrinter(language.English)

// money formats with two decimals and thousands separators
func money(v float64) string {
	return moneyPrinter.Sprintf("%.2f", v)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
