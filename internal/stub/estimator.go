package stub

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/brakes/brakes-estimator/internal/estimate/domain"
	"github.com/google/uuid"
)

const processorVersion = "1.0.0"

// MinTextLength is the shortest document body the estimator will look at
const MinTextLength = 50

// formula is the per-unit material rule for one intervention type
type formula struct {
	material    string
	perUnit     float64
	unit        string
	formula     string
	standard    string
	clause      string
	title       string
	category    string
	unitLabel   string
	assumptions []string
}

type rule struct {
	kind    string
	pattern *regexp.Regexp
	formula formula
}

var rules = []rule{
	{
		kind:    domain.InterventionSpeedBreaker,
		pattern: regexp.MustCompile(`(?i)\bspeed\s+(?:breakers?|bumps?)\b`),
		formula: formula{
			material: "Concrete M15 (1:2:4)", perUnit: 0.0525, unit: "cum", unitLabel: "units",
			formula:  "3.5m (width) × 0.3m (depth) × 0.05m (height) = 0.0525 m³ per unit",
			standard: "IRC 67", clause: "3.2.1", title: "Speed breakers on rural and urban roads", category: "traffic_calming",
			assumptions: []string{"Standard speed breaker dimensions: 3.5m width × 0.05m height", "Concrete mix ratio 1:2:4 (cement:sand:aggregate)"},
		},
	},
	{
		kind:    domain.InterventionGuardrail,
		pattern: regexp.MustCompile(`(?i)\b(?:guard\s*rails?|crash\s+barriers?|w-beams?)\b`),
		formula: formula{
			material: "Galvanized Steel W-Beam", perUnit: 5.0, unit: "kg", unitLabel: "meters",
			formula:  "5 kg/meter (standard W-beam weight)",
			standard: "IRC 35", clause: "6.1.1", title: "Metal beam crash barriers", category: "barriers",
			assumptions: []string{"W-beam section 310mm × 3mm thickness", "Includes posts at 2m spacing"},
		},
	},
	{
		kind:    domain.InterventionBarrier,
		pattern: regexp.MustCompile(`(?i)\b(?:concrete\s+barriers?|new\s+jersey\s+barriers?)\b`),
		formula: formula{
			material: "Concrete M30", perUnit: 0.3, unit: "cum", unitLabel: "meters",
			formula:  "0.3 m² cross-section × length = 0.3 m³ per meter",
			standard: "IRC 35", clause: "6.2.1", title: "Rigid concrete barriers", category: "barriers",
			assumptions: []string{"New Jersey profile: 810mm height × 600mm base"},
		},
	},
	{
		kind:    domain.InterventionRoadMarking,
		pattern: regexp.MustCompile(`(?i)\b(?:road|pavement|lane)\s+markings?\b`),
		formula: formula{
			material: "Thermoplastic Paint", perUnit: 2.0, unit: "kg", unitLabel: "sqm",
			formula:  "2 kg/m² (thermoplastic material with glass beads)",
			standard: "IRC 35", clause: "5.2.1", title: "Longitudinal pavement markings", category: "markings",
			assumptions: []string{"Thermoplastic paint thickness: 3mm", "Includes 18% glass beads by weight"},
		},
	},
	{
		kind:    domain.InterventionPedestrianCrossing,
		pattern: regexp.MustCompile(`(?i)\b(?:pedestrian|zebra)\s+crossings?\b`),
		formula: formula{
			material: "Thermoplastic White Paint", perUnit: 0.5, unit: "sqm", unitLabel: "meters",
			formula:  "0.5m (stripe width) × carriageway width",
			standard: "IRC 35", clause: "5.3.1", title: "Pedestrian crossings", category: "markings",
			assumptions: []string{"Stripe width 500mm with 500mm gaps"},
		},
	},
	{
		kind:    domain.InterventionSignage,
		pattern: regexp.MustCompile(`(?i)\b(?:sign\s*boards?|traffic\s+signs?|road\s+signs?|warning\s+signs?)\b`),
		formula: formula{
			material: "Reflective Sheeting Type III", perUnit: 0.5, unit: "sqm", unitLabel: "nos",
			formula:  "0.5 m² (average sign area: 600mm diameter circular or equivalent)",
			standard: "IRC 67", clause: "5.1.1", title: "Retro-reflective road signs", category: "signage",
			assumptions: []string{"Average sign size 600mm", "Type III reflective material"},
		},
	},
	{
		kind:    domain.InterventionStreetLight,
		pattern: regexp.MustCompile(`(?i)\b(?:street\s*lights?|lamp\s+posts?)\b`),
		formula: formula{
			material: "LED Luminaire 100W", perUnit: 1.0, unit: "nos", unitLabel: "nos",
			formula:  "1 complete unit (luminaire + pole + foundation)",
			standard: "IRC 99", clause: "4.2.2", title: "Road lighting", category: "lighting",
			assumptions: []string{"Pole height 9m with single arm bracket"},
		},
	},
	{
		kind:    domain.InterventionTrafficLight,
		pattern: regexp.MustCompile(`(?i)\btraffic\s+(?:lights?|signals?)\b`),
		formula: formula{
			material: "Traffic Signal Unit", perUnit: 1.0, unit: "nos", unitLabel: "nos",
			formula:  "1 signal head assembly per approach",
			standard: "IRC 93", clause: "3.1", title: "Traffic signals", category: "lighting",
			assumptions: []string{"Three aspect LED signal heads"},
		},
	},
}

var (
	quantityBefore = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:nos\.?|units?|numbers?|m|meters?|metres?|sqm|m2|running\s+meters?)?\s*(?:of\s+)?$`)
	locationAfter  = regexp.MustCompile(`(?i)^[^.\n]{0,40}?\b(?:at|near|from)\s+(km\s*\d+(?:\.\d+)?(?:\s*(?:to|-)\s*(?:km\s*)?\d+(?:\.\d+)?)?)`)
)

// Estimator fabricates a deterministic estimate from a document body
type Estimator struct {
	catalogue *Catalogue
	now       func() time.Time
	newID     func() string
}

// NewEstimator prices interventions against catalogue
func NewEstimator(catalogue *Catalogue) *Estimator {
	return &Estimator{
		catalogue: catalogue,
		now:       time.Now,
		newID:     newEstimateID,
	}
}

func newEstimateID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("EST-%s-%s", time.Now().UTC().Format("20060102"), strings.ToUpper(hex[:8]))
}

// Parse finds the interventions mentioned in text, in rule order
func (e *Estimator) Parse(text string) []domain.Intervention {
	var found []domain.Intervention
	for _, r := range rules {
		loc := r.pattern.FindStringIndex(text)
		if loc == nil {
			continue
		}
		iv := domain.Intervention{
			Type:             r.kind,
			Quantity:         1,
			Unit:             r.formula.unitLabel,
			Confidence:       0.65,
			ExtractionMethod: "keyword",
		}
		start := loc[0] - 40
		if start < 0 {
			start = 0
		}
		if m := quantityBefore.FindStringSubmatch(text[start:loc[0]]); m != nil {
			if q, err := strconv.ParseFloat(m[1], 64); err == nil {
				iv.Quantity = q
				iv.Confidence = 0.85
			}
		}
		if m := locationAfter.FindStringSubmatch(text[loc[1]:]); m != nil {
			place := strings.ToLower(strings.Join(strings.Fields(m[1]), " "))
			iv.Location = &place
			if iv.Confidence == 0.85 {
				iv.Confidence = 0.96
			}
		}
		found = append(found, iv)
	}
	return found
}

// Build prices interventions into a completed estimate
func (e *Estimator) Build(filename string, interventions []domain.Intervention) *domain.Estimate {
	start := e.now()
	est := &domain.Estimate{
		EstimateID: e.newID(),
		Filename:   filename,
		CreatedAt:  domain.Timestamp{Time: start.UTC()},
		Status:     domain.StatusCompleted,
		Items:      make([]domain.EstimateItem, 0, len(interventions)),
	}

	var (
		confidenceSum float64
		warnings      int
		withCosts     int
	)
	for _, iv := range interventions {
		item, warned := e.price(iv)
		est.Items = append(est.Items, item)
		est.TotalCost += item.TotalCost
		confidenceSum += iv.Confidence
		warnings += warned
		if item.TotalCost > 0 {
			withCosts++
		}
	}
	est.TotalCost = round2(est.TotalCost)
	if len(interventions) > 0 {
		est.Confidence = round2(confidenceSum / float64(len(interventions)))
	}

	est.Metadata = map[string]any{
		"processing_time_seconds": round2(e.now().Sub(start).Seconds()),
		"interventions_processed": len(interventions),
		"items_with_costs":        withCosts,
		"total_warnings":          warnings,
		"total_errors":            0,
		"processor_version":       processorVersion,
		"calculation_method":      "IRC-based deterministic",
		"timestamp":               start.UTC().Format(time.RFC3339),
	}
	if warnings > 0 {
		est.Metadata["requires_manual_review"] = true
		est.Metadata["review_reason"] = []string{fmt.Sprintf("%d warnings", warnings)}
	}
	return est
}

func (e *Estimator) price(iv domain.Intervention) (domain.EstimateItem, int) {
	var f formula
	for _, r := range rules {
		if r.kind == iv.Type {
			f = r.formula
			break
		}
	}

	var (
		passed   []string
		warnings []string
	)
	passed = append(passed, "IRC clause found", "Quantity calculated successfully")
	if iv.Confidence < 0.8 {
		warnings = append(warnings, fmt.Sprintf("Quantity for '%s' not stated in document; assumed %g %s", iv.Type, iv.Quantity, iv.Unit))
	}

	record, ok := e.catalogue.Lookup(f.material)
	pricing := domain.PricingSection{FetchedDate: catalogueDate}
	if ok {
		passed = append(passed, "Material price found")
		pricing.Source = record.Source
		pricing.UnitPrice = record.PriceINR
		pricing.Confidence = record.Confidence
		pricing.ItemCode = record.ItemCode
	} else {
		record = domain.PriceRecord{Material: f.material, Unit: f.unit, PriceINR: 5000, Source: "Fallback Average"}
		pricing.Source = "Fallback"
		pricing.UnitPrice = record.PriceINR
		pricing.Confidence = 0.5
		pricing.Warning = "Price not in database"
		warnings = append(warnings, fmt.Sprintf("Price for '%s' not found in database. Using fallback price of ₹%.0f.", f.material, record.PriceINR))
	}

	qty := round4(iv.Quantity * f.perUnit)
	calc := fmt.Sprintf("%g %s × %g %s each = %g %s", iv.Quantity, f.unitLabel, f.perUnit, f.unit, qty, f.unit)
	cost := round2(qty * record.PriceINR)
	page := 1

	trail, err := domain.NewAuditTrail(
		domain.ExtractionSection{
			Method:     iv.ExtractionMethod,
			Confidence: iv.Confidence,
			Type:       iv.Type,
			Quantity:   iv.Quantity,
			Unit:       iv.Unit,
			Location:   iv.Location,
		},
		domain.ClauseMatchingSection{
			Standard: f.standard,
			Clause:   f.clause,
			Title:    f.title,
			Page:     &page,
			Category: f.category,
			Matched:  true,
		},
		domain.QuantityCalculationSection{
			Formula:      f.formula,
			Calculation:  &calc,
			Result:       qty,
			Unit:         f.unit,
			IRCReference: f.standard + ":" + f.clause,
		},
		pricing,
		domain.VerificationSection{
			ChecksPassed:  passed,
			Warnings:      warnings,
			TotalChecks:   len(passed) + len(warnings),
			TotalWarnings: len(warnings),
			Timestamp:     domain.Timestamp{Time: e.now().UTC()},
		},
	)
	if err != nil {
		trail = domain.AuditTrail{}
	}

	return domain.EstimateItem{
		Intervention: iv,
		Materials: []domain.Material{{
			Name:        f.material,
			Quantity:    qty,
			Unit:        f.unit,
			UnitPrice:   record.PriceINR,
			TotalCost:   cost,
			IRCClause:   f.standard + ":" + f.clause,
			PriceSource: record.Source,
			FetchedDate: domain.Timestamp{Time: e.now().UTC()},
		}},
		TotalCost:   cost,
		AuditTrail:  trail,
		Assumptions: append(append([]string(nil), f.assumptions...), "Pricing from "+record.Source),
	}, len(warnings)
}

// Summarize projects an estimate onto the upload response
func Summarize(est *domain.Estimate, textLength int, elapsed time.Duration) *domain.UploadResult {
	result := &domain.UploadResult{
		Success:              true,
		EstimateID:           est.EstimateID,
		Filename:             est.Filename,
		Status:               est.Status,
		ExtractionMethod:     "keyword",
		ExtractionConfidence: est.Confidence,
		InterventionsFound:   len(est.Items),
		TotalCost:            est.TotalCost,
		OverallConfidence:    est.Confidence,
		ProcessingTimeMs:     elapsed.Milliseconds(),
		Metadata: map[string]any{
			"page_count":             1,
			"text_length":            textLength,
			"items_with_costs":       est.Metadata["items_with_costs"],
			"requires_manual_review": est.RequiresReview(),
		},
		Items: make([]domain.UploadItem, 0, len(est.Items)),
	}

	for _, item := range est.Items {
		warnings := item.Warnings()
		if warnings == nil {
			warnings = []string{}
		}
		result.Items = append(result.Items, domain.UploadItem{
			InterventionType: item.Intervention.Type,
			Quantity:         item.Intervention.Quantity,
			Unit:             item.Intervention.Unit,
			Location:         item.Intervention.Location,
			Confidence:       item.Intervention.Confidence,
			TotalCost:        item.TotalCost,
			MaterialsCount:   len(item.Materials),
			Warnings:         warnings,
		})
		if v := item.AuditTrail.Verification(); v != nil {
			result.Verification.PassedCount += len(v.ChecksPassed)
			result.Verification.WarningCount += len(v.Warnings)
		}
	}

	switch {
	case result.Verification.ErrorCount > 0:
		result.Verification.Status = "FAILED"
	case result.Verification.WarningCount > 0:
		result.Verification.Status = "NEEDS REVIEW"
	default:
		result.Verification.Status = "VERIFIED"
	}
	return result
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
