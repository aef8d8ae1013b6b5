package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// SectionKind names one audit trail section
type SectionKind string

const (
	SectionExtraction          SectionKind = "extraction"
	SectionClauseMatching      SectionKind = "clause_matching"
	SectionQuantityCalculation SectionKind = "quantity_calculation"
	SectionPricing             SectionKind = "pricing"
	SectionVerification        SectionKind = "verification"
)

// KnownSections lists the typed kinds in pipeline order
var KnownSections = []SectionKind{
	SectionExtraction,
	SectionClauseMatching,
	SectionQuantityCalculation,
	SectionPricing,
	SectionVerification,
}

// Section is one decoded audit trail entry. The set of implementations is closed.
type Section interface {
	Kind() SectionKind
	section()
}

type ExtractionSection struct {
	Method     string  `json:"method"`
	Confidence float64 `json:"confidence"`
	Type       string  `json:"type"`
	Quantity   float64 `json:"quantity"`
	Unit       string  `json:"unit"`
	Location   *string `json:"location"`
}

type ClauseMatchingSection struct {
	Standard             string `json:"standard"`
	Clause               string `json:"clause"`
	Title                string `json:"title"`
	Page                 *int   `json:"page"`
	Category             string `json:"category"`
	Matched              bool   `json:"matched"`
	RequiresManualReview bool   `json:"requires_manual_review"`
}

type QuantityCalculationSection struct {
	Formula      string  `json:"formula"`
	Calculation  *string `json:"calculation"`
	Result       float64 `json:"result"`
	Unit         string  `json:"unit"`
	IRCReference string  `json:"irc_reference"`
	Error        string  `json:"error,omitempty"`
}

type PricingSection struct {
	Source      string    `json:"source"`
	UnitPrice   float64   `json:"unit_price"`
	FetchedDate Timestamp `json:"fetched_date"`
	Confidence  float64   `json:"confidence"`
	ItemCode    string    `json:"item_code"`
	FuzzyMatch  bool      `json:"fuzzy_match"`
	Warning     string    `json:"warning,omitempty"`
}

type VerificationSection struct {
	ChecksPassed          []string  `json:"checks_passed"`
	Warnings              []string  `json:"warnings"`
	TotalChecks           int       `json:"total_checks"`
	TotalWarnings         int       `json:"total_warnings"`
	ProcessingTimeSeconds float64   `json:"processing_time_seconds"`
	Timestamp             Timestamp `json:"timestamp"`
}

// OpaqueSection keeps a section verbatim: an unrecognised key, or a known key
// whose payload did not match the typed shape.
type OpaqueSection struct {
	Key string
	Raw json.RawMessage
	// Err is set when a known kind failed to decode
	Err error
}

func (ExtractionSection) Kind() SectionKind          { return SectionExtraction }
func (ClauseMatchingSection) Kind() SectionKind      { return SectionClauseMatching }
func (QuantityCalculationSection) Kind() SectionKind { return SectionQuantityCalculation }
func (PricingSection) Kind() SectionKind             { return SectionPricing }
func (VerificationSection) Kind() SectionKind        { return SectionVerification }
func (o OpaqueSection) Kind() SectionKind            { return SectionKind(o.Key) }

func (ExtractionSection) section()          {}
func (ClauseMatchingSection) section()      {}
func (QuantityCalculationSection) section() {}
func (PricingSection) section()             {}
func (VerificationSection) section()        {}
func (OpaqueSection) section()              {}

// AuditTrail is the per-item derivation record. Every section is optional.
// The raw payload is retained so re-encoding never loses fields.
type AuditTrail struct {
	raw      map[string]json.RawMessage
	sections map[string]Section
}

// NewAuditTrail builds a trail from typed sections, mostly for fixtures
func NewAuditTrail(sections ...Section) (AuditTrail, error) {
	t := AuditTrail{
		raw:      make(map[string]json.RawMessage, len(sections)),
		sections: make(map[string]Section, len(sections)),
	}
	for _, s := range sections {
		key := string(s.Kind())
		var (
			data []byte
			err  error
		)
		if o, ok := s.(OpaqueSection); ok {
			data = o.Raw
		} else if data, err = json.Marshal(s); err != nil {
			return AuditTrail{}, fmt.Errorf("encode %s section: %w", key, err)
		}
		t.raw[key] = data
		t.sections[key] = s
	}
	return t, nil
}

func (t *AuditTrail) UnmarshalJSON(data []byte) error {
	t.raw = nil
	t.sections = nil
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("audit_trail must be an object: %w", err)
	}

	t.raw = raw
	t.sections = make(map[string]Section, len(raw))
	for key, payload := range raw {
		t.sections[key] = decodeSection(key, payload)
	}
	return nil
}

func (t AuditTrail) MarshalJSON() ([]byte, error) {
	if t.raw == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(t.raw)
}

func decodeSection(key string, payload json.RawMessage) Section {
	var (
		s   Section
		err error
	)
	switch SectionKind(key) {
	case SectionExtraction:
		var v ExtractionSection
		err = json.Unmarshal(payload, &v)
		s = v
	case SectionClauseMatching:
		var v ClauseMatchingSection
		err = json.Unmarshal(payload, &v)
		s = v
	case SectionQuantityCalculation:
		var v QuantityCalculationSection
		err = json.Unmarshal(payload, &v)
		s = v
	case SectionPricing:
		var v PricingSection
		err = json.Unmarshal(payload, &v)
		s = v
	case SectionVerification:
		var v VerificationSection
		err = json.Unmarshal(payload, &v)
		s = v
	default:
		return OpaqueSection{Key: key, Raw: payload}
	}
	if err != nil || bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
		return OpaqueSection{Key: key, Raw: payload, Err: err}
	}
	return s
}

// Len returns the number of sections present
func (t AuditTrail) Len() int { return len(t.sections) }

// IsEmpty reports whether no section is present
func (t AuditTrail) IsEmpty() bool { return len(t.sections) == 0 }

// Has reports whether a section is present under kind, typed or opaque
func (t AuditTrail) Has(kind SectionKind) bool {
	_, ok := t.sections[string(kind)]
	return ok
}

// Section returns the section under kind
func (t AuditTrail) Section(kind SectionKind) (Section, bool) {
	s, ok := t.sections[string(kind)]
	return s, ok
}

// Raw returns the verbatim JSON of a section
func (t AuditTrail) Raw(kind SectionKind) (json.RawMessage, bool) {
	r, ok := t.raw[string(kind)]
	return r, ok
}

// Sections returns known kinds in pipeline order followed by the rest sorted by key
func (t AuditTrail) Sections() []Section {
	out := make([]Section, 0, len(t.sections))
	seen := make(map[string]bool, len(KnownSections))
	for _, kind := range KnownSections {
		if s, ok := t.sections[string(kind)]; ok {
			out = append(out, s)
			seen[string(kind)] = true
		}
	}

	rest := make([]string, 0, len(t.sections))
	for key := range t.sections {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		out = append(out, t.sections[key])
	}
	return out
}

// Opaque returns every section that is not held in a typed form
func (t AuditTrail) Opaque() []OpaqueSection {
	var out []OpaqueSection
	for _, s := range t.Sections() {
		if o, ok := s.(OpaqueSection); ok {
			out = append(out, o)
		}
	}
	return out
}

func (t AuditTrail) Extraction() *ExtractionSection {
	if s, ok := t.sections[string(SectionExtraction)].(ExtractionSection); ok {
		return &s
	}
	return nil
}

func (t AuditTrail) ClauseMatching() *ClauseMatchingSection {
	if s, ok := t.sections[string(SectionClauseMatching)].(ClauseMatchingSection); ok {
		return &s
	}
	return nil
}

func (t AuditTrail) QuantityCalculation() *QuantityCalculationSection {
	if s, ok := t.sections[string(SectionQuantityCalculation)].(QuantityCalculationSection); ok {
		return &s
	}
	return nil
}

func (t AuditTrail) Pricing() *PricingSection {
	if s, ok := t.sections[string(SectionPricing)].(PricingSection); ok {
		return &s
	}
	return nil
}

func (t AuditTrail) Verification() *VerificationSection {
	if s, ok := t.sections[string(SectionVerification)].(VerificationSection); ok {
		return &s
	}
	return nil
}
