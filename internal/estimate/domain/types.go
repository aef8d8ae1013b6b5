package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status represents the processing state of an estimate on the service
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
	StatusPending    Status = "pending"
)

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusProcessing, StatusCompleted, StatusError, StatusPending:
		return true
	}
	return false
}

// InterventionType values the service recognises. Custom types are allowed.
const (
	InterventionSpeedBreaker       = "speed_breaker"
	InterventionRumbleStrip        = "rumble_strip"
	InterventionRoadMarking        = "road_marking"
	InterventionSignage            = "signage"
	InterventionGuardrail          = "guardrail"
	InterventionTrafficLight       = "traffic_light"
	InterventionStreetLight        = "street_light"
	InterventionPedestrianCrossing = "pedestrian_crossing"
	InterventionBarrier            = "barrier"
	InterventionPavement           = "pavement"
	InterventionOther              = "other"
)

// Timestamp accepts the ISO-8601 variants the service emits (with or without zone, date only)
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// Intervention is a road-safety measure extracted from the source document
type Intervention struct {
	Type             string  `json:"type" validate:"required"`
	Quantity         float64 `json:"quantity" validate:"gte=0"`
	Unit             string  `json:"unit"`
	Location         *string `json:"location"`
	Confidence       float64 `json:"confidence" validate:"gte=0,lte=1"`
	ExtractionMethod string  `json:"extraction_method,omitempty"`
}

// Material is one priced component of an estimate item
type Material struct {
	Name        string    `json:"name"`
	Quantity    float64   `json:"quantity" validate:"gte=0"`
	Unit        string    `json:"unit"`
	UnitPrice   float64   `json:"unit_price" validate:"gte=0"`
	TotalCost   float64   `json:"total_cost" validate:"gte=0"`
	IRCClause   string    `json:"irc_clause"`
	PriceSource string    `json:"price_source"`
	FetchedDate Timestamp `json:"fetched_date"`
}

// EstimateItem is one matched intervention with its materials and audit trail.
// TotalCost is computed by the service and never recomputed here.
type EstimateItem struct {
	Intervention Intervention `json:"intervention"`
	Materials    []Material   `json:"materials" validate:"dive"`
	TotalCost    float64      `json:"total_cost" validate:"gte=0"`
	AuditTrail   AuditTrail   `json:"audit_trail"`
	Assumptions  []string     `json:"assumptions"`
}

// Warnings returns the verification warnings recorded in the audit trail, if any
func (i EstimateItem) Warnings() []string {
	if v := i.AuditTrail.Verification(); v != nil {
		return v.Warnings
	}
	return nil
}

// Estimate is the full durable result addressed by EstimateID
type Estimate struct {
	EstimateID string         `json:"estimate_id" validate:"required"`
	Filename   string         `json:"filename"`
	CreatedAt  Timestamp      `json:"created_at"`
	Status     Status         `json:"status"`
	Items      []EstimateItem `json:"items" validate:"dive"`
	TotalCost  float64        `json:"total_cost" validate:"gte=0"`
	Confidence float64        `json:"confidence" validate:"gte=0,lte=1"`
	Metadata   map[string]any `json:"metadata"`
}

// RequiresReview reports the service's manual review flag from metadata
func (e *Estimate) RequiresReview() bool {
	v, _ := e.Metadata["requires_manual_review"].(bool)
	return v
}

// Verification is the tally attached to an upload result
type Verification struct {
	Status       string `json:"status"`
	PassedCount  int    `json:"passed_count"`
	WarningCount int    `json:"warning_count"`
	ErrorCount   int    `json:"error_count"`
}

// UploadItem is the per-item digest returned with an upload result
type UploadItem struct {
	InterventionType string   `json:"intervention_type"`
	Quantity         float64  `json:"quantity"`
	Unit             string   `json:"unit"`
	Location         *string  `json:"location"`
	Confidence       float64  `json:"confidence"`
	TotalCost        float64  `json:"total_cost"`
	MaterialsCount   int      `json:"materials_count"`
	Warnings         []string `json:"warnings"`
}

// UploadResult is the lightweight summary returned immediately after processing
type UploadResult struct {
	Success              bool           `json:"success"`
	EstimateID           string         `json:"estimate_id" validate:"required"`
	Filename             string         `json:"filename"`
	Status               Status         `json:"status"`
	ExtractionMethod     string         `json:"extraction_method"`
	ExtractionConfidence float64        `json:"extraction_confidence"`
	InterventionsFound   int            `json:"interventions_found" validate:"gte=0"`
	TotalCost            float64        `json:"total_cost" validate:"gte=0"`
	OverallConfidence    float64        `json:"overall_confidence" validate:"gte=0,lte=1"`
	ProcessingTimeMs     int64          `json:"processing_time_ms"`
	Verification         Verification   `json:"verification"`
	Metadata             map[string]any `json:"metadata"`
	Items                []UploadItem   `json:"items"`
}

// ItemDigest is one row of the estimate summary projection
type ItemDigest struct {
	Type     string  `json:"type"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
	Cost     float64 `json:"cost"`
}

// EstimateDigest is the GET /summary projection
type EstimateDigest struct {
	Success        bool         `json:"success"`
	EstimateID     string       `json:"estimate_id"`
	Filename       string       `json:"filename"`
	CreatedAt      Timestamp    `json:"created_at"`
	Status         Status       `json:"status"`
	TotalCost      float64      `json:"total_cost"`
	Confidence     float64      `json:"confidence"`
	ItemsCount     int          `json:"items_count"`
	ItemsSummary   []ItemDigest `json:"items_summary"`
	RequiresReview bool         `json:"requires_review"`
}

// EstimatePage is one page of the estimate listing
type EstimatePage struct {
	Success   bool       `json:"success"`
	Estimates []Estimate `json:"estimates"`
	Total     int        `json:"total"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
	HasMore   bool       `json:"has_more"`
}

// RequiresReview reports the manual review flag from upload metadata
func (r *UploadResult) RequiresReview() bool {
	v, _ := r.Metadata["requires_manual_review"].(bool)
	return v
}

// DeleteResult confirms an estimate removal
type DeleteResult struct {
	Success    bool   `json:"success"`
	Deleted    bool   `json:"deleted"`
	EstimateID string `json:"estimate_id"`
	Message    string `json:"message"`
}

// UploadStatus is the processing status lookup for an uploaded document
type UploadStatus struct {
	Success    bool           `json:"success"`
	EstimateID string         `json:"estimate_id"`
	Filename   string         `json:"filename"`
	Status     Status         `json:"status"`
	TotalCost  float64        `json:"total_cost"`
	Confidence float64        `json:"confidence"`
	CreatedAt  Timestamp      `json:"created_at"`
	ItemsCount int            `json:"items_count"`
	Metadata   map[string]any `json:"metadata"`
}

// ExportFormat is one of the artifact formats the service renders
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
	FormatPDF  ExportFormat = "pdf"
)

// ExportFormats lists every accepted format
var ExportFormats = []ExportFormat{FormatCSV, FormatJSON, FormatPDF}

// ParseExportFormat accepts exactly csv, json or pdf (case-insensitive)
func ParseExportFormat(s string) (ExportFormat, error) {
	f := ExportFormat(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FormatCSV, FormatJSON, FormatPDF:
		return f, nil
	}
	return "", fmt.Errorf("unsupported export format %q: must be one of csv, json, pdf", s)
}

// ContentType is the media type the service answers with for the format
func (f ExportFormat) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatJSON:
		return "application/json"
	case FormatPDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}

// Filename is the deterministic artifact name for an estimate
func (f ExportFormat) Filename(estimateID string) string {
	return "estimate_" + estimateID + "." + string(f)
}
