package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventUploadSucceeded = "estimate.upload.succeeded"
	EventUploadFailed    = "estimate.upload.failed"
	EventEstimateDeleted = "estimate.deleted"
)

// ExchangeEstimateEvents is the default topic exchange for lifecycle events
const ExchangeEstimateEvents = "estimate.events"

// Event is the envelope every message is published in
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// UploadSucceededEvent is published when the service returns a summary
type UploadSucceededEvent struct {
	TaskID             string  `json:"task_id"`
	EstimateID         string  `json:"estimate_id"`
	Filename           string  `json:"filename"`
	InterventionsFound int     `json:"interventions_found"`
	TotalCost          float64 `json:"total_cost"`
	OverallConfidence  float64 `json:"overall_confidence"`
	ProcessingTimeMs   int64   `json:"processing_time_ms"`
	RequiresReview     bool    `json:"requires_review"`
}

// UploadFailedEvent is published when a transfer ends in failure
type UploadFailedEvent struct {
	TaskID     string `json:"task_id"`
	Filename   string `json:"filename"`
	Kind       string `json:"kind"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code,omitempty"`
}

// EstimateDeletedEvent is published after a successful delete
type EstimateDeletedEvent struct {
	EstimateID string `json:"estimate_id"`
	Message    string `json:"message"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.NewString()
}
