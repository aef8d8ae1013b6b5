package domain

import "time"

type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// ServiceHealth is the state of one dependency of the estimation service
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Model   string `json:"model,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Health is the /health payload. Timestamp is unix seconds.
type Health struct {
	Status            HealthStatus             `json:"status"`
	Timestamp         float64                  `json:"timestamp"`
	Version           string                   `json:"version"`
	Services          map[string]ServiceHealth `json:"services"`
	UnhealthyServices []string                 `json:"unhealthy_services,omitempty"`
}

// Healthy reports whether the overall status is healthy
func (h Health) Healthy() bool {
	return h.Status == HealthHealthy
}

// CheckedAt converts the unix timestamp
func (h Health) CheckedAt() time.Time {
	sec := int64(h.Timestamp)
	nsec := int64((h.Timestamp - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
