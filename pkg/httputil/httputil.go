package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/brakes/brakes-estimator/pkg/errors"
)

// ErrorEnvelope is the body written for every failed request
type ErrorEnvelope struct {
	Error      bool            `json:"error"`
	StatusCode int             `json:"status_code"`
	Message    string          `json:"message"`
	Details    json.RawMessage `json:"details,omitempty"`
	Path       string          `json:"path,omitempty"`
}

// JSON sends a JSON response. Payloads carry their own success flag.
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// Error sends the error envelope for err. Unknown errors become a generic 500.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	envelope := ErrorEnvelope{
		Error:      true,
		StatusCode: http.StatusInternalServerError,
		Message:    "Internal server error",
		Path:       r.URL.Path,
	}

	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		if appErr.StatusCode != 0 {
			envelope.StatusCode = appErr.StatusCode
		}
		envelope.Message = appErr.Message
		switch {
		case len(appErr.Raw) > 0:
			envelope.Details = appErr.Raw
		case len(appErr.Details) > 0:
			envelope.Details, _ = json.Marshal(appErr.Details)
		}
	}

	JSON(w, envelope.StatusCode, envelope)
}

// Attachment sends a binary body as a download
func Attachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
