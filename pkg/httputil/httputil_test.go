package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brakes/brakes-estimator/pkg/errors"
	"github.com/brakes/brakes-estimator/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_AppError(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/estimate/missing", nil)

	Error(rr, req, errors.NotFound("Estimate"))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	var body ErrorEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.True(t, body.Error)
	assert.Equal(t, 404, body.StatusCode)
	assert.Equal(t, "Estimate not found", body.Message)
	assert.Equal(t, "/api/estimate/missing", body.Path)
	assert.Empty(t, body.Details)
}

func TestError_DetailsAndRaw(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/estimates", nil)

	Error(rr, req, errors.Validation("Request validation failed", map[string]string{"limit": "must be at most 100"}))

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.JSONEq(t, `{"error":true,"status_code":422,"message":"Request validation failed","details":{"limit":"must be at most 100"},"path":"/api/estimates"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	appErr := errors.BadRequest("bad")
	appErr.Raw = json.RawMessage(`[{"loc":["query","q"]}]`)
	Error(rr, req, appErr)
	assert.Contains(t, rr.Body.String(), `"details":[{"loc":["query","q"]}]`)
}

func TestError_PlainErrorIsInternal(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	Error(rr, req, fmt.Errorf("boom"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "Internal server error")
	assert.NotContains(t, rr.Body.String(), "boom")
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	h.ServeHTTP(rr, req)
	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", rr.Header().Get("X-Request-ID"))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.NotEqual(t, "req-42", seen)
}

func TestRecoverer(t *testing.T) {
	h := Recoverer(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/upload", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), `"error":true`)
}

func TestValidate(t *testing.T) {
	type query struct {
		Q     string `validate:"min=2"`
		Limit int    `validate:"gte=1,lte=50"`
	}

	require.NoError(t, Validate(query{Q: "paint", Limit: 10}))

	err := Validate(query{Q: "p", Limit: 51})
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, errors.KindValidation, appErr.Kind)
	assert.Equal(t, "must be at least 2 characters", appErr.Details["Q"])
	assert.Equal(t, "must be less than or equal to 50", appErr.Details["Limit"])
}
