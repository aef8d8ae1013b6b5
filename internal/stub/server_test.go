package stub

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/brakes/brakes-estimator/internal/estimate/domain"
	"github.com/brakes/brakes-estimator/pkg/config"
	"github.com/brakes/brakes-estimator/pkg/logger"
	"github.com/brakes/brakes-estimator/pkg/metrics"
	"github.com/brakes/brakes-estimator/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv := NewServer(
		config.ServerConfig{CORSOrigins: []string{"http://localhost:3000"}},
		logger.Nop(),
		WithClock(fixedClock),
		WithMetrics(metrics.NewHTTPServerMetrics("estimator-stub")),
	)
	t.Cleanup(srv.Close)
	return srv
}

func seed(t *testing.T, srv *Server) domain.Estimate {
	t.Helper()
	est := testutil.FiveItemEstimate()
	srv.Store().Put(&est)
	return est
}

func TestUpload(t *testing.T) {
	srv := newTestServer(t)

	req := testutil.NewUploadRequest(t, "/api/upload", "audit.pdf", []byte(testutil.SampleDocument))
	rr := testutil.ExecuteRequest(srv.Router(), testutil.WithRequestID(req, "req-upload"))

	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Equal(t, "req-upload", rr.Header().Get("X-Request-ID"))

	var result domain.UploadResult
	testutil.ParseJSONBody(t, rr, &result)
	assert.True(t, result.Success)
	assert.Regexp(t, `^EST-\d{8}-[0-9A-F]{8}$`, result.EstimateID)
	assert.Equal(t, "audit.pdf", result.Filename)
	assert.Equal(t, domain.StatusCompleted, result.Status)
	assert.Equal(t, 3, result.InterventionsFound)
	assert.Equal(t, 0.82, result.OverallConfidence)
	assert.Equal(t, "NEEDS REVIEW", result.Verification.Status)
	assert.True(t, result.RequiresReview())
	require.Len(t, result.Items, 3)
	assert.Equal(t, domain.InterventionSpeedBreaker, result.Items[0].InterventionType)
	assert.Equal(t, testutil.PtrString("km 4.5"), result.Items[0].Location)
	assert.Equal(t, 92000.0, result.Items[1].TotalCost)

	stored := srv.Store().Get(result.EstimateID)
	require.NotNil(t, stored)
	assert.Equal(t, result.TotalCost, stored.TotalCost)
}

func TestUpload_GeneratedPDF(t *testing.T) {
	srv := newTestServer(t)

	req := testutil.NewUploadRequest(t, "/api/upload", "audit.pdf", generatedPDF(t, auditLines...))
	rr := testutil.ExecuteRequest(srv.Router(), req)

	testutil.AssertStatus(t, rr, http.StatusOK)
	var result domain.UploadResult
	testutil.ParseJSONBody(t, rr, &result)
	assert.Equal(t, 3, result.InterventionsFound)
	require.Len(t, result.Items, 3)
	assert.Equal(t, domain.InterventionSpeedBreaker, result.Items[0].InterventionType)
	assert.Equal(t, 5.0, result.Items[0].Quantity)
	assert.Equal(t, testutil.PtrString("km 4.5"), result.Items[0].Location)
	assert.Equal(t, domain.InterventionGuardrail, result.Items[1].InterventionType)
	assert.Equal(t, 200.0, result.Items[1].Quantity)
}

func TestUpload_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
		status   int
		message  string
	}{
		{
			name:     "wrong extension",
			filename: "audit.txt",
			data:     []byte(testutil.SampleDocument),
			status:   http.StatusBadRequest,
			message:  "Invalid file type: .txt. Only PDF files are allowed.",
		},
		{
			name:     "not a pdf",
			filename: "audit.pdf",
			data:     []byte("plain text pretending to be a road safety audit report"),
			status:   http.StatusBadRequest,
			message:  "not a PDF document",
		},
		{
			name:     "empty document",
			filename: "audit.pdf",
			data:     testutil.PDFDocument(""),
			status:   http.StatusBadRequest,
			message:  "insufficient text content",
		},
		{
			name:     "nothing recognised",
			filename: "audit.pdf",
			data:     testutil.PDFDocument("Drainage survey of the culverts along the service road, chainage 0 to 12."),
			status:   http.StatusBadRequest,
			message:  "No road safety interventions found in the PDF",
		},
		{
			name:     "too large",
			filename: "audit.pdf",
			data:     testutil.PaddedPDF(MaxUploadBytes + 1),
			status:   http.StatusRequestEntityTooLarge,
			message:  "Maximum allowed: 25.0 MB",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t)
			req := testutil.NewUploadRequest(t, "/api/upload", tt.filename, tt.data)
			rr := testutil.ExecuteRequest(srv.Router(), req)

			testutil.AssertErrorEnvelope(t, rr, tt.status, tt.message)
			assert.Zero(t, srv.Store().Len())
		})
	}
}

func TestUpload_MissingFile(t *testing.T) {
	srv := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "no file here"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rr := testutil.ExecuteRequest(srv.Router(), req)

	testutil.AssertErrorEnvelope(t, rr, http.StatusUnprocessableEntity, "Request validation failed")
	testutil.AssertBodyContains(t, rr, `"file":"field required"`)
}

func TestUpload_NotMultipart(t *testing.T) {
	srv := newTestServer(t)
	req := testutil.NewHTTPRequest(http.MethodPost, "/api/upload", map[string]string{"file": "x"})

	rr := testutil.ExecuteRequest(srv.Router(), req)

	testutil.AssertErrorEnvelope(t, rr, http.StatusBadRequest, "multipart/form-data")
}

func TestEstimateReads(t *testing.T) {
	srv := newTestServer(t)
	est := seed(t, srv)
	router := srv.Router()

	t.Run("get", func(t *testing.T) {
		rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/api/estimate/abc123", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var body struct {
			Success  bool            `json:"success"`
			Estimate domain.Estimate `json:"estimate"`
		}
		testutil.ParseJSONBody(t, rr, &body)
		assert.True(t, body.Success)
		assert.Equal(t, "abc123", body.Estimate.EstimateID)
		assert.Len(t, body.Estimate.Items, 5)
		assert.Equal(t, est.TotalCost, body.Estimate.TotalCost)
	})

	t.Run("summary", func(t *testing.T) {
		rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/api/estimate/abc123/summary", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var digest domain.EstimateDigest
		testutil.ParseJSONBody(t, rr, &digest)
		assert.Equal(t, 5, digest.ItemsCount)
		assert.Equal(t, domain.InterventionGuardrail, digest.ItemsSummary[1].Type)
		assert.Equal(t, 48000.0, digest.ItemsSummary[1].Cost)
		assert.False(t, digest.RequiresReview)
	})

	t.Run("status", func(t *testing.T) {
		rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/api/upload/status/abc123", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var status domain.UploadStatus
		testutil.ParseJSONBody(t, rr, &status)
		assert.Equal(t, domain.StatusCompleted, status.Status)
		assert.Equal(t, 5, status.ItemsCount)
	})

	t.Run("unknown id", func(t *testing.T) {
		rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/api/estimate/missing", nil))
		testutil.AssertErrorEnvelope(t, rr, http.StatusNotFound, "Estimate not found: missing")
	})
}

func TestListEstimates(t *testing.T) {
	srv := newTestServer(t)
	factory := testutil.NewFixtureFactory()
	for i := 0; i < 3; i++ {
		est := factory.Estimate()
		srv.Store().Put(&est)
	}
	failed := factory.Estimate(testutil.WithEstimateStatus(domain.StatusError))
	srv.Store().Put(&failed)

	rr := testutil.ExecuteRequest(srv.Router(), testutil.NewHTTPRequest(http.MethodGet, "/api/estimates?limit=2", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var page domain.EstimatePage
	testutil.ParseJSONBody(t, rr, &page)
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, 2, page.Limit)
	assert.True(t, page.HasMore)
	require.Len(t, page.Estimates, 2)
	assert.Equal(t, failed.EstimateID, page.Estimates[0].EstimateID)

	rr = testutil.ExecuteRequest(srv.Router(), testutil.NewHTTPRequest(http.MethodGet, "/api/estimates?status_filter=completed&offset=1", nil))
	testutil.ParseJSONBody(t, rr, &page)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Estimates, 2)
	assert.False(t, page.HasMore)

	rr = testutil.ExecuteRequest(srv.Router(), testutil.NewHTTPRequest(http.MethodGet, "/api/estimates?limit=500", nil))
	testutil.AssertStatus(t, rr, http.StatusUnprocessableEntity)

	rr = testutil.ExecuteRequest(srv.Router(), testutil.NewHTTPRequest(http.MethodGet, "/api/estimates?offset=abc", nil))
	testutil.AssertErrorEnvelope(t, rr, http.StatusUnprocessableEntity, "Request validation failed")
	testutil.AssertBodyContains(t, rr, "value is not a valid integer")
}

func TestDeleteEstimate(t *testing.T) {
	srv := newTestServer(t)
	seed(t, srv)

	rr := testutil.ExecuteRequest(srv.Router(), testutil.NewHTTPRequest(http.MethodDelete, "/api/estimate/abc123", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var result domain.DeleteResult
	testutil.ParseJSONBody(t, rr, &result)
	assert.True(t, result.Deleted)
	assert.Equal(t, "Estimate abc123 deleted successfully", result.Message)

	rr = testutil.ExecuteRequest(srv.Router(), testutil.NewHTTPRequest(http.MethodDelete, "/api/estimate/abc123", nil))
	testutil.AssertErrorEnvelope(t, rr, http.StatusNotFound, "Estimate not found: abc123")
}

func TestExport(t *testing.T) {
	srv := newTestServer(t)
	seed(t, srv)

	t.Run("csv", func(t *testing.T) {
		rr := testutil.ExecuteRequest(srv.Router(), testutil.NewHTTPRequest(http.MethodGet, "/api/estimate/abc123/export?format=csv", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Equal(t, "text/csv", rr.Header().Get("Content-Type"))
		assert.Equal(t, "attachment; filename=estimate_abc123.csv", rr.Header().Get("Content-Disposition"))
		assert.True(t, strings.HasPrefix(rr.Body.String(), "Estimate ID,Filename,Created At"))
		testutil.AssertBodyContains(t, rr, "\n\nTOTAL,")
	})

	t.Run("json by default", func(t *testing.T) {
		rr := testutil.ExecuteRequest(srv.Router(), testutil.NewHTTPRequest(http.MethodGet, "/api/estimate/abc123/export", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

		var doc map[string]json.RawMessage
		testutil.ParseJSONBody(t, rr, &doc)
		assert.Contains(t, doc, "export_metadata")
		assert.Contains(t, doc, "items")
	})

	t.Run("pdf", func(t *testing.T) {
		rr := testutil.ExecuteRequest(srv.Router(), testutil.NewHTTPRequest(http.MethodGet, "/api/estimate/abc123/export?format=pdf", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF-")))
	})

	for _, format := range []string{"xml", "CSV"} {
		t.Run("rejects "+format, func(t *testing.T) {
			rr := testutil.ExecuteRequest(srv.Router(), testutil.NewHTTPRequest(http.MethodGet, "/api/estimate/abc123/export?format="+format, nil))
			testutil.AssertErrorEnvelope(t, rr, http.StatusBadRequest, "Invalid export format: "+format+". Must be csv, json, or pdf")
		})
	}

	t.Run("unknown id", func(t *testing.T) {
		rr := testutil.ExecuteRequest(srv.Router(), testutil.NewHTTPRequest(http.MethodGet, "/api/estimate/nope/export?format=csv", nil))
		testutil.AssertErrorEnvelope(t, rr, http.StatusNotFound, "Estimate not found: nope")
	})
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	rr := testutil.ExecuteRequest(srv.Router(), testutil.NewHTTPRequest(http.MethodGet, "/health", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var health struct {
		Status            string                            `json:"status"`
		Version           string                            `json:"version"`
		Timestamp         float64                           `json:"timestamp"`
		Services          map[string]map[string]interface{} `json:"services"`
		UnhealthyServices []string                          `json:"unhealthy_services"`
	}
	testutil.ParseJSONBody(t, rr, &health)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, Version, health.Version)
	assert.Equal(t, float64(fixedNow.Unix()), health.Timestamp)
	assert.Equal(t, float64(len(rules)), health.Services["irc_clauses"]["count"])
	assert.Empty(t, health.UnhealthyServices)

	srv.SetDependencyDown("database", "connection refused")
	rr = testutil.ExecuteRequest(srv.Router(), testutil.NewHTTPRequest(http.MethodGet, "/health", nil))
	testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
	testutil.ParseJSONBody(t, rr, &health)
	assert.Equal(t, "unhealthy", health.Status)
	assert.Equal(t, []string{"database"}, health.UnhealthyServices)
	assert.Equal(t, "connection refused", health.Services["database"]["error"])

	srv.SetDependencyUp("database")
	rr = testutil.ExecuteRequest(srv.Router(), testutil.NewHTTPRequest(http.MethodGet, "/health", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
}

func TestPricing(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()

	t.Run("search", func(t *testing.T) {
		rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/api/pricing/search?q=concrete&limit=2", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var search domain.PriceSearch
		testutil.ParseJSONBody(t, rr, &search)
		assert.Equal(t, "concrete", search.Query)
		assert.Equal(t, 2, search.Count)
		assert.Len(t, search.Results, 2)
	})

	t.Run("search query too short", func(t *testing.T) {
		rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/api/pricing/search?q=p", nil))
		testutil.AssertStatus(t, rr, http.StatusUnprocessableEntity)
	})

	t.Run("get by escaped name", func(t *testing.T) {
		rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/api/pricing/Concrete%20M15%20%281%3A2%3A4%29", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var lookup domain.PriceLookup
		testutil.ParseJSONBody(t, rr, &lookup)
		assert.Equal(t, "Concrete M15 (1:2:4)", lookup.Material.Material)
		assert.Equal(t, 5850.0, lookup.Material.PriceINR)
	})

	t.Run("unknown material", func(t *testing.T) {
		rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/api/pricing/unobtainium", nil))
		testutil.AssertErrorEnvelope(t, rr, http.StatusNotFound, "Material not found: unobtainium. Try searching with /pricing/search")
	})

	t.Run("category", func(t *testing.T) {
		rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/api/pricing/category/signage", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var category domain.PriceCategory
		testutil.ParseJSONBody(t, rr, &category)
		assert.Equal(t, "Signage", category.Category)
		assert.Equal(t, 2, category.Count)
	})

	t.Run("unknown category", func(t *testing.T) {
		rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/api/pricing/category/plumbing", nil))
		testutil.AssertErrorEnvelope(t, rr, http.StatusNotFound, "Category not found: plumbing")
	})

	t.Run("categories", func(t *testing.T) {
		rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/api/pricing/categories", nil))
		var categories domain.PriceCategories
		testutil.ParseJSONBody(t, rr, &categories)
		assert.Equal(t, 6, categories.Count)
		assert.Equal(t, "Concrete", categories.Categories[0])
	})

	t.Run("statistics", func(t *testing.T) {
		rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/api/pricing/statistics", nil))
		var stats domain.PriceStatisticsResponse
		testutil.ParseJSONBody(t, rr, &stats)
		assert.True(t, stats.Success)
		assert.Equal(t, 13, stats.Statistics.TotalMaterials)
	})

	t.Run("list", func(t *testing.T) {
		rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/api/pricing?limit=5&offset=10", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var page domain.PricePage
		testutil.ParseJSONBody(t, rr, &page)
		assert.Equal(t, 13, page.Total)
		assert.Len(t, page.Materials, 3)
		assert.False(t, page.HasMore)
	})
}

func TestRouter_Fallbacks(t *testing.T) {
	srv := newTestServer(t)

	rr := testutil.ExecuteRequest(srv.Router(), testutil.NewHTTPRequest(http.MethodGet, "/api/nowhere", nil))
	testutil.AssertErrorEnvelope(t, rr, http.StatusNotFound, "Not Found")

	rr = testutil.ExecuteRequest(srv.Router(), testutil.NewHTTPRequest(http.MethodPut, "/api/estimates", nil))
	testutil.AssertErrorEnvelope(t, rr, http.StatusMethodNotAllowed, "Method Not Allowed")
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	router := srv.Router()

	testutil.ExecuteRequest(router, testutil.NewUploadRequest(t, "/api/upload", "audit.pdf", []byte(testutil.SampleDocument)))
	testutil.ExecuteRequest(router, testutil.NewUploadRequest(t, "/api/upload", "audit.doc", []byte(testutil.SampleDocument)))

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/metrics", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertBodyContains(t, rr, `brakes_stub_uploads_total{outcome="accepted",service="estimator-stub"} 1`)
	testutil.AssertBodyContains(t, rr, `brakes_stub_uploads_total{outcome="invalid_type",service="estimator-stub"} 1`)
	testutil.AssertBodyContains(t, rr, "brakes_http_requests_total")
}
