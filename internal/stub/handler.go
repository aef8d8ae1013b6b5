package stub

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/brakes/brakes-estimator/internal/estimate/domain"
	"github.com/brakes/brakes-estimator/pkg/errors"
	"github.com/brakes/brakes-estimator/pkg/httputil"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
)

// MaxUploadBytes is the largest document the service accepts
const MaxUploadBytes = 25 * 1024 * 1024

type listQuery struct {
	Limit        int    `validate:"gte=1,lte=100"`
	Offset       int    `validate:"gte=0"`
	StatusFilter string `validate:"omitempty,oneof=completed processing error pending"`
}

type searchQuery struct {
	Q     string `validate:"min=2"`
	Limit int    `validate:"gte=1,lte=50"`
}

type pageQuery struct {
	Limit  int `validate:"gte=1,lte=100"`
	Offset int `validate:"gte=0"`
}

// Upload handles POST /api/upload
func (s *Server) Upload(w http.ResponseWriter, r *http.Request) {
	start := s.now()

	mr, err := r.MultipartReader()
	if err != nil {
		s.uploadOutcome("malformed")
		httputil.Error(w, r, errors.BadRequest("Request must be multipart/form-data"))
		return
	}

	var (
		filename string
		content  []byte
		size     int64
	)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.uploadOutcome("malformed")
			httputil.Error(w, r, errors.BadRequest("Invalid multipart payload"))
			return
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}

		filename = part.FileName()
		if ext := strings.ToLower(filepath.Ext(filename)); ext != ".pdf" {
			part.Close()
			s.uploadOutcome("invalid_type")
			httputil.Error(w, r, errors.BadRequest(fmt.Sprintf("Invalid file type: %s. Only PDF files are allowed.", ext)))
			return
		}

		var buf bytes.Buffer
		n, err := io.Copy(&buf, io.LimitReader(part, MaxUploadBytes+1))
		if err != nil {
			part.Close()
			s.uploadOutcome("malformed")
			httputil.Error(w, r, errors.BadRequest("Failed to read uploaded file"))
			return
		}
		size = n
		if n > MaxUploadBytes {
			rest, _ := io.Copy(io.Discard, part)
			size += rest
			part.Close()
			s.uploadOutcome("too_large")
			httputil.Error(w, r, errors.TooLarge(fmt.Sprintf(
				"File too large: %.2f MB. Maximum allowed: %.1f MB",
				float64(size)/(1024*1024), float64(MaxUploadBytes)/(1024*1024))))
			return
		}
		content = buf.Bytes()
		part.Close()
		break
	}

	if filename == "" {
		s.uploadOutcome("malformed")
		httputil.Error(w, r, errors.Validation("Request validation failed", map[string]string{"file": "field required"}))
		return
	}

	if mt := mimetype.Detect(content); !mt.Is(domain.FormatPDF.ContentType()) {
		s.uploadOutcome("invalid_type")
		httputil.Error(w, r, errors.BadRequest(fmt.Sprintf("File content is %s, not a PDF document", mt.String())))
		return
	}

	text := ExtractText(content)
	if len(strings.TrimSpace(text)) < MinTextLength {
		s.uploadOutcome("empty")
		httputil.Error(w, r, errors.BadRequest("PDF appears to be empty or contains insufficient text content"))
		return
	}

	interventions := s.estimator.Parse(text)
	if len(interventions) == 0 {
		s.uploadOutcome("no_interventions")
		httputil.Error(w, r, errors.BadRequest("No road safety interventions found in the PDF. "+
			"Please ensure the document contains information about "+
			"speed breakers, guardrails, road markings, street lights, or road signs."))
		return
	}

	est := s.estimator.Build(filename, interventions)
	s.store.Put(est)
	s.uploadOutcome("accepted")

	s.logger.Info().
		Str("estimate_id", est.EstimateID).
		Str("filename", filename).
		Int64("bytes", size).
		Int("interventions", len(interventions)).
		Msg("estimate created")

	httputil.JSON(w, http.StatusOK, Summarize(est, len(text), s.now().Sub(start)))
}

func (s *Server) uploadOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordUpload(outcome)
	}
}

// UploadStatus handles GET /api/upload/status/{id}
func (s *Server) UploadStatus(w http.ResponseWriter, r *http.Request) {
	est, ok := s.lookup(w, r)
	if !ok {
		return
	}
	httputil.JSON(w, http.StatusOK, domain.UploadStatus{
		Success:    true,
		EstimateID: est.EstimateID,
		Filename:   est.Filename,
		Status:     est.Status,
		TotalCost:  est.TotalCost,
		Confidence: est.Confidence,
		CreatedAt:  est.CreatedAt,
		ItemsCount: len(est.Items),
		Metadata:   est.Metadata,
	})
}

// GetEstimate handles GET /api/estimate/{id}
func (s *Server) GetEstimate(w http.ResponseWriter, r *http.Request) {
	est, ok := s.lookup(w, r)
	if !ok {
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"estimate": est,
	})
}

// GetSummary handles GET /api/estimate/{id}/summary
func (s *Server) GetSummary(w http.ResponseWriter, r *http.Request) {
	est, ok := s.lookup(w, r)
	if !ok {
		return
	}
	digest := domain.EstimateDigest{
		Success:        true,
		EstimateID:     est.EstimateID,
		Filename:       est.Filename,
		CreatedAt:      est.CreatedAt,
		Status:         est.Status,
		TotalCost:      est.TotalCost,
		Confidence:     est.Confidence,
		ItemsCount:     len(est.Items),
		ItemsSummary:   make([]domain.ItemDigest, 0, len(est.Items)),
		RequiresReview: est.RequiresReview(),
	}
	for _, item := range est.Items {
		digest.ItemsSummary = append(digest.ItemsSummary, domain.ItemDigest{
			Type:     item.Intervention.Type,
			Quantity: item.Intervention.Quantity,
			Unit:     item.Intervention.Unit,
			Cost:     item.TotalCost,
		})
	}
	httputil.JSON(w, http.StatusOK, digest)
}

// ListEstimates handles GET /api/estimates
func (s *Server) ListEstimates(w http.ResponseWriter, r *http.Request) {
	q := listQuery{StatusFilter: r.URL.Query().Get("status_filter")}
	var err error
	if q.Limit, err = queryInt(r, "limit", 20); err != nil {
		httputil.Error(w, r, err)
		return
	}
	if q.Offset, err = queryInt(r, "offset", 0); err != nil {
		httputil.Error(w, r, err)
		return
	}
	if err := httputil.Validate(q); err != nil {
		httputil.Error(w, r, err)
		return
	}

	page, total := s.store.List(domain.Status(q.StatusFilter), q.Limit, q.Offset)
	httputil.JSON(w, http.StatusOK, domain.EstimatePage{
		Success:   true,
		Estimates: page,
		Total:     total,
		Limit:     q.Limit,
		Offset:    q.Offset,
		HasMore:   q.Offset+len(page) < total,
	})
}

// DeleteEstimate handles DELETE /api/estimate/{id}
func (s *Server) DeleteEstimate(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if !s.store.Delete(id) {
		httputil.Error(w, r, notFound(id))
		return
	}
	s.logger.Info().Str("estimate_id", id).Msg("estimate deleted")
	httputil.JSON(w, http.StatusOK, domain.DeleteResult{
		Success:    true,
		Deleted:    true,
		EstimateID: id,
		Message:    fmt.Sprintf("Estimate %s deleted successfully", id),
	})
}

// Export handles GET /api/estimate/{id}/export?format=
func (s *Server) Export(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("format")
	if raw == "" {
		raw = string(domain.FormatJSON)
	}
	format, err := domain.ParseExportFormat(raw)
	if err != nil || string(format) != raw {
		httputil.Error(w, r, errors.BadRequest(fmt.Sprintf("Invalid export format: %s. Must be csv, json, or pdf", raw)))
		return
	}

	est, ok := s.lookup(w, r)
	if !ok {
		return
	}

	body, err := Render(est, format, s.now())
	if err != nil {
		s.logger.Error().Err(err).Str("estimate_id", est.EstimateID).Msg("export failed")
		httputil.Error(w, r, errors.Internal("Failed to export estimate"))
		return
	}
	httputil.Attachment(w, format.ContentType(), format.Filename(est.EstimateID), body)
}

// SearchPrices handles GET /api/pricing/search
func (s *Server) SearchPrices(w http.ResponseWriter, r *http.Request) {
	q := searchQuery{Q: r.URL.Query().Get("q")}
	var err error
	if q.Limit, err = queryInt(r, "limit", 10); err != nil {
		httputil.Error(w, r, err)
		return
	}
	if err := httputil.Validate(q); err != nil {
		httputil.Error(w, r, err)
		return
	}

	results := s.catalogue.Search(q.Q, q.Limit)
	httputil.JSON(w, http.StatusOK, domain.PriceSearch{
		Success: true,
		Query:   q.Q,
		Count:   len(results),
		Results: results,
	})
}

// GetPrice handles GET /api/pricing/{name}
func (s *Server) GetPrice(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")
	record, ok := s.catalogue.Lookup(name)
	if !ok {
		httputil.Error(w, r, errors.Service(http.StatusNotFound,
			fmt.Sprintf("Material not found: %s. Try searching with /pricing/search", name)))
		return
	}
	httputil.JSON(w, http.StatusOK, domain.PriceLookup{Success: true, Material: record})
}

// PricesByCategory handles GET /api/pricing/category/{category}
func (s *Server) PricesByCategory(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "category")
	category, records, ok := s.catalogue.Category(name)
	if !ok {
		httputil.Error(w, r, errors.Service(http.StatusNotFound,
			fmt.Sprintf("Category not found: %s. Use /pricing/categories to see available categories", name)))
		return
	}
	httputil.JSON(w, http.StatusOK, domain.PriceCategory{
		Success:   true,
		Category:  category,
		Count:     len(records),
		Materials: records,
	})
}

// PriceCategories handles GET /api/pricing/categories
func (s *Server) PriceCategories(w http.ResponseWriter, r *http.Request) {
	names := s.catalogue.Categories()
	httputil.JSON(w, http.StatusOK, domain.PriceCategories{
		Success:    true,
		Count:      len(names),
		Categories: names,
	})
}

// PriceStatistics handles GET /api/pricing/statistics
func (s *Server) PriceStatistics(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, domain.PriceStatisticsResponse{
		Success:    true,
		Statistics: s.catalogue.Statistics(),
	})
}

// ListPrices handles GET /api/pricing
func (s *Server) ListPrices(w http.ResponseWriter, r *http.Request) {
	var (
		q   pageQuery
		err error
	)
	if q.Limit, err = queryInt(r, "limit", 50); err != nil {
		httputil.Error(w, r, err)
		return
	}
	if q.Offset, err = queryInt(r, "offset", 0); err != nil {
		httputil.Error(w, r, err)
		return
	}
	if err := httputil.Validate(q); err != nil {
		httputil.Error(w, r, err)
		return
	}

	page := s.catalogue.Page(q.Limit, q.Offset)
	httputil.JSON(w, http.StatusOK, domain.PricePage{
		Success:   true,
		Materials: page,
		Total:     s.catalogue.Len(),
		Limit:     q.Limit,
		Offset:    q.Offset,
		HasMore:   q.Offset+len(page) < s.catalogue.Len(),
	})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*domain.Estimate, bool) {
	id := pathParam(r, "id")
	est := s.store.Get(id)
	if est == nil {
		httputil.Error(w, r, notFound(id))
		return nil, false
	}
	return est, true
}

func notFound(id string) *errors.AppError {
	return errors.Service(http.StatusNotFound, "Estimate not found: "+id)
}

// pathParam returns the decoded value of a chi URL parameter
func pathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Validation("Request validation failed", map[string]string{
			name: "value is not a valid integer",
		})
	}
	return v, nil
}
