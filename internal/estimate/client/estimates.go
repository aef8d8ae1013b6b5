package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/brakes/brakes-estimator/internal/estimate/domain"
	"github.com/brakes/brakes-estimator/pkg/errors"
	"github.com/brakes/brakes-estimator/pkg/httputil"
)

// ListParams pages through stored estimates. Zero Limit means the default of 20.
type ListParams struct {
	Limit        int           `validate:"gte=1,lte=100"`
	Offset       int           `validate:"gte=0"`
	StatusFilter domain.Status `validate:"omitempty,oneof=processing completed error pending"`
}

// ExportPayload is the raw artifact returned by the export endpoint
type ExportPayload struct {
	Data        []byte
	ContentType string
}

// GetEstimate fetches the full estimate by id
func (c *Client) GetEstimate(ctx context.Context, id string) (*domain.Estimate, error) {
	escaped, err := requireID("Estimate ID", id)
	if err != nil {
		return nil, err
	}

	var body struct {
		Success  bool            `json:"success"`
		Estimate json.RawMessage `json:"estimate"`
	}
	err = c.read(ctx, request{
		op:     "get_estimate",
		method: http.MethodGet,
		path:   "/api/estimate/" + escaped,
		decode: decodeJSON(&body),
	})
	if err != nil {
		return nil, err
	}

	if len(body.Estimate) == 0 || string(body.Estimate) == "null" {
		return nil, errors.Contract("Estimate service response does not match the expected contract", map[string]string{"estimate": "is required"})
	}
	if c.contract != nil {
		if err := c.contract.CheckEstimatePayload(body.Estimate); err != nil {
			return nil, err
		}
	}

	var estimate domain.Estimate
	if err := json.Unmarshal(body.Estimate, &estimate); err != nil {
		return nil, errors.Contract("Malformed estimate in service response", map[string]string{"estimate": err.Error()})
	}
	if c.contract != nil {
		if err := c.contract.CheckEstimate(&estimate); err != nil {
			return nil, err
		}
	}
	return &estimate, nil
}

// GetSummary fetches the lightweight projection of an estimate
func (c *Client) GetSummary(ctx context.Context, id string) (*domain.EstimateDigest, error) {
	escaped, err := requireID("Estimate ID", id)
	if err != nil {
		return nil, err
	}

	var digest domain.EstimateDigest
	err = c.read(ctx, request{
		op:     "get_summary",
		method: http.MethodGet,
		path:   "/api/estimate/" + escaped + "/summary",
		decode: decodeJSON(&digest),
	})
	if err != nil {
		return nil, err
	}
	return &digest, nil
}

// ListEstimates returns one page of estimates, newest first
func (c *Client) ListEstimates(ctx context.Context, params ListParams) (*domain.EstimatePage, error) {
	if params.Limit == 0 {
		params.Limit = 20
	}
	if err := httputil.Validate(params); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(params.Limit))
	query.Set("offset", strconv.Itoa(params.Offset))
	if params.StatusFilter != "" {
		query.Set("status_filter", string(params.StatusFilter))
	}

	var page domain.EstimatePage
	err := c.read(ctx, request{
		op:     "list_estimates",
		method: http.MethodGet,
		path:   "/api/estimates",
		query:  query,
		decode: decodeJSON(&page),
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// DeleteEstimate removes an estimate. It is never retried.
func (c *Client) DeleteEstimate(ctx context.Context, id string) (*domain.DeleteResult, error) {
	escaped, err := requireID("Estimate ID", id)
	if err != nil {
		return nil, err
	}

	var result domain.DeleteResult
	err = c.send(ctx, request{
		op:     "delete_estimate",
		method: http.MethodDelete,
		path:   "/api/estimate/" + escaped,
		decode: decodeJSON(&result),
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Export requests a rendered artifact. The body is returned as-is.
func (c *Client) Export(ctx context.Context, id string, format domain.ExportFormat) (*ExportPayload, error) {
	escaped, err := requireID("Estimate ID", id)
	if err != nil {
		return nil, err
	}
	if _, err := domain.ParseExportFormat(string(format)); err != nil {
		return nil, errors.Validation(err.Error(), map[string]string{"format": "must be one of: csv json pdf"})
	}

	payload := &ExportPayload{}
	err = c.read(ctx, request{
		op:     "export_estimate",
		method: http.MethodGet,
		path:   "/api/estimate/" + escaped + "/export",
		query:  url.Values{"format": {string(format)}},
		decode: func(resp *http.Response) error {
			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("read export body: %w", err)
			}
			payload.Data = data
			payload.ContentType = resp.Header.Get("Content-Type")
			if payload.ContentType == "" {
				payload.ContentType = format.ContentType()
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// UploadStatus looks up the processing status of an uploaded document
func (c *Client) UploadStatus(ctx context.Context, id string) (*domain.UploadStatus, error) {
	escaped, err := requireID("Estimate ID", id)
	if err != nil {
		return nil, err
	}

	var status domain.UploadStatus
	err = c.read(ctx, request{
		op:     "upload_status",
		method: http.MethodGet,
		path:   "/api/upload/status/" + escaped,
		decode: decodeJSON(&status),
	})
	if err != nil {
		return nil, err
	}
	return &status, nil
}
