package derive

import (
	"context"
	"strings"

	"github.com/brakes/brakes-estimator/internal/estimate/client"
	"github.com/brakes/brakes-estimator/internal/estimate/domain"
	"github.com/brakes/brakes-estimator/pkg/errors"
)

// ExportSource renders artifacts remotely; *client.Client satisfies it
type ExportSource interface {
	Export(ctx context.Context, id string, format domain.ExportFormat) (*client.ExportPayload, error)
}

// Artifact is an export payload ready to be saved
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Exporter requests artifacts from the service. It never serialises estimates itself.
type Exporter struct {
	source ExportSource
}

func NewExporter(source ExportSource) *Exporter {
	return &Exporter{source: source}
}

// Export fetches the artifact for id in format, one of csv, json or pdf
func (e *Exporter) Export(ctx context.Context, id, format string) (*Artifact, error) {
	f, err := domain.ParseExportFormat(format)
	if err != nil {
		return nil, errors.Validation(err.Error(), map[string]string{"format": "must be one of: csv json pdf"})
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.Validation("Estimate ID is required", map[string]string{"id": "this field is required"})
	}

	payload, err := e.source.Export(ctx, id, f)
	if err != nil {
		return nil, err
	}

	contentType := payload.ContentType
	if contentType == "" {
		contentType = f.ContentType()
	}
	return &Artifact{
		Filename:    f.Filename(id),
		ContentType: contentType,
		Data:        payload.Data,
	}, nil
}
