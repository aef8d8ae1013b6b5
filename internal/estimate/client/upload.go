package client

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/brakes/brakes-estimator/internal/estimate/domain"
	"github.com/brakes/brakes-estimator/pkg/errors"
)

// MaxUploadBytes is the service's document size ceiling (25 MiB)
const MaxUploadBytes int64 = 25 * 1024 * 1024

// PDFMediaType is the only accepted document type
const PDFMediaType = "application/pdf"

// UploadFile is a document to submit. Size must be the exact byte length of Reader.
type UploadFile struct {
	Name   string
	Size   int64
	Reader io.Reader
}

// ProgressFunc receives cumulative bytes sent out of total. It is called
// from the transfer goroutine.
type ProgressFunc func(sent, total int64)

// Upload streams the document as multipart field "file" and returns the
// processing summary. It is never retried.
func (c *Client) Upload(ctx context.Context, file UploadFile, progress ProgressFunc) (*domain.UploadResult, error) {
	if strings.TrimSpace(file.Name) == "" || file.Reader == nil {
		return nil, errors.Validation("No file selected", map[string]string{"file": "this field is required"})
	}
	if file.Size > MaxUploadBytes {
		return nil, errors.Validation("File too large. Maximum size is 25 MiB", map[string]string{"file": "must be at most 26214400 bytes"})
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(c.writeMultipart(mw, file, progress))
	}()

	var result domain.UploadResult
	err := c.send(ctx, request{
		op:          "upload",
		method:      http.MethodPost,
		path:        "/api/upload",
		body:        pr,
		contentType: mw.FormDataContentType(),
		timeout:     c.uploadTimeout,
		decode:      decodeJSON(&result),
	})
	// unblocks the writer if the request ended before the body was drained
	pr.Close()
	if err != nil {
		return nil, err
	}

	if c.contract != nil {
		if err := c.contract.CheckUploadResult(&result); err != nil {
			return nil, err
		}
	}
	return &result, nil
}

func (c *Client) writeMultipart(mw *multipart.Writer, file UploadFile, progress ProgressFunc) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
	header.Set("Content-Type", PDFMediaType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}

	counter := &countingReader{
		r:        file.Reader,
		total:    file.Size,
		progress: progress,
		onRead:   c.metrics.AddUploadBytes,
	}
	if progress != nil {
		progress(0, file.Size)
	}
	if _, err := io.Copy(part, counter); err != nil {
		return err
	}
	return mw.Close()
}

// countingReader reports cumulative bytes read
type countingReader struct {
	r        io.Reader
	total    int64
	sent     int64
	progress ProgressFunc
	onRead   func(int)
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.sent += int64(n)
		if cr.onRead != nil {
			cr.onRead(n)
		}
		if cr.progress != nil {
			cr.progress(cr.sent, cr.total)
		}
	}
	return n, err
}
