package upload

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/brakes/brakes-estimator/internal/estimate/client"
	"github.com/brakes/brakes-estimator/pkg/errors"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
)

const (
	MsgTooLarge    = "File too large. Maximum size is 25 MiB"
	MsgInvalidType = "Invalid file type. Only PDF files are accepted"
	MsgNoFile      = "No file selected"
)

// File is the handle of a selected document
type File struct {
	Name      string
	Size      int64
	MediaType string
	// Open yields the content for transfer; it is called once per Start
	Open func() (io.ReadCloser, error)
}

// fileRules is checked in field order so that size is reported before type
type fileRules struct {
	Name      string `validate:"required"`
	Size      int64  `validate:"lte=26214400"`
	MediaType string `validate:"eq=application/pdf"`
}

var validate = validator.New()

// ValidateFile applies the selection rules. It returns nil when the file may
// be transferred.
func ValidateFile(f File) *errors.AppError {
	err := validate.Struct(fileRules{
		Name:      strings.TrimSpace(f.Name),
		Size:      f.Size,
		MediaType: normalizeMediaType(f.MediaType),
	})
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(fieldErrs) == 0 {
		return errors.Validation("Invalid file", nil)
	}

	first := fieldErrs[0]
	switch first.Field() {
	case "Size":
		return errors.Validation(MsgTooLarge, map[string]string{
			"size": fmt.Sprintf("%d bytes exceeds %d", f.Size, client.MaxUploadBytes),
		})
	case "MediaType":
		return errors.Validation(MsgInvalidType, map[string]string{
			"media_type": f.MediaType,
		})
	default:
		return errors.Validation(MsgNoFile, map[string]string{"name": "this field is required"})
	}
}

func normalizeMediaType(mt string) string {
	parsed, _, err := mime.ParseMediaType(mt)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mt))
	}
	return parsed
}

// DetectFile builds a File for a local path, sniffing the media type from content
func DetectFile(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return File{}, fmt.Errorf("detect media type of %s: %w", path, err)
	}

	return File{
		Name:      filepath.Base(path),
		Size:      info.Size(),
		MediaType: mtype.String(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}
