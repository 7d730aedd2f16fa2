// Package ingestion turns an uploaded PDF into plain text, using the embedded
// text layer first and falling back to OCR when the layer is too thin.
package ingestion

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const (
	// MediaTypePDF is the only accepted upload media type
	MediaTypePDF = "application/pdf"
	// MaxUploadBytes is the default upload size limit (10 MiB)
	MaxUploadBytes int64 = 10 * 1024 * 1024
	// headerWindow is how far into the file the %PDF- marker may appear
	headerWindow = 1024
)

var pdfMagic = []byte("%PDF-")

var validate = validator.New()

// UploadedDocument is a single user-supplied file. The bytes are only held for
// the duration of one ingestion run.
type UploadedDocument struct {
	Filename  string `validate:"max=255"`
	MediaType string `validate:"required"`
	Data      []byte `validate:"required,min=1"`
	Size      int64  `validate:"gte=0"`
	PageCount int    `validate:"gte=0"`
}

// NewDocument wraps raw upload bytes
func NewDocument(filename, mediaType string, data []byte) *UploadedDocument {
	return &UploadedDocument{
		Filename:  filename,
		MediaType: mediaType,
		Data:      data,
		Size:      int64(len(data)),
	}
}

// Validate checks type and size. maxBytes <= 0 uses MaxUploadBytes.
// The type check runs first so a large non-PDF is reported as a type error.
func (d *UploadedDocument) Validate(maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = MaxUploadBytes
	}

	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &InvalidFileTypeError{
				MediaType: d.MediaType,
				Reason:    fmt.Sprintf("field %s failed %q check", verrs[0].Field(), verrs[0].Tag()),
			}
		}
		return &InvalidFileTypeError{MediaType: d.MediaType, Reason: err.Error()}
	}

	if !isPDFMediaType(d.MediaType) {
		return &InvalidFileTypeError{MediaType: d.MediaType}
	}

	if d.Size > maxBytes {
		return &FileSizeExceededError{Size: d.Size, Limit: maxBytes}
	}

	window := d.Data
	if len(window) > headerWindow {
		window = window[:headerWindow]
	}
	if !bytes.Contains(window, pdfMagic) {
		return &InvalidFileTypeError{MediaType: d.MediaType, Reason: "content is not a PDF"}
	}

	return nil
}

// DetectPageCount fills PageCount from the PDF structure. A document pdfcpu
// cannot read keeps PageCount at 0; extraction still gets a chance at it.
func (d *UploadedDocument) DetectPageCount() error {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	n, err := api.PageCount(bytes.NewReader(d.Data), conf)
	if err != nil {
		d.PageCount = 0
		return fmt.Errorf("failed to count pages: %w", err)
	}
	d.PageCount = n
	return nil
}

func isPDFMediaType(mediaType string) bool {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		mt = mediaType
	}
	return strings.EqualFold(strings.TrimSpace(mt), MediaTypePDF)
}
