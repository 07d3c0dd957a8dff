package ingest

import (
	"fmt"
	"io"
	"strings"
)

// DefaultMaxUploadBytes is the default upload limit, 20 MiB.
const DefaultMaxUploadBytes int64 = 20 << 20

// Extractor returns the plain text of a PDF.
type Extractor interface {
	ExtractPDF(content []byte) (string, error)
}

// Metadata is the uploader-supplied descriptive text. Blank fields take defaults when the
// record is built.
type Metadata struct {
	Title       string
	Description string
	Category    string
}

// Upload is a file as received from a client. A nil File means no payload was sent.
type Upload struct {
	Filename string
	File     io.ReadSeeker
	Metadata Metadata
}

// ValidatedUpload is an upload that passed every check, with its bytes and extracted text.
type ValidatedUpload struct {
	OriginalName string
	Metadata     Metadata
	Data         []byte
	Size         int64
	Content      string
}

// Validator checks uploads. It never persists anything.
type Validator struct {
	extractor Extractor
	maxBytes  int64
}

// NewValidator returns a validator using ex for text extraction. A non-positive maxBytes
// means DefaultMaxUploadBytes.
func NewValidator(ex Extractor, maxBytes int64) *Validator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &Validator{extractor: ex, maxBytes: maxBytes}
}

// MaxBytes returns the upload size limit.
func (v *Validator) MaxBytes() int64 {
	return v.maxBytes
}

// Validate runs the checks in order and stops at the first failure: payload present, ".pdf"
// suffix (case-sensitive), size within the limit, and non-blank extracted text. Extractor
// errors are returned unchanged.
func (v *Validator) Validate(u Upload) (*ValidatedUpload, error) {
	if u.File == nil || u.Filename == "" {
		return nil, ErrMissingFile
	}
	if !strings.HasSuffix(u.Filename, ".pdf") {
		return nil, ErrUnsupportedFormat
	}

	size, err := u.File.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("measure upload: %w", err)
	}
	if _, err := u.File.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind upload: %w", err)
	}
	if size > v.maxBytes {
		return nil, ErrPayloadTooLarge
	}

	data, err := io.ReadAll(u.File)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if _, err := u.File.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind upload: %w", err)
	}

	text, err := v.extractor.ExtractPDF(data)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrUnreadableContent
	}

	return &ValidatedUpload{
		OriginalName: u.Filename,
		Metadata:     u.Metadata,
		Data:         data,
		Size:         size,
		Content:      text,
	}, nil
}
