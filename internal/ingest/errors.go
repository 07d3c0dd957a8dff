// Package ingest validates uploaded PDFs, builds their index records and runs the upload
// pipeline from validation to dispatch.
package ingest

import "errors"

var (
	// ErrMissingFile means no file payload, or one without a name, was supplied.
	ErrMissingFile = errors.New("no file uploaded")
	// ErrUnsupportedFormat means the filename does not end in ".pdf".
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrPayloadTooLarge means the file exceeds the configured size limit.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrUnreadableContent means the PDF parsed but yielded no text.
	ErrUnreadableContent = errors.New("no readable content")
)
