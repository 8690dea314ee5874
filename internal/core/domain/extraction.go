package domain

import "fmt"

// ExtractedDocument is the transient product of one extraction run. It lives
// only for the span of a single processing cycle; no repository or storage
// port accepts it, so the text cannot reach durable storage.
type ExtractedDocument struct {
	Text       string
	Confidence float64
	PageCount  int
}

type ExtractionReason string

const (
	ExtractionUnreadableFile    ExtractionReason = "unreadable_file"
	ExtractionUnsupportedFormat ExtractionReason = "unsupported_format"
	ExtractionInvalidEncoding   ExtractionReason = "invalid_encoding"
	ExtractionEmptyDocument     ExtractionReason = "empty_document"
	ExtractionEngineFailure     ExtractionReason = "engine_failure"
)

// ExtractionError reports a failed extraction with a stable reason code.
// An unreadable file means the stored object could not be read back and the
// task may be redelivered; every other reason is permanent for the same bytes.
type ExtractionError struct {
	Reason ExtractionReason
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("extraction %s", e.Reason)
}

func (e *ExtractionError) Unwrap() []error {
	kind := ErrExtraction
	if e.Reason == ExtractionUnreadableFile {
		kind = ErrTemporary
	}
	if e.Err == nil {
		return []error{kind}
	}
	return []error{kind, e.Err}
}
