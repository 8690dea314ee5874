package domain

import (
	"fmt"
	"time"
)

type DocumentStatus string

const (
	StatusUploading  DocumentStatus = "uploading"
	StatusExtracting DocumentStatus = "extracting"
	StatusAnalyzing  DocumentStatus = "analyzing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// Terminal reports whether no further automated transition may occur.
func (s DocumentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var statusTransitions = map[DocumentStatus][]DocumentStatus{
	StatusUploading:  {StatusExtracting},
	StatusExtracting: {StatusAnalyzing, StatusFailed},
	StatusAnalyzing:  {StatusCompleted, StatusFailed},
}

// CanTransition enforces the forward-only lifecycle. Re-entering the current
// state is allowed so redelivered tasks stay idempotent; terminal states accept
// nothing.
func (s DocumentStatus) CanTransition(to DocumentStatus) bool {
	if s == to {
		return !s.Terminal()
	}
	for _, next := range statusTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type FailureReason string

const (
	FailureExtraction       FailureReason = "extraction_error"
	FailureGatewayTimeout   FailureReason = "gateway_timeout"
	FailureGatewayProvider  FailureReason = "gateway_provider_error"
	FailureSchemaValidation FailureReason = "schema_validation_error"
	FailureRetriesExhausted FailureReason = "retries_exhausted"
)

type ExtractionStatus string

const (
	ExtractionPending   ExtractionStatus = "pending"
	ExtractionCompleted ExtractionStatus = "completed"
	ExtractionFailed    ExtractionStatus = "failed"
)

type AnalysisKind string

const (
	KindDecisionLetter AnalysisKind = "decision_letter"
	KindRating         AnalysisKind = "rating"
	KindEvidenceGap    AnalysisKind = "evidence_gap"
)

// ParseAnalysisKind validates a caller-supplied kind string.
func ParseAnalysisKind(s string) (AnalysisKind, error) {
	switch kind := AnalysisKind(s); kind {
	case KindDecisionLetter, KindRating, KindEvidenceGap:
		return kind, nil
	default:
		return "", WrapError(ErrInvalidInput, "parse analysis kind", fmt.Errorf("unknown analysis kind %q", s))
	}
}

// Document carries lifecycle state and extraction metadata only. Extracted
// text never becomes a field here; it lives in ExtractedDocument for the span
// of one processing cycle.
type Document struct {
	ID               string           `json:"id"`
	Filename         string           `json:"filename"`
	MimeType         string           `json:"mime_type"`
	StoragePath      string           `json:"storage_path"`
	AnalysisKind     AnalysisKind     `json:"analysis_kind"`
	Status           DocumentStatus   `json:"status"`
	ExtractionStatus ExtractionStatus `json:"extraction_status"`
	ExtractionLength int              `json:"extraction_length"`
	FailureReason    FailureReason    `json:"failure_reason,omitempty"`
	Analysis         *AnalysisResult  `json:"analysis,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}
