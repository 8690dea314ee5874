package ports

import (
	"context"
	"io"
	"time"

	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/core/domain"
)

// DocumentRepository persists and reads document state. No method accepts
// extracted text; extraction is recorded as length and status only.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	MarkExtracting(ctx context.Context, id string) error
	MarkAnalyzing(ctx context.Context, id string) error
	RecordExtraction(ctx context.Context, id string, length int) error
	RecordExtractionFailed(ctx context.Context, id string) error
	SaveAnalysis(ctx context.Context, id string, analysis domain.AnalysisResult) error
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, reason domain.FailureReason) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// TaskHandler runs one processing cycle for a delivered document task.
type TaskHandler func(ctx context.Context, documentID string, delivery domain.Delivery) error

// TaskQueue dispatches processing tasks carrying the document identifier
// only. Consumers acknowledge a task after the handler returns nil; a
// domain.ErrTemporary return schedules a delayed redelivery instead.
type TaskQueue interface {
	PublishDocumentTask(ctx context.Context, documentID string) error
	ConsumeDocumentTasks(ctx context.Context, handler TaskHandler) error
}

// TextExtractor converts a stored document into transient text plus quality
// metadata.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (domain.ExtractedDocument, error)
}

// CompletionGateway is the sole path to the completion provider.
type CompletionGateway interface {
	Complete(ctx context.Context, req domain.CompletionRequest) domain.Result[domain.Completion]
	CompleteStructured(ctx context.Context, req domain.CompletionRequest, kind domain.AnalysisKind) domain.Result[domain.StructuredCompletion]
}

// CompletionProvider performs one raw model invocation. Implementations
// report transport errors as-is; classification, retry and sanitization
// belong to the gateway.
type CompletionProvider interface {
	Generate(ctx context.Context, system, prompt string) (domain.ProviderReply, error)
}

// AnalysisValidator checks structured payloads against the declared schema
// for an analysis kind.
type AnalysisValidator interface {
	Validate(kind domain.AnalysisKind, payload []byte) error
	Version(kind domain.AnalysisKind) string
}

// CycleObserver receives processing lifecycle events for instrumentation.
type CycleObserver interface {
	CycleStarted()
	CycleFinished(outcome domain.CycleOutcome, duration time.Duration)
	DocumentFailed(reason domain.FailureReason)
}
