package ports

import (
	"context"
	"io"

	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, kind domain.AnalysisKind, body io.Reader) (*domain.Document, error)
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document
// processing: one call runs one full cycle for the delivered task.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string, delivery domain.Delivery) error
}
