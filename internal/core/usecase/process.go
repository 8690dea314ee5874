package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/core/domain"
	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/core/ports"
)

// ProcessDocumentUseCase runs one processing cycle per delivered task:
// extract, analyze, persist. Every step is idempotent, so a redelivery after
// a crash replays the cycle without corrupting state.
type ProcessDocumentUseCase struct {
	repo      ports.DocumentRepository
	extractor ports.TextExtractor
	gateway   ports.CompletionGateway
	observer  ports.CycleObserver
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	extractor ports.TextExtractor,
	gateway ports.CompletionGateway,
	observer ports.CycleObserver,
) *ProcessDocumentUseCase {
	if observer == nil {
		observer = noopObserver{}
	}
	return &ProcessDocumentUseCase{
		repo:      repo,
		extractor: extractor,
		gateway:   gateway,
		observer:  observer,
	}
}

// ProcessByID is the queue handler. A nil return acknowledges the task; a
// domain.ErrTemporary return sends it back for delayed redelivery. Terminal
// document outcomes are persisted here before the task is acknowledged.
func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string, delivery domain.Delivery) error {
	uc.observer.CycleStarted()
	start := time.Now()

	outcome, err := uc.runCycle(ctx, documentID, delivery)
	uc.observer.CycleFinished(outcome, time.Since(start))
	return err
}

func (uc *ProcessDocumentUseCase) runCycle(ctx context.Context, documentID string, delivery domain.Delivery) (domain.CycleOutcome, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		if domain.IsKind(err, domain.ErrDocumentNotFound) {
			slog.Warn("task_for_unknown_document", "document_id", documentID)
			return domain.CycleSkipped, nil
		}
		return domain.CycleRedelivered, domain.WrapError(domain.ErrTemporary, "load document", err)
	}

	if doc.Status.Terminal() {
		slog.Info("task_skipped_terminal", "document_id", documentID, "status", doc.Status)
		return domain.CycleSkipped, nil
	}

	if err := uc.repo.MarkExtracting(ctx, documentID); err != nil {
		return uc.persistenceFailure("mark extracting", documentID, err)
	}

	extracted, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		if domain.IsKind(err, domain.ErrTemporary) {
			return domain.CycleRedelivered, err
		}
		if recErr := uc.repo.RecordExtractionFailed(ctx, documentID); recErr != nil {
			return uc.persistenceFailure("record extraction failed", documentID, recErr)
		}
		return uc.failDocument(ctx, documentID, domain.FailureExtraction, err)
	}

	if err := uc.repo.RecordExtraction(ctx, documentID, len(extracted.Text)); err != nil {
		return uc.persistenceFailure("record extraction", documentID, err)
	}
	if err := uc.repo.MarkAnalyzing(ctx, documentID); err != nil {
		return uc.persistenceFailure("mark analyzing", documentID, err)
	}

	res := uc.gateway.CompleteStructured(ctx, buildAnalysisRequest(doc.AnalysisKind, extracted), doc.AnalysisKind)
	if !res.Ok() {
		return uc.handleGatewayFailure(ctx, documentID, delivery, res.Err())
	}

	completion := res.Value()
	analysis := domain.AnalysisResult{
		Kind:          completion.Kind,
		SchemaVersion: completion.SchemaVersion,
		Payload:       completion.Payload,
	}
	if err := uc.repo.SaveAnalysis(ctx, documentID, analysis); err != nil {
		return uc.persistenceFailure("save analysis", documentID, err)
	}
	if err := uc.repo.MarkCompleted(ctx, documentID); err != nil {
		return uc.persistenceFailure("mark completed", documentID, err)
	}

	slog.Info("task_completed",
		"document_id", documentID,
		"kind", doc.AnalysisKind,
		"attempt", delivery.Attempt,
		"extraction_length", len(extracted.Text),
		"pages", extracted.PageCount,
		"confidence", extracted.Confidence,
		"total_tokens", res.Usage().TotalTokens,
		"cost", res.Cost(),
	)
	return domain.CycleCompleted, nil
}

func (uc *ProcessDocumentUseCase) handleGatewayFailure(
	ctx context.Context,
	documentID string,
	delivery domain.Delivery,
	gwErr *domain.GatewayError,
) (domain.CycleOutcome, error) {
	switch {
	case gwErr.Code == domain.GatewayCanceled:
		// A soft task timeout on the last allowed attempt is exhaustion;
		// a worker shutdown is not and just hands the task back.
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && delivery.Final() {
			return uc.failDocument(ctx, documentID, domain.FailureRetriesExhausted, gwErr)
		}
		return domain.CycleRedelivered, domain.WrapError(domain.ErrTemporary, "analyze document", gwErr)

	case gwErr.Code.Transient():
		if delivery.Final() {
			slog.Warn("task_attempts_exhausted",
				"document_id", documentID,
				"attempt", delivery.Attempt,
				"last_code", gwErr.Code,
			)
			return uc.failDocument(ctx, documentID, domain.FailureRetriesExhausted, gwErr)
		}
		return domain.CycleRedelivered, domain.WrapError(domain.ErrTemporary, "analyze document", gwErr)

	default:
		// unparseable_output and invalid_schema: the model answered but the
		// answer does not fit the contract. Retrying the same text does not
		// change that.
		return uc.failDocument(ctx, documentID, domain.FailureSchemaValidation, gwErr)
	}
}

// failDocument records a terminal failure. The write runs detached from the
// task deadline so exhaustion bookkeeping is not lost to the timeout that
// caused it.
func (uc *ProcessDocumentUseCase) failDocument(
	ctx context.Context,
	documentID string,
	reason domain.FailureReason,
	cause error,
) (domain.CycleOutcome, error) {
	writeCtx := context.WithoutCancel(ctx)
	if err := uc.repo.MarkFailed(writeCtx, documentID, reason); err != nil {
		return uc.persistenceFailure("mark failed", documentID, err)
	}
	uc.observer.DocumentFailed(reason)
	slog.Error("document_failed", "document_id", documentID, "reason", reason, "error", cause)
	return domain.CycleFailed, nil
}

// persistenceFailure turns a state-store error into the cycle outcome.
// Terminal-state refusals mean another worker finished the document first.
func (uc *ProcessDocumentUseCase) persistenceFailure(operation, documentID string, err error) (domain.CycleOutcome, error) {
	if domain.IsKind(err, domain.ErrTerminalState) {
		slog.Info("task_skipped_terminal", "document_id", documentID, "operation", operation)
		return domain.CycleSkipped, nil
	}
	return domain.CycleRedelivered, domain.WrapError(domain.ErrTemporary, operation, err)
}

type noopObserver struct{}

func (noopObserver) CycleStarted()                                    {}
func (noopObserver) CycleFinished(domain.CycleOutcome, time.Duration) {}
func (noopObserver) DocumentFailed(domain.FailureReason)              {}
