// Package bootstrap wires the object graph shared by the api and worker
// binaries. Both build the same graph; each main uses its slice of it.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/config"
	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/core/ports"
	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/core/schema"
	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/core/usecase"
	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/infrastructure/extractor"
	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/infrastructure/gateway"
	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/infrastructure/llm/ollama"
	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/infrastructure/queue/nats"
	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/infrastructure/repository/postgres"
	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/infrastructure/resilience"
	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/infrastructure/storage/localfs"
	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Repo    ports.DocumentRepository
	Queue   ports.TaskQueue
	Ingest  ports.DocumentIngestor
	Process ports.DocumentProcessor

	WorkerMetrics  *metrics.WorkerMetrics
	GatewayMetrics *metrics.GatewayMetrics

	closeFn func()
}

// New builds the application graph. service labels every metric series and
// log line emitted by this process.
func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	workerMetrics := metrics.NewWorkerMetrics(service)
	gatewayMetrics := metrics.NewGatewayMetrics(service)

	// Broker operations retry fast with the library defaults; provider
	// calls retry on the configured gateway schedule.
	queueExecutor := resilience.NewExecutor(resilience.DefaultConfig())
	gatewayExecutor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    cfg.GatewayMaxAttempts,
		RetryInitialBackoff: time.Duration(cfg.GatewayBackoffInitialMS) * time.Millisecond,
		RetryMaxBackoff:     time.Duration(cfg.GatewayBackoffMaxMS) * time.Millisecond,
		RetryMultiplier:     2.0,
		BreakerEnabled:      true,
	})

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: queueExecutor,
		Stream:             cfg.NATSStream,
		Durable:            cfg.NATSDurable,
		MaxAttempts:        cfg.TaskMaxAttempts,
		AckWait:            time.Duration(cfg.TaskHardTimeoutSeconds) * time.Second,
		RetryBaseDelay:     time.Duration(cfg.TaskRetryBaseSeconds) * time.Second,
		RetryMaxDelay:      time.Duration(cfg.TaskRetryMaxSeconds) * time.Second,
		TaskTimeout:        time.Duration(cfg.TaskSoftTimeoutSeconds) * time.Second,
		Concurrency:        cfg.WorkerConcurrency,
		Metrics:            workerMetrics,
		Service:            service,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init task queue: %w", err)
	}

	validator, err := schema.NewRegistry()
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("load analysis schemas: %w", err)
	}

	provider := ollama.New(cfg.OllamaURL, cfg.OllamaModel)
	gw := gateway.New(provider, validator, gatewayExecutor, gatewayMetrics, gateway.Config{
		Service:             service,
		DefaultTimeout:      time.Duration(cfg.GatewayTimeoutSeconds) * time.Second,
		RateRPS:             cfg.GatewayRateRPS,
		RateBurst:           cfg.GatewayRateBurst,
		PromptCostPer1K:     cfg.CostPromptPer1K,
		CompletionCostPer1K: cfg.CostCompletionPer1K,
	})

	extractorSvc := extractor.NewService(storage)
	observer := metrics.NewWorkerObserver(workerMetrics, service)

	return &App{
		Config: cfg,

		Repo:    repo,
		Queue:   queue,
		Ingest:  usecase.NewIngestDocumentUseCase(repo, storage, queue),
		Process: usecase.NewProcessDocumentUseCase(repo, extractorSvc, gw, observer),

		WorkerMetrics:  workerMetrics,
		GatewayMetrics: gatewayMetrics,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
