// Package gateway is the single chokepoint between the application and the
// completion provider. Every call is sanitized exactly once, rate limited,
// bounded by a per-attempt timeout, retried on transient failures and
// accounted for tokens and cost before a typed Result is handed back.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/core/domain"
	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/core/ports"
	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/infrastructure/resilience"
	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/observability/metrics"
)

const (
	defaultTimeout = 60 * time.Second

	opComplete           = "complete"
	opCompleteStructured = "complete_structured"
)

type Config struct {
	// Service labels every metric series emitted by this gateway instance.
	Service string
	// DefaultTimeout bounds a single provider attempt when the request does
	// not carry its own. Zero means 60s.
	DefaultTimeout time.Duration
	// RateRPS throttles provider attempts across all callers. Zero disables
	// the limiter.
	RateRPS   float64
	RateBurst int
	// Cost per 1000 tokens, split by direction.
	PromptCostPer1K     float64
	CompletionCostPer1K float64
}

func (c Config) normalize() Config {
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = defaultTimeout
	}
	if c.RateBurst < 1 {
		c.RateBurst = 1
	}
	return c
}

type Gateway struct {
	provider  ports.CompletionProvider
	validator ports.AnalysisValidator
	executor  *resilience.Executor
	sanitizer *Sanitizer
	limiter   *rate.Limiter
	metrics   *metrics.GatewayMetrics
	cfg       Config
}

var _ ports.CompletionGateway = (*Gateway)(nil)

func New(
	provider ports.CompletionProvider,
	validator ports.AnalysisValidator,
	executor *resilience.Executor,
	gatewayMetrics *metrics.GatewayMetrics,
	cfg Config,
) *Gateway {
	cfg = cfg.normalize()

	var limiter *rate.Limiter
	if cfg.RateRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateRPS), cfg.RateBurst)
	}

	return &Gateway{
		provider:  provider,
		validator: validator,
		executor:  executor,
		sanitizer: NewSanitizer(),
		limiter:   limiter,
		metrics:   gatewayMetrics,
		cfg:       cfg,
	}
}

// Complete runs one free-text completion through the full call pipeline.
func (g *Gateway) Complete(ctx context.Context, req domain.CompletionRequest) domain.Result[domain.Completion] {
	op := req.Operation
	if op == "" {
		op = opComplete
	}

	start := time.Now()
	reply, gwErr := g.invoke(ctx, op, req)
	if gwErr != nil {
		g.recordCall(op, string(gwErr.Code), start)
		return domain.Failure[domain.Completion](gwErr.Code, gwErr.Message)
	}

	cost := g.cost(reply.Usage)
	g.recordUsage(op, reply.Usage, cost)
	g.recordCall(op, "success", start)
	return domain.Success(domain.Completion{Text: reply.Text}, reply.Usage, cost)
}

// CompleteStructured runs a completion and insists on a payload that parses
// as JSON and validates against the schema registered for kind. Tokens are
// billed even when the payload fails validation; the provider did the work.
func (g *Gateway) CompleteStructured(
	ctx context.Context,
	req domain.CompletionRequest,
	kind domain.AnalysisKind,
) domain.Result[domain.StructuredCompletion] {
	op := req.Operation
	if op == "" {
		op = opCompleteStructured
	}

	start := time.Now()
	reply, gwErr := g.invoke(ctx, op, req)
	if gwErr != nil {
		g.recordCall(op, string(gwErr.Code), start)
		return domain.Failure[domain.StructuredCompletion](gwErr.Code, gwErr.Message)
	}

	cost := g.cost(reply.Usage)
	g.recordUsage(op, reply.Usage, cost)

	payload, ok := ExtractJSONObject(reply.Text)
	if !ok {
		g.recordCall(op, string(domain.GatewayUnparseableOutput), start)
		slog.Warn("gateway_unparseable_output", "operation", op, "kind", kind, "output_length", len(reply.Text))
		return domain.Failure[domain.StructuredCompletion](domain.GatewayUnparseableOutput, "no JSON object found in provider output")
	}

	if err := g.validator.Validate(kind, payload); err != nil {
		g.recordCall(op, string(domain.GatewayInvalidSchema), start)
		slog.Warn("gateway_invalid_schema", "operation", op, "kind", kind, "error", err)
		return domain.Failure[domain.StructuredCompletion](domain.GatewayInvalidSchema, failureMessage(err))
	}

	g.recordCall(op, "success", start)
	return domain.Success(domain.StructuredCompletion{
		Kind:          kind,
		SchemaVersion: g.validator.Version(kind),
		Payload:       json.RawMessage(payload),
	}, reply.Usage, cost)
}

// invoke drives the retry loop for one request. Sanitization happens here,
// once, before the first attempt; retries reuse the sanitized prompt.
func (g *Gateway) invoke(ctx context.Context, op string, req domain.CompletionRequest) (domain.ProviderReply, *domain.GatewayError) {
	sanitized, hits := g.sanitizer.Clean(req.Prompt)
	if hits > 0 {
		slog.Warn("prompt_sanitized", "operation", op, "hits", hits)
		if g.metrics != nil {
			g.metrics.RecordSanitizerHits(g.cfg.Service, op, hits)
		}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = g.cfg.DefaultTimeout
	}

	var reply domain.ProviderReply
	err := g.executor.Execute(ctx, op, func(ctx context.Context) error {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if g.metrics != nil {
			g.metrics.RecordAttempt(g.cfg.Service, op)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		out, genErr := g.provider.Generate(attemptCtx, req.System, sanitized)
		if genErr != nil {
			if attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
				return &attemptTimeoutError{err: genErr}
			}
			return genErr
		}
		reply = out
		return nil
	}, classifyAttempt)
	if err != nil {
		code := failureCode(ctx, err)
		slog.Error("gateway_call_failed", "operation", op, "code", code, "error", err)
		return domain.ProviderReply{}, &domain.GatewayError{Code: code, Message: failureMessage(err)}
	}

	return reply, nil
}

func (g *Gateway) cost(usage domain.Usage) float64 {
	return float64(usage.PromptTokens)/1000.0*g.cfg.PromptCostPer1K +
		float64(usage.CompletionTokens)/1000.0*g.cfg.CompletionCostPer1K
}

func (g *Gateway) recordCall(op, outcome string, start time.Time) {
	if g.metrics == nil {
		return
	}
	g.metrics.RecordCall(g.cfg.Service, op, outcome, time.Since(start))
}

func (g *Gateway) recordUsage(op string, usage domain.Usage, cost float64) {
	if g.metrics == nil {
		return
	}
	g.metrics.RecordUsage(g.cfg.Service, op, usage.PromptTokens, usage.CompletionTokens, cost)
}

// attemptTimeoutError marks a provider failure caused by the per-attempt
// deadline rather than by the caller's context. The distinction decides both
// retryability and the failure code surfaced to the caller.
type attemptTimeoutError struct {
	err error
}

func (e *attemptTimeoutError) Error() string {
	return "attempt timeout: " + e.err.Error()
}

func (e *attemptTimeoutError) Unwrap() error {
	return e.err
}

// classifyAttempt decides retry behavior per failed attempt. Attempt
// timeouts and provider errors marked temporary retry; caller cancellation
// and permanent provider errors do not.
func classifyAttempt(err error) resilience.ErrorClassification {
	var timeoutErr *attemptTimeoutError
	if errors.As(err, &timeoutErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

// failureCode maps the final error of the retry loop onto the result code
// the caller branches on.
func failureCode(ctx context.Context, err error) domain.GatewayErrorCode {
	var timeoutErr *attemptTimeoutError
	switch {
	case errors.As(err, &timeoutErr):
		return domain.GatewayTimeout
	case ctx.Err() != nil:
		return domain.GatewayCanceled
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.GatewayCanceled
	default:
		return domain.GatewayProviderError
	}
}

// failureMessage flattens an error chain into a single line bounded for
// storage in results and logs.
func failureMessage(err error) string {
	msg := strings.Join(strings.Fields(err.Error()), " ")
	if len(msg) > 500 {
		msg = msg[:500]
	}
	return msg
}
