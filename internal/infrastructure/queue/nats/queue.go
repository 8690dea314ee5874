// Package nats carries document processing tasks over a JetStream work
// queue. Messages hold the document identifier only; acknowledgement is
// explicit and happens after the handler returns, so a worker crash mid-task
// redelivers instead of losing the document.
package nats

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/core/domain"
	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/core/ports"
	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/infrastructure/resilience"
	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/observability/metrics"
)

const (
	defaultStream      = "DOCUMENTS"
	defaultDurable     = "document-workers"
	defaultAckWait     = 10 * time.Minute
	defaultMaxAttempts = 3
	defaultRetryBase   = 60 * time.Second
	defaultRetryMax    = 10 * time.Minute
	defaultConcurrency = 4
	fetchWait          = 5 * time.Second
)

type Queue struct {
	conn     *nats.Conn
	js       nats.JetStreamContext
	subject  string
	stream   string
	durable  string
	executor *resilience.Executor
	metrics  *metrics.WorkerMetrics
	service  string

	maxAttempts int
	ackWait     time.Duration
	retryBase   time.Duration
	retryMax    time.Duration
	taskTimeout time.Duration
	concurrency int
}

var _ ports.TaskQueue = (*Queue)(nil)

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor

	// Stream and Durable default to DOCUMENTS / document-workers.
	Stream  string
	Durable string

	// MaxAttempts is the task budget surfaced to handlers. The consumer
	// allows one delivery beyond it so a crash during the final attempt
	// still gets a delivery that can record exhaustion.
	MaxAttempts int
	// AckWait is the hard per-delivery timeout: a worker that neither acks
	// nor naks within it loses the message to redelivery.
	AckWait time.Duration
	// RetryBaseDelay seeds the redelivery ladder; attempt n waits
	// base×2^(n-1) capped at RetryMaxDelay.
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	// TaskTimeout bounds the handler context. Zero disables the bound and
	// leaves only AckWait as the stop.
	TaskTimeout time.Duration
	// Concurrency caps in-flight handlers per consumer instance.
	Concurrency int

	Metrics *metrics.WorkerMetrics
	Service string
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("benefits-navigator"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("nats reconnected: %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	q := &Queue{
		conn:        conn,
		js:          js,
		subject:     subject,
		stream:      valueOrDefault(options.Stream, defaultStream),
		durable:     valueOrDefault(options.Durable, defaultDurable),
		executor:    options.ResilienceExecutor,
		metrics:     options.Metrics,
		service:     options.Service,
		maxAttempts: intOrDefault(options.MaxAttempts, defaultMaxAttempts),
		ackWait:     durationOrDefault(options.AckWait, defaultAckWait),
		retryBase:   durationOrDefault(options.RetryBaseDelay, defaultRetryBase),
		retryMax:    durationOrDefault(options.RetryMaxDelay, defaultRetryMax),
		taskTimeout: options.TaskTimeout,
		concurrency: intOrDefault(options.Concurrency, defaultConcurrency),
	}

	if err := q.ensureStream(); err != nil {
		conn.Close()
		return nil, err
	}
	return q, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// ensureStream creates the task stream on first boot. Both the API and the
// worker call this, so creation races resolve to the existing stream.
func (q *Queue) ensureStream() error {
	if _, err := q.js.StreamInfo(q.stream); err == nil {
		return nil
	} else if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("jetstream stream info: %w", err)
	}

	_, err := q.js.AddStream(&nats.StreamConfig{
		Name:       q.stream,
		Subjects:   []string{q.subject},
		Retention:  nats.LimitsPolicy,
		Storage:    nats.FileStorage,
		MaxAge:     7 * 24 * time.Hour,
		Duplicates: 2 * time.Minute,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("jetstream add stream: %w", err)
	}
	return nil
}

// PublishDocumentTask enqueues one processing task. The message id pins the
// document id, so a publish retried after a lost server ack deduplicates
// inside the stream's duplicate window.
func (q *Queue) PublishDocumentTask(ctx context.Context, documentID string) error {
	call := func(callCtx context.Context) error {
		msg := nats.NewMsg(q.subject)
		msg.Data = []byte(documentID)
		if _, err := q.js.PublishMsg(msg, nats.Context(callCtx), nats.MsgId(documentID)); err != nil {
			return fmt.Errorf("jetstream publish: %w", err)
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded("nats publish", err)
	}
	return nil
}

// ConsumeDocumentTasks pulls tasks until ctx is done, running up to the
// configured concurrency of handlers at once. It returns after in-flight
// handlers finish and the subscription drains.
func (q *Queue) ConsumeDocumentTasks(ctx context.Context, handler ports.TaskHandler) error {
	sub, err := q.js.PullSubscribe(
		q.subject,
		q.durable,
		nats.AckExplicit(),
		nats.AckWait(q.ackWait),
		nats.MaxDeliver(q.maxAttempts+1),
		nats.BindStream(q.stream),
	)
	if err != nil {
		return fmt.Errorf("jetstream subscribe: %w", err)
	}

	sem := make(chan struct{}, q.concurrency)
	var wg sync.WaitGroup

	for ctx.Err() == nil {
		fetchCtx, cancel := context.WithTimeout(ctx, fetchWait)
		msgs, err := sub.Fetch(q.concurrency, nats.Context(fetchCtx))
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, nats.ErrTimeout) {
				continue
			}
			slog.Warn("task_fetch_failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		for _, msg := range msgs {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				// Shutdown between fetch and dispatch; leave the message
				// unacked for redelivery after AckWait.
				break
			}
			wg.Add(1)
			go func(m *nats.Msg) {
				defer wg.Done()
				defer func() { <-sem }()
				q.dispatch(ctx, m, handler)
			}(msg)
		}
	}

	wg.Wait()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (q *Queue) dispatch(ctx context.Context, msg *nats.Msg, handler ports.TaskHandler) {
	documentID := string(msg.Data)

	delivery := domain.Delivery{Attempt: 1, MaxAttempts: q.maxAttempts}
	if meta, err := msg.Metadata(); err == nil {
		delivery.Attempt = int(meta.NumDelivered)
		if q.metrics != nil {
			q.metrics.ObserveQueueLag(q.service, time.Since(meta.Timestamp))
		}
	}

	handlerCtx := ctx
	cancel := context.CancelFunc(func() {})
	if q.taskTimeout > 0 {
		handlerCtx, cancel = context.WithTimeout(ctx, q.taskTimeout)
	}
	defer cancel()

	err := handler(handlerCtx, documentID, delivery)

	ack, delay := decideAck(err, delivery, q.retryBase, q.retryMax)
	if !ack {
		slog.Warn("task_redelivery_scheduled",
			"document_id", documentID,
			"attempt", delivery.Attempt,
			"max_attempts", delivery.MaxAttempts,
			"delay_s", delay.Seconds(),
			"error", err,
		)
		if nakErr := msg.NakWithDelay(delay); nakErr != nil {
			slog.Error("task_nak_failed", "document_id", documentID, "error", nakErr)
		}
		return
	}

	if err != nil {
		slog.Error("task_dropped",
			"document_id", documentID,
			"attempt", delivery.Attempt,
			"error", err,
		)
	}
	if ackErr := msg.Ack(); ackErr != nil {
		slog.Error("task_ack_failed", "document_id", documentID, "error", ackErr)
	}
}

// decideAck maps a handler outcome onto the queue acknowledgement. Only
// temporary failures within the attempt budget redeliver; the handler
// persists terminal outcomes itself before returning nil or a permanent
// error.
func decideAck(err error, delivery domain.Delivery, base, max time.Duration) (ack bool, delay time.Duration) {
	if err == nil || !domain.IsKind(err, domain.ErrTemporary) {
		return true, 0
	}
	if delivery.Final() {
		return true, 0
	}
	return false, resilience.Backoff(base, max, 2.0, delivery.Attempt)
}

func valueOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func intOrDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func durationOrDefault(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
