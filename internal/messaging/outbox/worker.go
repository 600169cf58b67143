package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"arenadesk/internal/messaging/metrics"
)

const (
	defaultPollInterval = time.Second
	defaultBatchSize    = 100
)

// Worker drains the outbox on an interval. Entries are only marked
// published after the broker acknowledged them, so a crash between produce
// and mark can at worst replay an event, never lose one.
type Worker struct {
	store    Store
	producer Producer
	interval time.Duration
	batch    int
	log      *slog.Logger
	metrics  *metrics.Metrics
}

// WorkerOption customizes a Worker.
type WorkerOption func(*Worker)

// WithPollInterval overrides how often the outbox is drained.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithBatchSize overrides how many entries one drain picks up.
func WithBatchSize(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.batch = n
		}
	}
}

// WithMetrics attaches messaging metrics.
func WithMetrics(m *metrics.Metrics) WorkerOption {
	return func(w *Worker) { w.metrics = m }
}

// NewWorker builds an outbox worker.
func NewWorker(store Store, producer Producer, log *slog.Logger, opts ...WorkerOption) *Worker {
	w := &Worker{
		store:    store,
		producer: producer,
		interval: defaultPollInterval,
		batch:    defaultBatchSize,
		log:      log,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run drains the outbox until ctx is cancelled. Broker errors are logged
// and retried on the next tick rather than crashing the worker.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drainOnce(ctx); err != nil {
				w.log.Warn("outbox drain failed", slog.Any("err", err))
			}
		}
	}
}

// drainOnce publishes one batch. Entries that fail stay unpublished and are
// picked up again on the next drain.
func (w *Worker) drainOnce(ctx context.Context) error {
	entries, err := w.store.NextBatch(ctx, w.batch)
	if err != nil {
		return fmt.Errorf("fetch outbox batch: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	published := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		key := strconv.FormatInt(e.MessageID, 10)
		if err := w.producer.Produce(ctx, key, e.Payload); err != nil {
			w.log.Warn("outbox publish failed, will retry",
				slog.String("entry_id", e.ID.String()),
				slog.Int64("message_id", e.MessageID),
				slog.Any("err", err))
			break
		}
		published = append(published, e.ID)
	}
	if len(published) == 0 {
		return nil
	}

	if err := w.store.MarkPublished(ctx, published); err != nil {
		return fmt.Errorf("mark %d entries published: %w", len(published), err)
	}
	w.metrics.AddOutboxPublished(len(published))
	return nil
}
