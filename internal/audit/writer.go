package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/ledgergate/ledgergate/internal/observability"
)

// StorePort persists entries.
type StorePort interface {
	Insert(ctx context.Context, e Entry) error
}

// ReplayPort durably queues entries that keep failing, so they survive the
// process. Implemented by the asynq job client.
type ReplayPort interface {
	EnqueueReplay(ctx context.Context, e Entry) error
}

// Writer appends audit entries without ever failing the guarded operation.
// The happy path is a direct insert; failures land in a bounded in-memory
// retry queue drained by Run. A full queue drops its oldest entry with an
// alert, and entries that keep failing are handed to the durable replay
// queue.
type Writer struct {
	store         StorePort
	replay        ReplayPort
	logger        *slog.Logger
	metrics       *observability.Metrics
	queue         chan Entry
	retryInterval time.Duration
	now           func() time.Time
}

// NewWriter constructs a Writer. queueSize bounds the retry queue; replay
// may be nil when no durable queue is available.
func NewWriter(store StorePort, replay ReplayPort, logger *slog.Logger, metrics *observability.Metrics, queueSize int, retryInterval time.Duration) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if retryInterval <= 0 {
		retryInterval = 5 * time.Second
	}
	return &Writer{
		store:         store,
		replay:        replay,
		logger:        logger,
		metrics:       metrics,
		queue:         make(chan Entry, queueSize),
		retryInterval: retryInterval,
		now:           time.Now,
	}
}

// Record appends one entry. Errors are absorbed: the entry moves to the
// retry queue and the caller's operation proceeds.
func (w *Writer) Record(ctx context.Context, e Entry) {
	if w == nil {
		return
	}
	if e.At.IsZero() {
		e.At = w.now()
	}
	if err := w.store.Insert(ctx, e); err != nil {
		w.logger.Warn("audit insert failed, queueing for retry",
			slog.String("action", e.Action), slog.Any("error", err))
		w.metrics.AuditRetried()
		w.enqueue(e)
	}
}

// Decision records an authorization or workflow decision. Denials are
// recorded at decision time, so they are complete even when the caller
// later cancels.
func (w *Writer) Decision(ctx context.Context, actor, action, target, outcome string, meta map[string]any) {
	if w == nil {
		return
	}
	w.metrics.Decision(action, outcome)
	// The decision must outlive the request context.
	w.Record(context.WithoutCancel(ctx), Entry{
		Actor:   actor,
		Action:  action,
		Target:  target,
		Outcome: outcome,
		Meta:    meta,
	})
}

// Run drains the retry queue until ctx is cancelled. A final drain attempt
// runs on shutdown.
func (w *Writer) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.retryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.drain(context.WithoutCancel(ctx))
			return nil
		case <-ticker.C:
			w.drain(ctx)
			w.metrics.AuditQueueDepth(len(w.queue))
		}
	}
}

// QueueDepth reports the entries currently waiting for retry.
func (w *Writer) QueueDepth() int {
	return len(w.queue)
}

func (w *Writer) enqueue(e Entry) {
	for {
		select {
		case w.queue <- e:
			w.metrics.AuditQueueDepth(len(w.queue))
			return
		default:
		}
		// Queue full: drop the oldest entry with an alert and retry the
		// insert of the new one.
		select {
		case dropped := <-w.queue:
			w.logger.Error("audit retry queue full, dropping oldest entry",
				slog.String("action", dropped.Action),
				slog.String("target", dropped.Target),
				slog.Time("at", dropped.At))
			w.metrics.AuditDropped()
		default:
		}
	}
}

func (w *Writer) drain(ctx context.Context) {
	for {
		select {
		case e := <-w.queue:
			if err := w.store.Insert(ctx, e); err == nil {
				continue
			}
			if w.replay != nil {
				if rerr := w.replay.EnqueueReplay(ctx, e); rerr == nil {
					continue
				}
			}
			// Still failing: put it back and wait for the next tick.
			w.enqueue(e)
			return
		default:
			return
		}
	}
}
