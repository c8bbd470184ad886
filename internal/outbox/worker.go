// Package outbox drains the sync queue: queued outbound operations are handed
// to the host's transport through the Dispatcher interface, and message sends
// drive the optimistic row lifecycle to sent or failed.
package outbox

import (
	"context"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/matheus3301/zapbox/internal/bus"
	"github.com/matheus3301/zapbox/internal/config"
	"github.com/matheus3301/zapbox/internal/store"
)

// Ack is the server's acknowledgment of a dispatched operation.
type Ack struct {
	ServerID string
	WireID   string
}

// Dispatcher executes one queued operation against the remote server. It is
// implemented by the host application's transport layer.
type Dispatcher interface {
	Dispatch(ctx context.Context, op store.QueueEntry) (Ack, error)
}

// Worker polls the sync queue and dispatches pending operations. With a nil
// dispatcher it runs in maintenance-only mode: the queue is left untouched for
// a future host to drain, but cleanup still runs.
type Worker struct {
	db         *store.DB
	dispatcher Dispatcher
	bus        *bus.Bus
	cfg        *config.Config
	logger     *zap.Logger
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewWorker creates a worker. Call Start to begin processing.
func NewWorker(db *store.DB, dispatcher Dispatcher, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *Worker {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		db:         db,
		dispatcher: dispatcher,
		bus:        b,
		cfg:        cfg,
		logger:     logger,
	}
}

// Start begins the poll and cleanup loops.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.loop(ctx)
}

// Stop stops the loops and waits for the in-flight pass to finish.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
		<-w.done
	}
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.done)

	poll := time.NewTicker(w.cfg.Queue.PollInterval())
	defer poll.Stop()
	cleanup := time.NewTicker(w.cfg.Queue.CleanupInterval())
	defer cleanup.Stop()

	for {
		select {
		case <-poll.C:
			if w.dispatcher != nil {
				w.processPending(ctx)
			}
		case <-cleanup.C:
			w.runCleanup()
		case <-ctx.Done():
			return
		}
	}
}

// ProcessPending runs one dispatch pass. Exposed for hosts that want to drain
// the queue on demand (e.g. right after connectivity returns) instead of
// waiting for the next tick.
func (w *Worker) ProcessPending(ctx context.Context) {
	if w.dispatcher == nil {
		return
	}
	w.processPending(ctx)
}

func (w *Worker) processPending(ctx context.Context) {
	pending, err := w.db.PendingOps(50)
	if err != nil {
		w.logger.Error("queue read failed", zap.Error(err))
		return
	}

	for _, op := range pending {
		if ctx.Err() != nil {
			return
		}

		ack, err := w.dispatcher.Dispatch(ctx, op)
		if err != nil {
			w.handleFailure(op, err)
			continue
		}

		if err := w.db.MarkOpCompleted(op.OpID); err != nil {
			w.logger.Error("mark completed failed", zap.String("op", op.OpID), zap.Error(err))
		}
		if isMessageCreate(op) {
			w.resolveMessage(op, ack)
		}
		w.logger.Info("op dispatched",
			zap.String("op", op.OpID),
			zap.String("entity", op.Entity),
			zap.String("server_id", ack.ServerID))
	}
}

func (w *Worker) handleFailure(op store.QueueEntry, dispatchErr error) {
	w.logger.Warn("dispatch failed",
		zap.String("op", op.OpID),
		zap.Int("retry", op.RetryCount+1),
		zap.Error(dispatchErr))

	if err := w.db.MarkOpFailed(op.OpID, dispatchErr.Error()); err != nil {
		w.logger.Error("mark failed failed", zap.String("op", op.OpID), zap.Error(err))
		return
	}

	// The message bubble stays pending while the op retries; it flips to
	// failed only when the op is terminal, so the user's retry action maps
	// to a genuinely dead operation.
	if op.RetryCount+1 < op.MaxRetries || !isMessageCreate(op) {
		return
	}
	tempID := gjson.GetBytes(op.Payload, "temp_id").String()
	if tempID == "" {
		return
	}
	if err := w.db.FailOptimistic(op.Tenant, tempID, "send_failed", dispatchErr.Error()); err != nil {
		w.logger.Warn("optimistic fail skipped", zap.String("temp_id", tempID), zap.Error(err))
	}
	w.publish("message.send_failed", tempID)
}

func (w *Worker) resolveMessage(op store.QueueEntry, ack Ack) {
	tempID := gjson.GetBytes(op.Payload, "temp_id").String()
	if tempID == "" || ack.ServerID == "" {
		w.logger.Warn("ack missing identifiers", zap.String("op", op.OpID))
		return
	}
	if err := w.db.ResolveOptimistic(op.Tenant, tempID, ack.ServerID, ack.WireID); err != nil {
		w.logger.Error("optimistic resolve failed", zap.String("temp_id", tempID), zap.Error(err))
		return
	}
	w.publish("message.send_ack", tempID)
}

func (w *Worker) runCleanup() {
	removed, err := w.db.CleanupQueue(w.cfg.Queue.FailedRetention())
	if err != nil {
		w.logger.Error("queue cleanup failed", zap.Error(err))
		return
	}
	if removed > 0 {
		w.logger.Info("queue cleaned", zap.Int64("removed", removed))
	}
}

func (w *Worker) publish(kind string, payload any) {
	if w.bus != nil {
		w.bus.Publish(bus.NewEvent(kind, payload))
	}
}

func isMessageCreate(op store.QueueEntry) bool {
	return op.Entity == "message" && op.Operation == "create"
}
