package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/matheus3301/zapbox/internal/bus"
	"github.com/matheus3301/zapbox/internal/config"
	"github.com/matheus3301/zapbox/internal/store"
)

type mockDispatcher struct {
	err   error
	acks  map[string]Ack
	calls []string
}

func (m *mockDispatcher) Dispatch(_ context.Context, op store.QueueEntry) (Ack, error) {
	m.calls = append(m.calls, op.OpID)
	if m.err != nil {
		return Ack{}, m.err
	}
	return m.acks[op.OpID], nil
}

func testStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Init(zap.NewNop()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func enqueueMessageCreate(t *testing.T, db *store.DB, opID, tempID string) {
	t.Helper()
	if err := db.InsertOptimistic(&store.Message{Tenant: "t1", ChatID: "chat1", TempID: tempID, Body: "hi", MessageType: "text"}); err != nil {
		t.Fatal(err)
	}
	payload, _ := json.Marshal(map[string]string{"temp_id": tempID, "chat_id": "chat1", "body": "hi"})
	if err := db.Enqueue(&store.QueueEntry{
		OpID: opID, Tenant: "t1", Entity: "message", Operation: "create",
		Payload: payload, MaxRetries: 2,
	}); err != nil {
		t.Fatal(err)
	}
}

func TestWorkerDispatchResolvesOptimisticRow(t *testing.T) {
	db := testStore(t)
	enqueueMessageCreate(t, db, "op1", "tmp1")

	d := &mockDispatcher{acks: map[string]Ack{"op1": {ServerID: "srv1", WireID: "wire1"}}}
	b := bus.New()
	events, cancel := b.Subscribe("message.", 8)
	defer cancel()

	w := NewWorker(db, d, b, config.Default(), zap.NewNop())
	w.ProcessPending(context.Background())

	if len(d.calls) != 1 {
		t.Fatalf("dispatch calls = %d, want 1", len(d.calls))
	}
	op, err := db.GetOp("op1")
	if err != nil {
		t.Fatal(err)
	}
	if op.Status != store.QueueCompleted {
		t.Errorf("op status = %q, want completed", op.Status)
	}

	m, err := db.GetMessageByServerID("t1", "chat1", "srv1")
	if err != nil {
		t.Fatal(err)
	}
	if m == nil || m.Status != store.MessageSent || m.WireID != "wire1" {
		t.Fatalf("resolved message = %+v", m)
	}

	select {
	case evt := <-events:
		if evt.Kind != "message.send_ack" {
			t.Errorf("event = %q, want message.send_ack", evt.Kind)
		}
	default:
		t.Error("no send_ack event published")
	}
}

func TestWorkerFailureRetriesBeforeFlippingMessage(t *testing.T) {
	db := testStore(t)
	enqueueMessageCreate(t, db, "op1", "tmp1") // max_retries = 2

	d := &mockDispatcher{err: errors.New("connection reset")}
	w := NewWorker(db, d, bus.New(), config.Default(), zap.NewNop())

	// First failure: op retries, message still pending.
	w.ProcessPending(context.Background())
	m, _ := db.GetMessageByTempID("t1", "tmp1")
	if m.Status != store.MessagePending {
		t.Fatalf("message flipped to %q after first failure", m.Status)
	}

	// Second failure exhausts the op; the message goes failed.
	w.ProcessPending(context.Background())
	op, _ := db.GetOp("op1")
	if op.Status != store.QueueFailed {
		t.Fatalf("op status = %q, want terminal failed", op.Status)
	}
	m, _ = db.GetMessageByTempID("t1", "tmp1")
	if m.Status != store.MessageFailed || m.ErrorMessage != "connection reset" {
		t.Errorf("message = %+v, want failed with dispatch error", m)
	}
}

func TestWorkerNilDispatcherIsMaintenanceOnly(t *testing.T) {
	db := testStore(t)
	enqueueMessageCreate(t, db, "op1", "tmp1")

	w := NewWorker(db, nil, bus.New(), config.Default(), zap.NewNop())
	w.ProcessPending(context.Background())

	pending, err := db.PendingOps(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Errorf("pending = %d, want 1 (queue untouched without a dispatcher)", len(pending))
	}

	// Cleanup still works.
	if err := db.MarkOpCompleted("op1"); err != nil {
		t.Fatal(err)
	}
	w.runCleanup()
	if e, _ := db.GetOp("op1"); e != nil {
		t.Error("completed op not removed by cleanup")
	}
}

func TestWorkerSkipsNonMessageOps(t *testing.T) {
	db := testStore(t)
	if err := db.Enqueue(&store.QueueEntry{
		OpID: "op9", Tenant: "t1", Entity: "setting", Operation: "update",
		Payload: []byte(`{"key":"theme","value":"dark"}`),
	}); err != nil {
		t.Fatal(err)
	}

	d := &mockDispatcher{acks: map[string]Ack{"op9": {}}}
	w := NewWorker(db, d, bus.New(), config.Default(), zap.NewNop())
	w.ProcessPending(context.Background())

	op, err := db.GetOp("op9")
	if err != nil {
		t.Fatal(err)
	}
	if op.Status != store.QueueCompleted {
		t.Errorf("op status = %q, want completed", op.Status)
	}
}
