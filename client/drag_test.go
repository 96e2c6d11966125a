package client

import (
	"context"
	"errors"
	"testing"

	"kanban-api/domain"
)

type fakeMover struct {
	moveErr error

	moves    []domain.MoveRequest
	reorders []domain.ColumnReorderRequest

	observedState DragState
	session       *DragSession
}

func (f *fakeMover) MoveTask(ctx context.Context, req domain.MoveRequest) error {
	f.moves = append(f.moves, req)
	if f.session != nil {
		f.observedState = f.session.State()
	}
	return f.moveErr
}

func (f *fakeMover) ReorderColumns(ctx context.Context, req domain.ColumnReorderRequest) error {
	f.reorders = append(f.reorders, req)
	if f.session != nil {
		f.observedState = f.session.State()
	}
	return f.moveErr
}

func TestDragConfirmCycle(t *testing.T) {
	store := newTestStore(t, "alice")
	mover := &fakeMover{}
	session := NewDragSession(store, mover, nil)
	mover.session = session

	if err := session.BeginTask("c"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if session.State() != StateDragging {
		t.Fatalf("expected dragging, got %s", session.State())
	}
	if err := session.Hover("doing", 0); err != nil {
		t.Fatalf("hover: %v", err)
	}
	assertOrder(t, store.Snapshot(), "doing", "c", "d")

	if err := session.Drop(context.Background()); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if session.State() != StateConfirmed {
		t.Fatalf("expected confirmed, got %s", session.State())
	}
	if mover.observedState != StatePendingConfirm {
		t.Fatalf("move must be submitted from pendingConfirm, was %s", mover.observedState)
	}
	if len(mover.moves) != 1 || mover.moves[0].TaskID != "c" || mover.moves[0].NewPosition != 0 {
		t.Fatalf("unexpected submitted move: %#v", mover.moves)
	}
	assertOrder(t, store.Confirmed(), "doing", "c", "d")
	assertOrder(t, store.Confirmed(), "todo", "a", "b")
}

func TestDropAtConfirmedPositionSkipsNetwork(t *testing.T) {
	store := newTestStore(t, "alice")
	mover := &fakeMover{}
	session := NewDragSession(store, mover, nil)

	if err := session.BeginTask("b"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := session.Hover("todo", 1); err != nil {
		t.Fatalf("hover: %v", err)
	}
	if err := session.Drop(context.Background()); err != nil {
		t.Fatalf("drop: %v", err)
	}

	if len(mover.moves) != 0 {
		t.Fatalf("drop onto own slot must not call the server: %#v", mover.moves)
	}
	if session.State() != StateIdle {
		t.Fatalf("expected idle, got %s", session.State())
	}
	assertOrder(t, store.Snapshot(), "todo", "a", "b", "c")
}

func TestFailedMoveRollsBack(t *testing.T) {
	store := newTestStore(t, "alice")
	mover := &fakeMover{moveErr: errors.New("stale state")}
	var notified string
	session := NewDragSession(store, mover, func(msg string) { notified = msg })

	if err := session.BeginTask("a"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := session.Hover("done", 0); err != nil {
		t.Fatalf("hover: %v", err)
	}
	err := session.Drop(context.Background())
	if err == nil {
		t.Fatalf("expected drop to fail")
	}
	if session.State() != StateRolledBack {
		t.Fatalf("expected rolledBack, got %s", session.State())
	}
	if notified == "" {
		t.Fatalf("rollback must surface a notification")
	}
	assertOrder(t, store.Snapshot(), "todo", "a", "b", "c")
	assertOrder(t, store.Snapshot(), "done")
}

func TestDragAfterTerminalStateRestarts(t *testing.T) {
	store := newTestStore(t, "alice")
	mover := &fakeMover{moveErr: errors.New("down")}
	session := NewDragSession(store, mover, nil)

	if err := session.BeginTask("a"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := session.Hover("doing", 0); err != nil {
		t.Fatalf("hover: %v", err)
	}
	if session.Drop(context.Background()) == nil {
		t.Fatalf("expected failure")
	}

	mover.moveErr = nil
	if err := session.BeginTask("a"); err != nil {
		t.Fatalf("a terminal state must allow a new drag: %v", err)
	}
}

func TestHoverOutsideDragRejected(t *testing.T) {
	store := newTestStore(t, "alice")
	session := NewDragSession(store, &fakeMover{}, nil)

	if err := session.Hover("todo", 0); err == nil {
		t.Fatalf("hover must require an active drag")
	}
	if err := session.Drop(context.Background()); err == nil {
		t.Fatalf("drop must require an active drag")
	}
}

func TestBeginWhileDraggingRejected(t *testing.T) {
	store := newTestStore(t, "alice")
	session := NewDragSession(store, &fakeMover{}, nil)

	if err := session.BeginTask("a"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := session.BeginTask("b"); err == nil {
		t.Fatalf("a second drag must not start mid-gesture")
	}
}

func TestCancelRestoresPreview(t *testing.T) {
	store := newTestStore(t, "alice")
	session := NewDragSession(store, &fakeMover{}, nil)

	if err := session.BeginTask("c"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := session.Hover("doing", 0); err != nil {
		t.Fatalf("hover: %v", err)
	}
	session.Cancel()

	if session.State() != StateIdle {
		t.Fatalf("expected idle, got %s", session.State())
	}
	assertOrder(t, store.Snapshot(), "todo", "a", "b", "c")
}

func TestBeginRejectsUnknownTargets(t *testing.T) {
	store := newTestStore(t, "alice")
	session := NewDragSession(store, &fakeMover{}, nil)

	if err := session.BeginTask("ghost"); err == nil {
		t.Fatalf("dragging an unknown task must fail at begin")
	}
	if err := session.BeginColumn("ghost"); err == nil {
		t.Fatalf("dragging an unknown column must fail at begin")
	}
	if session.State() != StateIdle {
		t.Fatalf("rejected begin must leave the session idle, got %s", session.State())
	}
}

func TestColumnDragCycle(t *testing.T) {
	store := newTestStore(t, "alice")
	mover := &fakeMover{}
	session := NewDragSession(store, mover, nil)

	if err := session.BeginColumn("done"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := session.Hover("", 0); err != nil {
		t.Fatalf("hover: %v", err)
	}
	if err := session.Drop(context.Background()); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if session.State() != StateConfirmed {
		t.Fatalf("expected confirmed, got %s", session.State())
	}
	if len(mover.reorders) != 1 || mover.reorders[0].ColumnID != "done" {
		t.Fatalf("unexpected reorders: %#v", mover.reorders)
	}
	if store.Confirmed().Columns[0].ID != "done" {
		t.Fatalf("expected done first, got %#v", store.Confirmed().Columns)
	}
}

func TestColumnDropAtOwnSlotSkipsNetwork(t *testing.T) {
	store := newTestStore(t, "alice")
	mover := &fakeMover{}
	session := NewDragSession(store, mover, nil)

	if err := session.BeginColumn("doing"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := session.Hover("", 1); err != nil {
		t.Fatalf("hover: %v", err)
	}
	if err := session.Drop(context.Background()); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if len(mover.reorders) != 0 {
		t.Fatalf("unchanged column slot must not call the server")
	}
	if session.State() != StateIdle {
		t.Fatalf("expected idle, got %s", session.State())
	}
}
