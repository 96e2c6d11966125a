package client

import (
	"context"
	"fmt"

	"kanban-api/domain"
)

// DragState tracks one drag gesture through its lifecycle. Confirmed and
// RolledBack are terminal for the gesture; the next Begin starts a new one.
type DragState int

// Drag gesture states.
const (
	StateIdle DragState = iota
	StateDragging
	StatePendingConfirm
	StateConfirmed
	StateRolledBack
)

func (s DragState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDragging:
		return "dragging"
	case StatePendingConfirm:
		return "pendingConfirm"
	case StateConfirmed:
		return "confirmed"
	case StateRolledBack:
		return "rolledBack"
	default:
		return fmt.Sprintf("DragState(%d)", int(s))
	}
}

// Mover submits committed placements to the server. *API satisfies it; tests
// substitute fakes.
type Mover interface {
	MoveTask(ctx context.Context, req domain.MoveRequest) error
	ReorderColumns(ctx context.Context, req domain.ColumnReorderRequest) error
}

// Notifier receives user-visible failure messages. A nil notifier drops them.
type Notifier func(message string)

type dragKind int

const (
	dragNone dragKind = iota
	dragTask
	dragColumn
)

// DragSession drives one board's drag gestures. Hover ticks repaint the
// store's preview without touching the network; Drop submits the final
// placement and settles the preview either way.
type DragSession struct {
	store  *BoardStore
	mover  Mover
	notify Notifier

	state DragState
	kind  dragKind

	taskID         string
	sourceColumnID string
	columnID       string

	targetColumnID string
	targetIndex    int
	hovered        bool
}

// NewDragSession wires a session to its store and server transport.
func NewDragSession(store *BoardStore, mover Mover, notify Notifier) *DragSession {
	return &DragSession{store: store, mover: mover, notify: notify, state: StateIdle}
}

// State returns the current gesture state.
func (d *DragSession) State() DragState {
	return d.state
}

func (d *DragSession) canBegin() bool {
	return d.state == StateIdle || d.state == StateConfirmed || d.state == StateRolledBack
}

// BeginTask starts dragging a task. The task must exist in the confirmed
// snapshot.
func (d *DragSession) BeginTask(taskID string) error {
	if !d.canBegin() {
		return fmt.Errorf("cannot start a drag while %s", d.state)
	}
	column, ok := d.store.taskColumn(taskID)
	if !ok {
		return fmt.Errorf("unknown task %s", taskID)
	}
	d.state = StateDragging
	d.kind = dragTask
	d.taskID = taskID
	d.sourceColumnID = column
	d.hovered = false
	return nil
}

// BeginColumn starts dragging a column. The column must exist in the
// confirmed snapshot.
func (d *DragSession) BeginColumn(columnID string) error {
	if !d.canBegin() {
		return fmt.Errorf("cannot start a drag while %s", d.state)
	}
	if !d.store.hasColumn(columnID) {
		return fmt.Errorf("unknown column %s", columnID)
	}
	d.state = StateDragging
	d.kind = dragColumn
	d.columnID = columnID
	d.hovered = false
	return nil
}

// Hover repaints the preview for the pointer's current target. Called on
// every drag-over tick; never touches the network.
func (d *DragSession) Hover(targetColumnID string, index int) error {
	if d.state != StateDragging {
		return fmt.Errorf("hover outside a drag (state %s)", d.state)
	}
	d.targetColumnID = targetColumnID
	d.targetIndex = index
	d.hovered = true
	switch d.kind {
	case dragTask:
		return d.store.PreviewTaskMove(domain.MoveRequest{
			TaskID:         d.taskID,
			SourceColumnID: d.sourceColumnID,
			TargetColumnID: targetColumnID,
			ProjectID:      d.store.projectID,
			NewPosition:    index,
		})
	case dragColumn:
		return d.store.PreviewColumnReorder(d.columnID, index)
	default:
		return fmt.Errorf("hover without an active drag target")
	}
}

// Drop settles the gesture at the last hovered placement. A placement equal
// to the confirmed one resolves locally with no server call. Otherwise the
// session submits the move, keeping the optimistic preview on screen while
// the call is in flight, and commits or rolls back on the response.
func (d *DragSession) Drop(ctx context.Context) error {
	if d.state != StateDragging {
		return fmt.Errorf("drop outside a drag (state %s)", d.state)
	}
	if !d.hovered {
		d.state = StateIdle
		return nil
	}

	switch d.kind {
	case dragTask:
		req := domain.MoveRequest{
			TaskID:         d.taskID,
			SourceColumnID: d.sourceColumnID,
			TargetColumnID: d.targetColumnID,
			ProjectID:      d.store.projectID,
			NewPosition:    d.targetIndex,
		}
		updates, err := domain.PlanTaskMove(d.store.confirmed.Tasks, req)
		if err != nil {
			d.store.Rollback()
			d.state = StateRolledBack
			return err
		}
		if len(updates) == 0 {
			d.store.Rollback()
			d.state = StateIdle
			return nil
		}
		d.state = StatePendingConfirm
		if err := d.mover.MoveTask(ctx, req); err != nil {
			d.store.Rollback()
			d.state = StateRolledBack
			if d.notify != nil {
				d.notify(fmt.Sprintf("move failed: %v", err))
			}
			return err
		}
		d.store.Commit()
		d.state = StateConfirmed
		return nil
	case dragColumn:
		updates, err := domain.PlanColumnReorder(d.store.confirmed.Columns, d.columnID, d.targetIndex)
		if err != nil {
			d.store.Rollback()
			d.state = StateRolledBack
			return err
		}
		if len(updates) == 0 {
			d.store.Rollback()
			d.state = StateIdle
			return nil
		}
		d.state = StatePendingConfirm
		req := domain.ColumnReorderRequest{
			ColumnID:    d.columnID,
			ProjectID:   d.store.projectID,
			NewPosition: d.targetIndex,
		}
		if err := d.mover.ReorderColumns(ctx, req); err != nil {
			d.store.Rollback()
			d.state = StateRolledBack
			if d.notify != nil {
				d.notify(fmt.Sprintf("column reorder failed: %v", err))
			}
			return err
		}
		d.store.Commit()
		d.state = StateConfirmed
		return nil
	default:
		d.state = StateIdle
		return fmt.Errorf("drop without an active drag target")
	}
}

// Cancel abandons the gesture and restores the confirmed snapshot.
func (d *DragSession) Cancel() {
	if d.state != StateDragging {
		return
	}
	d.store.Rollback()
	d.state = StateIdle
}
