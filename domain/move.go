package domain

import (
	"errors"
	"sort"
)

// ErrTaskNotFound is returned when the moved task is absent from the supplied
// rows, which means the caller loaded a stale snapshot.
var ErrTaskNotFound = errors.New("task not found in source column")

// ErrColumnNotFound is returned when the reordered column is absent from the
// supplied column list.
var ErrColumnNotFound = errors.New("column not found in project")

// MoveRequest describes one drag-and-drop placement of a task. Source and
// target may name the same column.
type MoveRequest struct {
	TaskID         string `json:"taskId"`
	SourceColumnID string `json:"sourceColumnId"`
	TargetColumnID string `json:"targetColumnId"`
	ProjectID      string `json:"projectId"`
	NewPosition    int    `json:"newPosition"`
}

// ColumnReorderRequest describes one drag-and-drop placement of a column
// within its project.
type ColumnReorderRequest struct {
	ColumnID    string `json:"projectColumnId"`
	ProjectID   string `json:"projectId"`
	NewPosition int    `json:"newPosition"`
}

// PositionUpdate is one row-level change produced by planning a move.
// NewColumnID is empty when the task stays in its current column.
type PositionUpdate struct {
	TaskID      string
	NewPosition int
	NewColumnID string
}

// ColumnPositionUpdate is one column-level change produced by planning a
// column reorder.
type ColumnPositionUpdate struct {
	ColumnID    string
	NewPosition int
}

// PlanTaskMove computes the minimal set of position updates needed to realize
// req. tasks must contain every task currently in the source and target
// columns; rows from other columns are ignored. The input is never mutated.
//
// Dropping a task back onto its own slot yields an empty plan.
func PlanTaskMove(tasks []Task, req MoveRequest) ([]PositionUpdate, error) {
	source := columnTasks(tasks, req.SourceColumnID)
	moved := -1
	for i, t := range source {
		if t.ID == req.TaskID {
			moved = i
			break
		}
	}
	if moved == -1 {
		return nil, ErrTaskNotFound
	}

	if req.SourceColumnID == req.TargetColumnID {
		return planSameColumn(source, moved, req.NewPosition), nil
	}
	return planCrossColumn(source, columnTasks(tasks, req.TargetColumnID), moved, req), nil
}

func planSameColumn(column []Task, moved, index int) []PositionUpdate {
	reordered := spliceTask(column, moved, index)
	var updates []PositionUpdate
	for pos, t := range reordered {
		if t.Position != pos {
			updates = append(updates, PositionUpdate{TaskID: t.ID, NewPosition: pos})
		}
	}
	return updates
}

func planCrossColumn(source, target []Task, moved int, req MoveRequest) []PositionUpdate {
	task := source[moved]
	remaining := make([]Task, 0, len(source)-1)
	remaining = append(remaining, source[:moved]...)
	remaining = append(remaining, source[moved+1:]...)

	var updates []PositionUpdate
	for pos, t := range remaining {
		if t.Position != pos {
			updates = append(updates, PositionUpdate{TaskID: t.ID, NewPosition: pos})
		}
	}

	index := clamp(req.NewPosition, len(target))
	inserted := make([]Task, 0, len(target)+1)
	inserted = append(inserted, target[:index]...)
	inserted = append(inserted, task)
	inserted = append(inserted, target[index:]...)
	for pos, t := range inserted {
		if t.ID == task.ID {
			// The moved row always changes: it gains a new column even when
			// its numeric position happens to match.
			updates = append(updates, PositionUpdate{TaskID: t.ID, NewPosition: pos, NewColumnID: req.TargetColumnID})
			continue
		}
		if t.Position != pos {
			updates = append(updates, PositionUpdate{TaskID: t.ID, NewPosition: pos})
		}
	}
	return updates
}

// PlanColumnReorder computes the column position updates needed to place
// columnID at newPosition within its project. columns must contain every
// column of the project. The input is never mutated.
func PlanColumnReorder(columns []Column, columnID string, newPosition int) ([]ColumnPositionUpdate, error) {
	ordered := make([]Column, len(columns))
	copy(ordered, columns)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

	moved := -1
	for i, col := range ordered {
		if col.ID == columnID {
			moved = i
			break
		}
	}
	if moved == -1 {
		return nil, ErrColumnNotFound
	}

	index := clamp(newPosition, len(ordered)-1)
	col := ordered[moved]
	reordered := make([]Column, 0, len(ordered))
	reordered = append(reordered, ordered[:moved]...)
	reordered = append(reordered, ordered[moved+1:]...)
	reordered = append(reordered[:index:index], append([]Column{col}, reordered[index:]...)...)

	var updates []ColumnPositionUpdate
	for pos, c := range reordered {
		if c.Position != pos {
			updates = append(updates, ColumnPositionUpdate{ColumnID: c.ID, NewPosition: pos})
		}
	}
	return updates, nil
}

// columnTasks returns the tasks of one column sorted by position.
func columnTasks(tasks []Task, columnID string) []Task {
	var out []Task
	for _, t := range tasks {
		if t.ColumnID == columnID {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// spliceTask moves the element at moved to index, clamping index to the valid
// range, and returns a fresh slice.
func spliceTask(column []Task, moved, index int) []Task {
	index = clamp(index, len(column)-1)
	task := column[moved]
	out := make([]Task, 0, len(column))
	out = append(out, column[:moved]...)
	out = append(out, column[moved+1:]...)
	out = append(out[:index:index], append([]Task{task}, out[index:]...)...)
	return out
}

func clamp(index, max int) int {
	if index < 0 {
		return 0
	}
	if index > max {
		return max
	}
	return index
}
