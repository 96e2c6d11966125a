// Package client holds the browser-session side of the board: a mirror of the
// column and task lists that stays eventually consistent with the server, the
// drag gesture state machine that drives optimistic previews, and the stream
// reader that feeds peer updates back in.
package client

import (
	"sort"

	log "github.com/sirupsen/logrus"

	"kanban-api/domain"
)

// BoardStore mirrors one project's columns and tasks. It keeps two snapshots:
// the last server-confirmed state and a preview the drag session mutates
// freely. A session has a single writer, so no locking is needed.
type BoardStore struct {
	actorID   string
	projectID string
	logger    *log.Logger

	confirmed domain.BoardSnapshot
	preview   domain.BoardSnapshot
	stale     bool
}

// NewBoardStore creates an empty store for one project. actorID is the
// authenticated user id carried in domain events, used to drop self-origin
// frames.
func NewBoardStore(actorID, projectID string, logger *log.Logger) *BoardStore {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &BoardStore{actorID: actorID, projectID: projectID, logger: logger}
}

// Load replaces both snapshots with a fresh server fetch and clears the stale
// marker.
func (s *BoardStore) Load(snap domain.BoardSnapshot) {
	s.confirmed = copySnapshot(snap)
	s.preview = copySnapshot(snap)
	s.stale = false
}

// Snapshot returns what the UI should render right now, sorted for display.
func (s *BoardStore) Snapshot() domain.BoardSnapshot {
	out := copySnapshot(s.preview)
	sortSnapshot(&out)
	return out
}

// Confirmed returns the last state acknowledged by the server.
func (s *BoardStore) Confirmed() domain.BoardSnapshot {
	out := copySnapshot(s.confirmed)
	sortSnapshot(&out)
	return out
}

// Stale reports that a peer event could not be merged and the caller should
// refetch the board via Load.
func (s *BoardStore) Stale() bool {
	return s.stale
}

// PreviewTaskMove recomputes the preview from the confirmed snapshot with the
// requested placement applied. Recomputing from confirmed on every hover tick
// keeps repeated ticks from compounding.
func (s *BoardStore) PreviewTaskMove(req domain.MoveRequest) error {
	updates, err := domain.PlanTaskMove(s.confirmed.Tasks, req)
	if err != nil {
		return err
	}
	next := copySnapshot(s.confirmed)
	applyTaskUpdates(next.Tasks, updates)
	if req.TargetColumnID != req.SourceColumnID {
		terminal := s.isTerminal(req.TargetColumnID)
		for i := range next.Tasks {
			if next.Tasks[i].ID == req.TaskID {
				next.Tasks[i].Completed = terminal
			}
		}
	}
	s.preview = next
	return nil
}

// PreviewColumnReorder is the column counterpart of PreviewTaskMove.
func (s *BoardStore) PreviewColumnReorder(columnID string, newPosition int) error {
	updates, err := domain.PlanColumnReorder(s.confirmed.Columns, columnID, newPosition)
	if err != nil {
		return err
	}
	next := copySnapshot(s.confirmed)
	applyColumnUpdates(next.Columns, updates)
	s.preview = next
	return nil
}

// Commit promotes the preview to confirmed after the server accepted the move.
func (s *BoardStore) Commit() {
	s.confirmed = copySnapshot(s.preview)
}

// Rollback discards the preview after a rejected move.
func (s *BoardStore) Rollback() {
	s.preview = copySnapshot(s.confirmed)
}

// ApplyEvent merges a peer's committed move into both snapshots. Frames for
// other projects and self-originated frames are dropped; the latter were
// already applied through the move response. Returns true when the event
// changed local state.
func (s *BoardStore) ApplyEvent(ev domain.Event) bool {
	switch e := ev.(type) {
	case domain.TaskMoved:
		if e.ProjectID != s.projectID || e.ActorID == s.actorID {
			return false
		}
		updates, err := domain.PlanTaskMove(s.confirmed.Tasks, domain.MoveRequest{
			TaskID:         e.TaskID,
			SourceColumnID: e.SourceColumnID,
			TargetColumnID: e.TargetColumnID,
			ProjectID:      e.ProjectID,
			NewPosition:    e.NewPosition,
		})
		if err != nil {
			// The local mirror no longer matches the server, e.g. the task
			// was created or deleted by the excluded CRUD layer.
			s.logger.Warnf("cannot merge task-moved event: %v", err)
			s.stale = true
			return false
		}
		applyTaskUpdates(s.confirmed.Tasks, updates)
		if e.TargetColumnID != e.SourceColumnID {
			terminal := s.isTerminal(e.TargetColumnID)
			for i := range s.confirmed.Tasks {
				if s.confirmed.Tasks[i].ID == e.TaskID {
					s.confirmed.Tasks[i].Completed = terminal
				}
			}
		}
		s.preview = copySnapshot(s.confirmed)
		return true
	case domain.ColumnsReordered:
		if e.ProjectID != s.projectID || e.ActorID == s.actorID {
			return false
		}
		updates, err := domain.PlanColumnReorder(s.confirmed.Columns, e.ColumnID, e.NewPosition)
		if err != nil {
			s.logger.Warnf("cannot merge columns-reordered event: %v", err)
			s.stale = true
			return false
		}
		applyColumnUpdates(s.confirmed.Columns, updates)
		s.preview = copySnapshot(s.confirmed)
		return true
	default:
		return false
	}
}

func (s *BoardStore) isTerminal(columnID string) bool {
	for _, c := range s.confirmed.Columns {
		if c.ID == columnID {
			return c.Terminal
		}
	}
	return false
}

func (s *BoardStore) hasColumn(columnID string) bool {
	for _, c := range s.confirmed.Columns {
		if c.ID == columnID {
			return true
		}
	}
	return false
}

func (s *BoardStore) taskColumn(taskID string) (string, bool) {
	for _, t := range s.confirmed.Tasks {
		if t.ID == taskID {
			return t.ColumnID, true
		}
	}
	return "", false
}

func copySnapshot(snap domain.BoardSnapshot) domain.BoardSnapshot {
	out := domain.BoardSnapshot{
		Columns: make([]domain.Column, len(snap.Columns)),
		Tasks:   make([]domain.Task, len(snap.Tasks)),
	}
	copy(out.Columns, snap.Columns)
	copy(out.Tasks, snap.Tasks)
	return out
}

func sortSnapshot(snap *domain.BoardSnapshot) {
	sort.Slice(snap.Columns, func(i, j int) bool {
		return snap.Columns[i].Position < snap.Columns[j].Position
	})
	sort.Slice(snap.Tasks, func(i, j int) bool {
		a, b := snap.Tasks[i], snap.Tasks[j]
		if a.ColumnID != b.ColumnID {
			return a.ColumnID < b.ColumnID
		}
		return a.Position < b.Position
	})
}

func applyTaskUpdates(tasks []domain.Task, updates []domain.PositionUpdate) {
	for _, u := range updates {
		for i := range tasks {
			if tasks[i].ID != u.TaskID {
				continue
			}
			tasks[i].Position = u.NewPosition
			if u.NewColumnID != "" {
				tasks[i].ColumnID = u.NewColumnID
			}
		}
	}
}

func applyColumnUpdates(columns []domain.Column, updates []domain.ColumnPositionUpdate) {
	for _, u := range updates {
		for i := range columns {
			if columns[i].ID == u.ColumnID {
				columns[i].Position = u.NewPosition
			}
		}
	}
}
