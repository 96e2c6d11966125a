package storage

import (
	"context"

	"github.com/google/uuid"

	"kanban-api/domain"
)

// The move engine never creates rows itself; these upserts exist for the
// surrounding CRUD layer and for fixtures. A row arriving without an id is
// assigned one, and the stored row is returned.

// UpsertProject inserts or replaces a project row.
func (s *Storage) UpsertProject(ctx context.Context, p domain.Project) (domain.Project, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, terminal_column_id) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, terminal_column_id = excluded.terminal_column_id`,
		p.ID, p.Name, p.TerminalColumnID)
	return p, err
}

// UpsertColumn inserts or replaces a column row.
func (s *Storage) UpsertColumn(ctx context.Context, c domain.Column) (domain.Column, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO board_columns (id, project_id, name, description, position, system) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, description = excluded.description,
		 position = excluded.position, system = excluded.system`,
		c.ID, c.ProjectID, c.Name, c.Description, c.Position, c.System)
	return c, err
}

// UpsertTask inserts or replaces a task row.
func (s *Storage) UpsertTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, project_id, column_id, position, is_completed, title, notes, priority, due_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET column_id = excluded.column_id, position = excluded.position,
		 is_completed = excluded.is_completed, title = excluded.title, notes = excluded.notes,
		 priority = excluded.priority, due_date = excluded.due_date`,
		t.ID, t.ProjectID, t.ColumnID, t.Position, t.Completed, t.Title, t.Notes, t.Priority, t.DueDate)
	return t, err
}

// UpsertMember inserts or replaces a membership row.
func (s *Storage) UpsertMember(ctx context.Context, projectID, userID, role string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO project_members (project_id, user_id, role) VALUES (?, ?, ?)
		 ON CONFLICT(project_id, user_id) DO UPDATE SET role = excluded.role`,
		projectID, userID, role)
	return err
}
