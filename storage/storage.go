package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"kanban-api/domain"
)

type notFoundError struct{}

func (notFoundError) Error() string { return "not found" }
func (notFoundError) NotFound()     {}

type staleStateError struct{}

func (staleStateError) Error() string { return "stale board state" }
func (staleStateError) StaleState()   {}

// ErrNotFound is returned when a requested project, column or task row does
// not exist. It carries a NotFound marker method so callers can match it
// without importing this package.
var ErrNotFound error = notFoundError{}

// ErrStaleState is returned when a bulk update touched fewer rows than
// planned, which means the board changed between load and write. It carries a
// StaleState marker method.
var ErrStaleState error = staleStateError{}

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	terminal_column_id TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS board_columns (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	position INTEGER NOT NULL,
	system INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	column_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	is_completed INTEGER NOT NULL DEFAULT 0,
	title TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	priority TEXT NOT NULL DEFAULT '',
	due_date TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS project_members (
	project_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	role TEXT NOT NULL,
	PRIMARY KEY (project_id, user_id)
);
CREATE INDEX IF NOT EXISTS idx_columns_project ON board_columns(project_id, position);
CREATE INDEX IF NOT EXISTS idx_tasks_column ON tasks(project_id, column_id, position);
`

// Storage provides sqlite-backed persistence for boards.
type Storage struct {
	db *sql.DB
}

// New opens (or creates) the database at path and ensures the schema exists.
func New(path string) (*Storage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent movers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Storage{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Storage) Close() error {
	return s.db.Close()
}

// GetProject loads a project row.
func (s *Storage) GetProject(ctx context.Context, projectID string) (domain.Project, error) {
	var p domain.Project
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, terminal_column_id FROM projects WHERE id = ?`, projectID).
		Scan(&p.ID, &p.Name, &p.TerminalColumnID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Project{}, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	if err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// FetchColumns returns every column of the project ordered by position. The
// Terminal flag reflects the project's terminal column id.
func (s *Storage) FetchColumns(ctx context.Context, projectID string) ([]domain.Column, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.project_id, c.name, c.description, c.position, c.system,
		       c.id = p.terminal_column_id
		FROM board_columns c
		JOIN projects p ON p.id = c.project_id
		WHERE c.project_id = ?
		ORDER BY c.position`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := []domain.Column{}
	for rows.Next() {
		var c domain.Column
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Name, &c.Description, &c.Position, &c.System, &c.Terminal); err != nil {
			return nil, err
		}
		columns = append(columns, c)
	}
	return columns, rows.Err()
}

// FetchColumnTasks returns every task in the given columns of the project,
// ordered by column and position. This is the single load the move path
// performs before planning.
func (s *Storage) FetchColumnTasks(ctx context.Context, projectID string, columnIDs ...string) ([]domain.Task, error) {
	if len(columnIDs) == 0 {
		return []domain.Task{}, nil
	}
	query := `SELECT id, project_id, column_id, position, is_completed, title, notes, priority, due_date
		FROM tasks WHERE project_id = ? AND column_id IN (` + placeholders(len(columnIDs)) + `)
		ORDER BY column_id, position`
	args := make([]any, 0, len(columnIDs)+1)
	args = append(args, projectID)
	for _, id := range columnIDs {
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		var t domain.Task
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.ColumnID, &t.Position, &t.Completed, &t.Title, &t.Notes, &t.Priority, &t.DueDate); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// FetchBoard returns the full board snapshot for a project.
func (s *Storage) FetchBoard(ctx context.Context, projectID string) (domain.BoardSnapshot, error) {
	columns, err := s.FetchColumns(ctx, projectID)
	if err != nil {
		return domain.BoardSnapshot{}, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, column_id, position, is_completed, title, notes, priority, due_date
		FROM tasks WHERE project_id = ?
		ORDER BY column_id, position`, projectID)
	if err != nil {
		return domain.BoardSnapshot{}, err
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		var t domain.Task
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.ColumnID, &t.Position, &t.Completed, &t.Title, &t.Notes, &t.Priority, &t.DueDate); err != nil {
			return domain.BoardSnapshot{}, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return domain.BoardSnapshot{}, err
	}
	return domain.BoardSnapshot{Columns: columns, Tasks: tasks}, nil
}

// ApplyTaskUpdates commits a planned move in one transaction. Position-only
// rows are written with a single bulk CASE update; the moved row additionally
// receives its new column id and recomputed completion flag when the column
// changed. The batch either fully applies or not at all.
func (s *Storage) ApplyTaskUpdates(ctx context.Context, projectID string, updates []domain.PositionUpdate, movedTaskID, targetColumnID string, targetTerminal bool) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var positionOnly []domain.PositionUpdate
	var movedUpdate *domain.PositionUpdate
	for i := range updates {
		if updates[i].NewColumnID != "" {
			movedUpdate = &updates[i]
			continue
		}
		positionOnly = append(positionOnly, updates[i])
	}

	if len(positionOnly) > 0 {
		query, args := positionCaseUpdate("tasks", "id", positionOnly)
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		if err := expectAffected(res, len(positionOnly)); err != nil {
			return err
		}
	}

	if movedUpdate != nil {
		res, err := tx.ExecContext(ctx,
			`UPDATE tasks SET position = ?, column_id = ?, is_completed = ? WHERE id = ?`,
			movedUpdate.NewPosition, targetColumnID, targetTerminal, movedTaskID)
		if err != nil {
			return err
		}
		if err := expectAffected(res, 1); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ApplyColumnUpdates commits a planned column reorder as a single bulk CASE
// update inside a transaction.
func (s *Storage) ApplyColumnUpdates(ctx context.Context, projectID string, updates []domain.ColumnPositionUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	asPositions := make([]domain.PositionUpdate, len(updates))
	for i, u := range updates {
		asPositions[i] = domain.PositionUpdate{TaskID: u.ColumnID, NewPosition: u.NewPosition}
	}
	query, args := positionCaseUpdate("board_columns", "id", asPositions)
	query += " AND project_id = ?"
	args = append(args, projectID)
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if err := expectAffected(res, len(updates)); err != nil {
		return err
	}
	return tx.Commit()
}

// positionCaseUpdate builds `UPDATE <table> SET position = CASE <key> WHEN ?
// THEN ? ... END WHERE <key> IN (...)` with its argument list.
func positionCaseUpdate(table, key string, updates []domain.PositionUpdate) (string, []any) {
	var b strings.Builder
	args := make([]any, 0, len(updates)*3)
	b.WriteString("UPDATE " + table + " SET position = CASE " + key)
	for _, u := range updates {
		b.WriteString(" WHEN ? THEN ?")
		args = append(args, u.TaskID, u.NewPosition)
	}
	b.WriteString(" END WHERE " + key + " IN (" + placeholders(len(updates)) + ")")
	for _, u := range updates {
		args = append(args, u.TaskID)
	}
	return b.String(), args
}

func expectAffected(res sql.Result, want int) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if int(affected) != want {
		return fmt.Errorf("updated %d of %d rows: %w", affected, want, ErrStaleState)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
