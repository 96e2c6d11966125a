package domain

// Project is the slice of project state the move engine needs: identity and
// which column marks work as done.
type Project struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	TerminalColumnID string `json:"terminalColumnId"`
}

// Column is a single board lane scoped to a project. Positions are dense and
// zero-based within the project.
type Column struct {
	ID          string `json:"id"`
	ProjectID   string `json:"projectId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Position    int    `json:"position"`
	System      bool   `json:"system,omitempty"`
	Terminal    bool   `json:"terminal,omitempty"`
}

// BoardSnapshot is the column and task listing for one project, as served to
// clients and cached between moves.
type BoardSnapshot struct {
	Columns []Column `json:"columns"`
	Tasks   []Task   `json:"tasks"`
}

// Task is a single board item. Positions are dense and zero-based within the
// owning column; Completed mirrors "the owning column is the terminal column".
type Task struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	ColumnID  string `json:"columnId"`
	Position  int    `json:"position"`
	Completed bool   `json:"completed,omitempty"`
	Title     string `json:"title"`
	Notes     string `json:"notes,omitempty"`
	Priority  string `json:"priority,omitempty"`
	DueDate   string `json:"dueDate,omitempty"`
}
