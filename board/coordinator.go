// Package board implements the move coordinator: it authorizes a drag-and-drop
// mutation, plans the position changes, persists them and announces the result
// on the event bus.
package board

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"kanban-api/domain"
)

// Store is the persistence surface the coordinator depends on.
type Store interface {
	GetProject(ctx context.Context, projectID string) (domain.Project, error)
	FetchColumns(ctx context.Context, projectID string) ([]domain.Column, error)
	FetchColumnTasks(ctx context.Context, projectID string, columnIDs ...string) ([]domain.Task, error)
	ApplyTaskUpdates(ctx context.Context, projectID string, updates []domain.PositionUpdate, movedTaskID, targetColumnID string, targetTerminal bool) error
	ApplyColumnUpdates(ctx context.Context, projectID string, updates []domain.ColumnPositionUpdate) error
}

// Authorizer decides whether an actor may perform a mutation. The decision is
// external to the move engine.
type Authorizer interface {
	CheckMemberPermission(ctx context.Context, actorID, projectID, resource, action string) (bool, error)
}

// Publisher receives domain events for committed mutations. Publishing is
// fire-and-forget; the coordinator never waits for delivery.
type Publisher interface {
	Publish(ev domain.Event)
}

// Coordinator runs the authorize → load → plan → persist → publish sequence
// for task moves and column reorders.
type Coordinator struct {
	store  Store
	authz  Authorizer
	bus    Publisher
	logger *log.Logger
	locks  *keyedMutex
	tracer trace.Tracer
}

// NewCoordinator wires a coordinator over the given collaborators.
func NewCoordinator(store Store, authz Authorizer, bus Publisher, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Coordinator{
		store:  store,
		authz:  authz,
		bus:    bus,
		logger: logger,
		locks:  newKeyedMutex(),
		tracer: otel.Tracer("kanban-api/board"),
	}
}

// MoveTask applies one task move end to end. A drop back onto the task's own
// slot succeeds without writing or publishing anything.
func (c *Coordinator) MoveTask(ctx context.Context, actorID string, req domain.MoveRequest) error {
	ctx, span := c.tracer.Start(ctx, "board.move_task", trace.WithAttributes(
		attribute.String("kanban.project_id", req.ProjectID),
		attribute.String("kanban.task_id", req.TaskID),
		attribute.String("kanban.source_column_id", req.SourceColumnID),
		attribute.String("kanban.target_column_id", req.TargetColumnID),
		attribute.Int("kanban.new_position", req.NewPosition),
	))
	defer span.End()

	if err := c.authorize(ctx, actorID, req.ProjectID, "task"); err != nil {
		span.SetStatus(codes.Error, "unauthorized")
		return err
	}

	unlock := c.locks.lockAll(columnKey(req.ProjectID, req.SourceColumnID), columnKey(req.ProjectID, req.TargetColumnID))
	defer unlock()

	project, err := c.store.GetProject(ctx, req.ProjectID)
	if err != nil {
		return c.classifyLoad(span, "load project", err)
	}
	columns, err := c.store.FetchColumns(ctx, req.ProjectID)
	if err != nil {
		return c.classifyLoad(span, "load columns", err)
	}
	if !hasColumn(columns, req.SourceColumnID) {
		span.SetStatus(codes.Error, "stale")
		return &StaleStateError{Reason: "source column " + req.SourceColumnID + " no longer exists"}
	}
	if !hasColumn(columns, req.TargetColumnID) {
		span.SetStatus(codes.Error, "stale")
		return &StaleStateError{Reason: "target column " + req.TargetColumnID + " no longer exists"}
	}

	columnIDs := []string{req.SourceColumnID}
	if req.TargetColumnID != req.SourceColumnID {
		columnIDs = append(columnIDs, req.TargetColumnID)
	}
	tasks, err := c.store.FetchColumnTasks(ctx, req.ProjectID, columnIDs...)
	if err != nil {
		return c.classifyLoad(span, "load tasks", err)
	}

	updates, err := domain.PlanTaskMove(tasks, req)
	if err != nil {
		span.SetStatus(codes.Error, "stale")
		return &StaleStateError{Reason: "task " + req.TaskID + " not in column " + req.SourceColumnID, Err: err}
	}
	span.SetAttributes(attribute.Int("kanban.updates", len(updates)))
	if len(updates) == 0 {
		return nil
	}

	targetTerminal := req.TargetColumnID == project.TerminalColumnID
	if err := c.store.ApplyTaskUpdates(ctx, req.ProjectID, updates, req.TaskID, req.TargetColumnID, targetTerminal); err != nil {
		return c.classifyWrite(span, "apply task updates", err)
	}

	c.bus.Publish(domain.TaskMoved{
		TaskID:         req.TaskID,
		SourceColumnID: req.SourceColumnID,
		TargetColumnID: req.TargetColumnID,
		NewPosition:    req.NewPosition,
		ProjectID:      req.ProjectID,
		ActorID:        actorID,
	})
	return nil
}

// ReorderColumns applies one column reorder end to end, following the same
// shape as MoveTask over the project's column list.
func (c *Coordinator) ReorderColumns(ctx context.Context, actorID string, req domain.ColumnReorderRequest) error {
	ctx, span := c.tracer.Start(ctx, "board.reorder_columns", trace.WithAttributes(
		attribute.String("kanban.project_id", req.ProjectID),
		attribute.String("kanban.column_id", req.ColumnID),
		attribute.Int("kanban.new_position", req.NewPosition),
	))
	defer span.End()

	if err := c.authorize(ctx, actorID, req.ProjectID, "column"); err != nil {
		span.SetStatus(codes.Error, "unauthorized")
		return err
	}

	unlock := c.locks.lockAll(columnsKey(req.ProjectID))
	defer unlock()

	columns, err := c.store.FetchColumns(ctx, req.ProjectID)
	if err != nil {
		return c.classifyLoad(span, "load columns", err)
	}

	updates, err := domain.PlanColumnReorder(columns, req.ColumnID, req.NewPosition)
	if err != nil {
		span.SetStatus(codes.Error, "stale")
		return &StaleStateError{Reason: "column " + req.ColumnID + " no longer exists", Err: err}
	}
	span.SetAttributes(attribute.Int("kanban.updates", len(updates)))
	if len(updates) == 0 {
		return nil
	}

	if err := c.store.ApplyColumnUpdates(ctx, req.ProjectID, updates); err != nil {
		return c.classifyWrite(span, "apply column updates", err)
	}

	c.bus.Publish(domain.ColumnsReordered{
		ColumnID:    req.ColumnID,
		NewPosition: req.NewPosition,
		ProjectID:   req.ProjectID,
		ActorID:     actorID,
	})
	return nil
}

func (c *Coordinator) authorize(ctx context.Context, actorID, projectID, resource string) error {
	ok, err := c.authz.CheckMemberPermission(ctx, actorID, projectID, resource, "update")
	if err != nil {
		c.logger.WithFields(log.Fields{"project": projectID, "actor": actorID}).Errorf("permission check failed: %v", err)
		return &PersistenceError{Op: "check permission", Err: err}
	}
	if !ok {
		return &AuthorizationError{ActorID: actorID, ProjectID: projectID, Action: "update " + resource}
	}
	return nil
}

func (c *Coordinator) classifyLoad(span trace.Span, op string, err error) error {
	var missing notFoundError
	if errors.As(err, &missing) {
		span.SetStatus(codes.Error, "stale")
		return &StaleStateError{Reason: op, Err: err}
	}
	span.SetStatus(codes.Error, "storage")
	span.RecordError(err)
	c.logger.Errorf("%s: %v", op, err)
	return &PersistenceError{Op: op, Err: err}
}

func (c *Coordinator) classifyWrite(span trace.Span, op string, err error) error {
	var stale staleWriteError
	if errors.As(err, &stale) {
		span.SetStatus(codes.Error, "stale")
		return &StaleStateError{Reason: op, Err: err}
	}
	span.SetStatus(codes.Error, "storage")
	span.RecordError(err)
	c.logger.Errorf("%s: %v", op, err)
	return &PersistenceError{Op: op, Err: err}
}

func hasColumn(columns []domain.Column, id string) bool {
	for _, col := range columns {
		if col.ID == id {
			return true
		}
	}
	return false
}
