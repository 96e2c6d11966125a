package api

import (
	"context"

	"kanban-api/domain"
)

// Storage abstracts board reads for handlers. Reads go through the same
// membership collaborator the mutation path uses.
type Storage interface {
	FetchBoard(ctx context.Context, projectID string) (domain.BoardSnapshot, error)
	CheckMemberPermission(ctx context.Context, actorID, projectID, resource, action string) (bool, error)
}

// Mover runs the authorize/load/plan/persist/publish sequence for a mutation.
type Mover interface {
	MoveTask(ctx context.Context, actorID string, req domain.MoveRequest) error
	ReorderColumns(ctx context.Context, actorID string, req domain.ColumnReorderRequest) error
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

const moveRequestMaxSize = 16 * 1024 // 16 KiB

// Mutation response body shared by the move and reorder endpoints.
type moveResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
