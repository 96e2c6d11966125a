package storage

import (
	"context"
	"database/sql"
	"errors"
)

// Project roles, ordered from least to most privileged.
const (
	RoleViewer = "viewer"
	RoleEditor = "editor"
	RoleAdmin  = "admin"
	RoleOwner  = "owner"
)

// CheckMemberPermission reports whether the actor may perform action on the
// given resource within the project. Non-members are always denied; viewers
// may only read.
func (s *Storage) CheckMemberPermission(ctx context.Context, actorID, projectID, resource, action string) (bool, error) {
	var role string
	err := s.db.QueryRowContext(ctx,
		`SELECT role FROM project_members WHERE project_id = ? AND user_id = ?`,
		projectID, actorID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if action == "read" {
		return true, nil
	}
	switch role {
	case RoleEditor, RoleAdmin, RoleOwner:
		return true, nil
	default:
		return false, nil
	}
}
