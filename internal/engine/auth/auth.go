package auth

import (
	"context"
	"database/sql"
	"fmt"
)

// ForbiddenError indicates the actor lacks authority over a resource.
type ForbiddenError struct {
	ActorID  string
	Resource string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("actor %s is not authorized for %s", e.ActorID, e.Resource)
}

// Service answers authorization questions backed by the directory tables.
type Service struct {
	DB *sql.DB
}

// IsAdmin reports whether the actor has the admin flag set.
func (s Service) IsAdmin(ctx context.Context, tx *sql.Tx, actorID string) (bool, error) {
	row := queryRow(ctx, s.DB, tx, `SELECT 1 FROM users WHERE id=? AND admin=1 LIMIT 1`, actorID)
	var n int
	err := row.Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// CanModerate reports whether the actor may approve, reject, lock or unlock
// entries on the project. The default approver and admins qualify.
func (s Service) CanModerate(ctx context.Context, tx *sql.Tx, actorID, projectID string) (bool, error) {
	row := queryRow(ctx, s.DB, tx, `SELECT 1 FROM projects WHERE id=? AND default_approver=? LIMIT 1`, projectID, actorID)
	var n int
	err := row.Scan(&n)
	if err == nil {
		return true, nil
	}
	if err != sql.ErrNoRows {
		return false, err
	}
	return s.IsAdmin(ctx, tx, actorID)
}

// RequireOwner fails unless the actor owns the entry.
func (s Service) RequireOwner(actorID, ownerID, resource string) error {
	if actorID != ownerID {
		return ForbiddenError{ActorID: actorID, Resource: resource}
	}
	return nil
}

func queryRow(ctx context.Context, db *sql.DB, tx *sql.Tx, query string, args ...any) *sql.Row {
	if tx != nil {
		return tx.QueryRowContext(ctx, query, args...)
	}
	return db.QueryRowContext(ctx, query, args...)
}
