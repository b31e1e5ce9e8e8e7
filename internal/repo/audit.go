package repo

import (
	"context"
	"database/sql"
	"strings"

	"timecard/internal/domain"
)

type AuditFilters struct {
	Action string
	Entity string
	Limit  int
	After  int64
}

// ListAudit returns audit records, newest first.
func (r Repo) ListAudit(ctx context.Context, f AuditFilters) ([]domain.AuditRecord, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.Action != "" {
		clauses = append(clauses, "action=?")
		args = append(args, f.Action)
	}
	if f.Entity != "" {
		clauses = append(clauses, "entity=?")
		args = append(args, f.Entity)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id,actor_id,entity,entity_id,action,before_json,after_json,at FROM audit_logs WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AuditRecord
	for rows.Next() {
		rec, err := scanAudit(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// AuditAfter returns audit records with IDs greater than the cursor in
// ascending order, for webhook delivery.
func (r Repo) AuditAfter(ctx context.Context, limit int, cursor int64) ([]domain.AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,actor_id,entity,entity_id,action,before_json,after_json,at FROM audit_logs WHERE id>? ORDER BY id ASC LIMIT ?`, cursor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AuditRecord
	for rows.Next() {
		rec, err := scanAudit(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// LatestAuditID returns the most recent audit record ID.
func (r Repo) LatestAuditID(ctx context.Context) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM audit_logs`).Scan(&id)
	return id, err
}

func scanAudit(scan func(dest ...any) error) (domain.AuditRecord, error) {
	var rec domain.AuditRecord
	var actorID, entityID, beforeJSON, afterJSON sql.NullString
	if err := scan(&rec.ID, &actorID, &rec.Entity, &entityID, &rec.Action, &beforeJSON, &afterJSON, &rec.At); err != nil {
		return rec, err
	}
	if actorID.Valid {
		rec.ActorID = &actorID.String
	}
	if entityID.Valid {
		rec.EntityID = &entityID.String
	}
	if beforeJSON.Valid {
		rec.BeforeJSON = &beforeJSON.String
	}
	if afterJSON.Valid {
		rec.AfterJSON = &afterJSON.String
	}
	return rec, nil
}
