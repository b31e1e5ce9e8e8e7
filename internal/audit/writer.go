package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Writer appends audit records inside the caller's transaction so the
// record commits or rolls back with the mutation it describes.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

func (w Writer) Append(ctx context.Context, tx *sql.Tx, actorID, entity, entityID, action string, before, after any) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	at := w.Now().UTC().Format(time.RFC3339)
	beforeJSON, err := marshalSnapshot(before)
	if err != nil {
		return fmt.Errorf("marshal audit before: %w", err)
	}
	afterJSON, err := marshalSnapshot(after)
	if err != nil {
		return fmt.Errorf("marshal audit after: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO audit_logs(actor_id,entity,entity_id,action,before_json,after_json,at) VALUES (?,?,?,?,?,?,?)`,
		nullable(actorID), entity, nullable(entityID), action, beforeJSON, afterJSON, at)
	return err
}

func marshalSnapshot(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
