package engine

import (
	"context"
	"strings"

	"timecard/internal/domain"
	"timecard/internal/engine/auth"
	"timecard/internal/repo"
)

// BulkResult reports how many entries a bulk operation transitioned, or
// would transition in preview mode.
type BulkResult struct {
	AffectedCount int64 `json:"affected_count"`
}

type bulkSnapshot struct {
	Filter repo.RangeFilter `json:"filter"`
	Status domain.Status    `json:"status"`
}

type bulkOutcome struct {
	Filter        repo.RangeFilter `json:"filter"`
	Status        domain.Status    `json:"status"`
	AffectedCount int64            `json:"affected_count"`
	Reason        string           `json:"reason,omitempty"`
}

// Lock transitions every APPROVED entry matching the filter to LOCKED. The
// transition is one conditional UPDATE inside one transaction, so entries
// that lose their APPROVED status concurrently are simply not counted.
// Preview returns the would-be count without mutating anything.
func (e Engine) Lock(ctx context.Context, actorID string, f repo.RangeFilter, preview bool) (BulkResult, error) {
	return e.bulkTransition(ctx, actorID, f, preview, domain.ActionLock, "")
}

// Unlock transitions LOCKED entries back to APPROVED. A reason is mandatory
// and is stored in the audit record.
func (e Engine) Unlock(ctx context.Context, actorID string, f repo.RangeFilter, preview bool, reason string) (BulkResult, error) {
	if strings.TrimSpace(reason) == "" {
		return BulkResult{}, &domain.ValidationError{Field: "reason", Reason: "required when unlocking"}
	}
	return e.bulkTransition(ctx, actorID, f, preview, domain.ActionUnlock, reason)
}

func (e Engine) bulkTransition(ctx context.Context, actorID string, f repo.RangeFilter, preview bool, action domain.Action, reason string) (BulkResult, error) {
	if err := validateRequiredDates(f.From, f.To); err != nil {
		return BulkResult{}, err
	}
	if err := e.authorizeBulk(ctx, actorID, f); err != nil {
		return BulkResult{}, err
	}
	var from, to domain.Status
	switch action {
	case domain.ActionLock:
		from, to = domain.StatusApproved, domain.StatusLocked
	case domain.ActionUnlock:
		from, to = domain.StatusLocked, domain.StatusApproved
	default:
		return BulkResult{}, &domain.InvalidStateError{Action: action}
	}

	if preview {
		n, err := e.Repo.CountMatching(ctx, nil, from, f)
		if err != nil {
			return BulkResult{}, err
		}
		return BulkResult{AffectedCount: n}, nil
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return BulkResult{}, err
	}
	defer tx.Rollback()

	n, err := e.Repo.TransitionMatching(ctx, tx, from, to, f, e.nowString())
	if err != nil {
		return BulkResult{}, err
	}
	before := bulkSnapshot{Filter: f, Status: from}
	after := bulkOutcome{Filter: f, Status: to, AffectedCount: n, Reason: reason}
	if err := e.Audit.Append(ctx, tx, actorID, "TimesheetEntry", "", string(action), before, after); err != nil {
		return BulkResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return BulkResult{}, err
	}
	return BulkResult{AffectedCount: n}, nil
}

// authorizeBulk requires project-level moderation rights when the filter is
// scoped to one project, otherwise admin.
func (e Engine) authorizeBulk(ctx context.Context, actorID string, f repo.RangeFilter) error {
	if f.ProjectID != "" {
		ok, err := e.Auth.CanModerate(ctx, nil, actorID, f.ProjectID)
		if err != nil {
			return err
		}
		if !ok {
			return auth.ForbiddenError{ActorID: actorID, Resource: "project " + f.ProjectID}
		}
		return nil
	}
	ok, err := e.Auth.IsAdmin(ctx, nil, actorID)
	if err != nil {
		return err
	}
	if !ok {
		return auth.ForbiddenError{ActorID: actorID, Resource: "cross-project lock"}
	}
	return nil
}
