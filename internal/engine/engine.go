package engine

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"timecard/internal/audit"
	"timecard/internal/config"
	"timecard/internal/domain"
	"timecard/internal/engine/auth"
	"timecard/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Audit  audit.Writer
	Auth   auth.Service
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Audit:  audit.Writer{DB: db},
		Auth:   auth.Service{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowString() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) dailyCap() float64 {
	if e.Config != nil && e.Config.Accounting.DailyCapHours > 0 {
		return e.Config.Accounting.DailyCapHours
	}
	return 12
}

func (e Engine) maxEntryHours() float64 {
	if e.Config != nil && e.Config.Accounting.MaxEntryHours > 0 {
		return e.Config.Accounting.MaxEntryHours
	}
	return 24
}

// EntryCreateOptions are parameters for creating a draft entry.
type EntryCreateOptions struct {
	ID          string
	UserID      string
	ProjectID   string
	TaskID      string
	WorkDate    string
	Hours       float64
	Description string
	TicketRef   string
	TaskType    string
	ActorID     string
}

// CreateDraft validates and persists a new DRAFT entry owned by the actor.
func (e Engine) CreateDraft(ctx context.Context, opts EntryCreateOptions) (domain.TimesheetEntry, error) {
	if opts.UserID == "" {
		return domain.TimesheetEntry{}, &domain.ValidationError{Field: "user_id", Reason: "required"}
	}
	if opts.ProjectID == "" {
		return domain.TimesheetEntry{}, &domain.ValidationError{Field: "project_id", Reason: "required"}
	}
	if opts.ActorID != "" && opts.ActorID != opts.UserID {
		return domain.TimesheetEntry{}, auth.ForbiddenError{ActorID: opts.ActorID, Resource: "entries of " + opts.UserID}
	}
	if opts.TaskType == "" {
		opts.TaskType = "development"
	}
	if err := e.validateEntryFields(opts.WorkDate, opts.Hours, opts.Description, opts.TaskType); err != nil {
		return domain.TimesheetEntry{}, err
	}
	user, err := e.Repo.GetUser(ctx, opts.UserID)
	if err != nil {
		return domain.TimesheetEntry{}, err
	}
	if !user.Active {
		return domain.TimesheetEntry{}, &domain.ValidationError{Field: "user_id", Reason: "user is inactive"}
	}
	if _, err := e.Repo.GetProject(ctx, opts.ProjectID); err != nil {
		return domain.TimesheetEntry{}, err
	}
	if err := e.checkDailyCap(ctx, opts.UserID, opts.WorkDate, opts.Hours, ""); err != nil {
		return domain.TimesheetEntry{}, err
	}

	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := e.nowString()
	entry := domain.TimesheetEntry{
		ID:          id,
		UserID:      opts.UserID,
		ProjectID:   opts.ProjectID,
		TaskID:      optionalString(opts.TaskID),
		WorkDate:    opts.WorkDate,
		Hours:       opts.Hours,
		Description: opts.Description,
		TicketRef:   optionalString(opts.TicketRef),
		TaskType:    opts.TaskType,
		Status:      domain.StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.TimesheetEntry{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertEntry(ctx, tx, entry); err != nil {
		return domain.TimesheetEntry{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.TimesheetEntry{}, err
	}
	return entry, nil
}

// EntryUpdateOptions encapsulates owner edits. Nil fields are left unchanged.
type EntryUpdateOptions struct {
	ID          string
	ActorID     string
	Hours       *float64
	Description *string
	TicketRef   *string
	TaskID      *string
	TaskType    *string
}

// UpdateDraft applies owner edits to a DRAFT or REJECTED entry. An entry
// owned by someone else is reported as not found.
func (e Engine) UpdateDraft(ctx context.Context, opts EntryUpdateOptions) (domain.TimesheetEntry, error) {
	entry, err := e.Repo.GetEntry(ctx, opts.ID)
	if err != nil {
		return domain.TimesheetEntry{}, err
	}
	if entry.UserID != opts.ActorID {
		return domain.TimesheetEntry{}, repo.ErrNotFound
	}
	if !entry.Status.Editable() {
		return entry, &domain.InvalidStateError{EntryID: entry.ID, From: entry.Status, Action: domain.ActionUpdate}
	}
	if opts.Hours != nil {
		entry.Hours = *opts.Hours
	}
	if opts.Description != nil {
		entry.Description = *opts.Description
	}
	if opts.TicketRef != nil {
		entry.TicketRef = optionalString(*opts.TicketRef)
	}
	if opts.TaskID != nil {
		entry.TaskID = optionalString(*opts.TaskID)
	}
	if opts.TaskType != nil {
		entry.TaskType = *opts.TaskType
	}
	if err := e.validateEntryFields(entry.WorkDate, entry.Hours, entry.Description, entry.TaskType); err != nil {
		return entry, err
	}
	// The entry's old hours are excluded so an edit swaps rather than stacks.
	if err := e.checkDailyCap(ctx, entry.UserID, entry.WorkDate, entry.Hours, entry.ID); err != nil {
		return entry, err
	}
	entry.UpdatedAt = e.nowString()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return entry, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateEntry(ctx, tx, entry); err != nil {
		return entry, err
	}
	if err := tx.Commit(); err != nil {
		return entry, err
	}
	return entry, nil
}

// Delete removes a DRAFT or REJECTED entry owned by the actor.
func (e Engine) Delete(ctx context.Context, actorID, entryID string) error {
	entry, err := e.Repo.GetEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if entry.UserID != actorID {
		return repo.ErrNotFound
	}
	if !entry.Status.Editable() {
		return &domain.InvalidStateError{EntryID: entry.ID, From: entry.Status, Action: domain.ActionDelete}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteEntry(ctx, tx, entryID); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) GetEntry(ctx context.Context, id string) (domain.TimesheetEntry, error) {
	return e.Repo.GetEntry(ctx, id)
}

func (e Engine) ListEntries(ctx context.Context, f repo.EntryFilters) ([]domain.TimesheetEntry, error) {
	if err := validateOptionalDates(f.From, f.To); err != nil {
		return nil, err
	}
	return e.Repo.ListEntries(ctx, f)
}

// Submit moves a DRAFT or REJECTED entry to SUBMITTED. Only the owner may
// submit.
func (e Engine) Submit(ctx context.Context, actorID, entryID string) (domain.TimesheetEntry, error) {
	entry, err := e.Repo.GetEntry(ctx, entryID)
	if err != nil {
		return domain.TimesheetEntry{}, err
	}
	if err := e.Auth.RequireOwner(actorID, entry.UserID, "entry "+entry.ID); err != nil {
		return entry, err
	}
	next, err := domain.Transition(entry.Status, domain.ActionSubmit)
	if err != nil {
		return entry, stampEntryID(err, entry.ID)
	}
	now := e.nowString()
	entry.Status = next
	entry.SubmittedAt = &now
	entry.ApprovedAt = nil
	entry.ApprovedBy = nil
	entry.UpdatedAt = now
	return entry, e.saveEntry(ctx, entry)
}

// Approve moves a SUBMITTED entry to APPROVED. The project's default
// approver and admins qualify. Comment is optional.
func (e Engine) Approve(ctx context.Context, actorID, entryID, comment string) (domain.TimesheetEntry, error) {
	entry, err := e.Repo.GetEntry(ctx, entryID)
	if err != nil {
		return domain.TimesheetEntry{}, err
	}
	if err := e.requireModerator(ctx, actorID, entry.ProjectID); err != nil {
		return entry, err
	}
	next, err := domain.Transition(entry.Status, domain.ActionApprove)
	if err != nil {
		return entry, stampEntryID(err, entry.ID)
	}
	now := e.nowString()
	entry.Status = next
	entry.ApprovedAt = &now
	entry.ApprovedBy = &actorID
	if strings.TrimSpace(comment) != "" {
		entry.ApproverComment = &comment
	}
	entry.UpdatedAt = now
	return entry, e.saveEntry(ctx, entry)
}

// Reject moves a SUBMITTED entry back to REJECTED. Comment is mandatory so
// the owner knows what to fix.
func (e Engine) Reject(ctx context.Context, actorID, entryID, comment string) (domain.TimesheetEntry, error) {
	if strings.TrimSpace(comment) == "" {
		return domain.TimesheetEntry{}, &domain.ValidationError{Field: "comment", Reason: "required when rejecting"}
	}
	entry, err := e.Repo.GetEntry(ctx, entryID)
	if err != nil {
		return domain.TimesheetEntry{}, err
	}
	if err := e.requireModerator(ctx, actorID, entry.ProjectID); err != nil {
		return entry, err
	}
	next, err := domain.Transition(entry.Status, domain.ActionReject)
	if err != nil {
		return entry, stampEntryID(err, entry.ID)
	}
	entry.Status = next
	entry.ApproverComment = &comment
	entry.UpdatedAt = e.nowString()
	return entry, e.saveEntry(ctx, entry)
}

// ListPending returns SUBMITTED and REJECTED entries on the approver's
// projects in the range.
func (e Engine) ListPending(ctx context.Context, f repo.PendingFilters) ([]domain.TimesheetEntry, error) {
	if f.ApproverID == "" {
		return nil, &domain.ValidationError{Field: "approver_id", Reason: "required"}
	}
	if err := validateRequiredDates(f.From, f.To); err != nil {
		return nil, err
	}
	return e.Repo.ListPending(ctx, f)
}

func (e Engine) saveEntry(ctx context.Context, entry domain.TimesheetEntry) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateEntry(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) requireModerator(ctx context.Context, actorID, projectID string) error {
	ok, err := e.Auth.CanModerate(ctx, nil, actorID, projectID)
	if err != nil {
		return err
	}
	if !ok {
		return auth.ForbiddenError{ActorID: actorID, Resource: "project " + projectID}
	}
	return nil
}

func (e Engine) validateEntryFields(workDate string, hours float64, description, taskType string) error {
	if _, err := time.Parse("2006-01-02", workDate); err != nil {
		return &domain.ValidationError{Field: "work_date", Reason: "must be YYYY-MM-DD"}
	}
	if hours < 0 || hours > e.maxEntryHours() {
		return &domain.ValidationError{Field: "hours", Reason: "must be between 0 and 24"}
	}
	if hours > 0 && strings.TrimSpace(description) == "" {
		return &domain.ValidationError{Field: "description", Reason: "required when hours > 0"}
	}
	if !e.validTaskType(taskType) {
		return &domain.ValidationError{Field: "task_type", Reason: "unknown task type " + taskType}
	}
	return nil
}

func (e Engine) validTaskType(t string) bool {
	if e.Config != nil && len(e.Config.TaskTypes) > 0 {
		for _, known := range e.Config.TaskTypes {
			if known == t {
				return true
			}
		}
		return false
	}
	return domain.ValidTaskType(t)
}

func (e Engine) checkDailyCap(ctx context.Context, userID, workDate string, hours float64, excludeID string) error {
	existing, err := e.Repo.SumHoursForDay(ctx, userID, workDate, excludeID)
	if err != nil {
		return err
	}
	capHours := e.dailyCap()
	if existing+hours > capHours {
		return &domain.DailyCapError{UserID: userID, WorkDate: workDate, Total: existing + hours, Cap: capHours}
	}
	return nil
}

func stampEntryID(err error, entryID string) error {
	var ise *domain.InvalidStateError
	if errors.As(err, &ise) {
		ise.EntryID = entryID
	}
	return err
}

func validateRequiredDates(from, to string) error {
	if _, err := time.Parse("2006-01-02", from); err != nil {
		return &domain.ValidationError{Field: "from", Reason: "must be YYYY-MM-DD"}
	}
	if _, err := time.Parse("2006-01-02", to); err != nil {
		return &domain.ValidationError{Field: "to", Reason: "must be YYYY-MM-DD"}
	}
	if from > to {
		return &domain.ValidationError{Field: "from", Reason: "must not be after to"}
	}
	return nil
}

func validateOptionalDates(from, to string) error {
	if from == "" && to == "" {
		return nil
	}
	if from != "" {
		if _, err := time.Parse("2006-01-02", from); err != nil {
			return &domain.ValidationError{Field: "from", Reason: "must be YYYY-MM-DD"}
		}
	}
	if to != "" {
		if _, err := time.Parse("2006-01-02", to); err != nil {
			return &domain.ValidationError{Field: "to", Reason: "must be YYYY-MM-DD"}
		}
	}
	if from != "" && to != "" && from > to {
		return &domain.ValidationError{Field: "from", Reason: "must not be after to"}
	}
	return nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
