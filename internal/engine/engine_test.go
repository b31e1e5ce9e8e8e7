package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"timecard/internal/config"
	"timecard/internal/db"
	"timecard/internal/domain"
	"timecard/internal/engine"
	"timecard/internal/engine/auth"
	"timecard/internal/migrate"
	"timecard/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	fixed := func() time.Time { return time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC) }
	eng.Now = fixed
	eng.Audit.Now = fixed
	ctx := context.Background()
	now := "2024-01-01T00:00:00Z"
	users := []domain.User{
		{ID: "alice", Name: "Alice", Active: true, CreatedAt: now},
		{ID: "bob", Name: "Bob", Active: true, CreatedAt: now},
		{ID: "carol", Name: "Carol", Active: true, Admin: true, CreatedAt: now},
		{ID: "dave", Name: "Dave", Active: true, CreatedAt: now},
	}
	for _, u := range users {
		if err := eng.Repo.InsertUser(ctx, u); err != nil {
			t.Fatalf("seed user %s: %v", u.ID, err)
		}
	}
	if err := eng.Repo.InsertProject(ctx, domain.Project{ID: "proj-1", Name: "Core", DefaultApprover: "bob", Billable: true, CreatedAt: now}); err != nil {
		t.Fatalf("seed project: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

func createEntry(t *testing.T, env testEnv, userID, date string, hours float64) domain.TimesheetEntry {
	t.Helper()
	entry, err := env.Engine.CreateDraft(env.Ctx, engine.EntryCreateOptions{
		UserID:      userID,
		ProjectID:   "proj-1",
		WorkDate:    date,
		Hours:       hours,
		Description: "dev work",
		ActorID:     userID,
	})
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	return entry
}

func approveEntry(t *testing.T, env testEnv, entry domain.TimesheetEntry) domain.TimesheetEntry {
	t.Helper()
	if _, err := env.Engine.Submit(env.Ctx, entry.UserID, entry.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	approved, err := env.Engine.Approve(env.Ctx, "bob", entry.ID, "")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	return approved
}

func TestCreateDraft(t *testing.T) {
	env := newTestEnv(t)
	entry := createEntry(t, env, "alice", "2024-01-10", 8)
	if entry.Status != domain.StatusDraft {
		t.Fatalf("expected DRAFT, got %s", entry.Status)
	}
	if entry.ID == "" {
		t.Fatalf("expected generated id")
	}
	got, err := env.Engine.GetEntry(env.Ctx, entry.ID)
	if err != nil || got.Hours != 8 {
		t.Fatalf("get entry: %v %+v", err, got)
	}
}

func TestDailyCap(t *testing.T) {
	env := newTestEnv(t)
	createEntry(t, env, "alice", "2024-01-10", 8)
	_, err := env.Engine.CreateDraft(env.Ctx, engine.EntryCreateOptions{
		UserID: "alice", ProjectID: "proj-1", WorkDate: "2024-01-10",
		Hours: 6, Description: "more work", ActorID: "alice",
	})
	var capErr *domain.DailyCapError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected DailyCapError, got %v", err)
	}
	if capErr.Total != 14 || capErr.Cap != 12 {
		t.Fatalf("unexpected cap error %+v", capErr)
	}
	// exactly at the cap passes
	if _, err := env.Engine.CreateDraft(env.Ctx, engine.EntryCreateOptions{
		UserID: "alice", ProjectID: "proj-1", WorkDate: "2024-01-10",
		Hours: 4, Description: "fills the day", ActorID: "alice",
	}); err != nil {
		t.Fatalf("expected create at cap: %v", err)
	}
	// the failed create left prior entries alone
	list, err := env.Engine.ListEntries(env.Ctx, repo.EntryFilters{UserID: "alice"})
	if err != nil || len(list) != 2 {
		t.Fatalf("expected 2 entries, got %d (%v)", len(list), err)
	}
}

func TestUpdateExcludesOldHours(t *testing.T) {
	env := newTestEnv(t)
	entry := createEntry(t, env, "alice", "2024-01-10", 8)
	hours := 12.0
	updated, err := env.Engine.UpdateDraft(env.Ctx, engine.EntryUpdateOptions{ID: entry.ID, ActorID: "alice", Hours: &hours})
	if err != nil {
		t.Fatalf("update to 12h should swap old hours: %v", err)
	}
	if updated.Hours != 12 {
		t.Fatalf("expected 12h, got %v", updated.Hours)
	}
	over := 13.0
	_, err = env.Engine.UpdateDraft(env.Ctx, engine.EntryUpdateOptions{ID: entry.ID, ActorID: "alice", Hours: &over})
	var capErr *domain.DailyCapError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected DailyCapError, got %v", err)
	}
}

func TestEntryValidation(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		name string
		opts engine.EntryCreateOptions
	}{
		{"hours over 24", engine.EntryCreateOptions{UserID: "alice", ProjectID: "proj-1", WorkDate: "2024-01-10", Hours: 25, Description: "x", ActorID: "alice"}},
		{"negative hours", engine.EntryCreateOptions{UserID: "alice", ProjectID: "proj-1", WorkDate: "2024-01-10", Hours: -1, Description: "x", ActorID: "alice"}},
		{"missing description", engine.EntryCreateOptions{UserID: "alice", ProjectID: "proj-1", WorkDate: "2024-01-10", Hours: 4, ActorID: "alice"}},
		{"bad date", engine.EntryCreateOptions{UserID: "alice", ProjectID: "proj-1", WorkDate: "10/01/2024", Hours: 4, Description: "x", ActorID: "alice"}},
		{"unknown task type", engine.EntryCreateOptions{UserID: "alice", ProjectID: "proj-1", WorkDate: "2024-01-10", Hours: 4, Description: "x", TaskType: "golfing", ActorID: "alice"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.Engine.CreateDraft(env.Ctx, tc.opts)
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestSubmitApproveFlow(t *testing.T) {
	env := newTestEnv(t)
	entry := createEntry(t, env, "alice", "2024-01-10", 8)

	// only the owner may submit
	_, err := env.Engine.Submit(env.Ctx, "dave", entry.ID)
	var forbidden auth.ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}

	submitted, err := env.Engine.Submit(env.Ctx, "alice", entry.ID)
	if err != nil || submitted.Status != domain.StatusSubmitted {
		t.Fatalf("submit: %v %s", err, submitted.Status)
	}
	if submitted.SubmittedAt == nil {
		t.Fatalf("expected submitted_at set")
	}

	// a non-approver cannot approve; the entry stays SUBMITTED
	_, err = env.Engine.Approve(env.Ctx, "dave", entry.ID, "")
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
	got, _ := env.Engine.GetEntry(env.Ctx, entry.ID)
	if got.Status != domain.StatusSubmitted {
		t.Fatalf("status changed on forbidden approve: %s", got.Status)
	}

	approved, err := env.Engine.Approve(env.Ctx, "bob", entry.ID, "")
	if err != nil || approved.Status != domain.StatusApproved {
		t.Fatalf("approve: %v %s", err, approved.Status)
	}
	if approved.ApprovedBy == nil || *approved.ApprovedBy != "bob" {
		t.Fatalf("expected approved_by bob")
	}
	if approved.ApprovedAt == nil {
		t.Fatalf("expected approved_at set")
	}

	// approving twice is an invalid transition
	_, err = env.Engine.Approve(env.Ctx, "bob", entry.ID, "")
	var ise *domain.InvalidStateError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
}

func TestRejectAndResubmit(t *testing.T) {
	env := newTestEnv(t)
	entry := createEntry(t, env, "alice", "2024-01-10", 8)
	if _, err := env.Engine.Submit(env.Ctx, "alice", entry.ID); err != nil {
		t.Fatal(err)
	}

	_, err := env.Engine.Reject(env.Ctx, "bob", entry.ID, "  ")
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for blank comment, got %v", err)
	}

	rejected, err := env.Engine.Reject(env.Ctx, "bob", entry.ID, "wrong project")
	if err != nil || rejected.Status != domain.StatusRejected {
		t.Fatalf("reject: %v %s", err, rejected.Status)
	}
	if rejected.ApproverComment == nil || *rejected.ApproverComment != "wrong project" {
		t.Fatalf("expected comment stored")
	}

	// owner may still edit a rejected entry, then resubmit
	hours := 6.0
	if _, err := env.Engine.UpdateDraft(env.Ctx, engine.EntryUpdateOptions{ID: entry.ID, ActorID: "alice", Hours: &hours}); err != nil {
		t.Fatalf("edit rejected: %v", err)
	}
	resubmitted, err := env.Engine.Submit(env.Ctx, "alice", entry.ID)
	if err != nil || resubmitted.Status != domain.StatusSubmitted {
		t.Fatalf("resubmit: %v %s", err, resubmitted.Status)
	}
}

func TestEditGuards(t *testing.T) {
	env := newTestEnv(t)
	entry := approveEntry(t, env, createEntry(t, env, "alice", "2024-01-10", 8))

	hours := 4.0
	_, err := env.Engine.UpdateDraft(env.Ctx, engine.EntryUpdateOptions{ID: entry.ID, ActorID: "alice", Hours: &hours})
	var ise *domain.InvalidStateError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InvalidStateError on edit of APPROVED, got %v", err)
	}
	if err := env.Engine.Delete(env.Ctx, "alice", entry.ID); !errors.As(err, &ise) {
		t.Fatalf("expected InvalidStateError on delete of APPROVED, got %v", err)
	}

	// someone else's draft looks like it does not exist
	draft := createEntry(t, env, "alice", "2024-01-11", 2)
	if _, err := env.Engine.UpdateDraft(env.Ctx, engine.EntryUpdateOptions{ID: draft.ID, ActorID: "dave", Hours: &hours}); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteDraft(t *testing.T) {
	env := newTestEnv(t)
	entry := createEntry(t, env, "alice", "2024-01-10", 8)
	if err := env.Engine.Delete(env.Ctx, "alice", entry.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.Engine.GetEntry(env.Ctx, entry.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestListPending(t *testing.T) {
	env := newTestEnv(t)
	e1 := createEntry(t, env, "alice", "2024-01-03", 4)
	e2 := createEntry(t, env, "dave", "2024-01-02", 4)
	e3 := createEntry(t, env, "alice", "2024-01-02", 4)
	for _, e := range []domain.TimesheetEntry{e1, e2, e3} {
		if _, err := env.Engine.Submit(env.Ctx, e.UserID, e.ID); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := env.Engine.Reject(env.Ctx, "bob", e3.ID, "fix description"); err != nil {
		t.Fatal(err)
	}

	pending, err := env.Engine.ListPending(env.Ctx, repo.PendingFilters{ApproverID: "bob", From: "2024-01-01", To: "2024-01-31"})
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending (incl. rejected), got %d", len(pending))
	}
	// ordered by work_date, then user_id
	if pending[0].ID != e3.ID || pending[1].ID != e2.ID || pending[2].ID != e1.ID {
		t.Fatalf("unexpected order: %s %s %s", pending[0].ID, pending[1].ID, pending[2].ID)
	}

	// a non-approver sees nothing
	none, err := env.Engine.ListPending(env.Ctx, repo.PendingFilters{ApproverID: "dave", From: "2024-01-01", To: "2024-01-31"})
	if err != nil || len(none) != 0 {
		t.Fatalf("expected empty pending for dave, got %d (%v)", len(none), err)
	}
}

func TestBulkLock(t *testing.T) {
	env := newTestEnv(t)
	dates := []string{"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05", "2024-01-06", "2024-01-07"}
	count := 0
	for _, d := range dates {
		approveEntry(t, env, createEntry(t, env, "alice", d, 4))
		count++
		if count < 10 && d <= "2024-01-03" {
			approveEntry(t, env, createEntry(t, env, "dave", d, 4))
			count++
		}
	}
	filter := repo.RangeFilter{From: "2024-01-01", To: "2024-01-07", ProjectID: "proj-1"}

	preview, err := env.Engine.Lock(env.Ctx, "bob", filter, true)
	if err != nil || preview.AffectedCount != 10 {
		t.Fatalf("preview: %v count=%d", err, preview.AffectedCount)
	}
	// preview does not mutate
	if n := countStatus(t, env, domain.StatusLocked); n != 0 {
		t.Fatalf("preview locked %d rows", n)
	}

	res, err := env.Engine.Lock(env.Ctx, "bob", filter, false)
	if err != nil || res.AffectedCount != 10 {
		t.Fatalf("lock: %v count=%d", err, res.AffectedCount)
	}
	if n := countStatus(t, env, domain.StatusLocked); n != 10 {
		t.Fatalf("expected 10 LOCKED, got %d", n)
	}

	records, err := env.Engine.Repo.ListAudit(env.Ctx, repo.AuditFilters{Action: "LOCK"})
	if err != nil || len(records) != 1 {
		t.Fatalf("expected 1 LOCK audit record, got %d (%v)", len(records), err)
	}
	rec := records[0]
	if rec.ActorID == nil || *rec.ActorID != "bob" || rec.Entity != "TimesheetEntry" {
		t.Fatalf("unexpected audit record %+v", rec)
	}
	if rec.AfterJSON == nil || !strings.Contains(*rec.AfterJSON, `"affected_count":10`) {
		t.Fatalf("expected count in audit after snapshot: %+v", rec.AfterJSON)
	}
	if rec.BeforeJSON == nil || !strings.Contains(*rec.BeforeJSON, `"2024-01-07"`) {
		t.Fatalf("expected filter in audit before snapshot: %+v", rec.BeforeJSON)
	}

	// second lock over the same filter is an idempotent no-op
	again, err := env.Engine.Lock(env.Ctx, "bob", filter, false)
	if err != nil || again.AffectedCount != 0 {
		t.Fatalf("expected idempotent second lock, got %v count=%d", err, again.AffectedCount)
	}
}

func TestBulkUnlock(t *testing.T) {
	env := newTestEnv(t)
	approveEntry(t, env, createEntry(t, env, "alice", "2024-01-02", 4))
	filter := repo.RangeFilter{From: "2024-01-01", To: "2024-01-07", ProjectID: "proj-1"}
	if _, err := env.Engine.Lock(env.Ctx, "bob", filter, false); err != nil {
		t.Fatal(err)
	}

	_, err := env.Engine.Unlock(env.Ctx, "bob", filter, false, "")
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for missing reason, got %v", err)
	}

	res, err := env.Engine.Unlock(env.Ctx, "bob", filter, false, "payroll correction")
	if err != nil || res.AffectedCount != 1 {
		t.Fatalf("unlock: %v count=%d", err, res.AffectedCount)
	}
	if n := countStatus(t, env, domain.StatusApproved); n != 1 {
		t.Fatalf("expected entry back to APPROVED, got %d", n)
	}
	records, err := env.Engine.Repo.ListAudit(env.Ctx, repo.AuditFilters{Action: "UNLOCK"})
	if err != nil || len(records) != 1 {
		t.Fatalf("expected 1 UNLOCK record, got %d (%v)", len(records), err)
	}
	if records[0].AfterJSON == nil || !strings.Contains(*records[0].AfterJSON, "payroll correction") {
		t.Fatalf("expected reason stored in audit record")
	}
}

func TestBulkAuthorization(t *testing.T) {
	env := newTestEnv(t)
	approveEntry(t, env, createEntry(t, env, "alice", "2024-01-02", 4))

	// project-scoped lock by a non-approver fails
	filter := repo.RangeFilter{From: "2024-01-01", To: "2024-01-07", ProjectID: "proj-1"}
	_, err := env.Engine.Lock(env.Ctx, "dave", filter, false)
	var forbidden auth.ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}

	// cross-project lock needs admin
	wide := repo.RangeFilter{From: "2024-01-01", To: "2024-01-07"}
	if _, err := env.Engine.Lock(env.Ctx, "bob", wide, false); !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError for non-admin cross-project lock, got %v", err)
	}
	res, err := env.Engine.Lock(env.Ctx, "carol", wide, false)
	if err != nil || res.AffectedCount != 1 {
		t.Fatalf("admin lock: %v count=%d", err, res.AffectedCount)
	}
}

func countStatus(t *testing.T, env testEnv, status domain.Status) int {
	t.Helper()
	var n int
	if err := env.Engine.DB.QueryRowContext(env.Ctx, `SELECT COUNT(*) FROM entries WHERE status=?`, string(status)).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
