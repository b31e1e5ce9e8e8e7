package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"timecard/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const entryColumns = `id,user_id,project_id,task_id,work_date,hours,description,ticket_ref,task_type,status,submitted_at,approved_at,approved_by,approver_comment,created_at,updated_at`

func scanEntry(scan func(dest ...any) error) (domain.TimesheetEntry, error) {
	var e domain.TimesheetEntry
	var taskID, description, ticketRef, submittedAt, approvedAt, approvedBy, approverComment sql.NullString
	var status string
	err := scan(&e.ID, &e.UserID, &e.ProjectID, &taskID, &e.WorkDate, &e.Hours, &description, &ticketRef,
		&e.TaskType, &status, &submittedAt, &approvedAt, &approvedBy, &approverComment, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	if err != nil {
		return e, err
	}
	e.Status = domain.Status(status)
	if taskID.Valid {
		e.TaskID = &taskID.String
	}
	if description.Valid {
		e.Description = description.String
	}
	if ticketRef.Valid {
		e.TicketRef = &ticketRef.String
	}
	if submittedAt.Valid {
		e.SubmittedAt = &submittedAt.String
	}
	if approvedAt.Valid {
		e.ApprovedAt = &approvedAt.String
	}
	if approvedBy.Valid {
		e.ApprovedBy = &approvedBy.String
	}
	if approverComment.Valid {
		e.ApproverComment = &approverComment.String
	}
	return e, nil
}

func (r Repo) InsertEntry(ctx context.Context, tx *sql.Tx, e domain.TimesheetEntry) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO entries(`+entryColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.UserID, e.ProjectID, nullableStringPtr(e.TaskID), e.WorkDate, e.Hours, nullable(e.Description),
		nullableStringPtr(e.TicketRef), e.TaskType, string(e.Status), nullableStringPtr(e.SubmittedAt),
		nullableStringPtr(e.ApprovedAt), nullableStringPtr(e.ApprovedBy), nullableStringPtr(e.ApproverComment),
		e.CreatedAt, e.UpdatedAt)
	return err
}

func (r Repo) UpdateEntry(ctx context.Context, tx *sql.Tx, e domain.TimesheetEntry) error {
	res, err := tx.ExecContext(ctx, `UPDATE entries SET task_id=?, work_date=?, hours=?, description=?, ticket_ref=?, task_type=?, status=?, submitted_at=?, approved_at=?, approved_by=?, approver_comment=?, updated_at=? WHERE id=?`,
		nullableStringPtr(e.TaskID), e.WorkDate, e.Hours, nullable(e.Description), nullableStringPtr(e.TicketRef),
		e.TaskType, string(e.Status), nullableStringPtr(e.SubmittedAt), nullableStringPtr(e.ApprovedAt),
		nullableStringPtr(e.ApprovedBy), nullableStringPtr(e.ApproverComment), e.UpdatedAt, e.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteEntry(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetEntry(ctx context.Context, id string) (domain.TimesheetEntry, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id=?`, id)
	return scanEntry(row.Scan)
}

func (r Repo) GetEntryTx(ctx context.Context, tx *sql.Tx, id string) (domain.TimesheetEntry, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id=?`, id)
	return scanEntry(row.Scan)
}

// SumHoursForDay returns the total hours the user already has logged on
// workDate, across all statuses. excludeID removes one entry from the sum so
// updates can swap old hours for new.
func (r Repo) SumHoursForDay(ctx context.Context, userID, workDate, excludeID string) (float64, error) {
	query := `SELECT COALESCE(SUM(hours),0) FROM entries WHERE user_id=? AND work_date=?`
	args := []any{userID, workDate}
	if excludeID != "" {
		query += ` AND id<>?`
		args = append(args, excludeID)
	}
	var total float64
	if err := r.DB.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

type EntryFilters struct {
	UserID    string
	ProjectID string
	From      string
	To        string
	Status    string
}

func (r Repo) ListEntries(ctx context.Context, f EntryFilters) ([]domain.TimesheetEntry, error) {
	var clauses []string
	var args []any
	if f.UserID != "" {
		clauses = append(clauses, "user_id=?")
		args = append(args, f.UserID)
	}
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.From != "" {
		clauses = append(clauses, "work_date>=?")
		args = append(args, f.From)
	}
	if f.To != "" {
		clauses = append(clauses, "work_date<=?")
		args = append(args, f.To)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + entryColumns + ` FROM entries ` + where + ` ORDER BY work_date ASC, project_id ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TimesheetEntry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

type PendingFilters struct {
	ApproverID string
	From       string
	To         string
	ProjectID  string
	UserID     string
}

// ListPending returns SUBMITTED and REJECTED entries on projects where the
// approver is the default approver. REJECTED rows stay visible so approvers
// can track items awaiting resubmission.
func (r Repo) ListPending(ctx context.Context, f PendingFilters) ([]domain.TimesheetEntry, error) {
	clauses := []string{"p.default_approver=?", "e.status IN ('SUBMITTED','REJECTED')", "e.work_date>=?", "e.work_date<=?"}
	args := []any{f.ApproverID, f.From, f.To}
	if f.ProjectID != "" {
		clauses = append(clauses, "e.project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.UserID != "" {
		clauses = append(clauses, "e.user_id=?")
		args = append(args, f.UserID)
	}
	query := `SELECT ` + prefixColumns("e", entryColumns) + ` FROM entries e
JOIN projects p ON p.id=e.project_id
WHERE ` + strings.Join(clauses, " AND ") + `
ORDER BY e.work_date ASC, e.user_id ASC, e.project_id ASC, e.id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TimesheetEntry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// RangeFilter selects entries by inclusive date bounds, optionally narrowed
// to one project or one user. It is the unit the bulk engine operates on.
type RangeFilter struct {
	From      string `json:"from"`
	To        string `json:"to"`
	ProjectID string `json:"project_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

func (f RangeFilter) clauses() ([]string, []any) {
	clauses := []string{"work_date>=?", "work_date<=?"}
	args := []any{f.From, f.To}
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.UserID != "" {
		clauses = append(clauses, "user_id=?")
		args = append(args, f.UserID)
	}
	return clauses, args
}

// CountMatching counts entries in the filter currently holding status.
func (r Repo) CountMatching(ctx context.Context, tx *sql.Tx, status domain.Status, f RangeFilter) (int64, error) {
	clauses, args := f.clauses()
	clauses = append([]string{"status=?"}, clauses...)
	args = append([]any{string(status)}, args...)
	query := `SELECT COUNT(*) FROM entries WHERE ` + strings.Join(clauses, " AND ")
	var n int64
	var err error
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&n)
	} else {
		err = r.DB.QueryRowContext(ctx, query, args...).Scan(&n)
	}
	return n, err
}

// TransitionMatching moves every entry in the filter from one status to
// another with a single conditional UPDATE. Rows that no longer hold the
// from-status at commit time are left alone, which is what makes overlapping
// concurrent lock/unlock calls safe.
func (r Repo) TransitionMatching(ctx context.Context, tx *sql.Tx, from, to domain.Status, f RangeFilter, updatedAt string) (int64, error) {
	clauses, args := f.clauses()
	clauses = append([]string{"status=?"}, clauses...)
	args = append([]any{string(to), updatedAt, string(from)}, args...)
	query := `UPDATE entries SET status=?, updated_at=? WHERE ` + strings.Join(clauses, " AND ")
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UserDay is one (user, date) pair that has at least one entry.
type UserDay struct {
	UserID   string
	WorkDate string
}

// ListUserDays returns the distinct (user, work_date) pairs with entries of
// any status inside the range.
func (r Repo) ListUserDays(ctx context.Context, from, to string) ([]UserDay, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT DISTINCT user_id, work_date FROM entries WHERE work_date>=? AND work_date<=?`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []UserDay
	for rows.Next() {
		var d UserDay
		if err := rows.Scan(&d.UserID, &d.WorkDate); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

// DayTotal is the summed hours for one user on one date.
type DayTotal struct {
	UserID     string
	WorkDate   string
	TotalHours float64
}

// ListDayTotalsOver returns (user, date) sums above cap, all statuses
// included, ordered for report output.
func (r Repo) ListDayTotalsOver(ctx context.Context, from, to string, cap float64) ([]DayTotal, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT user_id, work_date, SUM(hours) AS total
FROM entries WHERE work_date>=? AND work_date<=?
GROUP BY user_id, work_date
HAVING SUM(hours) > ?
ORDER BY user_id ASC, work_date ASC`, from, to, cap)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []DayTotal
	for rows.Next() {
		var t DayTotal
		if err := rows.Scan(&t.UserID, &t.WorkDate, &t.TotalHours); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ",")
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}
