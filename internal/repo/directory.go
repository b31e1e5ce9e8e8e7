package repo

import (
	"context"
	"database/sql"
	"strings"

	"timecard/internal/domain"
)

// Directory data: users, projects and holidays are read-only master data for
// the engine. The write paths below exist so workspaces can be seeded.

func (r Repo) InsertUser(ctx context.Context, u domain.User) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO users(id,name,active,admin,created_at) VALUES (?,?,?,?,?)`,
		u.ID, u.Name, boolInt(u.Active), boolInt(u.Admin), u.CreatedAt)
	return err
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	var active, admin int
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,active,admin,created_at FROM users WHERE id=?`, id).
		Scan(&u.ID, &u.Name, &active, &admin, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	u.Active = active != 0
	u.Admin = admin != 0
	return u, err
}

func (r Repo) ListUsers(ctx context.Context, activeOnly bool) ([]domain.User, error) {
	query := `SELECT id,name,active,admin,created_at FROM users`
	if activeOnly {
		query += ` WHERE active=1`
	}
	query += ` ORDER BY id ASC`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		var u domain.User
		var active, admin int
		if err := rows.Scan(&u.ID, &u.Name, &active, &admin, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.Active = active != 0
		u.Admin = admin != 0
		res = append(res, u)
	}
	return res, rows.Err()
}

func (r Repo) SetUserActive(ctx context.Context, id string, active bool) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET active=? WHERE id=?`, boolInt(active), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertProject(ctx context.Context, p domain.Project) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO projects(id,name,default_approver,billable,created_at) VALUES (?,?,?,?,?)`,
		p.ID, p.Name, p.DefaultApprover, boolInt(p.Billable), p.CreatedAt)
	return err
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	var p domain.Project
	var billable int
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,default_approver,billable,created_at FROM projects WHERE id=?`, id).
		Scan(&p.ID, &p.Name, &p.DefaultApprover, &billable, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	p.Billable = billable != 0
	return p, err
}

func (r Repo) GetProjectTx(ctx context.Context, tx *sql.Tx, id string) (domain.Project, error) {
	var p domain.Project
	var billable int
	err := tx.QueryRowContext(ctx, `SELECT id,name,default_approver,billable,created_at FROM projects WHERE id=?`, id).
		Scan(&p.ID, &p.Name, &p.DefaultApprover, &billable, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	p.Billable = billable != 0
	return p, err
}

func (r Repo) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,default_approver,billable,created_at FROM projects ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		var p domain.Project
		var billable int
		if err := rows.Scan(&p.ID, &p.Name, &p.DefaultApprover, &billable, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Billable = billable != 0
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) InsertHoliday(ctx context.Context, h domain.Holiday) error {
	_, err := r.DB.ExecContext(ctx, `INSERT OR IGNORE INTO holidays(holiday_date,region,name) VALUES (?,?,?)`,
		h.Date, h.Region, h.Name)
	return err
}

func (r Repo) ListHolidays(ctx context.Context, region, from, to string) ([]domain.Holiday, error) {
	clauses := []string{"1=1"}
	var args []any
	if region != "" {
		clauses = append(clauses, "region=?")
		args = append(args, region)
	}
	if from != "" {
		clauses = append(clauses, "holiday_date>=?")
		args = append(args, from)
	}
	if to != "" {
		clauses = append(clauses, "holiday_date<=?")
		args = append(args, to)
	}
	query := `SELECT holiday_date,region,name FROM holidays WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY holiday_date ASC, region ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Holiday
	for rows.Next() {
		var h domain.Holiday
		if err := rows.Scan(&h.Date, &h.Region, &h.Name); err != nil {
			return nil, err
		}
		res = append(res, h)
	}
	return res, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
