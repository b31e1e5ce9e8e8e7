package engine

import (
	"context"

	"timecard/internal/domain"
)

// UserCreateOptions are parameters for registering a user.
type UserCreateOptions struct {
	ID     string
	Name   string
	Active *bool
	Admin  bool
}

func (e Engine) CreateUser(ctx context.Context, opts UserCreateOptions) (domain.User, error) {
	if opts.ID == "" {
		return domain.User{}, &domain.ValidationError{Field: "id", Reason: "required"}
	}
	u := domain.User{
		ID:        opts.ID,
		Name:      opts.Name,
		Active:    true,
		Admin:     opts.Admin,
		CreatedAt: e.nowString(),
	}
	if opts.Active != nil {
		u.Active = *opts.Active
	}
	if err := e.Repo.InsertUser(ctx, u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// ProjectCreateOptions are parameters for registering a project.
type ProjectCreateOptions struct {
	ID              string
	Name            string
	DefaultApprover string
	Billable        bool
}

// CreateProject registers a project. The default approver must be a known
// user since approvals resolve against it.
func (e Engine) CreateProject(ctx context.Context, opts ProjectCreateOptions) (domain.Project, error) {
	if opts.ID == "" {
		return domain.Project{}, &domain.ValidationError{Field: "id", Reason: "required"}
	}
	if opts.DefaultApprover == "" {
		return domain.Project{}, &domain.ValidationError{Field: "default_approver", Reason: "required"}
	}
	if _, err := e.Repo.GetUser(ctx, opts.DefaultApprover); err != nil {
		return domain.Project{}, err
	}
	p := domain.Project{
		ID:              opts.ID,
		Name:            opts.Name,
		DefaultApprover: opts.DefaultApprover,
		Billable:        opts.Billable,
		CreatedAt:       e.nowString(),
	}
	if err := e.Repo.InsertProject(ctx, p); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

func (e Engine) AddHoliday(ctx context.Context, h domain.Holiday) (domain.Holiday, error) {
	if h.Date == "" {
		return domain.Holiday{}, &domain.ValidationError{Field: "date", Reason: "required"}
	}
	if h.Region == "" {
		return domain.Holiday{}, &domain.ValidationError{Field: "region", Reason: "required"}
	}
	if err := e.Repo.InsertHoliday(ctx, h); err != nil {
		return domain.Holiday{}, err
	}
	return h, nil
}
