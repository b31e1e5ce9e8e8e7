package server

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"timecard/internal/domain"
	"timecard/internal/engine"
	"timecard/internal/engine/auth"
	"timecard/internal/repo"
	"timecard/internal/reports"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	Reports  reports.Service
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"daily_cap_exceeded"`
	Message string         `json:"message" example:"daily cap exceeded for alice on 2024-01-10"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Timecard API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Timecard API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerEntries(group, cfg.Engine)
	registerWorkflow(group, cfg.Engine)
	registerLocks(group, cfg.Engine)
	registerReports(group, cfg.Reports, cfg.Engine)
	registerAudit(group, cfg.Engine)
	registerDirectory(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var fe auth.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"resource": fe.Resource})
	}
	var capErr *domain.DailyCapError
	if errors.As(err, &capErr) {
		return newAPIError(http.StatusUnprocessableEntity, "daily_cap_exceeded", err.Error(), map[string]any{
			"user_id":   capErr.UserID,
			"work_date": capErr.WorkDate,
			"total":     capErr.Total,
			"cap":       capErr.Cap,
		})
	}
	var ise *domain.InvalidStateError
	if errors.As(err, &ise) {
		return newAPIError(http.StatusConflict, "invalid_state", err.Error(), map[string]any{
			"entry_id": ise.EntryID,
			"status":   string(ise.From),
			"action":   string(ise.Action),
		})
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{
			"field":  ve.Field,
			"reason": ve.Reason,
		})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "invalid_state"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerEntries(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-entry",
		Method:        http.MethodPost,
		Path:          "/entries",
		Summary:       "Create draft entry",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateEntryRequest `json:"body"`
	}) (*struct {
		Body domain.TimesheetEntry `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		userID := input.Body.UserID
		if userID == "" {
			userID = actorID
		}
		opts := engine.EntryCreateOptions{
			UserID:      userID,
			ProjectID:   input.Body.ProjectID,
			WorkDate:    input.Body.WorkDate,
			Hours:       input.Body.Hours,
			Description: stringOrEmpty(input.Body.Description),
			TaskType:    stringOrEmpty(input.Body.TaskType),
			ActorID:     actorID,
		}
		if input.Body.TaskID != nil {
			opts.TaskID = *input.Body.TaskID
		}
		if input.Body.TicketRef != nil {
			opts.TicketRef = *input.Body.TicketRef
		}
		entry, err := e.CreateDraft(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.TimesheetEntry `json:"body"`
		}{Body: entry}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-entries",
		Method:      http.MethodGet,
		Path:        "/entries",
		Summary:     "List entries",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		UserID    string `query:"user_id"`
		ProjectID string `query:"project_id"`
		From      string `query:"from"`
		To        string `query:"to"`
		Status    string `query:"status" enum:",DRAFT,SUBMITTED,APPROVED,REJECTED,LOCKED"`
	}) (*struct {
		Body []domain.TimesheetEntry `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.ListEntries(ctx, repo.EntryFilters{
			UserID:    input.UserID,
			ProjectID: input.ProjectID,
			From:      input.From,
			To:        input.To,
			Status:    input.Status,
		})
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.TimesheetEntry{}
		}
		return &struct {
			Body []domain.TimesheetEntry `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-entry",
		Method:      http.MethodGet,
		Path:        "/entries/{id}",
		Summary:     "Get entry",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.TimesheetEntry `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		entry, err := e.GetEntry(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.TimesheetEntry `json:"body"`
		}{Body: entry}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-entry",
		Method:      http.MethodPatch,
		Path:        "/entries/{id}",
		Summary:     "Update draft entry",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID   string             `path:"id"`
		Body UpdateEntryRequest `json:"body"`
	}) (*struct {
		Body domain.TimesheetEntry `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		entry, err := e.UpdateDraft(ctx, engine.EntryUpdateOptions{
			ID:          input.ID,
			ActorID:     actorID,
			Hours:       input.Body.Hours,
			Description: input.Body.Description,
			TicketRef:   input.Body.TicketRef,
			TaskID:      input.Body.TaskID,
			TaskType:    input.Body.TaskType,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.TimesheetEntry `json:"body"`
		}{Body: entry}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-entry",
		Method:        http.MethodDelete,
		Path:          "/entries/{id}",
		Summary:       "Delete draft entry",
		DefaultStatus: http.StatusNoContent,
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.Delete(ctx, actorID, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerWorkflow(api huma.API, e engine.Engine) {
	type entryPath struct {
		ID   string          `path:"id"`
		Body DecisionRequest `json:"body,omitempty"`
	}
	type entryOut struct {
		Body domain.TimesheetEntry `json:"body"`
	}

	huma.Register(api, huma.Operation{
		OperationID: "submit-entry",
		Method:      http.MethodPost,
		Path:        "/entries/{id}/submit",
		Summary:     "Submit entry for approval",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *entryPath) (*entryOut, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		entry, err := e.Submit(ctx, actorID, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &entryOut{Body: entry}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-entry",
		Method:      http.MethodPost,
		Path:        "/entries/{id}/approve",
		Summary:     "Approve submitted entry",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *entryPath) (*entryOut, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		entry, err := e.Approve(ctx, actorID, input.ID, input.Body.Comment)
		if err != nil {
			return nil, handleError(err)
		}
		return &entryOut{Body: entry}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reject-entry",
		Method:      http.MethodPost,
		Path:        "/entries/{id}/reject",
		Summary:     "Reject submitted entry",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *entryPath) (*entryOut, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		entry, err := e.Reject(ctx, actorID, input.ID, input.Body.Comment)
		if err != nil {
			return nil, handleError(err)
		}
		return &entryOut{Body: entry}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-pending",
		Method:      http.MethodGet,
		Path:        "/approvals/pending",
		Summary:     "List entries awaiting the approver",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		From      string `query:"from" required:"true"`
		To        string `query:"to" required:"true"`
		ProjectID string `query:"project_id"`
		UserID    string `query:"user_id"`
	}) (*struct {
		Body []domain.TimesheetEntry `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListPending(ctx, repo.PendingFilters{
			ApproverID: actorID,
			From:       input.From,
			To:         input.To,
			ProjectID:  input.ProjectID,
			UserID:     input.UserID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.TimesheetEntry{}
		}
		return &struct {
			Body []domain.TimesheetEntry `json:"body"`
		}{Body: items}, nil
	})
}

func registerLocks(api huma.API, e engine.Engine) {
	type bulkOut struct {
		Body engine.BulkResult `json:"body"`
	}

	huma.Register(api, huma.Operation{
		OperationID: "lock-entries",
		Method:      http.MethodPost,
		Path:        "/locks",
		Summary:     "Lock approved entries in a range",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
		},
	}, func(ctx context.Context, input *struct {
		Body BulkRequest `json:"body"`
	}) (*bulkOut, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.Lock(ctx, actorID, rangeFilter(input.Body), input.Body.Preview)
		if err != nil {
			return nil, handleError(err)
		}
		return &bulkOut{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "unlock-entries",
		Method:      http.MethodPost,
		Path:        "/locks/release",
		Summary:     "Unlock locked entries in a range",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
		},
	}, func(ctx context.Context, input *struct {
		Body BulkRequest `json:"body"`
	}) (*bulkOut, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.Unlock(ctx, actorID, rangeFilter(input.Body), input.Body.Preview, input.Body.Reason)
		if err != nil {
			return nil, handleError(err)
		}
		return &bulkOut{Body: res}, nil
	})
}

func rangeFilter(b BulkRequest) repo.RangeFilter {
	return repo.RangeFilter{From: b.From, To: b.To, ProjectID: b.ProjectID, UserID: b.UserID}
}

// reportOutput carries either JSON or CSV depending on the format query.
type reportOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

func registerReports(api huma.API, svc reports.Service, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "report-missing",
		Method:      http.MethodGet,
		Path:        "/reports/missing",
		Summary:     "Missing timesheet report",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		From         string `query:"from" required:"true"`
		To           string `query:"to" required:"true"`
		SkipWeekends bool   `query:"skip_weekends" default:"true"`
		Region       string `query:"region"`
		Format       string `query:"format" enum:",json,csv"`
	}) (*reportOutput, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		report, err := svc.MissingTimesheets(ctx, input.From, input.To, input.SkipWeekends, input.Region)
		if err != nil {
			return nil, handleError(err)
		}
		if input.Format == "csv" {
			return csvOutput(report.Header(), report.CSVRows())
		}
		return jsonOutput(report)
	})

	huma.Register(api, huma.Operation{
		OperationID: "report-overtime",
		Method:      http.MethodGet,
		Path:        "/reports/overtime",
		Summary:     "Overtime report",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		From   string  `query:"from" required:"true"`
		To     string  `query:"to" required:"true"`
		Cap    float64 `query:"cap"`
		Format string  `query:"format" enum:",json,csv"`
	}) (*reportOutput, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		capHours := input.Cap
		if capHours <= 0 && e.Config != nil {
			capHours = e.Config.Compliance.OvertimeCap
		}
		report, err := svc.Overtime(ctx, input.From, input.To, capHours)
		if err != nil {
			return nil, handleError(err)
		}
		if input.Format == "csv" {
			return csvOutput(report.Header(), report.CSVRows())
		}
		return jsonOutput(report)
	})
}

func jsonOutput(v any) (*reportOutput, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, handleError(err)
	}
	return &reportOutput{ContentType: "application/json", Body: data}, nil
}

func csvOutput(header []string, rows [][]string) (*reportOutput, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, handleError(err)
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, handleError(err)
	}
	w.Flush()
	return &reportOutput{ContentType: "text/csv", Body: buf.Bytes()}, nil
}

func registerAudit(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-audit",
		Method:      http.MethodGet,
		Path:        "/audit",
		Summary:     "List audit records",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Action string `query:"action" enum:",LOCK,UNLOCK"`
		Limit  int    `query:"limit" default:"100"`
	}) (*struct {
		Body []domain.AuditRecord `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListAudit(ctx, repo.AuditFilters{Action: input.Action, Limit: input.Limit})
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.AuditRecord{}
		}
		return &struct {
			Body []domain.AuditRecord `json:"body"`
		}{Body: items}, nil
	})
}

func registerDirectory(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-user",
		Method:        http.MethodPost,
		Path:          "/users",
		Summary:       "Create user",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateUserRequest `json:"body"`
	}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		u, err := e.CreateUser(ctx, engine.UserCreateOptions{
			ID:     input.Body.ID,
			Name:   input.Body.Name,
			Active: input.Body.Active,
			Admin:  input.Body.Admin,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List users",
	}, func(ctx context.Context, input *struct {
		Active bool `query:"active"`
	}) (*struct {
		Body []domain.User `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListUsers(ctx, input.Active)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.User{}
		}
		return &struct {
			Body []domain.User `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		p, err := e.CreateProject(ctx, engine.ProjectCreateOptions{
			ID:              input.Body.ID,
			Name:            input.Body.Name,
			DefaultApprover: input.Body.DefaultApprover,
			Billable:        input.Body.Billable,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Project `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListProjects(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Project{}
		}
		return &struct {
			Body []domain.Project `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-holiday",
		Method:        http.MethodPost,
		Path:          "/holidays",
		Summary:       "Create holiday",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateHolidayRequest `json:"body"`
	}) (*struct {
		Body domain.Holiday `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		h, err := e.AddHoliday(ctx, domain.Holiday{
			Date:   input.Body.Date,
			Region: input.Body.Region,
			Name:   input.Body.Name,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Holiday `json:"body"`
		}{Body: h}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-holidays",
		Method:      http.MethodGet,
		Path:        "/holidays",
		Summary:     "List holidays",
	}, func(ctx context.Context, input *struct {
		Region string `query:"region"`
		From   string `query:"from"`
		To     string `query:"to"`
	}) (*struct {
		Body []domain.Holiday `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListHolidays(ctx, input.Region, input.From, input.To)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Holiday{}
		}
		return &struct {
			Body []domain.Holiday `json:"body"`
		}{Body: items}, nil
	})
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	if !strings.HasPrefix(healthPath, "/") {
		healthPath = "/" + healthPath
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Timecard API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
