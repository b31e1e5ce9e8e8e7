package timecardsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Timecard HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Entry represents the API timesheet entry model.
type Entry struct {
	ID              string  `json:"id"`
	UserID          string  `json:"user_id"`
	ProjectID       string  `json:"project_id"`
	TaskID          string  `json:"task_id,omitempty"`
	WorkDate        string  `json:"work_date"`
	Hours           float64 `json:"hours"`
	Description     string  `json:"description"`
	TicketRef       string  `json:"ticket_ref,omitempty"`
	TaskType        string  `json:"task_type"`
	Status          string  `json:"status"`
	ApproverComment string  `json:"approver_comment,omitempty"`
	SubmittedAt     string  `json:"submitted_at,omitempty"`
	ApprovedAt      string  `json:"approved_at,omitempty"`
	ApprovedBy      string  `json:"approved_by,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

// NewEntry carries the fields needed to create a draft.
type NewEntry struct {
	UserID      string  `json:"user_id,omitempty"`
	ProjectID   string  `json:"project_id"`
	TaskID      string  `json:"task_id,omitempty"`
	WorkDate    string  `json:"work_date"`
	Hours       float64 `json:"hours"`
	Description string  `json:"description,omitempty"`
	TicketRef   string  `json:"ticket_ref,omitempty"`
	TaskType    string  `json:"task_type,omitempty"`
}

// EntryPatch updates a draft; nil fields are left unchanged.
type EntryPatch struct {
	Hours       *float64 `json:"hours,omitempty"`
	Description *string  `json:"description,omitempty"`
	TicketRef   *string  `json:"ticket_ref,omitempty"`
	TaskID      *string  `json:"task_id,omitempty"`
	TaskType    *string  `json:"task_type,omitempty"`
}

// BulkFilter selects entries for lock and unlock operations.
type BulkFilter struct {
	From      string `json:"from"`
	To        string `json:"to"`
	ProjectID string `json:"project_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Preview   bool   `json:"preview,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// BulkResult reports how many entries a bulk operation touched.
type BulkResult struct {
	AffectedCount int64 `json:"affected_count"`
}

// MissingReport lists user-days without any entry.
type MissingReport struct {
	Rows []struct {
		UserID string `json:"user_id"`
		Date   string `json:"date"`
	} `json:"rows"`
	Summary struct {
		TotalMissingDays   int `json:"total_missing_days"`
		AffectedUsers      int `json:"affected_users"`
		WorkingDaysInRange int `json:"working_days_in_range"`
	} `json:"summary"`
}

// OvertimeReport lists user-days over the hour cap.
type OvertimeReport struct {
	Rows []struct {
		UserID     string  `json:"user_id"`
		Date       string  `json:"date"`
		TotalHours float64 `json:"total_hours"`
	} `json:"rows"`
	Cap float64 `json:"cap"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateEntry creates a draft entry.
func (c *Client) CreateEntry(ctx context.Context, e NewEntry) (Entry, error) {
	var resp Entry
	err := c.do(ctx, http.MethodPost, "v0/entries", e, &resp)
	return resp, err
}

// GetEntry fetches one entry by id.
func (c *Client) GetEntry(ctx context.Context, id string) (Entry, error) {
	var resp Entry
	err := c.do(ctx, http.MethodGet, "v0/entries/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ListEntries lists entries, optionally filtered.
func (c *Client) ListEntries(ctx context.Context, userID, projectID, from, to, status string) ([]Entry, error) {
	q := url.Values{}
	setIf(q, "user_id", userID)
	setIf(q, "project_id", projectID)
	setIf(q, "from", from)
	setIf(q, "to", to)
	setIf(q, "status", status)
	endpoint := "v0/entries"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp []Entry
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// UpdateEntry edits a draft or rejected entry.
func (c *Client) UpdateEntry(ctx context.Context, id string, patch EntryPatch) (Entry, error) {
	var resp Entry
	err := c.do(ctx, http.MethodPatch, "v0/entries/"+url.PathEscape(id), patch, &resp)
	return resp, err
}

// DeleteEntry deletes a draft or rejected entry.
func (c *Client) DeleteEntry(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "v0/entries/"+url.PathEscape(id), nil, nil)
}

// Submit moves an entry into the approval queue.
func (c *Client) Submit(ctx context.Context, id string) (Entry, error) {
	var resp Entry
	err := c.do(ctx, http.MethodPost, "v0/entries/"+url.PathEscape(id)+"/submit", map[string]any{}, &resp)
	return resp, err
}

// Approve approves a submitted entry. Comment is optional.
func (c *Client) Approve(ctx context.Context, id, comment string) (Entry, error) {
	var resp Entry
	err := c.do(ctx, http.MethodPost, "v0/entries/"+url.PathEscape(id)+"/approve", map[string]any{"comment": comment}, &resp)
	return resp, err
}

// Reject rejects a submitted entry. Comment is mandatory.
func (c *Client) Reject(ctx context.Context, id, comment string) (Entry, error) {
	var resp Entry
	err := c.do(ctx, http.MethodPost, "v0/entries/"+url.PathEscape(id)+"/reject", map[string]any{"comment": comment}, &resp)
	return resp, err
}

// Pending lists entries awaiting the caller's approval in the range.
func (c *Client) Pending(ctx context.Context, from, to, projectID, userID string) ([]Entry, error) {
	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)
	setIf(q, "project_id", projectID)
	setIf(q, "user_id", userID)
	var resp []Entry
	err := c.do(ctx, http.MethodGet, "v0/approvals/pending?"+q.Encode(), nil, &resp)
	return resp, err
}

// Lock locks approved entries matching the filter.
func (c *Client) Lock(ctx context.Context, f BulkFilter) (BulkResult, error) {
	var resp BulkResult
	err := c.do(ctx, http.MethodPost, "v0/locks", f, &resp)
	return resp, err
}

// Unlock releases locked entries matching the filter.
func (c *Client) Unlock(ctx context.Context, f BulkFilter) (BulkResult, error) {
	var resp BulkResult
	err := c.do(ctx, http.MethodPost, "v0/locks/release", f, &resp)
	return resp, err
}

// MissingTimesheets runs the missing-timesheet report.
func (c *Client) MissingTimesheets(ctx context.Context, from, to, region string) (MissingReport, error) {
	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)
	setIf(q, "region", region)
	var resp MissingReport
	err := c.do(ctx, http.MethodGet, "v0/reports/missing?"+q.Encode(), nil, &resp)
	return resp, err
}

// Overtime runs the overtime report. Zero cap uses the server default.
func (c *Client) Overtime(ctx context.Context, from, to string, cap float64) (OvertimeReport, error) {
	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)
	if cap > 0 {
		q.Set("cap", fmt.Sprintf("%g", cap))
	}
	var resp OvertimeReport
	err := c.do(ctx, http.MethodGet, "v0/reports/overtime?"+q.Encode(), nil, &resp)
	return resp, err
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
