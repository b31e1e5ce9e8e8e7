package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"timecard/internal/config"
	"timecard/internal/db"
	"timecard/internal/domain"
	"timecard/internal/engine"
	"timecard/internal/migrate"
	"timecard/internal/reports"
)

const testJWTSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())

	ctx := context.Background()
	for _, u := range []engine.UserCreateOptions{
		{ID: "alice", Name: "Alice"},
		{ID: "bob", Name: "Bob"},
		{ID: "carol", Name: "Carol", Admin: true},
		{ID: "dave", Name: "Dave"},
	} {
		if _, err := e.CreateUser(ctx, u); err != nil {
			t.Fatalf("seed user %s: %v", u.ID, err)
		}
	}
	if _, err := e.CreateProject(ctx, engine.ProjectCreateOptions{
		ID: "proj-1", Name: "Core", DefaultApprover: "bob",
	}); err != nil {
		t.Fatalf("seed project: %v", err)
	}

	handler, err := New(Config{
		Engine:  e,
		Reports: reports.Service{Repo: e.Repo},
		Auth: AuthConfig{
			JWTSecret:              testJWTSecret,
			AllowLegacyActorHeader: true,
		},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(testSrv.Close)
	return testSrv
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func asActor(id string) map[string]string {
	return map[string]string{"X-Actor-Id": id}
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, string(data))
	}
	return envelope.Error.Code
}

func createEntryHTTP(t *testing.T, srv *testServer, actor, date string, hours float64) domain.TimesheetEntry {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/entries", map[string]any{
		"project_id":  "proj-1",
		"work_date":   date,
		"hours":       hours,
		"description": "feature work",
	}, asActor(actor))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create entry status %d: %s", res.StatusCode, string(data))
	}
	var entry domain.TimesheetEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("unmarshal entry: %v", err)
	}
	return entry
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/entries", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d: %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "unauthorized" {
		t.Fatalf("unexpected error code %q", code)
	}

	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health must not require auth, got %d", res.StatusCode)
	}
}

func TestJWTAuth(t *testing.T) {
	srv := newTestServer(t)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/entries", map[string]any{
		"project_id":  "proj-1",
		"work_date":   "2024-01-02",
		"hours":       8,
		"description": "feature work",
	}, map[string]string{"Authorization": "Bearer " + signed})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create via jwt status %d: %s", res.StatusCode, string(data))
	}
	var entry domain.TimesheetEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatal(err)
	}
	if entry.UserID != "alice" {
		t.Fatalf("owner from token subject, got %q", entry.UserID)
	}

	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/entries", nil, map[string]string{
		"Authorization": "Bearer not-a-token",
	})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", res.StatusCode)
	}
}

func TestEntryLifecycleHTTP(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	entry := createEntryHTTP(t, srv, "alice", "2024-01-02", 8)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/entries/"+entry.ID+"/submit", map[string]any{}, asActor("alice"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("submit status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/entries/"+entry.ID+"/approve", map[string]any{}, asActor("bob"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("approve status %d: %s", res.StatusCode, string(data))
	}
	var approved domain.TimesheetEntry
	if err := json.Unmarshal(data, &approved); err != nil {
		t.Fatal(err)
	}
	if approved.Status != domain.StatusApproved || approved.ApprovedBy == nil || *approved.ApprovedBy != "bob" {
		t.Fatalf("unexpected approved entry %+v", approved)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/approvals/pending?from=2024-01-01&to=2024-01-31", nil, asActor("bob"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("pending status %d: %s", res.StatusCode, string(data))
	}
	var pending []domain.TimesheetEntry
	if err := json.Unmarshal(data, &pending); err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Fatalf("approved entry still pending: %+v", pending)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	entry := createEntryHTTP(t, srv, "alice", "2024-01-02", 8)

	// daily cap breach is 422
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/entries", map[string]any{
		"project_id":  "proj-1",
		"work_date":   "2024-01-02",
		"hours":       6,
		"description": "more work",
	}, asActor("alice"))
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for cap breach, got %d: %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "daily_cap_exceeded" {
		t.Fatalf("unexpected code %q", code)
	}

	// another user's draft reads as missing
	res, _ = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/entries/"+entry.ID, map[string]any{"hours": 4}, asActor("dave"))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign draft edit, got %d", res.StatusCode)
	}

	// submitting someone else's entry is forbidden
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/entries/"+entry.ID+"/submit", map[string]any{}, asActor("dave"))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign submit, got %d: %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "forbidden" {
		t.Fatalf("unexpected code %q", code)
	}

	// rejecting without a comment is 400
	doJSON(t, client, http.MethodPost, srv.URL+"/v0/entries/"+entry.ID+"/submit", map[string]any{}, asActor("alice"))
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/entries/"+entry.ID+"/reject", map[string]any{}, asActor("bob"))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for comment-less reject, got %d: %s", res.StatusCode, string(data))
	}

	// approving twice is an invalid transition
	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/v0/entries/"+entry.ID+"/approve", map[string]any{}, asActor("bob"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("approve status %d", res.StatusCode)
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/entries/"+entry.ID+"/approve", map[string]any{}, asActor("bob"))
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for double approve, got %d: %s", res.StatusCode, string(data))
	}
	if code := errorCode(t, data); code != "invalid_state" {
		t.Fatalf("unexpected code %q", code)
	}

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/entries/no-such-id", nil, asActor("alice"))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown entry, got %d", res.StatusCode)
	}
}

func TestLockFlowHTTP(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	entry := createEntryHTTP(t, srv, "alice", "2024-01-02", 8)
	doJSON(t, client, http.MethodPost, srv.URL+"/v0/entries/"+entry.ID+"/submit", map[string]any{}, asActor("alice"))
	doJSON(t, client, http.MethodPost, srv.URL+"/v0/entries/"+entry.ID+"/approve", map[string]any{}, asActor("bob"))

	lockReq := map[string]any{
		"from": "2024-01-01", "to": "2024-01-31", "project_id": "proj-1",
	}

	// preview counts without mutating
	preview := map[string]any{"from": "2024-01-01", "to": "2024-01-31", "project_id": "proj-1", "preview": true}
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/locks", preview, asActor("bob"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("preview status %d: %s", res.StatusCode, string(data))
	}
	var result struct {
		AffectedCount int64 `json:"affected_count"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatal(err)
	}
	if result.AffectedCount != 1 {
		t.Fatalf("preview affected_count = %d", result.AffectedCount)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/locks", lockReq, asActor("bob"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("lock status %d: %s", res.StatusCode, string(data))
	}
	got, err := srv.Engine.GetEntry(context.Background(), entry.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusLocked {
		t.Fatalf("entry status after lock = %s", got.Status)
	}

	// cross-project lock needs admin
	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/v0/locks", map[string]any{
		"from": "2024-01-01", "to": "2024-01-31",
	}, asActor("bob"))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin cross-project lock, got %d", res.StatusCode)
	}

	// unlock requires a reason
	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/v0/locks/release", lockReq, asActor("bob"))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for reason-less unlock, got %d", res.StatusCode)
	}
	unlockReq := map[string]any{
		"from": "2024-01-01", "to": "2024-01-31", "project_id": "proj-1", "reason": "payroll correction",
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/locks/release", unlockReq, asActor("bob"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("unlock status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/audit?action=UNLOCK", nil, asActor("carol"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("audit status %d: %s", res.StatusCode, string(data))
	}
	var records []domain.AuditRecord
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].AfterJSON == nil || !strings.Contains(*records[0].AfterJSON, "payroll correction") {
		t.Fatalf("unexpected audit records %+v", records)
	}
}

func TestReportEndpoints(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	createEntryHTTP(t, srv, "alice", "2024-01-02", 8)

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/reports/missing?from=2024-01-02&to=2024-01-02", nil, asActor("carol"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("missing report status %d: %s", res.StatusCode, string(data))
	}
	var missing struct {
		Rows    []map[string]any `json:"rows"`
		Summary map[string]any   `json:"summary"`
	}
	if err := json.Unmarshal(data, &missing); err != nil {
		t.Fatalf("unmarshal missing report: %v (%s)", err, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/reports/overtime?from=2024-01-01&to=2024-01-31&format=csv", nil, asActor("carol"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("overtime csv status %d: %s", res.StatusCode, string(data))
	}
	if ct := res.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.HasPrefix(string(data), "user_id,date,total_hours") {
		t.Fatalf("unexpected csv header: %s", string(data))
	}
}
