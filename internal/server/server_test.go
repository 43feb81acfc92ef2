package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"

	"rollplane/internal/config"
	"rollplane/internal/db"
	"rollplane/internal/engine"
	"rollplane/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
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
	handler, err := New(Config{Engine: e, BasePath: "/v1"})
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
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, []byte) {
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

func mustCreate(t *testing.T, client *http.Client, url string, body any) []byte {
	t.Helper()
	res, data := doJSON(t, client, http.MethodPost, url, body)
	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusCreated {
		t.Fatalf("POST %s: status %d body %s", url, res.StatusCode, data)
	}
	return data
}

// seedTopology registers an environment, a MySQL instance, a project, a
// database, and a sheet through the API.
func seedTopology(t *testing.T, srv *testServer) int64 {
	t.Helper()
	client := srv.Client()
	mustCreate(t, client, srv.URL+"/v1/environments", map[string]any{"id": "prod", "title": "Prod"})
	mustCreate(t, client, srv.URL+"/v1/instances", map[string]any{
		"id": "mysql-prod", "environment_id": "prod", "engine": "MYSQL",
	})
	mustCreate(t, client, srv.URL+"/v1/projects", map[string]any{"id": "shop", "title": "Shop"})
	mustCreate(t, client, srv.URL+"/v1/instances/mysql-prod/databases", map[string]any{
		"name": "shop_db", "project_id": "shop",
	})
	data := mustCreate(t, client, srv.URL+"/v1/projects/shop/sheets", map[string]any{
		"title": "change", "statement": "ALTER TABLE orders ADD COLUMN note TEXT;",
	})
	var sheet struct {
		UID int64 `json:"uid"`
	}
	if err := json.Unmarshal(data, &sheet); err != nil {
		t.Fatalf("unmarshal sheet: %v", err)
	}
	if sheet.UID == 0 {
		t.Fatalf("sheet uid missing in %s", data)
	}
	return sheet.UID
}

func decodeError(t *testing.T, data []byte) (string, string) {
	t.Helper()
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope %s: %v", data, err)
	}
	return envelope.Error.Code, envelope.Error.Message
}

func TestHealth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/health", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, data)
	}
}

func TestPlanLifecycleOverAPI(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	sheetUID := seedTopology(t, srv)

	data := mustCreate(t, client, srv.URL+"/v1/projects/shop/plans", map[string]any{
		"title": "Add note column",
		"steps": []map[string]any{{
			"specs": []map[string]any{{
				"id": "spec-1",
				"change_database_config": map[string]any{
					"target":         "instances/mysql-prod/databases/shop_db",
					"sheet":          fmt.Sprintf("projects/shop/sheets/%d", sheetUID),
					"type":           "MIGRATE",
					"schema_version": "v1",
				},
			}},
		}},
	})
	var plan PlanBody
	if err := json.Unmarshal(data, &plan); err != nil {
		t.Fatalf("unmarshal plan: %v", err)
	}
	if plan.Name != "projects/shop/plans/1" {
		t.Fatalf("plan name = %q", plan.Name)
	}
	if plan.Rollout == "" {
		t.Fatalf("plan missing rollout reference: %s", data)
	}

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/"+plan.Rollout, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get rollout status %d: %s", res.StatusCode, data)
	}
	var rollout RolloutBody
	if err := json.Unmarshal(data, &rollout); err != nil {
		t.Fatalf("unmarshal rollout: %v", err)
	}
	if len(rollout.Stages) != 1 || rollout.Stages[0].Title != "Prod Stage" {
		t.Fatalf("unexpected stages: %s", data)
	}
	task := rollout.Stages[0].Tasks[0]
	if task.Type != "DATABASE_SCHEMA_UPDATE" || task.Status != "PENDING_APPROVAL" {
		t.Fatalf("unexpected task: %+v", task)
	}
	if task.Sheet != fmt.Sprintf("projects/shop/sheets/%d", sheetUID) {
		t.Fatalf("task sheet = %q", task.Sheet)
	}
	if task.Target != "instances/mysql-prod/databases/shop_db" {
		t.Fatalf("task target = %q", task.Target)
	}

	// Swap the sheet through PATCH.
	sheetData := mustCreate(t, client, srv.URL+"/v1/projects/shop/sheets", map[string]any{
		"statement": "ALTER TABLE orders ADD COLUMN memo TEXT;",
	})
	var newSheet struct {
		UID int64 `json:"uid"`
	}
	if err := json.Unmarshal(sheetData, &newSheet); err != nil {
		t.Fatalf("unmarshal sheet: %v", err)
	}
	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/"+plan.Name, map[string]any{
		"steps": []map[string]any{{
			"specs": []map[string]any{{
				"id": "spec-1",
				"change_database_config": map[string]any{
					"target":         "instances/mysql-prod/databases/shop_db",
					"sheet":          fmt.Sprintf("projects/shop/sheets/%d", newSheet.UID),
					"type":           "MIGRATE",
					"schema_version": "v1",
				},
			}},
		}},
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("patch plan status %d: %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/"+plan.Rollout, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get rollout status %d: %s", res.StatusCode, data)
	}
	if err := json.Unmarshal(data, &rollout); err != nil {
		t.Fatalf("unmarshal rollout: %v", err)
	}
	if got := rollout.Stages[0].Tasks[0].Sheet; got != fmt.Sprintf("projects/shop/sheets/%d", newSheet.UID) {
		t.Fatalf("task sheet after patch = %q", got)
	}
}

func TestErrorEnvelopes(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	sheetUID := seedTopology(t, srv)

	// Unknown plan renders 404 not_found.
	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/projects/shop/plans/99", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d, want 404: %s", res.StatusCode, data)
	}
	if code, _ := decodeError(t, data); code != "not_found" {
		t.Fatalf("code = %q, want not_found", code)
	}

	// A spec with no config renders 400 bad_request.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects/shop/plans", map[string]any{
		"title": "bad",
		"steps": []map[string]any{{"specs": []map[string]any{{"id": "spec-1"}}}},
	})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400: %s", res.StatusCode, data)
	}
	if code, _ := decodeError(t, data); code != "bad_request" {
		t.Fatalf("code = %q, want bad_request", code)
	}

	// A step spanning two environments renders 409 environment_mismatch.
	mustCreate(t, client, srv.URL+"/v1/environments", map[string]any{"id": "dev", "title": "Dev"})
	mustCreate(t, client, srv.URL+"/v1/instances", map[string]any{
		"id": "mysql-dev", "environment_id": "dev", "engine": "MYSQL",
	})
	mustCreate(t, client, srv.URL+"/v1/instances/mysql-dev/databases", map[string]any{
		"name": "shop_dev", "project_id": "shop",
	})
	sheetName := fmt.Sprintf("projects/shop/sheets/%d", sheetUID)
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/projects/shop/plans", map[string]any{
		"title": "mixed",
		"steps": []map[string]any{{
			"specs": []map[string]any{
				{
					"id": "spec-prod",
					"change_database_config": map[string]any{
						"target": "instances/mysql-prod/databases/shop_db",
						"sheet":  sheetName,
						"type":   "MIGRATE",
					},
				},
				{
					"id": "spec-dev",
					"change_database_config": map[string]any{
						"target": "instances/mysql-dev/databases/shop_dev",
						"sheet":  sheetName,
						"type":   "MIGRATE",
					},
				},
			},
		}},
	})
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("status %d, want 409: %s", res.StatusCode, data)
	}
	if code, _ := decodeError(t, data); code != "environment_mismatch" {
		t.Fatalf("code = %q, want environment_mismatch", code)
	}
}
