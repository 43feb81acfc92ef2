package rollplanesdk

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

// Client is a minimal Rollplane HTTP API client.
type Client struct {
	BaseURL    string
	ProjectID  string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, projectID string) *Client {
	return &Client{
		BaseURL:   baseURL,
		ProjectID: projectID,
		Timeout:   10 * time.Second,
	}
}

// Spec is one unit of intended change inside a plan step.
type Spec struct {
	ID                string          `json:"id,omitempty"`
	EarliestAllowedTs int64           `json:"earliest_allowed_ts,omitempty"`
	CreateDatabase    json.RawMessage `json:"create_database_config,omitempty"`
	ChangeDatabase    json.RawMessage `json:"change_database_config,omitempty"`
	RestoreDatabase   json.RawMessage `json:"restore_database_config,omitempty"`
}

// Step groups specs that roll out together in one stage.
type Step struct {
	Specs []Spec `json:"specs"`
}

// Plan represents the API plan model.
type Plan struct {
	Name        string `json:"name"`
	UID         string `json:"uid"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Steps       []Step `json:"steps"`
	Rollout     string `json:"rollout,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Rollout represents the compiled pipeline with its stages.
type Rollout struct {
	Name   string  `json:"name"`
	UID    string  `json:"uid"`
	Plan   string  `json:"plan,omitempty"`
	Title  string  `json:"title"`
	Stages []Stage `json:"stages"`
}

// Stage is one environment-bound slice of a rollout.
type Stage struct {
	Name        string `json:"name"`
	UID         string `json:"uid"`
	Environment string `json:"environment"`
	Title       string `json:"title"`
	Tasks       []Task `json:"tasks"`
}

// Task represents the API task model (partial).
type Task struct {
	Name          string   `json:"name"`
	UID           string   `json:"uid"`
	Title         string   `json:"title"`
	SpecID        string   `json:"spec_id,omitempty"`
	Type          string   `json:"type"`
	Status        string   `json:"status"`
	Target        string   `json:"target"`
	Sheet         string   `json:"sheet,omitempty"`
	SchemaVersion string   `json:"schema_version,omitempty"`
	BlockedBy     []string `json:"blocked_by,omitempty"`
}

// Sheet represents a stored SQL statement.
type Sheet struct {
	UID       int64  `json:"uid"`
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	Statement string `json:"statement"`
	Source    string `json:"source"`
	CreatedAt string `json:"created_at"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreatePlan creates a plan; the server compiles and persists its rollout.
func (c *Client) CreatePlan(ctx context.Context, title, description string, steps []Step) (Plan, error) {
	body := map[string]any{
		"title":       title,
		"description": description,
		"steps":       steps,
	}
	var resp Plan
	err := c.do(ctx, http.MethodPost, c.projectPath("plans"), body, &resp)
	return resp, err
}

// UpdatePlan replaces a plan's steps; only sheet changes are accepted.
func (c *Client) UpdatePlan(ctx context.Context, planUID int64, steps []Step) (Plan, error) {
	body := map[string]any{"steps": steps}
	var resp Plan
	err := c.do(ctx, http.MethodPatch, c.projectPath(fmt.Sprintf("plans/%d", planUID)), body, &resp)
	return resp, err
}

// GetPlan fetches a plan by uid.
func (c *Client) GetPlan(ctx context.Context, planUID int64) (Plan, error) {
	var resp Plan
	err := c.do(ctx, http.MethodGet, c.projectPath(fmt.Sprintf("plans/%d", planUID)), nil, &resp)
	return resp, err
}

// ListPlans returns the project's plans.
func (c *Client) ListPlans(ctx context.Context) ([]Plan, error) {
	var resp []Plan
	err := c.do(ctx, http.MethodGet, c.projectPath("plans"), nil, &resp)
	return resp, err
}

// GetRollout fetches a rollout with its stages and tasks.
func (c *Client) GetRollout(ctx context.Context, rolloutUID int64) (Rollout, error) {
	var resp Rollout
	err := c.do(ctx, http.MethodGet, c.projectPath(fmt.Sprintf("rollouts/%d", rolloutUID)), nil, &resp)
	return resp, err
}

// CreateSheet stores a SQL statement for later reference from plan specs.
func (c *Client) CreateSheet(ctx context.Context, title, statement string) (Sheet, error) {
	body := map[string]any{
		"title":     title,
		"statement": statement,
	}
	var resp Sheet
	err := c.do(ctx, http.MethodPost, c.projectPath("sheets"), body, &resp)
	return resp, err
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
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) projectPath(p string) string {
	project := url.PathEscape(c.ProjectID)
	return fmt.Sprintf("v1/projects/%s/%s", project, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
