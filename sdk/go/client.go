package clientpilotsdk

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

// Client is a minimal ClientPilot HTTP API client.
type Client struct {
	// BaseURL includes the API base path, e.g. http://localhost:8080/api.
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
		Timeout: 30 * time.Second,
	}
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type Session struct {
	User        User   `json:"user"`
	AccessToken string `json:"access_token"`
	ExpiresAt   string `json:"expires_at"`
}

type ClientRecord struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

type Project struct {
	ID                 string   `json:"id"`
	ClientID           string   `json:"client_id"`
	Title              string   `json:"title"`
	Description        string   `json:"description,omitempty"`
	Status             string   `json:"status"`
	Deadline           *string  `json:"deadline,omitempty"`
	Version            int64    `json:"version"`
	AllowedTransitions []string `json:"allowed_transitions"`
}

type Deliverable struct {
	ID                 string   `json:"id"`
	ProjectID          string   `json:"project_id"`
	Title              string   `json:"title"`
	Description        string   `json:"description,omitempty"`
	Status             string   `json:"status"`
	DueDate            *string  `json:"due_date,omitempty"`
	Version            int64    `json:"version"`
	AllowedTransitions []string `json:"allowed_transitions"`
}

// AIResult is the outcome of an AI operation. RunID identifies the
// recorded agent run.
type AIResult struct {
	RunID  string         `json:"run_id"`
	Result map[string]any `json:"result"`
}

type Step struct {
	StepNumber int    `json:"step_number"`
	Action     string `json:"action"`
	Input      string `json:"input"`
	Output     string `json:"output,omitempty"`
}

type Run struct {
	ID           string `json:"id"`
	Action       string `json:"action"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	StartedAt    string `json:"started_at"`
	FinishedAt   string `json:"finished_at,omitempty"`
	Steps        []Step `json:"steps,omitempty"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	Payload    string `json:"payload"`
}

type EventsPage struct {
	Events     []Event `json:"events"`
	NextCursor int64   `json:"next_cursor,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]any
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Login exchanges credentials for a token and keeps it on the client.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var resp Session
	err := c.do(ctx, http.MethodPost, "auth/login", map[string]any{"email": email, "password": password}, &resp)
	if err == nil {
		c.BearerToken = resp.AccessToken
	}
	return resp, err
}

// Signup registers a user and keeps the returned token on the client.
func (c *Client) Signup(ctx context.Context, username, email, password string) (Session, error) {
	var resp Session
	err := c.do(ctx, http.MethodPost, "auth/signup", map[string]any{
		"username": username,
		"email":    email,
		"password": password,
	}, &resp)
	if err == nil {
		c.BearerToken = resp.AccessToken
	}
	return resp, err
}

func (c *Client) CreateClient(ctx context.Context, name, email string) (ClientRecord, error) {
	var resp ClientRecord
	err := c.do(ctx, http.MethodPost, "clients", map[string]any{"name": name, "email": email}, &resp)
	return resp, err
}

func (c *Client) ListClients(ctx context.Context) ([]ClientRecord, error) {
	var resp []ClientRecord
	err := c.do(ctx, http.MethodGet, "clients", nil, &resp)
	return resp, err
}

// CreateProject creates a project; deadline may be empty.
func (c *Client) CreateProject(ctx context.Context, clientID, title, deadline string) (Project, error) {
	body := map[string]any{"client_id": clientID, "title": title}
	if deadline != "" {
		body["deadline"] = deadline
	}
	var resp Project
	err := c.do(ctx, http.MethodPost, "projects", body, &resp)
	return resp, err
}

func (c *Client) GetProject(ctx context.Context, id string) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodGet, "projects/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// SetProjectStatus moves a project; version 0 skips the version check.
func (c *Client) SetProjectStatus(ctx context.Context, id, status string, version int64) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodPatch, "projects/"+url.PathEscape(id)+"/status", statusBody(status, version), &resp)
	return resp, err
}

func (c *Client) CreateDeliverable(ctx context.Context, projectID, title, dueDate string) (Deliverable, error) {
	body := map[string]any{"title": title}
	if dueDate != "" {
		body["due_date"] = dueDate
	}
	var resp Deliverable
	err := c.do(ctx, http.MethodPost, "projects/"+url.PathEscape(projectID)+"/deliverables", body, &resp)
	return resp, err
}

func (c *Client) SetDeliverableStatus(ctx context.Context, id, status string, version int64) (Deliverable, error) {
	var resp Deliverable
	err := c.do(ctx, http.MethodPatch, "deliverables/"+url.PathEscape(id)+"/status", statusBody(status, version), &resp)
	return resp, err
}

func (c *Client) StructureScope(ctx context.Context, text string) (AIResult, error) {
	var resp AIResult
	err := c.do(ctx, http.MethodPost, "ai/structure-scope", map[string]any{"text": text}, &resp)
	return resp, err
}

func (c *Client) AnalyzeRisk(ctx context.Context, projectID string) (AIResult, error) {
	var resp AIResult
	err := c.do(ctx, http.MethodPost, "ai/analyze-risk", map[string]any{"project_id": projectID}, &resp)
	return resp, err
}

func (c *Client) GenerateUpdate(ctx context.Context, projectID string) (AIResult, error) {
	var resp AIResult
	err := c.do(ctx, http.MethodPost, "ai/generate-update", map[string]any{"project_id": projectID}, &resp)
	return resp, err
}

func (c *Client) GetRun(ctx context.Context, id string) (Run, error) {
	var resp Run
	err := c.do(ctx, http.MethodGet, "ai/runs/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Events returns one page of the activity log. Pass the previous page's
// NextCursor to continue; 0 starts from the newest event.
func (c *Client) Events(ctx context.Context, limit int, cursor int64) (EventsPage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if cursor > 0 {
		q.Set("cursor", fmt.Sprint(cursor))
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp EventsPage
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func statusBody(status string, version int64) map[string]any {
	body := map[string]any{"status": status}
	if version > 0 {
		body["version"] = version
	}
	return body
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
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string         `json:"code"`
				Message string         `json:"message"`
				Details map[string]any `json:"details"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Details = env.Error.Details
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
