package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clientpilot/internal/app"
	"clientpilot/internal/config"
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
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "clientpilot.db")
	cfg.AI.Provider = "mock"
	cfg.Auth.JWTSecret = "test-secret"
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := app.Open(context.Background(), cfg, logger)
	require.NoError(t, err)
	handler, err := New(Config{
		Engine:      a.Engine,
		Auth:        a.Auth,
		Tokens:      a.Tokens,
		BasePath:    "/api",
		CORSOrigins: []string{"http://localhost:5173"},
		Logger:      logger,
	})
	require.NoError(t, err)

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			a.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, data
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, data []byte) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(data, &env), string(data))
	return env
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

// session is a signed-up user talking to the API.
type session struct {
	t      *testing.T
	srv    *testServer
	token  string
	userID string
}

func signup(t *testing.T, srv *testServer, username string) *session {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/auth/signup", map[string]any{
		"username": username,
		"email":    username + "@example.com",
		"password": "correct-horse",
	}, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	out := decode[AuthResponse](t, data)
	require.NotEmpty(t, out.AccessToken)
	return &session{t: t, srv: srv, token: out.AccessToken, userID: out.User.ID}
}

func (s *session) do(method, p string, body any) (*http.Response, []byte) {
	s.t.Helper()
	return doJSON(s.t, s.srv.Client(), method, s.srv.URL+"/api"+p, body, map[string]string{
		"Authorization": "Bearer " + s.token,
	})
}

func (s *session) mustDo(method, p string, body any, want int) []byte {
	s.t.Helper()
	res, data := s.do(method, p, body)
	require.Equal(s.t, want, res.StatusCode, "%s %s: %s", method, p, string(data))
	return data
}

func (s *session) createClient(name string) string {
	s.t.Helper()
	data := s.mustDo(http.MethodPost, "/clients", map[string]any{"name": name, "email": strings.ToLower(name) + "@client.test"}, http.StatusCreated)
	return decode[map[string]any](s.t, data)["id"].(string)
}

func (s *session) createProject(clientID string) ProjectResponse {
	s.t.Helper()
	data := s.mustDo(http.MethodPost, "/projects", map[string]any{
		"client_id": clientID,
		"title":     "Website",
		"deadline":  "2030-01-15",
	}, http.StatusCreated)
	return decode[ProjectResponse](s.t, data)
}

func TestHealthIsPublic(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/health", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(data))
	assert.NotEmpty(t, res.Header.Get("X-Request-ID"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/health", nil, map[string]string{"X-Request-ID": "req-123"})
	assert.Equal(t, "req-123", res.Header.Get("X-Request-ID"))
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	cases := []struct {
		name    string
		headers map[string]string
		code    string
	}{
		{"no credentials", nil, "unauthorized"},
		{"malformed header", map[string]string{"Authorization": "Token abc"}, "invalid_credentials"},
		{"bad jwt", map[string]string{"Authorization": "Bearer not.a.jwt"}, "invalid_credentials"},
		{"unknown api key", map[string]string{"X-Api-Key": "cp_deadbeef"}, "invalid_credentials"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/clients", nil, tc.headers)
			require.Equal(t, http.StatusUnauthorized, res.StatusCode)
			assert.Equal(t, tc.code, decodeError(t, data).Error.Code)
		})
	}
}

func TestSignupLoginMe(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	alice := signup(t, srv, "alice")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/auth/signup", map[string]any{
		"username": "alice2",
		"email":    "ALICE@example.com",
		"password": "correct-horse",
	}, nil)
	require.Equal(t, http.StatusConflict, res.StatusCode, string(data))

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/auth/signup", map[string]any{
		"username": "carol",
		"email":    "carol@example.com",
		"password": "short",
	}, nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "password", decodeError(t, data).Error.Details["field"])

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/auth/login", map[string]any{
		"email":    "alice@example.com",
		"password": "correct-horse",
	}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	login := decode[AuthResponse](t, data)
	assert.Equal(t, alice.userID, login.User.ID)

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/auth/login", map[string]any{
		"username": "alice",
		"password": "wrong-password",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "invalid_credentials", decodeError(t, data).Error.Code)

	data = alice.mustDo(http.MethodGet, "/auth/me", nil, http.StatusOK)
	me := decode[map[string]any](t, data)
	assert.Equal(t, "alice", me["username"])
	assert.NotContains(t, string(data), "password")
}

func TestAPIKeyAuthentication(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	alice := signup(t, srv, "alice")
	alice.createClient("Acme")

	data := alice.mustDo(http.MethodPost, "/auth/api-keys", map[string]any{"name": "ci"}, http.StatusCreated)
	key := decode[APIKeyResponse](t, data)
	require.True(t, strings.HasPrefix(key.Key, "cp_"))

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/clients", nil, map[string]string{"X-Api-Key": key.Key})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Len(t, decode[[]map[string]any](t, data), 1)

	data = alice.mustDo(http.MethodGet, "/auth/api-keys", nil, http.StatusOK)
	assert.NotContains(t, string(data), key.Key)

	alice.mustDo(http.MethodDelete, "/auth/api-keys/"+key.ID, nil, http.StatusNoContent)
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/clients", nil, map[string]string{"X-Api-Key": key.Key})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestDeliverableLifecycleEndToEnd(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	alice := signup(t, srv, "alice")
	clientID := alice.createClient("Acme")
	project := alice.createProject(clientID)
	assert.Equal(t, "active", string(project.Status))
	assert.Equal(t, []string{"completed", "on_hold"}, project.AllowedTransitions)

	data := alice.mustDo(http.MethodPost, "/projects/"+project.ID+"/deliverables", map[string]any{
		"title":    "Homepage design",
		"due_date": "2030-01-01",
	}, http.StatusCreated)
	d := decode[DeliverableResponse](t, data)
	assert.Equal(t, "planned", string(d.Status))
	assert.Equal(t, []string{"in_progress"}, d.AllowedTransitions)

	for _, target := range []string{"in_progress", "blocked", "in_progress", "completed"} {
		data = alice.mustDo(http.MethodPatch, "/deliverables/"+d.ID+"/status", map[string]any{"status": target}, http.StatusOK)
		d = decode[DeliverableResponse](t, data)
		assert.Equal(t, target, string(d.Status))
	}
	assert.EqualValues(t, 5, d.Version)
	assert.Empty(t, d.AllowedTransitions)

	res, data := alice.do(http.MethodPatch, "/deliverables/"+d.ID+"/status", map[string]any{"status": "in_progress"})
	require.Equal(t, http.StatusUnprocessableEntity, res.StatusCode, string(data))
	env := decodeError(t, data)
	assert.Equal(t, "invalid_state_transition", env.Error.Code)
	assert.Equal(t, "completed", env.Error.Details["current_status"])
	assert.Equal(t, "in_progress", env.Error.Details["target_status"])
	assert.Equal(t, []any{}, env.Error.Details["valid_transitions"])

	data = alice.mustDo(http.MethodGet, "/deliverables/"+d.ID, nil, http.StatusOK)
	assert.Equal(t, "completed", string(decode[DeliverableResponse](t, data).Status))

	data = alice.mustDo(http.MethodGet, "/events?entity_kind=deliverable&type=deliverable.status.changed", nil, http.StatusOK)
	assert.Len(t, decode[EventsResponse](t, data).Events, 4)
}

func TestInvalidProjectTransitionListsAllowed(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	alice := signup(t, srv, "alice")
	project := alice.createProject(alice.createClient("Acme"))

	res, data := alice.do(http.MethodPatch, "/projects/"+project.ID+"/status", map[string]any{"status": "archived"})
	require.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	env := decodeError(t, data)
	assert.Equal(t, []any{"completed", "on_hold"}, env.Error.Details["valid_transitions"])

	res, _ = alice.do(http.MethodPatch, "/projects/"+project.ID+"/status", map[string]any{"status": "active"})
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
}

func TestProjectStatusStaleVersionConflicts(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	alice := signup(t, srv, "alice")
	project := alice.createProject(alice.createClient("Acme"))
	require.EqualValues(t, 1, project.Version)

	alice.mustDo(http.MethodPatch, "/projects/"+project.ID+"/status", map[string]any{"status": "on_hold", "version": 1}, http.StatusOK)

	res, data := alice.do(http.MethodPatch, "/projects/"+project.ID+"/status", map[string]any{"status": "completed", "version": 1})
	require.Equal(t, http.StatusConflict, res.StatusCode, string(data))
	assert.Equal(t, "conflict", decodeError(t, data).Error.Code)

	data = alice.mustDo(http.MethodGet, "/projects/"+project.ID, nil, http.StatusOK)
	assert.Equal(t, "on_hold", string(decode[ProjectResponse](t, data).Status))
}

func TestUpdateCannotChangeStatus(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	alice := signup(t, srv, "alice")
	project := alice.createProject(alice.createClient("Acme"))

	res, data := alice.do(http.MethodPut, "/projects/"+project.ID, map[string]any{"title": "New", "status": "completed"})
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "status", decodeError(t, data).Error.Details["field"])

	data = alice.mustDo(http.MethodGet, "/projects/"+project.ID, nil, http.StatusOK)
	got := decode[ProjectResponse](t, data)
	assert.Equal(t, "Website", got.Title)
	assert.Equal(t, "active", string(got.Status))
}

func TestUpdateProjectClearsDeadlineOnNull(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	alice := signup(t, srv, "alice")
	project := alice.createProject(alice.createClient("Acme"))
	require.NotNil(t, project.Deadline)

	data := alice.mustDo(http.MethodPut, "/projects/"+project.ID, map[string]any{"title": "Renamed"}, http.StatusOK)
	got := decode[ProjectResponse](t, data)
	assert.Equal(t, "Renamed", got.Title)
	require.NotNil(t, got.Deadline)

	data = alice.mustDo(http.MethodPut, "/projects/"+project.ID, `{"deadline": null}`, http.StatusOK)
	assert.Nil(t, decode[ProjectResponse](t, data).Deadline)

	res, data := alice.do(http.MethodPut, "/projects/"+project.ID, map[string]any{"deadline": "15/01/2030"})
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "deadline", decodeError(t, data).Error.Details["field"])
}

func TestClientValidationAndNotFound(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	alice := signup(t, srv, "alice")

	res, data := alice.do(http.MethodPost, "/clients", map[string]any{"name": "Acme"})
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	env := decodeError(t, data)
	assert.Equal(t, "validation_error", env.Error.Code)
	assert.Equal(t, "email", env.Error.Details["field"])

	res, data = alice.do(http.MethodGet, "/clients/missing", nil)
	require.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "not_found", decodeError(t, data).Error.Code)
}

func TestUsersCannotSeeEachOthersData(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	alice := signup(t, srv, "alice")
	bob := signup(t, srv, "bob")
	clientID := alice.createClient("Acme")
	project := alice.createProject(clientID)

	for _, p := range []string{"/clients/" + clientID, "/projects/" + project.ID, "/clients/" + clientID + "/projects"} {
		res, _ := bob.do(http.MethodGet, p, nil)
		assert.Equal(t, http.StatusNotFound, res.StatusCode, p)
	}
	res, _ := bob.do(http.MethodPatch, "/projects/"+project.ID+"/status", map[string]any{"status": "completed"})
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	res, _ = bob.do(http.MethodPost, "/projects", map[string]any{"client_id": clientID, "title": "Stolen"})
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	data := bob.mustDo(http.MethodGet, "/clients", nil, http.StatusOK)
	assert.JSONEq(t, `[]`, string(data))
}

func TestDeleteClientCascades(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	alice := signup(t, srv, "alice")
	clientID := alice.createClient("Acme")
	project := alice.createProject(clientID)
	alice.mustDo(http.MethodPost, "/deliverables", map[string]any{"project_id": project.ID, "title": "Logo"}, http.StatusCreated)

	alice.mustDo(http.MethodDelete, "/clients/"+clientID, nil, http.StatusNoContent)
	res, _ := alice.do(http.MethodGet, "/projects/"+project.ID, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	data := alice.mustDo(http.MethodGet, "/deliverables", nil, http.StatusOK)
	assert.JSONEq(t, `[]`, string(data))
}

func TestDashboard(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	alice := signup(t, srv, "alice")
	project := alice.createProject(alice.createClient("Acme"))
	alice.mustDo(http.MethodPost, "/deliverables", map[string]any{"project_id": project.ID, "title": "Logo", "due_date": "2099-01-01"}, http.StatusCreated)

	data := alice.mustDo(http.MethodGet, "/dashboard", nil, http.StatusOK)
	sum := decode[map[string]any](t, data)
	assert.EqualValues(t, 1, sum["client_count"])
	assert.EqualValues(t, 1, sum["active_project_count"])
	assert.EqualValues(t, 1, sum["pending_deliverable_count"])
	assert.EqualValues(t, 0, sum["overdue_deliverable_count"])
	assert.Len(t, sum["upcoming_milestones"], 1)
}

func TestAIOperationsInMockMode(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	alice := signup(t, srv, "alice")
	project := alice.createProject(alice.createClient("Acme"))

	data := alice.mustDo(http.MethodPost, "/ai/structure-scope", map[string]any{"text": "Landing page, blog, contact form"}, http.StatusOK)
	scope := decode[AIResponse](t, data)
	require.NotEmpty(t, scope.RunID)
	assert.NotEmpty(t, scope.Result)

	alice.mustDo(http.MethodPost, "/ai/analyze-risk", map[string]any{"project_id": project.ID}, http.StatusOK)
	alice.mustDo(http.MethodPost, "/ai/generate-update", map[string]any{"project_id": project.ID}, http.StatusOK)

	res, data := alice.do(http.MethodPost, "/ai/analyze-risk", map[string]any{"project_id": "missing"})
	require.Equal(t, http.StatusNotFound, res.StatusCode, string(data))
	res, data = alice.do(http.MethodPost, "/ai/generate-update", map[string]any{})
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))

	data = alice.mustDo(http.MethodGet, "/ai/runs/"+scope.RunID, nil, http.StatusOK)
	run := decode[map[string]any](t, data)
	assert.Equal(t, "completed", run["status"])
	steps, ok := run["steps"].([]any)
	require.True(t, ok, string(data))
	for i, s := range steps {
		assert.EqualValues(t, i+1, s.(map[string]any)["step_number"])
	}

	data = alice.mustDo(http.MethodGet, "/ai/runs?status=completed", nil, http.StatusOK)
	assert.Len(t, decode[[]map[string]any](t, data), 3)

	bob := signup(t, srv, "bob")
	res, _ = bob.do(http.MethodGet, "/ai/runs/"+scope.RunID, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestEventsPagination(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	alice := signup(t, srv, "alice")
	for i := 0; i < 5; i++ {
		alice.createClient(fmt.Sprintf("Client%d", i))
	}

	data := alice.mustDo(http.MethodGet, "/events?entity_kind=client&limit=3", nil, http.StatusOK)
	page := decode[EventsResponse](t, data)
	require.Len(t, page.Events, 3)
	require.NotZero(t, page.NextCursor)

	data = alice.mustDo(http.MethodGet, fmt.Sprintf("/events?entity_kind=client&limit=3&cursor=%d", page.NextCursor), nil, http.StatusOK)
	next := decode[EventsResponse](t, data)
	require.Len(t, next.Events, 2)
	assert.Zero(t, next.NextCursor)
	assert.Less(t, next.Events[0].ID, page.Events[2].ID)
}

func TestOpenAPIDocument(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/openapi.json", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var doc struct {
		Paths      map[string]map[string]json.RawMessage `json:"paths"`
		Tags       []struct{ Name string }                `json:"tags"`
		Components struct {
			SecuritySchemes map[string]any `json:"securitySchemes"`
			Schemas         map[string]any `json:"schemas"`
		} `json:"components"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Contains(t, doc.Components.SecuritySchemes, "bearerAuth")
	assert.Contains(t, doc.Components.SecuritySchemes, "apiKeyAuth")
	require.Contains(t, doc.Paths, "/api/projects/{id}/status")
	require.Contains(t, doc.Paths, "/api/auth/login")

	var login struct {
		Security []map[string][]string `json:"security"`
	}
	require.NoError(t, json.Unmarshal(doc.Paths["/api/auth/login"]["post"], &login))
	assert.Empty(t, login.Security)

	var tagNames []string
	for _, tag := range doc.Tags {
		tagNames = append(tagNames, tag.Name)
	}
	assert.Equal(t, []string{"system", "auth", "clients", "projects", "deliverables", "dashboard", "ai", "events"}, tagNames)

	type operation struct {
		Tags        []string `json:"tags"`
		Description string   `json:"description"`
		Responses   map[string]struct {
			Content map[string]struct {
				Schema struct {
					Ref string `json:"$ref"`
				} `json:"schema"`
			} `json:"content"`
		} `json:"responses"`
	}
	var status operation
	require.NoError(t, json.Unmarshal(doc.Paths["/api/deliverables/{id}/status"]["patch"], &status))
	assert.Equal(t, []string{"deliverables"}, status.Tags)
	assert.Contains(t, status.Description, "| in_progress | blocked, completed |")
	assert.Contains(t, status.Description, "| completed | terminal |")
	require.Contains(t, status.Responses, "422")
	ref := status.Responses["default"].Content["application/json"].Schema.Ref
	require.NotEmpty(t, ref)
	assert.Contains(t, doc.Components.Schemas, strings.TrimPrefix(ref, "#/components/schemas/"))

	var scope operation
	require.NoError(t, json.Unmarshal(doc.Paths["/api/ai/structure-scope"]["post"], &scope))
	assert.Equal(t, []string{"ai"}, scope.Tags)
	assert.Contains(t, scope.Responses, "502")

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/docs", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(data), "/api/openapi.json")
}

func TestCORSPreflight(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, _ := doJSON(t, srv.Client(), http.MethodOptions, srv.URL+"/api/clients", nil, map[string]string{
		"Origin":                        "http://localhost:5173",
		"Access-Control-Request-Method": "POST",
	})
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	assert.Equal(t, "http://localhost:5173", res.Header.Get("Access-Control-Allow-Origin"))

	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/health", nil, map[string]string{"Origin": "http://evil.test"})
	assert.Empty(t, res.Header.Get("Access-Control-Allow-Origin"))
}
