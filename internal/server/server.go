package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"reflect"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"clientpilot/internal/ai"
	"clientpilot/internal/engine"
	"clientpilot/internal/engine/auth"
	"clientpilot/internal/fsm"
	"clientpilot/internal/repo"
)

const apiVersion = "1.0.0"

// Config for the HTTP API handler.
type Config struct {
	Engine      engine.Engine
	Auth        auth.Service
	Tokens      auth.Tokens
	BasePath    string
	CORSOrigins []string
	Logger      *slog.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_state_transition"`
	Message string         `json:"message" example:"invalid deliverable status transition completed -> in_progress (allowed: none)"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"current_status\":\"completed\"}"`
}

type bodyBytesKey struct{}

// apiError is the error envelope: {"error": {code, message, details}}.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the clientpilot API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema validation failures are client input errors, not
			// state errors.
			return newAPIError(http.StatusBadRequest, "validation_error", msg, errorDetails(errs))
		}
		return newAPIError(status, "", msg, errorDetails(errs))
	}

	router := chi.NewRouter()
	router.Use(requestIDMiddleware)
	router.Use(func(next http.Handler) http.Handler { return loggingMiddleware(logger, next) })
	router.Use(tracingMiddleware)
	router.Use(corsMiddleware(cfg.CORSOrigins))
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(body))
			ctx := context.WithValue(r.Context(), bodyBytesKey{}, body)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Tokens, cfg.Auth))

	hcfg := huma.DefaultConfig("clientpilot API", apiVersion)
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerAuth(group, cfg.Auth, cfg.Tokens)
	registerClients(group, cfg.Engine)
	registerProjects(group, cfg.Engine)
	registerDeliverables(group, cfg.Engine)
	registerDashboard(group, cfg.Engine)
	registerAI(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func errorDetails(errs []error) map[string]any {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return map[string]any{"errors": msgs}
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

// handleError is the single mapping from domain errors to HTTP errors.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var ite *fsm.InvalidTransitionError
	if errors.As(err, &ite) {
		valid := ite.Valid
		if valid == nil {
			valid = []string{}
		}
		return newAPIError(http.StatusUnprocessableEntity, "invalid_state_transition", ite.Error(), map[string]any{
			"current_status":    ite.Current,
			"target_status":     ite.Target,
			"valid_transitions": valid,
		})
	}
	var ge *ai.GenerationError
	if errors.As(err, &ge) {
		return newAPIError(http.StatusBadGateway, "generation_failed", "ai generation failed", map[string]any{
			"run_id": ge.RunID,
			"step":   ge.Step,
			"error":  ge.Err.Error(),
		})
	}
	var ve engine.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusBadRequest, "validation_error", ve.Error(), map[string]any{"field": ve.Field})
	}
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", "resource not found", nil)
	case errors.Is(err, repo.ErrConflict):
		return newAPIError(http.StatusConflict, "conflict", "resource was modified concurrently; reload and retry", nil)
	case errors.Is(err, auth.ErrDuplicateUser), errors.Is(err, repo.ErrDuplicate):
		return newAPIError(http.StatusConflict, "already_exists", err.Error(), nil)
	case errors.Is(err, auth.ErrInvalidCredentials):
		return newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil)
	}
	slog.Error("unhandled api error", "error", err)
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", nil)
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "unprocessable_entity"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get(path.Join(basePath, "docs"), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		doc  []byte
	)
	r.Get(path.Join(basePath, "openapi.json"), func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			decorateOpenAPI(oas, basePath)
			doc, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(doc)
	})
}

// resourceTags are keyed by the first path segment under the API root.
var resourceTags = map[string]*huma.Tag{
	"health":       {Name: "system", Description: "Liveness."},
	"auth":         {Name: "auth", Description: "Accounts, JWT sessions and API keys."},
	"clients":      {Name: "clients", Description: "Clients of the freelancer."},
	"projects":     {Name: "projects", Description: "Projects move active, on_hold and completed through PATCH /projects/{id}/status."},
	"deliverables": {Name: "deliverables", Description: "Deliverables move through PATCH /deliverables/{id}/status."},
	"dashboard":    {Name: "dashboard", Description: "Workload summary."},
	"ai":           {Name: "ai", Description: "AI operations. Every call is recorded as an agent run with ordered steps."},
	"events":       {Name: "events", Description: "Activity log of the current user."},
}

var apiSecurity = []map[string][]string{
	{"bearerAuth": {}},
	{"apiKeyAuth": {}},
}

// decorateOpenAPI adds what huma cannot infer from the handlers: the error
// envelope on every operation, auth requirements, resource tags, and the
// status tables behind the transition endpoints.
func decorateOpenAPI(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{Type: "http", Scheme: "bearer", BearerFormat: "JWT"}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{Type: "apiKey", In: "header", Name: "X-Api-Key"}
	oas.Security = apiSecurity

	errSchema := &huma.Schema{Ref: "#/components/schemas/ApiError"}
	if oas.Components.Schemas != nil {
		errSchema = oas.Components.Schemas.Schema(reflect.TypeOf(apiError{}), true, "ApiError")
	}
	errResponse := func(desc string) *huma.Response {
		return &huma.Response{
			Description: desc,
			Content:     map[string]*huma.MediaType{"application/json": {Schema: errSchema}},
		}
	}

	used := map[string]bool{}
	for route, item := range oas.Paths {
		rel := strings.TrimPrefix(route, strings.TrimRight(basePath, "/"))
		segment := strings.SplitN(strings.TrimPrefix(rel, "/"), "/", 2)[0]
		for _, op := range []*huma.Operation{item.Get, item.Put, item.Post, item.Delete, item.Patch} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = errResponse("Error")
			if tag, ok := resourceTags[segment]; ok && len(op.Tags) == 0 {
				op.Tags = []string{tag.Name}
				used[segment] = true
			}
			if isPublicPath(basePath, route) {
				op.Security = []map[string][]string{}
			} else {
				op.Security = apiSecurity
			}
			switch rel {
			case "/projects/{id}/status":
				op.Description = strings.TrimSpace(op.Description + transitionTable(fsm.Projects))
				op.Responses["422"] = errResponse("Transition not allowed from the current status")
				op.Responses["409"] = errResponse("Status or version changed concurrently")
			case "/deliverables/{id}/status":
				op.Description = strings.TrimSpace(op.Description + transitionTable(fsm.Deliverables))
				op.Responses["422"] = errResponse("Transition not allowed from the current status")
				op.Responses["409"] = errResponse("Status or version changed concurrently")
			}
			if segment == "ai" && op.Method == http.MethodPost {
				op.Responses["502"] = errResponse("Generation failed; the run is kept as failed")
			}
		}
	}

	oas.Tags = oas.Tags[:0]
	for _, segment := range []string{"health", "auth", "clients", "projects", "deliverables", "dashboard", "ai", "events"} {
		if used[segment] {
			oas.Tags = append(oas.Tags, resourceTags[segment])
		}
	}
}

// transitionTable renders a machine's table as markdown for operation
// descriptions.
func transitionTable[S ~string](m fsm.Machine[S]) string {
	var b strings.Builder
	b.WriteString("\n\n| From | To |\n|---|---|\n")
	for _, s := range m.Statuses() {
		next := "terminal"
		if allowed := m.Allowed(s); len(allowed) > 0 {
			next = strings.Join(allowed, ", ")
		}
		fmt.Fprintf(&b, "| %s | %s |\n", s, next)
	}
	return b.String()
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>clientpilot API Docs</title>
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

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	return nil
}

// rawBodyMap decodes the request body into its top-level fields so
// handlers can tell an explicit null from an absent key.
func rawBodyMap(ctx context.Context) map[string]json.RawMessage {
	buf := bodyBytes(ctx)
	if len(buf) == 0 {
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(buf, &m); err != nil {
		return nil
	}
	return m
}

func isNullRaw(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

// nullableDate maps a body date field to the engine's patch semantics:
// absent leaves it, null or "" clears it.
func nullableDate(ctx context.Context, key string, v *string) *string {
	if v != nil {
		return v
	}
	if raw, ok := rawBodyMap(ctx)[key]; ok && isNullRaw(raw) {
		empty := ""
		return &empty
	}
	return nil
}
