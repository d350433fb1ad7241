package server

import (
	"clientpilot/internal/ai"
	"clientpilot/internal/domain"
	"clientpilot/internal/fsm"
)

// Request payloads

type SignupRequest struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

// LoginRequest takes either email or username.
type LoginRequest struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

type CreateAPIKeyRequest struct {
	Name string `json:"name,omitempty"`
}

type ClientRequest struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Company string `json:"company,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

type UpdateClientRequest struct {
	Name    *string `json:"name,omitempty"`
	Email   *string `json:"email,omitempty"`
	Company *string `json:"company,omitempty"`
	Notes   *string `json:"notes,omitempty"`
}

type CreateProjectRequest struct {
	ClientID    string  `json:"client_id,omitempty"`
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Deadline    *string `json:"deadline,omitempty" nullable:"true" example:"2024-04-01"`
}

type UpdateProjectRequest struct {
	// Status is refused; it only changes through the status endpoint.
	Status      *string `json:"status,omitempty" doc:"Not accepted; use PATCH /projects/{id}/status"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Deadline    *string `json:"deadline,omitempty" nullable:"true" example:"2024-04-01"`
}

type CreateDeliverableRequest struct {
	ProjectID   string  `json:"project_id,omitempty"`
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	DueDate     *string `json:"due_date,omitempty" nullable:"true" example:"2024-03-15"`
}

type UpdateDeliverableRequest struct {
	Status      *string `json:"status,omitempty" doc:"Not accepted; use PATCH /deliverables/{id}/status"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	DueDate     *string `json:"due_date,omitempty" nullable:"true" example:"2024-03-15"`
}

// StatusRequest moves an entity along its lifecycle. Version, when set,
// must match the stored version.
type StatusRequest struct {
	Status  string `json:"status" example:"in_progress"`
	Version int64  `json:"version,omitempty"`
}

type StructureScopeRequest struct {
	Text string `json:"text,omitempty" example:"Need a 5 page marketing site with a blog"`
}

type ProjectRefRequest struct {
	ProjectID string `json:"project_id,omitempty"`
}

// Response payloads

type AuthResponse struct {
	User        domain.User `json:"user"`
	AccessToken string      `json:"access_token"`
	ExpiresAt   string      `json:"expires_at"`
}

type APIKeyResponse struct {
	domain.APIKey
	// Key is only returned on creation.
	Key string `json:"key,omitempty"`
}

type ProjectResponse struct {
	domain.Project
	AllowedTransitions []string `json:"allowed_transitions"`
}

type DeliverableResponse struct {
	domain.Deliverable
	AllowedTransitions []string `json:"allowed_transitions"`
}

type AIResponse struct {
	RunID  string     `json:"run_id"`
	Result ai.Payload `json:"result"`
}

type EventsResponse struct {
	Events []domain.Event `json:"events"`
	// NextCursor is passed back as cursor to read older events; 0 means
	// the end was reached.
	NextCursor int64 `json:"next_cursor,omitempty"`
}

func toProjectResponse(p domain.Project) ProjectResponse {
	return ProjectResponse{Project: p, AllowedTransitions: fsm.Projects.Allowed(p.Status)}
}

func toProjectResponses(ps []domain.Project) []ProjectResponse {
	out := make([]ProjectResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, toProjectResponse(p))
	}
	return out
}

func toDeliverableResponse(d domain.Deliverable) DeliverableResponse {
	return DeliverableResponse{Deliverable: d, AllowedTransitions: fsm.Deliverables.Allowed(d.Status)}
}

func toDeliverableResponses(ds []domain.Deliverable) []DeliverableResponse {
	out := make([]DeliverableResponse, 0, len(ds))
	for _, d := range ds {
		out = append(out, toDeliverableResponse(d))
	}
	return out
}
