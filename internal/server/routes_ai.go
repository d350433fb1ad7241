package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"clientpilot/internal/ai"
	"clientpilot/internal/domain"
	"clientpilot/internal/engine"
	"clientpilot/internal/repo"
)

func registerDashboard(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "dashboard",
		Method:      http.MethodGet,
		Path:        "/dashboard",
		Summary:     "Workload summary",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.DashboardSummary `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		sum, err := e.Dashboard(ctx, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.DashboardSummary `json:"body"`
		}{Body: sum}, nil
	})
}

func registerAI(api huma.API, e engine.Engine) {
	aiErrors := []int{http.StatusBadRequest, http.StatusNotFound, http.StatusBadGateway}
	respond := func(res ai.Result, err error) (*struct {
		Body AIResponse `json:"body"`
	}, error) {
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AIResponse `json:"body"`
		}{Body: AIResponse{RunID: res.RunID, Result: res.Output}}, nil
	}

	huma.Register(api, huma.Operation{
		OperationID: "ai-structure-scope",
		Method:      http.MethodPost,
		Path:        "/ai/structure-scope",
		Summary:     "Turn free-form notes into a structured scope",
		Errors:      aiErrors,
	}, func(ctx context.Context, input *struct {
		Body StructureScopeRequest `json:"body"`
	}) (*struct {
		Body AIResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return respond(e.StructureScope(ctx, userID, input.Body.Text))
	})

	huma.Register(api, huma.Operation{
		OperationID: "ai-analyze-risk",
		Method:      http.MethodPost,
		Path:        "/ai/analyze-risk",
		Summary:     "Assess delivery risk of a project",
		Errors:      aiErrors,
	}, func(ctx context.Context, input *struct {
		Body ProjectRefRequest `json:"body"`
	}) (*struct {
		Body AIResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.ProjectID == "" {
			return nil, handleError(engine.ValidationError{Field: "project_id", Message: "is required"})
		}
		return respond(e.AnalyzeRisk(ctx, userID, input.Body.ProjectID))
	})

	huma.Register(api, huma.Operation{
		OperationID: "ai-generate-update",
		Method:      http.MethodPost,
		Path:        "/ai/generate-update",
		Summary:     "Draft a client status update for a project",
		Errors:      aiErrors,
	}, func(ctx context.Context, input *struct {
		Body ProjectRefRequest `json:"body"`
	}) (*struct {
		Body AIResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.ProjectID == "" {
			return nil, handleError(engine.ValidationError{Field: "project_id", Message: "is required"})
		}
		return respond(e.GenerateUpdate(ctx, userID, input.Body.ProjectID))
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-ai-runs",
		Method:      http.MethodGet,
		Path:        "/ai/runs",
		Summary:     "List agent runs, newest first",
	}, func(ctx context.Context, input *struct {
		Action string `query:"action"`
		Status string `query:"status" doc:"running, completed or failed"`
		Limit  int    `query:"limit" minimum:"0" maximum:"500"`
	}) (*struct {
		Body []domain.AgentRun `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		runs, err := e.ListRuns(ctx, userID, repo.RunFilters{Action: input.Action, Status: input.Status, Limit: input.Limit})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.AgentRun `json:"body"`
		}{Body: runs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-ai-run",
		Method:      http.MethodGet,
		Path:        "/ai/runs/{id}",
		Summary:     "Get an agent run with its steps",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.AgentRun `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		run, err := e.GetRun(ctx, userID, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.AgentRun `json:"body"`
		}{Body: run}, nil
	})
}

const defaultEventLimit = 50

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Activity log, newest first",
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
		Cursor     int64  `query:"cursor" minimum:"0"`
		Limit      int    `query:"limit" minimum:"0" maximum:"500"`
	}) (*struct {
		Body EventsResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		limit := input.Limit
		if limit <= 0 {
			limit = defaultEventLimit
		}
		evs, err := e.ListEvents(ctx, userID, repo.EventFilters{
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			Cursor:     input.Cursor,
			Limit:      limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := EventsResponse{Events: evs}
		if len(evs) == limit {
			resp.NextCursor = evs[len(evs)-1].ID
		}
		return &struct {
			Body EventsResponse `json:"body"`
		}{Body: resp}, nil
	})
}
