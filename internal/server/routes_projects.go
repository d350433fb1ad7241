package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"clientpilot/internal/domain"
	"clientpilot/internal/engine"
	"clientpilot/internal/repo"
)

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ClientID string `query:"client_id"`
		Status   string `query:"status" doc:"active, on_hold or completed"`
	}) (*struct {
		Body []ProjectResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ps, err := e.ListProjects(ctx, userID, repo.ProjectFilters{ClientID: input.ClientID, Status: input.Status})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ProjectResponse `json:"body"`
		}{Body: toProjectResponses(ps)}, nil
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
		Body ProjectResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.CreateProject(ctx, userID, engine.ProjectInput{
			ClientID:    input.Body.ClientID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Deadline:    input.Body.Deadline,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: toProjectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{id}",
		Summary:     "Get project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.GetProject(ctx, userID, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: toProjectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPut,
		Path:        "/projects/{id}",
		Summary:     "Update project fields",
		Description: "Status is not accepted here; use PATCH /projects/{id}/status.",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body UpdateProjectRequest `json:"body"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.Status != nil {
			return nil, newAPIError(http.StatusBadRequest, "validation_error", "status can only change through PATCH /projects/{id}/status", map[string]any{"field": "status"})
		}
		p, err := e.UpdateProject(ctx, userID, input.ID, engine.ProjectPatch{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Deadline:    nullableDate(ctx, "deadline", input.Body.Deadline),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: toProjectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-project",
		Method:      http.MethodPatch,
		Path:        "/projects/{id}/status",
		Summary:     "Change project status",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ID   string        `path:"id"`
		Body StatusRequest `json:"body"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.TransitionProject(ctx, userID, input.ID, domain.ProjectStatus(input.Body.Status), input.Body.Version)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: toProjectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-project",
		Method:        http.MethodDelete,
		Path:          "/projects/{id}",
		Summary:       "Delete project with its deliverables",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteProject(ctx, userID, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-project-deliverables",
		Method:      http.MethodGet,
		Path:        "/projects/{id}/deliverables",
		Summary:     "List a project's deliverables",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID     string `path:"id"`
		Status string `query:"status" doc:"planned, in_progress, blocked or completed"`
	}) (*struct {
		Body []DeliverableResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ds, err := e.ListDeliverables(ctx, userID, repo.DeliverableFilters{ProjectID: input.ID, Status: input.Status})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []DeliverableResponse `json:"body"`
		}{Body: toDeliverableResponses(ds)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-project-deliverable",
		Method:        http.MethodPost,
		Path:          "/projects/{id}/deliverables",
		Summary:       "Create a deliverable under a project",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string                   `path:"id"`
		Body CreateDeliverableRequest `json:"body"`
	}) (*struct {
		Body DeliverableResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := e.CreateDeliverable(ctx, userID, engine.DeliverableInput{
			ProjectID:   input.ID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			DueDate:     input.Body.DueDate,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DeliverableResponse `json:"body"`
		}{Body: toDeliverableResponse(d)}, nil
	})
}
