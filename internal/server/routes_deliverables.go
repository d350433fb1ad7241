package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"clientpilot/internal/domain"
	"clientpilot/internal/engine"
	"clientpilot/internal/repo"
)

func registerDeliverables(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-deliverables",
		Method:      http.MethodGet,
		Path:        "/deliverables",
		Summary:     "List deliverables",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `query:"project_id"`
		Status    string `query:"status" doc:"planned, in_progress, blocked or completed"`
	}) (*struct {
		Body []DeliverableResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ds, err := e.ListDeliverables(ctx, userID, repo.DeliverableFilters{ProjectID: input.ProjectID, Status: input.Status})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []DeliverableResponse `json:"body"`
		}{Body: toDeliverableResponses(ds)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-deliverable",
		Method:        http.MethodPost,
		Path:          "/deliverables",
		Summary:       "Create deliverable",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateDeliverableRequest `json:"body"`
	}) (*struct {
		Body DeliverableResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := e.CreateDeliverable(ctx, userID, engine.DeliverableInput{
			ProjectID:   input.Body.ProjectID,
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

	huma.Register(api, huma.Operation{
		OperationID: "get-deliverable",
		Method:      http.MethodGet,
		Path:        "/deliverables/{id}",
		Summary:     "Get deliverable",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body DeliverableResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := e.GetDeliverable(ctx, userID, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DeliverableResponse `json:"body"`
		}{Body: toDeliverableResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-deliverable",
		Method:      http.MethodPut,
		Path:        "/deliverables/{id}",
		Summary:     "Update deliverable fields",
		Description: "Status is not accepted here; use PATCH /deliverables/{id}/status.",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string                   `path:"id"`
		Body UpdateDeliverableRequest `json:"body"`
	}) (*struct {
		Body DeliverableResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.Status != nil {
			return nil, newAPIError(http.StatusBadRequest, "validation_error", "status can only change through PATCH /deliverables/{id}/status", map[string]any{"field": "status"})
		}
		d, err := e.UpdateDeliverable(ctx, userID, input.ID, engine.DeliverablePatch{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			DueDate:     nullableDate(ctx, "due_date", input.Body.DueDate),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DeliverableResponse `json:"body"`
		}{Body: toDeliverableResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-deliverable",
		Method:      http.MethodPatch,
		Path:        "/deliverables/{id}/status",
		Summary:     "Change deliverable status",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ID   string        `path:"id"`
		Body StatusRequest `json:"body"`
	}) (*struct {
		Body DeliverableResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := e.TransitionDeliverable(ctx, userID, input.ID, domain.DeliverableStatus(input.Body.Status), input.Body.Version)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DeliverableResponse `json:"body"`
		}{Body: toDeliverableResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-deliverable",
		Method:        http.MethodDelete,
		Path:          "/deliverables/{id}",
		Summary:       "Delete deliverable",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteDeliverable(ctx, userID, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
