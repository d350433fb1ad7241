package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"clientpilot/internal/domain"
	"clientpilot/internal/engine"
	"clientpilot/internal/repo"
)

func registerClients(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-clients",
		Method:      http.MethodGet,
		Path:        "/clients",
		Summary:     "List clients",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Client `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		cs, err := e.ListClients(ctx, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Client `json:"body"`
		}{Body: cs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-client",
		Method:        http.MethodPost,
		Path:          "/clients",
		Summary:       "Create client",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body ClientRequest `json:"body"`
	}) (*struct {
		Body domain.Client `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.CreateClient(ctx, userID, engine.ClientInput{
			Name:    input.Body.Name,
			Email:   input.Body.Email,
			Company: input.Body.Company,
			Notes:   input.Body.Notes,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Client `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-client",
		Method:      http.MethodGet,
		Path:        "/clients/{id}",
		Summary:     "Get client",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Client `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.GetClient(ctx, userID, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Client `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-client",
		Method:      http.MethodPut,
		Path:        "/clients/{id}",
		Summary:     "Update client fields",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string              `path:"id"`
		Body UpdateClientRequest `json:"body"`
	}) (*struct {
		Body domain.Client `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.UpdateClient(ctx, userID, input.ID, engine.ClientPatch{
			Name:    input.Body.Name,
			Email:   input.Body.Email,
			Company: input.Body.Company,
			Notes:   input.Body.Notes,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Client `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-client",
		Method:        http.MethodDelete,
		Path:          "/clients/{id}",
		Summary:       "Delete client with its projects and deliverables",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteClient(ctx, userID, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-client-projects",
		Method:      http.MethodGet,
		Path:        "/clients/{id}/projects",
		Summary:     "List a client's projects",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID     string `path:"id"`
		Status string `query:"status" doc:"active, on_hold or completed"`
	}) (*struct {
		Body []ProjectResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ps, err := e.ListProjects(ctx, userID, repo.ProjectFilters{ClientID: input.ID, Status: input.Status})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ProjectResponse `json:"body"`
		}{Body: toProjectResponses(ps)}, nil
	})
}
