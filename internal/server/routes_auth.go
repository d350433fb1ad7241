package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"clientpilot/internal/domain"
	"clientpilot/internal/engine/auth"
)

func registerAuth(api huma.API, svc auth.Service, tokens auth.Tokens) {
	issue := func(u domain.User) (*struct {
		Body AuthResponse `json:"body"`
	}, error) {
		token, exp, err := tokens.Issue(u)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AuthResponse `json:"body"`
		}{Body: AuthResponse{User: u, AccessToken: token, ExpiresAt: exp.Format(time.RFC3339)}}, nil
	}

	huma.Register(api, huma.Operation{
		OperationID:   "signup",
		Method:        http.MethodPost,
		Path:          "/auth/signup",
		Summary:       "Register a user",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body SignupRequest `json:"body"`
	}) (*struct {
		Body AuthResponse `json:"body"`
	}, error) {
		u, err := svc.Signup(ctx, auth.SignupInput{
			Username: input.Body.Username,
			Email:    input.Body.Email,
			Password: input.Body.Password,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return issue(u)
	})

	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Exchange credentials for an access token",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body LoginRequest `json:"body"`
	}) (*struct {
		Body AuthResponse `json:"body"`
	}, error) {
		login := strings.TrimSpace(input.Body.Email)
		if login == "" {
			login = strings.TrimSpace(input.Body.Username)
		}
		if login == "" || input.Body.Password == "" {
			return nil, newAPIError(http.StatusBadRequest, "validation_error", "email (or username) and password are required", nil)
		}
		u, err := svc.Login(ctx, login, input.Body.Password)
		if err != nil {
			return nil, handleError(err)
		}
		return issue(u)
	})

	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/auth/me",
		Summary:     "Current user",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := svc.GetUser(ctx, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/auth/api-keys",
		Summary:       "Create an API key",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateAPIKeyRequest `json:"body"`
	}) (*struct {
		Body APIKeyResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		raw, key, err := svc.CreateAPIKey(ctx, userID, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body APIKeyResponse `json:"body"`
		}{Body: APIKeyResponse{APIKey: key, Key: raw}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/auth/api-keys",
		Summary:     "List API keys",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.APIKey `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		keys, err := svc.ListAPIKeys(ctx, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.APIKey `json:"body"`
		}{Body: keys}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-api-key",
		Method:        http.MethodDelete,
		Path:          "/auth/api-keys/{id}",
		Summary:       "Revoke an API key",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := svc.DeleteAPIKey(ctx, userID, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
