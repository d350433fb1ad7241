package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"clientpilot/internal/engine/auth"
	"clientpilot/internal/repo"
)

type Principal struct {
	UserID   string
	Username string
	// Source is jwt or api_key.
	Source string
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	if info := requestInfoFromContext(ctx); info != nil {
		info.UserID = p.UserID
	}
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func userIDFromContext(ctx context.Context) (string, huma.StatusError) {
	if p, ok := principalFromContext(ctx); ok && p.UserID != "" {
		return p.UserID, nil
	}
	return "", newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
}

// authenticateJWT also checks that the subject still exists, so a token
// minted against another database is refused.
func authenticateJWT(ctx context.Context, tokens auth.Tokens, svc auth.Service, token string) (Principal, error) {
	claims, err := tokens.Parse(token)
	if err != nil {
		return Principal{}, err
	}
	u, err := svc.GetUser(ctx, claims.Subject)
	if err != nil {
		return Principal{}, err
	}
	return Principal{UserID: u.ID, Username: u.Username, Source: "jwt"}, nil
}

func authenticateAPIKey(ctx context.Context, svc auth.Service, key string) (Principal, error) {
	if strings.TrimSpace(key) == "" {
		return Principal{}, errors.New("api key required")
	}
	u, err := svc.ResolveAPIKey(ctx, key)
	if err != nil {
		return Principal{}, err
	}
	return Principal{UserID: u.ID, Username: u.Username, Source: "api_key"}, nil
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func publicPaths(basePath string) map[string]bool {
	return map[string]bool{
		path.Join(basePath, "health"):       true,
		path.Join(basePath, "auth/signup"):  true,
		path.Join(basePath, "auth/login"):   true,
		path.Join(basePath, "openapi.json"): true,
		path.Join(basePath, "docs"):         true,
	}
}

// isPublicPath accepts either a full request path or an OpenAPI route
// relative to the API root.
func isPublicPath(basePath, p string) bool {
	public := publicPaths(basePath)
	return public[p] || public[path.Join(basePath, p)]
}

func newAuthMiddleware(basePath string, tokens auth.Tokens, svc auth.Service) func(http.Handler) http.Handler {
	public := publicPaths(basePath)
	invalid := func(w http.ResponseWriter) {
		respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			// Only enforce for API base path.
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			if public[req.URL.Path] || req.Method == http.MethodOptions {
				next.ServeHTTP(w, req)
				return
			}

			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			apiKeyHeader := strings.TrimSpace(req.Header.Get("X-Api-Key"))

			if authz != "" {
				token, ok := bearerToken(authz)
				if !ok {
					invalid(w)
					return
				}
				principal, err := authenticateJWT(req.Context(), tokens, svc, token)
				if err != nil {
					invalid(w)
					return
				}
				next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), principal)))
				return
			}

			if apiKeyHeader != "" {
				principal, err := authenticateAPIKey(req.Context(), svc, apiKeyHeader)
				if err != nil {
					if !errors.Is(err, auth.ErrInvalidCredentials) && !errors.Is(err, repo.ErrNotFound) {
						respondStatusError(w, handleError(err))
						return
					}
					invalid(w)
					return
				}
				next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), principal)))
				return
			}

			respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}
