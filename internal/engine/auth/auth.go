// Package auth manages user accounts, password checks, access tokens and
// API keys.
package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"clientpilot/internal/domain"
	"clientpilot/internal/engine"
	"clientpilot/internal/events"
	"clientpilot/internal/repo"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateUser      = errors.New("username or email already registered")
)

const (
	minPasswordLen = 8
	apiKeyPrefix   = "cp_"
	apiKeyBytes    = 24
)

// Service provides account operations backed by SQL.
type Service struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Now    func() time.Time
}

func NewService(db *sql.DB) Service {
	return Service{DB: db, Repo: repo.Repo{DB: db}, Events: events.Writer{Now: time.Now}, Now: time.Now}
}

func (s Service) stamp() string {
	now := s.Now
	if now == nil {
		now = time.Now
	}
	return now().UTC().Format(time.RFC3339)
}

type SignupInput struct {
	Username string
	Email    string
	Password string
}

func (in SignupInput) validate() error {
	if strings.TrimSpace(in.Username) == "" {
		return engine.ValidationError{Field: "username", Message: "is required"}
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(in.Email)); err != nil {
		return engine.ValidationError{Field: "email", Message: "must be a valid email address"}
	}
	if len(in.Password) < minPasswordLen {
		return engine.ValidationError{Field: "password", Message: fmt.Sprintf("must be at least %d characters", minPasswordLen)}
	}
	return nil
}

func (s Service) Signup(ctx context.Context, in SignupInput) (domain.User, error) {
	if err := in.validate(); err != nil {
		return domain.User{}, err
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return domain.User{}, err
	}
	u := domain.User{
		ID:           uuid.NewString(),
		Username:     strings.TrimSpace(in.Username),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: hash,
		CreatedAt:    s.stamp(),
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()

	if err := s.Repo.InsertUser(ctx, tx, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return domain.User{}, ErrDuplicateUser
		}
		return domain.User{}, err
	}
	if err := s.Events.Append(ctx, tx, events.UserCreated, u.ID, "user", u.ID, events.EventPayload{"username": u.Username}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// Login accepts a username or an email.
func (s Service) Login(ctx context.Context, login, password string) (domain.User, error) {
	login = strings.TrimSpace(login)
	u, err := s.Repo.GetUserByLogin(ctx, login)
	if errors.Is(err, repo.ErrNotFound) {
		u, err = s.Repo.GetUserByLogin(ctx, strings.ToLower(login))
	}
	if errors.Is(err, repo.ErrNotFound) {
		DummyVerify()
		return domain.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, err
	}
	ok, err := VerifyPassword(password, u.PasswordHash)
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		return domain.User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (s Service) GetUser(ctx context.Context, id string) (domain.User, error) {
	return s.Repo.GetUser(ctx, id)
}

func (s Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.Repo.ListUsers(ctx)
}

// CreateAPIKey mints a key for userID. The raw key is returned once; only
// its digest is stored.
func (s Service) CreateAPIKey(ctx context.Context, userID, name string) (string, domain.APIKey, error) {
	if _, err := s.Repo.GetUser(ctx, userID); err != nil {
		return "", domain.APIKey{}, err
	}
	secret := make([]byte, apiKeyBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", domain.APIKey{}, fmt.Errorf("auth: generate api key: %w", err)
	}
	raw := apiKeyPrefix + hex.EncodeToString(secret)
	key := domain.APIKey{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      strings.TrimSpace(name),
		KeyHash:   repo.HashAPIKey(raw),
		CreatedAt: s.stamp(),
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", domain.APIKey{}, err
	}
	defer tx.Rollback()

	if err := s.Repo.InsertAPIKey(ctx, tx, key); err != nil {
		return "", domain.APIKey{}, err
	}
	if err := s.Events.Append(ctx, tx, events.APIKeyCreated, userID, "api_key", key.ID, events.EventPayload{"name": key.Name}); err != nil {
		return "", domain.APIKey{}, err
	}
	if err := tx.Commit(); err != nil {
		return "", domain.APIKey{}, err
	}
	return raw, key, nil
}

// ResolveAPIKey returns the owner of a raw key.
func (s Service) ResolveAPIKey(ctx context.Context, raw string) (domain.User, error) {
	if !strings.HasPrefix(strings.TrimSpace(raw), apiKeyPrefix) {
		return domain.User{}, ErrInvalidCredentials
	}
	key, err := s.Repo.GetAPIKeyByHash(ctx, repo.HashAPIKey(raw))
	if errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, err
	}
	return s.Repo.GetUser(ctx, key.UserID)
}

func (s Service) ListAPIKeys(ctx context.Context, userID string) ([]domain.APIKey, error) {
	keys, err := s.Repo.ListAPIKeys(ctx, userID)
	if keys == nil {
		keys = []domain.APIKey{}
	}
	return keys, err
}

func (s Service) DeleteAPIKey(ctx context.Context, userID, id string) error {
	return s.Repo.DeleteAPIKey(ctx, userID, id)
}
