package engine

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"clientpilot/internal/ai"
	"clientpilot/internal/config"
	"clientpilot/internal/events"
	"clientpilot/internal/repo"
)

const dateLayout = "2006-01-02"

// Engine holds the use cases behind the CLI and the HTTP API. Every
// mutation runs in its own transaction together with its activity event.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Logger *slog.Logger
	AI     *ai.Orchestrator
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config, backend ai.Backend) Engine {
	r := repo.Repo{DB: db}
	ev := events.Writer{Now: time.Now}
	return Engine{
		DB:     db,
		Repo:   r,
		Events: ev,
		Config: cfg,
		Logger: slog.Default(),
		AI: &ai.Orchestrator{
			Store:   RunStore{DB: db, Repo: r, Events: ev},
			Backend: backend,
		},
		Now: time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func newID() string {
	return uuid.NewString()
}

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return ValidationError{Field: field, Message: "is required"}
	}
	return nil
}

// normalizeDate accepts nil, "" (no date) or YYYY-MM-DD.
func normalizeDate(field string, v *string) (*string, error) {
	if v == nil {
		return nil, nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil, nil
	}
	if _, err := time.Parse(dateLayout, s); err != nil {
		return nil, ValidationError{Field: field, Message: "must be a date in YYYY-MM-DD format"}
	}
	return &s, nil
}
