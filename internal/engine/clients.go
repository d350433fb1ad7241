package engine

import (
	"context"
	"net/mail"
	"strings"

	"clientpilot/internal/domain"
	"clientpilot/internal/events"
)

type ClientInput struct {
	Name    string
	Email   string
	Company string
	Notes   string
}

// ClientPatch carries the fields to change; nil leaves a field untouched.
type ClientPatch struct {
	Name    *string
	Email   *string
	Company *string
	Notes   *string
}

func validateClient(c domain.Client) error {
	if err := required("name", c.Name); err != nil {
		return err
	}
	if err := required("email", c.Email); err != nil {
		return err
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return ValidationError{Field: "email", Message: "must be a valid email address"}
	}
	return nil
}

func (e Engine) CreateClient(ctx context.Context, userID string, in ClientInput) (domain.Client, error) {
	now := e.stamp()
	c := domain.Client{
		ID:        newID(),
		UserID:    userID,
		Name:      strings.TrimSpace(in.Name),
		Email:     strings.TrimSpace(in.Email),
		Company:   strings.TrimSpace(in.Company),
		Notes:     in.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := validateClient(c); err != nil {
		return domain.Client{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Client{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertClient(ctx, tx, c); err != nil {
		return domain.Client{}, err
	}
	if err := e.Events.Append(ctx, tx, events.ClientCreated, userID, "client", c.ID, events.EventPayload{"name": c.Name}); err != nil {
		return domain.Client{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Client{}, err
	}
	return c, nil
}

func (e Engine) GetClient(ctx context.Context, userID, id string) (domain.Client, error) {
	return e.Repo.GetClient(ctx, userID, id)
}

func (e Engine) ListClients(ctx context.Context, userID string) ([]domain.Client, error) {
	clients, err := e.Repo.ListClients(ctx, userID)
	if clients == nil {
		clients = []domain.Client{}
	}
	return clients, err
}

func (e Engine) UpdateClient(ctx context.Context, userID, id string, p ClientPatch) (domain.Client, error) {
	c, err := e.Repo.GetClient(ctx, userID, id)
	if err != nil {
		return c, err
	}
	changed := []string{}
	if p.Name != nil {
		c.Name = strings.TrimSpace(*p.Name)
		changed = append(changed, "name")
	}
	if p.Email != nil {
		c.Email = strings.TrimSpace(*p.Email)
		changed = append(changed, "email")
	}
	if p.Company != nil {
		c.Company = strings.TrimSpace(*p.Company)
		changed = append(changed, "company")
	}
	if p.Notes != nil {
		c.Notes = *p.Notes
		changed = append(changed, "notes")
	}
	if len(changed) == 0 {
		return c, nil
	}
	if err := validateClient(c); err != nil {
		return domain.Client{}, err
	}
	c.UpdatedAt = e.stamp()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return c, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateClient(ctx, tx, c); err != nil {
		return c, err
	}
	if err := e.Events.Append(ctx, tx, events.ClientUpdated, userID, "client", c.ID, events.EventPayload{"fields": changed}); err != nil {
		return c, err
	}
	if err := tx.Commit(); err != nil {
		return c, err
	}
	return c, nil
}

// DeleteClient removes a client with its projects and deliverables.
func (e Engine) DeleteClient(ctx context.Context, userID, id string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Repo.DeleteClient(ctx, tx, userID, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, events.ClientDeleted, userID, "client", id, nil); err != nil {
		return err
	}
	return tx.Commit()
}
