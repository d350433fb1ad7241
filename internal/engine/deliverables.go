package engine

import (
	"context"
	"strings"

	"clientpilot/internal/domain"
	"clientpilot/internal/events"
	"clientpilot/internal/fsm"
	"clientpilot/internal/repo"
)

type DeliverableInput struct {
	ProjectID   string
	Title       string
	Description string
	DueDate     *string
}

// DeliverablePatch mirrors ProjectPatch: no status, empty DueDate clears.
type DeliverablePatch struct {
	Title       *string
	Description *string
	DueDate     *string
}

func (e Engine) CreateDeliverable(ctx context.Context, userID string, in DeliverableInput) (domain.Deliverable, error) {
	if err := required("project_id", in.ProjectID); err != nil {
		return domain.Deliverable{}, err
	}
	if err := required("title", in.Title); err != nil {
		return domain.Deliverable{}, err
	}
	due, err := normalizeDate("due_date", in.DueDate)
	if err != nil {
		return domain.Deliverable{}, err
	}
	if _, err := e.Repo.GetProject(ctx, userID, in.ProjectID); err != nil {
		return domain.Deliverable{}, err
	}
	now := e.stamp()
	d := domain.Deliverable{
		ID:          newID(),
		ProjectID:   in.ProjectID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Status:      domain.DeliverablePlanned,
		DueDate:     due,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Deliverable{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertDeliverable(ctx, tx, d); err != nil {
		return domain.Deliverable{}, err
	}
	if err := e.Events.Append(ctx, tx, events.DeliverableCreated, userID, "deliverable", d.ID, events.EventPayload{
		"project_id": d.ProjectID,
		"title":      d.Title,
		"status":     d.Status,
	}); err != nil {
		return domain.Deliverable{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Deliverable{}, err
	}
	return d, nil
}

func (e Engine) GetDeliverable(ctx context.Context, userID, id string) (domain.Deliverable, error) {
	return e.Repo.GetDeliverable(ctx, userID, id)
}

func (e Engine) ListDeliverables(ctx context.Context, userID string, f repo.DeliverableFilters) ([]domain.Deliverable, error) {
	if f.Status != "" && !fsm.Deliverables.Known(domain.DeliverableStatus(f.Status)) {
		return nil, ValidationError{Field: "status", Message: "unknown deliverable status"}
	}
	if f.ProjectID != "" {
		if _, err := e.Repo.GetProject(ctx, userID, f.ProjectID); err != nil {
			return nil, err
		}
	}
	ds, err := e.Repo.ListDeliverables(ctx, userID, f)
	if ds == nil {
		ds = []domain.Deliverable{}
	}
	return ds, err
}

func (e Engine) UpdateDeliverable(ctx context.Context, userID, id string, patch DeliverablePatch) (domain.Deliverable, error) {
	d, err := e.Repo.GetDeliverable(ctx, userID, id)
	if err != nil {
		return d, err
	}
	changed := []string{}
	if patch.Title != nil {
		if err := required("title", *patch.Title); err != nil {
			return domain.Deliverable{}, err
		}
		d.Title = strings.TrimSpace(*patch.Title)
		changed = append(changed, "title")
	}
	if patch.Description != nil {
		d.Description = *patch.Description
		changed = append(changed, "description")
	}
	if patch.DueDate != nil {
		if d.DueDate, err = normalizeDate("due_date", patch.DueDate); err != nil {
			return domain.Deliverable{}, err
		}
		changed = append(changed, "due_date")
	}
	if len(changed) == 0 {
		return d, nil
	}
	d.UpdatedAt = e.stamp()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return d, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateDeliverableFields(ctx, tx, d); err != nil {
		return d, err
	}
	if err := e.Events.Append(ctx, tx, events.DeliverableUpdated, userID, "deliverable", d.ID, events.EventPayload{"fields": changed}); err != nil {
		return d, err
	}
	if err := tx.Commit(); err != nil {
		return d, err
	}
	d.Version++
	return d, nil
}

// TransitionDeliverable is TransitionProject for deliverables.
func (e Engine) TransitionDeliverable(ctx context.Context, userID, id string, target domain.DeliverableStatus, expectedVersion int64) (domain.Deliverable, error) {
	d, err := e.Repo.GetDeliverable(ctx, userID, id)
	if err != nil {
		return d, err
	}
	if expectedVersion != 0 && expectedVersion != d.Version {
		return d, repo.ErrConflict
	}
	from, err := fsm.Deliverables.Transition(d.Status, target)
	if err != nil {
		return d, err
	}
	now := e.stamp()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return d, err
	}
	defer tx.Rollback()

	if err := e.Repo.SetDeliverableStatus(ctx, tx, d.ID, from, target, d.Version, now); err != nil {
		return d, err
	}
	if err := e.Events.Append(ctx, tx, events.DeliverableStatusChanged, userID, "deliverable", d.ID, events.EventPayload{
		"project_id": d.ProjectID,
		"from":       from,
		"to":         target,
	}); err != nil {
		return d, err
	}
	if err := tx.Commit(); err != nil {
		return d, err
	}
	d.Status = target
	d.Version++
	d.UpdatedAt = now
	return d, nil
}

func (e Engine) DeleteDeliverable(ctx context.Context, userID, id string) error {
	d, err := e.Repo.GetDeliverable(ctx, userID, id)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Repo.DeleteDeliverable(ctx, tx, d.ID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, events.DeliverableDeleted, userID, "deliverable", d.ID, events.EventPayload{"project_id": d.ProjectID}); err != nil {
		return err
	}
	return tx.Commit()
}
