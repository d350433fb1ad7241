package engine

import (
	"context"
	"strings"

	"clientpilot/internal/domain"
	"clientpilot/internal/events"
	"clientpilot/internal/fsm"
	"clientpilot/internal/repo"
)

type ProjectInput struct {
	ClientID    string
	Title       string
	Description string
	Deadline    *string
}

// ProjectPatch has no status field: status only moves through
// TransitionProject. An empty Deadline clears it.
type ProjectPatch struct {
	Title       *string
	Description *string
	Deadline    *string
}

func (e Engine) CreateProject(ctx context.Context, userID string, in ProjectInput) (domain.Project, error) {
	if err := required("client_id", in.ClientID); err != nil {
		return domain.Project{}, err
	}
	if err := required("title", in.Title); err != nil {
		return domain.Project{}, err
	}
	deadline, err := normalizeDate("deadline", in.Deadline)
	if err != nil {
		return domain.Project{}, err
	}
	if _, err := e.Repo.GetClient(ctx, userID, in.ClientID); err != nil {
		return domain.Project{}, err
	}
	now := e.stamp()
	p := domain.Project{
		ID:          newID(),
		ClientID:    in.ClientID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Status:      domain.ProjectActive,
		Deadline:    deadline,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertProject(ctx, tx, p); err != nil {
		return domain.Project{}, err
	}
	if err := e.Events.Append(ctx, tx, events.ProjectCreated, userID, "project", p.ID, events.EventPayload{
		"client_id": p.ClientID,
		"title":     p.Title,
		"status":    p.Status,
	}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

func (e Engine) GetProject(ctx context.Context, userID, id string) (domain.Project, error) {
	return e.Repo.GetProject(ctx, userID, id)
}

func (e Engine) ListProjects(ctx context.Context, userID string, f repo.ProjectFilters) ([]domain.Project, error) {
	if f.Status != "" && !fsm.Projects.Known(domain.ProjectStatus(f.Status)) {
		return nil, ValidationError{Field: "status", Message: "unknown project status"}
	}
	if f.ClientID != "" {
		if _, err := e.Repo.GetClient(ctx, userID, f.ClientID); err != nil {
			return nil, err
		}
	}
	projects, err := e.Repo.ListProjects(ctx, userID, f)
	if projects == nil {
		projects = []domain.Project{}
	}
	return projects, err
}

func (e Engine) UpdateProject(ctx context.Context, userID, id string, patch ProjectPatch) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, userID, id)
	if err != nil {
		return p, err
	}
	changed := []string{}
	if patch.Title != nil {
		if err := required("title", *patch.Title); err != nil {
			return domain.Project{}, err
		}
		p.Title = strings.TrimSpace(*patch.Title)
		changed = append(changed, "title")
	}
	if patch.Description != nil {
		p.Description = *patch.Description
		changed = append(changed, "description")
	}
	if patch.Deadline != nil {
		if p.Deadline, err = normalizeDate("deadline", patch.Deadline); err != nil {
			return domain.Project{}, err
		}
		changed = append(changed, "deadline")
	}
	if len(changed) == 0 {
		return p, nil
	}
	p.UpdatedAt = e.stamp()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return p, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateProjectFields(ctx, tx, p); err != nil {
		return p, err
	}
	if err := e.Events.Append(ctx, tx, events.ProjectUpdated, userID, "project", p.ID, events.EventPayload{"fields": changed}); err != nil {
		return p, err
	}
	if err := tx.Commit(); err != nil {
		return p, err
	}
	p.Version++
	return p, nil
}

// TransitionProject moves a project to target through fsm.Projects. The
// write is conditional on the status read here and, when expectedVersion
// is non-zero, on the version too; losing either race yields
// repo.ErrConflict.
func (e Engine) TransitionProject(ctx context.Context, userID, id string, target domain.ProjectStatus, expectedVersion int64) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, userID, id)
	if err != nil {
		return p, err
	}
	if expectedVersion != 0 && expectedVersion != p.Version {
		return p, repo.ErrConflict
	}
	from, err := fsm.Projects.Transition(p.Status, target)
	if err != nil {
		return p, err
	}
	now := e.stamp()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return p, err
	}
	defer tx.Rollback()

	if err := e.Repo.SetProjectStatus(ctx, tx, p.ID, from, target, p.Version, now); err != nil {
		return p, err
	}
	if err := e.Events.Append(ctx, tx, events.ProjectStatusChanged, userID, "project", p.ID, events.EventPayload{
		"from": from,
		"to":   target,
	}); err != nil {
		return p, err
	}
	if err := tx.Commit(); err != nil {
		return p, err
	}
	p.Status = target
	p.Version++
	p.UpdatedAt = now
	e.logger().Debug("project status changed", "project_id", p.ID, "from", from, "to", target)
	return p, nil
}

func (e Engine) DeleteProject(ctx context.Context, userID, id string) error {
	p, err := e.Repo.GetProject(ctx, userID, id)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Repo.DeleteProject(ctx, tx, p.ID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, events.ProjectDeleted, userID, "project", p.ID, events.EventPayload{"client_id": p.ClientID}); err != nil {
		return err
	}
	return tx.Commit()
}
