package engine

import (
	"context"

	"clientpilot/internal/ai"
	"clientpilot/internal/domain"
	"clientpilot/internal/repo"
)

// StructureScope runs scope structuring over free-form client notes.
func (e Engine) StructureScope(ctx context.Context, userID, text string) (ai.Result, error) {
	if err := required("text", text); err != nil {
		return ai.Result{}, err
	}
	return e.AI.Run(ctx, userID, ai.ScopeStructuringPlan(text))
}

// AnalyzeRisk scores delivery risk of one of the user's projects.
func (e Engine) AnalyzeRisk(ctx context.Context, userID, projectID string) (ai.Result, error) {
	if err := required("project_id", projectID); err != nil {
		return ai.Result{}, err
	}
	p, err := e.Repo.GetProject(ctx, userID, projectID)
	if err != nil {
		return ai.Result{}, err
	}
	ds, err := e.Repo.ListDeliverables(ctx, userID, repo.DeliverableFilters{ProjectID: p.ID})
	if err != nil {
		return ai.Result{}, err
	}
	plan, err := ai.RiskAnalysisPlan(ai.RiskContext{
		ProjectTitle: p.Title,
		Deadline:     p.Deadline,
		Deliverables: deliverableContexts(ds, true),
	})
	if err != nil {
		return ai.Result{}, err
	}
	return e.AI.Run(ctx, userID, plan)
}

// GenerateUpdate drafts a progress email for the project's client.
func (e Engine) GenerateUpdate(ctx context.Context, userID, projectID string) (ai.Result, error) {
	if err := required("project_id", projectID); err != nil {
		return ai.Result{}, err
	}
	p, err := e.Repo.GetProject(ctx, userID, projectID)
	if err != nil {
		return ai.Result{}, err
	}
	c, err := e.Repo.GetClient(ctx, userID, p.ClientID)
	if err != nil {
		return ai.Result{}, err
	}
	ds, err := e.Repo.ListDeliverables(ctx, userID, repo.DeliverableFilters{ProjectID: p.ID})
	if err != nil {
		return ai.Result{}, err
	}
	plan, err := ai.UpdateGenerationPlan(ai.UpdateContext{
		ClientName:   c.Name,
		Company:      c.Company,
		ProjectTitle: p.Title,
		Deliverables: deliverableContexts(ds, false),
	})
	if err != nil {
		return ai.Result{}, err
	}
	return e.AI.Run(ctx, userID, plan)
}

func deliverableContexts(ds []domain.Deliverable, withDue bool) []ai.DeliverableContext {
	out := make([]ai.DeliverableContext, 0, len(ds))
	for _, d := range ds {
		dc := ai.DeliverableContext{Title: d.Title, Status: string(d.Status)}
		if withDue {
			dc.DueDate = d.DueDate
		}
		out = append(out, dc)
	}
	return out
}

func (e Engine) ListRuns(ctx context.Context, userID string, f repo.RunFilters) ([]domain.AgentRun, error) {
	runs, err := e.Repo.ListRuns(ctx, userID, f)
	if runs == nil {
		runs = []domain.AgentRun{}
	}
	return runs, err
}

// GetRun returns the run with its steps in order.
func (e Engine) GetRun(ctx context.Context, userID, id string) (domain.AgentRun, error) {
	run, err := e.Repo.GetRun(ctx, userID, id)
	if err == nil && run.Steps == nil {
		run.Steps = []domain.StepRun{}
	}
	return run, err
}

func (e Engine) ListEvents(ctx context.Context, userID string, f repo.EventFilters) ([]domain.Event, error) {
	evs, err := e.Repo.ListEvents(ctx, userID, f)
	if evs == nil {
		evs = []domain.Event{}
	}
	return evs, err
}
