package engine

import (
	"context"
	"database/sql"

	"clientpilot/internal/domain"
	"clientpilot/internal/events"
	"clientpilot/internal/repo"
)

// RunStore persists orchestrator runs through repo. Each call is a single
// write; closing a run also records its activity event.
type RunStore struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
}

func (s RunStore) CreateRun(ctx context.Context, run domain.AgentRun) error {
	return s.Repo.InsertRun(ctx, nil, run)
}

func (s RunStore) AppendStep(ctx context.Context, step domain.StepRun) (domain.StepRun, error) {
	return s.Repo.InsertStep(ctx, nil, step)
}

func (s RunStore) CompleteStep(ctx context.Context, stepID, outputJSON string) error {
	return s.Repo.SetStepOutput(ctx, nil, stepID, outputJSON)
}

func (s RunStore) FinishRun(ctx context.Context, run domain.AgentRun) error {
	finished := ""
	if run.FinishedAt != nil {
		finished = *run.FinishedAt
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.Repo.FinishRun(ctx, tx, run.ID, run.Status, run.ErrorMessage, finished); err != nil {
		return err
	}
	evtType := events.AgentRunCompleted
	payload := events.EventPayload{"action": run.Action}
	if run.Status == domain.RunFailed {
		evtType = events.AgentRunFailed
		if run.ErrorMessage != nil {
			payload["error"] = *run.ErrorMessage
		}
	}
	if err := s.Events.Append(ctx, tx, evtType, run.UserID, "agent_run", run.ID, payload); err != nil {
		return err
	}
	return tx.Commit()
}
