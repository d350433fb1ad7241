package repo

import (
	"context"
	"database/sql"

	"clientpilot/internal/domain"
)

const runColumns = `id,user_id,action,status,error_message,started_at,finished_at`

func scanRun(s rowScanner) (domain.AgentRun, error) {
	var run domain.AgentRun
	var errMsg, finished sql.NullString
	err := s.Scan(&run.ID, &run.UserID, &run.Action, &run.Status, &errMsg, &run.StartedAt, &finished)
	if err == sql.ErrNoRows {
		return run, ErrNotFound
	}
	run.ErrorMessage = optionalString(errMsg)
	run.FinishedAt = optionalString(finished)
	return run, err
}

func (r Repo) InsertRun(ctx context.Context, tx *sql.Tx, run domain.AgentRun) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO agent_runs(id,user_id,action,status,started_at) VALUES (?,?,?,?,?)`,
		run.ID, run.UserID, run.Action, string(run.Status), run.StartedAt)
	return err
}

// InsertStep stores a new step with the next sequence number of its run,
// computed from the steps already persisted. The run must still be
// running; otherwise ErrConflict is returned.
func (r Repo) InsertStep(ctx context.Context, tx *sql.Tx, step domain.StepRun) (domain.StepRun, error) {
	db := r.q(tx)
	var status string
	err := db.QueryRowContext(ctx, `SELECT status FROM agent_runs WHERE id=?`, step.AgentRunID).Scan(&status)
	if err == sql.ErrNoRows {
		return step, ErrNotFound
	}
	if err != nil {
		return step, err
	}
	if status != string(domain.RunRunning) {
		return step, ErrConflict
	}
	err = db.QueryRowContext(ctx, `INSERT INTO step_runs(id,agent_run_id,step_number,action,input_json,created_at)
SELECT ?,?,COALESCE(MAX(step_number),0)+1,?,?,? FROM step_runs WHERE agent_run_id=?
RETURNING step_number`,
		step.ID, step.AgentRunID, step.Action, step.InputJSON, step.CreatedAt, step.AgentRunID).Scan(&step.StepNumber)
	if err != nil {
		return step, mapConstraint(err)
	}
	return step, nil
}

// SetStepOutput records the output of a step exactly once.
func (r Repo) SetStepOutput(ctx context.Context, tx *sql.Tx, stepID, outputJSON string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE step_runs SET output_json=? WHERE id=? AND output_json IS NULL`, outputJSON, stepID)
	return affectedOr(res, err, ErrConflict)
}

// FinishRun moves a running run to its terminal status. Runs that already
// finished are left untouched and ErrConflict is returned.
func (r Repo) FinishRun(ctx context.Context, tx *sql.Tx, runID string, status domain.RunStatus, errMsg *string, finishedAt string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE agent_runs SET status=?,error_message=?,finished_at=? WHERE id=? AND status='running'`,
		string(status), nullablePtr(errMsg), finishedAt, runID)
	return affectedOr(res, err, ErrConflict)
}

func (r Repo) GetRun(ctx context.Context, userID, id string) (domain.AgentRun, error) {
	run, err := scanRun(r.DB.QueryRowContext(ctx, `SELECT `+runColumns+` FROM agent_runs WHERE id=? AND user_id=?`, id, userID))
	if err != nil {
		return run, err
	}
	run.Steps, err = r.ListSteps(ctx, run.ID)
	return run, err
}

type RunFilters struct {
	Action string
	Status string
	Limit  int
}

func (r Repo) ListRuns(ctx context.Context, userID string, f RunFilters) ([]domain.AgentRun, error) {
	query := `SELECT ` + runColumns + ` FROM agent_runs WHERE user_id=?`
	args := []any{userID}
	if f.Action != "" {
		query += ` AND action=?`
		args = append(args, f.Action)
	}
	if f.Status != "" {
		query += ` AND status=?`
		args = append(args, f.Status)
	}
	query += ` ORDER BY started_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AgentRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, run)
	}
	return res, rows.Err()
}

func (r Repo) ListSteps(ctx context.Context, runID string) ([]domain.StepRun, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,agent_run_id,step_number,action,input_json,output_json,created_at FROM step_runs WHERE agent_run_id=? ORDER BY step_number`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.StepRun
	for rows.Next() {
		var s domain.StepRun
		var out sql.NullString
		if err := rows.Scan(&s.ID, &s.AgentRunID, &s.StepNumber, &s.Action, &s.InputJSON, &out, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.OutputJSON = optionalString(out)
		res = append(res, s)
	}
	return res, rows.Err()
}
