package repo

import (
	"context"

	"clientpilot/internal/domain"
)

func (r Repo) CountClients(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(1) FROM clients WHERE user_id=?`, userID).Scan(&n)
	return n, err
}

func (r Repo) CountProjectsByStatus(ctx context.Context, userID string, status domain.ProjectStatus) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(1) FROM projects p JOIN clients c ON c.id=p.client_id WHERE c.user_id=? AND p.status=?`,
		userID, string(status)).Scan(&n)
	return n, err
}

// CountPendingDeliverables counts planned and in-progress deliverables.
func (r Repo) CountPendingDeliverables(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(1)`+deliverableOwnerJoin+` WHERE c.user_id=? AND d.status IN ('planned','in_progress')`,
		userID).Scan(&n)
	return n, err
}

// CountOverdueDeliverables counts unfinished deliverables due before today
// (YYYY-MM-DD).
func (r Repo) CountOverdueDeliverables(ctx context.Context, userID, today string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(1)`+deliverableOwnerJoin+` WHERE c.user_id=? AND d.status<>'completed' AND d.due_date IS NOT NULL AND d.due_date < ?`,
		userID, today).Scan(&n)
	return n, err
}

// UpcomingMilestones lists unfinished deliverables due today or later,
// soonest first.
func (r Repo) UpcomingMilestones(ctx context.Context, userID, today string, limit int) ([]domain.Milestone, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT d.id,d.title,p.id,p.title,d.due_date,d.status`+deliverableOwnerJoin+`
WHERE c.user_id=? AND d.status<>'completed' AND d.due_date IS NOT NULL AND d.due_date >= ?
ORDER BY d.due_date, d.id LIMIT ?`, userID, today, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Milestone{}
	for rows.Next() {
		var m domain.Milestone
		if err := rows.Scan(&m.DeliverableID, &m.Title, &m.ProjectID, &m.ProjectTitle, &m.DueDate, &m.Status); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}
