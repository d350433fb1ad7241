package repo

import (
	"context"
	"database/sql"
	"strings"

	"clientpilot/internal/domain"
)

const deliverableColumns = `d.id,d.project_id,d.title,COALESCE(d.description,''),d.status,d.due_date,d.version,d.created_at,d.updated_at`

const deliverableOwnerJoin = ` FROM deliverables d JOIN projects p ON p.id=d.project_id JOIN clients c ON c.id=p.client_id`

func scanDeliverable(s rowScanner) (domain.Deliverable, error) {
	var d domain.Deliverable
	var due sql.NullString
	err := s.Scan(&d.ID, &d.ProjectID, &d.Title, &d.Description, &d.Status, &due, &d.Version, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	d.DueDate = optionalString(due)
	return d, err
}

func (r Repo) InsertDeliverable(ctx context.Context, tx *sql.Tx, d domain.Deliverable) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO deliverables(id,project_id,title,description,status,due_date,version,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		d.ID, d.ProjectID, d.Title, nullable(d.Description), string(d.Status), nullablePtr(d.DueDate), d.Version, d.CreatedAt, d.UpdatedAt)
	return mapConstraint(err)
}

func (r Repo) GetDeliverable(ctx context.Context, userID, id string) (domain.Deliverable, error) {
	return scanDeliverable(r.DB.QueryRowContext(ctx, `SELECT `+deliverableColumns+deliverableOwnerJoin+` WHERE d.id=? AND c.user_id=?`, id, userID))
}

type DeliverableFilters struct {
	ProjectID string
	Status    string
}

func (r Repo) ListDeliverables(ctx context.Context, userID string, f DeliverableFilters) ([]domain.Deliverable, error) {
	clauses := []string{"c.user_id=?"}
	args := []any{userID}
	if f.ProjectID != "" {
		clauses = append(clauses, "d.project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.Status != "" {
		clauses = append(clauses, "d.status=?")
		args = append(args, f.Status)
	}
	query := `SELECT ` + deliverableColumns + deliverableOwnerJoin + ` WHERE ` + strings.Join(clauses, " AND ") +
		` ORDER BY CASE WHEN d.due_date IS NULL THEN 1 ELSE 0 END, d.due_date, d.created_at, d.id`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Deliverable
	for rows.Next() {
		d, err := scanDeliverable(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

// UpdateDeliverableFields writes title, description and due date. Status is
// never written here.
func (r Repo) UpdateDeliverableFields(ctx context.Context, tx *sql.Tx, d domain.Deliverable) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE deliverables SET title=?,description=?,due_date=?,updated_at=?,version=version+1 WHERE id=?`,
		d.Title, nullable(d.Description), nullablePtr(d.DueDate), d.UpdatedAt, d.ID)
	return affectedOr(res, err, ErrNotFound)
}

// SetDeliverableStatus is the compare-and-swap counterpart of SetProjectStatus.
func (r Repo) SetDeliverableStatus(ctx context.Context, tx *sql.Tx, id string, from, to domain.DeliverableStatus, expectedVersion int64, updatedAt string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE deliverables SET status=?,updated_at=?,version=version+1 WHERE id=? AND status=? AND (?=0 OR version=?)`,
		string(to), updatedAt, id, string(from), expectedVersion, expectedVersion)
	return affectedOr(res, err, ErrConflict)
}

func (r Repo) DeleteDeliverable(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := r.q(tx).ExecContext(ctx, `DELETE FROM deliverables WHERE id=?`, id)
	return affectedOr(res, err, ErrNotFound)
}
