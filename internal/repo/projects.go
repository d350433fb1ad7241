package repo

import (
	"context"
	"database/sql"
	"strings"

	"clientpilot/internal/domain"
)

const projectColumns = `p.id,p.client_id,p.title,COALESCE(p.description,''),p.status,p.deadline,p.version,p.created_at,p.updated_at`

func scanProject(s rowScanner) (domain.Project, error) {
	var p domain.Project
	var deadline sql.NullString
	err := s.Scan(&p.ID, &p.ClientID, &p.Title, &p.Description, &p.Status, &deadline, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	p.Deadline = optionalString(deadline)
	return p, err
}

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO projects(id,client_id,title,description,status,deadline,version,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		p.ID, p.ClientID, p.Title, nullable(p.Description), string(p.Status), nullablePtr(p.Deadline), p.Version, p.CreatedAt, p.UpdatedAt)
	return mapConstraint(err)
}

// GetProject returns the project only when its client belongs to userID.
func (r Repo) GetProject(ctx context.Context, userID, id string) (domain.Project, error) {
	return scanProject(r.DB.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects p JOIN clients c ON c.id=p.client_id WHERE p.id=? AND c.user_id=?`, id, userID))
}

type ProjectFilters struct {
	ClientID string
	Status   string
}

func (r Repo) ListProjects(ctx context.Context, userID string, f ProjectFilters) ([]domain.Project, error) {
	clauses := []string{"c.user_id=?"}
	args := []any{userID}
	if f.ClientID != "" {
		clauses = append(clauses, "p.client_id=?")
		args = append(args, f.ClientID)
	}
	if f.Status != "" {
		clauses = append(clauses, "p.status=?")
		args = append(args, f.Status)
	}
	query := `SELECT ` + projectColumns + ` FROM projects p JOIN clients c ON c.id=p.client_id WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY p.created_at DESC, p.id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// UpdateProjectFields writes title, description and deadline. Status is
// never written here.
func (r Repo) UpdateProjectFields(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE projects SET title=?,description=?,deadline=?,updated_at=?,version=version+1 WHERE id=?`,
		p.Title, nullable(p.Description), nullablePtr(p.Deadline), p.UpdatedAt, p.ID)
	return affectedOr(res, err, ErrNotFound)
}

// SetProjectStatus swaps the status only if the row still holds from (and,
// when expectedVersion > 0, that version). A lost race yields ErrConflict.
func (r Repo) SetProjectStatus(ctx context.Context, tx *sql.Tx, id string, from, to domain.ProjectStatus, expectedVersion int64, updatedAt string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE projects SET status=?,updated_at=?,version=version+1 WHERE id=? AND status=? AND (?=0 OR version=?)`,
		string(to), updatedAt, id, string(from), expectedVersion, expectedVersion)
	return affectedOr(res, err, ErrConflict)
}

func (r Repo) DeleteProject(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := r.q(tx).ExecContext(ctx, `DELETE FROM projects WHERE id=?`, id)
	return affectedOr(res, err, ErrNotFound)
}
