package repo

import (
	"context"
	"database/sql"

	"clientpilot/internal/domain"
)

const clientColumns = `id,user_id,name,email,COALESCE(company,''),COALESCE(notes,''),created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(s rowScanner) (domain.Client, error) {
	var c domain.Client
	err := s.Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.Company, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) InsertClient(ctx context.Context, tx *sql.Tx, c domain.Client) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO clients(id,user_id,name,email,company,notes,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		c.ID, c.UserID, c.Name, c.Email, nullable(c.Company), nullable(c.Notes), c.CreatedAt, c.UpdatedAt)
	return mapConstraint(err)
}

// GetClient returns the client only when it belongs to userID.
func (r Repo) GetClient(ctx context.Context, userID, id string) (domain.Client, error) {
	return scanClient(r.DB.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id=? AND user_id=?`, id, userID))
}

func (r Repo) ListClients(ctx context.Context, userID string) ([]domain.Client, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE user_id=? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) UpdateClient(ctx context.Context, tx *sql.Tx, c domain.Client) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE clients SET name=?,email=?,company=?,notes=?,updated_at=? WHERE id=? AND user_id=?`,
		c.Name, c.Email, nullable(c.Company), nullable(c.Notes), c.UpdatedAt, c.ID, c.UserID)
	return affectedOr(res, err, ErrNotFound)
}

// DeleteClient removes the client; projects and deliverables go with it
// through ON DELETE CASCADE.
func (r Repo) DeleteClient(ctx context.Context, tx *sql.Tx, userID, id string) error {
	res, err := r.q(tx).ExecContext(ctx, `DELETE FROM clients WHERE id=? AND user_id=?`, id, userID)
	return affectedOr(res, err, ErrNotFound)
}
