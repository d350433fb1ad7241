package repo

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"

	"clientpilot/internal/domain"
)

// HashAPIKey returns a stable SHA-256 hex digest for the provided key.
// Keys are looked up by digest, so the hash must be unsalted.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(key)))
	return hex.EncodeToString(sum[:])
}

// InsertAPIKey stores a hashed API key. KeyHash must already contain the hashed value.
func (r Repo) InsertAPIKey(ctx context.Context, tx *sql.Tx, key domain.APIKey) error {
	if key.ID == "" {
		return errors.New("id required")
	}
	if key.UserID == "" {
		return errors.New("user_id required")
	}
	if key.KeyHash == "" {
		return errors.New("key_hash required")
	}
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO api_keys(id,user_id,name,key_hash,created_at) VALUES (?,?,?,?,?)`,
		key.ID, key.UserID, nullable(key.Name), key.KeyHash, key.CreatedAt)
	return mapConstraint(err)
}

func scanAPIKey(s rowScanner) (domain.APIKey, error) {
	var key domain.APIKey
	err := s.Scan(&key.ID, &key.UserID, &key.Name, &key.KeyHash, &key.CreatedAt)
	if err == sql.ErrNoRows {
		return key, ErrNotFound
	}
	return key, err
}

// GetAPIKeyByHash returns an API key by its hashed value.
func (r Repo) GetAPIKeyByHash(ctx context.Context, hash string) (domain.APIKey, error) {
	return scanAPIKey(r.DB.QueryRowContext(ctx, `SELECT id,user_id,COALESCE(name,''),key_hash,created_at FROM api_keys WHERE key_hash=? LIMIT 1`, hash))
}

func (r Repo) ListAPIKeys(ctx context.Context, userID string) ([]domain.APIKey, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,user_id,COALESCE(name,''),key_hash,created_at FROM api_keys WHERE user_id=? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []domain.APIKey
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (r Repo) DeleteAPIKey(ctx context.Context, userID, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("id required")
	}
	res, err := r.DB.ExecContext(ctx, `DELETE FROM api_keys WHERE id=? AND user_id=?`, id, userID)
	return affectedOr(res, err, ErrNotFound)
}
