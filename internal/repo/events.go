package repo

import (
	"context"
	"database/sql"
	"strings"

	"clientpilot/internal/domain"
)

type EventFilters struct {
	Type       string
	EntityKind string
	EntityID   string
	// Cursor returns events with an id strictly below it.
	Cursor int64
	Limit  int
}

func (r Repo) ListEvents(ctx context.Context, userID string, f EventFilters) ([]domain.Event, error) {
	clauses := []string{"user_id=?"}
	args := []any{userID}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.EntityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, f.EntityKind)
	}
	if f.EntityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, f.EntityID)
	}
	if f.Cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, f.Cursor)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id,ts,type,COALESCE(user_id,''),entity_kind,COALESCE(entity_id,''),payload_json FROM events WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.UserID, &e.EntityKind, &e.EntityID, &payload); err != nil {
			return nil, err
		}
		if payload.Valid {
			e.PayloadJSON = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
