package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	ClientCreated            = "client.created"
	ClientUpdated            = "client.updated"
	ClientDeleted            = "client.deleted"
	ProjectCreated           = "project.created"
	ProjectUpdated           = "project.updated"
	ProjectDeleted           = "project.deleted"
	ProjectStatusChanged     = "project.status.changed"
	DeliverableCreated       = "deliverable.created"
	DeliverableUpdated       = "deliverable.updated"
	DeliverableDeleted       = "deliverable.deleted"
	DeliverableStatusChanged = "deliverable.status.changed"
	UserCreated              = "user.created"
	APIKeyCreated            = "api_key.created"
	AgentRunCompleted        = "agent_run.completed"
	AgentRunFailed           = "agent_run.failed"
)

// Writer appends activity rows inside the caller's transaction.
type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

// Execer is satisfied by *sql.Tx and *sql.DB.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (w Writer) Append(ctx context.Context, tx Execer, evtType, userID, entityKind, entityID string, payload EventPayload) error {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,user_id,entity_kind,entity_id,payload_json) VALUES (?,?,?,?,?,?)`,
		ts, evtType, nullable(userID), entityKind, nullable(entityID), string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
