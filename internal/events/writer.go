// Package events records an append-only activity log next to the data it
// describes. Appends run inside the caller's transaction, so an event exists
// exactly when the mutation it reports committed.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Event types emitted by the engine.
const (
	TypePlanCreated    = "plan.created"
	TypePlanUpdated    = "plan.updated"
	TypeRolloutCreated = "rollout.created"

	TypeEnvironmentCreated = "environment.created"
	TypeInstanceCreated    = "instance.created"
	TypeProjectCreated     = "project.created"
	TypeDatabaseCreated    = "database.created"
	TypeSheetCreated       = "sheet.created"
	TypeBackupCreated      = "backup.created"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

// EventPayload is free-form structured detail, stored as JSON.
type EventPayload map[string]any

// Append writes one event within tx. An empty projectID or entityID is
// stored as NULL so unscoped events stay filterable.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, projectID, entityKind, entityID, actorID string, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload for %s event: %w", evtType, err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,project_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		ts, evtType, nullString(projectID), entityKind, nullString(entityID), actorID, string(data))
	return err
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
