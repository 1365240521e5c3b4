package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-crm/internal/db"
	"github.com/hackgods/clinic-crm/pkg/logging"
)

const (
	EntityAppointment = "appointment"
	EntityLead        = "lead"
	EntityPatient     = "patient"
)

type Event struct {
	ID         int64
	EventType  string
	EntityType string
	EntityID   *uuid.UUID
	Payload    []byte
	CreatedAt  time.Time
}

// Recorder appends audit events. Failures are logged and never returned:
// an audit write must not undo a domain write that already happened.
type Recorder interface {
	Record(ctx context.Context, eventType, entityType string, entityID uuid.UUID, payload map[string]any)
}

type PgRecorder struct {
	db     db.DBTX
	logger *logging.Logger
}

func NewPgRecorder(conn db.DBTX, logger *logging.Logger) *PgRecorder {
	if logger == nil {
		logger = logging.Default()
	}
	return &PgRecorder{db: conn, logger: logger}
}

func (r *PgRecorder) Record(ctx context.Context, eventType, entityType string, entityID uuid.UUID, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Warn("failed to marshal event payload", "event_type", eventType, "error", err)
		data = nil
	}

	id := entityID
	ev := Event{
		EventType:  eventType,
		EntityType: entityType,
		EntityID:   &id,
		Payload:    data,
		CreatedAt:  time.Now(),
	}

	if err := r.insert(ctx, ev); err != nil {
		r.logger.Error("failed to insert event log",
			"event_type", eventType,
			"entity_type", entityType,
			"entity_id", entityID,
			"error", err,
		)
	}
}

func (r *PgRecorder) insert(ctx context.Context, ev Event) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO event_logs (event_type, entity_type, entity_id, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`, ev.EventType, ev.EntityType, ev.EntityID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Nop drops every event.
type Nop struct{}

func (Nop) Record(context.Context, string, string, uuid.UUID, map[string]any) {}
