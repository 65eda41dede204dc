package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	txcontext "qualinova/pkg/platform/tx"
)

// Postgres implements Store using the transactional outbox pattern. Events
// land in the outbox table inside the caller's transaction; the outbox
// worker drains them to Kafka, which is the durable audit trail. The local
// audit_events table is a queryable materialization.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Migrate creates the schema. Idempotent; called from main at startup.
func (s *Postgres) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS audit_outbox (
			id UUID PRIMARY KEY,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			published_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS audit_events (
			id UUID PRIMARY KEY,
			operation TEXT NOT NULL,
			subject_id TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL,
			details JSONB NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS audit_events_subject_idx ON audit_events (subject_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate audit schema: %w", err)
		}
	}
	return nil
}

// outboxPayload is the JSON structure published to Kafka.
type outboxPayload struct {
	ID        string            `json:"id"`
	Operation string            `json:"operation"`
	SubjectID string            `json:"subject_id"`
	ActorID   string            `json:"actor_id"`
	Timestamp string            `json:"timestamp"`
	Details   map[string]string `json:"details,omitempty"`
}

func (s *Postgres) Append(ctx context.Context, event Event) error {
	eventID := uuid.New()
	payload, err := json.Marshal(outboxPayload{
		ID:        eventID.String(),
		Operation: string(event.Operation),
		SubjectID: event.SubjectID,
		ActorID:   event.ActorID,
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Details:   event.Details,
	})
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	q := s.execer(ctx)
	if _, err := q.ExecContext(ctx, `
		INSERT INTO audit_outbox (id, payload, created_at) VALUES ($1, $2, $3)`,
		eventID, payload, time.Now()); err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	if _, err := q.ExecContext(ctx, `
		INSERT INTO audit_events (id, operation, subject_id, actor_id, occurred_at, details)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		eventID, string(event.Operation), event.SubjectID, event.ActorID, event.Timestamp, details); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *Postgres) ListBySubject(ctx context.Context, subjectID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT operation, subject_id, actor_id, occurred_at, details
		FROM audit_events WHERE subject_id = $1 ORDER BY occurred_at`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var (
			event   Event
			op      string
			details []byte
		)
		if err := rows.Scan(&op, &event.SubjectID, &event.ActorID, &event.Timestamp, &details); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Operation = Operation(op)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &event.Details); err != nil {
				return nil, fmt.Errorf("unmarshal audit details: %w", err)
			}
		}
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return out, nil
}

// NextUnpublished returns up to limit outbox entries awaiting publication.
func (s *Postgres) NextUnpublished(ctx context.Context, limit int) ([]OutboxEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, payload FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("read outbox: %w", err)
	}
	defer rows.Close()

	out := []OutboxEntry{}
	for rows.Next() {
		var entry OutboxEntry
		if err := rows.Scan(&entry.ID, &entry.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read outbox: %w", err)
	}
	return out, nil
}

// MarkPublished stamps outbox entries as delivered.
func (s *Postgres) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE audit_outbox SET published_at = $1 WHERE id = $2`, time.Now(), id); err != nil {
			return fmt.Errorf("mark outbox entry published: %w", err)
		}
	}
	return nil
}

// OutboxEntry is one row awaiting publication.
type OutboxEntry struct {
	ID      uuid.UUID
	Payload []byte
}
