package audit

import (
	"context"
	"log/slog"
	"time"
)

// Publisher captures structured audit events. Emission is fire-and-forget:
// the registry records operations for compliance but never fails a business
// operation because the audit sink is down; failures are logged instead.
type Publisher struct {
	store  Store
	logger *slog.Logger
}

func NewPublisher(store Store, logger *slog.Logger) *Publisher {
	return &Publisher{store: store, logger: logger}
}

// Emit appends an event, stamping the timestamp when the caller left it zero.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := p.store.Append(ctx, event); err != nil {
		p.logger.ErrorContext(ctx, "audit append failed",
			"operation", event.Operation,
			"subject_id", event.SubjectID,
			"error", err,
		)
	}
}

// List returns events recorded for a subject.
func (p *Publisher) List(ctx context.Context, subjectID string) ([]Event, error) {
	return p.store.ListBySubject(ctx, subjectID)
}
