package audit

import "context"

// Store is the audit sink. Append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subjectID string) ([]Event, error)
}
