package audit

import (
	"context"
	"sync"
)

// InMemory buffers audit events in process. Test and development sink.
type InMemory struct {
	mu     sync.RWMutex
	events []Event
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemory) ListBySubject(_ context.Context, subjectID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Event{}
	for _, event := range s.events {
		if event.SubjectID == subjectID {
			out = append(out, event)
		}
	}
	return out, nil
}

// All returns every recorded event; test helper.
func (s *InMemory) All() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.events...)
}
