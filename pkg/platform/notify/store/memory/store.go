package memory

import (
	"context"
	"sync"

	id "rolesync/pkg/domain"
	"rolesync/pkg/platform/notify"
)

// InMemoryStore records events per account. It serves as both a sink and a
// durable store in tests and local runs.
type InMemoryStore struct {
	mu           sync.RWMutex
	events       map[id.AccountID][]notify.Event
	acknowledged map[string]struct{}
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		events:       make(map[id.AccountID][]notify.Event),
		acknowledged: make(map[string]struct{}),
	}
}

func (s *InMemoryStore) Append(_ context.Context, event notify.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.AccountID] = append(s.events[event.AccountID], event)
	return nil
}

func (s *InMemoryStore) Deliver(ctx context.Context, events []notify.Event) error {
	for _, e := range events {
		if err := s.Append(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (s *InMemoryStore) ListByAccount(_ context.Context, accountID id.AccountID) ([]notify.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]notify.Event{}, s.events[accountID]...), nil
}

// ListOpenAlerts returns durable alerts not yet acknowledged.
func (s *InMemoryStore) ListOpenAlerts(_ context.Context, accountID id.AccountID) ([]notify.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []notify.Event
	for _, e := range s.events[accountID] {
		if !e.Type.Durable() {
			continue
		}
		if _, ack := s.acknowledged[e.ID]; ack {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *InMemoryStore) Acknowledge(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acknowledged[eventID] = struct{}{}
	return nil
}

// CountByType counts recorded events of type t for accountID.
func (s *InMemoryStore) CountByType(accountID id.AccountID, t notify.EventType) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.events[accountID] {
		if e.Type == t {
			n++
		}
	}
	return n
}
