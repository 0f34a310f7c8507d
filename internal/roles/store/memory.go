package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"rolesync/internal/roles/models"
	id "rolesync/pkg/domain"
	"rolesync/pkg/platform/sentinel"
)

// InMemoryRoleStore is a thread-safe RoleRecordStore for tests and local runs.
// It enforces the same uniqueness rules as the postgres schema.
type InMemoryRoleStore struct {
	mu    sync.RWMutex
	roles map[id.RoleID]*models.Role
}

func NewInMemory() *InMemoryRoleStore {
	return &InMemoryRoleStore{roles: make(map[id.RoleID]*models.Role)}
}

func (s *InMemoryRoleStore) Insert(_ context.Context, role *models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.roles[role.ID]; exists {
		return fmt.Errorf("role %s: %w", role.ID, sentinel.ErrConflict)
	}
	for _, existing := range s.roles {
		if existing.AccountID == role.AccountID && existing.RoleType == role.RoleType {
			return fmt.Errorf("account already holds %s role: %w", role.RoleType, sentinel.ErrConflict)
		}
	}
	s.roles[role.ID] = role.Clone()
	return nil
}

func (s *InMemoryRoleStore) Update(_ context.Context, filter models.Filter, patch models.Patch) (int, error) {
	if filter.IsEmpty() {
		return 0, fmt.Errorf("update without filter: %w", sentinel.ErrInvalidState)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, r := range s.roles {
		if filter.Matches(r) {
			patch.Apply(r)
			r.Version++
			n++
		}
	}
	return n, nil
}

func (s *InMemoryRoleStore) Delete(_ context.Context, filter models.Filter) (int, error) {
	if filter.IsEmpty() {
		return 0, fmt.Errorf("delete without filter: %w", sentinel.ErrInvalidState)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for roleID, r := range s.roles {
		if filter.Matches(r) {
			delete(s.roles, roleID)
			n++
		}
	}
	return n, nil
}

// Select returns matching roles ordered by creation time.
func (s *InMemoryRoleStore) Select(_ context.Context, filter models.Filter) ([]*models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Role, 0)
	for _, r := range s.roles {
		if filter.Matches(r) {
			out = append(out, r.Clone())
		}
	}
	SortByCreation(out)
	return out, nil
}

// SortByCreation orders roles by CreatedAt. Roles written under one request
// clock share a timestamp; their time-ordered ids keep minting order.
func SortByCreation(roles []*models.Role) {
	slices.SortStableFunc(roles, func(a, b *models.Role) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return a.ID.Compare(b.ID)
	})
}
