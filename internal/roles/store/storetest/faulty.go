// Package storetest provides a role store with scripted failures for tests of
// the packages layered on top of the role store.
package storetest

import (
	"context"
	"sync"
	"time"

	"rolesync/internal/roles/models"
	"rolesync/internal/roles/store"
)

type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpSelect Op = "select"
)

// Call describes one store invocation.
type Call struct {
	Op     Op
	Role   *models.Role
	Filter models.Filter
	Patch  models.Patch
}

type fault struct {
	op         Op
	match      func(Call) bool
	err        error
	remaining  int
	afterWrite bool
	delay      time.Duration
}

// FaultyStore wraps the in-memory store. Faults are consumed in the order
// they were registered.
type FaultyStore struct {
	*store.InMemoryRoleStore

	mu     sync.Mutex
	faults []*fault
	calls  map[Op]int
}

func New() *FaultyStore {
	return &FaultyStore{InMemoryRoleStore: store.NewInMemory(), calls: make(map[Op]int)}
}

// Fail makes the next `times` calls of op that satisfy match return err.
// A nil match matches every call.
func (s *FaultyStore) Fail(op Op, match func(Call) bool, err error, times int) {
	s.add(&fault{op: op, match: match, err: err, remaining: times})
}

// FailNext fails the next call of op.
func (s *FaultyStore) FailNext(op Op, err error) {
	s.Fail(op, nil, err, 1)
}

// WriteThenFail performs the next matching write and then reports err, as
// when an acknowledgement is lost after the store committed.
func (s *FaultyStore) WriteThenFail(op Op, match func(Call) bool, err error) {
	s.add(&fault{op: op, match: match, err: err, remaining: 1, afterWrite: true})
}

// Delay holds the next matching call for d or until its context ends.
func (s *FaultyStore) Delay(op Op, match func(Call) bool, d time.Duration) {
	s.add(&fault{op: op, match: match, delay: d, remaining: 1})
}

// Calls reports how many times op was invoked.
func (s *FaultyStore) Calls(op Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// ForRoleType matches inserts of roleType and filtered calls naming it.
func ForRoleType(roleType models.RoleType) func(Call) bool {
	return func(c Call) bool {
		if c.Role != nil {
			return c.Role.RoleType == roleType
		}
		return c.Filter.RoleType == roleType
	}
}

func (s *FaultyStore) add(f *fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, f)
}

func (s *FaultyStore) take(c Call) *fault {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[c.Op]++
	for i, f := range s.faults {
		if f.op != c.Op || (f.match != nil && !f.match(c)) {
			continue
		}
		f.remaining--
		if f.remaining <= 0 {
			s.faults = append(s.faults[:i], s.faults[i+1:]...)
		}
		return f
	}
	return nil
}

func (s *FaultyStore) before(ctx context.Context, f *fault) error {
	if f == nil {
		return nil
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.err != nil && !f.afterWrite {
		return f.err
	}
	return nil
}

func (s *FaultyStore) after(f *fault, err error) error {
	if err == nil && f != nil && f.afterWrite {
		return f.err
	}
	return err
}

func (s *FaultyStore) Insert(ctx context.Context, role *models.Role) error {
	f := s.take(Call{Op: OpInsert, Role: role})
	if err := s.before(ctx, f); err != nil {
		return err
	}
	return s.after(f, s.InMemoryRoleStore.Insert(ctx, role))
}

func (s *FaultyStore) Update(ctx context.Context, filter models.Filter, patch models.Patch) (int, error) {
	f := s.take(Call{Op: OpUpdate, Filter: filter, Patch: patch})
	if err := s.before(ctx, f); err != nil {
		return 0, err
	}
	n, err := s.InMemoryRoleStore.Update(ctx, filter, patch)
	return n, s.after(f, err)
}

func (s *FaultyStore) Delete(ctx context.Context, filter models.Filter) (int, error) {
	f := s.take(Call{Op: OpDelete, Filter: filter})
	if err := s.before(ctx, f); err != nil {
		return 0, err
	}
	n, err := s.InMemoryRoleStore.Delete(ctx, filter)
	return n, s.after(f, err)
}

func (s *FaultyStore) Select(ctx context.Context, filter models.Filter) ([]*models.Role, error) {
	f := s.take(Call{Op: OpSelect, Filter: filter})
	if err := s.before(ctx, f); err != nil {
		return nil, err
	}
	return s.InMemoryRoleStore.Select(ctx, filter)
}
