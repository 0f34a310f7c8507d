package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"rolesync/internal/accounts/models"
	roles "rolesync/internal/roles/models"
	id "rolesync/pkg/domain"
	"rolesync/pkg/platform/sentinel"
)

// InMemoryDirectory stores accounts in a map.
type InMemoryDirectory struct {
	mu       sync.RWMutex
	accounts map[id.AccountID]*models.Account
}

func NewInMemory() *InMemoryDirectory {
	return &InMemoryDirectory{accounts: make(map[id.AccountID]*models.Account)}
}

func (d *InMemoryDirectory) Save(_ context.Context, account *models.Account) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accounts[account.ID] = clone(account)
	return nil
}

func (d *InMemoryDirectory) FindByID(_ context.Context, accountID id.AccountID) (*models.Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", accountID, sentinel.ErrNotFound)
	}
	return clone(a), nil
}

func (d *InMemoryDirectory) SetExpectedRoles(_ context.Context, accountID id.AccountID, expected []roles.RoleType) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.accounts[accountID]
	if !ok {
		return fmt.Errorf("account %s: %w", accountID, sentinel.ErrNotFound)
	}
	a.ExpectedRoles = slices.Clone(expected)
	return nil
}

func clone(a *models.Account) *models.Account {
	out := *a
	out.ExpectedRoles = slices.Clone(a.ExpectedRoles)
	return &out
}
