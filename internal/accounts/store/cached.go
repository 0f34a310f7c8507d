package store

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"rolesync/internal/accounts/models"
	roles "rolesync/internal/roles/models"
	id "rolesync/pkg/domain"
)

// Directory is the account store contract shared by the implementations.
type Directory interface {
	Save(ctx context.Context, account *models.Account) error
	FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error)
	SetExpectedRoles(ctx context.Context, accountID id.AccountID, expected []roles.RoleType) error
}

// CachedDirectory serves FindByID from a bounded LRU with a TTL. Writes go to
// the backing directory and evict the entry.
type CachedDirectory struct {
	next  Directory
	cache *expirable.LRU[id.AccountID, *models.Account]
}

func NewCached(next Directory, size int, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{
		next:  next,
		cache: expirable.NewLRU[id.AccountID, *models.Account](size, nil, ttl),
	}
}

func (c *CachedDirectory) Save(ctx context.Context, account *models.Account) error {
	c.cache.Remove(account.ID)
	return c.next.Save(ctx, account)
}

func (c *CachedDirectory) FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	if a, ok := c.cache.Get(accountID); ok {
		return clone(a), nil
	}
	a, err := c.next.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	c.cache.Add(accountID, clone(a))
	return a, nil
}

func (c *CachedDirectory) SetExpectedRoles(ctx context.Context, accountID id.AccountID, expected []roles.RoleType) error {
	c.cache.Remove(accountID)
	return c.next.SetExpectedRoles(ctx, accountID, expected)
}
