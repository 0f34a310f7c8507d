package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"rolesync/internal/propertysync/ports"
	"rolesync/internal/roles/models"
	id "rolesync/pkg/domain"
)

type accessKey struct {
	account  id.AccountID
	basis    models.AccessBasis
	property id.PropertyID
}

// Portfolio is the default container created for owner-type roles.
type Portfolio struct {
	ID        string
	AccountID id.AccountID
	RoleID    id.RoleID
	Name      string
	CreatedAt time.Time
}

// Resources is an in-memory implementation of every resource port plus the
// defaults provisioner. Safe for concurrent use.
type Resources struct {
	mu         sync.RWMutex
	access     map[accessKey]struct{}
	documents  map[id.PropertyID][]ports.ResourceRef
	contracts  map[id.PropertyID][]ports.ResourceRef
	budgets    map[id.PropertyID][]ports.ResourceRef
	portfolios map[id.RoleID]Portfolio
}

func NewResources() *Resources {
	return &Resources{
		access:     make(map[accessKey]struct{}),
		documents:  make(map[id.PropertyID][]ports.ResourceRef),
		contracts:  make(map[id.PropertyID][]ports.ResourceRef),
		budgets:    make(map[id.PropertyID][]ports.ResourceRef),
		portfolios: make(map[id.RoleID]Portfolio),
	}
}

// Grant records that accountID reaches propertyID through basis.
func (r *Resources) Grant(accountID id.AccountID, basis models.AccessBasis, propertyID id.PropertyID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.access[accessKey{accountID, basis, propertyID}] = struct{}{}
}

func (r *Resources) AddDocument(propertyID id.PropertyID, title string) ports.ResourceRef {
	return r.add(r.documents, propertyID, ports.KindDocument, title)
}

// AddContract records a service contract on propertyID. A contract also
// grants its provider contract-history access.
func (r *Resources) AddContract(providerID id.AccountID, propertyID id.PropertyID, title string) ports.ResourceRef {
	ref := r.add(r.contracts, propertyID, ports.KindContract, title)
	r.Grant(providerID, models.AccessByContractHistory, propertyID)
	return ref
}

func (r *Resources) AddBudgetEntry(propertyID id.PropertyID, title string) ports.ResourceRef {
	return r.add(r.budgets, propertyID, ports.KindBudgetEntry, title)
}

func (r *Resources) add(m map[id.PropertyID][]ports.ResourceRef, propertyID id.PropertyID, kind, title string) ports.ResourceRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref := ports.ResourceRef{ID: uuid.NewString(), Kind: kind, Title: title, UpdatedAt: time.Now().UTC()}
	m[propertyID] = append(m[propertyID], ref)
	return ref
}

func (r *Resources) HasAccess(_ context.Context, accountID id.AccountID, basis models.AccessBasis, propertyID id.PropertyID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.access[accessKey{accountID, basis, propertyID}]
	return ok, nil
}

func (r *Resources) DocumentsForProperty(_ context.Context, propertyID id.PropertyID) ([]ports.ResourceRef, error) {
	return r.list(r.documents, propertyID), nil
}

func (r *Resources) ContractsForProperty(_ context.Context, propertyID id.PropertyID) ([]ports.ResourceRef, error) {
	return r.list(r.contracts, propertyID), nil
}

func (r *Resources) BudgetHistory(_ context.Context, propertyID id.PropertyID) ([]ports.ResourceRef, error) {
	return r.list(r.budgets, propertyID), nil
}

func (r *Resources) list(m map[id.PropertyID][]ports.ResourceRef, propertyID id.PropertyID) []ports.ResourceRef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(m[propertyID])
}

// ProvisionDefaults creates the default portfolio for an owner-type role.
// Repeated calls for one role are no-ops.
func (r *Resources) ProvisionDefaults(_ context.Context, role *models.Role) error {
	if !role.RoleType.IsOwnerType() {
		return fmt.Errorf("role type %s has no default portfolio", role.RoleType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.portfolios[role.ID]; ok {
		return nil
	}
	r.portfolios[role.ID] = Portfolio{
		ID:        uuid.NewString(),
		AccountID: role.AccountID,
		RoleID:    role.ID,
		Name:      "My properties",
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

func (r *Resources) PortfolioFor(roleID id.RoleID) (Portfolio, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.portfolios[roleID]
	return p, ok
}
