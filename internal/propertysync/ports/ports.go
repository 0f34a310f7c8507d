//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks AccessChecker,DocumentLookup

// Package ports declares the read-only resource lookups the property sync
// engine consumes. Adapters live in the memory and postgres subpackages.
package ports

import (
	"context"
	"time"

	"rolesync/internal/roles/models"
	id "rolesync/pkg/domain"
)

// AccessChecker answers whether an account reaches a property through the
// given basis (ownership, management or contract history).
type AccessChecker interface {
	HasAccess(ctx context.Context, accountID id.AccountID, basis models.AccessBasis, propertyID id.PropertyID) (bool, error)
}

type DocumentLookup interface {
	DocumentsForProperty(ctx context.Context, propertyID id.PropertyID) ([]ResourceRef, error)
}

type ContractLookup interface {
	ContractsForProperty(ctx context.Context, propertyID id.PropertyID) ([]ResourceRef, error)
}

type BudgetLookup interface {
	BudgetHistory(ctx context.Context, propertyID id.PropertyID) ([]ResourceRef, error)
}

// ResourceRef points at a record owned by another system.
type ResourceRef struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	KindDocument    = "document"
	KindContract    = "contract"
	KindBudgetEntry = "budget_entry"
)

// RefIDs returns the ids of refs in order.
func RefIDs(refs []ResourceRef) []string {
	if len(refs) == 0 {
		return nil
	}
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.ID
	}
	return out
}
