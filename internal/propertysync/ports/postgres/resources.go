// Package postgres implements the resource ports on a pgx connection pool.
package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"rolesync/internal/propertysync/ports"
	"rolesync/internal/roles/models"
	id "rolesync/pkg/domain"
)

// DB is the subset of *pgxpool.Pool the adapter uses.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Resources struct {
	db DB
}

func New(db DB) *Resources {
	return &Resources{db: db}
}

func (r *Resources) HasAccess(ctx context.Context, accountID id.AccountID, basis models.AccessBasis, propertyID id.PropertyID) (bool, error) {
	var query string
	args := []any{accountID.String(), propertyID.String()}
	switch basis {
	case models.AccessByContractHistory:
		query = `SELECT EXISTS (
			SELECT 1 FROM service_contracts
			WHERE provider_account_id = $1 AND property_id = $2
		)`
	default:
		query = `SELECT EXISTS (
			SELECT 1 FROM property_access
			WHERE account_id = $1 AND property_id = $2 AND basis = $3
		)`
		args = append(args, string(basis))
	}
	var ok bool
	if err := r.db.QueryRow(ctx, query, args...).Scan(&ok); err != nil {
		return false, fmt.Errorf("check %s access: %w", basis, err)
	}
	return ok, nil
}

func (r *Resources) DocumentsForProperty(ctx context.Context, propertyID id.PropertyID) ([]ports.ResourceRef, error) {
	return r.refs(ctx, ports.KindDocument, `
		SELECT id, title, updated_at FROM property_documents
		WHERE property_id = $1
		ORDER BY updated_at DESC
	`, propertyID)
}

func (r *Resources) ContractsForProperty(ctx context.Context, propertyID id.PropertyID) ([]ports.ResourceRef, error) {
	return r.refs(ctx, ports.KindContract, `
		SELECT id, title, updated_at FROM service_contracts
		WHERE property_id = $1
		ORDER BY updated_at DESC
	`, propertyID)
}

func (r *Resources) BudgetHistory(ctx context.Context, propertyID id.PropertyID) ([]ports.ResourceRef, error) {
	return r.refs(ctx, ports.KindBudgetEntry, `
		SELECT id, description, recorded_at FROM budget_entries
		WHERE property_id = $1
		ORDER BY recorded_at DESC
	`, propertyID)
}

func (r *Resources) refs(ctx context.Context, kind, query string, propertyID id.PropertyID) ([]ports.ResourceRef, error) {
	rows, err := r.db.Query(ctx, query, propertyID.String())
	if err != nil {
		return nil, fmt.Errorf("query %s refs: %w", kind, err)
	}
	refs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ports.ResourceRef, error) {
		var (
			ref   ports.ResourceRef
			refID uuid.UUID
		)
		err := row.Scan(&refID, &ref.Title, &ref.UpdatedAt)
		ref.ID = refID.String()
		ref.Kind = kind
		return ref, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s refs: %w", kind, err)
	}
	return refs, nil
}

// ProvisionDefaults creates the default portfolio for an owner-type role.
func (r *Resources) ProvisionDefaults(ctx context.Context, role *models.Role) error {
	if !role.RoleType.IsOwnerType() {
		return fmt.Errorf("role type %s has no default portfolio", role.RoleType)
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO role_portfolios (id, account_id, role_id, name, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (role_id) DO NOTHING
	`, uuid.NewString(), role.AccountID.String(), role.ID.String(), "My properties")
	if err != nil {
		return fmt.Errorf("provision portfolio: %w", err)
	}
	return nil
}
