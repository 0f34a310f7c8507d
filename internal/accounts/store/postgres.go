package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"rolesync/internal/accounts/models"
	roles "rolesync/internal/roles/models"
	id "rolesync/pkg/domain"
	"rolesync/pkg/platform/sentinel"
)

// PostgresDirectory reads accounts from the accounts table.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) Save(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (id, email, display_name, phone, created_at, expected_roles)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			display_name = EXCLUDED.display_name,
			phone = EXCLUDED.phone,
			expected_roles = EXCLUDED.expected_roles
	`
	_, err := d.db.ExecContext(ctx, query,
		account.ID.String(),
		account.Email,
		account.DisplayName,
		account.Phone,
		account.CreatedAt,
		pq.Array(roleTypeStrings(account.ExpectedRoles)),
	)
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

func (d *PostgresDirectory) FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	query := `
		SELECT id, email, display_name, phone, created_at, expected_roles
		FROM accounts
		WHERE id = $1
	`
	var (
		a        models.Account
		rawID    uuid.UUID
		expected []string
	)
	err := d.db.QueryRowContext(ctx, query, accountID.String()).Scan(
		&rawID, &a.Email, &a.DisplayName, &a.Phone, &a.CreatedAt, pq.Array(&expected),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account %s: %w", accountID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	a.ID = id.AccountID(rawID)
	for _, rt := range expected {
		a.ExpectedRoles = append(a.ExpectedRoles, roles.RoleType(rt))
	}
	return &a, nil
}

func (d *PostgresDirectory) SetExpectedRoles(ctx context.Context, accountID id.AccountID, expected []roles.RoleType) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE accounts SET expected_roles = $2 WHERE id = $1`,
		accountID.String(), pq.Array(roleTypeStrings(expected)),
	)
	if err != nil {
		return fmt.Errorf("set expected roles: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set expected roles: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("account %s: %w", accountID, sentinel.ErrNotFound)
	}
	return nil
}

func roleTypeStrings(types []roles.RoleType) []string {
	out := make([]string, len(types))
	for i, rt := range types {
		out[i] = string(rt)
	}
	return out
}
