package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"rolesync/internal/roles/models"
	id "rolesync/pkg/domain"
	"rolesync/pkg/platform/sentinel"
)

const roleColumns = `id, account_id, role_type, is_verified, is_active, role_specific_data,
	verification_token_hash, verification_expires_at, verification_confirmed_at,
	batch_id, created_at, updated_at, version`

// PostgresRoleStore persists roles in the roles table. Every statement is a
// single-row or single-predicate write; callers get no multi-statement
// atomicity.
type PostgresRoleStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresRoleStore {
	return &PostgresRoleStore{db: db}
}

func (s *PostgresRoleStore) Insert(ctx context.Context, role *models.Role) error {
	data, err := json.Marshal(role.Data)
	if err != nil {
		return fmt.Errorf("marshal role data: %w", err)
	}
	query := `INSERT INTO roles (` + roleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err = s.db.ExecContext(ctx, query,
		uuid.UUID(role.ID),
		uuid.UUID(role.AccountID),
		string(role.RoleType),
		role.IsVerified,
		role.IsActive,
		string(data),
		nullString(role.VerificationTokenHash),
		role.VerificationExpiresAt,
		role.VerificationConfirmedAt,
		nullUUID(uuid.UUID(role.BatchID)),
		role.CreatedAt,
		role.UpdatedAt,
		role.Version,
	)
	if err != nil {
		return fmt.Errorf("insert role: %w", classify(err))
	}
	return nil
}

func (s *PostgresRoleStore) Update(ctx context.Context, filter models.Filter, patch models.Patch) (int, error) {
	if filter.IsEmpty() {
		return 0, fmt.Errorf("update without filter: %w", sentinel.ErrInvalidState)
	}
	var sets []string
	var args []any
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.IsVerified != nil {
		set("is_verified", *patch.IsVerified)
	}
	if patch.IsActive != nil {
		set("is_active", *patch.IsActive)
	}
	if patch.Data != nil {
		data, err := json.Marshal(patch.Data)
		if err != nil {
			return 0, fmt.Errorf("marshal role data: %w", err)
		}
		set("role_specific_data", string(data))
	}
	if patch.ClearVerificationToken {
		sets = append(sets, "verification_token_hash = NULL", "verification_expires_at = NULL")
	}
	if patch.VerificationTokenHash != nil {
		set("verification_token_hash", nullString(*patch.VerificationTokenHash))
	}
	if patch.VerificationExpiresAt != nil {
		set("verification_expires_at", *patch.VerificationExpiresAt)
	}
	if patch.VerificationConfirmedAt != nil {
		set("verification_confirmed_at", *patch.VerificationConfirmedAt)
	}
	updatedAt := patch.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	set("updated_at", updatedAt)
	sets = append(sets, "version = version + 1")

	where, args := whereClause(filter, args)
	query := "UPDATE roles SET " + strings.Join(sets, ", ") + " WHERE " + where
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update roles: %w", classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", classify(err))
	}
	return int(n), nil
}

func (s *PostgresRoleStore) Delete(ctx context.Context, filter models.Filter) (int, error) {
	if filter.IsEmpty() {
		return 0, fmt.Errorf("delete without filter: %w", sentinel.ErrInvalidState)
	}
	where, args := whereClause(filter, nil)
	res, err := s.db.ExecContext(ctx, "DELETE FROM roles WHERE "+where, args...)
	if err != nil {
		return 0, fmt.Errorf("delete roles: %w", classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", classify(err))
	}
	return int(n), nil
}

func (s *PostgresRoleStore) Select(ctx context.Context, filter models.Filter) ([]*models.Role, error) {
	query := "SELECT " + roleColumns + " FROM roles"
	var args []any
	if !filter.IsEmpty() {
		var where string
		where, args = whereClause(filter, nil)
		query += " WHERE " + where
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select roles: %w", classify(err))
	}
	defer rows.Close()

	out := make([]*models.Role, 0)
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", classify(err))
	}
	return out, nil
}

func scanRole(rows *sql.Rows) (*models.Role, error) {
	var (
		r           models.Role
		roleID      uuid.UUID
		accountID   uuid.UUID
		roleType    string
		data        []byte
		tokenHash   sql.NullString
		expiresAt   sql.NullTime
		confirmedAt sql.NullTime
		batchID     uuid.NullUUID
	)
	if err := rows.Scan(&roleID, &accountID, &roleType, &r.IsVerified, &r.IsActive, &data,
		&tokenHash, &expiresAt, &confirmedAt, &batchID, &r.CreatedAt, &r.UpdatedAt, &r.Version); err != nil {
		return nil, fmt.Errorf("scan role: %w", err)
	}
	r.ID = id.RoleID(roleID)
	r.AccountID = id.AccountID(accountID)
	r.RoleType = models.RoleType(roleType)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &r.Data); err != nil {
			return nil, fmt.Errorf("decode role data for %s: %w", roleID, err)
		}
	}
	r.VerificationTokenHash = tokenHash.String
	if expiresAt.Valid {
		t := expiresAt.Time
		r.VerificationExpiresAt = &t
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time
		r.VerificationConfirmedAt = &t
	}
	if batchID.Valid {
		r.BatchID = id.BatchID(batchID.UUID)
	}
	return &r, nil
}

// whereClause renders filter as AND-ed predicates, numbering placeholders
// after the args already present.
func whereClause(f models.Filter, args []any) (string, []any) {
	var preds []string
	add := func(col string, v any) {
		args = append(args, v)
		preds = append(preds, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if !f.ID.IsNil() {
		add("id", uuid.UUID(f.ID))
	}
	if !f.AccountID.IsNil() {
		add("account_id", uuid.UUID(f.AccountID))
	}
	if f.RoleType != "" {
		add("role_type", string(f.RoleType))
	}
	if f.Verified != nil {
		add("is_verified", *f.Verified)
	}
	if f.Active != nil {
		add("is_active", *f.Active)
	}
	if f.TokenHash != "" {
		add("verification_token_hash", f.TokenHash)
	}
	if !f.BatchID.IsNil() {
		add("batch_id", uuid.UUID(f.BatchID))
	}
	if f.Version != 0 {
		add("version", f.Version)
	}
	return strings.Join(preds, " AND "), args
}

// classify maps driver errors onto sentinels; anything unrecognised is
// returned unchanged.
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23505":
			return fmt.Errorf("%s: %w", pqErr.Constraint, sentinel.ErrConflict)
		case pqErr.Code.Class() == "08", pqErr.Code.Class() == "53",
			pqErr.Code == "57P01", pqErr.Code == "40001", pqErr.Code == "40P01":
			return fmt.Errorf("%s: %w", pqErr.Code.Name(), sentinel.ErrUnavailable)
		}
		return err
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%v: %w", err, sentinel.ErrUnavailable)
	}
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullUUID(u uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: u, Valid: u != uuid.Nil}
}
