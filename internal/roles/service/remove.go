package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"rolesync/internal/platform/telemetry"
	"rolesync/internal/roles/models"
	id "rolesync/pkg/domain"
	dErrors "rolesync/pkg/domain-errors"
	"rolesync/pkg/requestcontext"
)

type RemovalResult struct {
	Removed *models.Role
	// Reassigned is the role activated in place of an active removed role.
	Reassigned *models.Role
}

// RemoveRole deletes a verified role. The account's last verified role
// cannot be removed. When the removed role was active and no other role is,
// the first other verified role in creation order becomes active.
func (s *Service) RemoveRole(ctx context.Context, accountID id.AccountID, roleType models.RoleType) (*RemovalResult, error) {
	start := time.Now()
	defer s.observe("remove_role", start)
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerRoles, "roles.RemoveRole",
		attribute.String(telemetry.AttrAccountID, accountID.String()),
		attribute.String(telemetry.AttrRoleType, string(roleType)),
	)
	defer span.End()

	result, err := s.removeRole(ctx, accountID, roleType)
	telemetry.RecordError(span, err)
	return result, err
}

func (s *Service) removeRole(ctx context.Context, accountID id.AccountID, roleType models.RoleType) (*RemovalResult, error) {
	roles, err := s.ListRoles(ctx, accountID)
	if err != nil {
		return nil, err
	}
	var (
		target      *models.Role
		others      []*models.Role
		otherActive *models.Role
	)
	for _, r := range roles {
		switch {
		case r.RoleType == roleType:
			target = r
		case r.IsVerified:
			others = append(others, r)
			if r.IsActive && otherActive == nil {
				otherActive = r
			}
		}
	}
	if target == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "account has no "+string(roleType)+" role")
	}
	if !target.IsVerified {
		return nil, dErrors.New(dErrors.CodeInvalidState, "role is pending verification, remove it as a pending role")
	}
	if len(others) == 0 {
		return nil, dErrors.New(dErrors.CodeLastRole, "cannot remove last role")
	}

	n, err := s.deleteRoles(ctx, weightWrite, "delete role", models.Filter{ID: target.ID, AccountID: accountID})
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, "role was already removed")
	}

	result := &RemovalResult{Removed: target}
	if target.IsActive && otherActive == nil {
		next := others[0]
		now := requestcontext.Now(ctx)
		if _, err := s.updateRoles(ctx, weightWrite, "activate role",
			models.Filter{ID: next.ID, Verified: models.Bool(true)},
			models.Patch{IsActive: models.Bool(true), UpdatedAt: now},
		); err != nil {
			s.logger.WarnContext(ctx, "reassigning active role after removal failed",
				"account_id", accountID,
				"role_id", next.ID,
				"error", err,
			)
		} else {
			next.ApplyActivation(now)
			result.Reassigned = next
		}
	}

	if s.metrics != nil {
		s.metrics.IncrementRemoved("user")
	}
	s.logAudit(ctx, "role_removed",
		"account_id", accountID,
		"role_id", target.ID,
		"role_type", roleType,
		"was_active", target.IsActive,
	)
	return result, nil
}

// RemovePendingRole deletes a role that is still awaiting verification.
func (s *Service) RemovePendingRole(ctx context.Context, accountID id.AccountID, roleType models.RoleType) (*models.Role, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerRoles, "roles.RemovePendingRole",
		attribute.String(telemetry.AttrAccountID, accountID.String()),
		attribute.String(telemetry.AttrRoleType, string(roleType)),
	)
	defer span.End()

	role, err := s.GetRole(ctx, accountID, roleType)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if role.IsVerified {
		return nil, dErrors.New(dErrors.CodeInvalidState, "role is verified, use remove role instead")
	}
	n, err := s.deleteRoles(ctx, weightWrite, "delete pending role",
		models.Filter{ID: role.ID, Verified: models.Bool(false)})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if n == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidState, "role was verified concurrently, use remove role instead")
	}
	if s.metrics != nil {
		s.metrics.IncrementRemoved("pending")
	}
	s.logAudit(ctx, "pending_role_removed",
		"account_id", accountID,
		"role_id", role.ID,
		"role_type", roleType,
	)
	return role, nil
}

// DeleteBatch removes the roles created under batchID, first by batch tag and
// then by id so roles are removed even when one path fails. Transient
// failures are retried. The returned error joins every delete that failed.
func (s *Service) DeleteBatch(ctx context.Context, accountID id.AccountID, batchID id.BatchID, roleIDs []id.RoleID) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerRoles, "roles.DeleteBatch",
		attribute.String(telemetry.AttrAccountID, accountID.String()),
		attribute.Int(telemetry.AttrRoleCount, len(roleIDs)),
	)
	defer span.End()

	var (
		removed int
		errs    []error
	)
	if !batchID.IsNil() {
		err := s.retry(ctx, "delete batch", func(int) error {
			n, err := s.deleteRoles(ctx, weightBulk, "delete batch", models.Filter{AccountID: accountID, BatchID: batchID})
			removed += n
			return err
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("delete batch %s: %w", batchID, err))
		}
	}
	for _, roleID := range roleIDs {
		err := s.retry(ctx, "delete role", func(int) error {
			n, err := s.deleteRoles(ctx, weightWrite, "delete role", models.Filter{ID: roleID, AccountID: accountID})
			removed += n
			return err
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("delete role %s: %w", roleID, err))
		}
	}
	if s.metrics != nil && removed > 0 {
		s.metrics.AddRemoved("rollback", removed)
	}
	err := errors.Join(errs...)
	telemetry.RecordError(span, err)
	return removed, err
}
