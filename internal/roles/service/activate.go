package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"rolesync/internal/platform/telemetry"
	"rolesync/internal/roles/models"
	id "rolesync/pkg/domain"
	dErrors "rolesync/pkg/domain-errors"
	"rolesync/pkg/platform/notify"
	"rolesync/pkg/requestcontext"
)

type ActivationResult struct {
	Role        *models.Role
	Deactivated int
	// Consistent is false when the target could not be activated after the
	// other roles were deactivated. Role is still reported active; the next
	// resolution pass repairs the stored state.
	Consistent bool
}

// ActivateRole makes the verified role of roleType the account's only active
// role. It deactivates every active role first and then activates the
// target. The two writes are not atomic.
func (s *Service) ActivateRole(ctx context.Context, accountID id.AccountID, roleType models.RoleType) (*ActivationResult, error) {
	start := time.Now()
	defer s.observe("activate_role", start)
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerRoles, "roles.ActivateRole",
		attribute.String(telemetry.AttrAccountID, accountID.String()),
		attribute.String(telemetry.AttrRoleType, string(roleType)),
	)
	defer span.End()

	result, err := s.activateRole(ctx, accountID, roleType)
	telemetry.RecordError(span, err)
	if result != nil && !result.Consistent {
		telemetry.AddEvent(span, "activation_inconsistent")
	}
	return result, err
}

func (s *Service) activateRole(ctx context.Context, accountID id.AccountID, roleType models.RoleType) (*ActivationResult, error) {
	if !roleType.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown role type: "+string(roleType))
	}
	roles, err := s.ListRoles(ctx, accountID)
	if err != nil {
		return nil, err
	}
	var target *models.Role
	othersActive := false
	for _, r := range roles {
		if r.RoleType == roleType {
			target = r
		} else if r.IsActive {
			othersActive = true
		}
	}
	if target == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "account has no "+string(roleType)+" role")
	}
	if err := target.CanActivate(); err != nil {
		return nil, err
	}
	if target.IsActive && !othersActive {
		return &ActivationResult{Role: target, Consistent: true}, nil
	}

	now := requestcontext.Now(ctx)
	deactivated, err := s.updateRoles(ctx, weightWrite, "deactivate roles",
		models.Filter{AccountID: accountID, Active: models.Bool(true)},
		models.Patch{IsActive: models.Bool(false), UpdatedAt: now},
	)
	if err != nil {
		return nil, err
	}

	n, err := s.updateRoles(ctx, weightWrite, "activate role",
		models.Filter{ID: target.ID, Verified: models.Bool(true)},
		models.Patch{IsActive: models.Bool(true), UpdatedAt: now},
	)
	target.ApplyActivation(now)
	if err != nil || n == 0 {
		s.logger.ErrorContext(ctx, "role activation left account without an active role",
			"account_id", accountID,
			"role_id", target.ID,
			"role_type", roleType,
			"deactivated", deactivated,
			"error", err,
		)
		if s.metrics != nil {
			s.metrics.IncrementActivationInconsistent()
		}
		s.emit(ctx, notify.Event{
			Type:      notify.EventActivationInconsistent,
			AccountID: accountID,
			RoleID:    target.ID,
			RoleType:  string(roleType),
			Message:   "role activation did not complete; resolution will repair it",
		})
		return &ActivationResult{Role: target, Deactivated: deactivated, Consistent: false}, nil
	}

	s.logAudit(ctx, "role_activated",
		"account_id", accountID,
		"role_id", target.ID,
		"role_type", roleType,
		"deactivated", deactivated,
	)
	return &ActivationResult{Role: target, Deactivated: deactivated, Consistent: true}, nil
}

// SetRoleActive flips is_active on one role. Activation is conditioned on
// the role being verified. Resolution uses it for targeted repairs.
func (s *Service) SetRoleActive(ctx context.Context, roleID id.RoleID, active bool) error {
	filter := models.Filter{ID: roleID}
	if active {
		filter.Verified = models.Bool(true)
	}
	n, err := s.updateRoles(ctx, weightWrite, "set role active", filter,
		models.Patch{IsActive: models.Bool(active), UpdatedAt: requestcontext.Now(ctx)},
	)
	if err != nil {
		return err
	}
	if n == 0 {
		return dErrors.New(dErrors.CodeNotFound, "role not found")
	}
	return nil
}
