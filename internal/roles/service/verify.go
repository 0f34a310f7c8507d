package service

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"rolesync/internal/platform/telemetry"
	"rolesync/internal/roles/models"
	id "rolesync/pkg/domain"
	dErrors "rolesync/pkg/domain-errors"
	"rolesync/pkg/platform/notify"
	"rolesync/pkg/requestcontext"
)

// VerifyRole consumes a verification token. The token is single use: the
// update is conditioned on the role still being pending with that digest, so
// two concurrent confirmations cannot both succeed.
func (s *Service) VerifyRole(ctx context.Context, token string) (*models.Role, error) {
	start := time.Now()
	defer s.observe("verify_role", start)
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerRoles, "roles.VerifyRole")
	defer span.End()

	role, err := s.verifyRole(ctx, strings.TrimSpace(token))
	telemetry.RecordError(span, err)
	return role, err
}

func (s *Service) verifyRole(ctx context.Context, token string) (*models.Role, error) {
	if token == "" {
		return nil, dErrors.New(dErrors.CodeInvalidToken, "verification token is required")
	}
	digest := models.DigestToken(token)

	found, err := s.selectRoles(ctx, models.Filter{TokenHash: digest})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidToken, "verification token is invalid")
	}
	role := found[0]

	now := requestcontext.Now(ctx)
	if err := role.CanVerify(now); err != nil {
		return nil, err
	}

	n, err := s.updateRoles(ctx, weightWrite, "verify role",
		models.Filter{ID: role.ID, Verified: models.Bool(false), TokenHash: digest},
		models.Patch{
			IsVerified:              models.Bool(true),
			ClearVerificationToken:  true,
			VerificationConfirmedAt: &now,
			UpdatedAt:               now,
		},
	)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidToken, "verification token is invalid")
	}
	role.ApplyVerification(now)

	if _, err := s.activateIfNoneActive(ctx, role); err != nil {
		s.logger.WarnContext(ctx, "activation after verification failed",
			"account_id", role.AccountID,
			"role_id", role.ID,
			"error", err,
		)
	}

	if s.metrics != nil {
		s.metrics.IncrementVerified()
	}
	s.logAudit(ctx, "role_verified",
		"account_id", role.AccountID,
		"role_id", role.ID,
		"role_type", role.RoleType,
	)
	s.emit(ctx, notify.Event{
		Type:      notify.EventRoleVerified,
		AccountID: role.AccountID,
		RoleID:    role.ID,
		RoleType:  string(role.RoleType),
		Message:   "Your " + role.RoleType.String() + " role has been verified.",
	})
	return role, nil
}

// ReissueVerificationToken replaces the token of a pending role and returns
// the new plaintext token. The previous token stops working.
func (s *Service) ReissueVerificationToken(ctx context.Context, accountID id.AccountID, roleType models.RoleType) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerRoles, "roles.ReissueVerificationToken",
		attribute.String(telemetry.AttrAccountID, accountID.String()),
		attribute.String(telemetry.AttrRoleType, string(roleType)),
	)
	defer span.End()

	role, err := s.GetRole(ctx, accountID, roleType)
	if err != nil {
		telemetry.RecordError(span, err)
		return "", err
	}
	if role.IsVerified {
		return "", dErrors.New(dErrors.CodeInvalidState, "role is already verified")
	}

	token, digest, err := models.NewVerificationToken()
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate verification token")
	}
	now := requestcontext.Now(ctx)
	expires := now.Add(s.cfg.TokenTTL)
	n, err := s.updateRoles(ctx, weightWrite, "reissue verification token",
		models.Filter{ID: role.ID, Verified: models.Bool(false)},
		models.Patch{VerificationTokenHash: &digest, VerificationExpiresAt: &expires, UpdatedAt: now},
	)
	if err != nil {
		telemetry.RecordError(span, err)
		return "", err
	}
	if n == 0 {
		return "", dErrors.New(dErrors.CodeInvalidState, "role is no longer pending verification")
	}
	s.logAudit(ctx, "verification_token_reissued",
		"account_id", accountID,
		"role_id", role.ID,
	)
	return token, nil
}
