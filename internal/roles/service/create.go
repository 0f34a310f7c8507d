package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"rolesync/internal/platform/telemetry"
	"rolesync/internal/roles/models"
	id "rolesync/pkg/domain"
	dErrors "rolesync/pkg/domain-errors"
	"rolesync/pkg/requestcontext"
)

type VerificationMode string

const (
	// VerifyImmediately is used at registration: the role is verified on insert.
	VerifyImmediately VerificationMode = "immediate"
	// VerifyByToken creates a pending role confirmed later with VerifyRole.
	VerifyByToken VerificationMode = "token"
)

type CreateOptions struct {
	Verification VerificationMode
	// RoleID lets a caller pick the id up front. Zero means generate one.
	RoleID  id.RoleID
	BatchID id.BatchID
	// SkipActivation leaves a verified role inactive even when the account
	// has no active role.
	SkipActivation bool
}

type CreateResult struct {
	Role *models.Role
	// VerificationToken is the plaintext token for VerifyByToken roles. It is
	// never stored and cannot be recovered later.
	VerificationToken string
	Activated         bool
}

// CreateRole inserts one role for the account. Transient store failures are
// retried with linear backoff; a retry first checks whether the previous
// attempt was committed and adopts that row instead of inserting again.
func (s *Service) CreateRole(ctx context.Context, accountID id.AccountID, roleType models.RoleType, attrs models.Attributes, opts CreateOptions) (*CreateResult, error) {
	start := time.Now()
	defer s.observe("create_role", start)
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerRoles, "roles.CreateRole",
		attribute.String(telemetry.AttrAccountID, accountID.String()),
		attribute.String(telemetry.AttrRoleType, string(roleType)),
	)
	defer span.End()

	result, err := s.createRole(ctx, accountID, roleType, attrs, opts)
	telemetry.RecordError(span, err)
	return result, err
}

func (s *Service) createRole(ctx context.Context, accountID id.AccountID, roleType models.RoleType, attrs models.Attributes, opts CreateOptions) (*CreateResult, error) {
	if accountID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "account id is required")
	}
	if !roleType.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown role type: "+string(roleType))
	}
	if attrs == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "role attributes are required")
	}
	if err := models.ValidateFor(roleType, attrs); err != nil {
		return nil, err
	}
	mode := opts.Verification
	if mode == "" {
		mode = VerifyByToken
	}

	existing, err := s.selectRoles(ctx, models.Filter{AccountID: accountID, RoleType: roleType})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		if existing[0].IsVerified {
			return nil, dErrors.New(dErrors.CodeDuplicateRole, "account already has a verified "+string(roleType)+" role")
		}
		return nil, dErrors.New(dErrors.CodeConflict, "a "+string(roleType)+" role is already awaiting verification")
	}

	now := requestcontext.Now(ctx)
	roleID := opts.RoleID
	if roleID.IsNil() {
		roleID = id.NewRoleID()
	}

	var (
		role  *models.Role
		token string
	)
	switch mode {
	case VerifyImmediately:
		role, err = models.NewVerifiedRole(roleID, accountID, roleType, attrs, now)
	case VerifyByToken:
		var digest string
		token, digest, err = models.NewVerificationToken()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate verification token")
		}
		role, err = models.NewPendingRole(roleID, accountID, roleType, attrs, digest, now.Add(s.cfg.TokenTTL), now)
	default:
		return nil, dErrors.New(dErrors.CodeValidation, "unknown verification mode: "+string(mode))
	}
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}
	role.BatchID = opts.BatchID

	if err := s.insertWithRetry(ctx, role); err != nil {
		return nil, err
	}

	result := &CreateResult{Role: role, VerificationToken: token}
	if role.IsVerified && !opts.SkipActivation {
		activated, err := s.activateIfNoneActive(ctx, role)
		if err != nil {
			// Resolution activates a verified role on the next session load.
			s.logger.WarnContext(ctx, "activation after create failed",
				"account_id", accountID,
				"role_id", role.ID,
				"error", err,
			)
		}
		result.Activated = activated
	}

	if s.metrics != nil {
		s.metrics.IncrementCreated(string(roleType), string(mode))
	}
	s.logAudit(ctx, "role_created",
		"account_id", accountID,
		"role_id", role.ID,
		"role_type", roleType,
		"verified", role.IsVerified,
		"active", role.IsActive,
	)
	return result, nil
}

func (s *Service) insertWithRetry(ctx context.Context, role *models.Role) error {
	adopted := false
	err := s.retry(ctx, "insert role", func(attempt int) error {
		if attempt > 1 {
			ok, err := s.adoptWritten(ctx, role)
			if err != nil {
				return err
			}
			if ok {
				adopted = true
				return nil
			}
		}
		_, err := storeCall(ctx, s, weightWrite, "insert role", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.store.Insert(ctx, role)
		})
		if err != nil && attempt > 1 && dErrors.HasCode(err, dErrors.CodeConflict) {
			// The conflicting row may be our own earlier attempt.
			if ok, adoptErr := s.adoptWritten(ctx, role); adoptErr == nil && ok {
				adopted = true
				return nil
			}
		}
		return err
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			return dErrors.Wrap(err, dErrors.CodeConflict, "account already holds a "+string(role.RoleType)+" role")
		}
		return err
	}
	if adopted {
		s.logger.InfoContext(ctx, "adopted role written by an earlier attempt",
			"account_id", role.AccountID,
			"role_id", role.ID,
		)
	}
	return nil
}

// adoptWritten reports whether role was already committed by a previous
// attempt whose acknowledgement was lost.
func (s *Service) adoptWritten(ctx context.Context, role *models.Role) (bool, error) {
	found, err := s.selectRoles(ctx, models.Filter{ID: role.ID})
	if err != nil {
		return false, err
	}
	for _, r := range found {
		if r.AccountID == role.AccountID && r.RoleType == role.RoleType {
			return true, nil
		}
	}
	return false, nil
}

// activateIfNoneActive activates role when the account has no active
// verified role.
func (s *Service) activateIfNoneActive(ctx context.Context, role *models.Role) (bool, error) {
	active, err := s.selectRoles(ctx, models.Filter{
		AccountID: role.AccountID,
		Verified:  models.Bool(true),
		Active:    models.Bool(true),
	})
	if err != nil {
		return false, err
	}
	if len(active) > 0 {
		return false, nil
	}
	now := requestcontext.Now(ctx)
	n, err := s.updateRoles(ctx, weightWrite, "activate role",
		models.Filter{ID: role.ID, Verified: models.Bool(true)},
		models.Patch{IsActive: models.Bool(true), UpdatedAt: now},
	)
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	role.ApplyActivation(now)
	return true, nil
}
