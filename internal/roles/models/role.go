package models

import (
	"time"

	id "rolesync/pkg/domain"
	dErrors "rolesync/pkg/domain-errors"
)

// Role is one of several concurrent identities held by an account.
//
// Invariants:
//   - RoleType is valid and Data.Attributes matches it
//   - IsActive implies IsVerified (an unverified role is never the active one)
//   - a pending role carries a token digest and expiry; a verified one carries neither
//   - CreatedAt is immutable after construction
//
// Lifecycle: Created -> Verified -> Active <-> Inactive, with Removed as the
// terminal state. The one-active-verified-role-per-account rule spans several
// rows and is maintained by the lifecycle manager and repaired on resolution.
type Role struct {
	ID                      id.RoleID    `json:"id"`
	AccountID               id.AccountID `json:"account_id"`
	RoleType                RoleType     `json:"role_type"`
	IsVerified              bool         `json:"is_verified"`
	IsActive                bool         `json:"is_active"`
	Data                    RoleData     `json:"role_specific_data"`
	VerificationTokenHash   string       `json:"-"`
	VerificationExpiresAt   *time.Time   `json:"verification_expires_at,omitempty"`
	VerificationConfirmedAt *time.Time   `json:"verification_confirmed_at,omitempty"`
	BatchID                 id.BatchID   `json:"-"`
	CreatedAt               time.Time    `json:"created_at"`
	UpdatedAt               time.Time    `json:"updated_at"`
	// Version increments on every stored update.
	Version                 int64        `json:"-"`
}

// NewVerifiedRole builds a role that is verified at creation, as during
// registration. It starts inactive; the caller decides activation.
func NewVerifiedRole(roleID id.RoleID, accountID id.AccountID, roleType RoleType, attrs Attributes, now time.Time) (*Role, error) {
	r, err := newRole(roleID, accountID, roleType, attrs, now)
	if err != nil {
		return nil, err
	}
	r.IsVerified = true
	confirmed := now
	r.VerificationConfirmedAt = &confirmed
	return r, nil
}

// NewPendingRole builds an unverified role awaiting token confirmation.
func NewPendingRole(roleID id.RoleID, accountID id.AccountID, roleType RoleType, attrs Attributes, tokenHash string, expiresAt time.Time, now time.Time) (*Role, error) {
	if tokenHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "pending role requires a verification token")
	}
	if !expiresAt.After(now) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "verification expiry must be in the future")
	}
	r, err := newRole(roleID, accountID, roleType, attrs, now)
	if err != nil {
		return nil, err
	}
	r.VerificationTokenHash = tokenHash
	r.VerificationExpiresAt = &expiresAt
	return r, nil
}

func newRole(roleID id.RoleID, accountID id.AccountID, roleType RoleType, attrs Attributes, now time.Time) (*Role, error) {
	if roleID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "role id cannot be nil")
	}
	if accountID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "account id cannot be nil")
	}
	if !roleType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown role type: "+string(roleType))
	}
	if err := ValidateFor(roleType, attrs); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "invalid role attributes")
	}
	return &Role{
		ID:        roleID,
		AccountID: accountID,
		RoleType:  roleType,
		Data:      RoleData{Attributes: attrs},
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}, nil
}

// IsPending reports whether the role still awaits verification.
func (r *Role) IsPending() bool {
	return !r.IsVerified
}

// CanVerify checks that a pending role's token is still valid at now.
func (r *Role) CanVerify(now time.Time) error {
	if r.IsVerified {
		return dErrors.New(dErrors.CodeInvalidState, "role is already verified")
	}
	if r.VerificationExpiresAt == nil || !now.Before(*r.VerificationExpiresAt) {
		return dErrors.New(dErrors.CodeTokenExpired, "verification token has expired")
	}
	return nil
}

// ApplyVerification marks the role verified and consumes its token.
// Call CanVerify first.
func (r *Role) ApplyVerification(now time.Time) {
	r.IsVerified = true
	r.VerificationTokenHash = ""
	r.VerificationExpiresAt = nil
	confirmed := now
	r.VerificationConfirmedAt = &confirmed
	r.UpdatedAt = now
}

// CanActivate refuses activation of unverified roles.
func (r *Role) CanActivate() error {
	if !r.IsVerified {
		return dErrors.New(dErrors.CodeRolesNotVerified, "role must be verified before activation")
	}
	return nil
}

func (r *Role) ApplyActivation(now time.Time) {
	r.IsActive = true
	r.UpdatedAt = now
}

func (r *Role) ApplyDeactivation(now time.Time) {
	r.IsActive = false
	r.UpdatedAt = now
}

// Clone returns a deep copy.
func (r *Role) Clone() *Role {
	if r == nil {
		return nil
	}
	out := *r
	out.Data = r.Data.Clone()
	if r.VerificationExpiresAt != nil {
		t := *r.VerificationExpiresAt
		out.VerificationExpiresAt = &t
	}
	if r.VerificationConfirmedAt != nil {
		t := *r.VerificationConfirmedAt
		out.VerificationConfirmedAt = &t
	}
	return &out
}
