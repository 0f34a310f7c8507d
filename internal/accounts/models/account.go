package models

import (
	"net/mail"
	"slices"
	"strings"
	"time"

	roles "rolesync/internal/roles/models"
	id "rolesync/pkg/domain"
	dErrors "rolesync/pkg/domain-errors"
)

// Account is the slice of account data the role engine reads. The identity
// provider owns the account; the engine writes only ExpectedRoles.
type Account struct {
	ID          id.AccountID `json:"id"`
	Email       string       `json:"email"`
	DisplayName string       `json:"display_name,omitempty"`
	Phone       string       `json:"phone,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	// ExpectedRoles is the role set requested at registration. Resolution
	// completes missing roles from it.
	ExpectedRoles []roles.RoleType `json:"expected_roles,omitempty"`
}

// NewAccount validates the fields the engine depends on.
func NewAccount(accountID id.AccountID, email, displayName string, createdAt time.Time) (*Account, error) {
	if accountID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "account id cannot be nil")
	}
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "account email is invalid")
	}
	if createdAt.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "account creation time is required")
	}
	return &Account{
		ID:          accountID,
		Email:       email,
		DisplayName: strings.TrimSpace(displayName),
		CreatedAt:   createdAt,
	}, nil
}

// Profile returns the data used to fill attributes of provisioned roles.
func (a *Account) Profile() roles.Profile {
	return roles.Profile{DisplayName: a.DisplayName, Email: a.Email, Phone: a.Phone}
}

// CreatedWithin reports whether the account is younger than window at now.
func (a *Account) CreatedWithin(window time.Duration, now time.Time) bool {
	return now.Sub(a.CreatedAt) < window
}

// MissingRoles lists expected role types not present in held, in expected
// order.
func (a *Account) MissingRoles(held []roles.RoleType) []roles.RoleType {
	var missing []roles.RoleType
	for _, rt := range a.ExpectedRoles {
		if !slices.Contains(held, rt) {
			missing = append(missing, rt)
		}
	}
	return missing
}
