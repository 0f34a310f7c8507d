package models

import (
	"time"

	id "rolesync/pkg/domain"
)

// Filter selects role records. Zero-valued fields are ignored; an empty
// filter matches nothing for Update and Delete.
type Filter struct {
	ID        id.RoleID
	AccountID id.AccountID
	RoleType  RoleType
	Verified  *bool
	Active    *bool
	TokenHash string
	BatchID   id.BatchID
	// Version restricts a write to the record as last read.
	Version   int64
}

func (f Filter) IsEmpty() bool {
	return f.ID.IsNil() && f.AccountID.IsNil() && f.RoleType == "" &&
		f.Verified == nil && f.Active == nil && f.TokenHash == "" && f.BatchID.IsNil()
}

// Matches applies the filter to a record in memory.
func (f Filter) Matches(r *Role) bool {
	switch {
	case !f.ID.IsNil() && r.ID != f.ID:
		return false
	case !f.AccountID.IsNil() && r.AccountID != f.AccountID:
		return false
	case f.RoleType != "" && r.RoleType != f.RoleType:
		return false
	case f.Verified != nil && r.IsVerified != *f.Verified:
		return false
	case f.Active != nil && r.IsActive != *f.Active:
		return false
	case f.TokenHash != "" && r.VerificationTokenHash != f.TokenHash:
		return false
	case !f.BatchID.IsNil() && r.BatchID != f.BatchID:
		return false
	case f.Version != 0 && r.Version != f.Version:
		return false
	}
	return true
}

// Patch lists the columns an Update writes. Nil fields are left unchanged.
type Patch struct {
	IsVerified              *bool
	IsActive                *bool
	Data                    *RoleData
	ClearVerificationToken  bool
	VerificationConfirmedAt *time.Time
	VerificationTokenHash   *string
	VerificationExpiresAt   *time.Time
	UpdatedAt               time.Time
}

// Apply writes the patch onto r.
func (p Patch) Apply(r *Role) {
	if p.IsVerified != nil {
		r.IsVerified = *p.IsVerified
	}
	if p.IsActive != nil {
		r.IsActive = *p.IsActive
	}
	if p.Data != nil {
		r.Data = p.Data.Clone()
	}
	if p.ClearVerificationToken {
		r.VerificationTokenHash = ""
		r.VerificationExpiresAt = nil
	}
	if p.VerificationTokenHash != nil {
		r.VerificationTokenHash = *p.VerificationTokenHash
	}
	if p.VerificationExpiresAt != nil {
		t := *p.VerificationExpiresAt
		r.VerificationExpiresAt = &t
	}
	if p.VerificationConfirmedAt != nil {
		t := *p.VerificationConfirmedAt
		r.VerificationConfirmedAt = &t
	}
	if !p.UpdatedAt.IsZero() {
		r.UpdatedAt = p.UpdatedAt
	}
}

// Bool returns a pointer to b for filters and patches.
func Bool(b bool) *bool { return &b }
