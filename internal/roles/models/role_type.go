package models

import (
	"strings"

	dErrors "rolesync/pkg/domain-errors"
)

// RoleType enumerates the kinds of role an account can hold.
type RoleType string

const (
	RoleTypeIndividual            RoleType = "individual"
	RoleTypeCommunityMember       RoleType = "community_member"
	RoleTypeServiceProvider       RoleType = "service_provider"
	RoleTypePropertyAdministrator RoleType = "property_administrator"
)

// AllRoleTypes lists every role type in a stable order.
var AllRoleTypes = []RoleType{
	RoleTypeIndividual,
	RoleTypeCommunityMember,
	RoleTypeServiceProvider,
	RoleTypePropertyAdministrator,
}

func (t RoleType) String() string { return string(t) }

func (t RoleType) IsValid() bool {
	switch t {
	case RoleTypeIndividual, RoleTypeCommunityMember, RoleTypeServiceProvider, RoleTypePropertyAdministrator:
		return true
	}
	return false
}

// IsOwnerType reports whether roles of this type hold properties directly and
// get a default portfolio when bootstrapped.
func (t RoleType) IsOwnerType() bool {
	return t == RoleTypeIndividual || t == RoleTypePropertyAdministrator
}

// AccessBasis names how a role of this type proves access to a property.
type AccessBasis string

const (
	AccessByOwnership       AccessBasis = "ownership"
	AccessByManagement      AccessBasis = "management"
	AccessByContractHistory AccessBasis = "contract_history"
)

func (t RoleType) AccessBasis() AccessBasis {
	switch t {
	case RoleTypePropertyAdministrator:
		return AccessByManagement
	case RoleTypeServiceProvider:
		return AccessByContractHistory
	default:
		return AccessByOwnership
	}
}

func ParseRoleType(s string) (RoleType, error) {
	t := RoleType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unknown role type: "+s)
	}
	return t, nil
}

// ParseRoleTypes parses a list and rejects duplicates.
func ParseRoleTypes(values []string) ([]RoleType, error) {
	out := make([]RoleType, 0, len(values))
	seen := make(map[RoleType]struct{}, len(values))
	for _, v := range values {
		t, err := ParseRoleType(v)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[t]; dup {
			return nil, dErrors.New(dErrors.CodeValidation, "role type listed more than once: "+string(t))
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}
