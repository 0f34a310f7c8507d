package models

import (
	"strings"

	"github.com/mitchellh/mapstructure"

	dErrors "rolesync/pkg/domain-errors"
	"rolesync/pkg/email"
)

// Attributes is the role-specific record. Exactly one concrete type exists
// per RoleType, so the pair (RoleType, Attributes) is a closed tagged union.
type Attributes interface {
	RoleType() RoleType
	Validate() error
}

type IndividualAttributes struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
}

type CommunityMemberAttributes struct {
	FullName    string `json:"full_name"`
	CommunityID string `json:"community_id,omitempty"`
	UnitNumber  string `json:"unit_number,omitempty"`
}

type ServiceProviderAttributes struct {
	BusinessName      string   `json:"business_name"`
	ServiceCategories []string `json:"service_categories"`
	LicenseNumber     string   `json:"license_number,omitempty"`
}

type PropertyAdministratorAttributes struct {
	CompanyName   string `json:"company_name"`
	PortfolioSize int    `json:"portfolio_size,omitempty"`
	LicenseNumber string `json:"license_number,omitempty"`
	ContactPhone  string `json:"contact_phone,omitempty"`
}

func (IndividualAttributes) RoleType() RoleType      { return RoleTypeIndividual }
func (CommunityMemberAttributes) RoleType() RoleType { return RoleTypeCommunityMember }
func (ServiceProviderAttributes) RoleType() RoleType { return RoleTypeServiceProvider }
func (PropertyAdministratorAttributes) RoleType() RoleType {
	return RoleTypePropertyAdministrator
}

func (a IndividualAttributes) Validate() error {
	if strings.TrimSpace(a.FullName) == "" {
		return dErrors.New(dErrors.CodeValidation, "full_name is required")
	}
	return nil
}

func (a CommunityMemberAttributes) Validate() error {
	if strings.TrimSpace(a.FullName) == "" {
		return dErrors.New(dErrors.CodeValidation, "full_name is required")
	}
	return nil
}

func (a ServiceProviderAttributes) Validate() error {
	if strings.TrimSpace(a.BusinessName) == "" {
		return dErrors.New(dErrors.CodeValidation, "business_name is required")
	}
	if len(a.ServiceCategories) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one service category is required")
	}
	return nil
}

func (a PropertyAdministratorAttributes) Validate() error {
	if strings.TrimSpace(a.CompanyName) == "" {
		return dErrors.New(dErrors.CodeValidation, "company_name is required")
	}
	if a.PortfolioSize < 0 {
		return dErrors.New(dErrors.CodeValidation, "portfolio_size cannot be negative")
	}
	return nil
}

// ValidateFor checks that attrs is present, matches roleType and is complete.
func ValidateFor(roleType RoleType, attrs Attributes) error {
	if attrs == nil {
		return dErrors.New(dErrors.CodeValidation, "role attributes are required")
	}
	if attrs.RoleType() != roleType {
		return dErrors.New(dErrors.CodeValidation, "attributes do not match role type "+string(roleType))
	}
	return attrs.Validate()
}

// NewAttributes returns an empty attribute record for roleType.
func NewAttributes(roleType RoleType) (Attributes, error) {
	switch roleType {
	case RoleTypeIndividual:
		return &IndividualAttributes{}, nil
	case RoleTypeCommunityMember:
		return &CommunityMemberAttributes{}, nil
	case RoleTypeServiceProvider:
		return &ServiceProviderAttributes{}, nil
	case RoleTypePropertyAdministrator:
		return &PropertyAdministratorAttributes{}, nil
	}
	return nil, dErrors.New(dErrors.CodeValidation, "unknown role type: "+string(roleType))
}

// DecodeAttributes converts a loosely typed request map into the typed record
// for roleType. Unknown keys are rejected.
func DecodeAttributes(roleType RoleType, raw map[string]any) (Attributes, error) {
	target, err := NewAttributes(roleType)
	if err != nil {
		return nil, err
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build attribute decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid attributes for "+string(roleType))
	}
	return deref(target), nil
}

// Profile is the slice of account data used to fill attributes for roles the
// engine provisions on the user's behalf.
type Profile struct {
	DisplayName string
	Email       string
	Phone       string
}

func (p Profile) bestName() string {
	if name := strings.TrimSpace(p.DisplayName); name != "" {
		return name
	}
	return email.FallbackName(p.Email)
}

// DefaultAttributes builds a valid attribute record from profile data alone.
func DefaultAttributes(roleType RoleType, p Profile) (Attributes, error) {
	name := p.bestName()
	switch roleType {
	case RoleTypeIndividual:
		return IndividualAttributes{FullName: name, Phone: p.Phone}, nil
	case RoleTypeCommunityMember:
		return CommunityMemberAttributes{FullName: name}, nil
	case RoleTypeServiceProvider:
		return ServiceProviderAttributes{BusinessName: name, ServiceCategories: []string{"general"}}, nil
	case RoleTypePropertyAdministrator:
		return PropertyAdministratorAttributes{CompanyName: name, ContactPhone: p.Phone}, nil
	}
	return nil, dErrors.New(dErrors.CodeValidation, "unknown role type: "+string(roleType))
}

func deref(a Attributes) Attributes {
	switch v := a.(type) {
	case *IndividualAttributes:
		return *v
	case *CommunityMemberAttributes:
		return *v
	case *ServiceProviderAttributes:
		return *v
	case *PropertyAdministratorAttributes:
		return *v
	}
	return a
}
