package service

import (
	"context"

	"rolesync/internal/roles/models"
	id "rolesync/pkg/domain"
	dErrors "rolesync/pkg/domain-errors"
	"rolesync/pkg/requestcontext"
)

// ListRoles returns the account's roles in creation order.
func (s *Service) ListRoles(ctx context.Context, accountID id.AccountID) ([]*models.Role, error) {
	if accountID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "account id is required")
	}
	return s.selectRoles(ctx, models.Filter{AccountID: accountID})
}

func (s *Service) GetRole(ctx context.Context, accountID id.AccountID, roleType models.RoleType) (*models.Role, error) {
	if accountID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "account id is required")
	}
	if !roleType.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown role type: "+string(roleType))
	}
	roles, err := s.selectRoles(ctx, models.Filter{AccountID: accountID, RoleType: roleType})
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, "account has no "+string(roleType)+" role")
	}
	return roles[0], nil
}

func (s *Service) GetRoleByID(ctx context.Context, roleID id.RoleID) (*models.Role, error) {
	roles, err := s.selectRoles(ctx, models.Filter{ID: roleID})
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, "role not found")
	}
	return roles[0], nil
}

// dataWriteAttempts bounds re-reads when another writer moved the role on
// between read and write.
const dataWriteAttempts = 8

// UpdateRoleData reads the role, applies mutate to a copy of its data and
// writes the result back only if the role is unchanged since the read. A
// lost race re-reads and re-applies mutate, so mutate must be repeatable.
func (s *Service) UpdateRoleData(ctx context.Context, roleID id.RoleID, mutate func(*models.RoleData) error) (*models.Role, error) {
	for attempt := 0; attempt < dataWriteAttempts; attempt++ {
		role, err := s.GetRoleByID(ctx, roleID)
		if err != nil {
			return nil, err
		}
		data := role.Data.Clone()
		if err := mutate(&data); err != nil {
			return nil, err
		}
		if data.Attributes == nil || data.Attributes.RoleType() != role.RoleType {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "role data must keep attributes of the role type")
		}

		now := requestcontext.Now(ctx)
		n, err := s.updateRoles(ctx, weightWrite, "update role data",
			models.Filter{ID: roleID, Version: role.Version},
			models.Patch{Data: &data, UpdatedAt: now},
		)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			role.Data = data
			role.UpdatedAt = now
			role.Version++
			return role, nil
		}
		s.logger.DebugContext(ctx, "role data changed concurrently, retrying",
			"role_id", roleID,
			"attempt", attempt+1,
		)
	}
	return nil, dErrors.New(dErrors.CodeConflict, "role data kept changing; try again")
}
