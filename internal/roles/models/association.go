package models

import (
	"time"

	id "rolesync/pkg/domain"
)

type Direction string

const (
	DirectionOneWay        Direction = "one_way"
	DirectionBidirectional Direction = "bidirectional"
)

// SyncOptions controls which related resources follow a property into the
// target role.
type SyncOptions struct {
	IncludeDocuments     bool      `json:"include_documents"`
	IncludeContracts     bool      `json:"include_contracts"`
	IncludeBudgetHistory bool      `json:"include_budget_history"`
	Direction            Direction `json:"direction"`
}

// Normalize defaults the direction to one-way.
func (o SyncOptions) Normalize() SyncOptions {
	if o.Direction != DirectionBidirectional {
		o.Direction = DirectionOneWay
	}
	return o
}

// PropertyAssociation makes a property visible under a role it was not
// originally attached to.
type PropertyAssociation struct {
	RoleID         id.RoleID     `json:"role_id"`
	PropertyID     id.PropertyID `json:"property_id"`
	SourceRoleID   id.RoleID     `json:"source_role_id"`
	SourceRoleType RoleType      `json:"source_role_type"`
	SyncOptions    SyncOptions   `json:"sync_options"`
	LastUpdated    time.Time     `json:"last_updated"`
}

// SyncMetadata records the most recent sync of one property into a role.
type SyncMetadata struct {
	LastSyncedAt  time.Time   `json:"last_synced_at"`
	SourceRoleID  id.RoleID   `json:"source_role_id"`
	Options       SyncOptions `json:"options"`
	DocumentRefs  []string    `json:"document_refs,omitempty"`
	ContractRefs  []string    `json:"contract_refs,omitempty"`
	BudgetRefs    []string    `json:"budget_refs,omitempty"`
}

// SyncOperation is one entry of a role's bounded sync history.
type SyncOperation struct {
	ID             string          `json:"id"`
	SourceRoleID   id.RoleID       `json:"source_role_id"`
	SourceRoleType RoleType        `json:"source_role_type"`
	TargetRoleID   id.RoleID       `json:"target_role_id"`
	TargetRoleType RoleType        `json:"target_role_type"`
	PropertyIDs    []id.PropertyID `json:"property_ids"`
	Options        SyncOptions     `json:"options"`
	SyncedCount    int             `json:"synced_count"`
	FailedCount    int             `json:"failed_count"`
	Timestamp      time.Time       `json:"timestamp"`
}

// DefaultSyncHistoryLimit bounds SyncHistory on each role.
const DefaultSyncHistoryLimit = 10
