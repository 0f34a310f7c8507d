package models

import (
	"encoding/json"
	"fmt"
	"slices"

	id "rolesync/pkg/domain"
)

// RoleData is the role-scoped document: typed attributes plus the keys the
// sync engine maintains.
type RoleData struct {
	Attributes           Attributes
	PropertyAssociations []PropertyAssociation
	SyncMetadata         map[id.PropertyID]SyncMetadata
	SyncHistory          []SyncOperation
}

type roleDataWire struct {
	Kind                 RoleType                       `json:"kind"`
	Attributes           json.RawMessage                `json:"attributes"`
	PropertyAssociations []PropertyAssociation          `json:"property_associations,omitempty"`
	SyncMetadata         map[id.PropertyID]SyncMetadata `json:"sync_metadata,omitempty"`
	SyncHistory          []SyncOperation                `json:"sync_history,omitempty"`
}

func (d RoleData) MarshalJSON() ([]byte, error) {
	w := roleDataWire{
		PropertyAssociations: d.PropertyAssociations,
		SyncMetadata:         d.SyncMetadata,
		SyncHistory:          d.SyncHistory,
	}
	if d.Attributes != nil {
		attrs, err := json.Marshal(d.Attributes)
		if err != nil {
			return nil, fmt.Errorf("marshal role attributes: %w", err)
		}
		w.Kind = d.Attributes.RoleType()
		w.Attributes = attrs
	}
	return json.Marshal(w)
}

func (d *RoleData) UnmarshalJSON(b []byte) error {
	var w roleDataWire
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("unmarshal role data: %w", err)
	}
	*d = RoleData{
		PropertyAssociations: w.PropertyAssociations,
		SyncMetadata:         w.SyncMetadata,
		SyncHistory:          w.SyncHistory,
	}
	if w.Kind == "" {
		return nil
	}
	target, err := NewAttributes(w.Kind)
	if err != nil {
		return err
	}
	if len(w.Attributes) > 0 {
		if err := json.Unmarshal(w.Attributes, target); err != nil {
			return fmt.Errorf("unmarshal %s attributes: %w", w.Kind, err)
		}
	}
	d.Attributes = deref(target)
	return nil
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (d RoleData) Clone() RoleData {
	out := RoleData{
		Attributes:           cloneAttributes(d.Attributes),
		PropertyAssociations: slices.Clone(d.PropertyAssociations),
		SyncHistory:          make([]SyncOperation, len(d.SyncHistory)),
	}
	for i, op := range d.SyncHistory {
		op.PropertyIDs = slices.Clone(op.PropertyIDs)
		out.SyncHistory[i] = op
	}
	if d.SyncHistory == nil {
		out.SyncHistory = nil
	}
	if d.SyncMetadata != nil {
		out.SyncMetadata = make(map[id.PropertyID]SyncMetadata, len(d.SyncMetadata))
		for k, v := range d.SyncMetadata {
			out.SyncMetadata[k] = v
		}
	}
	return out
}

func cloneAttributes(a Attributes) Attributes {
	if sp, ok := a.(ServiceProviderAttributes); ok {
		sp.ServiceCategories = slices.Clone(sp.ServiceCategories)
		return sp
	}
	return a
}

// Association returns the association for propertyID, if any.
func (d *RoleData) Association(propertyID id.PropertyID) (PropertyAssociation, bool) {
	for _, a := range d.PropertyAssociations {
		if a.PropertyID == propertyID {
			return a, true
		}
	}
	return PropertyAssociation{}, false
}

// UpsertAssociation replaces any existing association for the same property.
func (d *RoleData) UpsertAssociation(a PropertyAssociation) {
	for i := range d.PropertyAssociations {
		if d.PropertyAssociations[i].PropertyID == a.PropertyID {
			d.PropertyAssociations[i] = a
			return
		}
	}
	d.PropertyAssociations = append(d.PropertyAssociations, a)
}

// RemoveProperty drops the association and sync metadata for propertyID and
// reports whether anything was removed.
func (d *RoleData) RemoveProperty(propertyID id.PropertyID) bool {
	removed := false
	kept := d.PropertyAssociations[:0]
	for _, a := range d.PropertyAssociations {
		if a.PropertyID == propertyID {
			removed = true
			continue
		}
		kept = append(kept, a)
	}
	d.PropertyAssociations = kept
	if _, ok := d.SyncMetadata[propertyID]; ok {
		delete(d.SyncMetadata, propertyID)
		removed = true
	}
	return removed
}

func (d *RoleData) SetSyncMetadata(propertyID id.PropertyID, m SyncMetadata) {
	if d.SyncMetadata == nil {
		d.SyncMetadata = make(map[id.PropertyID]SyncMetadata)
	}
	d.SyncMetadata[propertyID] = m
}

// AppendHistory adds op and keeps only the newest limit entries.
func (d *RoleData) AppendHistory(op SyncOperation, limit int) {
	if limit <= 0 {
		limit = DefaultSyncHistoryLimit
	}
	d.SyncHistory = append(d.SyncHistory, op)
	if over := len(d.SyncHistory) - limit; over > 0 {
		d.SyncHistory = slices.Clone(d.SyncHistory[over:])
	}
}
