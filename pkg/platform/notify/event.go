// Package notify delivers user-facing and operational notifications produced
// by the role engine. Delivery is fire-and-forget except for durable alerts,
// which are persisted before Emit returns.
package notify

import (
	"time"

	id "rolesync/pkg/domain"
)

type EventType string

const (
	EventRoleVerified             EventType = "role_verified"
	EventRolesAutoCompleted       EventType = "roles_auto_completed"
	EventZeroRolesAlert           EventType = "zero_roles_alert"
	EventActivationInconsistent   EventType = "role_activation_inconsistent"
	EventRoleEmergencyProvisioned EventType = "role_emergency_provisioned"
	// EventVerificationRequested carries a plaintext verification token to
	// the delivery channel that mails it.
	EventVerificationRequested EventType = "role_verification_requested"
)

// Category separates what a user sees from what operators watch.
type Category string

const (
	CategoryUser       Category = "user"
	CategoryOperations Category = "operations"
)

var eventCategories = map[EventType]Category{
	EventRoleVerified:             CategoryUser,
	EventRolesAutoCompleted:       CategoryUser,
	EventZeroRolesAlert:           CategoryUser,
	EventRoleEmergencyProvisioned: CategoryUser,
	EventVerificationRequested:    CategoryUser,
	EventActivationInconsistent:   CategoryOperations,
}

func (t EventType) Category() Category {
	if c, ok := eventCategories[t]; ok {
		return c
	}
	return CategoryOperations
}

// Durable reports whether the event must survive process loss.
func (t EventType) Durable() bool {
	return t == EventZeroRolesAlert
}

// Event is transport agnostic so sinks can fan out freely.
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	AccountID id.AccountID      `json:"account_id"`
	RoleID    id.RoleID         `json:"role_id"`
	RoleType  string            `json:"role_type,omitempty"`
	Message   string            `json:"message,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
