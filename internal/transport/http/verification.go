package httptransport

import (
	"context"

	"rolesync/internal/roles/models"
	"rolesync/pkg/platform/notify"
)

type Notifier interface {
	Emit(ctx context.Context, event notify.Event) error
}

// NotifyVerificationSender hands tokens to the notification pipeline, whose
// consumer mails them.
type NotifyVerificationSender struct {
	notifier Notifier
}

func NewNotifyVerificationSender(n Notifier) *NotifyVerificationSender {
	return &NotifyVerificationSender{notifier: n}
}

func (s *NotifyVerificationSender) SendVerification(ctx context.Context, role *models.Role, token string) error {
	return s.notifier.Emit(ctx, notify.Event{
		Type:      notify.EventVerificationRequested,
		AccountID: role.AccountID,
		RoleID:    role.ID,
		RoleType:  string(role.RoleType),
		Message:   "confirm your " + string(role.RoleType) + " role",
		Details:   map[string]string{"token": token},
	})
}
