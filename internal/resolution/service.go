// Package resolution brings an account's stored roles back to a usable shape
// when a session loads: exactly one active verified role, an emergency role
// for brand new accounts that ended up with none, and background completion
// of roles the account registered with but does not hold.
package resolution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	accounts "rolesync/internal/accounts/models"
	"rolesync/internal/bootstrap"
	"rolesync/internal/platform/telemetry"
	"rolesync/internal/roles/models"
	"rolesync/internal/roles/service"
	id "rolesync/pkg/domain"
	dErrors "rolesync/pkg/domain-errors"
	"rolesync/pkg/platform/notify"
	"rolesync/pkg/platform/sentinel"
	"rolesync/pkg/requestcontext"
)

type RoleManager interface {
	ListRoles(ctx context.Context, accountID id.AccountID) ([]*models.Role, error)
	CreateRole(ctx context.Context, accountID id.AccountID, roleType models.RoleType, attrs models.Attributes, opts service.CreateOptions) (*service.CreateResult, error)
	SetRoleActive(ctx context.Context, roleID id.RoleID, active bool) error
}

type AccountReader interface {
	FindByID(ctx context.Context, accountID id.AccountID) (*accounts.Account, error)
}

// RoleCompleter creates missing roles in the background.
type RoleCompleter interface {
	AddRoles(ctx context.Context, accountID id.AccountID, requests []bootstrap.RoleRequest, opts bootstrap.Options) (*bootstrap.Result, error)
}

type Notifier interface {
	Emit(ctx context.Context, event notify.Event) error
}

type Action string

const (
	ActionActivated            Action = "activated"
	ActionDeactivated          Action = "deactivated"
	ActionEmergencyProvisioned Action = "emergency_provisioned"
)

// Correction records one repair made during a pass.
type Correction struct {
	Action   Action          `json:"action"`
	RoleID   id.RoleID       `json:"role_id"`
	RoleType models.RoleType `json:"role_type"`
	Applied  bool            `json:"applied"`
	Error    string          `json:"error,omitempty"`
}

type Result struct {
	Roles                []*models.Role    `json:"roles"`
	ActiveRole           *models.Role      `json:"active_role"`
	Corrections          []Correction      `json:"corrections"`
	EmergencyProvisioned bool              `json:"emergency_provisioned"`
	AlertRaised          bool              `json:"alert_raised"`
	CompletionScheduled  []models.RoleType `json:"completion_scheduled,omitempty"`
}

type Config struct {
	// RecencyWindow bounds the account age for emergency provisioning.
	RecencyWindow     time.Duration
	CompletionTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		RecencyWindow:     60 * time.Minute,
		CompletionTimeout: 2 * time.Minute,
	}
}

type Service struct {
	roles     RoleManager
	accounts  AccountReader
	completer RoleCompleter
	notifier  Notifier
	logger    *slog.Logger
	metrics   *Metrics
	cfg       Config

	group singleflight.Group

	wg         sync.WaitGroup
	mu         sync.Mutex
	completing map[id.AccountID]struct{}
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithRoleCompleter enables background completion of expected roles.
func WithRoleCompleter(c RoleCompleter) Option {
	return func(s *Service) {
		s.completer = c
	}
}

func WithConfig(cfg Config) Option {
	return func(s *Service) {
		if cfg.RecencyWindow > 0 {
			s.cfg.RecencyWindow = cfg.RecencyWindow
		}
		if cfg.CompletionTimeout > 0 {
			s.cfg.CompletionTimeout = cfg.CompletionTimeout
		}
	}
}

func New(roles RoleManager, accountReader AccountReader, opts ...Option) *Service {
	s := &Service{
		roles:      roles,
		accounts:   accountReader,
		logger:     slog.Default(),
		cfg:        DefaultConfig(),
		completing: make(map[id.AccountID]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve loads the account's roles and repairs them. Concurrent calls for
// one account share a single pass. A caller whose context ends stops
// waiting; the shared pass still finishes.
func (s *Service) Resolve(ctx context.Context, accountID id.AccountID) (*Result, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerResolution, "resolution.Resolve",
		attribute.String(telemetry.AttrAccountID, accountID.String()),
	)
	defer span.End()

	if accountID.IsNil() {
		err := dErrors.New(dErrors.CodeValidation, "account id is required")
		telemetry.RecordError(span, err)
		return nil, err
	}

	ch := s.group.DoChan(accountID.String(), func() (any, error) {
		return s.resolve(context.WithoutCancel(ctx), accountID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			telemetry.RecordError(span, res.Err)
			return nil, res.Err
		}
		result := res.Val.(*Result)
		if res.Shared {
			result = result.clone()
			telemetry.AddEvent(span, "shared_pass")
		}
		span.SetAttributes(attribute.Int(telemetry.AttrCorrections, len(result.Corrections)))
		return result, nil
	}
}

// Wait blocks until background completions started by Resolve finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) resolve(ctx context.Context, accountID id.AccountID) (*Result, error) {
	start := time.Now()
	roles, err := s.roles.ListRoles(ctx, accountID)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	if len(roles) == 0 {
		roles, err = s.resolveEmpty(ctx, accountID, result)
		if err != nil {
			return nil, err
		}
	}
	if len(roles) > 0 {
		s.enforceSingleActive(ctx, accountID, roles, result)
	}
	if len(roles) == 1 && !result.EmergencyProvisioned {
		s.scheduleCompletion(ctx, accountID, roles, result)
	}
	if roles == nil {
		roles = []*models.Role{}
	}
	result.Roles = roles

	outcome := "clean"
	switch {
	case result.AlertRaised:
		outcome = "alert"
	case result.EmergencyProvisioned:
		outcome = "emergency"
	case len(result.Corrections) > 0:
		outcome = "repaired"
	}
	if s.metrics != nil {
		s.metrics.IncrementResolution(outcome)
		s.metrics.ObserveResolution(start)
	}
	if len(result.Corrections) > 0 {
		s.logAudit(ctx, "roles_repaired",
			"account_id", accountID,
			"corrections", len(result.Corrections),
			"outcome", outcome,
		)
	}
	return result, nil
}

// resolveEmpty handles an account without roles. Young accounts get an
// emergency individual role; older ones raise a durable alert.
func (s *Service) resolveEmpty(ctx context.Context, accountID id.AccountID, result *Result) ([]*models.Role, error) {
	account, err := s.findAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	if !account.CreatedWithin(s.cfg.RecencyWindow, now) {
		s.raiseZeroRolesAlert(ctx, account, result)
		return nil, nil
	}

	attrs, err := models.DefaultAttributes(models.RoleTypeIndividual, account.Profile())
	if err != nil {
		return nil, err
	}
	created, err := s.roles.CreateRole(ctx, accountID, models.RoleTypeIndividual, attrs, service.CreateOptions{
		Verification:   service.VerifyImmediately,
		SkipActivation: true,
	})
	if err != nil {
		// Another process may have provisioned concurrently.
		if dErrors.HasCode(err, dErrors.CodeDuplicateRole) || dErrors.HasCode(err, dErrors.CodeConflict) {
			return s.roles.ListRoles(ctx, accountID)
		}
		return nil, fmt.Errorf("provision emergency role: %w", err)
	}

	role := created.Role
	result.EmergencyProvisioned = true
	result.Corrections = append(result.Corrections, Correction{
		Action:   ActionEmergencyProvisioned,
		RoleID:   role.ID,
		RoleType: role.RoleType,
		Applied:  true,
	})
	if s.metrics != nil {
		s.metrics.IncrementCorrection(ActionEmergencyProvisioned)
	}
	s.logger.WarnContext(ctx, "emergency role provisioned",
		"account_id", accountID,
		"role_id", role.ID,
		"account_age", now.Sub(account.CreatedAt).String(),
	)
	s.emit(ctx, notify.Event{
		Type:      notify.EventRoleEmergencyProvisioned,
		AccountID: accountID,
		RoleID:    role.ID,
		RoleType:  string(role.RoleType),
		Message:   "We set up a basic individual profile so you can keep going.",
	})
	return []*models.Role{role}, nil
}

func (s *Service) raiseZeroRolesAlert(ctx context.Context, account *accounts.Account, result *Result) {
	if s.metrics != nil {
		s.metrics.IncrementZeroRolesAlert()
	}
	s.logger.ErrorContext(ctx, "account has no roles",
		"account_id", account.ID,
		"created_at", account.CreatedAt,
	)
	if s.notifier == nil {
		return
	}
	err := s.notifier.Emit(ctx, notify.Event{
		Type:      notify.EventZeroRolesAlert,
		AccountID: account.ID,
		Message:   "Your account has no roles. Please contact support.",
		Details:   map[string]string{"email": account.Email},
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "zero roles alert not persisted",
			"account_id", account.ID,
			"error", err,
		)
		return
	}
	result.AlertRaised = true
}

// enforceSingleActive keeps the first active verified role in creation
// order, or activates the first verified one, and deactivates every other
// active role. roles are updated in place to reflect applied repairs.
func (s *Service) enforceSingleActive(ctx context.Context, accountID id.AccountID, roles []*models.Role, result *Result) {
	var keep *models.Role
	for _, r := range roles {
		if r.IsVerified && r.IsActive {
			keep = r
			break
		}
	}
	needsActivation := false
	if keep == nil {
		for _, r := range roles {
			if r.IsVerified {
				keep = r
				needsActivation = true
				break
			}
		}
	}

	now := requestcontext.Now(ctx)
	for _, r := range roles {
		if r == keep || !r.IsActive {
			continue
		}
		err := s.roles.SetRoleActive(ctx, r.ID, false)
		if err == nil {
			r.ApplyDeactivation(now)
		}
		s.record(ctx, accountID, result, ActionDeactivated, r, err)
	}

	if keep == nil {
		return
	}
	if needsActivation {
		err := s.roles.SetRoleActive(ctx, keep.ID, true)
		if err == nil {
			keep.ApplyActivation(now)
		}
		s.record(ctx, accountID, result, ActionActivated, keep, err)
	}
	if keep.IsActive {
		result.ActiveRole = keep
	}
}

func (s *Service) record(ctx context.Context, accountID id.AccountID, result *Result, action Action, role *models.Role, err error) {
	c := Correction{Action: action, RoleID: role.ID, RoleType: role.RoleType, Applied: err == nil}
	if err != nil {
		c.Error = dErrors.MessageOf(err)
		s.logger.ErrorContext(ctx, "role repair failed",
			"account_id", accountID,
			"role_id", role.ID,
			"role_type", role.RoleType,
			"action", action,
			"error", err,
		)
	} else {
		s.logger.InfoContext(ctx, "role repaired",
			"account_id", accountID,
			"role_id", role.ID,
			"role_type", role.RoleType,
			"action", action,
		)
	}
	if s.metrics != nil {
		s.metrics.IncrementCorrection(action)
	}
	result.Corrections = append(result.Corrections, c)
}

// scheduleCompletion starts background creation of expected roles the
// account lacks. It never blocks or fails the pass.
func (s *Service) scheduleCompletion(ctx context.Context, accountID id.AccountID, roles []*models.Role, result *Result) {
	if s.completer == nil {
		return
	}
	account, err := s.findAccount(ctx, accountID)
	if err != nil {
		s.logger.WarnContext(ctx, "skipping role completion",
			"account_id", accountID,
			"error", err,
		)
		return
	}
	held := make([]models.RoleType, len(roles))
	for i, r := range roles {
		held[i] = r.RoleType
	}
	missing := account.MissingRoles(held)
	if len(missing) == 0 {
		return
	}

	s.mu.Lock()
	if _, running := s.completing[accountID]; running {
		s.mu.Unlock()
		return
	}
	s.completing[accountID] = struct{}{}
	s.mu.Unlock()

	result.CompletionScheduled = missing
	profile := account.Profile()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.completing, accountID)
			s.mu.Unlock()
		}()
		cctx, cancel := context.WithTimeout(ctx, s.cfg.CompletionTimeout)
		defer cancel()
		s.complete(cctx, accountID, profile, missing)
	}()
}

func (s *Service) complete(ctx context.Context, accountID id.AccountID, profile models.Profile, missing []models.RoleType) {
	requests := make([]bootstrap.RoleRequest, 0, len(missing))
	for _, rt := range missing {
		attrs, err := models.DefaultAttributes(rt, profile)
		if err != nil {
			s.logger.WarnContext(ctx, "no default attributes", "role_type", rt, "error", err)
			continue
		}
		requests = append(requests, bootstrap.RoleRequest{RoleType: rt, Attributes: attrs})
	}
	if len(requests) == 0 {
		return
	}

	res, err := s.completer.AddRoles(ctx, accountID, requests, bootstrap.Options{AllowDegraded: true})
	if err != nil || res == nil || res.RolesCreated == 0 {
		if s.metrics != nil {
			s.metrics.IncrementCompletion("failure")
		}
		s.logger.WarnContext(ctx, "role completion failed",
			"account_id", accountID,
			"missing", missing,
			"error", err,
		)
		return
	}

	outcome := "success"
	if res.Partial {
		outcome = "partial"
	}
	if s.metrics != nil {
		s.metrics.IncrementCompletion(outcome)
	}
	types := make([]string, len(res.Roles))
	for i, r := range res.Roles {
		types[i] = string(r.RoleType)
	}
	s.logAudit(ctx, "roles_auto_completed",
		"account_id", accountID,
		"roles_created", res.RolesCreated,
		"partial", res.Partial,
	)
	s.emit(ctx, notify.Event{
		Type:      notify.EventRolesAutoCompleted,
		AccountID: accountID,
		Message:   "We added the roles you registered with.",
		Details:   map[string]string{"role_types": strings.Join(types, ",")},
	})
}

func (s *Service) findAccount(ctx context.Context, accountID id.AccountID) (*accounts.Account, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	return account, nil
}

func (s *Service) emit(ctx context.Context, event notify.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "notification failed",
			"event_type", event.Type,
			"account_id", event.AccountID,
			"error", err,
		)
	}
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

// clone gives each caller sharing a pass its own copy of the roles.
func (r *Result) clone() *Result {
	out := *r
	out.Roles = make([]*models.Role, len(r.Roles))
	for i, role := range r.Roles {
		out.Roles[i] = role.Clone()
		if role == r.ActiveRole {
			out.ActiveRole = out.Roles[i]
		}
	}
	out.Corrections = append([]Correction(nil), r.Corrections...)
	out.CompletionScheduled = append([]models.RoleType(nil), r.CompletionScheduled...)
	return &out
}
