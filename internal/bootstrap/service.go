// Package bootstrap creates the set of roles an account registers with as
// one logical unit. Either every requested role exists afterwards or none
// does, unless the caller opted into keeping the primary role alone.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"rolesync/internal/platform/telemetry"
	"rolesync/internal/roles/models"
	"rolesync/internal/roles/service"
	id "rolesync/pkg/domain"
	dErrors "rolesync/pkg/domain-errors"
	"rolesync/pkg/requestcontext"
)

// RoleManager is the slice of the lifecycle manager the bootstrapper needs.
type RoleManager interface {
	CreateRole(ctx context.Context, accountID id.AccountID, roleType models.RoleType, attrs models.Attributes, opts service.CreateOptions) (*service.CreateResult, error)
	DeleteBatch(ctx context.Context, accountID id.AccountID, batchID id.BatchID, roleIDs []id.RoleID) (int, error)
}

// ExpectedRoleRecorder stores the role set an account registered with.
type ExpectedRoleRecorder interface {
	SetExpectedRoles(ctx context.Context, accountID id.AccountID, expected []models.RoleType) error
}

// DefaultsProvisioner creates auxiliary records for a new role, such as the
// default portfolio of an owner.
type DefaultsProvisioner interface {
	ProvisionDefaults(ctx context.Context, role *models.Role) error
}

type RoleRequest struct {
	RoleType   models.RoleType
	Attributes models.Attributes
}

type Options struct {
	// AllowDegraded keeps the primary role when a later role fails instead
	// of rolling everything back. The result is then partial.
	AllowDegraded bool
}

type Failure struct {
	RoleType  models.RoleType `json:"role_type"`
	ErrorCode dErrors.Code    `json:"error_code"`
	Message   string          `json:"message"`
}

type Result struct {
	Success             bool           `json:"success"`
	Partial             bool           `json:"partial"`
	Roles               []*models.Role `json:"roles"`
	RolesCreated        int            `json:"rolesCreated"`
	TotalRolesRequested int            `json:"totalRolesRequested"`
	Failures            []Failure      `json:"failures,omitempty"`
	Message             string         `json:"message"`
	ErrorCode           dErrors.Code   `json:"errorCode,omitempty"`
}

type Service struct {
	roles       RoleManager
	expected    ExpectedRoleRecorder
	provisioner DefaultsProvisioner
	logger      *slog.Logger
	metrics     *Metrics
	auxTimeout  time.Duration
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

func WithExpectedRoleRecorder(r ExpectedRoleRecorder) Option {
	return func(s *Service) {
		s.expected = r
	}
}

func WithDefaultsProvisioner(p DefaultsProvisioner) Option {
	return func(s *Service) {
		s.provisioner = p
	}
}

func New(roles RoleManager, opts ...Option) *Service {
	s := &Service{
		roles:      roles,
		logger:     slog.Default(),
		auxTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bootstrap creates every requested role, verified, for a new account. The
// first request is the primary role and becomes active. On full failure the
// returned error carries the triggering cause and the result details it.
func (s *Service) Bootstrap(ctx context.Context, accountID id.AccountID, requests []RoleRequest, opts Options) (*Result, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerBootstrap, "bootstrap.Bootstrap",
		attribute.String(telemetry.AttrAccountID, accountID.String()),
		attribute.Int(telemetry.AttrRoleCount, len(requests)),
	)
	defer span.End()

	result, err := s.run(ctx, accountID, requests, opts, true)
	telemetry.RecordError(span, err)
	return result, err
}

// AddRoles creates additional roles for an existing account through the
// same all-or-nothing path. It does not change the expected role set.
func (s *Service) AddRoles(ctx context.Context, accountID id.AccountID, requests []RoleRequest, opts Options) (*Result, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerBootstrap, "bootstrap.AddRoles",
		attribute.String(telemetry.AttrAccountID, accountID.String()),
		attribute.Int(telemetry.AttrRoleCount, len(requests)),
	)
	defer span.End()

	result, err := s.run(ctx, accountID, requests, opts, false)
	telemetry.RecordError(span, err)
	return result, err
}

func (s *Service) run(ctx context.Context, accountID id.AccountID, requests []RoleRequest, opts Options, recordExpected bool) (*Result, error) {
	if err := validate(accountID, requests); err != nil {
		return nil, err
	}
	start := time.Now()
	batchID := id.NewBatchID()
	result := &Result{TotalRolesRequested: len(requests)}

	var created []*models.Role
	for i, req := range requests {
		res, err := s.roles.CreateRole(ctx, accountID, req.RoleType, req.Attributes, service.CreateOptions{
			Verification: service.VerifyImmediately,
			BatchID:      batchID,
		})
		if err == nil {
			created = append(created, res.Role)
			continue
		}

		result.Failures = append(result.Failures, Failure{
			RoleType:  req.RoleType,
			ErrorCode: dErrors.CodeOf(err),
			Message:   dErrors.MessageOf(err),
		})
		if i > 0 && opts.AllowDegraded {
			return s.degrade(ctx, accountID, created, requests[i+1:], result), nil
		}
		s.rollback(ctx, accountID, batchID, created)
		result.Success = false
		result.ErrorCode = dErrors.CodeOf(err)
		result.Message = "role creation failed for " + string(req.RoleType) + ", no roles were created"
		s.observe("failure", start)
		s.logger.WarnContext(ctx, "bootstrap rolled back",
			"account_id", accountID,
			"failed_role", req.RoleType,
			"created", len(created),
			"error", err,
		)
		return result, fmt.Errorf("bootstrap %s role: %w", req.RoleType, err)
	}

	result.Success = true
	result.Roles = created
	result.RolesCreated = len(created)
	result.Message = strconv.Itoa(len(created)) + " roles created"

	if recordExpected {
		s.recordExpected(ctx, accountID, requests)
	}
	s.provisionDefaults(ctx, created)
	s.observe("success", start)
	s.logAudit(ctx, "roles_bootstrapped",
		"account_id", accountID,
		"roles_created", len(created),
	)
	return result, nil
}

// degrade keeps the primary role and removes every other role created in
// this run.
func (s *Service) degrade(ctx context.Context, accountID id.AccountID, created []*models.Role, skipped []RoleRequest, result *Result) *Result {
	primary, extras := created[0], created[1:]
	if len(extras) > 0 {
		// Per-id deletes only: the batch tag also covers the primary.
		s.rollback(ctx, accountID, id.BatchID{}, extras)
	}
	for _, req := range skipped {
		result.Failures = append(result.Failures, Failure{
			RoleType:  req.RoleType,
			ErrorCode: dErrors.CodePartialFailure,
			Message:   "not attempted after an earlier role failed",
		})
	}
	result.Success = true
	result.Partial = true
	result.Roles = []*models.Role{primary}
	result.RolesCreated = 1
	result.ErrorCode = dErrors.CodePartialFailure
	result.Message = "only the primary " + string(primary.RoleType) + " role was created"

	s.provisionDefaults(ctx, result.Roles)
	if s.metrics != nil {
		s.metrics.IncrementOutcome("partial")
	}
	s.logAudit(ctx, "roles_bootstrapped_degraded",
		"account_id", accountID,
		"primary_role", primary.RoleType,
		"failures", len(result.Failures),
	)
	return result
}

// rollback deletes created roles. Failures are logged; the outcome reported
// to the caller does not change.
func (s *Service) rollback(ctx context.Context, accountID id.AccountID, batchID id.BatchID, created []*models.Role) {
	ids := make([]id.RoleID, len(created))
	for i, r := range created {
		ids[i] = r.ID
	}
	// Compensation must run even when the caller has gone away.
	rctx := context.WithoutCancel(ctx)
	removed, err := s.roles.DeleteBatch(rctx, accountID, batchID, ids)
	if s.metrics != nil {
		s.metrics.IncrementRollback(err == nil)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "rollback incomplete",
			"account_id", accountID,
			"batch_id", batchID,
			"role_ids", ids,
			"removed", removed,
			"error", err,
		)
		return
	}
	s.logger.InfoContext(ctx, "rollback complete",
		"account_id", accountID,
		"removed", removed,
	)
}

func (s *Service) recordExpected(ctx context.Context, accountID id.AccountID, requests []RoleRequest) {
	if s.expected == nil {
		return
	}
	types := make([]models.RoleType, len(requests))
	for i, r := range requests {
		types[i] = r.RoleType
	}
	if err := s.expected.SetExpectedRoles(ctx, accountID, types); err != nil {
		s.logger.WarnContext(ctx, "recording expected roles failed",
			"account_id", accountID,
			"error", err,
		)
	}
}

// provisionDefaults runs the auxiliary provisioner for owner-type roles.
// It never fails the bootstrap.
func (s *Service) provisionDefaults(ctx context.Context, created []*models.Role) {
	if s.provisioner == nil {
		return
	}
	for _, r := range created {
		if !r.RoleType.IsOwnerType() {
			continue
		}
		pctx, cancel := context.WithTimeout(ctx, s.auxTimeout)
		err := s.provisioner.ProvisionDefaults(pctx, r)
		cancel()
		if err != nil {
			if s.metrics != nil {
				s.metrics.IncrementAuxiliaryFailure()
			}
			s.logger.WarnContext(ctx, "default provisioning failed",
				"account_id", r.AccountID,
				"role_id", r.ID,
				"role_type", r.RoleType,
				"error", err,
			)
		}
	}
}

func validate(accountID id.AccountID, requests []RoleRequest) error {
	if accountID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "account id is required")
	}
	if len(requests) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one role is required")
	}
	seen := make(map[models.RoleType]struct{}, len(requests))
	for _, req := range requests {
		if _, dup := seen[req.RoleType]; dup {
			return dErrors.New(dErrors.CodeValidation, "duplicate role type: "+string(req.RoleType))
		}
		seen[req.RoleType] = struct{}{}
		if !req.RoleType.IsValid() {
			return dErrors.New(dErrors.CodeValidation, "unknown role type: "+string(req.RoleType))
		}
		if err := models.ValidateFor(req.RoleType, req.Attributes); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) observe(outcome string, start time.Time) {
	if s.metrics != nil {
		s.metrics.IncrementOutcome(outcome)
		s.metrics.ObserveBootstrap(start)
	}
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}
