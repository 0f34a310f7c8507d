// Package propertysync makes properties known under one role visible under
// another role of the same account, together with references to their
// documents, contracts and budget history.
package propertysync

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"rolesync/internal/platform/telemetry"
	"rolesync/internal/propertysync/ports"
	"rolesync/internal/roles/models"
	id "rolesync/pkg/domain"
	dErrors "rolesync/pkg/domain-errors"
	"rolesync/pkg/requestcontext"
)

// RoleManager is the slice of the lifecycle manager used for role reads and
// role data writes.
type RoleManager interface {
	ListRoles(ctx context.Context, accountID id.AccountID) ([]*models.Role, error)
	GetRole(ctx context.Context, accountID id.AccountID, roleType models.RoleType) (*models.Role, error)
	UpdateRoleData(ctx context.Context, roleID id.RoleID, mutate func(*models.RoleData) error) (*models.Role, error)
}

type Stage string

const (
	StageInput         Stage = "input"
	StageAccess        Stage = "access"
	StageWrite         Stage = "write"
	StageDocuments     Stage = "documents"
	StageContracts     Stage = "contracts"
	StageBudgetHistory Stage = "budget_history"
	StageMirror        Stage = "mirror"
)

type PropertyError struct {
	PropertyID id.PropertyID `json:"property_id"`
	Stage      Stage         `json:"stage"`
	Message    string        `json:"message"`
}

type SyncResult struct {
	OperationID    string          `json:"operation_id"`
	SyncedCount    int             `json:"synced_count"`
	RequestedCount int             `json:"requested_count"`
	Errors         []PropertyError `json:"errors"`
}

type Config struct {
	HistoryLimit      int
	LookupTimeout     time.Duration
	EnrichConcurrency int
}

func DefaultConfig() Config {
	return Config{
		HistoryLimit:      models.DefaultSyncHistoryLimit,
		LookupTimeout:     5 * time.Second,
		EnrichConcurrency: 4,
	}
}

type Service struct {
	roles     RoleManager
	access    ports.AccessChecker
	documents ports.DocumentLookup
	contracts ports.ContractLookup
	budgets   ports.BudgetLookup
	logger    *slog.Logger
	metrics   *Metrics
	cfg       Config
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

func WithDocumentLookup(l ports.DocumentLookup) Option {
	return func(s *Service) {
		s.documents = l
	}
}

func WithContractLookup(l ports.ContractLookup) Option {
	return func(s *Service) {
		s.contracts = l
	}
}

func WithBudgetLookup(l ports.BudgetLookup) Option {
	return func(s *Service) {
		s.budgets = l
	}
}

func WithConfig(cfg Config) Option {
	return func(s *Service) {
		if cfg.HistoryLimit > 0 {
			s.cfg.HistoryLimit = cfg.HistoryLimit
		}
		if cfg.LookupTimeout > 0 {
			s.cfg.LookupTimeout = cfg.LookupTimeout
		}
		if cfg.EnrichConcurrency > 0 {
			s.cfg.EnrichConcurrency = cfg.EnrichConcurrency
		}
	}
}

func New(roles RoleManager, access ports.AccessChecker, opts ...Option) *Service {
	s := &Service{
		roles:  roles,
		access: access,
		logger: slog.Default(),
		cfg:    DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// enrichment holds what was gathered for one confirmed property.
type enrichment struct {
	documents []ports.ResourceRef
	contracts []ports.ResourceRef
	budgets   []ports.ResourceRef
	errs      []PropertyError
}

// SyncPropertyAccess associates propertyIDs known to the source role with the
// target role. Per-property failures are reported in the result; only
// invalid input or unusable roles fail the call.
func (s *Service) SyncPropertyAccess(ctx context.Context, accountID id.AccountID, sourceType, targetType models.RoleType, propertyIDs []id.PropertyID, opts models.SyncOptions) (*SyncResult, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerSync, "sync.SyncPropertyAccess",
		attribute.String(telemetry.AttrAccountID, accountID.String()),
		attribute.String(telemetry.AttrRoleType, string(sourceType)),
		attribute.String(telemetry.AttrTargetRole, string(targetType)),
		attribute.Int(telemetry.AttrPropertyCount, len(propertyIDs)),
	)
	defer span.End()

	result, err := s.syncPropertyAccess(ctx, accountID, sourceType, targetType, propertyIDs, opts.Normalize())
	telemetry.RecordError(span, err)
	if result != nil {
		span.SetAttributes(attribute.Int(telemetry.AttrSyncedCount, result.SyncedCount))
		if s.metrics != nil {
			s.metrics.ObserveSync(result, start)
		}
	}
	return result, err
}

func (s *Service) syncPropertyAccess(ctx context.Context, accountID id.AccountID, sourceType, targetType models.RoleType, propertyIDs []id.PropertyID, opts models.SyncOptions) (*SyncResult, error) {
	if accountID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "account id is required")
	}
	if !sourceType.IsValid() || !targetType.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown role type")
	}
	if sourceType == targetType {
		return nil, dErrors.New(dErrors.CodeValidation, "source and target roles must differ")
	}
	requested := len(propertyIDs)
	propertyIDs, dropped := dedupe(propertyIDs)
	if len(propertyIDs) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one property id is required")
	}

	source, target, err := s.verifiedPair(ctx, accountID, sourceType, targetType)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	result := &SyncResult{
		OperationID:    newOperationID(now),
		RequestedCount: requested,
		Errors:         dropped,
	}

	confirmed := s.checkAccess(ctx, accountID, source, propertyIDs, result)
	enriched := s.enrich(ctx, confirmed, opts)

	var synced []id.PropertyID
	for i, propertyID := range confirmed {
		e := enriched[i]
		_, err := s.roles.UpdateRoleData(ctx, target.ID, func(d *models.RoleData) error {
			d.UpsertAssociation(models.PropertyAssociation{
				RoleID:         target.ID,
				PropertyID:     propertyID,
				SourceRoleID:   source.ID,
				SourceRoleType: source.RoleType,
				SyncOptions:    opts,
				LastUpdated:    now,
			})
			d.SetSyncMetadata(propertyID, models.SyncMetadata{
				LastSyncedAt: now,
				SourceRoleID: source.ID,
				Options:      opts,
				DocumentRefs: ports.RefIDs(e.documents),
				ContractRefs: ports.RefIDs(e.contracts),
				BudgetRefs:   ports.RefIDs(e.budgets),
			})
			return nil
		})
		if err != nil {
			result.Errors = append(result.Errors, PropertyError{PropertyID: propertyID, Stage: StageWrite, Message: dErrors.MessageOf(err)})
			s.logger.WarnContext(ctx, "property association write failed",
				"account_id", accountID,
				"property_id", propertyID,
				"target_role", target.RoleType,
				"error", err,
			)
			continue
		}
		result.Errors = append(result.Errors, e.errs...)
		synced = append(synced, propertyID)
	}
	result.SyncedCount = len(synced)

	s.finishOnSource(ctx, source, target, propertyIDs, synced, opts, now, result)

	s.logAudit(ctx, "properties_synced",
		"account_id", accountID,
		"operation_id", result.OperationID,
		"source_role", source.RoleType,
		"target_role", target.RoleType,
		"synced", result.SyncedCount,
		"requested", result.RequestedCount,
		"errors", len(result.Errors),
	)
	return result, nil
}

// verifiedPair loads both roles and requires each to be verified.
func (s *Service) verifiedPair(ctx context.Context, accountID id.AccountID, sourceType, targetType models.RoleType) (*models.Role, *models.Role, error) {
	roles, err := s.roles.ListRoles(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	var source, target *models.Role
	for _, r := range roles {
		switch r.RoleType {
		case sourceType:
			source = r
		case targetType:
			target = r
		}
	}
	if source == nil || target == nil || !source.IsVerified || !target.IsVerified {
		return nil, nil, dErrors.New(dErrors.CodeRolesNotVerified, "both roles must exist and be verified")
	}
	return source, target, nil
}

// checkAccess keeps properties the source role can reach. Properties already
// associated with the source role pass without a lookup.
func (s *Service) checkAccess(ctx context.Context, accountID id.AccountID, source *models.Role, propertyIDs []id.PropertyID, result *SyncResult) []id.PropertyID {
	basis := source.RoleType.AccessBasis()
	confirmed := make([]id.PropertyID, 0, len(propertyIDs))
	for _, propertyID := range propertyIDs {
		if _, ok := source.Data.Association(propertyID); ok {
			confirmed = append(confirmed, propertyID)
			continue
		}
		lctx, cancel := context.WithTimeout(ctx, s.cfg.LookupTimeout)
		ok, err := s.access.HasAccess(lctx, accountID, basis, propertyID)
		cancel()
		switch {
		case err != nil:
			result.Errors = append(result.Errors, PropertyError{PropertyID: propertyID, Stage: StageAccess, Message: "access check failed: " + err.Error()})
		case !ok:
			result.Errors = append(result.Errors, PropertyError{PropertyID: propertyID, Stage: StageAccess, Message: "source role has no " + string(basis) + " access to property"})
		default:
			confirmed = append(confirmed, propertyID)
		}
	}
	return confirmed
}

// enrich fetches optional references for each property concurrently.
// Lookup failures are recorded per property and never abort the sync.
func (s *Service) enrich(ctx context.Context, propertyIDs []id.PropertyID, opts models.SyncOptions) []enrichment {
	out := make([]enrichment, len(propertyIDs))
	if !opts.IncludeDocuments && !opts.IncludeContracts && !opts.IncludeBudgetHistory {
		return out
	}
	var g errgroup.Group
	g.SetLimit(s.cfg.EnrichConcurrency)
	for i, propertyID := range propertyIDs {
		g.Go(func() error {
			e := &out[i]
			if opts.IncludeDocuments && s.documents != nil {
				e.documents = s.lookup(ctx, propertyID, StageDocuments, s.documents.DocumentsForProperty, e)
			}
			if opts.IncludeContracts && s.contracts != nil {
				e.contracts = s.lookup(ctx, propertyID, StageContracts, s.contracts.ContractsForProperty, e)
			}
			if opts.IncludeBudgetHistory && s.budgets != nil {
				e.budgets = s.lookup(ctx, propertyID, StageBudgetHistory, s.budgets.BudgetHistory, e)
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *Service) lookup(ctx context.Context, propertyID id.PropertyID, stage Stage, fn func(context.Context, id.PropertyID) ([]ports.ResourceRef, error), e *enrichment) []ports.ResourceRef {
	lctx, cancel := context.WithTimeout(ctx, s.cfg.LookupTimeout)
	defer cancel()
	refs, err := fn(lctx, propertyID)
	if err != nil {
		e.errs = append(e.errs, PropertyError{PropertyID: propertyID, Stage: stage, Message: err.Error()})
		if s.metrics != nil {
			s.metrics.IncrementStageError(stage)
		}
		s.logger.WarnContext(ctx, "sync enrichment failed",
			"property_id", propertyID,
			"stage", stage,
			"error", err,
		)
		return nil
	}
	return refs
}

// finishOnSource records the operation on the source role and, for
// bidirectional syncs, mirrors the new associations back onto it. One write
// covers both; its failure never changes the synced count.
func (s *Service) finishOnSource(ctx context.Context, source, target *models.Role, requested, synced []id.PropertyID, opts models.SyncOptions, now time.Time, result *SyncResult) {
	op := models.SyncOperation{
		ID:             result.OperationID,
		SourceRoleID:   source.ID,
		SourceRoleType: source.RoleType,
		TargetRoleID:   target.ID,
		TargetRoleType: target.RoleType,
		PropertyIDs:    slices.Clone(requested),
		Options:        opts,
		SyncedCount:    len(synced),
		FailedCount:    len(requested) - len(synced),
		Timestamp:      now,
	}
	mirror := opts.Direction == models.DirectionBidirectional
	_, err := s.roles.UpdateRoleData(ctx, source.ID, func(d *models.RoleData) error {
		if mirror {
			for _, propertyID := range synced {
				if _, ok := d.Association(propertyID); ok {
					continue
				}
				d.UpsertAssociation(models.PropertyAssociation{
					RoleID:         source.ID,
					PropertyID:     propertyID,
					SourceRoleID:   target.ID,
					SourceRoleType: target.RoleType,
					SyncOptions:    opts,
					LastUpdated:    now,
				})
			}
		}
		d.AppendHistory(op, s.cfg.HistoryLimit)
		return nil
	})
	if err == nil {
		return
	}
	s.logger.WarnContext(ctx, "sync history not recorded",
		"account_id", source.AccountID,
		"operation_id", op.ID,
		"source_role", source.RoleType,
		"error", err,
	)
	if mirror {
		for _, propertyID := range synced {
			result.Errors = append(result.Errors, PropertyError{PropertyID: propertyID, Stage: StageMirror, Message: dErrors.MessageOf(err)})
		}
	}
}

// UnsyncProperty removes propertyID's association and sync metadata from the
// role. It reports whether anything was removed; an absent association is
// not an error.
func (s *Service) UnsyncProperty(ctx context.Context, accountID id.AccountID, roleType models.RoleType, propertyID id.PropertyID) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerSync, "sync.UnsyncProperty",
		attribute.String(telemetry.AttrAccountID, accountID.String()),
		attribute.String(telemetry.AttrRoleType, string(roleType)),
	)
	defer span.End()

	removed, err := s.unsyncProperty(ctx, accountID, roleType, propertyID)
	telemetry.RecordError(span, err)
	return removed, err
}

func (s *Service) unsyncProperty(ctx context.Context, accountID id.AccountID, roleType models.RoleType, propertyID id.PropertyID) (bool, error) {
	if propertyID.IsNil() {
		return false, dErrors.New(dErrors.CodeValidation, "property id is required")
	}
	role, err := s.roles.GetRole(ctx, accountID, roleType)
	if err != nil {
		return false, err
	}
	_, associated := role.Data.Association(propertyID)
	_, hasMetadata := role.Data.SyncMetadata[propertyID]
	if !associated && !hasMetadata {
		return false, nil
	}

	removed := false
	_, err = s.roles.UpdateRoleData(ctx, role.ID, func(d *models.RoleData) error {
		removed = d.RemoveProperty(propertyID)
		return nil
	})
	if err != nil {
		return false, err
	}
	if s.metrics != nil && removed {
		s.metrics.IncrementUnsynced()
	}
	s.logAudit(ctx, "property_unsynced",
		"account_id", accountID,
		"role_id", role.ID,
		"role_type", roleType,
		"property_id", propertyID,
	)
	return removed, nil
}

// ListAssociations returns the properties shared into the role.
func (s *Service) ListAssociations(ctx context.Context, accountID id.AccountID, roleType models.RoleType) ([]models.PropertyAssociation, error) {
	role, err := s.roles.GetRole(ctx, accountID, roleType)
	if err != nil {
		return nil, err
	}
	return slices.Clone(role.Data.PropertyAssociations), nil
}

// SyncHistory returns the role's recorded sync operations, newest first.
func (s *Service) SyncHistory(ctx context.Context, accountID id.AccountID, roleType models.RoleType) ([]models.SyncOperation, error) {
	role, err := s.roles.GetRole(ctx, accountID, roleType)
	if err != nil {
		return nil, err
	}
	history := slices.Clone(role.Data.SyncHistory)
	slices.Reverse(history)
	return history, nil
}

// dedupe keeps the first occurrence of each id and reports the entries it
// dropped.
func dedupe(ids []id.PropertyID) ([]id.PropertyID, []PropertyError) {
	out := make([]id.PropertyID, 0, len(ids))
	var dropped []PropertyError
	seen := make(map[id.PropertyID]struct{}, len(ids))
	for _, v := range ids {
		if v.IsNil() {
			dropped = append(dropped, PropertyError{PropertyID: v, Stage: StageInput, Message: "property id is empty"})
			continue
		}
		if _, ok := seen[v]; ok {
			dropped = append(dropped, PropertyError{PropertyID: v, Stage: StageInput, Message: "property id listed more than once"})
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out, dropped
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}
