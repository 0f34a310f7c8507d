package propertysync_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"rolesync/internal/platform/throttle"
	"rolesync/internal/propertysync"
	"rolesync/internal/propertysync/ports"
	"rolesync/internal/propertysync/ports/memory"
	"rolesync/internal/propertysync/ports/mocks"
	"rolesync/internal/roles/models"
	"rolesync/internal/roles/service"
	"rolesync/internal/roles/store/storetest"
	id "rolesync/pkg/domain"
	dErrors "rolesync/pkg/domain-errors"
	"rolesync/pkg/requestcontext"
)

// flakyDocuments fails document lookups for selected properties.
type flakyDocuments struct {
	*memory.Resources
	fail map[id.PropertyID]error
}

func (f flakyDocuments) DocumentsForProperty(ctx context.Context, propertyID id.PropertyID) ([]ports.ResourceRef, error) {
	if err, ok := f.fail[propertyID]; ok {
		return nil, err
	}
	return f.Resources.DocumentsForProperty(ctx, propertyID)
}

type SyncSuite struct {
	suite.Suite
	store      *storetest.FaultyStore
	roles      *service.Service
	resources  *memory.Resources
	documents  flakyDocuments
	metrics    *propertysync.Metrics
	svc        *propertysync.Service
	account    id.AccountID
	individual *models.Role
	provider   *models.Role
	base       time.Time
}

func TestSyncSuite(t *testing.T) {
	suite.Run(t, new(SyncSuite))
}

func (s *SyncSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.base = time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	s.store = storetest.New()
	s.roles = service.New(s.store, throttle.New(),
		service.WithConfig(service.Config{
			BaseBackoff:  time.Millisecond,
			ReadTimeout:  200 * time.Millisecond,
			WriteTimeout: 200 * time.Millisecond,
			BulkTimeout:  200 * time.Millisecond,
		}),
		service.WithLogger(logger),
	)
	s.resources = memory.NewResources()
	s.documents = flakyDocuments{Resources: s.resources, fail: map[id.PropertyID]error{}}
	s.metrics = propertysync.NewMetrics(prometheus.NewRegistry())
	s.svc = s.newService(s.resources)

	s.account = id.NewAccountID()
	s.individual = s.createRole(models.RoleTypeIndividual, service.VerifyImmediately)
	s.provider = s.createRole(models.RoleTypeServiceProvider, service.VerifyImmediately)
}

func (s *SyncSuite) newService(access ports.AccessChecker) *propertysync.Service {
	return propertysync.New(s.roles, access,
		propertysync.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		propertysync.WithMetrics(s.metrics),
		propertysync.WithDocumentLookup(s.documents),
		propertysync.WithContractLookup(s.resources),
		propertysync.WithBudgetLookup(s.resources),
	)
}

func (s *SyncSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.base)
}

func (s *SyncSuite) createRole(roleType models.RoleType, mode service.VerificationMode) *models.Role {
	attrs, err := models.DefaultAttributes(roleType, models.Profile{DisplayName: "Jane Doe"})
	s.Require().NoError(err)
	res, err := s.roles.CreateRole(s.ctx(), s.account, roleType, attrs, service.CreateOptions{Verification: mode})
	s.Require().NoError(err)
	return res.Role
}

func (s *SyncSuite) owned() id.PropertyID {
	propertyID := id.NewPropertyID()
	s.resources.Grant(s.account, models.AccessByOwnership, propertyID)
	return propertyID
}

func (s *SyncSuite) reload(roleType models.RoleType) *models.Role {
	r, err := s.roles.GetRole(context.Background(), s.account, roleType)
	s.Require().NoError(err)
	return r
}

func (s *SyncSuite) TestDocumentLookupFailureStillCountsProperty() {
	p1, p2 := s.owned(), s.owned()
	s.resources.AddDocument(p1, "Deed")
	s.documents.fail[p2] = errors.New("document service unavailable")

	result, err := s.svc.SyncPropertyAccess(s.ctx(), s.account, models.RoleTypeIndividual, models.RoleTypeServiceProvider,
		[]id.PropertyID{p1, p2}, models.SyncOptions{IncludeDocuments: true})
	s.Require().NoError(err)
	s.Equal(2, result.SyncedCount)
	s.Equal(2, result.RequestedCount)
	s.Require().Len(result.Errors, 1)
	s.Equal(p2, result.Errors[0].PropertyID)
	s.Equal(propertysync.StageDocuments, result.Errors[0].Stage)
	s.Contains(result.Errors[0].Message, "document service unavailable")

	target := s.reload(models.RoleTypeServiceProvider)
	s.Len(target.Data.PropertyAssociations, 2)
	s.Len(target.Data.SyncMetadata[p1].DocumentRefs, 1)
	s.Empty(target.Data.SyncMetadata[p2].DocumentRefs)
	assoc, ok := target.Data.Association(p1)
	s.Require().True(ok)
	s.Equal(s.individual.ID, assoc.SourceRoleID)
	s.Equal(models.RoleTypeIndividual, assoc.SourceRoleType)
	s.Equal(models.DirectionOneWay, assoc.SyncOptions.Direction)

	s.Equal(1.0, testutil.ToFloat64(s.metrics.Operations.WithLabelValues("partial")))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.StageErrors.WithLabelValues("documents")))
}

func (s *SyncSuite) TestPropertiesWithoutAccessAreExcludedAndReported() {
	p1 := s.owned()
	stranger := id.NewPropertyID()

	result, err := s.svc.SyncPropertyAccess(s.ctx(), s.account, models.RoleTypeIndividual, models.RoleTypeServiceProvider,
		[]id.PropertyID{p1, stranger}, models.SyncOptions{})
	s.Require().NoError(err)
	s.Equal(2, result.RequestedCount)
	s.Equal(1, result.SyncedCount)
	s.Require().Len(result.Errors, 1)
	s.Equal(stranger, result.Errors[0].PropertyID)
	s.Equal(propertysync.StageAccess, result.Errors[0].Stage)

	_, ok := s.reload(models.RoleTypeServiceProvider).Data.Association(stranger)
	s.False(ok)
}

func (s *SyncSuite) TestProviderAccessComesFromContractHistory() {
	propertyID := id.NewPropertyID()
	s.resources.AddContract(s.account, propertyID, "Gutter cleaning")
	s.resources.AddBudgetEntry(propertyID, "Quarterly maintenance")

	result, err := s.svc.SyncPropertyAccess(s.ctx(), s.account, models.RoleTypeServiceProvider, models.RoleTypeIndividual,
		[]id.PropertyID{propertyID}, models.SyncOptions{IncludeContracts: true, IncludeBudgetHistory: true})
	s.Require().NoError(err)
	s.Equal(1, result.SyncedCount)
	s.Empty(result.Errors)

	meta := s.reload(models.RoleTypeIndividual).Data.SyncMetadata[propertyID]
	s.Len(meta.ContractRefs, 1)
	s.Len(meta.BudgetRefs, 1)
	s.Equal(s.provider.ID, meta.SourceRoleID)
}

func (s *SyncSuite) TestSourceAssociationGrantsAccess() {
	propertyID := id.NewPropertyID()
	_, err := s.roles.UpdateRoleData(s.ctx(), s.individual.ID, func(d *models.RoleData) error {
		d.UpsertAssociation(models.PropertyAssociation{RoleID: s.individual.ID, PropertyID: propertyID})
		return nil
	})
	s.Require().NoError(err)

	ctrl := gomock.NewController(s.T())
	access := mocks.NewMockAccessChecker(ctrl)
	access.EXPECT().HasAccess(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	result, err := s.newService(access).SyncPropertyAccess(s.ctx(), s.account, models.RoleTypeIndividual, models.RoleTypeServiceProvider,
		[]id.PropertyID{propertyID}, models.SyncOptions{})
	s.Require().NoError(err)
	s.Equal(1, result.SyncedCount)
}

func (s *SyncSuite) TestAccessCheckErrorIsPerProperty() {
	p1, p2 := id.NewPropertyID(), id.NewPropertyID()
	ctrl := gomock.NewController(s.T())
	access := mocks.NewMockAccessChecker(ctrl)
	access.EXPECT().HasAccess(gomock.Any(), s.account, models.AccessByOwnership, p1).Return(false, errors.New("registry timeout"))
	access.EXPECT().HasAccess(gomock.Any(), s.account, models.AccessByOwnership, p2).Return(true, nil)

	result, err := s.newService(access).SyncPropertyAccess(s.ctx(), s.account, models.RoleTypeIndividual, models.RoleTypeServiceProvider,
		[]id.PropertyID{p1, p2}, models.SyncOptions{})
	s.Require().NoError(err)
	s.Equal(1, result.SyncedCount)
	s.Require().Len(result.Errors, 1)
	s.Equal(propertysync.StageAccess, result.Errors[0].Stage)
	s.Contains(result.Errors[0].Message, "registry timeout")
}

func (s *SyncSuite) TestRolesMustBeVerified() {
	s.createRole(models.RoleTypeCommunityMember, service.VerifyByToken)
	p := s.owned()

	_, err := s.svc.SyncPropertyAccess(s.ctx(), s.account, models.RoleTypeIndividual, models.RoleTypeCommunityMember,
		[]id.PropertyID{p}, models.SyncOptions{})
	s.True(dErrors.HasCode(err, dErrors.CodeRolesNotVerified))

	_, err = s.svc.SyncPropertyAccess(s.ctx(), s.account, models.RoleTypeIndividual, models.RoleTypePropertyAdministrator,
		[]id.PropertyID{p}, models.SyncOptions{})
	s.True(dErrors.HasCode(err, dErrors.CodeRolesNotVerified))
}

func (s *SyncSuite) TestRejectsInvalidInput() {
	p := s.owned()
	_, err := s.svc.SyncPropertyAccess(s.ctx(), s.account, models.RoleTypeIndividual, models.RoleTypeIndividual,
		[]id.PropertyID{p}, models.SyncOptions{})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.False(dErrors.HasCode(err, dErrors.CodeRolesNotVerified))
	s.Equal("source and target roles must differ", dErrors.MessageOf(err))

	_, err = s.svc.SyncPropertyAccess(s.ctx(), s.account, models.RoleTypeIndividual, models.RoleTypeServiceProvider,
		nil, models.SyncOptions{})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.svc.SyncPropertyAccess(s.ctx(), s.account, models.RoleTypeIndividual, models.RoleTypeServiceProvider,
		[]id.PropertyID{{}, {}}, models.SyncOptions{})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *SyncSuite) TestDroppedIdsAreCountedAndReported() {
	p1 := s.owned()

	result, err := s.svc.SyncPropertyAccess(s.ctx(), s.account, models.RoleTypeIndividual, models.RoleTypeServiceProvider,
		[]id.PropertyID{p1, {}, p1}, models.SyncOptions{})
	s.Require().NoError(err)
	s.Equal(3, result.RequestedCount)
	s.Equal(1, result.SyncedCount)
	s.Require().Len(result.Errors, 2)
	s.Equal(propertysync.StageInput, result.Errors[0].Stage)
	s.True(result.Errors[0].PropertyID.IsNil())
	s.Equal(propertysync.StageInput, result.Errors[1].Stage)
	s.Equal(p1, result.Errors[1].PropertyID)

	s.Len(s.reload(models.RoleTypeServiceProvider).Data.PropertyAssociations, 1)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Operations.WithLabelValues("partial")))
	s.Equal(2.0, testutil.ToFloat64(s.metrics.StageErrors.WithLabelValues("input")))
}

func (s *SyncSuite) TestWriteFailureIsPerProperty() {
	p1, p2 := s.owned(), s.owned()
	s.store.Fail(storetest.OpUpdate, func(c storetest.Call) bool {
		return c.Filter.ID == s.provider.ID
	}, errors.New("row locked"), 1)

	result, err := s.svc.SyncPropertyAccess(s.ctx(), s.account, models.RoleTypeIndividual, models.RoleTypeServiceProvider,
		[]id.PropertyID{p1, p2}, models.SyncOptions{})
	s.Require().NoError(err)
	s.Equal(1, result.SyncedCount)
	s.Require().Len(result.Errors, 1)
	s.Equal(p1, result.Errors[0].PropertyID)
	s.Equal(propertysync.StageWrite, result.Errors[0].Stage)

	history, err := s.svc.SyncHistory(s.ctx(), s.account, models.RoleTypeIndividual)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal(1, history[0].SyncedCount)
	s.Equal(1, history[0].FailedCount)
}

func (s *SyncSuite) TestBidirectionalMirrorsOntoSource() {
	p := s.owned()

	result, err := s.svc.SyncPropertyAccess(s.ctx(), s.account, models.RoleTypeIndividual, models.RoleTypeServiceProvider,
		[]id.PropertyID{p}, models.SyncOptions{Direction: models.DirectionBidirectional})
	s.Require().NoError(err)
	s.Equal(1, result.SyncedCount)

	mirrored, ok := s.reload(models.RoleTypeIndividual).Data.Association(p)
	s.Require().True(ok)
	s.Equal(s.provider.ID, mirrored.SourceRoleID)
	s.Equal(models.RoleTypeServiceProvider, mirrored.SourceRoleType)
}

func (s *SyncSuite) TestHistoryFailureDoesNotFailSync() {
	p := s.owned()
	s.store.Fail(storetest.OpUpdate, func(c storetest.Call) bool {
		return c.Filter.ID == s.individual.ID
	}, errors.New("row locked"), 1)

	result, err := s.svc.SyncPropertyAccess(s.ctx(), s.account, models.RoleTypeIndividual, models.RoleTypeServiceProvider,
		[]id.PropertyID{p}, models.SyncOptions{})
	s.Require().NoError(err)
	s.Equal(1, result.SyncedCount)
	s.Empty(result.Errors)
	s.Empty(s.reload(models.RoleTypeIndividual).Data.SyncHistory)
}

func (s *SyncSuite) TestHistoryIsBoundedAndNewestFirst() {
	p := s.owned()
	var last string
	for i := 0; i < 12; i++ {
		ctx := requestcontext.WithTime(context.Background(), s.base.Add(time.Duration(i)*time.Minute))
		result, err := s.svc.SyncPropertyAccess(ctx, s.account, models.RoleTypeIndividual, models.RoleTypeServiceProvider,
			[]id.PropertyID{p}, models.SyncOptions{})
		s.Require().NoError(err)
		last = result.OperationID
	}

	history, err := s.svc.SyncHistory(s.ctx(), s.account, models.RoleTypeIndividual)
	s.Require().NoError(err)
	s.Len(history, models.DefaultSyncHistoryLimit)
	s.Equal(last, history[0].ID)
	for i := 1; i < len(history); i++ {
		s.Greater(history[i-1].ID, history[i].ID)
	}

	// Re-syncing one property keeps a single association.
	assocs, err := s.svc.ListAssociations(s.ctx(), s.account, models.RoleTypeServiceProvider)
	s.Require().NoError(err)
	s.Len(assocs, 1)
}

func (s *SyncSuite) TestUnsyncIsIdempotent() {
	p := s.owned()
	_, err := s.svc.SyncPropertyAccess(s.ctx(), s.account, models.RoleTypeIndividual, models.RoleTypeServiceProvider,
		[]id.PropertyID{p}, models.SyncOptions{})
	s.Require().NoError(err)

	removed, err := s.svc.UnsyncProperty(s.ctx(), s.account, models.RoleTypeServiceProvider, p)
	s.Require().NoError(err)
	s.True(removed)

	target := s.reload(models.RoleTypeServiceProvider)
	s.Empty(target.Data.PropertyAssociations)
	s.NotContains(target.Data.SyncMetadata, p)

	updates := s.store.Calls(storetest.OpUpdate)
	removed, err = s.svc.UnsyncProperty(s.ctx(), s.account, models.RoleTypeServiceProvider, p)
	s.Require().NoError(err)
	s.False(removed)
	s.Equal(updates, s.store.Calls(storetest.OpUpdate))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Unsynced))
}

func (s *SyncSuite) TestUnsyncUnknownRole() {
	_, err := s.svc.UnsyncProperty(s.ctx(), s.account, models.RoleTypePropertyAdministrator, id.NewPropertyID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestProvisionDefaultsOnlyForOwners(t *testing.T) {
	resources := memory.NewResources()
	owner := &models.Role{ID: id.NewRoleID(), AccountID: id.NewAccountID(), RoleType: models.RoleTypeIndividual}
	provider := &models.Role{ID: id.NewRoleID(), AccountID: owner.AccountID, RoleType: models.RoleTypeServiceProvider}

	if err := resources.ProvisionDefaults(context.Background(), owner); err != nil {
		t.Fatalf("provision owner: %v", err)
	}
	if err := resources.ProvisionDefaults(context.Background(), owner); err != nil {
		t.Fatalf("provision owner again: %v", err)
	}
	if _, ok := resources.PortfolioFor(owner.ID); !ok {
		t.Fatal("expected portfolio for owner role")
	}
	if err := resources.ProvisionDefaults(context.Background(), provider); err == nil {
		t.Fatal("expected error for provider role")
	}
}

func (s *SyncSuite) TestConcurrentSyncsIntoSameTargetKeepBothAssociations() {
	p1, p2 := s.owned(), s.owned()

	held := make(chan struct{})
	var once sync.Once
	s.store.Delay(storetest.OpUpdate, func(c storetest.Call) bool {
		if c.Filter.ID != s.provider.ID || c.Patch.Data == nil {
			return false
		}
		once.Do(func() { close(held) })
		return true
	}, 50*time.Millisecond)

	results := make([]*propertysync.SyncResult, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = s.svc.SyncPropertyAccess(s.ctx(), s.account, models.RoleTypeIndividual, models.RoleTypeServiceProvider,
			[]id.PropertyID{p1}, models.SyncOptions{})
	}()
	<-held
	results[1], errs[1] = s.svc.SyncPropertyAccess(s.ctx(), s.account, models.RoleTypeIndividual, models.RoleTypeServiceProvider,
		[]id.PropertyID{p2}, models.SyncOptions{})
	wg.Wait()

	for i := range results {
		s.Require().NoError(errs[i])
		s.Equal(1, results[i].SyncedCount)
	}
	target := s.reload(models.RoleTypeServiceProvider)
	s.Len(target.Data.PropertyAssociations, 2)
	_, ok := target.Data.Association(p1)
	s.True(ok)
	_, ok = target.Data.Association(p2)
	s.True(ok)
}
