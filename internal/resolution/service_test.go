package resolution_test

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

	accounts "rolesync/internal/accounts/models"
	accountstore "rolesync/internal/accounts/store"
	"rolesync/internal/bootstrap"
	"rolesync/internal/platform/throttle"
	"rolesync/internal/resolution"
	"rolesync/internal/roles/models"
	"rolesync/internal/roles/service"
	"rolesync/internal/roles/store/storetest"
	id "rolesync/pkg/domain"
	dErrors "rolesync/pkg/domain-errors"
	"rolesync/pkg/platform/notify"
	"rolesync/pkg/platform/notify/store/memory"
	"rolesync/pkg/requestcontext"
)

type ResolutionSuite struct {
	suite.Suite
	store     *storetest.FaultyStore
	roles     *service.Service
	directory *accountstore.InMemoryDirectory
	events    *memory.InMemoryStore
	alerts    *memory.InMemoryStore
	metrics   *resolution.Metrics
	svc       *resolution.Service
	account   *accounts.Account
	base      time.Time
}

func TestResolutionSuite(t *testing.T) {
	suite.Run(t, new(ResolutionSuite))
}

func (s *ResolutionSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.base = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	s.store = storetest.New()
	s.events = memory.NewInMemoryStore()
	s.alerts = memory.NewInMemoryStore()
	publisher := notify.NewPublisher(s.events, notify.WithDurableStore(s.alerts))

	s.roles = service.New(s.store, throttle.New(),
		service.WithConfig(service.Config{
			BaseBackoff:  time.Millisecond,
			ReadTimeout:  200 * time.Millisecond,
			WriteTimeout: 200 * time.Millisecond,
			BulkTimeout:  200 * time.Millisecond,
		}),
		service.WithLogger(logger),
	)
	s.directory = accountstore.NewInMemory()
	account, err := accounts.NewAccount(id.NewAccountID(), "jane.doe@example.com", "", s.base)
	s.Require().NoError(err)
	s.Require().NoError(s.directory.Save(context.Background(), account))
	s.account = account

	s.metrics = resolution.NewMetrics(prometheus.NewRegistry())
	s.svc = resolution.New(s.roles, s.directory,
		resolution.WithLogger(logger),
		resolution.WithMetrics(s.metrics),
		resolution.WithNotifier(publisher),
		resolution.WithRoleCompleter(bootstrap.New(s.roles, bootstrap.WithLogger(logger))),
	)
}

func (s *ResolutionSuite) at(minute int) context.Context {
	return requestcontext.WithTime(context.Background(), s.base.Add(time.Duration(minute)*time.Minute))
}

// seed inserts a role directly, bypassing lifecycle rules, to reproduce
// states left behind by interrupted writes.
func (s *ResolutionSuite) seed(minute int, roleType models.RoleType, verified, active bool) *models.Role {
	attrs, err := models.DefaultAttributes(roleType, s.account.Profile())
	s.Require().NoError(err)
	created := s.base.Add(time.Duration(minute) * time.Minute)

	var r *models.Role
	if verified {
		r, err = models.NewVerifiedRole(id.NewRoleID(), s.account.ID, roleType, attrs, created)
	} else {
		r, err = models.NewPendingRole(id.NewRoleID(), s.account.ID, roleType, attrs, models.DigestToken("t"), created.Add(time.Hour), created)
	}
	s.Require().NoError(err)
	r.IsActive = active
	s.Require().NoError(s.store.InMemoryRoleStore.Insert(context.Background(), r))
	return r
}

func (s *ResolutionSuite) stored() []*models.Role {
	roles, err := s.store.Select(context.Background(), models.Filter{AccountID: s.account.ID})
	s.Require().NoError(err)
	return roles
}

func (s *ResolutionSuite) activeIDs() []id.RoleID {
	var out []id.RoleID
	for _, r := range s.stored() {
		if r.IsActive {
			out = append(out, r.ID)
		}
	}
	return out
}

func (s *ResolutionSuite) TestZeroRolesOnNewAccountProvisionsEmergencyRole() {
	result, err := s.svc.Resolve(s.at(10), s.account.ID)
	s.Require().NoError(err)
	s.True(result.EmergencyProvisioned)
	s.False(result.AlertRaised)
	s.Require().Len(result.Roles, 1)
	s.Require().NotNil(result.ActiveRole)
	s.Equal(models.RoleTypeIndividual, result.ActiveRole.RoleType)

	attrs, ok := result.ActiveRole.Data.Attributes.(models.IndividualAttributes)
	s.Require().True(ok)
	s.NotEmpty(attrs.FullName)

	roles := s.stored()
	s.Require().Len(roles, 1)
	s.True(roles[0].IsVerified)
	s.True(roles[0].IsActive)
	s.Equal(1, s.events.CountByType(s.account.ID, notify.EventRoleEmergencyProvisioned))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Resolutions.WithLabelValues("emergency")))
}

func (s *ResolutionSuite) TestZeroRolesOnOldAccountRaisesDurableAlert() {
	result, err := s.svc.Resolve(s.at(61), s.account.ID)
	s.Require().NoError(err)
	s.True(result.AlertRaised)
	s.False(result.EmergencyProvisioned)
	s.Empty(result.Roles)
	s.Nil(result.ActiveRole)
	s.Empty(s.stored())

	alerts, err := s.alerts.ListOpenAlerts(context.Background(), s.account.ID)
	s.Require().NoError(err)
	s.Require().Len(alerts, 1)
	s.Equal(notify.EventZeroRolesAlert, alerts[0].Type)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.ZeroRolesAlerts))
}

func (s *ResolutionSuite) TestZeroRolesUnknownAccount() {
	_, err := s.svc.Resolve(s.at(0), id.NewAccountID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ResolutionSuite) TestCleanAccountNeedsNoCorrections() {
	first := s.seed(0, models.RoleTypeIndividual, true, true)
	s.seed(1, models.RoleTypeServiceProvider, true, false)

	result, err := s.svc.Resolve(s.at(5), s.account.ID)
	s.Require().NoError(err)
	s.Empty(result.Corrections)
	s.Equal(first.ID, result.ActiveRole.ID)
	s.Equal(0, s.store.Calls(storetest.OpUpdate))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Resolutions.WithLabelValues("clean")))
}

func (s *ResolutionSuite) TestSingleInactiveRoleIsActivated() {
	only := s.seed(0, models.RoleTypeServiceProvider, true, false)

	result, err := s.svc.Resolve(s.at(5), s.account.ID)
	s.Require().NoError(err)
	s.Require().Len(result.Corrections, 1)
	s.Equal(resolution.ActionActivated, result.Corrections[0].Action)
	s.True(result.Corrections[0].Applied)
	s.Equal(only.ID, result.ActiveRole.ID)
	s.Equal([]id.RoleID{only.ID}, s.activeIDs())
}

func (s *ResolutionSuite) TestKeepsFirstActiveVerifiedRole() {
	first := s.seed(0, models.RoleTypeIndividual, true, true)
	second := s.seed(1, models.RoleTypeServiceProvider, true, true)
	s.seed(2, models.RoleTypeCommunityMember, true, true)

	result, err := s.svc.Resolve(s.at(5), s.account.ID)
	s.Require().NoError(err)
	s.Equal(first.ID, result.ActiveRole.ID)
	s.Len(result.Corrections, 2)
	s.Equal(second.ID, result.Corrections[0].RoleID)
	s.Equal(resolution.ActionDeactivated, result.Corrections[0].Action)
	s.Equal([]id.RoleID{first.ID}, s.activeIDs())
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Resolutions.WithLabelValues("repaired")))
}

func (s *ResolutionSuite) TestActivatesFirstVerifiedWhenNoneActive() {
	s.seed(0, models.RoleTypeCommunityMember, false, false)
	verified := s.seed(1, models.RoleTypeServiceProvider, true, false)
	s.seed(2, models.RoleTypeIndividual, true, false)

	result, err := s.svc.Resolve(s.at(5), s.account.ID)
	s.Require().NoError(err)
	s.Equal(verified.ID, result.ActiveRole.ID)
	s.Equal([]id.RoleID{verified.ID}, s.activeIDs())
}

func (s *ResolutionSuite) TestDeactivatesActiveUnverifiedRole() {
	pending := s.seed(0, models.RoleTypeServiceProvider, false, true)
	verified := s.seed(1, models.RoleTypeIndividual, true, true)

	result, err := s.svc.Resolve(s.at(5), s.account.ID)
	s.Require().NoError(err)
	s.Equal(verified.ID, result.ActiveRole.ID)
	s.Require().Len(result.Corrections, 1)
	s.Equal(pending.ID, result.Corrections[0].RoleID)
	s.Equal([]id.RoleID{verified.ID}, s.activeIDs())
}

func (s *ResolutionSuite) TestFailedRepairIsReportedNotReturned() {
	first := s.seed(0, models.RoleTypeIndividual, true, true)
	s.seed(1, models.RoleTypeServiceProvider, true, true)
	s.store.Fail(storetest.OpUpdate, nil, errors.New("update rejected"), 1)

	result, err := s.svc.Resolve(s.at(5), s.account.ID)
	s.Require().NoError(err)
	s.Equal(first.ID, result.ActiveRole.ID)
	s.Require().Len(result.Corrections, 1)
	s.False(result.Corrections[0].Applied)
	s.NotEmpty(result.Corrections[0].Error)

	// The next pass finishes the repair.
	result, err = s.svc.Resolve(s.at(6), s.account.ID)
	s.Require().NoError(err)
	s.True(result.Corrections[0].Applied)
	s.Equal([]id.RoleID{first.ID}, s.activeIDs())
}

func (s *ResolutionSuite) TestSingleRoleCompletesExpectedRolesInBackground() {
	ctx := context.Background()
	s.Require().NoError(s.directory.SetExpectedRoles(ctx, s.account.ID, []models.RoleType{
		models.RoleTypeIndividual, models.RoleTypeServiceProvider, models.RoleTypeCommunityMember,
	}))
	primary := s.seed(0, models.RoleTypeIndividual, true, true)

	result, err := s.svc.Resolve(s.at(5), s.account.ID)
	s.Require().NoError(err)
	s.Equal([]models.RoleType{models.RoleTypeServiceProvider, models.RoleTypeCommunityMember}, result.CompletionScheduled)
	s.Len(result.Roles, 1)

	s.svc.Wait()
	roles := s.stored()
	s.Len(roles, 3)
	s.Equal([]id.RoleID{primary.ID}, s.activeIDs())
	s.Equal(1, s.events.CountByType(s.account.ID, notify.EventRolesAutoCompleted))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Completions.WithLabelValues("success")))

	result, err = s.svc.Resolve(s.at(6), s.account.ID)
	s.Require().NoError(err)
	s.Empty(result.CompletionScheduled)
}

func (s *ResolutionSuite) TestCompletionFailureDoesNotAffectResolve() {
	s.Require().NoError(s.directory.SetExpectedRoles(context.Background(), s.account.ID, []models.RoleType{
		models.RoleTypeIndividual, models.RoleTypeServiceProvider,
	}))
	s.seed(0, models.RoleTypeIndividual, true, true)
	s.store.Fail(storetest.OpInsert, storetest.ForRoleType(models.RoleTypeServiceProvider), errors.New("insert rejected"), 1)

	result, err := s.svc.Resolve(s.at(5), s.account.ID)
	s.Require().NoError(err)
	s.NotNil(result.ActiveRole)

	s.svc.Wait()
	s.Len(s.stored(), 1)
	s.Equal(0, s.events.CountByType(s.account.ID, notify.EventRolesAutoCompleted))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Completions.WithLabelValues("failure")))
}

func (s *ResolutionSuite) TestConcurrentActivationThenResolve() {
	types := []models.RoleType{
		models.RoleTypeIndividual,
		models.RoleTypeServiceProvider,
		models.RoleTypeCommunityMember,
		models.RoleTypePropertyAdministrator,
	}
	for i, rt := range types {
		s.seed(i, rt, true, i == 0)
	}

	var wg sync.WaitGroup
	for _, rt := range types {
		wg.Add(1)
		go func(rt models.RoleType) {
			defer wg.Done()
			_, err := s.roles.ActivateRole(s.at(10), s.account.ID, rt)
			s.NoError(err)
		}(rt)
	}
	wg.Wait()

	result, err := s.svc.Resolve(s.at(11), s.account.ID)
	s.Require().NoError(err)
	s.Require().NotNil(result.ActiveRole)
	s.Len(s.activeIDs(), 1)
	s.Equal(result.ActiveRole.ID, s.activeIDs()[0])
}

func (s *ResolutionSuite) TestRepairsInterruptedActivation() {
	first := s.seed(0, models.RoleTypeIndividual, true, true)
	target := s.seed(1, models.RoleTypeServiceProvider, true, false)
	s.store.Fail(storetest.OpUpdate, func(c storetest.Call) bool {
		return c.Filter.ID == target.ID
	}, errors.New("connection reset"), 1)

	activation, err := s.roles.ActivateRole(s.at(5), s.account.ID, models.RoleTypeServiceProvider)
	s.Require().NoError(err)
	s.False(activation.Consistent)
	s.Empty(s.activeIDs())

	result, err := s.svc.Resolve(s.at(6), s.account.ID)
	s.Require().NoError(err)
	s.Equal(first.ID, result.ActiveRole.ID)
	s.Equal([]id.RoleID{first.ID}, s.activeIDs())
}

func (s *ResolutionSuite) TestConcurrentResolvesAgree() {
	first := s.seed(0, models.RoleTypeIndividual, true, true)
	s.seed(1, models.RoleTypeServiceProvider, true, true)
	s.seed(2, models.RoleTypeCommunityMember, true, false)

	const callers = 8
	results := make([]*resolution.Result, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := s.svc.Resolve(s.at(5), s.account.ID)
			s.NoError(err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	for _, res := range results {
		s.Require().NotNil(res)
		s.Equal(first.ID, res.ActiveRole.ID)
		active := 0
		for _, r := range res.Roles {
			if r.IsActive {
				active++
			}
		}
		s.Equal(1, active)
	}
	s.Equal([]id.RoleID{first.ID}, s.activeIDs())
}

func (s *ResolutionSuite) TestRejectsNilAccount() {
	_, err := s.svc.Resolve(context.Background(), id.AccountID{})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ResolutionSuite) TestRepairActivatesPrimaryOfSameInstantBootstrap() {
	boot := bootstrap.New(s.roles)
	types := []models.RoleType{
		models.RoleTypeIndividual,
		models.RoleTypeServiceProvider,
		models.RoleTypePropertyAdministrator,
	}
	for i := 0; i < 20; i++ {
		account, err := accounts.NewAccount(id.NewAccountID(), "jane.doe@example.com", "", s.base)
		s.Require().NoError(err)
		s.Require().NoError(s.directory.Save(context.Background(), account))

		requests := make([]bootstrap.RoleRequest, 0, len(types))
		for _, rt := range types {
			attrs, err := models.DefaultAttributes(rt, account.Profile())
			s.Require().NoError(err)
			requests = append(requests, bootstrap.RoleRequest{RoleType: rt, Attributes: attrs})
		}
		res, err := boot.Bootstrap(s.at(0), account.ID, requests, bootstrap.Options{})
		s.Require().NoError(err)
		s.Require().True(res.Success)

		_, err = s.store.InMemoryRoleStore.Update(context.Background(),
			models.Filter{AccountID: account.ID}, models.Patch{IsActive: models.Bool(false)})
		s.Require().NoError(err)

		result, err := s.svc.Resolve(s.at(1), account.ID)
		s.Require().NoError(err)
		s.Require().NotNil(result.ActiveRole)
		s.Equal(models.RoleTypeIndividual, result.ActiveRole.RoleType)
	}
}
