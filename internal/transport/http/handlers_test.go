package httptransport

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"rolesync/internal/bootstrap"
	"rolesync/internal/propertysync"
	"rolesync/internal/resolution"
	"rolesync/internal/roles/models"
	"rolesync/internal/roles/service"
	"rolesync/internal/transport/http/mocks"
	id "rolesync/pkg/domain"
	dErrors "rolesync/pkg/domain-errors"
	"rolesync/pkg/platform/notify"
	"rolesync/pkg/testutil"
)

const bearer = "Bearer test-token"

type stubAuthenticator struct {
	accountID id.AccountID
}

func (s stubAuthenticator) AccountID(token string) (id.AccountID, error) {
	if token != "test-token" {
		return id.AccountID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return s.accountID, nil
}

type HandlerSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	roles     *mocks.MockRoleService
	bootstrap *mocks.MockBootstrapper
	resolver  *mocks.MockResolver
	syncer    *mocks.MockPropertySyncer
	alerts    *mocks.MockAlertStore
	tokens    *mocks.MockVerificationSender
	account   id.AccountID
	router    http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.roles = mocks.NewMockRoleService(s.ctrl)
	s.bootstrap = mocks.NewMockBootstrapper(s.ctrl)
	s.resolver = mocks.NewMockResolver(s.ctrl)
	s.syncer = mocks.NewMockPropertySyncer(s.ctrl)
	s.alerts = mocks.NewMockAlertStore(s.ctrl)
	s.tokens = mocks.NewMockVerificationSender(s.ctrl)
	s.account = id.NewAccountID()

	h := NewHandler(s.roles, s.bootstrap, s.resolver, s.syncer,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAlertStore(s.alerts),
		WithVerificationSender(s.tokens),
	)
	s.router = NewRouter(h, stubAuthenticator{accountID: s.account}, nil)
}

func (s *HandlerSuite) do(req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	if req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", bearer)
	}
	rr := testutil.DoRequest(s.router, req)
	return rr, testutil.DecodeEnvelope(s.T(), rr)
}

func (s *HandlerSuite) role(rt models.RoleType, verified, active bool) *models.Role {
	attrs, err := models.DefaultAttributes(rt, models.Profile{DisplayName: "Jane Doe", Email: "jane@example.com"})
	s.Require().NoError(err)
	r, err := models.NewVerifiedRole(id.NewRoleID(), s.account, rt, attrs, time.Now())
	s.Require().NoError(err)
	r.IsVerified = verified
	r.IsActive = active
	return r
}

func (s *HandlerSuite) TestRequiresBearerToken() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/v1/me/roles")
	req.Header.Set("Authorization", "Bearer forged")
	rr, body := s.do(req)

	s.Equal(http.StatusUnauthorized, rr.Code)
	s.Equal(false, body["success"])
	s.Equal("unauthorized", body["errorCode"])
}

func (s *HandlerSuite) TestResolveReturnsRepairedRoles() {
	active := s.role(models.RoleTypeIndividual, true, true)
	s.resolver.EXPECT().Resolve(gomock.Any(), s.account).Return(&resolution.Result{
		Roles:      []*models.Role{active},
		ActiveRole: active,
		Corrections: []resolution.Correction{
			{Action: resolution.ActionActivated, RoleID: active.ID, RoleType: active.RoleType, Applied: true},
		},
	}, nil)

	rr, body := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/v1/me/roles"))

	s.Equal(http.StatusOK, rr.Code)
	s.Equal(true, body["success"])
	s.Len(body["roles"], 1)
	s.Len(body["corrections"], 1)
	s.NotEmpty(rr.Header().Get("X-Request-ID"))
}

func (s *HandlerSuite) TestResolveUnknownAccountIsNotFound() {
	s.resolver.EXPECT().Resolve(gomock.Any(), s.account).
		Return(nil, dErrors.New(dErrors.CodeNotFound, "account not found"))

	req := testutil.NewRequest(s.T(), http.MethodGet, "/v1/me/roles")
	req.Header.Set("Authorization", bearer)
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertErrorEnvelope(s.T(), rr, http.StatusNotFound, "not_found")
}

func (s *HandlerSuite) TestResolveHandlerReadsAccountFromContext() {
	s.resolver.EXPECT().Resolve(gomock.Any(), s.account).Return(&resolution.Result{}, nil)
	h := NewHandler(s.roles, s.bootstrap, s.resolver, s.syncer)

	req := testutil.WithAccountID(testutil.NewRequest(s.T(), http.MethodGet, "/v1/me/roles"), s.account)
	rr := httptest.NewRecorder()
	h.handleResolve(rr, req)

	s.Equal(http.StatusOK, rr.Code)
}

func (s *HandlerSuite) TestMalformedBodyIsBadRequest() {
	s.roles.EXPECT().CreateRole(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	req := httptest.NewRequest(http.MethodPost, "/v1/me/roles", strings.NewReader("{bad-json"))
	req.Header.Set("Authorization", bearer)
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertErrorEnvelope(s.T(), rr, http.StatusBadRequest, "bad_request")
}

func (s *HandlerSuite) TestAddRoleSendsTokenOutOfBand() {
	pending := s.role(models.RoleTypeServiceProvider, false, false)
	s.roles.EXPECT().
		CreateRole(gomock.Any(), s.account, models.RoleTypeServiceProvider,
			models.ServiceProviderAttributes{BusinessName: "Fixit", ServiceCategories: []string{"plumbing"}},
			service.CreateOptions{Verification: service.VerifyByToken}).
		Return(&service.CreateResult{Role: pending, VerificationToken: "secret-token"}, nil)
	s.tokens.EXPECT().SendVerification(gomock.Any(), pending, "secret-token").Return(nil)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/me/roles", AddRoleRequest{
		RoleType: "service_provider",
		Attributes: map[string]any{
			"business_name":      "Fixit",
			"service_categories": []string{"plumbing"},
		},
	})
	rr, body := s.do(req)

	s.Equal(http.StatusAccepted, rr.Code)
	s.Equal(true, body["verification_sent"])
	s.NotContains(rr.Body.String(), "secret-token")
}

func (s *HandlerSuite) TestAddRoleDeliveryFailureKeepsRolePending() {
	pending := s.role(models.RoleTypeCommunityMember, false, false)
	s.roles.EXPECT().CreateRole(gomock.Any(), s.account, models.RoleTypeCommunityMember, gomock.Any(), gomock.Any()).
		Return(&service.CreateResult{Role: pending, VerificationToken: "t"}, nil)
	s.tokens.EXPECT().SendVerification(gomock.Any(), pending, "t").Return(errors.New("sink down"))

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/me/roles", AddRoleRequest{
		RoleType:   "community_member",
		Attributes: map[string]any{"full_name": "Jane Doe"},
	})
	rr, body := s.do(req)

	s.Equal(http.StatusAccepted, rr.Code)
	s.Equal(false, body["verification_sent"])
}

func (s *HandlerSuite) TestAddRoleRejectsUnknownAttributes() {
	s.roles.EXPECT().CreateRole(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/me/roles", AddRoleRequest{
		RoleType:   "individual",
		Attributes: map[string]any{"full_name": "Jane", "shoe_size": 42},
	})
	rr, body := s.do(req)

	s.Equal(http.StatusBadRequest, rr.Code)
	s.Equal("validation_error", body["errorCode"])
}

func (s *HandlerSuite) TestAddRoleDuplicateIsConflict() {
	s.roles.EXPECT().CreateRole(gomock.Any(), s.account, models.RoleTypeIndividual, gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeDuplicateRole, "account already has a verified individual role"))

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/me/roles", AddRoleRequest{
		RoleType:   "individual",
		Attributes: map[string]any{"full_name": "Jane"},
	})
	rr, body := s.do(req)

	s.Equal(http.StatusConflict, rr.Code)
	s.Equal("duplicate_role", body["errorCode"])
}

func (s *HandlerSuite) TestVerifyRoleNeedsNoSession() {
	verified := s.role(models.RoleTypeServiceProvider, true, false)
	s.roles.EXPECT().VerifyRole(gomock.Any(), "abc").Return(verified, nil)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/roles/verify", VerifyRoleRequest{Token: "abc"})
	rr := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusOK, rr.Code)
}

func (s *HandlerSuite) TestVerifyRoleExpiredToken() {
	s.roles.EXPECT().VerifyRole(gomock.Any(), "old").
		Return(nil, dErrors.New(dErrors.CodeTokenExpired, "verification token has expired"))

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/roles/verify", VerifyRoleRequest{Token: "old"})
	rr, body := s.do(req)

	s.Equal(http.StatusGone, rr.Code)
	s.Equal("token_expired", body["errorCode"])
}

func (s *HandlerSuite) TestReissueVerification() {
	s.roles.EXPECT().ReissueVerificationToken(gomock.Any(), s.account, models.RoleTypeServiceProvider).Return("fresh", nil)
	s.tokens.EXPECT().SendVerification(gomock.Any(), gomock.Any(), "fresh").Return(nil)

	rr, body := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/v1/me/roles/service_provider/verification"))

	s.Equal(http.StatusAccepted, rr.Code)
	s.Equal(true, body["verification_sent"])
	s.NotContains(rr.Body.String(), "fresh")
}

func (s *HandlerSuite) TestActivateRole() {
	target := s.role(models.RoleTypeServiceProvider, true, true)
	s.roles.EXPECT().ActivateRole(gomock.Any(), s.account, models.RoleTypeServiceProvider).
		Return(&service.ActivationResult{Role: target, Deactivated: 1, Consistent: true}, nil)

	rr, body := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/v1/me/roles/service_provider/activate"))

	s.Equal(http.StatusOK, rr.Code)
	s.Equal(float64(1), body["deactivated"])
	s.Equal(true, body["consistent"])
}

func (s *HandlerSuite) TestActivateUnknownRoleType() {
	s.roles.EXPECT().ActivateRole(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	rr, body := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/v1/me/roles/landlord/activate"))

	s.Equal(http.StatusBadRequest, rr.Code)
	s.Equal("validation_error", body["errorCode"])
}

func (s *HandlerSuite) TestRemoveLastRoleIsRefused() {
	s.roles.EXPECT().RemoveRole(gomock.Any(), s.account, models.RoleTypeIndividual).
		Return(nil, dErrors.New(dErrors.CodeLastRole, "cannot remove last role"))

	rr, body := s.do(testutil.NewRequest(s.T(), http.MethodDelete, "/v1/me/roles/individual"))

	s.Equal(http.StatusConflict, rr.Code)
	s.Equal(false, body["success"])
	s.Equal("cannot remove last role", body["message"])
	s.Equal("last_role", body["errorCode"])
}

func (s *HandlerSuite) TestRemovePendingRole() {
	pending := s.role(models.RoleTypeServiceProvider, false, false)
	s.roles.EXPECT().RemovePendingRole(gomock.Any(), s.account, models.RoleTypeServiceProvider).Return(pending, nil)

	rr, _ := s.do(testutil.NewRequest(s.T(), http.MethodDelete, "/v1/me/roles/service_provider/pending"))

	s.Equal(http.StatusOK, rr.Code)
}

func (s *HandlerSuite) TestBootstrapFailureRendersCounts() {
	s.bootstrap.EXPECT().
		Bootstrap(gomock.Any(), s.account, gomock.Len(2), bootstrap.Options{}).
		Return(&bootstrap.Result{
			Success:             false,
			TotalRolesRequested: 2,
			ErrorCode:           dErrors.CodeTransient,
			Message:             "role creation failed for service_provider, no roles were created",
		}, dErrors.New(dErrors.CodeTransient, "store unavailable"))

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/accounts/bootstrap", BootstrapRequest{
		Roles: []BootstrapRoleRequest{
			{RoleType: "individual", Attributes: map[string]any{"full_name": "Jane Doe"}},
			{RoleType: "service_provider", Attributes: map[string]any{"business_name": "Fixit", "service_categories": []string{"hvac"}}},
		},
	})
	rr, body := s.do(req)

	s.Equal(http.StatusServiceUnavailable, rr.Code)
	s.Equal(false, body["success"])
	s.Equal(float64(0), body["rolesCreated"])
	s.Equal(float64(2), body["totalRolesRequested"])
	s.Equal("transient_error", body["errorCode"])
}

func (s *HandlerSuite) TestBootstrapCreatesRoles() {
	primary := s.role(models.RoleTypeIndividual, true, true)
	s.bootstrap.EXPECT().
		Bootstrap(gomock.Any(), s.account, []bootstrap.RoleRequest{
			{RoleType: models.RoleTypeIndividual, Attributes: models.IndividualAttributes{FullName: "Jane Doe"}},
		}, bootstrap.Options{AllowDegraded: true}).
		Return(&bootstrap.Result{Success: true, Roles: []*models.Role{primary}, RolesCreated: 1, TotalRolesRequested: 1}, nil)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/accounts/bootstrap", BootstrapRequest{
		Roles:         []BootstrapRoleRequest{{RoleType: "individual", Attributes: map[string]any{"full_name": "Jane Doe"}}},
		AllowDegraded: true,
	})
	rr, body := s.do(req)

	s.Equal(http.StatusCreated, rr.Code)
	s.Equal(float64(1), body["rolesCreated"])
}

func (s *HandlerSuite) TestBootstrapRequiresRoles() {
	s.bootstrap.EXPECT().Bootstrap(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/accounts/bootstrap", BootstrapRequest{})
	rr, _ := s.do(req)

	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *HandlerSuite) TestSyncReportsPartialSuccess() {
	p1, p2 := id.NewPropertyID(), id.NewPropertyID()
	opts := models.SyncOptions{IncludeDocuments: true}
	s.syncer.EXPECT().
		SyncPropertyAccess(gomock.Any(), s.account, models.RoleTypeIndividual, models.RoleTypeCommunityMember,
			[]id.PropertyID{p1, p2}, opts).
		Return(&propertysync.SyncResult{
			OperationID:    "01J0000000000000000000000",
			SyncedCount:    2,
			RequestedCount: 2,
			Errors: []propertysync.PropertyError{
				{PropertyID: p2, Stage: propertysync.StageDocuments, Message: "document lookup failed"},
			},
		}, nil)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/me/sync", SyncRequest{
		SourceRole:  "individual",
		TargetRole:  "community_member",
		PropertyIDs: []string{p1.String(), p2.String()},
		Options:     opts,
	})
	req.Header.Set("Authorization", bearer)
	rr := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusOK, rr.Code)
	got := testutil.UnmarshalResponse[SyncResponse](s.T(), rr)
	s.True(got.Success)
	s.Equal(2, got.SyncedCount)
	s.Require().Len(got.Errors, 1)
	s.Equal(p2, got.Errors[0].PropertyID)
	s.Equal(propertysync.StageDocuments, got.Errors[0].Stage)
}

func (s *HandlerSuite) TestSyncRolesNotVerified() {
	s.syncer.EXPECT().SyncPropertyAccess(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeRolesNotVerified, "both roles must be verified"))

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/me/sync", SyncRequest{
		SourceRole:  "individual",
		TargetRole:  "service_provider",
		PropertyIDs: []string{id.NewPropertyID().String()},
	})
	rr, body := s.do(req)

	s.Equal(http.StatusUnprocessableEntity, rr.Code)
	s.Equal("roles_not_verified", body["errorCode"])
}

func (s *HandlerSuite) TestSyncRejectsMalformedPropertyID() {
	s.syncer.EXPECT().SyncPropertyAccess(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/me/sync", SyncRequest{
		SourceRole:  "individual",
		TargetRole:  "community_member",
		PropertyIDs: []string{"not-a-uuid"},
	})
	rr, body := s.do(req)

	s.Equal(http.StatusBadRequest, rr.Code)
	s.Equal("invalid_input", body["errorCode"])
}

func (s *HandlerSuite) TestUnsyncMissingAssociationSucceeds() {
	pid := id.NewPropertyID()
	s.syncer.EXPECT().UnsyncProperty(gomock.Any(), s.account, models.RoleTypeCommunityMember, pid).Return(false, nil)

	rr, body := s.do(testutil.NewRequest(s.T(), http.MethodDelete, "/v1/me/roles/community_member/properties/"+pid.String()))

	s.Equal(http.StatusOK, rr.Code)
	s.Equal(true, body["success"])
	s.Equal(false, body["removed"])
}

func (s *HandlerSuite) TestSyncHistoryIsNeverNull() {
	s.syncer.EXPECT().SyncHistory(gomock.Any(), s.account, models.RoleTypeIndividual).Return(nil, nil)

	rr, body := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/v1/me/roles/individual/sync-history"))

	s.Equal(http.StatusOK, rr.Code)
	s.Equal([]any{}, body["history"])
}

func (s *HandlerSuite) TestListAssociations() {
	s.syncer.EXPECT().ListAssociations(gomock.Any(), s.account, models.RoleTypeCommunityMember).
		Return([]models.PropertyAssociation{{PropertyID: id.NewPropertyID()}}, nil)

	rr, body := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/v1/me/roles/community_member/properties"))

	s.Equal(http.StatusOK, rr.Code)
	s.Len(body["associations"], 1)
}

func (s *HandlerSuite) TestAcknowledgeOnlyOwnAlerts() {
	own := notify.Event{ID: "alert-1", Type: notify.EventZeroRolesAlert, AccountID: s.account}
	s.alerts.EXPECT().ListOpenAlerts(gomock.Any(), s.account).Return([]notify.Event{own}, nil).Times(2)
	s.alerts.EXPECT().Acknowledge(gomock.Any(), "alert-1").Return(nil)

	rr, _ := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/v1/me/alerts/alert-1/acknowledge"))
	s.Equal(http.StatusOK, rr.Code)

	rr, body := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/v1/me/alerts/alert-2/acknowledge"))
	s.Equal(http.StatusNotFound, rr.Code)
	s.Equal("not_found", body["errorCode"])
}

func (s *HandlerSuite) TestListAlerts() {
	s.alerts.EXPECT().ListOpenAlerts(gomock.Any(), s.account).Return(nil, nil)

	rr, body := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/v1/me/alerts"))

	s.Equal(http.StatusOK, rr.Code)
	s.Equal([]any{}, body["alerts"])
}
