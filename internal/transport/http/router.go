// Package httptransport is the thin HTTP adapter over the role engine. It
// decodes requests, delegates to the services and renders their results.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"rolesync/internal/bootstrap"
	"rolesync/internal/propertysync"
	"rolesync/internal/resolution"
	"rolesync/internal/roles/models"
	"rolesync/internal/roles/service"
	id "rolesync/pkg/domain"
	"rolesync/pkg/platform/middleware/auth"
	"rolesync/pkg/platform/middleware/request"
	"rolesync/pkg/platform/middleware/requesttime"
	"rolesync/pkg/platform/notify"
)

//go:generate mockgen -source=router.go -destination=mocks/mocks.go -package=mocks RoleService,Bootstrapper,Resolver,PropertySyncer,AlertStore,VerificationSender

type RoleService interface {
	CreateRole(ctx context.Context, accountID id.AccountID, roleType models.RoleType, attrs models.Attributes, opts service.CreateOptions) (*service.CreateResult, error)
	VerifyRole(ctx context.Context, token string) (*models.Role, error)
	ReissueVerificationToken(ctx context.Context, accountID id.AccountID, roleType models.RoleType) (string, error)
	ActivateRole(ctx context.Context, accountID id.AccountID, roleType models.RoleType) (*service.ActivationResult, error)
	RemoveRole(ctx context.Context, accountID id.AccountID, roleType models.RoleType) (*service.RemovalResult, error)
	RemovePendingRole(ctx context.Context, accountID id.AccountID, roleType models.RoleType) (*models.Role, error)
}

type Bootstrapper interface {
	Bootstrap(ctx context.Context, accountID id.AccountID, requests []bootstrap.RoleRequest, opts bootstrap.Options) (*bootstrap.Result, error)
}

type Resolver interface {
	Resolve(ctx context.Context, accountID id.AccountID) (*resolution.Result, error)
}

type PropertySyncer interface {
	SyncPropertyAccess(ctx context.Context, accountID id.AccountID, sourceType, targetType models.RoleType, propertyIDs []id.PropertyID, opts models.SyncOptions) (*propertysync.SyncResult, error)
	UnsyncProperty(ctx context.Context, accountID id.AccountID, roleType models.RoleType, propertyID id.PropertyID) (bool, error)
	ListAssociations(ctx context.Context, accountID id.AccountID, roleType models.RoleType) ([]models.PropertyAssociation, error)
	SyncHistory(ctx context.Context, accountID id.AccountID, roleType models.RoleType) ([]models.SyncOperation, error)
}

// AlertStore exposes durable alerts to their account.
type AlertStore interface {
	ListOpenAlerts(ctx context.Context, accountID id.AccountID) ([]notify.Event, error)
	Acknowledge(ctx context.Context, eventID string) error
}

// VerificationSender delivers a plaintext verification token to the user.
// Tokens never appear in HTTP responses.
type VerificationSender interface {
	SendVerification(ctx context.Context, role *models.Role, token string) error
}

type Handler struct {
	roles     RoleService
	bootstrap Bootstrapper
	resolver  Resolver
	sync      PropertySyncer
	alerts    AlertStore
	tokens    VerificationSender
	logger    *slog.Logger
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

func WithAlertStore(a AlertStore) Option {
	return func(h *Handler) {
		h.alerts = a
	}
}

func WithVerificationSender(v VerificationSender) Option {
	return func(h *Handler) {
		h.tokens = v
	}
}

func NewHandler(roles RoleService, bootstrapper Bootstrapper, resolver Resolver, syncer PropertySyncer, opts ...Option) *Handler {
	h := &Handler{
		roles:     roles,
		bootstrap: bootstrapper,
		resolver:  resolver,
		sync:      syncer,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewRouter wires every public endpoint. Routes under /v1/me act on the
// account named by the bearer token. A nil metricsHandler leaves /metrics
// unmounted.
func NewRouter(h *Handler, authenticator auth.AccountAuthenticator, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recover(h.logger))
	r.Use(requesttime.Middleware)
	r.Use(middleware.Compress(5, "application/json"))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		// Verification links are followed from email without a session.
		r.Post("/roles/verify", h.handleVerifyRole)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(authenticator, h.logger))

			r.Post("/accounts/bootstrap", h.handleBootstrap)

			r.Get("/me/roles", h.handleResolve)
			r.Post("/me/roles", h.handleAddRole)
			r.Post("/me/roles/{roleType}/verification", h.handleReissueVerification)
			r.Post("/me/roles/{roleType}/activate", h.handleActivateRole)
			r.Delete("/me/roles/{roleType}", h.handleRemoveRole)
			r.Delete("/me/roles/{roleType}/pending", h.handleRemovePendingRole)

			r.Post("/me/sync", h.handleSync)
			r.Get("/me/roles/{roleType}/properties", h.handleListAssociations)
			r.Delete("/me/roles/{roleType}/properties/{propertyID}", h.handleUnsync)
			r.Get("/me/roles/{roleType}/sync-history", h.handleSyncHistory)

			r.Get("/me/alerts", h.handleListAlerts)
			r.Post("/me/alerts/{alertID}/acknowledge", h.handleAcknowledgeAlert)
		})
	})
	return r
}

func roleTypeParam(r *http.Request) (models.RoleType, error) {
	return models.ParseRoleType(chi.URLParam(r, "roleType"))
}
