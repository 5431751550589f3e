// Package api is the HTTP surface: the token issuing/rotation routes gated
// by admin two-factor auth, and the order filtering/update routes gated by
// the current upstream access token.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ordermesh/tokengate/internal/commerce"
	"github.com/ordermesh/tokengate/internal/errors"
	"github.com/ordermesh/tokengate/internal/logging"
	"github.com/ordermesh/tokengate/internal/orders"
	"github.com/ordermesh/tokengate/internal/rotation"
	"github.com/ordermesh/tokengate/internal/telemetry"
)

// Commerce is the slice of the upstream client the order routes consume.
type Commerce interface {
	GetAllOrders(ctx context.Context, accountID, params string) ([]commerce.Order, error)
	GetProducts(ctx context.Context, accountID, productName string) ([]commerce.Product, error)
}

// JobRunner is the slice of the order processor the routes consume.
type JobRunner interface {
	CreateJob(mutations []orders.OrderMutation) string
	GetJob(id string) (orders.Job, bool)
}

// Rotator triggers an access token rotation for one provider.
type Rotator interface {
	Rotate(ctx context.Context, cfg *rotation.ProviderConfig) error
}

// Server wires the HTTP routes to the rotation engine and the order
// processor.
type Server struct {
	providers map[string]*rotation.ProviderConfig
	names     []string

	store      *rotation.Store
	engine     Rotator
	userTokens *rotation.UserTokens

	commerce  Commerce
	jobs      JobRunner
	commerceP string

	adminUser       string
	adminPassword   string
	twoFactorSecret string
	accessTokenTTL  time.Duration

	logger *logging.Logger
}

// Options carries everything the server needs; all fields are required
// except AccessTokenTTL, which defaults to five minutes.
type Options struct {
	Providers        []*rotation.ProviderConfig
	Store            *rotation.Store
	Engine           Rotator
	UserTokens       *rotation.UserTokens
	Commerce         Commerce
	Jobs             JobRunner
	CommerceProvider string
	AdminUser        string
	AdminPassword    string
	TwoFactorSecret  string
	AccessTokenTTL   time.Duration
	Logger           *logging.Logger
}

// NewServer builds the server. Provider lookup is case-insensitive; the
// route parameter is lowercased before the map is consulted.
func NewServer(opts Options) *Server {
	providers := make(map[string]*rotation.ProviderConfig, len(opts.Providers))
	names := make([]string, 0, len(opts.Providers))
	for _, p := range opts.Providers {
		providers[strings.ToLower(p.Name)] = p
		names = append(names, strings.ToLower(p.Name))
	}
	ttl := opts.AccessTokenTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	commerceP := strings.ToLower(opts.CommerceProvider)
	if commerceP == "" && len(names) > 0 {
		commerceP = names[0]
	}
	return &Server{
		providers:       providers,
		names:           names,
		store:           opts.Store,
		engine:          opts.Engine,
		userTokens:      opts.UserTokens,
		commerce:        opts.Commerce,
		jobs:            opts.Jobs,
		commerceP:       commerceP,
		adminUser:       opts.AdminUser,
		adminPassword:   opts.AdminPassword,
		twoFactorSecret: opts.TwoFactorSecret,
		accessTokenTTL:  ttl,
		logger:          opts.Logger,
	}
}

// Router assembles the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Route("/api", func(r chi.Router) {
		r.With(s.adminAuth).Post("/token/{provider}/initial", s.handleInitialToken)
		r.With(s.userTokenAuth).Get("/token/{provider}", s.handleTokenRotation)

		r.Group(func(r chi.Router) {
			r.Use(s.accessTokenAuth)
			r.Post("/getFilteredOrders", s.handleGetFilteredOrders)
			r.Post("/updateFilteredOrders", s.handleUpdateFilteredOrders)
			r.Get("/jobs/{jobID}", s.handleJobStatus)
		})
	})
	return r
}

// provider resolves the route parameter, writing the 400 with the valid
// provider list itself when the name is unknown.
func (s *Server) provider(w http.ResponseWriter, r *http.Request) (*rotation.ProviderConfig, bool) {
	name := strings.ToLower(chi.URLParam(r, "provider"))
	cfg, ok := s.providers[name]
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:          "invalid provider name",
			Code:           errors.CodeInvalidTokenName,
			Timestamp:      time.Now().UTC().Format(time.RFC3339),
			ValidProviders: s.names,
		})
		return nil, false
	}
	return cfg, true
}
