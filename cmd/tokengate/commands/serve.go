package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/ordermesh/tokengate/internal/api"
	"github.com/ordermesh/tokengate/internal/commerce"
	"github.com/ordermesh/tokengate/internal/orders"
	"github.com/ordermesh/tokengate/internal/rotation"
	"github.com/ordermesh/tokengate/internal/secure"
)

// NewServeCommand creates the serve command, the long-running server mode.
func NewServeCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the adapter server",
		Long: `Starts the HTTP server, the background token rotation scheduler, and
the per-provider client secret rotation loops. Shuts down gracefully on
SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rt)
		},
	}
}

func runServe(rt *Runtime) error {
	logger := rt.Logger
	cfg, providers, err := rt.loadConfig()
	if err != nil {
		return err
	}

	store := rotation.NewStore()
	providerConfigs := make([]*rotation.ProviderConfig, 0, len(providers))
	for _, p := range providers {
		store.Init(p.Config.Name, p.InitialRefreshToken, p.UserTokenValidity)
		providerConfigs = append(providerConfigs, p.Config)
	}
	defer secure.Purge()

	engine := rotation.NewEngine(store, logger)
	secretEngine := rotation.NewSecretEngine(store, engine, logger)
	scheduler := rotation.NewScheduler(store, engine, secretEngine, providerConfigs, logger)
	scheduler.SetTick(cfg.SchedulerTick)
	scheduler.SetDefaultInterval(cfg.RotationInterval)

	commerceProvider := cfg.CommerceProvider
	if commerceProvider == "" && len(providerConfigs) > 0 {
		commerceProvider = providerConfigs[0].Name
	}
	client := commerce.NewClient(
		cfg.CommerceBaseURL,
		commerceProvider,
		store,
		rate.Limit(cfg.RateLimit),
		cfg.RateBurst,
		logger,
	)
	processor := orders.NewProcessor(orders.NewJobStore(), client, cfg.Concurrency, logger)

	server := api.NewServer(api.Options{
		Providers:        providerConfigs,
		Store:            store,
		Engine:           engine,
		UserTokens:       rotation.NewUserTokens(store),
		Commerce:         client,
		Jobs:             processor,
		CommerceProvider: commerceProvider,
		AdminUser:        cfg.AdminUser,
		AdminPassword:    cfg.AdminPassword,
		TwoFactorSecret:  cfg.TwoFactorSecret,
		AccessTokenTTL:   cfg.AccessTokenTTL,
		Logger:           logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)
	defer scheduler.Stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()
	logger.Info("tokengate listening on %s (%d providers)", cfg.HTTPAddr, len(providerConfigs))

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
