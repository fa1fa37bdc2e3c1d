package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Innocase-ai/Mercedes-E-200D/internal/apperr"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/catalog"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/config"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/handlers"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/telemetry"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

func buildServeCommand() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the optional MQTT odometer feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Server.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "HTTP port (overrides PORT)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	a, err := newApp(startCtx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.prepare(startCtx); err != nil {
		return err
	}
	if !cfg.HasCustomJWTSecret() {
		log.Warn("JWT_SECRET is not set, tokens are signed with the development key")
	}

	if cfg.MQTTEnabled() {
		feed := telemetry.NewFeed(telemetry.OptionsFromConfig(cfg.MQTT), a.garage, a.metrics)
		if err := feed.Start(ctx); err != nil {
			log.WithError(err).Error("Odometer feed unavailable, continuing with HTTP only")
		} else {
			defer feed.Stop()
		}
	}

	router := handlers.NewRouter(handlers.RouterDeps{
		Garage:     a.garage,
		Auth:       a.auth,
		Users:      a.store.Users,
		Metrics:    a.metrics,
		TrustProxy: cfg.Server.TrustProxy,
		Ping: func(ctx context.Context) error {
			return a.client.Ping(ctx, readpref.Primary())
		},
	})
	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{
			"port":        cfg.Server.Port,
			"environment": cfg.Server.Environment,
			"vehicle_id":  cfg.Vehicle.ID,
			"ai":          cfg.AIEnabled(),
			"mqtt":        cfg.MQTTEnabled(),
		}).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// prepare creates indexes, seeds an empty catalog when enabled and bootstraps the owner.
func (a *app) prepare(ctx context.Context) error {
	if err := a.store.EnsureIndexes(ctx); err != nil {
		return err
	}

	if a.cfg.Vehicle.SeedCatalog {
		if _, err := seedCatalog(ctx, a); err != nil {
			return err
		}
	}

	_, err := a.auth.EnsureOwner(ctx, a.store.Users, a.cfg.Auth.OwnerUsername, a.cfg.Auth.OwnerPassword, a.cfg.Vehicle.OwnerName)
	if apperr.CodeOf(err) == apperr.CodeConfigMissing {
		log.WithError(err).Warn("No user exists yet and no owner password is configured; nobody can log in")
		return nil
	}
	return err
}

func seedCatalog(ctx context.Context, a *app) (int, error) {
	tasks := catalog.Default()
	if path := a.cfg.Vehicle.CatalogFile; path != "" {
		loaded, err := catalog.Load(path)
		if err != nil {
			return 0, err
		}
		tasks = loaded
	}
	return catalog.Seed(ctx, a.store.Tasks, tasks)
}
