// Package cli builds the carbook command line: serve, status and seed.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/Innocase-ai/Mercedes-E-200D/internal/ai"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/auth"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/config"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/db"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/garage"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/logging"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

// BuildCLI returns the root command.
func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "carbook",
		Short: "Maintenance book for a Mercedes E 200 d",
		Long: `carbook tracks the mileage of one car, projects when each maintenance task
falls due, stores invoices and asks an AI advisor for a diagnosis.

Settings come from the environment, or from a .env file in the working directory.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(buildServeCommand())
	rootCmd.AddCommand(buildStatusCommand())
	rootCmd.AddCommand(buildSeedCommand())
	return rootCmd
}

// app holds the components shared by every command.
type app struct {
	cfg      *config.Config
	client   *mongo.Client
	store    *db.Store
	registry *prometheus.Registry
	metrics  *metrics.Collector
	auth     *auth.Service
	advisor  *ai.Client
	garage   *garage.Service
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logging.Setup(cfg.Server.Environment, cfg.Server.LogLevel)
	return cfg, nil
}

// newApp connects to MongoDB and assembles the garage. The AI advisor is only created when
// an API key is configured.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	client, err := db.ConnectMongo(ctx, cfg.Mongo.URI)
	if err != nil {
		return nil, err
	}
	store := db.NewStore(client.Database(cfg.Mongo.Database))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	a := &app{
		cfg:      cfg,
		client:   client,
		store:    store,
		registry: registry,
		metrics:  collector,
		auth:     auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry).WithRefreshExpiry(cfg.Auth.RefreshExpiry),
	}

	deps := garage.Deps{
		Vehicles: store.Vehicles,
		Tasks:    store.Tasks,
		History:  store.History,
		Invoices: store.Invoices,
		Metrics:  collector,
	}
	if cfg.AIEnabled() {
		advisor, err := ai.NewGeminiClient(ctx, cfg.AI.APIKey, ai.Config{
			TextModel:       cfg.AI.TextModel,
			SpeechModel:     cfg.AI.SpeechModel,
			Voice:           cfg.AI.Voice,
			Language:        cfg.Vehicle.Language,
			Timeout:         cfg.AI.Timeout,
			BreakerFailures: cfg.AI.BreakerFailures,
			BreakerTimeout:  cfg.AI.BreakerTimeout,
		}, collector)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("create AI advisor: %w", err)
		}
		a.advisor = advisor
		deps.Advisor = advisor
	} else {
		log.Warn("No AI API key configured, diagnosis falls back to a stock message and invoice scanning is disabled")
	}

	a.garage = garage.NewService(deps, garage.Options{
		VehicleID: cfg.Vehicle.ID,
		Language:  cfg.Vehicle.Language,
		OwnerName: cfg.Vehicle.OwnerName,
	})
	return a, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.client.Disconnect(ctx); err != nil {
		log.WithError(err).Warn("Failed to disconnect from MongoDB")
	}
}
