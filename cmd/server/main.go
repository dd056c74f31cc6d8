package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Clark-Hu/workshop-market/internal/config"
	httpserver "github.com/Clark-Hu/workshop-market/internal/http"
	"github.com/Clark-Hu/workshop-market/internal/logging"
	"github.com/Clark-Hu/workshop-market/internal/notify"
	"github.com/Clark-Hu/workshop-market/internal/rating"
	"github.com/Clark-Hu/workshop-market/internal/reminder"
	"github.com/Clark-Hu/workshop-market/internal/repository"
	"github.com/Clark-Hu/workshop-market/internal/reviews"
	"github.com/Clark-Hu/workshop-market/internal/store"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "workshop-market",
		Short:         "Workshop marketplace API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a YAML config file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the maintenance reminder loop",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), configFile, serve)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "remind",
		Short: "Run one maintenance reminder sweep and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), configFile, remindOnce)
		},
	})
	return root
}

// app holds the connected dependencies shared by every subcommand.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	pg     *store.Postgres
	mongo  *store.Mongo
	repo   *repository.Repository
}

func withApp(parent context.Context, configFile string, run func(context.Context, *app) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pg, err := store.NewPostgres(dbCtx, cfg.DBURL, store.PostgresOptions{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
	}, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	mg, err := store.NewMongo(dbCtx, store.MongoConfig{
		URL:            cfg.MongoURL,
		Database:       cfg.MongoDatabase,
		ConnectTimeout: time.Duration(cfg.MongoTimeoutSecs) * time.Second,
	}, logger)
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := mg.Close(closeCtx); err != nil {
			logger.Warn("close mongo", zap.Error(err))
		}
	}()

	return run(ctx, &app{
		cfg:    cfg,
		logger: logger,
		pg:     pg,
		mongo:  mg,
		repo:   repository.New(mg.Database(), pg.Pool()),
	})
}

func (a *app) sweeper() (*reminder.Sweeper, error) {
	client, err := notify.NewHTTPClient(a.cfg.PushGatewayURL, a.cfg.PushGatewayAPIKey,
		time.Duration(a.cfg.PushTimeoutSecs)*time.Second, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init push gateway client: %w", err)
	}
	return reminder.NewSweeper(a.repo.Vehicles, client, a.cfg.ReminderLeadDays, a.logger), nil
}

func serve(ctx context.Context, a *app) error {
	recalculator := rating.NewRecalculator(a.repo.Reviews, a.repo.Catalog, a.logger)
	reviewService := reviews.NewService(a.repo.Reviews, a.repo.Catalog, recalculator)

	if a.cfg.ReminderEnabled {
		sweeper, err := a.sweeper()
		if err != nil {
			return err
		}
		sweeper.Start(ctx, a.cfg.ReminderInterval)
		a.logger.Info("maintenance reminders enabled",
			zap.Duration("interval", a.cfg.ReminderInterval),
			zap.Int("lead_days", a.cfg.ReminderLeadDays),
		)
	}

	server := httpserver.New(a.cfg, httpserver.Deps{
		Products:       a.repo.Products,
		Shops:          a.repo.Shops,
		ServiceRecords: a.repo.ServiceRecords,
		Tutorials:      a.repo.Tutorials,
		Vehicles:       a.repo.Vehicles,
		Reviews:        reviewService,
		Health:         []httpserver.HealthChecker{a.pg, a.mongo},
	}, a.logger)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.Start(ctx)
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
			a.logger.Error("server error", zap.Error(err))
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.logger.Warn("graceful shutdown error", zap.Error(err))
	}
	return nil
}

func remindOnce(ctx context.Context, a *app) error {
	if a.cfg.PushGatewayURL == "" {
		return errors.New("PUSH_GATEWAY_URL is required")
	}
	sweeper, err := a.sweeper()
	if err != nil {
		return err
	}
	res, err := sweeper.Run(ctx)
	if err != nil {
		return fmt.Errorf("maintenance sweep: %w", err)
	}
	a.logger.Info("maintenance sweep finished",
		zap.Int("scanned", res.Scanned),
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed),
	)
	return nil
}
