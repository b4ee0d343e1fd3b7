package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/adminsuite/backoffice/pkg/api"
	"github.com/adminsuite/backoffice/pkg/audit"
	"github.com/adminsuite/backoffice/pkg/config"
	"github.com/adminsuite/backoffice/pkg/database"
	"github.com/adminsuite/backoffice/pkg/version"
)

func main() {
	var configPath string
	var debug bool

	root := &cobra.Command{
		Use:     "backoffice",
		Short:   "Admin back-office API with an asynchronous audit trail",
		Version: version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, debug)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to the config file (default ./config.yaml)")
	root.Flags().BoolVar(&debug, "debug", false, "enable debug level logging")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath string, debug bool) error {
	zl := setupLogger(debug)
	defer func() { _ = zl.Sync() }()
	log := zl.Sugar()

	log.With("version", version.Version).Info("Starting back-office api")

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	if debug {
		cfg.Server.Debug = true
	}

	db, err := database.Init(cfg.Database)
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Error migrating database: %v", err)
	}

	var mirror audit.BatchMirror
	if cfg.Audit.Kafka.Enabled {
		kafkaMirror, err := audit.NewKafkaMirror(audit.KafkaMirrorConfig{
			Brokers: cfg.Audit.Kafka.Brokers,
			Topic:   cfg.Audit.Kafka.Topic,
		}, zl)
		if err != nil {
			log.Fatalf("Error creating Kafka audit mirror: %v", err)
		}
		mirror = kafkaMirror
	}

	auditService := audit.NewService(audit.NewGormStore(db), mirror, audit.Config{
		Enabled:          cfg.Audit.Enabled,
		BatchSize:        cfg.Audit.BatchSize,
		FlushInterval:    cfg.Audit.FlushInterval(),
		MaxQueueSize:     cfg.Audit.MaxQueueSize,
		Retention:        cfg.Audit.Retention(),
		CleanupInterval:  cfg.Audit.CleanupInterval(),
		CleanupBatchSize: cfg.Audit.CleanupBatchSize,
		ShutdownGrace:    cfg.Audit.ShutdownGrace(),
		ExcludedEntities: cfg.Audit.ExcludedEntities,
		ExcludedFields:   cfg.Audit.ExcludedFields,
	}, zl)
	auditService.Start()

	auth := api.NewAuth(log, cfg)
	server := api.NewServer(zl, cfg)

	err = server.RegisterAll([]api.APIController{
		api.NewProductController(log, db, auditService, auth.Middleware()),
		api.NewUserController(log, db, auditService, auth.Middleware()),
		api.NewAuditController(log, auditService, auth.Middleware()),
	})
	if err != nil {
		log.Fatalf("Error registering controllers: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Listen()
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			log.Errorf("Server failed: %v", err)
		}
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	// Stop the HTTP surface first so no new changes arrive, then drain the
	// audit pipeline within its grace period.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Error shutting down server: %v", err)
	}

	graceCtx, cancelGrace := context.WithTimeout(context.Background(), cfg.Audit.ShutdownGrace()+5*time.Second)
	defer cancelGrace()

	if err := auditService.Shutdown(graceCtx); err != nil {
		log.Errorf("Error shutting down audit pipeline: %v", err)
	}

	log.Info("Shutdown complete")
	return nil
}

func setupLogger(debug bool) *zap.Logger {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
