package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/opencorp/regflow/internal/api"
	"github.com/opencorp/regflow/internal/application/service"
	"github.com/opencorp/regflow/internal/application/workflow"
	"github.com/opencorp/regflow/internal/config"
	"github.com/opencorp/regflow/internal/domain/entity"
	"github.com/opencorp/regflow/internal/infrastructure/persistence/repository"
	"github.com/opencorp/regflow/internal/infrastructure/persistence/sqlite"
	"github.com/opencorp/regflow/pkg/database"
	"github.com/opencorp/regflow/pkg/utils"
)

func main() {
	// Local overrides from .env, if present
	_ = gotenv.Load()

	configPath := os.Getenv("REGFLOW_CONFIG")
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting company registry workflow service",
		zap.Int("port", cfg.Server.Port),
		zap.String("database", cfg.Database.Path))

	sqlDB, err := database.Open(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer sqlDB.Close()

	migrator := database.NewMigrator(sqlDB, logger)
	if err := migrator.Run(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	txManager := sqlite.NewDB(sqlDB, logger)

	// Repositories
	definitionRepo := repository.NewDefinitionRepository(sqlDB, logger)
	instanceRepo := repository.NewInstanceRepository(sqlDB, logger)
	consentRepo := repository.NewConsentRepository(sqlDB, logger)
	auditRepo := repository.NewAuditRepository(sqlDB, logger)
	companyRepo := repository.NewCompanyRepository(sqlDB, logger)
	applicationRepo := repository.NewApplicationRepository(sqlDB, logger)

	// Services
	registry := service.NewDefinitionRegistry(definitionRepo, instanceRepo, cfg.Engine.DefinitionCacheTTL, logger)
	consentGate := service.NewConsentGate(registry, instanceRepo, consentRepo, logger)
	instanceStore := service.NewInstanceStore(registry, instanceRepo, consentGate, txManager, logger)
	auditTrail := service.NewAuditTrail(auditRepo, logger)
	auditExporter := service.NewAuditExporter(auditTrail, logger)

	effects := service.NewEffectRegistry(logger)
	effects.Register(entity.TargetTypeCompany,
		service.NewCompanyEffectHandler(companyRepo, applicationRepo, logger))

	engine := workflow.NewEngine(registry, instanceRepo, consentGate, effects, auditTrail, txManager, logger)

	if err := workflow.RegisterBuiltins(context.Background(), registry); err != nil {
		logger.Fatal("Failed to register built-in workflow definitions", zap.Error(err))
	}

	handlers := api.NewHandlers(registry, instanceStore, engine, consentGate, auditTrail, auditExporter, logger)
	server := api.NewServer(cfg.Server, handlers, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}
	logger.Info("Server exited")
}
