package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/audit"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/config"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/intent"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/llm"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/logging"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/platform"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/retry"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/security"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/services"
)

// app holds the wired pipeline shared by the serve and ask commands.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	ds        datasource.Datasource
	registry  *prometheus.Registry
	assistant services.AssistantService
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadFile(configPath, Version)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	ds, err := openDatasource(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	llmClient, err := llm.NewFromConfig(&cfg.LLM, logger)
	if err != nil {
		if !errors.Is(err, apperrors.ErrConfigurationMissing) {
			closeDatasource(ds, logger)
			return nil, err
		}
		logger.Warn("Completion service not configured; questions will return a configuration message",
			zap.Error(err))
		llmClient = nil
	}

	secret := cfg.Security.ConfirmationSecret
	if secret == "" {
		secret, err = randomSecret()
		if err != nil {
			closeDatasource(ds, logger)
			return nil, err
		}
		logger.Warn("CONFIRMATION_SECRET not set; pending changes will not survive a restart")
	}
	confirmer, err := services.NewConfirmer(secret, time.Duration(cfg.Security.ConfirmationTTLMinutes)*time.Minute)
	if err != nil {
		closeDatasource(ds, logger)
		return nil, err
	}

	strategy, err := security.NewPatternStrategy(&cfg.Security)
	if err != nil {
		closeDatasource(ds, logger)
		return nil, fmt.Errorf("invalid security configuration: %w", err)
	}

	classifier, err := intent.NewDefaultClassifier(logger)
	if err != nil {
		closeDatasource(ds, logger)
		return nil, fmt.Errorf("failed to load intent vocabulary: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := services.NewMetrics(registry)

	auditor := audit.NewSecurityAuditor(logger)
	executor := services.NewQueryExecutor(
		time.Duration(cfg.Datasource.QueryTimeoutSeconds)*time.Second,
		cfg.Datasource.MaxRows,
		metrics,
		logger,
	)
	platformClient := platform.NewClient(&cfg.Platform, logger)
	if !platformClient.Configured() {
		logger.Info("Resource API not configured; change requests will be declined")
	}

	assistant := services.NewAssistantService(services.AssistantDeps{
		Scopes:            services.NewScopeProvider(&cfg.Tenant, ds, llmClient),
		Classifier:        classifier,
		Filter:            security.NewFilter(strategy, auditor, logger),
		Schema:            services.NewTenantSchemaService(logger),
		Selector:          services.NewTableSelector(cfg.Assistant.MaxTables, logger),
		Generator:         services.NewSQLGenerator(cfg.Assistant.MaxPromptTokens, metrics, logger),
		Executor:          executor,
		Researcher:        services.NewFallbackResearcher(executor, metrics, logger),
		Composer:          services.NewResponseComposer(executor, cfg.Assistant.Narrative, cfg.Assistant.ShowSQL, metrics, logger),
		Planner:           services.NewOperationPlanner(platformClient, executor, confirmer, auditor, metrics, logger),
		Auditor:           auditor,
		Metrics:           metrics,
		MaxQuestionLength: cfg.Assistant.MaxQuestionLength,
	}, logger)

	return &app{
		cfg:       cfg,
		logger:    logger,
		ds:        ds,
		registry:  registry,
		assistant: assistant,
	}, nil
}

// openDatasource connects to the site database, retrying while it starts.
// It returns nil without error when no database is configured.
func openDatasource(ctx context.Context, cfg *config.Config, logger *zap.Logger) (datasource.Datasource, error) {
	if !cfg.Datasource.IsConfigured() {
		logger.Warn("Site database not configured; questions will return a configuration message")
		return nil, nil
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.OnRetry = func(attempt int, err error, wait time.Duration) {
		logger.Warn("Site database not reachable, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.String("error", logging.SanitizeError(err)))
	}

	var ds datasource.Datasource
	err := retry.DoIfRetryable(ctx, retryCfg, func() error {
		opened, err := datasource.Open(ctx, &cfg.Datasource, logger)
		if err != nil {
			return err
		}
		if err := opened.Ping(ctx); err != nil {
			closeDatasource(opened, logger)
			return err
		}
		ds = opened
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to site database: %w", err)
	}

	logger.Info("Connected to site database",
		zap.String("type", cfg.Datasource.Type),
		zap.String("host", cfg.Datasource.Host),
		zap.String("database", cfg.Datasource.Database))
	return ds, nil
}

func closeDatasource(ds datasource.Datasource, logger *zap.Logger) {
	if ds == nil {
		return
	}
	if err := ds.Close(); err != nil {
		logger.Warn("Failed to close site database", zap.Error(err))
	}
}

func (a *app) Close() {
	closeDatasource(a.ds, a.logger)
	_ = a.logger.Sync()
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate confirmation secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
