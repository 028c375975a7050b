package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/auth"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/handlers"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/mcp"
	mcpauth "github.com/ekaya-inc/ekaya-sitequery/pkg/mcp/auth"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/mcp/tools"
	"github.com/ekaya-inc/ekaya-sitequery/pkg/middleware"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and MCP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	logger.Info("Starting ekaya-sitequery",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("tenant_prefix", cfg.Tenant.BasePrefix))

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	validator, err := auth.NewHMACValidator(auth.HMACConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		Secret:             cfg.Auth.JWTSecret,
		Issuer:             cfg.Auth.Issuer,
	})
	if err != nil {
		return err
	}
	authService := auth.NewAuthService(validator, logger)

	var dbPinger handlers.Pinger
	var toolPinger tools.Pinger
	if a.ds != nil {
		dbPinger = a.ds
		toolPinger = a.ds
	}

	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, dbPinger, logger).RegisterRoutes(mux)
	handlers.NewAssistantHandler(a.assistant, logger).
		RegisterRoutes(mux, auth.NewMiddleware(authService, cfg.Auth.EnableVerification, logger))
	mux.Handle("GET /metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))

	auditLogger := mcp.NewAuditLogger(logger)
	mcpServer := mcp.NewServer("ekaya-sitequery", cfg.Version, logger, auditLogger.Hooks())
	tools.RegisterHealthTool(mcpServer.MCP(), cfg.Version, toolPinger)
	tools.RegisterAskTool(mcpServer.MCP(), a.assistant)
	handlers.NewMCPHandler(mcpServer, logger).
		RegisterRoutes(mux, mcpauth.NewMiddleware(authService, cfg.Auth.EnableVerification, logger))

	handler := middleware.RequestID()(middleware.RequestLogger(logger)(mux))

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server failed", zap.Error(err))
			return err
		}
		return nil
	case sig := <-stop:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
		return err
	}
	logger.Info("Server stopped")
	return nil
}
