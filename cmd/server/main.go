package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"rolesync/internal/app"
	jwttoken "rolesync/internal/jwt_token"
	"rolesync/internal/platform/config"
	"rolesync/internal/platform/httpserver"
	"rolesync/internal/platform/logger"
	"rolesync/internal/platform/metrics"
	httptransport "rolesync/internal/transport/http"
)

const (
	tokenIssuer   = "rolesync"
	tokenAudience = "rolesync-api"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "rolesync: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(os.Stdout, "rolesync", cfg.Log)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	services, err := app.New(ctx, cfg, log, reg)
	if err != nil {
		return err
	}
	defer services.Close()

	handler := httptransport.NewHandler(services.Roles, services.Bootstrapper, services.Resolver, services.Syncer,
		httptransport.WithLogger(log),
		httptransport.WithAlertStore(services.Alerts),
		httptransport.WithVerificationSender(httptransport.NewNotifyVerificationSender(services.Publisher)),
	)
	jwt := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, tokenIssuer, tokenAudience)
	router := httptransport.NewRouter(handler, jwt, metrics.Handler(reg))

	return httpserver.Run(ctx, httpserver.New(cfg.Server.Addr, router), log)
}
