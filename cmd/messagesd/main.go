package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/celerix-dev/celerix-messages/internal/api"
	"github.com/celerix-dev/celerix-messages/internal/config"
	"github.com/celerix-dev/celerix-messages/internal/messages"
	"github.com/celerix-dev/celerix-messages/internal/observability"
	"github.com/celerix-dev/celerix-messages/internal/platform/logger"
	"github.com/celerix-dev/celerix-messages/internal/server"
	"github.com/celerix-dev/celerix-messages/internal/storage"
	"github.com/celerix-dev/celerix-messages/internal/vault"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfg.LogMode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:     cfg.OTelEnabled,
		ServiceName: cfg.OTelServiceName,
		Exporter:    cfg.OTelExporter,
	})
	if err != nil {
		log.Fatal("failed to init tracing", "error", err)
	}

	st, err := storage.Open(ctx, cfg.Store, log)
	if err != nil {
		log.Fatal("failed to open store", "backend", cfg.Store.Backend, "error", err)
	}

	svc := messages.NewService(st, log, messages.WithRepairBatchSize(cfg.RepairBatchSize))
	var serviceName string
	if cfg.OTelEnabled {
		serviceName = cfg.OTelServiceName
	}
	router := server.NewRouter(server.RouterConfig{
		Handler:     api.NewHandler(svc, log),
		Log:         log,
		CORSOrigins: cfg.AllowedOrigins(),
		ServiceName: serviceName,
	})

	srv := server.New(cfg.Address(), router, log)
	if cfg.TLSSelfSigned {
		cert, err := vault.GenerateSelfSignedCert(cfg.Host)
		if err != nil {
			log.Fatal("failed to generate TLS certificate", "error", err)
		}
		srv.SetCertificate(cert)
		log.Info("self-signed TLS enabled")
	}

	runErr := srv.Run(ctx)

	// Flush stores and spans even when the server failed.
	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := st.Close(closeCtx); err != nil {
		log.Error("store close failed", "error", err)
	}
	if err := shutdownOTel(closeCtx); err != nil {
		log.Error("otel shutdown failed", "error", err)
	}

	if runErr != nil {
		log.Error("server stopped with error", "error", runErr)
		log.Sync()
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
