// Command workflowd is the control-server daemon: a long-lived process
// exposing the workflow RPC surface over HTTP, with at most one workflow
// instance loaded at a time.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smilemakc/playbookflow/internal/audit"
	"github.com/smilemakc/playbookflow/internal/config"
	"github.com/smilemakc/playbookflow/internal/logging"
	"github.com/smilemakc/playbookflow/internal/runner"
	"github.com/smilemakc/playbookflow/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	appLogger := logging.New(logging.Options{Level: "info", Format: "json"})
	logging.SetDefault(appLogger)

	appLogger.Info("starting workflowd", "host", cfg.Server.Host, "port", cfg.Server.Port)

	var sink audit.Sink
	if cfg.Audit.DSN != "" {
		bunSink, err := audit.Open(cfg.Audit.DSN, appLogger)
		if err != nil {
			appLogger.Warn("audit sink disabled: failed to connect", "error", err)
		} else {
			sink = bunSink
			appLogger.Info("audit sink connected")
		}
	}

	execRunner := runner.NewExecRunner(os.Getenv("WORKFLOWD_RUNNER_COMMAND"))

	srv := server.New(server.Options{
		ArtifactDir:        cfg.Server.ArtifactDir,
		LogDir:             cfg.Server.LogDir,
		PollInterval:       cfg.Engine.PollInterval,
		ResumeWaitInterval: cfg.Engine.ResumeWaitInterval,
	}, execRunner, appLogger, sink)

	auth := server.NewAuthMiddleware(cfg.Auth.APIToken)
	router := server.NewRouter(srv, auth, appLogger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		appLogger.Info("http server listening", "addr", httpServer.Addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			appLogger.Error("http server error", "error", err)
			os.Exit(1)
		}
	case sig := <-shutdown:
		appLogger.Info("shutdown signal received", "signal", sig.String())
	case <-srv.ShutdownRequested():
		appLogger.Info("shutdown requested by request_shutdown() RPC")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		appLogger.Error("graceful shutdown failed", "error", err)
		_ = httpServer.Close()
	}
	srv.Close()
	appLogger.Info("workflowd stopped")
}
