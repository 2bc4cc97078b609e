package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	app "github.com/nilesh65/CodeKonnect/internal/app"
	"github.com/nilesh65/CodeKonnect/internal/exec"
	httpx "github.com/nilesh65/CodeKonnect/internal/http"
	"github.com/nilesh65/CodeKonnect/internal/session"
	"github.com/nilesh65/CodeKonnect/internal/ws"
)

func main() {
	// Load local .env (dev only)
	_ = godotenv.Load()

	cfg := app.LoadConfig()
	logger := app.NewLogger(cfg.Env)

	// Cancel on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Optional redis bus for cross-instance fanout
	var bus *ws.Bus
	if cfg.RedisAddr != "" {
		b, err := ws.NewBus(ctx, cfg, logger)
		if err != nil {
			logger.Error("redis connect", "err", err)
			log.Fatal(err)
		}
		defer b.Close()
		bus = b
	}

	// Execution backend
	piston := exec.NewPiston(cfg.PistonURL, cfg.ExecTimeout, logger)

	// Session registry + hub
	registry := session.NewRegistry()
	hub := ws.NewHub(logger, registry, piston, bus)
	go hub.Run(ctx)

	// HTTP + WS router
	router := httpx.NewRouter(cfg, hub, piston)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server
	go func() {
		logger.Info("server.listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server.crash", "err", err)
			cancel()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("server.shutdown.start")

	// shutdown
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)

	logger.Info("server.shutdown.complete")
	_ = os.Stdout.Sync()
}
