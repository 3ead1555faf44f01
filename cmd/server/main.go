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

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/ghost-dash/internal/config"
	"github.com/DoyleJ11/ghost-dash/internal/httpapi"
	"github.com/DoyleJ11/ghost-dash/internal/hub"
	"github.com/DoyleJ11/ghost-dash/internal/logging"
	"github.com/DoyleJ11/ghost-dash/internal/store"
	"github.com/DoyleJ11/ghost-dash/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := openStore(cfg, log)
	if err != nil {
		return err
	}

	// the hub outlives ctx so it can be drained after the listener stops
	h := hub.NewHub(context.Background(), hub.WithLogger(log), hub.WithRecorder(results))

	// Build the router *with* the hub injected
	handler := httpapi.SetupRoutes(h, results, ws.Options{
		HeartbeatInterval: cfg.HeartbeatInterval,
		WriteTimeout:      cfg.WriteTimeout,
		OutboxSize:        cfg.OutboxSize,
		OriginPatterns:    cfg.AllowedOrigins,
	}, log)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(sctx)

		// closes every outbox, which closes the sockets
		h.Submit(hub.Shutdown{})
		h.Wait()
		return multierr.Append(err, results.Close())
	})
	return g.Wait()
}

func openStore(cfg config.Config, log *zap.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Info("DATABASE_URL not set, keeping results in memory")
		return store.NewMemory(), nil
	}
	s, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	log.Info("recording results to postgres")
	return s, nil
}
