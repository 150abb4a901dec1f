// Package main implements the ArtAtlas API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/manas-droid/ArtAtlas/engine/events"
	"github.com/manas-droid/ArtAtlas/engine/search"
	"github.com/manas-droid/ArtAtlas/pkg/config"
	"github.com/manas-droid/ArtAtlas/pkg/metrics"
	"github.com/manas-droid/ArtAtlas/pkg/resilience"
	"github.com/manas-droid/ArtAtlas/pkg/telemetry"
)

const shutdownTimeout = 10 * time.Second

func main() {
	fs := pflag.NewFlagSet("api", pflag.ExitOnError)
	cfgFile := fs.String("config", os.Getenv("ARTATLAS_CONFIG"), "path to a YAML config file")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.Int("port", 8080, "listen port")
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(*cfgFile,
		config.Bind{Key: "log.level", Flag: fs.Lookup("log-level")},
		config.Bind{Key: "server.port", Flag: fs.Lookup("port")},
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := config.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTracing, err := telemetry.Setup("artatlas-api", cfg.Telemetry.Stdout, os.Stderr, logger)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing shutdown", "err", err)
		}
	}()

	set := metrics.NewSet(metrics.New())
	client, err := search.NewClient(search.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
		Breaker: resilience.BreakerOpts{
			FailThreshold: cfg.Backend.BreakerThreshold,
			Cooldown:      cfg.Backend.BreakerCooldown,
			OnStateChange: func(_, to resilience.State) { set.Breaker(int(to)) },
		},
		Observer: set,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	var publisher EventPublisher
	var nc *nats.Conn
	if cfg.NATS.URL != "" {
		nc, err = nats.Connect(cfg.NATS.URL, nats.Name("artatlas-api"))
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Drain()
		publisher = events.NewPublisher(nc, cfg.NATS.EventsSubject, logger)
		if _, err := events.ServeResolver(nc, cfg.NATS.ResolveSubject, logger, set); err != nil {
			return err
		}
		logger.Info("nats connected", "url", cfg.NATS.URL, "resolve_subject", cfg.NATS.ResolveSubject)
	}

	srv := newServer(client, publisher, set, logger)
	httpSrv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      srv.handler(cfg.Server.CORSOrigin, cfg.Server.RateLimit, cfg.Server.RateBurst),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api server starting", "addr", httpSrv.Addr, "backend", cfg.Backend.BaseURL)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(sctx)
	})
	return g.Wait()
}
