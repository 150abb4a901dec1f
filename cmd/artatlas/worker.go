package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/manas-droid/ArtAtlas/engine/events"
	"github.com/manas-droid/ArtAtlas/pkg/metrics"
	"github.com/manas-droid/ArtAtlas/pkg/telemetry"
)

func (a *app) workerCmd() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Serve resolve requests over NATS until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runWorker(cmd.Context(), metricsAddr)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics on this address (e.g. :9102)")
	return cmd
}

func (a *app) runWorker(ctx context.Context, metricsAddr string) error {
	shutdownTracing, err := telemetry.Setup("artatlas-worker", a.cfg.Telemetry.Stdout, a.errOut, a.logger)
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	nc, err := a.connectNATS("artatlas-worker")
	if err != nil {
		return err
	}
	defer nc.Drain()

	set := metrics.NewSet(nil)
	sub, err := events.ServeResolver(nc, a.cfg.NATS.ResolveSubject, a.logger, set)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()
	a.logger.Info("resolver worker started", "subject", sub.Subject, "queue", events.ResolverQueue)

	g, gctx := errgroup.WithContext(ctx)
	if metricsAddr != "" {
		ln, err := net.Listen("tcp", metricsAddr)
		if err != nil {
			return err
		}
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", set.Registry().Handler())
		srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("resolver worker stopping")
		return nil
	})
	return g.Wait()
}
