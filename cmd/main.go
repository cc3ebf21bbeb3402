package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/okian/duet/internal/adapters/mq/serializer"
	"github.com/okian/duet/internal/adapters/provider"
	app "github.com/okian/duet/internal/app"
	"github.com/okian/duet/internal/config"
	"github.com/okian/duet/internal/domain/dedupe"
	"github.com/okian/duet/internal/domain/rating"
	"github.com/okian/duet/pkg/logger"
	"github.com/okian/duet/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	opts := []app.Option{
		app.WithLogger(log),
		app.WithSolver(rating.NewMMSolver(
			rating.WithTolerance(cfg.SolverTolerance),
			rating.WithMaxIterations(cfg.SolverMaxIterations),
		)),
		app.WithDeduper(dedupe.NewEngine(
			dedupe.WithAutoMergeThreshold(cfg.DedupeAutoMergeThreshold),
			dedupe.WithSuggestionThreshold(cfg.DedupeSuggestionThreshold),
		)),
		app.WithRecomputeEvery(cfg.RecomputeEvery),
		app.WithAggregateCooldown(time.Duration(cfg.AggregateCooldownSec) * time.Second),
		app.WithAggregateQueueSize(cfg.AggregateQueueSize),
		app.WithLeaderboardCacheTTL(time.Duration(cfg.LeaderboardCacheTTLSec) * time.Second),
		app.WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit),
	}

	// Catalog enrichment is optional; without a provider URL sessions are
	// built from the submitted metadata alone.
	var calls *serializer.Serializer
	if cfg.ProviderBaseURL != "" {
		calls = serializer.New(
			serializer.WithQueueSize(cfg.SerializerQueueSize),
			serializer.WithRateLimit(rate.Limit(cfg.SerializerRatePerSec), cfg.SerializerBurst),
			serializer.WithMaxAttempts(cfg.SerializerMaxAttempts),
			serializer.WithBackoffIntervals(
				time.Duration(cfg.SerializerBackoffInitialMS)*time.Millisecond,
				time.Duration(cfg.SerializerBackoffMaxMS)*time.Millisecond,
			),
		)
		calls.Start()
		defer calls.Stop()

		opts = append(opts, app.WithProvider(provider.NewClient(calls,
			provider.WithBaseURL(cfg.ProviderBaseURL),
			provider.WithToken(cfg.ProviderToken),
		)))
	}

	svc := app.New(opts...)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(context.Background(), "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(context.Background(), "HTTP shutdown failed", logger.Error(err))
	}
}
