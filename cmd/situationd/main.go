package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/situation-hq/situation-monitor/internal/aggregate"
	"github.com/situation-hq/situation-monitor/internal/cache"
	"github.com/situation-hq/situation-monitor/internal/config"
	"github.com/situation-hq/situation-monitor/internal/enrich"
	"github.com/situation-hq/situation-monitor/internal/health"
	"github.com/situation-hq/situation-monitor/internal/logger"
	"github.com/situation-hq/situation-monitor/internal/publish"
	"github.com/situation-hq/situation-monitor/internal/server"
	"github.com/situation-hq/situation-monitor/internal/snapshot"
	"github.com/situation-hq/situation-monitor/pkg/feeds"
	"github.com/situation-hq/situation-monitor/pkg/providers"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "situationd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	// Local development convenience; a missing .env is fine.
	godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sources := feeds.DefaultSources()
	if cfg.FeedsFile != "" {
		if sources, err = feeds.LoadSources(cfg.FeedsFile); err != nil {
			return err
		}
	}

	client := providers.DefaultHTTPClient()
	ops := []aggregate.Operation{
		{Priority: 1, Fetcher: providers.NewRSSFetcher(client, sources, log)},
		{Priority: 2, Fetcher: providers.NewNewsAPIFetcher(client, cfg.NewsAPIKey, log)},
		{Priority: 3, Fetcher: providers.NewGNewsFetcher(client, cfg.GNewsAPIKey, log)},
	}

	aggCfg := aggregate.DefaultConfig()
	aggCfg.FetchTimeout = cfg.FetchTimeout
	agg := aggregate.New(aggCfg, ops, health.NewTracker(), log)

	c := cache.New()
	c.StartSweeper(ctx, cfg.CacheSweepInterval)

	var snaps server.Snapshots
	store, err := snapshot.Open(cfg.SnapshotPath)
	if err != nil {
		return err
	}
	defer store.Close()
	snaps = store

	var broadcaster *publish.Broadcaster
	if cfg.SinksFile != "" {
		sinkCfgs, err := publish.LoadConfigs(cfg.SinksFile)
		if err != nil {
			return err
		}
		sinks, err := publish.BuildSinks(ctx, sinkCfgs, log)
		if err != nil {
			return err
		}
		broadcaster = publish.NewBroadcaster(sinks, log)
	}

	var enricher server.Enricher
	if cfg.EnrichEnabled {
		enricher = enrich.New(client, log)
	}

	srv := server.New(server.Config{
		CacheTTL:    cfg.CacheTTL,
		MaxArticles: cfg.MaxArticles,
		EnrichTopN:  cfg.EnrichTopN,
	}, agg, c, snaps, enricher, broadcaster, log)

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.InfoObj("server listening", "server_start", map[string]any{
			"addr":    cfg.Addr,
			"feeds":   len(sources),
			"sources": len(ops),
		})
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.InfoObj("shutting down", "server_stop", nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}
