package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	zlog "github.com/semihalev/zlog/v2"

	"github.com/blockdns/rbld/aggregate"
	"github.com/blockdns/rbld/cache"
	"github.com/blockdns/rbld/config"
	"github.com/blockdns/rbld/customrbl"
	"github.com/blockdns/rbld/maintenance"
	"github.com/blockdns/rbld/middleware"
	"github.com/blockdns/rbld/middleware/forwarder"
	"github.com/blockdns/rbld/middleware/metrics"
	"github.com/blockdns/rbld/middleware/recovery"
	"github.com/blockdns/rbld/middleware/router"
	"github.com/blockdns/rbld/server"
	"github.com/blockdns/rbld/singlerbl"
	"github.com/blockdns/rbld/zone"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "load the config and serve DNS queries (default command)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load(configPath, BuildVersion)
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}

	configureLogging(cfg.LogLevel)

	zlog.Info("Starting rbld", "version", BuildVersion)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	durable, err := cache.OpenGormStore(cache.DSNConfig{
		Host:     cfg.CacheHost,
		Port:     cfg.CachePort,
		DB:       cfg.CacheDB,
		User:     cfg.CacheUser,
		Password: cfg.CachePassword,
		PoolMax:  cfg.CachePoolMax,
	})
	if err != nil {
		return fmt.Errorf("durable cache open: %w", err)
	}

	var cacheOpts []cache.Option
	if len(cfg.L1CacheServers) > 0 {
		cacheOpts = append(cacheOpts, cache.WithRedisFast(cfg.L1CacheServers))
	}
	c := cache.New(durable, cacheOpts...)

	m := metrics.New()

	resolver := singlerbl.New([]string{cfg.UpstreamResolver}, cfg.SingleLookupTimeout.Duration, m)
	cached := singlerbl.NewCached(resolver, c, m)

	var custom *customrbl.CustomRBL
	if cfg.CustomRBLZoneName != "" {
		dsn := postgresDSN(cfg)
		custom, err = customrbl.Open(ctx, dsn)
		if err != nil {
			return fmt.Errorf("custom-rbl store open: %w", err)
		}
	} else {
		custom = customrbl.NewEmpty()
	}

	rbls, err := zone.LoadRBLs(cfg.RBLServersFile)
	if err != nil {
		return fmt.Errorf("rbl servers load: %w", err)
	}

	aggregates, err := zone.LoadAggregates(cfg.AggregateZonesFile, rbls)
	if err != nil {
		return fmt.Errorf("aggregate zones load: %w", err)
	}

	registry := zone.Build(rbls, aggregates, cfg.CustomRBLZoneName)
	exec := aggregate.New(cached, cfg.AggregateTimeout(), m)
	fwd := forwarder.New(cfg.UpstreamResolver, cfg.ForwardTimeout.Duration)

	rt := router.New(registry, cached, exec, custom, fwd)

	watcher, err := zone.NewWatcher(cfg.RBLServersFile, cfg.AggregateZonesFile, cfg.CustomRBLZoneName, rt.SetRegistry)
	if err != nil {
		zlog.Warn("Zone file watcher unavailable, continuing without hot reload", "error", err.Error())
	} else {
		defer watcher.Stop()
	}

	runner := maintenance.New(c, m, 0, 0)
	go runner.Run(ctx)
	defer runner.Stop()

	handlers := []middleware.Handler{recovery.New(), m, rt}
	srv := server.New(cfg.Bind(), handlers)

	go srv.Run()

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	zlog.Info("Stopping rbld")

	return nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	zlog.Info("Serving metrics", "addr", addr)

	if err := http.ListenAndServe(addr, mux); err != nil {
		zlog.Error("Metrics listener stopped", "addr", addr, "error", err.Error())
	}
}

// configureLogging maps cfg.LogLevel onto zlog's level filter. "none"
// routes output to a discard writer instead of silencing via level,
// since a discarded write short-circuits before any level check.
func configureLogging(level string) {
	logger := zlog.NewStructured()

	if strings.ToLower(level) == "none" {
		logger.SetWriter(io.Discard)
		zlog.SetDefault(logger)
		return
	}

	var lvl zlog.Level
	switch strings.ToLower(level) {
	case "error":
		lvl = zlog.LevelError
	case "verbose":
		lvl = zlog.LevelDebug
	default:
		lvl = zlog.LevelInfo
	}

	logger.SetWriter(zlog.StdoutTerminal())
	logger.SetLevel(lvl)
	zlog.SetDefault(logger)
}

func postgresDSN(cfg *config.Config) string {
	port := cfg.CachePort
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.CacheHost, port, cfg.CacheUser, cfg.CachePassword, cfg.CacheDB)
}
