package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mohammed-shakir/scene-catalog/internal/cache/entityid"
	"github.com/mohammed-shakir/scene-catalog/internal/cache/redisstore"
	"github.com/mohammed-shakir/scene-catalog/internal/core/catalog"
	"github.com/mohammed-shakir/scene-catalog/internal/core/config"
	"github.com/mohammed-shakir/scene-catalog/internal/core/health"
	"github.com/mohammed-shakir/scene-catalog/internal/core/httpclient"
	"github.com/mohammed-shakir/scene-catalog/internal/core/observability"
	"github.com/mohammed-shakir/scene-catalog/internal/core/router"
	"github.com/mohammed-shakir/scene-catalog/internal/core/server"
	"github.com/mohammed-shakir/scene-catalog/internal/logger"
	h3mapper "github.com/mohammed-shakir/scene-catalog/internal/mapper/h3"
	"github.com/mohammed-shakir/scene-catalog/internal/metrics"
	"github.com/mohammed-shakir/scene-catalog/internal/sceneevents"
)

var (
	Version   = "dev"
	Revision  = ""
	BuildDate = ""
)

func main() {
	os.Exit(run())
}

func run() int {
	addrFlag := flag.String("addr", "", "listen address (overrides ADDR)")
	flag.Parse()

	cfg := config.FromEnv()
	if *addrFlag != "" {
		cfg.Addr = *addrFlag
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		Service:   "catalog-gateway",
		Component: "gateway",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	p := metrics.Init(metrics.Config{Build: metrics.BuildInfo{
		Service:   "catalog-gateway",
		Version:   Version,
		Revision:  Revision,
		BuildDate: BuildDate,
	}})
	observability.Init(p.Registerer(), cfg.MetricsEnabled)

	appLog.Info("starting catalog gateway",
		"addr", cfg.Addr,
		"version", Version,
		"catalog", cfg.Catalog.URL,
		"redis", cfg.EntityCache.RedisAddr != "",
		"scene_events", cfg.SceneEvents.Enabled)

	if cfg.Catalog.Username == "" || cfg.Catalog.Password == "" {
		appLog.Error("CATALOG_USERNAME and CATALOG_PASSWORD are required")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.New(
		catalog.Config{BaseURL: cfg.Catalog.URL, Backoff: cfg.Catalog.Backoff},
		catalog.WithHTTPClient(httpclient.NewOutbound(cfg.Catalog.Timeout)),
		catalog.WithLogger(appLog.With("component", "catalog")),
	)
	if err != nil {
		appLog.Error("catalog client setup failed", "err", err)
		return 1
	}
	if _, err := cat.Login(ctx, cfg.Catalog.Username, cfg.Catalog.Password); err != nil {
		appLog.Error("catalog login failed", "err", err)
		return 1
	}
	defer logout(cat, appLog)

	checks := []health.Check{{
		Name: "catalog",
		Fn: func(context.Context) error {
			if _, ok := cat.Session(); !ok {
				return errors.New("no catalog session")
			}
			return nil
		},
	}}

	cacheOpts := []entityid.Option{
		entityid.WithSize(cfg.EntityCache.Size),
		entityid.WithOpTimeout(cfg.EntityCache.OpTimeout),
		entityid.WithLogger(appLog.With("component", "entity-cache")),
	}
	if cfg.EntityCache.RedisAddr != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		rdb, err := redisstore.New(pingCtx, redisstore.ConfigFrom(cfg.EntityCache))
		cancel()
		if err != nil {
			appLog.Error("redis setup failed", "addr", cfg.EntityCache.RedisAddr, "err", err)
			return 1
		}
		defer func() { _ = rdb.Close() }()
		appLog.Info("redis connected", "addr", cfg.EntityCache.RedisAddr, "pool_size", rdb.PoolSize())
		cacheOpts = append(cacheOpts, entityid.WithStore(rdb, cfg.EntityCache.TTL))
		checks = append(checks, health.Check{Name: "redis", Fn: rdb.Ping})
	}
	resolver, err := entityid.New(cat, cacheOpts...)
	if err != nil {
		appLog.Error("entity id cache setup failed", "err", err)
		return 1
	}

	var events *sceneevents.Publisher
	if cfg.SceneEvents.Enabled {
		events, err = sceneevents.NewPublisher(
			config.Brokers(cfg.SceneEvents.Brokers),
			cfg.SceneEvents.Topic,
			0,
			appLog.With("component", "scene-events"),
		)
		if err != nil {
			appLog.Error("kafka producer setup failed", "err", err)
			return 1
		}
		defer func() {
			if err := events.Close(); err != nil {
				appLog.Warn("kafka producer close", "err", err)
			}
		}()
	}

	if cfg.SceneEvents.WarmCache {
		warmer := sceneevents.NewConsumer(sceneevents.ConsumerConfig{
			Brokers: config.Brokers(cfg.SceneEvents.Brokers),
			Topic:   cfg.SceneEvents.Topic,
			GroupID: cfg.SceneEvents.GroupID,
		}, resolver, appLog.With("component", "cache-warmer"))
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := warmer.Run(ctx); err != nil {
				appLog.Error("cache warmer stopped", "err", err)
			}
		}()
		defer func() { stop(); <-done }()
	}

	api := router.New(router.Deps{
		Logger:     appLog,
		Catalog:    cat,
		Resolver:   resolver,
		Mapper:     h3mapper.New(),
		Events:     events,
		DefaultRes: cfg.H3Res,
	})
	handler := server.NewHandler(server.Options{
		Logger:  appLog,
		API:     api,
		Metrics: p.Handler(),
		Checks:  checks,
	})

	if err := server.Run(ctx, cfg.Addr, appLog, handler); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

func logout(cat *catalog.Client, l *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := cat.Logout(ctx); err != nil {
		l.Warn("catalog logout", "err", err)
	}
}
