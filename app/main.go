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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/lysyi3m/rss-rules/app/api"
	"github.com/lysyi3m/rss-rules/app/cache"
	"github.com/lysyi3m/rss-rules/app/cfg"
	"github.com/lysyi3m/rss-rules/app/channel"
	"github.com/lysyi3m/rss-rules/app/database"
	"github.com/lysyi3m/rss-rules/app/feed"
	"github.com/lysyi3m/rss-rules/app/metrics"
	"github.com/lysyi3m/rss-rules/app/publisher"
	"github.com/lysyi3m/rss-rules/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	level := slog.LevelInfo
	if appCfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("Starting RSS Rules server", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		fatal("Failed to connect to database", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		fatal("Failed to run migrations", err)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	channelRepo := database.NewChannelRepository(db)
	itemRepo := database.NewItemRepository(db)

	var definitions []channel.Entry
	if appCfg.ChannelsFile != "" {
		definitions, err = channel.LoadDefinitions(appCfg.ChannelsFile)
		if err != nil {
			fatal("Failed to load channel definitions", err)
		}
		slog.Info("Loaded channel definitions", "path", appCfg.ChannelsFile, "count", len(definitions))
	}

	ctx := context.Background()

	var feedCache api.FeedCache
	var taskFeedCache tasks.FeedCache
	if appCfg.RedisAddr != "" {
		redisCache, err := cache.NewCache(ctx, appCfg.RedisAddr)
		if err != nil {
			fatal("Failed to connect to Redis", err)
		}
		defer redisCache.Close()
		feedCache = redisCache
		taskFeedCache = redisCache
	} else {
		slog.Info("Feed cache disabled (REDIS_ADDR not set)")
	}

	var pub publisher.Publisher = publisher.Nop{}
	if appCfg.AMQPURL != "" {
		rabbit, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        appCfg.AMQPURL,
			Exchange:   appCfg.AMQPExchange,
			RoutingKey: appCfg.AMQPRoutingKey,
			QueueName:  appCfg.AMQPQueue,
		})
		if err != nil {
			fatal("Failed to connect to RabbitMQ", err)
		}
		pub = rabbit
	} else {
		slog.Info("Extraction events disabled (AMQP_URL not set)")
	}
	defer pub.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(registry)

	compiled := channel.NewCache()

	deps := &tasks.Deps{
		Channels:         channelRepo,
		Items:            itemRepo,
		Compiled:         compiled,
		Fetcher:          feed.NewFetcher(&http.Client{}, appCfg.UserAgent),
		Probe:            feed.NewProbe(),
		ContentExtractor: feed.NewContentExtractor(),
		Publisher:        pub,
		FeedCache:        taskFeedCache,
		Metrics:          appMetrics,
		DefaultRefresh:   appCfg.RefreshDuration(),
	}

	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount, "interval", appCfg.SchedulerInterval)
	scheduler := tasks.NewScheduler(deps, definitions)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(channelRepo, itemRepo, compiled, feedCache, appCfg.CacheDuration(), scheduler, appMetrics)
	server := api.NewServer(handler, registry)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
