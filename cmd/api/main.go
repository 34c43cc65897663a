package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/chainofevents/publisher/internal/config"
	"github.com/chainofevents/publisher/internal/corpus"
	"github.com/chainofevents/publisher/internal/handler"
	"github.com/chainofevents/publisher/internal/logger"
	"github.com/chainofevents/publisher/internal/publish"
	"github.com/chainofevents/publisher/internal/ratelimit"
	"github.com/chainofevents/publisher/internal/repository/postgres"
	"github.com/chainofevents/publisher/internal/schedule"
	"github.com/chainofevents/publisher/internal/selector"
	"github.com/chainofevents/publisher/internal/service"
)

func main() {
	// Best-effort .env load for local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.New(cfg.ServiceEnvironment)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func(log *zap.Logger) {
		_ = log.Sync()
	}(log)

	log.Info("Starting publisher service",
		zap.String("environment", cfg.ServiceEnvironment),
		zap.String("port", cfg.ServicePort),
		zap.String("timezone", cfg.Timezone))

	ctx := context.Background()

	pgClient, err := postgres.NewClient(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}

	repo := postgres.NewRepository(pgClient, log)
	defer func() {
		if err := repo.Close(); err != nil {
			log.Error("Failed to close repository", zap.Error(err))
		}
	}()

	if err := repo.InitSchema(ctx); err != nil {
		log.Fatal("Failed to initialize schema", zap.Error(err))
	}

	store, err := corpus.Load(cfg.EventsFile, log)
	if err != nil {
		log.Fatal("Failed to load event corpus", zap.Error(err))
	}

	resolver, err := schedule.NewResolver(cfg.Timezone, schedule.DefaultSlots())
	if err != nil {
		log.Fatal("Failed to build slot resolver", zap.Error(err))
	}

	sel := selector.New(store)

	publishTimeout := time.Duration(cfg.PublishTimeoutSec) * time.Second
	gateways := []publish.Gateway{
		publish.NewFarcasterGateway(cfg.NeynarAPIKey, cfg.FarcasterSignerID, cfg.FarcasterUsername, publishTimeout, log),
		publish.NewTwitterGateway(cfg.TwitterAccessToken, cfg.TwitterUsername, publishTimeout, log),
	}
	if !cfg.FarcasterConfigured() {
		log.Warn("Farcaster credentials incomplete; farcaster trigger will fail closed")
	}
	if !cfg.TwitterConfigured() {
		log.Warn("Twitter credentials incomplete; twitter trigger will fail closed")
	}

	publisher := service.NewPublisher(resolver, sel, repo, gateways, cfg.SiteURL, log)

	limiter := buildLimiter(cfg, log)

	h := handler.NewHandler(publisher, sel, limiter, cfg.CronSecret, cfg.ManualSecret, log)

	addr := fmt.Sprintf(":%s", cfg.ServicePort)
	log.Info("API server starting", zap.String("address", addr))

	if err := http.ListenAndServe(addr, h); err != nil {
		log.Fatal("Failed to start API server", zap.Error(err))
	}
}

// buildLimiter composes the distributed limiter over Redis with the local
// fallback. Without a Redis address the local counter runs alone.
func buildLimiter(cfg *config.Config, log *zap.Logger) ratelimit.Limiter {
	window := time.Duration(cfg.RateLimitWindowSec) * time.Second
	local := ratelimit.NewLocal(cfg.RateLimitPerMinute, window)

	if cfg.RedisAddr == "" {
		log.Info("No Redis configured; using local rate limiter only")
		return ratelimit.NewFallback(nil, local, log)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	log.Info("Distributed rate limiter enabled", zap.String("redis_addr", cfg.RedisAddr))

	distributed := ratelimit.NewRedis(client, cfg.RateLimitPerMinute, window)
	return ratelimit.NewFallback(distributed, local, log)
}
