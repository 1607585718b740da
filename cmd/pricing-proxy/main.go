// Command pricing-proxy runs the read-through caching proxy in front of
// the rate-limited pricing API: it loads configuration, wires the
// upstream client, circuit breaker, distributed lock, cache store, and
// coordinator together, serves GET /pricing, /health, and /metrics, and
// shuts down gracefully on SIGINT/SIGTERM.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gitaway/pricing-proxy/internal/breaker"
	"github.com/gitaway/pricing-proxy/internal/config"
	"github.com/gitaway/pricing-proxy/internal/coordinator"
	"github.com/gitaway/pricing-proxy/internal/httpapi"
	"github.com/gitaway/pricing-proxy/internal/lock"
	"github.com/gitaway/pricing-proxy/internal/upstream"
	"github.com/gitaway/pricing-proxy/pkg/cache"
	"github.com/gitaway/pricing-proxy/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logging.Setup(logging.DefaultConfig())

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		cancel()
		log.Fatal().Err(err).Str("redis_url", cfg.RedisURL).Msg("failed to connect to redis")
	}
	cancel()
	log.Info().Str("redis_url", cfg.RedisURL).Msg("connected to redis")

	upstreamClient := upstream.New(upstream.Config{
		BaseURL:   cfg.RateAPIURL,
		Token:     cfg.RateAPIToken,
		UserAgent: cfg.UserAgent,
	})

	cb := breaker.New(breaker.Config{
		FailureThreshold: cfg.FOpen,
		MinObservations:  cfg.V,
		Window:           cfg.W,
		SleepWindow:      cfg.S,
		SuccessThreshold: cfg.R,
	})

	locker := lock.New(redisClient)
	store := cache.NewStore(redisClient)

	timings := coordinator.Timings{
		TFresh: cfg.TFresh,
		TStale: cfg.TStale,
		THold:  cfg.THold,
		TWait:  cfg.TWait,
		TPoll:  cfg.TPoll,
	}
	coord := coordinator.New(store, locker, cb, upstreamClient, timings)

	handler := httpapi.New(coord, redisClient)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting pricing proxy")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
		if closeErr := redisClient.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close redis client")
		}
		os.Exit(1)
	}

	if err := redisClient.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close redis client")
	}

	log.Info().Msg("pricing proxy stopped gracefully")
}
