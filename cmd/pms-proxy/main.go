// Command pms-proxy serves PMS collections as fully enumerated JSON lists,
// single batches or summaries.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Sternrassler/pms-client/pkg/client"
	"github.com/Sternrassler/pms-client/pkg/logging"
	"github.com/Sternrassler/pms-client/pkg/pagination"
	"github.com/Sternrassler/pms-client/pkg/pms"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type config struct {
	RedisURL          string
	Port              string
	BaseURL           string
	Username          string
	Password          string
	UserAgent         string
	RequestsPerSecond float64
	RequestTimeout    time.Duration
	Pagination        pagination.Config
}

func loadConfig() (config, error) {
	paging, err := pagination.LoadFromEnv()
	if err != nil {
		return config{}, err
	}

	cfg := config{
		RedisURL:          getEnv("REDIS_URL", "localhost:6379"),
		Port:              getEnv("PORT", "8080"),
		BaseURL:           os.Getenv("PMS_BASE_URL"),
		Username:          os.Getenv("PMS_USERNAME"),
		Password:          os.Getenv("PMS_PASSWORD"),
		UserAgent:         getEnv("USER_AGENT", "pms-client/0.1.0"),
		RequestsPerSecond: 5,
		RequestTimeout:    60 * time.Second,
		Pagination:        paging,
	}

	if v := os.Getenv("PMS_REQUESTS_PER_SECOND"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return config{}, fmt.Errorf("parse PMS_REQUESTS_PER_SECOND: %w", err)
		}
		cfg.RequestsPerSecond = rps
	}
	if v := os.Getenv("PROXY_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return config{}, fmt.Errorf("parse PROXY_REQUEST_TIMEOUT: %w", err)
		}
		cfg.RequestTimeout = d
	}
	if cfg.BaseURL == "" {
		return config{}, fmt.Errorf("PMS_BASE_URL is required")
	}

	return cfg, nil
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	logging.Setup(logging.ConfigFromEnv())
	logger := logging.NewLogger("pms-proxy")

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Proxy failed")
	}
}

func run(ctx context.Context, cfg config, logger zerolog.Logger) error {
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect to redis at %s: %w", cfg.RedisURL, err)
	}
	logger.Info().Str("redis", cfg.RedisURL).Msg("Connected to Redis")

	clientCfg := client.DefaultConfig(redisClient, cfg.BaseURL, cfg.UserAgent)
	clientCfg.Username = cfg.Username
	clientCfg.Password = cfg.Password
	clientCfg.RequestsPerSecond = cfg.RequestsPerSecond

	pmsClient, err := client.New(clientCfg)
	if err != nil {
		return fmt.Errorf("create pms client: %w", err)
	}
	defer pmsClient.Close()

	svc, err := pms.NewService(pmsClient, cfg.Pagination)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(redisClient, svc, cfg.RequestTimeout),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("addr", srv.Addr).
			Str("base_url", cfg.BaseURL).
			Str("mode", string(cfg.Pagination.Mode)).
			Msg("Starting PMS proxy")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down PMS proxy")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
