package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/weather-panel/internal/api/http"
	"github.com/i474232898/weather-panel/internal/config"
	"github.com/i474232898/weather-panel/internal/connection"
	"github.com/i474232898/weather-panel/internal/icons"
	"github.com/i474232898/weather-panel/internal/queue"
	"github.com/i474232898/weather-panel/internal/store"
	"github.com/i474232898/weather-panel/internal/weather/providers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll the provider and serve variables over HTTP",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.Provider.HTTPTimeout,
	}

	state := store.NewHostState()

	var cacheOpts []icons.Option
	cacheOpts = append(cacheOpts, icons.WithSize(cfg.Provider.IconSize))
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		cacheOpts = append(cacheOpts, icons.WithBacking(icons.NewRedisBacking(rdb, cfg.Redis.IconTTL)))
		log.Infow("icons: using redis backing", "addr", cfg.Redis.Addr)
	}
	cache := icons.NewCache(
		providers.NewIconProvider(httpClient, cfg.Provider.IconURL),
		state.IconUpdated,
		log,
		cacheOpts...,
	)

	// Each attempt may use the full client timeout plus the backoff between them.
	retries := time.Duration(providers.DefaultBackoff.MaxRetries)
	fetchTimeout := cfg.Provider.HTTPTimeout*(retries+1) + providers.DefaultBackoff.MaxInterval*retries

	ctrlOpts := []connection.Option{connection.WithFetchTimeout(fetchTimeout)}
	if len(cfg.Kafka.Brokers) > 0 {
		producer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		ctrlOpts = append(ctrlOpts, connection.WithPublisher(queue.NewSnapshotPublisher(producer)))
		log.Infow("queue: publishing snapshots", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	ctrl := connection.New(
		providers.NewOpenWeatherProvider(httpClient, cfg.Provider.BaseURL),
		cache,
		state,
		log,
		ctrlOpts...,
	)
	if err := ctrl.Initialize(cfg.Connection); err != nil {
		// Keep serving so the host can push a corrected config.
		log.Warnw("connection not started", "error", err)
	}
	defer ctrl.Teardown()

	app := fiber.New(fiber.Config{
		AppName:               "weather-panel",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-panel",
		})
	})

	httpapi.RegisterRoutes(app, ctrl, state)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Errorw("fiber server stopped", "error", err)
		}
	}()
	log.Infow("listening", "port", cfg.Port)

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Errorw("error during shutdown", "error", err)
	}
	return nil
}
