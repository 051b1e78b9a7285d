package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ilayer-labs/rfq-exchange/internal/api"
	"github.com/ilayer-labs/rfq-exchange/internal/bus"
	"github.com/ilayer-labs/rfq-exchange/internal/pricefeed"
	"github.com/ilayer-labs/rfq-exchange/internal/pricing"
	"github.com/ilayer-labs/rfq-exchange/internal/rate"
	"github.com/ilayer-labs/rfq-exchange/internal/solver"
	"github.com/ilayer-labs/rfq-exchange/pkg/config"
	"github.com/ilayer-labs/rfq-exchange/pkg/logger"
	"github.com/ilayer-labs/rfq-exchange/pkg/secrets"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()
	cfg.ServiceName = "rfq-solver"

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [rfq-solver]...")

	// --- Price feed API key (AWS Secrets Manager, or env fallback) ---
	apiKey := cfg.PriceFeedAPIKey
	if cfg.PriceFeedSecretName != "" {
		provider, err := secrets.NewAWSProvider(cfg.AWSRegion)
		if err != nil {
			logg.Fatalw("failed to create AWS Secrets Manager provider", "error", err)
		}
		secret, err := provider.GetSecret(ctx, cfg.PriceFeedSecretName)
		if err != nil {
			logg.Fatalw("failed to resolve price feed secret",
				"secret", cfg.PriceFeedSecretName, "error", err)
		}
		apiKey = secret["api_key"]
	}

	// --- Price cache (Redis when configured, in-memory otherwise) ---
	var priceCache pricefeed.Cache
	if cfg.RedisAddr != "" {
		rc := pricefeed.NewRedisCache(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, cfg.PriceCacheTTL, logg.Desugar())
		defer rc.Close()
		priceCache = rc
		logg.Infow("price cache: redis", "addr", cfg.RedisAddr)
	} else {
		mc := pricefeed.NewMemoryCache(cfg.PriceCacheTTL)
		stopCleaner := make(chan struct{})
		go mc.StartCleaner(10*cfg.PriceCacheTTL, stopCleaner)
		defer close(stopCleaner)
		priceCache = mc
		logg.Info("price cache: in-memory")
	}

	// --- Price feed client + optional tick stream ---
	limiter := rate.New(rate.Config{
		RequestsPerSecond: cfg.FeedRequestsPerSecond,
		Burst:             cfg.FeedBurst,
	})
	feed := pricefeed.NewClient(logg.Desugar(), cfg.PriceFeedURL, apiKey, limiter, priceCache)

	if cfg.PriceFeedWSURL != "" {
		stream := pricefeed.NewStream(logg.Desugar(), cfg.PriceFeedWSURL, priceCache)
		go stream.Run(ctx)
	}

	// --- Pricing engine ---
	engine := pricing.NewEngine(logg.Desugar(), feed)

	// --- Connect to the messaging substrate ---
	b, err := bus.Connect(cfg.NATSURL, cfg.ServiceName, logg.Desugar())
	if err != nil {
		logg.Fatalw("failed to connect to NATS", "error", err)
	}

	// --- Solver session ---
	sv, err := solver.New(logg.Desugar(), b, engine, cfg.SubscribeRetryDelay)
	if err != nil {
		logg.Fatalw("failed to create solver session", "error", err)
	}
	if err := sv.Start(ctx); err != nil {
		logg.Fatalw("failed to start solver", "error", err)
	}

	// --- Fiber HTTP server (health + metrics only) ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	})
	api.RegisterRoutes(app, b, nil)

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow("[rfq-solver] running",
		"nats", cfg.NATSURL,
		"solver", sv.SolverID(),
		"env", cfg.Env,
		"price_feed", cfg.PriceFeedURL)

	<-ctx.Done()
	logg.Info("shutting down [rfq-solver]...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	b.Close()
}
