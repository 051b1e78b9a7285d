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
	"github.com/ilayer-labs/rfq-exchange/internal/requester"
	"github.com/ilayer-labs/rfq-exchange/pkg/config"
	"github.com/ilayer-labs/rfq-exchange/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()
	cfg.ServiceName = "rfq-requester"

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [rfq-requester]...")

	// --- Connect to the messaging substrate ---
	b, err := bus.Connect(cfg.NATSURL, cfg.ServiceName, logg.Desugar())
	if err != nil {
		logg.Fatalw("failed to connect to NATS", "error", err)
	}

	// --- Requester session (identity, bucket, response listener) ---
	req, err := requester.New(logg.Desugar(), b, cfg.SubscribeRetryDelay, cfg.ResponseTimeout)
	if err != nil {
		logg.Fatalw("failed to create requester session", "error", err)
	}
	if err := req.Start(ctx); err != nil {
		logg.Fatalw("failed to start requester", "error", err)
	}

	// --- Fiber HTTP trigger ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
	})
	api.RegisterRoutes(app, b, api.NewRFQHandler(logg.Desugar(), req))

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow("[rfq-requester] running",
		"nats", cfg.NATSURL,
		"bucket", req.Bucket(),
		"env", cfg.Env,
		"response_timeout", cfg.ResponseTimeout)

	<-ctx.Done()
	logg.Info("shutting down [rfq-requester]...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	b.Close()
}
