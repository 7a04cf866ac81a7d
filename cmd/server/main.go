package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"go-canvas/internal/config"
	"go-canvas/internal/logging"
	"go-canvas/internal/middleware"
	"go-canvas/internal/relay"
	"go-canvas/internal/storage"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		log.Fatal(err)
	}

	app := &cli.App{
		Name:   "canvas-relay",
		Usage:  "reference relay for the shared canvas",
		Flags:  config.RelayFlags(),
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.RelayFromCLI(c)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Development: cfg.Development})
	if err != nil {
		return err
	}
	defer logger.Sync()

	if !cfg.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.Connect(cfg.DSN, logger.Named("storage"))
	if err != nil {
		return err
	}

	var bus relay.Bus = relay.NewLocalBus(0)
	if cfg.RedisAddr != "" {
		rb, err := relay.NewRedisBus(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		bus = rb
		logger.Info("fan-out through redis", zap.String("addr", cfg.RedisAddr))
	}
	defer bus.Close()

	r := relay.New(relay.Options{
		Store:        storage.NewStore(db),
		Bus:          bus,
		Logger:       logger.Named("relay"),
		SendReady:    cfg.SendReady,
		LegacyPixels: cfg.LegacyPixels,
		RateLimit: middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			BurstSize:         cfg.RateBurst,
			CleanupInterval:   middleware.DefaultRateLimit.CleanupInterval,
		},
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: r.Router()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("relay listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
