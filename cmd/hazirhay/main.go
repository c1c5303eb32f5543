// Package main запускает HTTP-сервер маркетплейса HazirHay.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/hazirhay-backend/internal/cache"
	"github.com/mmeshcher/hazirhay-backend/internal/config"
	"github.com/mmeshcher/hazirhay-backend/internal/handler"
	"github.com/mmeshcher/hazirhay-backend/internal/middleware"
	"github.com/mmeshcher/hazirhay-backend/internal/notification"
	"github.com/mmeshcher/hazirhay-backend/internal/pushgw"
	"github.com/mmeshcher/hazirhay-backend/internal/repository"
	"github.com/mmeshcher/hazirhay-backend/internal/service"
)

// storage объединяет хранилище сервиса и журнал уведомлений.
type storage interface {
	service.Repository
	notification.Store
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	rate, err := cfg.Rate()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	var repo storage
	if cfg.DatabaseURI != "" {
		pg, err := repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
		repo = pg
	} else {
		sugar.Warn("DATABASE_URI is empty, using in-memory storage")
		repo = repository.NewMemoryRepository()
	}

	hub := notification.NewHub(logger)
	dispatcher := notification.NewDispatcher(repo, hub, logger)

	var publisher *notification.KafkaPublisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = notification.NewKafkaPublisher(cfg.KafkaBrokers, cfg.NotificationTopic)
		dispatcher.SetPublisher(publisher)
		sugar.Infow("publishing notifications to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.NotificationTopic)
	}
	if cfg.PushGatewayAddress != "" {
		dispatcher.SetGateway(pushgw.NewClient(cfg.PushGatewayAddress))
	}

	svc, err := service.NewService(repo, dispatcher, service.Settings{
		RatePerKm:     rate,
		BlockDuration: cfg.CancelBlockDuration,
		NotifyTimeout: cfg.NotifyTimeout,
		SnowflakeNode: cfg.SnowflakeNode,
	}, logger)
	if err != nil {
		sugar.Fatalw("service initialization error", "error", err.Error())
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RedisAddress != "" {
		priceCache, err := cache.NewPriceCache(ctx, cfg.RedisAddress, cfg.PriceCacheTTL)
		if err != nil {
			// Без кэша оценка цены считается по каталогам на каждый запрос.
			sugar.Warnw("price cache disabled", "error", err.Error())
		} else {
			svc.SetPriceCache(priceCache)
			defer priceCache.Close()
		}
	}

	if cfg.AdminEmail != "" {
		if err := svc.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			sugar.Fatalw("admin bootstrap error", "error", err.Error())
		}
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret, cfg.TokenTTL)
	h := handler.NewHandler(svc, logger, authMiddleware, hub)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("starting hazirhay server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		if publisher != nil {
			if err := publisher.Close(); err != nil {
				sugar.Warnw("kafka publisher close error", "error", err.Error())
			}
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
