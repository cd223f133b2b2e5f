package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	appanalysis "github.com/bryanwahyu/macrolens/internal/application/analysis"
	apprecs "github.com/bryanwahyu/macrolens/internal/application/recommendations"
	"github.com/bryanwahyu/macrolens/internal/config"
	domai "github.com/bryanwahyu/macrolens/internal/domain/ai"
	"github.com/bryanwahyu/macrolens/internal/infra/ai/openai"
	"github.com/bryanwahyu/macrolens/internal/infra/ai/rekognition"
	"github.com/bryanwahyu/macrolens/internal/infra/httpserver"
	"github.com/bryanwahyu/macrolens/internal/logger"
	"github.com/bryanwahyu/macrolens/internal/middleware"
)

func main() {
	if err := logger.Init(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer logger.Sync()

	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		logger.L().Fatal("config load error", zap.Error(err))
	}
	if cfg.APIKey == "" {
		logger.Warn("OPENAI_API_KEY is not set, analysis requests will fail")
	}

	ctx := context.Background()

	client := openai.NewClient(openai.Options{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.AI.BaseURL,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		MaxTokens:   cfg.AI.MaxTokens,
	})

	moderator, err := newModerator(ctx, cfg)
	if err != nil {
		logger.L().Fatal("moderator init error", zap.Error(err))
	}

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.RefillPerSecond)
	defer limiter.Close()

	handler := httpserver.NewRouter(
		appanalysis.NewService(client, moderator),
		apprecs.NewService(client),
		httpserver.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Limiter:        limiter,
			Checkers: map[string]middleware.HealthChecker{
				"provider": middleware.ProviderKeyChecker{APIKey: cfg.APIKey},
			},
		},
	)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", addr), zap.String("model", cfg.AI.Model))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}

// newModerator returns nil when moderation is disabled.
func newModerator(ctx context.Context, cfg *config.Config) (domai.Moderator, error) {
	if !cfg.AI.Moderation.Enabled {
		logger.Warn("image moderation is disabled")
		return nil, nil
	}
	switch cfg.AI.Moderation.Provider {
	case config.ModerationRekognition:
		return rekognition.New(ctx, cfg.AWS.Region, cfg.AI.Moderation.MinConfidence)
	default:
		return openai.NewModerator(cfg.APIKey, cfg.AI.BaseURL, cfg.AI.Moderation.Model), nil
	}
}
