package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/NahanaBanahnah/trell-api/api"
	"github.com/NahanaBanahnah/trell-api/database"
	"github.com/NahanaBanahnah/trell-api/integrations"
	"github.com/NahanaBanahnah/trell-api/internal/assets"
	"github.com/NahanaBanahnah/trell-api/internal/config"
	"github.com/NahanaBanahnah/trell-api/internal/relay"
)

func main() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))
	if levelStr == "" {
		levelStr = "debug"
	}
	level, err := zapcore.ParseLevel(levelStr)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      true,
		Encoding:         "console",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, _ := zapConfig.Build()
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Error loading configuration", zap.Error(err))
	}

	db := database.Init(cfg.Database.Path)
	sqlDB, _ := db.DB()

	if err := os.MkdirAll(cfg.Assets.Dir, 0755); err != nil {
		zap.L().Fatal("Failed to create asset directory", zap.Error(err))
	}

	trelloClient := integrations.NewTrelloClient(cfg.Trello.APIKey, cfg.Trello.APIToken)

	dispatcher, err := integrations.NewDispatcher(cfg.Discord.Boards)
	if err != nil {
		zap.L().Fatal("Failed to initialise Discord dispatcher", zap.Error(err))
	}

	fetcher := assets.NewFetcher(cfg.Assets.Dir, cfg.Assets.PublicBaseURL, trelloClient.AuthHeader())

	router := relay.Router{
		Trello:   trelloClient,
		Deleter:  dispatcher,
		Assets:   fetcher,
		DB:       db,
		Policy:   cfg.Policy,
		Mentions: cfg.Mentions,
	}

	engine := gin.Default()
	engine.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	engine.Use(ginzap.RecoveryWithZap(logger, true))

	apiHandler := &api.Handler{
		DB:         db,
		Router:     &router,
		Dispatcher: dispatcher,
		Config:     cfg,
	}
	apiGroup := engine.Group("/api")
	{
		apiGroup.POST("", apiHandler.TrelloWebhookHandler)
		apiGroup.HEAD("", apiHandler.TrelloWebhookHandler)
		apiGroup.GET("/health", apiHandler.HealthCheckHandler)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: engine,
	}

	zap.L().Info("Starting server", zap.String("port", cfg.Server.Port))
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("Server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	var once sync.Once

	cleanup := func(reason string) {
		zap.L().Info("Shutdown initiated", zap.String("reason", reason))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		zap.L().Info("Shutting down HTTP server...")
		if err := srv.Shutdown(ctx); err != nil {
			zap.L().Error("Error shutting down server", zap.Error(err))
		} else {
			zap.L().Info("HTTP server shut down gracefully.")
		}

		if sqlDB != nil {
			if err := sqlDB.Close(); err != nil {
				zap.L().Error("Error closing database", zap.Error(err))
			} else {
				zap.L().Info("Database connection closed.")
			}
		}
		close(done)
	}

	go func() {
		sig := <-sigCh
		once.Do(func() {
			cleanup(sig.String())
		})

		// if a second signal is caught, exit immediately
		go func() {
			<-sigCh
			zap.L().Info("Second interrupt signal received. Exiting immediately.")
			os.Exit(1)
		}()
	}()

	<-done
	zap.L().Info("Exiting...")
}
