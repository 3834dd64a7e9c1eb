package main

import (
	"net/http"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/anikdas/chatloom/internal/api"
	"github.com/anikdas/chatloom/internal/chat"
	"github.com/anikdas/chatloom/internal/config"
	"github.com/anikdas/chatloom/internal/db"
	"github.com/anikdas/chatloom/internal/llm"
)

func main() {
	// A local .env is optional.
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	database, err := db.New(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to initialize database",
			zap.Error(err),
			zap.String("dbPath", cfg.DBPath))
	}
	defer database.Close()

	completer, err := llm.New(cfg.ProviderBaseURL, cfg.ProviderAPIKey, cfg.Model, cfg.ProviderTimeout, logger)
	if err != nil {
		logger.Fatal("failed to initialize completion client", zap.Error(err))
	}

	pipeline := chat.NewPipeline(database, completer, cfg.MaxContextTokens, logger)
	handler := api.NewHandler(database, pipeline, logger)

	mux := http.NewServeMux()
	handler.Routes(mux)

	logger.Info("starting server", zap.String("addr", cfg.ListenAddr))
	if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
