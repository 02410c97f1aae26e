package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/DevRickLin/channel-mirror/internal/biz"
	"github.com/DevRickLin/channel-mirror/internal/conf"
	"github.com/DevRickLin/channel-mirror/internal/mcp"
)

// mirror-mcp serves the mirror rules as MCP tools over stdio. Logs go to
// stderr since stdout carries the protocol.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := conf.LoadFromEnv("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := conf.NewLogger(conf.LogConfig{Level: cfg.Log.Level, Format: "json"}, os.Stderr)

	ucs := biz.NewUsecases(cfg.ToRuleSet(), nil, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := mcp.NewServer(cfg, ucs.Filter, ucs.Transform, "1.0.0")
	logger.Info().Str("rules", cfg.RulesPath).Msg("MCP server starting on stdio")
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal().Err(err).Msg("MCP server error")
	}
}
