// Command media-mcp serves media search and bot status tools over MCP stdio.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/DevRickLin/feishu-media-bridge/internal/api"
	"github.com/DevRickLin/feishu-media-bridge/internal/data"
	"github.com/DevRickLin/feishu-media-bridge/internal/infra/ytdlp"
	"github.com/DevRickLin/feishu-media-bridge/internal/mcp"
	"github.com/DevRickLin/feishu-media-bridge/pkg/logger"
)

const version = "v1.0.0"

type config struct {
	YtDlpPath string `env:"YTDLP_PATH" envDefault:"yt-dlp"`
	APIURL    string `env:"MEDIA_API_URL"`
	APIPort   int    `env:"API_PORT" envDefault:"9876"`
	APIToken  string `env:"API_TOKEN"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
}

func main() {
	_ = godotenv.Load()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	logger.InitStderr(cfg.LogLevel)
	log := logger.Component("media-mcp")

	if cfg.APIURL == "" {
		cfg.APIURL = fmt.Sprintf("http://127.0.0.1:%d", cfg.APIPort)
	}

	search := data.NewMediaRepo(ytdlp.NewClient(cfg.YtDlpPath, nil), nil)
	server := mcp.NewServer(search, api.NewClient(cfg.APIURL, cfg.APIToken), version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("media-mcp started", "api", cfg.APIURL)
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("MCP server error", logger.FieldError, err)
	}
}
