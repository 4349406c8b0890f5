package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/DevRickLin/feishu-media-bridge/internal/api"
	"github.com/DevRickLin/feishu-media-bridge/internal/biz/usecase"
	"github.com/DevRickLin/feishu-media-bridge/internal/conf"
	"github.com/DevRickLin/feishu-media-bridge/internal/data"
	"github.com/DevRickLin/feishu-media-bridge/internal/infra/feishu"
	"github.com/DevRickLin/feishu-media-bridge/internal/infra/ffmpeg"
	"github.com/DevRickLin/feishu-media-bridge/internal/infra/ytdlp"
	"github.com/DevRickLin/feishu-media-bridge/internal/server"
	"github.com/DevRickLin/feishu-media-bridge/internal/service"
	"github.com/DevRickLin/feishu-media-bridge/pkg/logger"
	"github.com/DevRickLin/feishu-media-bridge/pkg/util"
)

// maxTrackedChats bounds the per-chat selection and attachment caches
const maxTrackedChats = 10000

func main() {
	envErr := godotenv.Load()

	cfg, err := conf.LoadFromEnv()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger.Init(cfg.Log.Env, cfg.Log.Level)
	log := logger.Component("main")
	if envErr != nil {
		log.Info("no .env file found, using environment variables")
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", logger.FieldError, err)
		os.Exit(1)
	}

	// Initialize clients
	feishuClient := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret, cfg.Feishu.SendQPS, cfg.Feishu.SendBurst)
	ytdlpClient := ytdlp.NewClient(cfg.Media.YtDlpPath, nil)
	transcoder := ffmpeg.NewTranscoder(cfg.Media.FFmpegPath, nil)

	// Initialize repository layer
	repos, err := data.NewRepositories(feishuClient, ytdlpClient, transcoder, cfg.Storage.DBPath)
	if err != nil {
		log.Error("failed to create repositories", logger.FieldError, err)
		os.Exit(1)
	}
	defer repos.Close()
	log.Info("config database opened", logger.FieldPath, cfg.Storage.DBPath)

	// Initialize usecase layer
	ctx := context.Background()
	texts := cfg.ToReplyTexts()

	accessUC := usecase.NewAccessUsecase(cfg.Access.ToBotConfig(), repos.Config)
	if err := accessUC.Restore(ctx); err != nil {
		log.Error("failed to restore access config", logger.FieldError, err)
		os.Exit(1)
	}
	selectionUC := usecase.NewSelectionUsecase(cfg.Media.SelectionTTL, maxTrackedChats)
	memo := usecase.NewAttachmentMemo(cfg.Media.SelectionTTL, maxTrackedChats)
	tracker := usecase.NewJobTracker()
	pipelineCfg := cfg.Media.ToPipelineConfig()
	pipelineUC := usecase.NewPipelineUsecase(pipelineCfg, repos.Search, repos.Fetch, repos.Transcode, repos.Transport, selectionUC, texts)

	// Initialize service layer
	router := service.NewRouterService(service.RouterConfig{
		AudioFormat:  pipelineCfg.AudioFormat,
		AudioBitrate: pipelineCfg.AudioBitrate,
		ReplyTimeout: cfg.Media.SendTimeout,
	}, accessUC, selectionUC, memo, tracker, pipelineUC, repos.Transport, texts)

	janitor := service.NewJanitor(pipelineCfg.WorkDir, cfg.Media.ScratchMaxAge, cfg.Media.JanitorInterval)
	janitor.Start(ctx)

	// Initialize admin API
	apiServer := api.NewServer(accessUC, tracker, repos.Transport, cfg.API.Port, cfg.API.Token)
	util.SafeGo(func() {
		if err := apiServer.Start(); err != nil {
			log.Error("API server error", logger.FieldError, err)
		}
	})

	srv := server.NewFeishuServer(feishuClient, router, tracker)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	util.SafeGo(func() {
		<-sigCh
		log.Info("shutting down")
		srv.Stop()
		if n := tracker.CancelAll(); n > 0 {
			log.Info("cancelled running jobs", logger.FieldCount, n)
		}
		router.Wait()
		janitor.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := apiServer.Stop(shutdownCtx); err != nil {
			log.Warn("API shutdown failed", logger.FieldError, err)
		}
		close(done)
	})

	cfgSnapshot := accessUC.Snapshot()
	log.Info("starting Feishu media bridge",
		"admin", cfgSnapshot.Admin,
		"public", cfgSnapshot.PublicMode,
		logger.FieldCount, len(cfgSnapshot.AllowList),
		"audio_format", string(pipelineCfg.AudioFormat),
		"api_port", cfg.API.Port,
	)
	if err := srv.Start(); err != nil {
		log.Error("server error", logger.FieldError, err)
		os.Exit(1)
	}
	<-done
}
