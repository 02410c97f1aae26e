package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/DevRickLin/channel-mirror/internal/biz/repo"
	"github.com/DevRickLin/channel-mirror/internal/conf"
	"github.com/DevRickLin/channel-mirror/internal/data"
	"github.com/DevRickLin/channel-mirror/internal/infra/feishu"
	"github.com/DevRickLin/channel-mirror/internal/infra/moonshot"
	"github.com/DevRickLin/channel-mirror/internal/infra/mtproto"
	"github.com/DevRickLin/channel-mirror/internal/infra/telegram"
	"github.com/DevRickLin/channel-mirror/internal/server"
	"github.com/DevRickLin/channel-mirror/internal/service"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start mirroring (default command)",
	Args:  cobra.NoArgs,
	RunE:  runMirror,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runMirror(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := conf.LoadFromEnv(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := conf.NewLogger(cfg.Log, os.Stderr)
	if cfg.RulesPath == "" {
		logger.Warn().Msg("No config.yaml found, using default rules")
	} else {
		logger.Info().Str("path", cfg.RulesPath).Msg("Loaded rules")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize clients
	var tgClient *telegram.Client
	if cfg.NeedsBot() {
		tgClient = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.APIEndpoint, logger)
		if err := tgClient.Connect(); err != nil {
			return err
		}
	}

	var userClient *mtproto.Client
	if cfg.SourceMode == conf.SourceUser {
		userClient = mtproto.NewClient(mtproto.Config{
			AppID:       cfg.MTProto.AppID,
			AppHash:     cfg.MTProto.AppHash,
			Phone:       cfg.MTProto.Phone,
			Password:    cfg.MTProto.Password,
			SessionFile: cfg.MTProto.SessionFile,
		}, promptStdin, logger)
		if err := userClient.Connect(ctx); err != nil {
			return err
		}
	}

	var feishuClient *feishu.Client
	var target repo.Target
	switch cfg.TargetPlatform {
	case conf.PlatformFeishu:
		feishuClient = feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret, logger)
		target, err = server.ResolveFeishuTarget(ctx, feishuClient, cfg.Rules.TargetChannel)
	default:
		target, err = server.ResolveTelegramTarget(tgClient, cfg.Rules.TargetChannel)
	}
	if err != nil {
		return err
	}
	logger.Info().
		Str("platform", cfg.TargetPlatform).
		Str("target", target.Name).
		Str("target_id", target.ID).
		Msg("Target resolved")

	var moonshotClient *moonshot.Client
	if cfg.ClassifierEnabled() {
		moonshotClient = moonshot.NewClient(cfg.Moonshot.APIKey, cfg.Moonshot.Model, "")
		logger.Info().Str("model", moonshotClient.Model()).Msg("Advertisement classifier enabled")
	}

	// Initialize repository layer
	repos := data.NewRepositories(tgClient, userClient, feishuClient, moonshotClient, logger)

	// Initialize usecase layer
	ucs := buildUsecases(cfg, repos.Classifier, logger)

	// Initialize service layer
	sender := service.NewSenderService(repos.Chat, repos.Media, ucs.Filter, target, logger)
	dispatch := service.NewDispatchService(ucs.Filter, ucs.Transform, ucs.Album, sender, logger)

	// Initialize server
	srv := server.NewMirrorServer(repos.Source, dispatch, logger)
	if err := srv.ResolveSources(ctx, cfg.Rules.SourceChannels); err != nil {
		return err
	}

	logger.Info().
		Int("replacements", ucs.Transform.RuleCount()).
		Int("sources", srv.SourceCount()).
		Str("source_mode", cfg.SourceMode).
		Msg("Starting channel mirror")

	err = srv.Start(ctx)
	srv.Stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info().Msg("Shut down")
	return nil
}
