package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/DevRickLin/channel-mirror/internal/biz"
	"github.com/DevRickLin/channel-mirror/internal/biz/repo"
	"github.com/DevRickLin/channel-mirror/internal/conf"
)

const version = "1.0.0"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "channel-mirror",
	Short: "Mirror posts from Telegram source channels to a target channel",
	Long: `channel-mirror watches one or more Telegram channels and re-posts their
messages to a target channel, dropping unwanted posts and rewriting text on
the way. Albums are collected and re-posted as one group.

Secrets come from the environment (or a .env file), rules from config.yaml.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(loadDotEnv)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "rules file (default: search config.yaml, configs/config.yaml, /etc/channel-mirror/config.yaml)")
	rootCmd.RunE = runMirror
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
}

// buildUsecases compiles the configured rules
func buildUsecases(cfg *conf.Config, classifier repo.ClassifierRepo, logger zerolog.Logger) *biz.Usecases {
	return biz.NewUsecases(cfg.ToRuleSet(), classifier, logger)
}
