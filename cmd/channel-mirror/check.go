package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DevRickLin/channel-mirror/internal/conf"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Load and compile the configuration, then print a rule summary",
	Long: `Load the environment and rules file, compile every pattern and print what
would run. Exits non-zero when the configuration is invalid or a pattern does
not compile. No chat service is contacted.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := conf.LoadFromEnv(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateRules(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := conf.NewLogger(cfg.Log, os.Stderr)
	ucs := buildUsecases(cfg, nil, logger)
	filters := cfg.ToFilterConfig()

	out := cmd.OutOrStdout()
	rulesPath := cfg.RulesPath
	if rulesPath == "" {
		rulesPath = "(built-in defaults)"
	}
	fmt.Fprintf(out, "Rules file:        %s\n", rulesPath)
	fmt.Fprintf(out, "Target:            %s (%s)\n", cfg.Rules.TargetChannel, cfg.TargetPlatform)
	fmt.Fprintf(out, "Sources:           %s (%s)\n", strings.Join(cfg.Rules.SourceChannels, ", "), cfg.SourceMode)
	fmt.Fprintf(out, "Replacements:      %d/%d compiled\n", ucs.Transform.RuleCount(), len(cfg.Rules.Replacements))
	fmt.Fprintf(out, "Negative keywords: %d\n", len(filters.NegativeKeywords))
	fmt.Fprintf(out, "Negative patterns: %d/%d compiled\n", len(ucs.Filter.PatternSources()), len(filters.NegativePatterns))
	fmt.Fprintf(out, "Required keywords: %d\n", len(filters.RequireKeywords))
	fmt.Fprintf(out, "Ignore forwarded:  %v\n", filters.IgnoreForwarded)
	fmt.Fprintf(out, "Length limits:     min=%d max=%d\n", filters.MinLength, filters.MaxLength)
	fmt.Fprintf(out, "Skipped files:     %s\n", strings.Join(filters.SkipFileExtensions, ", "))
	fmt.Fprintf(out, "Classifier:        %v\n", cfg.ClassifierEnabled())
	fmt.Fprintf(out, "Album settle:      %s\n", cfg.ToAlbumConfig().SettleDelay)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(out, "Warning: %v (required for run)\n", err)
	}

	invalid := len(cfg.Rules.Replacements) - ucs.Transform.RuleCount() +
		len(filters.NegativePatterns) - len(ucs.Filter.PatternSources())
	if invalid > 0 {
		return fmt.Errorf("%d pattern(s) failed to compile, see log above", invalid)
	}
	return nil
}
