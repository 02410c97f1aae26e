package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/DevRickLin/channel-mirror/internal/biz/domain"
	"github.com/DevRickLin/channel-mirror/internal/conf"
)

var (
	previewText      string
	previewForwarded bool
	previewFile      string
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Run the filter and transform rules over a sample text",
	Long: `Dry run: evaluate the filter rules against --text and print the decision
and, when the message would be kept, the rewritten text. The advertisement
classifier is not called.`,
	Args: cobra.NoArgs,
	RunE: runPreview,
}

func init() {
	previewCmd.Flags().StringVarP(&previewText, "text", "t", "", "sample message text")
	previewCmd.Flags().BoolVar(&previewForwarded, "forwarded", false, "treat the sample as forwarded")
	previewCmd.Flags().StringVar(&previewFile, "file", "", "attached document file name")
	previewCmd.MarkFlagRequired("text")
	rootCmd.AddCommand(previewCmd)
}

func runPreview(cmd *cobra.Command, args []string) error {
	cfg, err := conf.LoadFromEnv(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := conf.NewLogger(cfg.Log, os.Stderr)
	ucs := buildUsecases(cfg, nil, logger)

	msg := &domain.InboundMessage{Text: previewText, IsForwarded: previewForwarded}
	decision := ucs.Filter.Evaluate(msg, previewText)

	out := cmd.OutOrStdout()
	if previewFile != "" && ucs.Filter.ShouldSkipFile(previewFile) {
		fmt.Fprintf(out, "File %q would not be sent (skipped extension)\n", previewFile)
	}
	if !decision.ShouldCopy {
		fmt.Fprintf(out, "DROP: %s\n", decision.Reason)
		return nil
	}

	fmt.Fprintln(out, "KEEP")
	fmt.Fprintln(out, ucs.Transform.Transform(previewText))
	return nil
}
