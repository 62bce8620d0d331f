package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/username/tradelink/src/config"
	"github.com/username/tradelink/src/logger"
)

const (
	appName = "tradelink"
	version = "v0.4.0"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Link trading signal screenshots with their result screenshots",
		Version: version,
		Long: `tradelink reads the fields recognized on trading screenshots, pairs every signal
with the result that best matches it, and reports the resulting trades ordered by ROI.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadConfig(); err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			logger.InitLogger(config.Cfg.LogLevel)
			return nil
		},
	}

	rootCmd.AddCommand(newMatchCmd(), newServeCmd(), newTokenCmd())
	return rootCmd
}
