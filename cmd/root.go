package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stealthee/radar-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "radar-cli",
	Short: "Stealth launch detection pipeline",
	Long:  "Searches tech publications for stealth product launch signals, enriches candidate pages, scores them with Claude, persists results, and alerts on high-likelihood signals.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
