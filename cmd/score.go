package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/stealthee/radar-cli/internal/score"
	anthropicpkg "github.com/stealthee/radar-cli/pkg/anthropic"
)

var (
	scoreText  string
	scoreFile  string
	scoreTitle string
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a single signal text for stealth launch likelihood",
	RunE: func(cmd *cobra.Command, args []string) error {
		text := scoreText
		if scoreFile != "" {
			data, err := os.ReadFile(scoreFile)
			if err != nil {
				return eris.Wrapf(err, "read %s", scoreFile)
			}
			text = string(data)
		}
		if text == "" {
			return eris.New("provide signal text via --text or --file")
		}

		scorer := score.NewScorer(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model)
		scored, block, err := scorer.ScoreOne(cmd.Context(), text, scoreTitle)
		if err != nil {
			if block != "" {
				fmt.Println(block)
			}
			return eris.Wrap(err, "score signal")
		}

		fmt.Println(block)
		fmt.Printf("\nDecoded: likelihood=%.2f confidence=%s\n", scored.Likelihood, scored.Confidence)
		return nil
	},
}

func init() {
	scoreCmd.Flags().StringVar(&scoreText, "text", "", "signal text to score")
	scoreCmd.Flags().StringVar(&scoreFile, "file", "", "file containing the signal text")
	scoreCmd.Flags().StringVar(&scoreTitle, "title", "Untitled Signal", "signal title")
	rootCmd.AddCommand(scoreCmd)
}
