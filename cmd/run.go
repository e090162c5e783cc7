package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stealthee/radar-cli/internal/pipeline"
	"github.com/stealthee/radar-cli/internal/registry"
)

var (
	runQuery      string
	runNumResults int
	runFields     []string
	runFieldsFile string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full detection pipeline for a query",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		fields, err := resolveFields(runFields, runFieldsFile)
		if err != nil {
			return err
		}

		report, err := env.Pipeline.Run(ctx, pipeline.Request{
			Query:        runQuery,
			NumResults:   runNumResults,
			TargetFields: fields,
		})
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		if report.State == pipeline.StateDone {
			zap.L().Info("run complete",
				zap.String("run_id", report.RunID),
				zap.Int("urls", report.Summary.CandidateURLs),
				zap.Int("stored", report.Summary.SignalsStored),
				zap.Int("alerts", report.Summary.AlertsDispatched),
			)
		}

		fmt.Println(report.Render())
		return nil
	},
}

// resolveFields turns the --fields / --fields-file flags into a field list.
// Both empty means the built-in defaults apply downstream.
func resolveFields(names []string, file string) ([]registry.Field, error) {
	if file != "" {
		fields, err := registry.Load(file)
		if err != nil {
			return nil, eris.Wrap(err, "load fields file")
		}
		return fields, nil
	}
	if len(names) == 0 {
		return nil, nil
	}
	fields := make([]registry.Field, len(names))
	for i, n := range names {
		fields[i] = registry.Field{Name: n}
	}
	return fields, nil
}

func init() {
	runCmd.Flags().StringVar(&runQuery, "query", "", "search query (required)")
	runCmd.Flags().IntVar(&runNumResults, "num-results", 0, "search results to request (default from config)")
	runCmd.Flags().StringSliceVar(&runFields, "fields", nil, "target fields to extract from each candidate page")
	runCmd.Flags().StringVar(&runFieldsFile, "fields-file", "", "YAML field registry file")
	_ = runCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(runCmd)
}
