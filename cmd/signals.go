package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/stealthee/radar-cli/internal/store"
)

var (
	signalsLimit         int
	signalsMinLikelihood float64
	signalsRunID         string
)

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "List recently stored signals",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		records, err := st.ListSignals(ctx, store.SignalFilter{
			RunID:         signalsRunID,
			MinLikelihood: signalsMinLikelihood,
			Limit:         signalsLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list signals")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	},
}

func init() {
	signalsCmd.Flags().IntVar(&signalsLimit, "limit", 20, "maximum records to list")
	signalsCmd.Flags().Float64Var(&signalsMinLikelihood, "min-likelihood", 0, "only signals at or above this likelihood")
	signalsCmd.Flags().StringVar(&signalsRunID, "run-id", "", "only signals from this run")
	rootCmd.AddCommand(signalsCmd)
}
