package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/stealthee/radar-cli/internal/enrich"
	"github.com/stealthee/radar-cli/internal/model"
	"github.com/stealthee/radar-cli/pkg/nimble"
)

var (
	extractURL    string
	extractFields []string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Fetch a URL, strip markup, and optionally parse target fields",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		fetcher := enrich.NewHTTPFetcher(cfg.Pipeline.FetchRatePerSec)
		res, err := fetcher.Fetch(ctx, extractURL)
		if err != nil {
			return eris.Wrap(err, "fetch")
		}

		text := enrich.Clean(res.Body)
		if text == "" {
			return eris.Errorf("%s produced no visible text", extractURL)
		}

		if len(extractFields) > 0 {
			parser := nimble.NewClient(cfg.Nimble.Key, nimble.WithBaseURL(cfg.Nimble.BaseURL))
			fields, err := parser.ParseFields(ctx, res.Body, extractFields)
			if err != nil {
				return eris.Wrap(err, "parse fields")
			}
			for _, name := range extractFields {
				if v, ok := fields[name]; ok {
					fmt.Printf("%s: %s\n", model.FieldLabel(name), v)
				}
			}
			fmt.Println()
		}

		fmt.Println(text)
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractURL, "url", "", "URL to fetch (required)")
	extractCmd.Flags().StringSliceVar(&extractFields, "fields", nil, "fields to parse from the page")
	_ = extractCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(extractCmd)
}
