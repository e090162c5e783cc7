package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/stealthee/radar-cli/pkg/tavily"
)

var (
	searchQuery      string
	searchNumResults int
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search monitored tech publications without running the pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Tavily.Key == "" {
			return eris.New("search is not configured: set the Tavily API key")
		}

		numResults := searchNumResults
		if numResults <= 0 {
			numResults = cfg.Pipeline.DefaultResults
		}

		client := tavily.NewClient(cfg.Tavily.Key, tavily.WithBaseURL(cfg.Tavily.BaseURL))
		resp, err := client.Search(cmd.Context(), tavily.SearchRequest{
			Query:          searchQuery,
			MaxResults:     numResults,
			IncludeDomains: cfg.Pipeline.SearchDomains,
		})
		if err != nil {
			return eris.Wrap(err, "search")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp.Results)
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchQuery, "query", "", "search query (required)")
	searchCmd.Flags().IntVar(&searchNumResults, "num-results", 0, "results to request (default from config)")
	_ = searchCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(searchCmd)
}
