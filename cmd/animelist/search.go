package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/animelist/internal/observability"
	"github.com/jonathan/animelist/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Fuzzy search catalog titles",
	RunE:  runSearch,
}

var (
	searchQuery  string
	searchLimit  int
	searchOffset int
)

func init() {
	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", "", "Title to search for (required)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "Maximum number of matches")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "Number of matches to skip")
	_ = searchCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, _ []string) error {
	if searchLimit < 0 || searchOffset < 0 {
		return fmt.Errorf("--limit and --offset must not be negative")
	}

	ctx := context.Background()
	database, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	page, err := search.NewService(newCatalogLoader(database)).Titles(ctx, searchQuery, searchLimit, searchOffset)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), page)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintSearch(searchQuery, searchOffset, page)
	return nil
}
