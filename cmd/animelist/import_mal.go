package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/animelist/internal/db"
	"github.com/jonathan/animelist/internal/observability"
	"github.com/jonathan/animelist/internal/watchlist"
)

var importMALCmd = &cobra.Command{
	Use:   "import-mal",
	Short: "Merge a MyAnimeList XML export into a user's watchlist",
	RunE:  runImportMAL,
}

var (
	importMALUser string
	importMALFile string
)

func init() {
	importMALCmd.Flags().StringVarP(&importMALUser, "user", "u", "", "Username that owns the watchlist (required)")
	importMALCmd.Flags().StringVarP(&importMALFile, "file", "f", "", "Path to the MAL export XML (required)")
	_ = importMALCmd.MarkFlagRequired("user")
	_ = importMALCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importMALCmd)
}

func runImportMAL(cmd *cobra.Command, _ []string) error {
	f, err := os.Open(importMALFile)
	if err != nil {
		return fmt.Errorf("failed to open export: %w", err)
	}
	defer f.Close()

	ctx := context.Background()
	database, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	user, err := lookupUser(ctx, database, importMALUser)
	if err != nil {
		return err
	}
	res, err := watchlist.NewImporter(database).Import(ctx, user.ID, f)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintImport(res)
	return nil
}

func lookupUser(ctx context.Context, database *db.DB, username string) (*db.User, error) {
	user, err := database.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %q not found", username)
	}
	return user, nil
}
