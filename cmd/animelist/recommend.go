package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/animelist/internal/observability"
	"github.com/jonathan/animelist/internal/recommend"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Print recommendations for a user or a set of anime ids",
	Long: `Print recommendations. With --ids the given anime seed the
recommendation, otherwise the user's watched anime are used.`,
	RunE: runRecommend,
}

var (
	recommendUser          string
	recommendIDs           []int64
	recommendLimit         int
	recommendFromWatchlist bool
)

func init() {
	recommendCmd.Flags().StringVarP(&recommendUser, "user", "u", "", "Username whose watchlist seeds the recommendation")
	recommendCmd.Flags().Int64SliceVar(&recommendIDs, "ids", nil, "Anime ids to recommend from (comma separated)")
	recommendCmd.Flags().IntVarP(&recommendLimit, "limit", "n", recommend.DefaultLimit, "Number of recommendations")
	recommendCmd.Flags().BoolVar(&recommendFromWatchlist, "from-watchlist", false, "Weight seeds by the user's ratings")
	rootCmd.AddCommand(recommendCmd)
}

func runRecommend(cmd *cobra.Command, _ []string) error {
	if recommendUser == "" && len(recommendIDs) == 0 {
		return fmt.Errorf("must provide --user or --ids")
	}
	if recommendFromWatchlist && recommendUser == "" {
		return fmt.Errorf("--from-watchlist requires --user")
	}

	ctx := context.Background()
	database, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	req := recommend.Request{
		AnimeIDs:      recommendIDs,
		Limit:         recommendLimit,
		FromWatchlist: recommendFromWatchlist,
		MinRating:     cfg.Recommend.MinRating,
	}
	if recommendUser != "" {
		user, err := lookupUser(ctx, database, recommendUser)
		if err != nil {
			return err
		}
		req.UserID = user.ID
	}

	engine := recommend.NewEngine(newCatalogLoader(database), database, cfg.Recommend.MinRating)
	res, err := engine.Recommend(ctx, req)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintRecommendations(res)
	return nil
}
