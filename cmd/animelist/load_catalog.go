package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/animelist/internal/catalog"
	"github.com/jonathan/animelist/internal/observability"
)

var loadCatalogCmd = &cobra.Command{
	Use:   "load-catalog",
	Short: "Bulk load an anime-offline-database JSON dump into the catalog",
	Long:  "Load an anime-offline-database dump. A populated catalog is left alone unless --replace is given.",
	RunE:  runLoadCatalog,
}

var (
	loadCatalogPath     string
	loadCatalogURL      string
	loadCatalogReplace  bool
	loadCatalogValidate bool
)

func init() {
	loadCatalogCmd.Flags().StringVarP(&loadCatalogPath, "file", "f", "", "Path to the dump (defaults to catalog.data_path)")
	loadCatalogCmd.Flags().StringVar(&loadCatalogURL, "url", "", "Download the dump from this URL instead (defaults to catalog.data_url)")
	loadCatalogCmd.Flags().BoolVar(&loadCatalogReplace, "replace", false, "Truncate the catalog before loading")
	loadCatalogCmd.Flags().BoolVar(&loadCatalogValidate, "validate", false, "Validate the dump against the offline-database schema")
	rootCmd.AddCommand(loadCatalogCmd)
}

func runLoadCatalog(cmd *cobra.Command, _ []string) error {
	path, dumpURL := loadCatalogPath, loadCatalogURL
	if path != "" && dumpURL != "" {
		return fmt.Errorf("cannot use --file with --url")
	}
	if path == "" && dumpURL == "" {
		path, dumpURL = cfg.Catalog.DataPath, cfg.Catalog.DataURL
	}
	validate := loadCatalogValidate
	if !cmd.Flags().Changed("validate") {
		validate = cfg.Catalog.ValidateSchema
	}

	ctx := context.Background()
	database, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	res, err := loadCatalog(ctx, database, nil, path, dumpURL, catalog.LoadOptions{Replace: loadCatalogReplace, Validate: validate})
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintCatalogLoad(res)
	return nil
}
