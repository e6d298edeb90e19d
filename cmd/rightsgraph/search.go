package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cinelex/rightsgraph"
	"github.com/cinelex/rightsgraph/pkg/config"
	"github.com/cinelex/rightsgraph/pkg/logger"
	"github.com/cinelex/rightsgraph/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search [query...]",
	Short: "Run a semantic search against the catalog",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().Int("limit", 10, "Maximum number of results")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	client, err := rightsgraph.New(cfg, log)
	if err != nil {
		return err
	}
	defer client.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	res, err := client.SemanticSearch(cmd.Context(), strings.Join(args, " "), limit)
	if err != nil {
		return err
	}

	if res.Mode == types.SearchModeFallback {
		fmt.Println("(embedding provider unavailable; lexical ranking)")
	}
	for i, item := range res.Items {
		fmt.Printf("%2d. %-40s %.4f\n", i+1, item.Node.Title, item.Score)
	}
	return nil
}
