package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"grimoire/internal/search"
)

var (
	searchLimit   int
	searchExclude string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Find reference candidates across every entity type",
	Long: `Queries the rule, ability, feat and spell collections concurrently and
ranks the merged result with typo-tolerant fuzzy matching. An empty query
lists every active entity in the default order.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", search.DefaultLimit, "maximum number of results")
	searchCmd.Flags().StringVar(&searchExclude, "exclude", "", "entity id to leave out (the entity being edited)")
	rootCmd.AddCommand(searchCmd)
}

func newAggregator() (*search.Aggregator, error) {
	c, err := newAPIClient()
	if err != nil {
		return nil, err
	}
	return search.NewAggregator(search.NewHTTPCollection(c), getLogger()), nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := ""
	if len(args) == 1 {
		query = args[0]
	}

	agg, err := newAggregator()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	candidates := agg.Search(ctx, query, searchLimit, searchExclude)

	if jsonOut {
		data, err := json.MarshalIndent(candidates, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(candidates) == 0 {
		cmd.Println("No results found.")
		return nil
	}
	for i, c := range candidates {
		cmd.Printf("  [%d] %s (%s %s)\n", i+1, c.Label, c.EntityType, c.ID)
		if c.Secondary != "" {
			cmd.Printf("      %s\n", c.Secondary)
		}
	}
	return nil
}
