package cmd

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go-workshop-sync/index"

	"github.com/blevesearch/bleve/v2"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the index of downloaded items",
	Long: `Runs a Bleve query string against the index built by the download command.
Fields are addressed by name, e.g. '+type:Blueprint +tags:survival' or 'title:drill'.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().String("index", "", "Index path (default from config)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	indexPath, _ := cmd.Flags().GetString("index")
	if indexPath == "" {
		indexPath = globalConfig.IndexPath
	}
	if indexPath == "" {
		return errors.New("index path is not configured (--index or IndexPath in config)")
	}
	query := strings.Join(args, " ")

	log.Infof("Opening Bleve index at: %s", indexPath)
	// Open rather than create: searching must not leave an empty index behind.
	bleveIndex, err := bleve.Open(indexPath)
	if err != nil {
		if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			return fmt.Errorf("index not found at %s, run the download command first", indexPath)
		}
		return fmt.Errorf("failed to open index at %s: %w", indexPath, err)
	}
	defer func() {
		if err := bleveIndex.Close(); err != nil {
			log.Errorf("Error closing Bleve index: %v", err)
		}
	}()

	log.Debugf("Performing search with query: %s", query)
	results, err := index.SearchIndex(bleveIndex, query)
	if err != nil {
		return fmt.Errorf("error performing search: %w", err)
	}
	log.Infof("Search finished. Hits: %d, Total: %d, Took: %s", len(results.Hits), results.Total, results.Took)

	if results.Total == 0 {
		fmt.Println("No results found matching your query.")
		return nil
	}

	fmt.Println("--- Search Results ---")
	for i, hit := range results.Hits {
		fmt.Printf("[%d] ID: %s (Score: %.2f)\n", i+1, hit.ID, hit.Score)
		fields := make([]string, 0, len(hit.Fields))
		for field := range hit.Fields {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			fmt.Printf("  %s: %v\n", field, hit.Fields[field])
		}
		fmt.Println("---")
	}
	return nil
}
