package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	searchVector string
	searchK      int
	searchEf     int
	searchFilter string
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the index for nearest neighbors to a query vector",
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := openIndex()
		if err != nil {
			exitError("%v", err)
		}

		var q []float32
		if err := json.Unmarshal([]byte(searchVector), &q); err != nil {
			exitError("parse --vector as a JSON float array: %v", err)
		}

		var results []resultView
		if searchFilter != "" {
			hits, err := idx.SearchWithFilter(q, searchK, searchFilter)
			if err != nil {
				exitError("search: %v", err)
			}
			results = viewResults(hits)
		} else {
			hits, err := idx.Search(q, searchK, searchEf)
			if err != nil {
				exitError("search: %v", err)
			}
			results = viewResults(hits)
		}

		if jsonOutput {
			return outputJSON(results)
		}
		for _, r := range results {
			fmt.Printf("%d\t%.6f\t%v\n", r.ID, r.Distance, r.Metadata)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchVector, "vector", "", "query vector, as a JSON float array (required)")
	searchCmd.Flags().IntVar(&searchK, "k", 10, "number of results to return")
	searchCmd.Flags().IntVar(&searchEf, "ef", 0, "search beam width (0 uses the configured default)")
	searchCmd.Flags().StringVar(&searchFilter, "filter", "", "metadata filter predicate, e.g. `category = \"docs\"`")
	_ = searchCmd.MarkFlagRequired("vector")
}
