package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Rebuild the index, dropping tombstoned vectors",
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := openIndex()
		if err != nil {
			exitError("%v", err)
		}

		before := idx.Len()
		remap := idx.Compact()
		if err := saveIndex(idx); err != nil {
			exitError("%v", err)
		}

		if jsonOutput {
			return outputJSON(map[string]interface{}{
				"before": before,
				"after":  idx.Len(),
				"remapped": len(remap),
			})
		}
		fmt.Printf("compacted %d -> %d live vectors\n", before, idx.Len())
		return nil
	},
}
