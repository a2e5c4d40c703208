// Command edgevec is a thin CLI driver over the public edgevec façade: flag
// parsing and snapshot I/O only, no engine logic of its own (spec.md §6:
// "the CLI is an external collaborator, not part of the core engine").
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	jsonOutput    bool
	snapshotPath  string
	dim           int
)

var rootCmd = &cobra.Command{
	Use:     "edgevec",
	Short:   "Embeddable approximate-nearest-neighbor vector database",
	Version: "0.1.0",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&snapshotPath, "snapshot", "edgevec.snap", "path to the binary snapshot file")
	rootCmd.PersistentFlags().IntVar(&dim, "dim", 0, "vector dimension (required when no snapshot exists yet)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(insertCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(compactCmd)
	rootCmd.AddCommand(watchCmd)
}

// outputJSON writes data to stdout as indented JSON.
func outputJSON(data interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// exitError prints an error to stderr and exits 1.
func exitError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
