package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// watchCmd mirrors the teacher's own "index watch" command: a long-running
// process that reloads state whenever the underlying file changes on disk,
// rather than holding a lock across writers. Reload is a full Load() call,
// never a concurrent mutation of a live index (spec's single-writer model
// at the public API boundary).
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch --snapshot and report when it is reloadable",
	Long: `Watch blocks, reloading --snapshot into memory every time it
changes on disk and printing its vector count. It is a CLI-layer
convenience for observing another process's writes (e.g. a batch
ingestion job run via "edgevec insert"); it does not itself mutate the
snapshot.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			exitError("create watcher: %v", err)
		}
		defer watcher.Close()

		dir := filepath.Dir(snapshotPath)
		if err := watcher.Add(dir); err != nil {
			exitError("watch %s: %v", dir, err)
		}

		if idx, err := openIndex(); err == nil {
			fmt.Printf("loaded %s: %d vector(s)\n", snapshotPath, idx.Len())
		}

		fmt.Printf("watching %s for changes (ctrl-c to stop)\n", snapshotPath)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Clean(event.Name) != filepath.Clean(snapshotPath) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				idx, err := openIndex()
				if err != nil {
					fmt.Fprintf(os.Stderr, "reload %s: %v\n", snapshotPath, err)
					continue
				}
				fmt.Printf("reloaded %s: %d vector(s)\n", snapshotPath, idx.Len())
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				fmt.Fprintf(os.Stderr, "watch error: %v\n", err)
			}
		}
	},
}
