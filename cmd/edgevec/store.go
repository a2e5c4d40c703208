package main

import (
	"fmt"
	"os"

	"github.com/edgevec/edgevec"
)

// openIndex loads the index from snapshotPath if it exists, or creates a
// fresh one over --dim if it doesn't yet.
func openIndex() (*edgevec.Index, error) {
	f, err := os.Open(snapshotPath)
	if os.IsNotExist(err) {
		if dim <= 0 {
			return nil, fmt.Errorf("no snapshot at %s yet; pass --dim to create one", snapshotPath)
		}
		return edgevec.New(dim, edgevec.Options{})
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", snapshotPath, err)
	}
	defer f.Close()
	return edgevec.Load(f, nil)
}

// saveIndex writes idx back to snapshotPath, replacing it atomically via a
// temp-file rename so a crash mid-write never corrupts the last good
// snapshot.
func saveIndex(idx *edgevec.Index) error {
	tmp := snapshotPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if err := idx.Save(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("save: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, snapshotPath); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
