package edgevec

import (
	"fmt"
	"io"

	"github.com/edgevec/edgevec/internal/config"
	"github.com/edgevec/edgevec/internal/metadata"
	"github.com/edgevec/edgevec/internal/snapshot"
)

// Save writes the index's complete state to w as a single versioned,
// checksummed snapshot (spec §4.8). Metadata is only persisted when the
// index was built with the default in-memory backend — a *metadata.
// SQLiteStore is its own durable store and is explicitly out of this
// format's scope (see metadata.SQLiteStore's doc comment).
func (idx *Index) Save(w io.Writer) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	mem, ok := idx.meta.(*metadata.Memory)
	if !ok {
		return fmt.Errorf("edgevec: save: metadata backend %T is not snapshot-able; use its own persistence", idx.meta)
	}

	return snapshot.Save(w, snapshot.Snapshot{
		Dense:     idx.dense,
		Metadata:  mem,
		Graph:     idx.graph,
		Sparse:    idx.sparse,
		BQEnabled: idx.bqStore != nil,
	})
}

// Load reconstructs an Index from a snapshot produced by Save. cfg
// supplies the non-HNSW tuning (BQ oversample factors, filter limits,
// hybrid settings) the binary format does not carry; pass nil to use
// config.Defaults(dim). If the snapshot recorded BQ as enabled, the BQ
// sketch store is regenerated from the reloaded dense buffer (spec §4.8:
// BQ sketches are derived data, never persisted directly).
func Load(r io.Reader, cfg *config.Config) (*Index, error) {
	idx := &Index{}
	snap, err := snapshot.Load(r, idx.pairDist)
	if err != nil {
		return nil, err
	}

	idx.dense = snap.Dense
	idx.meta = snap.Metadata
	idx.graph = snap.Graph
	idx.sparse = snap.Sparse

	if cfg == nil {
		cfg = config.Defaults(idx.dense.Dim())
	}
	cfg.Dim = idx.dense.Dim()
	idx.cfg = cfg

	if snap.BQEnabled {
		if err := idx.EnableBQ(); err != nil {
			return nil, fmt.Errorf("edgevec: load: rebuild bq store: %w", err)
		}
	}

	return idx, nil
}
