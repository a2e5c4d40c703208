// Package edgevec is EdgeVec's public façade (spec §2's L3 layer): the
// single entry point that owns the dense store, the HNSW graph, metadata,
// and the optional BQ and sparse stores, and exposes insert/search/delete/
// compact/save/load as one coherent API.
//
// Per spec §5, the façade is the single writer: every exported method
// takes the façade's own mutex before touching any owned store, mirroring
// the teacher's HNSWStore (internal/vectordb/hnsw.go), which guards its
// dense index and metadata store behind one sync.RWMutex rather than
// giving each component its own lock.
package edgevec

import (
	"fmt"
	"sync"

	"github.com/edgevec/edgevec/internal/bq"
	"github.com/edgevec/edgevec/internal/config"
	"github.com/edgevec/edgevec/internal/filter"
	"github.com/edgevec/edgevec/internal/hnsw"
	"github.com/edgevec/edgevec/internal/metadata"
	"github.com/edgevec/edgevec/internal/metaindex"
	"github.com/edgevec/edgevec/internal/simil"
	"github.com/edgevec/edgevec/internal/sparse"
	"github.com/edgevec/edgevec/internal/storage"
)

// Options configures a new Index. All fields are optional; the zero value
// builds a dense-only index with in-memory metadata and no filter index.
type Options struct {
	// Config supplies HNSW/BQ/filter/hybrid tuning. Defaults(dim) is used
	// if nil.
	Config *config.Config
	// Metadata is the metadata backend. metadata.NewMemory() is used if
	// nil. Pass a *metadata.SQLiteStore for durable metadata (spec §4.8's
	// enrichment path, orthogonal to Save/Load's binary snapshot).
	Metadata metadata.Store
	// SparseDim enables the sparse store over column space [0, SparseDim)
	// when positive. Zero means no sparse support.
	SparseDim int
	// MetaIndexFields, if non-empty, builds an internal/metaindex index
	// over the named record fields, giving the filter strategy selector
	// real selectivity estimates instead of fixed heuristics.
	MetaIndexFields []string
}

// Result is one scored hit from any search method, decorated with its
// metadata record when one exists. Distance is ascending-closer (lower is
// better) for Search, SearchWithFilter, and SearchBQ. HybridSearch has no
// single native distance scale once two legs are fused, so it reports the
// negated fused score there instead, preserving the same "lower is
// better" ordering convention.
type Result struct {
	ID       storage.VectorId
	Distance float32
	Metadata metadata.Record
}

// Index is EdgeVec's embeddable vector index. Zero value is not usable;
// construct with New or Load.
type Index struct {
	mu sync.RWMutex

	cfg *config.Config

	dense   *storage.Store
	meta    metadata.Store
	graph   *hnsw.Graph
	bqStore *bq.Store // nil unless EnableBQ has been called
	sparse  *sparse.Store
	metaIdx *metaindex.Index // nil unless Options.MetaIndexFields was set

	// filterOpts tunes string comparison semantics (case folding,
	// collation) for SearchWithFilter. Nil reproduces plain byte-wise
	// comparison.
	filterOpts *filter.Options
}

// SetFilterOptions installs opts for subsequent SearchWithFilter calls, or
// clears them if opts is nil.
func (idx *Index) SetFilterOptions(opts *filter.Options) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.filterOpts = opts
}

// New creates an empty Index over vectors of dimension dim.
func New(dim int, opts Options) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("edgevec: dim must be positive")
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = config.Defaults(dim)
	}
	cfg.Dim = dim

	meta := opts.Metadata
	if meta == nil {
		meta = metadata.NewMemory()
	}

	idx := &Index{
		cfg:   cfg,
		dense: storage.New(dim),
		meta:  meta,
	}
	idx.graph = hnsw.New(cfg.HNSWConfig(), idx.pairDist)

	if opts.SparseDim > 0 {
		idx.sparse = sparse.New(opts.SparseDim)
	}

	if len(opts.MetaIndexFields) > 0 {
		mi, err := metaindex.New(opts.MetaIndexFields)
		if err != nil {
			return nil, fmt.Errorf("edgevec: build metadata index: %w", err)
		}
		idx.metaIdx = mi
	}

	return idx, nil
}

// pairDist is the graph's dense pair-distance function, a closure over the
// façade's own storage — the same shape buildIndex's test helper and
// internal/snapshot's Load caller use.
func (idx *Index) pairDist(a, b storage.VectorId) float32 {
	return simil.CosineDistance(idx.dense.GetRaw(a), idx.dense.GetRaw(b))
}

// Dim returns the configured vector dimension.
func (idx *Index) Dim() int { return idx.dense.Dim() }

// Len returns the number of currently-live vectors.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dense.Len()
}

// BQEnabled reports whether binary quantization is currently active.
func (idx *Index) BQEnabled() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.bqStore != nil
}
