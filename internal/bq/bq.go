// Package bq implements binary quantization and oversampled rescoring
// (spec §4.4): each dense vector is reduced to a sign-bit sketch, the HNSW
// graph is searched using Hamming distance over those sketches, and the
// resulting candidate set is rescored against the exact F32 vectors before
// truncating to k. BQ does not alter graph structure — internal/hnsw's
// Graph is shared unchanged between the dense and BQ search paths; only
// the QueryDistanceFunc plugged into Graph.Search differs.
package bq

import (
	"fmt"
	"sort"

	"github.com/bits-and-blooms/bitset"

	"github.com/edgevec/edgevec/internal/errs"
	"github.com/edgevec/edgevec/internal/hnsw"
	"github.com/edgevec/edgevec/internal/simil"
	"github.com/edgevec/edgevec/internal/storage"
)

// Default and high-recall oversample factors, per spec §4.4.
const (
	DefaultOversample    = 5
	HighRecallOversample = 15
)

// Store holds one bit-packed sketch per dense vector, in the same
// append-only, 1-indexed order as internal/storage — the façade inserts
// into both stores in lockstep whenever BQ is enabled.
type Store struct {
	dim     int
	vectors []*bitset.BitSet
}

// New creates an empty Store for vectors of dimension dim. Panics if dim
// is not positive, matching internal/storage.New's contract.
func New(dim int) *Store {
	if dim <= 0 {
		panic("bq: dim must be positive")
	}
	return &Store{dim: dim}
}

// Dim returns the configured vector dimension.
func (s *Store) Dim() int { return s.dim }

// Len returns the number of sketches stored (including tombstoned ones —
// BQ mirrors the dense store's indexing exactly, it has no deletion bitmap
// of its own).
func (s *Store) Len() int { return len(s.vectors) }

// Insert binarizes v and appends its sketch, returning the newly assigned
// VectorId. Callers are responsible for calling this in lockstep with the
// dense store's Insert so ids line up.
func (s *Store) Insert(v []float32) (storage.VectorId, error) {
	if len(v) != s.dim {
		return 0, fmt.Errorf("%w: got %d, want %d", errs.ErrDimensionMismatch, len(v), s.dim)
	}
	s.vectors = append(s.vectors, Encode(v))
	return storage.VectorId(len(s.vectors)), nil
}

// Get returns the sketch for id, or (nil, false) if id was never assigned.
func (s *Store) Get(id storage.VectorId) (*bitset.BitSet, bool) {
	if id == 0 || int(id) > len(s.vectors) {
		return nil, false
	}
	return s.vectors[id-1], true
}

// Encode returns the BQ sketch of v: bit i is set iff v[i] >= 0 (spec §3's
// "bit i is 1 iff the i-th component of the source vector is >= 0").
func Encode(v []float32) *bitset.BitSet {
	bs := bitset.New(uint(len(v)))
	for i, f := range v {
		if f >= 0 {
			bs.Set(uint(i))
		}
	}
	return bs
}

// Hamming returns the number of differing bits between two sketches of
// equal length, via a symmetric difference and popcount — bitset's own
// realization of the population-count primitive spec §4.1 calls for.
func Hamming(a, b *bitset.BitSet) uint {
	return a.SymmetricDifference(b).Count()
}

// Search runs the oversampled BQ search described in spec §4.4: retrieve
// k*oversample candidates from g using Hamming distance over the BQ
// sketches, then rescore each against its exact F32 vector in dense and
// return the top k by exact distance. ef is the beam width for the
// Hamming-driven graph traversal (the ef_search parameter, never
// ef_construction, per spec's explicit contract). admit composes
// liveness with any metadata pre-filter mask, same as a dense search.
func Search(g *hnsw.Graph, bqStore *Store, dense *storage.Store, query []float32, k, oversample, ef int, admit func(storage.VectorId) bool) ([]hnsw.Candidate, error) {
	if len(query) != bqStore.Dim() {
		return nil, fmt.Errorf("%w: got %d, want %d", errs.ErrDimensionMismatch, len(query), bqStore.Dim())
	}
	if oversample <= 0 {
		oversample = DefaultOversample
	}

	qbits := Encode(query)
	hammingDist := func(cand storage.VectorId) float32 {
		cbits, ok := bqStore.Get(cand)
		if !ok {
			return float32(bqStore.dim + 1) // maximal distance: never a real candidate
		}
		return float32(Hamming(qbits, cbits))
	}

	approx := g.Search(hammingDist, k*oversample, ef, admit)

	type scored struct {
		id   storage.VectorId
		dist float32
	}
	rescored := make([]scored, 0, len(approx))
	for _, c := range approx {
		rescored = append(rescored, scored{id: c.ID, dist: simil.CosineDistance(query, dense.GetRaw(c.ID))})
	}
	sort.Slice(rescored, func(i, j int) bool {
		if rescored[i].dist != rescored[j].dist {
			return rescored[i].dist < rescored[j].dist
		}
		return rescored[i].id < rescored[j].id
	})
	if len(rescored) > k {
		rescored = rescored[:k]
	}

	out := make([]hnsw.Candidate, len(rescored))
	for i, r := range rescored {
		out[i] = hnsw.Candidate{ID: r.id, Distance: r.dist}
	}
	return out, nil
}
