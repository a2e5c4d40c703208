// Package storage implements EdgeVec's dense vector backing store: a flat,
// d-major float32 buffer with 1-indexed ids, a roaring-bitmap deletion
// marker, and compaction. See spec §3 ("Dense vector", "Lifecycle") and
// §4.2.
//
// Ids are never reused; the i-th inserted live vector has VectorId(i).
// Soft delete never shrinks the buffer — only Compact does.
package storage

import (
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/edgevec/edgevec/internal/errs"
)

// VectorId is a dense, 1-indexed vector identifier. 0 is reserved for
// "no such vector".
type VectorId uint64

// IdMap is the old-id -> new-id remapping produced by Compact. An entry of
// 0 means the old id was dropped (it was deleted).
type IdMap map[VectorId]VectorId

// Store is the flat dense float32 buffer plus deletion bitmap described in
// spec §4.2. It is not safe for concurrent use; callers (the façade) are
// expected to serialize access.
type Store struct {
	dim     int
	buffer  []float32
	deleted *roaring.Bitmap
	nextID  VectorId // 1-indexed: highest ever-assigned id
}

// New creates an empty Store for vectors of dimension dim. Panics if dim
// is not positive — a construction-time programmer error, not a runtime
// user error.
func New(dim int) *Store {
	if dim <= 0 {
		panic("storage: dim must be positive")
	}
	return &Store{
		dim:     dim,
		deleted: roaring.New(),
	}
}

// Dim returns the configured vector dimension.
func (s *Store) Dim() int { return s.dim }

// Insert appends v and returns its newly assigned VectorId (len+1).
// Returns ErrDimensionMismatch if len(v) != Dim(), or ErrNonFiniteValue if
// v contains NaN or +/-Inf — rejected before anything mutates, per spec
// §3's "Invariant: every vector inserted has length exactly d; non-finite
// values ... are rejected at the boundary."
func (s *Store) Insert(v []float32) (VectorId, error) {
	if len(v) != s.dim {
		return 0, fmt.Errorf("%w: got %d, want %d", errs.ErrDimensionMismatch, len(v), s.dim)
	}
	for i, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return 0, fmt.Errorf("%w: component %d", errs.ErrNonFiniteValue, i)
		}
	}
	s.buffer = append(s.buffer, v...)
	s.nextID++
	return s.nextID, nil
}

// Get returns the live vector for id, or (nil, false) if id is out of
// range, was never assigned, or has been deleted.
func (s *Store) Get(id VectorId) ([]float32, bool) {
	if id == 0 || id > s.nextID || s.deleted.Contains(uint32(id)) {
		return nil, false
	}
	start := int(id-1) * s.dim
	end := start + s.dim
	if end > len(s.buffer) {
		panic("storage: bounds violation in Get — defect, not user error")
	}
	return s.buffer[start:end], true
}

// GetRaw returns the vector bytes for id regardless of its deletion bit,
// for use by the HNSW graph, which keeps edges to tombstones (spec §4.3:
// "the graph keeps edges to tombstones") and must still be able to compute
// distances to them during traversal. Panics if id is out of range — a
// caller passing a never-assigned id here is a defect, not a user error.
func (s *Store) GetRaw(id VectorId) []float32 {
	if id == 0 || id > s.nextID {
		panic("storage: GetRaw on unassigned id — defect, not user error")
	}
	start := int(id-1) * s.dim
	return s.buffer[start : start+s.dim]
}

// Live reports whether id refers to a currently-live vector.
func (s *Store) Live(id VectorId) bool {
	_, ok := s.Get(id)
	return ok
}

// Delete sets id's deletion bit. Returns false if id was already deleted
// or was never assigned (idempotent: delete(delete(id)) == delete(id)).
func (s *Store) Delete(id VectorId) bool {
	if id == 0 || id > s.nextID || s.deleted.Contains(uint32(id)) {
		return false
	}
	s.deleted.Add(uint32(id))
	return true
}

// Len returns the number of currently-live vectors.
func (s *Store) Len() int {
	return int(s.nextID) - int(s.deleted.GetCardinality())
}

// NextID returns the highest ever-assigned id (== number of rows ever
// appended, live or not).
func (s *Store) NextID() VectorId { return s.nextID }

// Compact rewrites the buffer, dropping deleted rows, and returns an
// old-id -> new-id mapping (0 meaning "dropped"). Calling Compact on an
// already-compacted store is a no-op that returns the identity mapping
// restricted to live ids.
func (s *Store) Compact() IdMap {
	remap := make(IdMap, int(s.nextID))
	newBuf := make([]float32, 0, len(s.buffer))
	var newID VectorId
	for old := VectorId(1); old <= s.nextID; old++ {
		if s.deleted.Contains(uint32(old)) {
			remap[old] = 0
			continue
		}
		newID++
		remap[old] = newID
		start := int(old-1) * s.dim
		newBuf = append(newBuf, s.buffer[start:start+s.dim]...)
	}
	s.buffer = newBuf
	s.deleted = roaring.New()
	s.nextID = newID
	return remap
}
