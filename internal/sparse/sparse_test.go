package sparse

import (
	"bytes"
	"errors"
	"testing"

	"github.com/edgevec/edgevec/internal/errs"
	"github.com/edgevec/edgevec/internal/storage"
)

func vec(idx []uint32, val []float32) Vector { return Vector{Indices: idx, Values: val} }

func TestInsertValidatesCSRInvariants(t *testing.T) {
	s := New(10)
	if _, err := s.Insert(vec([]uint32{2, 1}, []float32{1, 1})); !errors.Is(err, errs.ErrDimensionMismatch) {
		t.Fatalf("non-increasing indices: err = %v", err)
	}
	if _, err := s.Insert(vec([]uint32{1}, []float32{1, 2})); !errors.Is(err, errs.ErrDimensionMismatch) {
		t.Fatalf("length mismatch: err = %v", err)
	}
	if _, err := s.Insert(vec([]uint32{20}, []float32{1})); !errors.Is(err, errs.ErrDimensionMismatch) {
		t.Fatalf("out of range index: err = %v", err)
	}
	if _, err := s.Insert(vec([]uint32{1}, []float32{0})); err == nil {
		t.Fatal("explicit zero value should be rejected")
	}
}

func TestDotSymmetricAndCosineSelf(t *testing.T) {
	a := vec([]uint32{0, 2, 5}, []float32{1, 2, 3})
	b := vec([]uint32{0, 1, 5}, []float32{4, 5, 6})
	if Dot(a, b) != Dot(b, a) {
		t.Fatal("sparse dot not symmetric")
	}
	if got := Cosine(a, a); got < 0.999 {
		t.Fatalf("cosine(a,a) = %v, want ~1", got)
	}
}

func TestDeleteAndEach(t *testing.T) {
	s := New(5)
	id1, _ := s.Insert(vec([]uint32{0}, []float32{1}))
	id2, _ := s.Insert(vec([]uint32{1}, []float32{1}))
	s.Delete(id1)

	var seen []uint64
	s.Each(func(id storage.VectorId, _ Vector) bool {
		seen = append(seen, uint64(id))
		return true
	})
	if len(seen) != 1 || seen[0] != uint64(id2) {
		t.Fatalf("Each visited %v, want only %d", seen, id2)
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := New(8)
	s.Insert(vec([]uint32{0, 3}, []float32{1, 2}))
	s.Insert(vec([]uint32{1, 2, 7}, []float32{5, 6, 7}))
	id3, _ := s.Insert(vec([]uint32{4}, []float32{9}))
	s.Delete(id3)

	var buf bytes.Buffer
	if err := s.Save(&buf); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(&buf)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Dim() != s.Dim() {
		t.Fatalf("dim mismatch after round trip")
	}
	if loaded.Len() != s.Len() {
		t.Fatalf("len mismatch after round trip: got %d want %d", loaded.Len(), s.Len())
	}
	if _, ok := loaded.Get(id3); ok {
		t.Fatal("deleted id resurfaced after round trip")
	}
}
