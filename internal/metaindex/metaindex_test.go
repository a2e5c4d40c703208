package metaindex

import (
	"testing"

	"github.com/edgevec/edgevec/internal/metadata"
	"github.com/edgevec/edgevec/internal/storage"
)

func TestPutAndMatchingIDs(t *testing.T) {
	idx, err := New([]string{"category"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer idx.Close()

	records := map[storage.VectorId]metadata.Record{
		1: {"category": metadata.StringValue("a")},
		2: {"category": metadata.StringValue("b")},
		3: {"category": metadata.StringValue("a")},
	}
	for id, rec := range records {
		if err := idx.Put(id, rec); err != nil {
			t.Fatalf("Put(%d): %v", id, err)
		}
	}

	ids, err := idx.MatchingIDs("category", "a")
	if err != nil {
		t.Fatalf("MatchingIDs: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("MatchingIDs(category=a) = %v, want 2 ids", ids)
	}
	seen := map[storage.VectorId]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen[1] || !seen[3] {
		t.Fatalf("MatchingIDs(category=a) = %v, want {1,3}", ids)
	}
}

func TestDeleteRemovesFromIndex(t *testing.T) {
	idx, err := New([]string{"category"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer idx.Close()

	if err := idx.Put(1, metadata.Record{"category": metadata.StringValue("a")}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := idx.Delete(1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	ids, err := idx.MatchingIDs("category", "a")
	if err != nil {
		t.Fatalf("MatchingIDs: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("MatchingIDs after delete = %v, want empty", ids)
	}
}

func TestEqualitySelectivityMatchesTermFrequency(t *testing.T) {
	idx, err := New([]string{"category"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer idx.Close()

	for id, cat := range map[storage.VectorId]string{1: "a", 2: "b", 3: "a", 4: "a", 5: "b"} {
		if err := idx.Put(id, metadata.Record{"category": metadata.StringValue(cat)}); err != nil {
			t.Fatalf("Put(%d): %v", id, err)
		}
	}

	s, ok := idx.EqualitySelectivity("category", metadata.StringValue("a"))
	if !ok {
		t.Fatal("EqualitySelectivity returned ok=false")
	}
	if s != 0.6 {
		t.Fatalf("EqualitySelectivity = %v, want 0.6 (3/5)", s)
	}
}

func TestEqualitySelectivityEmptyIndex(t *testing.T) {
	idx, err := New([]string{"category"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer idx.Close()

	_, ok := idx.EqualitySelectivity("category", metadata.StringValue("a"))
	if ok {
		t.Fatal("expected ok=false for an empty index")
	}
}

func TestRangeSelectivityDeclines(t *testing.T) {
	idx, err := New([]string{"price"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer idx.Close()

	_, ok := idx.RangeSelectivity("price", 0, metadata.FloatValue(10), metadata.Value{})
	if ok {
		t.Fatal("expected RangeSelectivity to always decline (ok=false)")
	}
}

func TestHasFieldReflectsFieldList(t *testing.T) {
	idx, err := New([]string{"category", "tier"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer idx.Close()

	if !idx.HasField("category") || !idx.HasField("tier") {
		t.Fatalf("HasField false for a field passed to New")
	}
	if idx.HasField("unindexed") {
		t.Fatalf("HasField true for a field never passed to New")
	}
}

func TestTermForScalars(t *testing.T) {
	cases := []struct {
		v    metadata.Value
		want string
	}{
		{metadata.StringValue("a"), "a"},
		{metadata.IntValue(42), "42"},
		{metadata.FloatValue(1.5), "1.5"},
		{metadata.BoolValue(true), "true"},
	}
	for _, c := range cases {
		got, ok := TermFor(c.v)
		if !ok || got != c.want {
			t.Fatalf("TermFor(%+v) = (%q, %v), want (%q, true)", c.v, got, ok, c.want)
		}
	}

	if _, ok := TermFor(metadata.StringArrayValue([]string{"a", "b"})); ok {
		t.Fatalf("TermFor(string array) = ok, want false")
	}
	if _, ok := TermFor(metadata.Null); ok {
		t.Fatalf("TermFor(null) = ok, want false")
	}
}

func TestCountTracksPuts(t *testing.T) {
	idx, err := New([]string{"category"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer idx.Close()

	if idx.Count() != 0 {
		t.Fatalf("Count = %d, want 0", idx.Count())
	}
	_ = idx.Put(1, metadata.Record{"category": metadata.StringValue("a")})
	_ = idx.Put(2, metadata.Record{"category": metadata.StringValue("b")})
	if idx.Count() != 2 {
		t.Fatalf("Count = %d, want 2", idx.Count())
	}
}
