package snapshot

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/edgevec/edgevec/internal/hnsw"
	"github.com/edgevec/edgevec/internal/metadata"
	"github.com/edgevec/edgevec/internal/simil"
	"github.com/edgevec/edgevec/internal/sparse"
	"github.com/edgevec/edgevec/internal/storage"
)

// buildIndex constructs a small dense store + graph + metadata set,
// returning the store too so the test can build a matching pairDist for
// reload.
func buildIndex(t *testing.T) (*storage.Store, *hnsw.Graph, *metadata.Memory) {
	t.Helper()
	store := storage.New(4)
	pairDist := func(a, b storage.VectorId) float32 {
		return simil.CosineDistance(store.GetRaw(a), store.GetRaw(b))
	}
	graph := hnsw.New(hnsw.Config{Seed: 7, EfConstruction: 32, EfSearch: 16}, pairDist)
	meta := metadata.NewMemory()

	r := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		v := make([]float32, 4)
		for j := range v {
			v[j] = float32(r.NormFloat64())
		}
		id, err := store.Insert(v)
		if err != nil {
			t.Fatalf("store.Insert: %v", err)
		}
		graph.Insert(id)
		if err := meta.Put(id, metadata.Record{
			"category": metadata.StringValue("a"),
			"rank":     metadata.IntValue(int64(i)),
		}); err != nil {
			t.Fatalf("meta.Put: %v", err)
		}
	}
	return store, graph, meta
}

func pairDistFor(store *storage.Store) hnsw.PairDistanceFunc {
	return func(a, b storage.VectorId) float32 {
		return simil.CosineDistance(store.GetRaw(a), store.GetRaw(b))
	}
}

func TestSaveLoadRoundTripsDenseGraphAndMetadata(t *testing.T) {
	store, graph, meta := buildIndex(t)

	var buf bytes.Buffer
	if err := Save(&buf, Snapshot{Dense: store, Metadata: meta, Graph: graph}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(&buf, pairDistFor(store))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.Dense.NextID() != store.NextID() {
		t.Fatalf("NextID = %v, want %v", loaded.Dense.NextID(), store.NextID())
	}
	for id := storage.VectorId(1); id <= store.NextID(); id++ {
		want, _ := store.Get(id)
		got, ok := loaded.Dense.Get(id)
		if !ok {
			t.Fatalf("id %d missing after reload", id)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("id %d component %d = %v, want %v", id, i, got[i], want[i])
			}
		}
	}

	if loaded.Graph.Len() != graph.Len() {
		t.Fatalf("graph.Len() = %d, want %d", loaded.Graph.Len(), graph.Len())
	}
	wantEntry, wantMaxLevel := graph.Entry()
	gotEntry, gotMaxLevel := loaded.Graph.Entry()
	if gotEntry != wantEntry || gotMaxLevel != wantMaxLevel {
		t.Fatalf("Entry() = (%v, %v), want (%v, %v)", gotEntry, gotMaxLevel, wantEntry, wantMaxLevel)
	}
	if loaded.Graph.Draws() != graph.Draws() {
		t.Fatalf("Draws() = %d, want %d", loaded.Graph.Draws(), graph.Draws())
	}

	rec, ok := loaded.Metadata.Get(5)
	if !ok {
		t.Fatalf("metadata for id 5 missing after reload")
	}
	if rec.Get("category").Str != "a" || rec.Get("rank").Int != 4 {
		t.Fatalf("unexpected record after reload: %+v", rec)
	}
}

func TestSaveLoadPreservesGraphAdjacencyExactly(t *testing.T) {
	store, graph, meta := buildIndex(t)

	var buf bytes.Buffer
	if err := Save(&buf, Snapshot{Dense: store, Metadata: meta, Graph: graph}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(&buf, pairDistFor(store))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := map[storage.VectorId][][]storage.VectorId{}
	graph.Each(func(id storage.VectorId, level int, friends [][]storage.VectorId) bool {
		cp := make([][]storage.VectorId, len(friends))
		for i, layer := range friends {
			cp[i] = append([]storage.VectorId(nil), layer...)
		}
		want[id] = cp
		return true
	})

	got := map[storage.VectorId][][]storage.VectorId{}
	loaded.Graph.Each(func(id storage.VectorId, level int, friends [][]storage.VectorId) bool {
		got[id] = friends
		return true
	})

	if len(got) != len(want) {
		t.Fatalf("node count = %d, want %d", len(got), len(want))
	}
	for id, wantFriends := range want {
		gotFriends, ok := got[id]
		if !ok {
			t.Fatalf("node %d missing after reload", id)
		}
		if len(gotFriends) != len(wantFriends) {
			t.Fatalf("node %d: %d layers, want %d", id, len(gotFriends), len(wantFriends))
		}
		for lev := range wantFriends {
			if !idSlicesEqual(gotFriends[lev], wantFriends[lev]) {
				t.Fatalf("node %d layer %d = %v, want %v", id, lev, gotFriends[lev], wantFriends[lev])
			}
		}
	}
}

func idSlicesEqual(a, b []storage.VectorId) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[storage.VectorId]int)
	for _, v := range a {
		seen[v]++
	}
	for _, v := range b {
		seen[v]--
	}
	for _, c := range seen {
		if c != 0 {
			return false
		}
	}
	return true
}

func TestSaveLoadRoundTripsSparseSegmentWhenPresent(t *testing.T) {
	store, graph, meta := buildIndex(t)
	sp := sparse.New(16)
	if _, err := sp.Insert(sparse.Vector{Indices: []uint32{1, 5}, Values: []float32{1, 2}}); err != nil {
		t.Fatalf("sparse.Insert: %v", err)
	}

	var buf bytes.Buffer
	if err := Save(&buf, Snapshot{Dense: store, Metadata: meta, Graph: graph, Sparse: sp}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(&buf, pairDistFor(store))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Sparse == nil {
		t.Fatalf("expected sparse segment to round-trip, got nil")
	}
	v, ok := loaded.Sparse.Get(1)
	if !ok || len(v.Indices) != 2 || v.Indices[0] != 1 || v.Indices[1] != 5 {
		t.Fatalf("unexpected sparse vector after reload: %+v, ok=%v", v, ok)
	}
}

func TestLoadRejectsBadMagic(t *testing.T) {
	buf := bytes.NewBufferString("nope")
	if _, err := Load(buf, nil); err == nil {
		t.Fatalf("expected error for bad magic, got nil")
	}
}

func TestLoadRejectsCorruptedChecksum(t *testing.T) {
	store, graph, meta := buildIndex(t)

	var buf bytes.Buffer
	if err := Save(&buf, Snapshot{Dense: store, Metadata: meta, Graph: graph}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data := buf.Bytes()
	data[len(data)-1] ^= 0xFF // flip a bit in the trailing checksum

	if _, err := Load(bytes.NewReader(data), pairDistFor(store)); err == nil {
		t.Fatalf("expected checksum failure, got nil")
	}
}

func TestBQEnabledFlagRoundTrips(t *testing.T) {
	store, graph, meta := buildIndex(t)

	var buf bytes.Buffer
	if err := Save(&buf, Snapshot{Dense: store, Metadata: meta, Graph: graph, BQEnabled: true}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(&buf, pairDistFor(store))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !loaded.BQEnabled {
		t.Fatalf("expected BQEnabled to round-trip true")
	}
}

func TestEmptyMetadataRoundTrips(t *testing.T) {
	store := storage.New(4)
	pairDist := pairDistFor(store)
	graph := hnsw.New(hnsw.Config{Seed: 1}, pairDist)
	v := []float32{1, 0, 0, 0}
	id, err := store.Insert(v)
	if err != nil {
		t.Fatalf("store.Insert: %v", err)
	}
	graph.Insert(id)
	meta := metadata.NewMemory()

	var buf bytes.Buffer
	if err := Save(&buf, Snapshot{Dense: store, Metadata: meta, Graph: graph}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(&buf, pairDist)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Metadata.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", loaded.Metadata.Len())
	}
}
