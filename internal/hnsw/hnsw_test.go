package hnsw

import (
	"math/rand"
	"testing"

	"github.com/edgevec/edgevec/internal/simil"
	"github.com/edgevec/edgevec/internal/storage"
)

// newTestGraph builds a Graph backed by a real storage.Store, returning
// both so tests can insert vectors and then query the graph against them.
func newTestGraph(t *testing.T, cfg Config) (*Graph, *storage.Store) {
	t.Helper()
	store := storage.New(8)
	pairDist := func(a, b storage.VectorId) float32 {
		return simil.CosineDistance(store.GetRaw(a), store.GetRaw(b))
	}
	return New(cfg, pairDist), store
}

func insertVec(t *testing.T, g *Graph, store *storage.Store, v []float32) storage.VectorId {
	t.Helper()
	id, err := store.Insert(v)
	if err != nil {
		t.Fatalf("store.Insert: %v", err)
	}
	g.Insert(id)
	return id
}

func randVec(r *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(r.NormFloat64())
	}
	return v
}

func TestSingleNodeIsItsOwnEntry(t *testing.T) {
	g, store := newTestGraph(t, Config{Seed: 1})
	id := insertVec(t, g, store, []float32{1, 0, 0, 0, 0, 0, 0, 0})

	entry, maxLevel := g.Entry()
	if entry != id {
		t.Fatalf("entry = %v, want %v", entry, id)
	}
	if maxLevel < 0 {
		t.Fatalf("maxLevel = %d, want >= 0", maxLevel)
	}
	if g.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", g.Len())
	}
}

func TestSearchFindsExactMatch(t *testing.T) {
	g, store := newTestGraph(t, Config{Seed: 42, EfConstruction: 64, EfSearch: 32})
	r := rand.New(rand.NewSource(7))

	var target storage.VectorId
	for i := 0; i < 200; i++ {
		v := randVec(r, 8)
		id := insertVec(t, g, store, v)
		if i == 100 {
			target = id
		}
	}

	query := store.GetRaw(target)
	dist := func(cand storage.VectorId) float32 {
		return simil.CosineDistance(query, store.GetRaw(cand))
	}
	results := g.Search(dist, 5, 50, nil)
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
	if results[0].ID != target {
		t.Fatalf("nearest neighbor of its own vector = %v, want %v (dist %v)", results[0].ID, target, results[0].Distance)
	}
	if results[0].Distance > 1e-3 {
		t.Fatalf("self-distance = %v, want ~0", results[0].Distance)
	}
}

func TestSearchResultsAscendingByDistance(t *testing.T) {
	g, store := newTestGraph(t, Config{Seed: 3, EfConstruction: 64})
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 150; i++ {
		insertVec(t, g, store, randVec(r, 8))
	}

	query := randVec(r, 8)
	dist := func(cand storage.VectorId) float32 {
		return simil.CosineDistance(query, store.GetRaw(cand))
	}
	results := g.Search(dist, 10, 40, nil)
	for i := 1; i < len(results); i++ {
		if results[i].Distance < results[i-1].Distance {
			t.Fatalf("results not sorted ascending: %v", results)
		}
	}
}

func TestSearchRespectsK(t *testing.T) {
	g, store := newTestGraph(t, Config{Seed: 9, EfConstruction: 64})
	r := rand.New(rand.NewSource(13))
	for i := 0; i < 50; i++ {
		insertVec(t, g, store, randVec(r, 8))
	}
	query := randVec(r, 8)
	dist := func(cand storage.VectorId) float32 {
		return simil.CosineDistance(query, store.GetRaw(cand))
	}
	results := g.Search(dist, 3, 40, nil)
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
}

func TestAdmitPredicateFiltersResultsNotExpansion(t *testing.T) {
	g, store := newTestGraph(t, Config{Seed: 5, EfConstruction: 64})
	r := rand.New(rand.NewSource(17))

	var oddIDs, evenIDs []storage.VectorId
	for i := 0; i < 120; i++ {
		id := insertVec(t, g, store, randVec(r, 8))
		if uint64(id)%2 == 0 {
			evenIDs = append(evenIDs, id)
		} else {
			oddIDs = append(oddIDs, id)
		}
	}

	admitEven := func(id storage.VectorId) bool { return uint64(id)%2 == 0 }
	query := randVec(r, 8)
	dist := func(cand storage.VectorId) float32 {
		return simil.CosineDistance(query, store.GetRaw(cand))
	}
	results := g.Search(dist, 10, 60, admitEven)
	if len(results) == 0 {
		t.Fatal("expected some admitted results")
	}
	for _, res := range results {
		if !admitEven(res.ID) {
			t.Fatalf("result %v failed admit predicate", res.ID)
		}
	}
}

func TestEmptyGraphSearchReturnsNothing(t *testing.T) {
	g, _ := newTestGraph(t, Config{Seed: 1})
	dist := func(storage.VectorId) float32 { return 0 }
	if got := g.Search(dist, 5, 20, nil); got != nil {
		t.Fatalf("expected nil results on empty graph, got %v", got)
	}
}

func TestSelectNeighborsDiversityPrunesDuplicateCluster(t *testing.T) {
	g, store := newTestGraph(t, Config{Seed: 1})
	// Three near-identical vectors plus one distinct outlier. The
	// diversity heuristic should prefer keeping the outlier over a second
	// near-duplicate of the first choice once a slot is already taken by
	// one of the cluster. The outlier points away from c1, so it is farther
	// from c1 than from q and passes the diversity check.
	q := insertVec(t, g, store, []float32{1, 0, 0, 0, 0, 0, 0, 0})
	c1 := insertVec(t, g, store, []float32{0.99, 0.01, 0, 0, 0, 0, 0, 0})
	c2 := insertVec(t, g, store, []float32{0.98, 0.02, 0, 0, 0, 0, 0, 0})
	outlier := insertVec(t, g, store, []float32{0, -1, 0, 0, 0, 0, 0, 0})

	candidates := []storage.VectorId{c1, c2, outlier}
	selected := g.selectNeighbors(q, candidates, 2)
	if len(selected) != 2 {
		t.Fatalf("selectNeighbors returned %d, want 2", len(selected))
	}
	foundOutlier := false
	for _, id := range selected {
		if id == outlier {
			foundOutlier = true
		}
	}
	if !foundOutlier {
		t.Fatalf("expected diversity pruning to keep the outlier, got %v", selected)
	}
}

func TestSeededGraphsAssignIdenticalLevels(t *testing.T) {
	g1, s1 := newTestGraph(t, Config{Seed: 123})
	g2, s2 := newTestGraph(t, Config{Seed: 123})
	r := rand.New(rand.NewSource(99))

	vecs := make([][]float32, 30)
	for i := range vecs {
		vecs[i] = randVec(r, 8)
	}
	for _, v := range vecs {
		id1 := insertVec(t, g1, s1, v)
		id2 := insertVec(t, g2, s2, v)
		if g1.nodeLevel[id1] != g2.nodeLevel[id2] {
			t.Fatalf("same seed produced different levels: %d vs %d", g1.nodeLevel[id1], g2.nodeLevel[id2])
		}
	}
}

func TestAddNodeAndSetEntryReconstructsGraph(t *testing.T) {
	g, store := newTestGraph(t, Config{Seed: 1})
	a := insertVec(t, g, store, []float32{1, 0, 0, 0, 0, 0, 0, 0})
	b := insertVec(t, g, store, []float32{0, 1, 0, 0, 0, 0, 0, 0})

	rebuilt := New(Config{Seed: 1}, nil)
	g.Each(func(id storage.VectorId, level int, friends [][]storage.VectorId) bool {
		rebuilt.AddNode(id, level, friends)
		return true
	})
	entry, maxLevel := g.Entry()
	rebuilt.SetEntry(entry, maxLevel)

	if rebuilt.Len() != g.Len() {
		t.Fatalf("rebuilt Len() = %d, want %d", rebuilt.Len(), g.Len())
	}
	gotEntry, gotMax := rebuilt.Entry()
	if gotEntry != entry || gotMax != maxLevel {
		t.Fatalf("rebuilt entry = (%v, %d), want (%v, %d)", gotEntry, gotMax, entry, maxLevel)
	}
	_, _ = a, b
}
