// Package hnsw implements the multi-layer Hierarchical Navigable Small
// World proximity graph described in spec §4.3: greedy descent from the
// top layer down to the new node's own level, a beam search at each layer
// at and below that level, and diversity-pruned neighbor selection on
// insert.
//
// The graph stores only VectorIds and adjacency — vector payloads live in
// internal/storage (and, for binary-quantized search, internal/bq). That
// keeps the graph structure fixed across both search modes: a dense
// cosine search and a BQ Hamming search walk the exact same edges, just
// with a different QueryDistanceFunc plugged in per call (spec §4.3:
// "binary quantization does not alter graph structure; it is an
// alternate distance function stacked on the same graph").
//
// The graph itself holds no lock. Per spec §5 the façade is the single
// writer and is expected to serialize all access to a given Graph.
package hnsw

import (
	"container/heap"
	"math"
	"math/rand"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/edgevec/edgevec/internal/storage"
)

// Config tunes graph construction and search.
type Config struct {
	// M is the maximum number of friends per node per layer above layer 0.
	// Layer 0 allows 2*M (or MMax0, if set explicitly). Default: 16.
	M int
	// MMax0 overrides the layer-0 friend cap. Default: 2*M.
	MMax0 int
	// EfConstruction is the beam width used while inserting. Default: 200.
	EfConstruction int
	// EfSearch is the default beam width used while searching. Default: 50.
	EfSearch int
	// Seed seeds the level-assignment PRNG. A Graph built with the same
	// Seed and fed the same insert sequence assigns the same levels.
	Seed int64
}

func (c *Config) setDefaults() {
	if c.M < 2 {
		c.M = 16
	}
	if c.MMax0 <= 0 {
		c.MMax0 = c.M * 2
	}
	if c.EfConstruction <= 0 {
		c.EfConstruction = 200
	}
	if c.EfSearch <= 0 {
		c.EfSearch = 50
	}
}

func (c *Config) maxConns(level int) int {
	if level == 0 {
		return c.MMax0
	}
	return c.M
}

// PairDistanceFunc returns the distance between two already-inserted
// nodes. The Graph uses this internally during Insert, where it is always
// the dense metric — the graph's structure is built once, before BQ ever
// enters the picture.
type PairDistanceFunc func(a, b storage.VectorId) float32

// QueryDistanceFunc returns the distance from an out-of-band query
// representation (a raw vector, or a BQ-packed sketch) to a graph node.
// Supplied fresh per Search call so the caller can switch metrics without
// touching the graph.
type QueryDistanceFunc func(candidate storage.VectorId) float32

// Candidate is one scored result from Search or an internal beam.
type Candidate struct {
	ID       storage.VectorId
	Distance float32
}

// Graph is the HNSW proximity graph. Zero value is not usable; construct
// with New.
type Graph struct {
	cfg      Config
	levelMul float64
	rng      *rand.Rand
	pairDist PairDistanceFunc

	friends   map[storage.VectorId][][]storage.VectorId // friends[id][level] = neighbor ids
	nodeLevel map[storage.VectorId]int
	entry     storage.VectorId
	maxLevel  int
	count     int
	draws     int // number of randomLevel draws consumed from rng
}

// New creates an empty graph. pairDist is called during Insert to measure
// distance between graph nodes using the dense metric; it is typically a
// closure over an internal/storage.Store and internal/simil.CosineDistance.
func New(cfg Config, pairDist PairDistanceFunc) *Graph {
	cfg.setDefaults()
	return &Graph{
		cfg:       cfg,
		levelMul:  1.0 / math.Log(float64(cfg.M)),
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		pairDist:  pairDist,
		friends:   make(map[storage.VectorId][][]storage.VectorId),
		nodeLevel: make(map[storage.VectorId]int),
	}
}

// Len returns the number of nodes in the graph, including tombstoned ones
// that have not yet been dropped by a rebuild (spec §4.3: "the graph keeps
// edges to tombstones; a deleted node is fully removed only when the
// index is rebuilt from the surviving vectors on compaction").
func (g *Graph) Len() int { return g.count }

// Insert adds id to the graph, assuming the vector it represents is
// already addressable via pairDist (i.e. the caller has already written it
// to the backing store). Levels are assigned by the seeded PRNG per the
// standard 1/ln(M) exponential distribution.
func (g *Graph) Insert(id storage.VectorId) {
	level := g.randomLevel()
	g.friends[id] = make([][]storage.VectorId, level+1)
	g.nodeLevel[id] = level
	g.count++

	if g.count == 1 {
		g.entry = id
		g.maxLevel = level
		return
	}

	dist := func(other storage.VectorId) float32 { return g.pairDist(id, other) }

	// Phase 1: greedy descent from the top layer down to level+1, tracking
	// only the single closest node at each layer (an ef=1 walk).
	cur := g.entry
	curDist := dist(cur)
	for lev := g.maxLevel; lev > level; lev-- {
		changed := true
		for changed {
			changed = false
			fs := g.friends[cur]
			if lev >= len(fs) {
				break
			}
			for _, f := range fs[lev] {
				if d := dist(f); d < curDist {
					cur, curDist = f, d
					changed = true
				}
			}
		}
	}

	// Phase 2: from min(level, maxLevel) down to 0, beam search then
	// diversity-select neighbors and connect bidirectionally.
	topInsert := level
	if topInsert > g.maxLevel {
		topInsert = g.maxLevel
	}

	ep := []storage.VectorId{cur}
	for lev := topInsert; lev >= 0; lev-- {
		beam := g.searchLayer(dist, ep, g.cfg.EfConstruction, lev, nil)
		maxC := g.cfg.maxConns(lev)

		candidateIDs := make([]storage.VectorId, len(beam))
		for i, c := range beam {
			candidateIDs[i] = c.ID
		}
		neighbors := g.selectNeighbors(id, candidateIDs, maxC)
		g.friends[id][lev] = neighbors

		for _, n := range neighbors {
			nf := g.friends[n]
			if lev >= len(nf) {
				continue
			}
			nf[lev] = append(nf[lev], id)
			if len(nf[lev]) > maxC {
				nf[lev] = g.selectNeighbors(n, nf[lev], maxC)
			}
		}

		ep = candidateIDs
	}

	if level > g.maxLevel {
		g.entry = id
		g.maxLevel = level
	}
}

// Search returns up to k nodes closest to the query (per dist), visiting
// at most ef candidates in the layer-0 beam. If admit is non-nil, a
// candidate failing admit(id) is still expanded (its neighbors are
// explored) but never enters the result set — the pre-filter visitation
// mask described in spec §4.3.
func (g *Graph) Search(dist QueryDistanceFunc, k, ef int, admit func(storage.VectorId) bool) []Candidate {
	if g.count == 0 {
		return nil
	}
	if ef < k {
		ef = k
	}

	cur := g.entry
	curDist := dist(cur)
	for lev := g.maxLevel; lev > 0; lev-- {
		changed := true
		for changed {
			changed = false
			fs := g.friends[cur]
			if lev >= len(fs) {
				break
			}
			for _, f := range fs[lev] {
				if d := dist(f); d < curDist {
					cur, curDist = f, d
					changed = true
				}
			}
		}
	}

	beam := g.searchLayer(dist, []storage.VectorId{cur}, ef, 0, admit)
	sort.Slice(beam, func(i, j int) bool {
		if beam[i].Distance != beam[j].Distance {
			return beam[i].Distance < beam[j].Distance
		}
		return beam[i].ID < beam[j].ID // deterministic tie-break, per spec §4.3
	})
	if len(beam) > k {
		beam = beam[:k]
	}
	return beam
}

// AddNode installs a node with a pre-built adjacency list, bypassing the
// insert algorithm. Used by internal/snapshot to reconstruct a graph from
// a persisted layout without recomputing it.
func (g *Graph) AddNode(id storage.VectorId, level int, friends [][]storage.VectorId) {
	g.friends[id] = friends
	g.nodeLevel[id] = level
	g.count++
}

// SetEntry installs the graph's entry point and highest occupied layer
// directly. Used by internal/snapshot alongside AddNode.
func (g *Graph) SetEntry(id storage.VectorId, maxLevel int) {
	g.entry = id
	g.maxLevel = maxLevel
}

// Each calls fn for every node in the graph, in unspecified order, until
// fn returns false. Used by internal/snapshot to serialize the adjacency.
func (g *Graph) Each(fn func(id storage.VectorId, level int, friends [][]storage.VectorId) bool) {
	for id, fs := range g.friends {
		if !fn(id, g.nodeLevel[id], fs) {
			return
		}
	}
}

// Entry returns the current entry point id and the highest occupied
// layer.
func (g *Graph) Entry() (storage.VectorId, int) { return g.entry, g.maxLevel }

// Config returns a copy of the graph's construction/search parameters, for
// internal/snapshot to persist in the parameter block (spec §4.8).
func (g *Graph) Config() Config { return g.cfg }

// Draws returns the number of level draws consumed from the seeded PRNG so
// far, by randomLevel or replayed through Advance. internal/snapshot persists this alongside Config().Seed so
// a reloaded graph's PRNG can be fast-forwarded to the exact point it left
// off, instead of persisting Go's unexported rand.Source state directly.
func (g *Graph) Draws() int { return g.draws }

// Advance consumes n draws from the PRNG without using them, for
// internal/snapshot to replay after reconstructing a graph from persisted
// adjacency (which installs nodes via AddNode and never touches the PRNG
// itself).
func (g *Graph) Advance(n int) {
	for i := 0; i < n; i++ {
		g.rng.Float64()
	}
	g.draws += n
}

// randomLevel draws a layer via the exponential distribution
// P(level >= l) = exp(-l * ln(M)), matching the standard HNSW construction
// (most nodes land on layer 0; higher layers are exponentially rarer).
func (g *Graph) randomLevel() int {
	g.draws++
	r := g.rng.Float64()
	if r <= 0 {
		r = math.SmallestNonzeroFloat64
	}
	level := int(-math.Log(r) * g.levelMul)
	if level > 31 {
		level = 31 // guard against a pathological draw
	}
	return level
}

// selectNeighbors implements the diversity-pruning heuristic (spec §4.3):
// among candidateIDs sorted by ascending distance to q, a candidate is
// kept only if it is closer to q than to every neighbor already
// selected. This is what stops HNSW graphs from degenerating into
// near-duplicate clusters of mutually close neighbors.
func (g *Graph) selectNeighbors(q storage.VectorId, candidateIDs []storage.VectorId, maxN int) []storage.VectorId {
	type scored struct {
		id   storage.VectorId
		dist float32
	}
	items := make([]scored, 0, len(candidateIDs))
	seen := make(map[storage.VectorId]bool, len(candidateIDs))
	for _, c := range candidateIDs {
		if c == q || seen[c] {
			continue
		}
		seen[c] = true
		items = append(items, scored{id: c, dist: g.pairDist(q, c)})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].dist < items[j].dist })

	result := make([]storage.VectorId, 0, maxN)
	for _, it := range items {
		if len(result) >= maxN {
			break
		}
		diverse := true
		for _, r := range result {
			if g.pairDist(r, it.id) < it.dist {
				diverse = false
				break
			}
		}
		if diverse {
			result = append(result, it.id)
		}
	}
	return result
}

// searchLayer runs a beam search over one layer starting from
// entryPoints, per the standard HNSW layer-search algorithm. Every
// visited node is pushed to the candidates frontier and may be expanded
// regardless of admit; only admit-passing nodes are kept in the ef-capped
// results set.
func (g *Graph) searchLayer(dist QueryDistanceFunc, entryPoints []storage.VectorId, ef int, layer int, admit func(storage.VectorId) bool) []Candidate {
	visited := roaring.New()
	var candidates minHeap
	var results maxHeap

	push := func(id storage.VectorId, d float32) {
		heap.Push(&candidates, item{id: id, dist: d})
		if admit == nil || admit(id) {
			if results.Len() < ef || d < results[0].dist {
				heap.Push(&results, item{id: id, dist: d})
				if results.Len() > ef {
					heap.Pop(&results)
				}
			}
		}
	}

	for _, ep := range entryPoints {
		if !visited.Contains(uint32(ep)) {
			visited.Add(uint32(ep))
			push(ep, dist(ep))
		}
	}

	for candidates.Len() > 0 {
		closest := heap.Pop(&candidates).(item)
		if results.Len() >= ef && closest.dist > results[0].dist {
			break
		}
		fs := g.friends[closest.id]
		if layer >= len(fs) {
			continue
		}
		for _, f := range fs[layer] {
			if visited.Contains(uint32(f)) {
				continue
			}
			visited.Add(uint32(f))
			push(f, dist(f))
		}
	}

	out := make([]Candidate, len(results))
	for i, it := range results {
		out[i] = Candidate{ID: it.id, Distance: it.dist}
	}
	return out
}

// item pairs a node id with its distance for the two heaps below.
type item struct {
	id   storage.VectorId
	dist float32
}

// minHeap pops the closest item first — the expansion frontier.
type minHeap []item

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x interface{}) { *h = append(*h, x.(item)) }
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// maxHeap pops the farthest item first, so the worst current result is
// always at index 0 and cheap to evict.
type maxHeap []item

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h maxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x interface{}) { *h = append(*h, x.(item)) }
func (h *maxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
