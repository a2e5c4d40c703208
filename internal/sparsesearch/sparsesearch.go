// Package sparsesearch implements the brute-force sparse top-k searcher
// (spec §4.7): for each live vector in an internal/sparse.Store, compute
// dot(query, v) via merge-intersection and keep the k best in a bounded
// min-heap.
package sparsesearch

import (
	"container/heap"

	"github.com/edgevec/edgevec/internal/sparse"
	"github.com/edgevec/edgevec/internal/storage"
)

// Hit is one sparse search result: a vector id and its dot-product score
// against the query (higher is more similar).
type Hit struct {
	ID    storage.VectorId
	Score float32
}

// Search returns the top-k live vectors in store by dot(query, v),
// descending by score, ties broken by lower id. admit, if non-nil, is
// consulted per-candidate and skips ids it rejects — the sparse leg's
// equivalent of HNSW's visitation mask, used when a filter's pre-filter
// id-set should bound the sparse scan too.
func Search(store *sparse.Store, query sparse.Vector, k int, admit func(storage.VectorId) bool) []Hit {
	if k <= 0 {
		return nil
	}
	h := &minHeap{}
	heap.Init(h)

	store.Each(func(id storage.VectorId, v sparse.Vector) bool {
		if admit != nil && !admit(id) {
			return true
		}
		score := sparse.Dot(query, v)
		if h.Len() < k {
			heap.Push(h, hitItem{id: id, score: score})
		} else if (*h)[0].score < score || ((*h)[0].score == score && (*h)[0].id > id) {
			heap.Pop(h)
			heap.Push(h, hitItem{id: id, score: score})
		}
		return true
	})

	items := make([]hitItem, h.Len())
	copy(items, *h)
	sortDescending(items)

	out := make([]Hit, len(items))
	for i, it := range items {
		out[i] = Hit{ID: it.id, Score: it.score}
	}
	return out
}

type hitItem struct {
	id    storage.VectorId
	score float32
}

// minHeap is a min-heap on score (with a lower-id tie-break inverted, since
// popping the *smallest* of the k-best set is what Search needs to evict
// when a better candidate arrives).
type minHeap []hitItem

func (h minHeap) Len() int { return len(h) }
func (h minHeap) Less(i, j int) bool {
	if h[i].score != h[j].score {
		return h[i].score < h[j].score
	}
	return h[i].id > h[j].id
}
func (h minHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x interface{}) {
	*h = append(*h, x.(hitItem))
}
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// sortDescending sorts items by score descending, ties broken by lower id,
// via a plain insertion sort — k is small (the caller's result-set size),
// so this avoids pulling in sort.Slice's reflection-based comparator for a
// handful of elements.
func sortDescending(items []hitItem) {
	for i := 1; i < len(items); i++ {
		v := items[i]
		j := i - 1
		for j >= 0 && before(v, items[j]) {
			items[j+1] = items[j]
			j--
		}
		items[j+1] = v
	}
}

// before reports whether a belongs strictly ahead of b in the final
// descending-by-score, ascending-by-id result order.
func before(a, b hitItem) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.id < b.id
}
