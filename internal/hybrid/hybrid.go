// Package hybrid fuses a dense (HNSW/BQ) result list with a sparse
// (internal/sparsesearch) result list into one ranked list, per spec §4.7.
// Both fusion strategies are rank- or score-based merges keyed by id, the
// same "merge two result lists by key into a map, then re-sort" shape the
// teacher pack uses for its own dense+sparse blend
// (other_examples NeboLoop embeddings.mergeResults).
package hybrid

import (
	"sort"

	"github.com/edgevec/edgevec/internal/storage"
)

// Ranked is one id from a single leg's result list, in rank order (rank 1
// is the best match). Score is that leg's native similarity/distance
// score, used only by linear fusion.
type Ranked struct {
	ID    storage.VectorId
	Score float64
}

// Fused is one id's fused result.
type Fused struct {
	ID    storage.VectorId
	Score float64
}

// DefaultKRRF is Reciprocal Rank Fusion's rank-damping constant (spec §4.7).
const DefaultKRRF = 60

// RRF fuses dense and sparse rank lists via Reciprocal Rank Fusion: each id
// appearing in either list scores Σ 1/(kRRF + rank), 1-indexed rank within
// its own list. An id absent from a list simply contributes 0 from that
// leg. Output is sorted descending by fused score; these scores are not
// probabilities (spec §4.7).
func RRF(dense, sparse []Ranked, kRRF int) []Fused {
	if kRRF <= 0 {
		kRRF = DefaultKRRF
	}
	scores := make(map[storage.VectorId]float64)
	order := make([]storage.VectorId, 0, len(dense)+len(sparse))
	accumulate := func(list []Ranked) {
		for i, r := range list {
			rank := i + 1
			if _, seen := scores[r.ID]; !seen {
				order = append(order, r.ID)
			}
			scores[r.ID] += 1.0 / float64(kRRF+rank)
		}
	}
	accumulate(dense)
	accumulate(sparse)

	out := make([]Fused, len(order))
	for i, id := range order {
		out[i] = Fused{ID: id, Score: scores[id]}
	}
	sortDescending(out)
	return out
}

// Linear fuses dense and sparse score lists via min-max normalization
// within each list followed by a weighted sum: alpha*dense + (1-alpha)*
// sparse. A list with a single distinct score (min == max) normalizes its
// members all to 1, since there is nothing to discriminate.
func Linear(dense, sparse []Ranked, alpha float64) []Fused {
	denseNorm := minMaxNormalize(dense)
	sparseNorm := minMaxNormalize(sparse)

	scores := make(map[storage.VectorId]float64)
	order := make([]storage.VectorId, 0, len(dense)+len(sparse))
	for id, s := range denseNorm {
		if _, seen := scores[id]; !seen {
			order = append(order, id)
		}
		scores[id] += alpha * s
	}
	for id, s := range sparseNorm {
		if _, seen := scores[id]; !seen {
			order = append(order, id)
		}
		scores[id] += (1 - alpha) * s
	}

	out := make([]Fused, len(order))
	for i, id := range order {
		out[i] = Fused{ID: id, Score: scores[id]}
	}
	sortDescending(out)
	return out
}

func minMaxNormalize(list []Ranked) map[storage.VectorId]float64 {
	norm := make(map[storage.VectorId]float64, len(list))
	if len(list) == 0 {
		return norm
	}
	min, max := list[0].Score, list[0].Score
	for _, r := range list {
		if r.Score < min {
			min = r.Score
		}
		if r.Score > max {
			max = r.Score
		}
	}
	spread := max - min
	for _, r := range list {
		if spread == 0 {
			norm[r.ID] = 1
			continue
		}
		norm[r.ID] = (r.Score - min) / spread
	}
	return norm
}

func sortDescending(items []Fused) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ID < items[j].ID
	})
}

// LegK returns the base k each leg of a hybrid search should request so
// the fusion stage has a useful overlap to work with (spec §4.7: "both
// legs must use the same base k_leg >= k, default k_leg = 2k").
func LegK(k int) int {
	return 2 * k
}
