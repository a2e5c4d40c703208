// Package metaindex implements an optional, bleve-backed secondary index
// over metadata records. It gives the filter strategy selector
// (internal/strategy) real term-frequency selectivity numbers in place of
// the fixed per-predicate heuristics, and gives the façade a fast
// pre-filter candidate id-set for string/keyword equality and membership
// predicates on indexed fields.
//
// Attaching an Index is optional: a caller that never builds one still gets
// exactly the spec-default heuristic behavior from internal/strategy.
package metaindex

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/edgevec/edgevec/internal/filter"
	"github.com/edgevec/edgevec/internal/metadata"
	"github.com/edgevec/edgevec/internal/storage"
)

// Index is an in-memory bleve index keyed by the decimal string form of a
// storage.VectorId, one document per metadata record.
type Index struct {
	mu     sync.RWMutex
	index  bleve.Index
	fields map[string]bool
}

// New builds an empty, in-memory metadata index. fields names the record
// keys to make keyword-searchable (indexed as exact-match "keyword"
// fields, following the teacher's own SearchIndex.buildIndexMapping
// convention of a dedicated keyword analyzer for exact-match fields).
func New(fields []string) (*Index, error) {
	idx, err := bleve.NewMemOnly(buildMapping(fields))
	if err != nil {
		return nil, fmt.Errorf("edgevec: metaindex: %w", err)
	}
	fset := make(map[string]bool, len(fields))
	for _, f := range fields {
		fset[f] = true
	}
	return &Index{index: idx, fields: fset}, nil
}

// HasField reports whether field was named in New's field list, and so is
// safe to serve an exact-match MatchingIDs query against: fields outside
// this set fall through the index's dynamic default mapping (ordinary
// tokenized text), not the keyword analyzer equality depends on.
func (x *Index) HasField(field string) bool {
	return x.fields[field]
}

func buildMapping(fields []string) mapping.IndexMapping {
	keyword := bleve.NewTextFieldMapping()
	keyword.Analyzer = "keyword"

	doc := bleve.NewDocumentMapping()
	for _, f := range fields {
		doc.AddFieldMappingsAt(f, keyword)
	}

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	return im
}

func docID(id storage.VectorId) string {
	return strconv.FormatUint(uint64(id), 10)
}

// Put indexes (or reindexes) rec under id. Non-string scalar values
// (KindInt, KindFloat, KindBool) are stored as their string form (TermFor),
// so these fields support exact matching only — range queries are not
// this index's job (spec's equality/membership predicates are).
func (x *Index) Put(id storage.VectorId, rec metadata.Record) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	doc := make(map[string]interface{}, len(rec))
	for k, v := range rec {
		doc[k] = fieldTerms(v)
	}
	if err := x.index.Index(docID(id), doc); err != nil {
		return fmt.Errorf("edgevec: metaindex: index %d: %w", id, err)
	}
	return nil
}

func fieldTerms(v metadata.Value) interface{} {
	if v.Kind == metadata.KindStringArray {
		return v.Strs
	}
	term, ok := TermFor(v)
	if !ok {
		return nil
	}
	return term
}

// TermFor converts v into the same single-term string Put indexes scalar
// values under, for callers (the façade's pre-filter admit-set builder)
// that want to drive MatchingIDs directly from a parsed filter.Comparison
// or filter.Membership literal instead of scanning every record. ok is
// false for KindStringArray and KindNull, which have no single-term
// equality form.
func TermFor(v metadata.Value) (string, bool) {
	switch v.Kind {
	case metadata.KindString:
		return v.Str, true
	case metadata.KindInt:
		return strconv.FormatInt(v.Int, 10), true
	case metadata.KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64), true
	case metadata.KindBool:
		return strconv.FormatBool(v.Bool), true
	default:
		return "", false
	}
}

// Delete removes id's document, for when the façade soft-deletes a vector.
func (x *Index) Delete(id storage.VectorId) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.index.Delete(docID(id)); err != nil {
		return fmt.Errorf("edgevec: metaindex: delete %d: %w", id, err)
	}
	return nil
}

// Count returns the number of indexed documents.
func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	n, err := x.index.DocCount()
	if err != nil {
		return 0
	}
	return int(n)
}

// MatchingIDs returns the ids of every record with field == termValue,
// for use as a pre-filter candidate id-set.
func (x *Index) MatchingIDs(field, termValue string) ([]storage.VectorId, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	q := bleve.NewTermQuery(termValue)
	q.SetField(field)

	total, err := x.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("edgevec: metaindex: doc count: %w", err)
	}
	req := bleve.NewSearchRequest(q)
	req.Size = int(total)
	if req.Size == 0 {
		req.Size = 1
	}

	res, err := x.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("edgevec: metaindex: search: %w", err)
	}
	ids := make([]storage.VectorId, 0, len(res.Hits))
	for _, hit := range res.Hits {
		n, err := strconv.ParseUint(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, storage.VectorId(n))
	}
	return ids, nil
}

// EqualitySelectivity implements strategy.Histogram by running a term
// query and dividing its hit count by the total document count. Fields
// outside the configured keyword set report ok=false.
func (x *Index) EqualitySelectivity(field string, value metadata.Value) (float64, bool) {
	if !x.HasField(field) {
		return 0, false
	}
	total := x.Count()
	if total == 0 {
		return 0, false
	}

	term := fieldTerms(value)
	ts, ok := term.(string)
	if !ok {
		return 0, false
	}

	ids, err := x.MatchingIDs(field, ts)
	if err != nil {
		return 0, false
	}
	return float64(len(ids)) / float64(total), true
}

// RangeSelectivity is not backed by this index — bleve's keyword mapping
// here only supports exact-match term queries, not numeric/string
// range queries, so metaindex declines range estimates and lets
// internal/strategy fall back to its fixed range heuristic.
func (x *Index) RangeSelectivity(field string, op filter.CompareOp, value, high metadata.Value) (float64, bool) {
	return 0, false
}

// Close releases the underlying bleve index's resources.
func (x *Index) Close() error {
	return x.index.Close()
}
