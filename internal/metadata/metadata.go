// Package metadata implements the per-vector metadata record store: a
// mapping from VectorId to a typed key/value record (spec §3 "Metadata
// record", §4.5). Records are strict-insert, full-get, and read-only once
// inserted — a later Put replaces the whole record, it never merges keys.
//
// Callers that iterate a 0-based index space (the filter evaluator's
// candidate order, say) must translate idx -> idx+1 before calling into
// this package — see spec §4.5 and §9's "ID indexing hazard" note.
package metadata

import "github.com/edgevec/edgevec/internal/storage"

// Kind tags the type of a metadata Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindStringArray
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindStringArray:
		return "string-array"
	default:
		return "null"
	}
}

// Value is a tagged union over the value kinds spec §3 allows in a
// metadata record: {string, integer, float, boolean, string-array, null}.
type Value struct {
	Kind  Kind
	Str   string
	Int   int64
	Float float64
	Bool  bool
	Strs  []string
}

// Null is the zero Value, used for missing keys.
var Null = Value{Kind: KindNull}

func StringValue(s string) Value       { return Value{Kind: KindString, Str: s} }
func IntValue(i int64) Value           { return Value{Kind: KindInt, Int: i} }
func FloatValue(f float64) Value       { return Value{Kind: KindFloat, Float: f} }
func BoolValue(b bool) Value           { return Value{Kind: KindBool, Bool: b} }
func StringArrayValue(s []string) Value {
	return Value{Kind: KindStringArray, Strs: append([]string(nil), s...)}
}

// AsFloat returns v's numeric value as a float64, coercing integers
// implicitly (spec §4.6: "integer<->float is implicit"). ok is false for
// non-numeric kinds.
func (v Value) AsFloat() (f float64, ok bool) {
	switch v.Kind {
	case KindFloat:
		return v.Float, true
	case KindInt:
		return float64(v.Int), true
	default:
		return 0, false
	}
}

// Record is one vector's full metadata: a string-keyed map of Values.
// Missing keys evaluate as Null, never as an error (spec §3).
type Record map[string]Value

// Get returns the value for key, or Null if absent.
func (r Record) Get(key string) Value {
	if v, ok := r[key]; ok {
		return v
	}
	return Null
}

// Store is the metadata backend interface; Memory (the default) and
// SQLiteStore (internal/metadata's optional durable backend) both satisfy
// it.
type Store interface {
	// Put inserts or replaces the full record for id.
	Put(id storage.VectorId, rec Record) error
	// Get returns the record for id, or (nil, false) if none was ever put.
	Get(id storage.VectorId) (Record, bool)
	// Delete removes id's record entirely (called alongside storage
	// soft-delete so a later compaction can drop it without a dangling
	// reference).
	Delete(id storage.VectorId) bool
	// Len returns the number of stored records.
	Len() int
}

// Memory is the default, in-memory Store implementation: a plain map
// guarded by the façade's single-writer discipline (spec §5 — the core is
// not reentrant, so no internal locking is needed here).
type Memory struct {
	records map[storage.VectorId]Record
}

// NewMemory creates an empty in-memory metadata store.
func NewMemory() *Memory {
	return &Memory{records: make(map[storage.VectorId]Record)}
}

func (m *Memory) Put(id storage.VectorId, rec Record) error {
	m.records[id] = rec
	return nil
}

func (m *Memory) Get(id storage.VectorId) (Record, bool) {
	r, ok := m.records[id]
	return r, ok
}

func (m *Memory) Delete(id storage.VectorId) bool {
	if _, ok := m.records[id]; !ok {
		return false
	}
	delete(m.records, id)
	return true
}

func (m *Memory) Len() int { return len(m.records) }

// Each calls fn for every stored record in unspecified order, until fn
// returns false. Used by internal/snapshot to serialize all records and by
// internal/metaindex to build its secondary index.
func (m *Memory) Each(fn func(id storage.VectorId, rec Record) bool) {
	for id, rec := range m.records {
		if !fn(id, rec) {
			return
		}
	}
}
