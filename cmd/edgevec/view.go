package main

import (
	"github.com/edgevec/edgevec"
	"github.com/edgevec/edgevec/internal/metadata"
)

// resultView renders an edgevec.Result for CLI output: metadata values are
// flattened to their bare Go value so json.Marshal produces plain scalars
// instead of the internal Kind-tagged struct.
type resultView struct {
	ID       uint64                 `json:"id"`
	Distance float32                `json:"distance"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func viewResults(results []edgevec.Result) []resultView {
	out := make([]resultView, len(results))
	for i, r := range results {
		out[i] = resultView{ID: uint64(r.ID), Distance: r.Distance}
		if len(r.Metadata) > 0 {
			out[i].Metadata = make(map[string]interface{}, len(r.Metadata))
			for k, v := range r.Metadata {
				out[i].Metadata[k] = scalarOf(v)
			}
		}
	}
	return out
}

func scalarOf(v metadata.Value) interface{} {
	switch v.Kind {
	case metadata.KindString:
		return v.Str
	case metadata.KindInt:
		return v.Int
	case metadata.KindFloat:
		return v.Float
	case metadata.KindBool:
		return v.Bool
	case metadata.KindStringArray:
		return v.Strs
	default:
		return nil
	}
}
