package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/edgevec/edgevec/internal/metadata"
	"github.com/spf13/cobra"
)

// insertRequest is one line of NDJSON read from stdin by insertCmd.
type insertRequest struct {
	Vector   []float32                `json:"vector"`
	Metadata map[string]jsonValue     `json:"metadata,omitempty"`
}

// jsonValue decodes a bare JSON scalar/array into a metadata.Value,
// inferring its Kind from the JSON type it actually arrived as.
type jsonValue struct {
	metadata.Value
}

func (v *jsonValue) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case nil:
		v.Value = metadata.Null
	case string:
		v.Value = metadata.StringValue(x)
	case bool:
		v.Value = metadata.BoolValue(x)
	case float64:
		if x == float64(int64(x)) {
			v.Value = metadata.IntValue(int64(x))
		} else {
			v.Value = metadata.FloatValue(x)
		}
	case []interface{}:
		strs := make([]string, len(x))
		for i, e := range x {
			s, ok := e.(string)
			if !ok {
				return fmt.Errorf("metadata array elements must be strings")
			}
			strs[i] = s
		}
		v.Value = metadata.StringArrayValue(strs)
	default:
		return fmt.Errorf("unsupported metadata value type %T", raw)
	}
	return nil
}

var insertCmd = &cobra.Command{
	Use:   "insert",
	Short: "Insert vectors read as NDJSON from stdin",
	Long: `Insert reads one JSON object per line from stdin, each shaped as:

  {"vector": [0.1, 0.2, ...], "metadata": {"category": "docs"}}

and inserts it, then writes the updated snapshot back to --snapshot.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := openIndex()
		if err != nil {
			exitError("%v", err)
		}

		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
		var inserted []uint64
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var req insertRequest
			if err := json.Unmarshal(line, &req); err != nil {
				exitError("parse line: %v", err)
			}
			var rec metadata.Record
			if len(req.Metadata) > 0 {
				rec = make(metadata.Record, len(req.Metadata))
				for k, v := range req.Metadata {
					rec[k] = v.Value
				}
			}
			id, err := idx.Insert(req.Vector, nil, rec)
			if err != nil {
				exitError("insert: %v", err)
			}
			inserted = append(inserted, uint64(id))
		}
		if err := scanner.Err(); err != nil && err != io.EOF {
			exitError("read stdin: %v", err)
		}

		if err := saveIndex(idx); err != nil {
			exitError("%v", err)
		}

		if jsonOutput {
			return outputJSON(map[string]interface{}{"inserted": inserted})
		}
		fmt.Printf("inserted %d vector(s)\n", len(inserted))
		return nil
	},
}
