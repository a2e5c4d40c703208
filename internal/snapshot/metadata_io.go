package snapshot

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/edgevec/edgevec/internal/metadata"
	"github.com/edgevec/edgevec/internal/storage"
)

// writeMetadata serializes every record in m as a length-prefixed TLV
// stream: record count, then per record an id, a field count, and each
// field's key and typed value.
func writeMetadata(w io.Writer, m *metadata.Memory) error {
	le := binary.LittleEndian
	if err := binary.Write(w, le, uint64(m.Len())); err != nil {
		return err
	}
	var writeErr error
	m.Each(func(id storage.VectorId, rec metadata.Record) bool {
		if err := binary.Write(w, le, uint64(id)); err != nil {
			writeErr = err
			return false
		}
		if err := binary.Write(w, le, uint32(len(rec))); err != nil {
			writeErr = err
			return false
		}
		for key, val := range rec {
			if err := writeString(w, key); err != nil {
				writeErr = err
				return false
			}
			if err := writeValue(w, val); err != nil {
				writeErr = err
				return false
			}
		}
		return true
	})
	return writeErr
}

func readMetadata(r io.Reader) (*metadata.Memory, error) {
	le := binary.LittleEndian
	m := metadata.NewMemory()
	var count uint64
	if err := binary.Read(r, le, &count); err != nil {
		return nil, err
	}
	for i := uint64(0); i < count; i++ {
		var id uint64
		if err := binary.Read(r, le, &id); err != nil {
			return nil, err
		}
		var nFields uint32
		if err := binary.Read(r, le, &nFields); err != nil {
			return nil, err
		}
		rec := make(metadata.Record, nFields)
		for j := uint32(0); j < nFields; j++ {
			key, err := readString(r)
			if err != nil {
				return nil, err
			}
			val, err := readValue(r)
			if err != nil {
				return nil, err
			}
			rec[key] = val
		}
		if err := m.Put(storage.VectorId(id), rec); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func writeString(w io.Writer, s string) error {
	le := binary.LittleEndian
	if err := binary.Write(w, le, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	le := binary.LittleEndian
	var n uint32
	if err := binary.Read(r, le, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeValue(w io.Writer, v metadata.Value) error {
	le := binary.LittleEndian
	if err := binary.Write(w, le, uint8(v.Kind)); err != nil {
		return err
	}
	switch v.Kind {
	case metadata.KindNull:
		return nil
	case metadata.KindString:
		return writeString(w, v.Str)
	case metadata.KindInt:
		return binary.Write(w, le, v.Int)
	case metadata.KindFloat:
		return binary.Write(w, le, v.Float)
	case metadata.KindBool:
		return binary.Write(w, le, v.Bool)
	case metadata.KindStringArray:
		if err := binary.Write(w, le, uint32(len(v.Strs))); err != nil {
			return err
		}
		for _, s := range v.Strs {
			if err := writeString(w, s); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("snapshot: unknown metadata kind %d", v.Kind)
	}
}

func readValue(r io.Reader) (metadata.Value, error) {
	le := binary.LittleEndian
	var kind uint8
	if err := binary.Read(r, le, &kind); err != nil {
		return metadata.Value{}, err
	}
	switch metadata.Kind(kind) {
	case metadata.KindNull:
		return metadata.Null, nil
	case metadata.KindString:
		s, err := readString(r)
		if err != nil {
			return metadata.Value{}, err
		}
		return metadata.StringValue(s), nil
	case metadata.KindInt:
		var i int64
		if err := binary.Read(r, le, &i); err != nil {
			return metadata.Value{}, err
		}
		return metadata.IntValue(i), nil
	case metadata.KindFloat:
		var f float64
		if err := binary.Read(r, le, &f); err != nil {
			return metadata.Value{}, err
		}
		return metadata.FloatValue(f), nil
	case metadata.KindBool:
		var b bool
		if err := binary.Read(r, le, &b); err != nil {
			return metadata.Value{}, err
		}
		return metadata.BoolValue(b), nil
	case metadata.KindStringArray:
		var n uint32
		if err := binary.Read(r, le, &n); err != nil {
			return metadata.Value{}, err
		}
		strs := make([]string, n)
		for i := range strs {
			s, err := readString(r)
			if err != nil {
				return metadata.Value{}, err
			}
			strs[i] = s
		}
		return metadata.StringArrayValue(strs), nil
	default:
		return metadata.Value{}, fmt.Errorf("snapshot: unknown metadata kind %d", kind)
	}
}
