package sparse

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/RoaringBitmap/roaring/v2"
)

// Magic and version for the standalone sparse-store snapshot format (spec
// §4.8: magic "ESPV" for the sparse store). When a sparse store is
// embedded inside a full index snapshot, the codec in internal/snapshot
// writes/reads the same body via WriteBody/ReadBody without this header,
// since the outer "EDGE" header already carries the version contract.
var Magic = [4]byte{'E', 'S', 'P', 'V'}

const formatVersion uint32 = 1

// Save writes the standalone sparse-store snapshot: magic, version, body,
// CRC32C(body).
func (s *Store) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(Magic[:]); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, formatVersion); err != nil {
		return err
	}
	crc := crc32.New(crc32.MakeTable(crc32.Castagnoli))
	if err := s.WriteBody(io.MultiWriter(bw, crc)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, crc.Sum32()); err != nil {
		return err
	}
	return bw.Flush()
}

// Load reads a standalone sparse-store snapshot produced by Save.
func Load(r io.Reader) (*Store, error) {
	br := bufio.NewReader(r)
	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("sparse: read magic: %w", err)
	}
	if magic != Magic {
		return nil, fmt.Errorf("sparse: bad magic %q", magic[:])
	}
	var version uint32
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return nil, err
	}
	if version != formatVersion {
		return nil, fmt.Errorf("sparse: unsupported version %d", version)
	}

	crc := crc32.New(crc32.MakeTable(crc32.Castagnoli))
	s, err := ReadBody(io.TeeReader(br, crc))
	if err != nil {
		return nil, err
	}
	var wantCRC uint32
	if err := binary.Read(br, binary.LittleEndian, &wantCRC); err != nil {
		return nil, err
	}
	if crc.Sum32() != wantCRC {
		return nil, fmt.Errorf("sparse: checksum failed")
	}
	return s, nil
}

// WriteBody writes the sparse store's body segment (dim, vectors,
// deletion bitmap) with no header/trailer, so internal/snapshot can embed
// it inside the larger "EDGE" format.
func (s *Store) WriteBody(w io.Writer) error {
	le := binary.LittleEndian
	if err := binary.Write(w, le, uint32(s.dim)); err != nil {
		return err
	}
	if err := binary.Write(w, le, uint32(len(s.vectors))); err != nil {
		return err
	}
	for _, v := range s.vectors {
		if err := binary.Write(w, le, uint32(len(v.Indices))); err != nil {
			return err
		}
		for _, idx := range v.Indices {
			if err := binary.Write(w, le, idx); err != nil {
				return err
			}
		}
		for _, val := range v.Values {
			if err := binary.Write(w, le, val); err != nil {
				return err
			}
		}
	}
	_, err := s.deleted.WriteTo(w)
	return err
}

// ReadBody reads the body segment written by WriteBody.
func ReadBody(r io.Reader) (*Store, error) {
	le := binary.LittleEndian
	var dim, n uint32
	if err := binary.Read(r, le, &dim); err != nil {
		return nil, err
	}
	if err := binary.Read(r, le, &n); err != nil {
		return nil, err
	}
	s := New(int(dim))
	s.vectors = make([]Vector, n)
	for i := range s.vectors {
		var nnz uint32
		if err := binary.Read(r, le, &nnz); err != nil {
			return nil, err
		}
		indices := make([]uint32, nnz)
		for j := range indices {
			if err := binary.Read(r, le, &indices[j]); err != nil {
				return nil, err
			}
		}
		values := make([]float32, nnz)
		for j := range values {
			if err := binary.Read(r, le, &values[j]); err != nil {
				return nil, err
			}
		}
		s.vectors[i] = Vector{Indices: indices, Values: values}
	}
	bm := roaring.New()
	if _, err := bm.ReadFrom(r); err != nil {
		return nil, err
	}
	s.deleted = bm
	return s, nil
}
