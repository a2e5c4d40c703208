package storage

import (
	"encoding/binary"
	"io"

	"github.com/RoaringBitmap/roaring/v2"
)

// WriteBody writes the dense store's body segment (dim, nextID, the flat
// buffer, and the deletion bitmap) with no header/trailer, so
// internal/snapshot can embed it inside the larger "EDGE" format (spec
// §4.8's "dense buffer" + "deletion bitmap" segments, combined the same
// way internal/sparse's WriteBody combines its own dim/vectors/bitmap).
func (s *Store) WriteBody(w io.Writer) error {
	le := binary.LittleEndian
	if err := binary.Write(w, le, uint32(s.dim)); err != nil {
		return err
	}
	if err := binary.Write(w, le, uint64(s.nextID)); err != nil {
		return err
	}
	if err := binary.Write(w, le, uint64(len(s.buffer))); err != nil {
		return err
	}
	for _, f := range s.buffer {
		if err := binary.Write(w, le, f); err != nil {
			return err
		}
	}
	_, err := s.deleted.WriteTo(w)
	return err
}

// ReadBody reads the body segment written by WriteBody.
func ReadBody(r io.Reader) (*Store, error) {
	le := binary.LittleEndian
	var dim uint32
	if err := binary.Read(r, le, &dim); err != nil {
		return nil, err
	}
	var nextID uint64
	if err := binary.Read(r, le, &nextID); err != nil {
		return nil, err
	}
	var n uint64
	if err := binary.Read(r, le, &n); err != nil {
		return nil, err
	}
	buf := make([]float32, n)
	for i := range buf {
		if err := binary.Read(r, le, &buf[i]); err != nil {
			return nil, err
		}
	}
	bm := roaring.New()
	if _, err := bm.ReadFrom(r); err != nil {
		return nil, err
	}
	return &Store{
		dim:     int(dim),
		buffer:  buf,
		deleted: bm,
		nextID:  VectorId(nextID),
	}, nil
}
