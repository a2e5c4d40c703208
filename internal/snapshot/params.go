package snapshot

import (
	"encoding/binary"
	"io"
)

// params is the parameter block named in spec §4.8: construction/search
// tuning plus the flags that tell Load which optional segments follow.
type params struct {
	m              int
	mMax0          int
	efConstruction int
	efSearch       int
	seed           int64
	draws          uint32
	flags          uint8
}

func writeParams(w io.Writer, snap Snapshot) error {
	le := binary.LittleEndian
	cfg := snap.Graph.Config()
	var flags uint8
	if snap.Sparse != nil {
		flags |= flagSparsePresent
	}
	if snap.BQEnabled {
		flags |= flagBQEnabled
	}
	fields := []interface{}{
		uint32(cfg.M),
		uint32(cfg.MMax0),
		uint32(cfg.EfConstruction),
		uint32(cfg.EfSearch),
		cfg.Seed,
		uint32(snap.Graph.Draws()),
		flags,
	}
	for _, f := range fields {
		if err := binary.Write(w, le, f); err != nil {
			return err
		}
	}
	return nil
}

func readParams(r io.Reader) (params, error) {
	le := binary.LittleEndian
	var p params
	var m, mMax0, efConstruction, efSearch uint32
	for _, f := range []interface{}{&m, &mMax0, &efConstruction, &efSearch} {
		if err := binary.Read(r, le, f); err != nil {
			return params{}, err
		}
	}
	if err := binary.Read(r, le, &p.seed); err != nil {
		return params{}, err
	}
	if err := binary.Read(r, le, &p.draws); err != nil {
		return params{}, err
	}
	if err := binary.Read(r, le, &p.flags); err != nil {
		return params{}, err
	}
	p.m = int(m)
	p.mMax0 = int(mMax0)
	p.efConstruction = int(efConstruction)
	p.efSearch = int(efSearch)
	return p, nil
}
