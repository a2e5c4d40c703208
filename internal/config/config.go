// Package config loads EdgeVec's YAML configuration file: index
// parameters, BQ oversample factors, filter limits, and the hybrid
// candidate budget (spec §2's "Config loading (ambient)" row), following
// the teacher's own `project.ProjectConfig`/`vectordb.StoreConfig` split —
// a plain struct with yaml tags, a Defaults constructor, and a thin
// os.ReadFile + yaml.Unmarshal loader.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/edgevec/edgevec/internal/bq"
	"github.com/edgevec/edgevec/internal/filter"
	"github.com/edgevec/edgevec/internal/hnsw"
	"github.com/edgevec/edgevec/internal/hybrid"
	"github.com/edgevec/edgevec/internal/strategy"
)

// Config holds every tunable named in spec §2/§4: HNSW construction and
// search parameters, BQ oversample factors, filter grammar limits, and the
// hybrid-mode candidate budget. Zero value is not meaningful — call
// Defaults or Load.
type Config struct {
	// Dim is the vector dimension this index is configured for.
	Dim int `yaml:"dim"`

	// M is the maximum HNSW friends per node per layer above layer 0.
	M int `yaml:"m,omitempty"`
	// MMax0 overrides the layer-0 friend cap (default 2*M).
	MMax0 int `yaml:"m_max0,omitempty"`
	// EfConstruction is the beam width used while inserting.
	EfConstruction int `yaml:"ef_construction,omitempty"`
	// EfSearch is the default beam width used while searching.
	EfSearch int `yaml:"ef_search,omitempty"`
	// Seed seeds the level-assignment PRNG.
	Seed int64 `yaml:"seed,omitempty"`

	// BQOversample is the candidate oversample factor for a default-recall
	// BQ search.
	BQOversample int `yaml:"bq_oversample,omitempty"`
	// BQHighRecallOversample is the oversample factor for high-recall BQ
	// search. The façade does not read it; a caller passes it to SearchBQ
	// as the explicit oversample argument.
	BQHighRecallOversample int `yaml:"bq_high_recall_oversample,omitempty"`

	// FilterMaxLength caps a filter predicate string's length in bytes.
	FilterMaxLength int `yaml:"filter_max_length,omitempty"`
	// FilterMaxDepth caps a filter predicate's AST nesting depth.
	FilterMaxDepth int `yaml:"filter_max_depth,omitempty"`

	// HybridCandidateBudget is the candidate-set size used in hybrid-mode
	// filtered search (spec §4.6).
	HybridCandidateBudget int `yaml:"hybrid_candidate_budget,omitempty"`

	// HybridKRRF is Reciprocal Rank Fusion's damping constant.
	HybridKRRF int `yaml:"hybrid_k_rrf,omitempty"`
}

// Defaults returns a Config with every field set to its package-level
// default, for the given vector dimension. Mirrors the teacher's
// DefaultStoreConfig(path, dimension) shape.
func Defaults(dim int) *Config {
	return &Config{
		Dim:                    dim,
		M:                      16,
		EfConstruction:         200,
		EfSearch:               50,
		BQOversample:           bq.DefaultOversample,
		BQHighRecallOversample: bq.HighRecallOversample,
		FilterMaxLength:        filter.DefaultMaxLength,
		FilterMaxDepth:         filter.DefaultMaxDepth,
		HybridCandidateBudget:  strategy.DefaultHybridCandidateBudget,
		HybridKRRF:             hybrid.DefaultKRRF,
	}
}

// Load reads and parses a YAML config file at path, filling in any
// zero-valued field left unset by the file with its package default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Defaults(0)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.Dim <= 0 {
		return nil, fmt.Errorf("config: %s: dim must be positive", path)
	}
	applyDefaults(cfg)
	return cfg, nil
}

// Save writes cfg to path as YAML, mirroring the teacher's
// ProjectConfig.Save.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// applyDefaults fills any field the loaded YAML left at its zero value
// with the matching package default, the same "partial file, defaulted
// rest" behavior the teacher's DefaultIndexConfig callers rely on.
func applyDefaults(cfg *Config) {
	d := Defaults(cfg.Dim)
	if cfg.M <= 0 {
		cfg.M = d.M
	}
	if cfg.MMax0 <= 0 {
		cfg.MMax0 = cfg.M * 2
	}
	if cfg.EfConstruction <= 0 {
		cfg.EfConstruction = d.EfConstruction
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = d.EfSearch
	}
	if cfg.BQOversample <= 0 {
		cfg.BQOversample = d.BQOversample
	}
	if cfg.BQHighRecallOversample <= 0 {
		cfg.BQHighRecallOversample = d.BQHighRecallOversample
	}
	if cfg.FilterMaxLength <= 0 {
		cfg.FilterMaxLength = d.FilterMaxLength
	}
	if cfg.FilterMaxDepth <= 0 {
		cfg.FilterMaxDepth = d.FilterMaxDepth
	}
	if cfg.HybridCandidateBudget <= 0 {
		cfg.HybridCandidateBudget = d.HybridCandidateBudget
	}
	if cfg.HybridKRRF <= 0 {
		cfg.HybridKRRF = d.HybridKRRF
	}
}

// HNSWConfig converts the relevant fields into an internal/hnsw.Config.
func (c *Config) HNSWConfig() hnsw.Config {
	return hnsw.Config{
		M:              c.M,
		MMax0:          c.MMax0,
		EfConstruction: c.EfConstruction,
		EfSearch:       c.EfSearch,
		Seed:           c.Seed,
	}
}
