// Package gconfig is the solver's configuration surface, the same
// Load/Save/DefaultConfig shape internal/config/config.go gives dynsim's
// models, reworked for spec §7's configure() parameters instead of
// integrator/controller selection.
package gconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/gravtree/internal/graverr"
	"github.com/san-kum/gravtree/internal/splitter"
)

const (
	DefaultDim                 = 3
	DefaultTheta               = 0.5
	DefaultMinAccel            = 0.0
	DefaultG                   = 1.0
	DefaultSoftening           = 0.0
	DefaultMaxExport           = 4096
	DefaultNumRanks            = 4
	DefaultLoadBalanceDepth    = 3
	DefaultInitialPoolCapacity = 1024
)

// Config is spec §7's configure() in persisted form: the domain, the
// opening criterion, and the export-buffer bound a distributed run needs
// every rank to agree on.
type Config struct {
	Dim                 int          `yaml:"dim"`
	DomainMin           []float64    `yaml:"domain_min"`
	DomainMax           []float64    `yaml:"domain_max"`
	Parallel            bool         `yaml:"parallel"`
	NumRanks            int          `yaml:"num_ranks"`
	LoadBalanceDepth    int          `yaml:"load_balance_depth"`
	SplitKind           splitter.Kind `yaml:"split_kind"`
	Theta               float64      `yaml:"theta"`
	MinAccel            float64      `yaml:"min_accel"`
	G                   float64      `yaml:"g"`
	Softening           float64      `yaml:"softening"`
	MaxExport           int          `yaml:"max_export"`
	InitialPoolCapacity int          `yaml:"initial_pool_capacity"`
}

// DefaultConfig mirrors dynsim's DefaultConfig: every field set to a value
// that runs, not necessarily one that is physically interesting.
func DefaultConfig() *Config {
	return &Config{
		Dim:                 DefaultDim,
		DomainMin:           []float64{-1, -1, -1},
		DomainMax:           []float64{1, 1, 1},
		Parallel:            false,
		NumRanks:            DefaultNumRanks,
		LoadBalanceDepth:    DefaultLoadBalanceDepth,
		SplitKind:           splitter.BarnesHutKind,
		Theta:               DefaultTheta,
		MinAccel:            DefaultMinAccel,
		G:                   DefaultG,
		Softening:           DefaultSoftening,
		MaxExport:           DefaultMaxExport,
		InitialPoolCapacity: DefaultInitialPoolCapacity,
	}
}

// Load reads a YAML config from path, defaulting any field the file omits.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the invariants configure() depends on (spec §7: a
// malformed configuration is a configuration error, not a panic).
func (c *Config) Validate() error {
	if c.Dim != 2 && c.Dim != 3 {
		return fmt.Errorf("%w: gconfig: dim must be 2 or 3, got %d", graverr.ErrConfiguration, c.Dim)
	}
	if len(c.DomainMin) != c.Dim || len(c.DomainMax) != c.Dim {
		return fmt.Errorf("%w: gconfig: domain_min/domain_max must have length %d", graverr.ErrConfiguration, c.Dim)
	}
	for k := range c.DomainMin {
		if c.DomainMin[k] >= c.DomainMax[k] {
			return fmt.Errorf("%w: gconfig: domain_min[%d] must be < domain_max[%d]", graverr.ErrConfiguration, k, k)
		}
	}
	if c.Parallel && c.NumRanks < 1 {
		return fmt.Errorf("%w: gconfig: num_ranks must be >= 1 when parallel is set", graverr.ErrConfiguration)
	}
	if c.MaxExport < 1 {
		return fmt.Errorf("%w: gconfig: max_export must be >= 1, got %d", graverr.ErrConfiguration, c.MaxExport)
	}
	switch c.SplitKind {
	case splitter.BarnesHutKind, splitter.AccelerationKind:
	default:
		return fmt.Errorf("%w: gconfig: unknown split_kind %q", graverr.ErrConfiguration, c.SplitKind)
	}
	return nil
}
