package gconfig

import "github.com/san-kum/gravtree/internal/splitter"

// Presets mirrors dynsim's internal/config/presets.go Presets map, grouped
// by run mode rather than by physical model: gravtree has one solver, but
// "serial" vs "parallel" and the opening criterion in use change which
// knobs matter.
var Presets = map[string]map[string]*Config{
	"serial": {
		"tight": {
			Dim: 3, DomainMin: []float64{-1, -1, -1}, DomainMax: []float64{1, 1, 1},
			SplitKind: splitter.BarnesHutKind, Theta: 0.3, G: 1.0, MaxExport: DefaultMaxExport,
			InitialPoolCapacity: DefaultInitialPoolCapacity,
		},
		"loose": {
			Dim: 3, DomainMin: []float64{-1, -1, -1}, DomainMax: []float64{1, 1, 1},
			SplitKind: splitter.BarnesHutKind, Theta: 0.8, G: 1.0, MaxExport: DefaultMaxExport,
			InitialPoolCapacity: DefaultInitialPoolCapacity,
		},
		"direct": {
			Dim: 3, DomainMin: []float64{-1, -1, -1}, DomainMax: []float64{1, 1, 1},
			SplitKind: splitter.BarnesHutKind, Theta: 1e-9, G: 1.0, MaxExport: DefaultMaxExport,
			InitialPoolCapacity: DefaultInitialPoolCapacity,
		},
	},
	"parallel": {
		"ranks4": {
			Dim: 3, DomainMin: []float64{-1, -1, -1}, DomainMax: []float64{1, 1, 1},
			Parallel: true, NumRanks: 4, LoadBalanceDepth: 3,
			SplitKind: splitter.BarnesHutKind, Theta: 0.5, G: 1.0, MaxExport: DefaultMaxExport,
			InitialPoolCapacity: DefaultInitialPoolCapacity,
		},
		"ranks16-small-buffer": {
			Dim: 3, DomainMin: []float64{-1, -1, -1}, DomainMax: []float64{1, 1, 1},
			Parallel: true, NumRanks: 16, LoadBalanceDepth: 4,
			SplitKind: splitter.BarnesHutKind, Theta: 0.5, G: 1.0, MaxExport: 8,
			InitialPoolCapacity: DefaultInitialPoolCapacity,
		},
		"acceleration-criterion": {
			Dim: 3, DomainMin: []float64{-1, -1, -1}, DomainMax: []float64{1, 1, 1},
			Parallel: true, NumRanks: 4, LoadBalanceDepth: 3,
			SplitKind: splitter.AccelerationKind, Theta: DefaultTheta, MinAccel: 1e-4, G: 1.0, MaxExport: DefaultMaxExport,
			InitialPoolCapacity: DefaultInitialPoolCapacity,
		},
	},
}

// GetPreset mirrors dynsim's config.GetPreset.
func GetPreset(mode, name string) *Config {
	group, ok := Presets[mode]
	if !ok {
		return nil
	}
	cfg, ok := group[name]
	if !ok {
		return nil
	}
	return cfg
}

// ListPresets mirrors dynsim's config.ListPresets.
func ListPresets(mode string) []string {
	group, ok := Presets[mode]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(group))
	for name := range group {
		names = append(names, name)
	}
	return names
}
