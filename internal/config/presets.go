package config

import "sort"

// Presets are named source scenarios. The grid is shared.
var Presets = map[string]*Config{
	// the regression scenario used by the backend tests
	"reference": {
		Source: SourceConfig{
			East: 0.5, North: -0.25, Depth: 2.75,
			Omega: [3]float64{5, -8, 30},
			DV:    [3]float64{0.00144, 0.00128, 0.00072},
		},
		Nu: 0.25,
	},
	// horizontal crack opening
	"sill": {
		Source: SourceConfig{Depth: 2, DV: [3]float64{0, 0, 0.002}},
		Nu:     0.25,
	},
	// vertical crack striking north-south
	"dike": {
		Source: SourceConfig{Depth: 1.5, DV: [3]float64{0.002, 0, 0}},
		Nu:     0.25,
	},
	// equal potencies behave like a Mogi point source
	"isotropic": {
		Source: SourceConfig{Depth: 3, DV: [3]float64{0.001, 0.001, 0.001}},
		Nu:     0.25,
	},
	"deflation": {
		Source: SourceConfig{
			East: -1, North: 1, Depth: 2.5,
			Omega: [3]float64{0, 10, -20},
			DV:    [3]float64{-0.0008, -0.0008, -0.0016},
		},
		Nu: 0.25,
	},
}

// GetPreset returns a copy of the named preset on the default grid.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := *p
	cfg.Grid = DefaultGrid()
	cfg.DataDir = DefaultDataDir
	if cfg.Name == "" {
		cfg.Name = name
	}
	return &cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
