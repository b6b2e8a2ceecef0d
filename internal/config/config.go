// Package config loads pCDM run settings from defaults, YAML files and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/pcdm/internal/grid"
	"github.com/san-kum/pcdm/internal/pcdm"
)

const (
	EnvPrefix = "PCDM_"

	DefaultNu      = 0.25
	DefaultDepth   = 2.75
	DefaultDataDir = "pcdm_data"
)

var ErrNoObservationPoints = errors.New("config: either a grid or a coords_file is required")

type Config struct {
	Name       string       `yaml:"name,omitempty" koanf:"name"`
	Source     SourceConfig `yaml:"source" koanf:"source"`
	Nu         float64      `yaml:"nu" koanf:"nu"`
	Grid       grid.Spec    `yaml:"grid" koanf:"grid"`
	CoordsFile string       `yaml:"coords_file,omitempty" koanf:"coords_file"`
	DataDir    string       `yaml:"data_dir,omitempty" koanf:"data_dir"`
}

type SourceConfig struct {
	East  float64    `yaml:"east" koanf:"east"`
	North float64    `yaml:"north" koanf:"north"`
	Depth float64    `yaml:"depth" koanf:"depth"`
	Omega [3]float64 `yaml:"omega,flow" koanf:"omega"`
	DV    [3]float64 `yaml:"dv,flow" koanf:"dv"`
}

func DefaultGrid() grid.Spec {
	return grid.Spec{
		MinEast: -7, StepEast: 0.1, MaxEast: 7,
		MinNorth: -5, StepNorth: 0.1, MaxNorth: 5,
	}
}

func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			Depth: DefaultDepth,
			DV:    [3]float64{1e-3, 1e-3, 1e-3},
		},
		Nu:      DefaultNu,
		Grid:    DefaultGrid(),
		DataDir: DefaultDataDir,
	}
}

// Load layers defaults, the YAML file at path (if non-empty) and PCDM_*
// environment variables. Nested keys use a double underscore, e.g.
// PCDM_SOURCE__DEPTH or PCDM_GRID__STEP_EAST.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", envKey)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "__", ".")
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Parameters() pcdm.Parameters {
	return pcdm.Parameters{
		Source: pcdm.PointCDMParameters{
			HorizontalCoord: [2]float64{c.Source.East, c.Source.North},
			Depth:           c.Source.Depth,
			Omega:           c.Source.Omega,
			DV:              c.Source.DV,
		},
		Nu: c.Nu,
	}
}

// SetParameters copies p back into the source and nu fields.
func (c *Config) SetParameters(p pcdm.Parameters) {
	c.Source = SourceConfig{
		East:  p.Source.HorizontalCoord[0],
		North: p.Source.HorizontalCoord[1],
		Depth: p.Source.Depth,
		Omega: p.Source.Omega,
		DV:    p.Source.DV,
	}
	c.Nu = p.Nu
}

// Coordinates reads CoordsFile when set, otherwise builds the grid.
func (c *Config) Coordinates() (pcdm.HorizontalCoordinates, error) {
	if c.CoordsFile != "" {
		f, err := os.Open(c.CoordsFile)
		if err != nil {
			return pcdm.HorizontalCoordinates{}, err
		}
		defer f.Close()
		return grid.ReadCSV(f)
	}
	if c.Grid == (grid.Spec{}) {
		return pcdm.HorizontalCoordinates{}, ErrNoObservationPoints
	}
	return grid.Regular(c.Grid)
}
