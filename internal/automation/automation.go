// Package automation creates and computes groups of models from batch files.
package automation

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/pcdm/internal/config"
	"github.com/san-kum/pcdm/internal/logger"
	"github.com/san-kum/pcdm/internal/pcdm"
	"github.com/san-kum/pcdm/internal/project"
)

var (
	ErrUnknownPreset = errors.New("automation: unknown preset")
	ErrUnknownParam  = errors.New("automation: unknown sweep parameter")
	ErrEmptyEntry    = errors.New("automation: model entry needs a preset or a source")
	ErrSweepSteps    = errors.New("automation: sweep needs at least two steps")
)

// Batch is a list of models to add to a project, optionally with a parameter sweep.
type Batch struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Nu          *float64     `yaml:"nu,omitempty"`
	Models      []BatchModel `yaml:"models"`
	Sweep       *Sweep       `yaml:"sweep,omitempty"`
}

// BatchModel takes its source from a preset, overridden by Source when set.
type BatchModel struct {
	Name   string               `yaml:"name"`
	Preset string               `yaml:"preset,omitempty"`
	Source *config.SourceConfig `yaml:"source,omitempty"`
}

// Sweep varies one source parameter linearly between Min and Max.
type Sweep struct {
	Name  string              `yaml:"name"`
	Base  config.SourceConfig `yaml:"base"`
	Param string              `yaml:"param"`
	Min   float64             `yaml:"min"`
	Max   float64             `yaml:"max"`
	Steps int                 `yaml:"steps"`
}

// SweepParams lists the names accepted by Sweep.Param.
var SweepParams = []string{"east", "north", "depth", "omega_x", "omega_y", "omega_z", "dv_x", "dv_y", "dv_z"}

func LoadBatch(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var batch Batch
	if err := yaml.Unmarshal(data, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

// Entry is a named source ready to be added to a project.
type Entry struct {
	Name   string
	Source pcdm.PointCDMParameters
}

// Entries expands models and the sweep into the models to create.
func (b *Batch) Entries() ([]Entry, error) {
	entries := make([]Entry, 0, len(b.Models))

	for i, m := range b.Models {
		var src config.SourceConfig
		switch {
		case m.Source != nil:
			src = *m.Source
		case m.Preset != "":
			preset := config.GetPreset(m.Preset)
			if preset == nil {
				return nil, fmt.Errorf("entry %d: %w: %s", i+1, ErrUnknownPreset, m.Preset)
			}
			src = preset.Source
		default:
			return nil, fmt.Errorf("entry %d: %w", i+1, ErrEmptyEntry)
		}

		name := m.Name
		if name == "" {
			name = fmt.Sprintf("%s #%d", b.Name, i+1)
		}
		entries = append(entries, Entry{Name: name, Source: sourceParameters(src)})
	}

	if b.Sweep != nil {
		swept, err := b.Sweep.Entries()
		if err != nil {
			return nil, err
		}
		entries = append(entries, swept...)
	}
	return entries, nil
}

func (s *Sweep) Entries() ([]Entry, error) {
	if s.Steps < 2 {
		return nil, ErrSweepSteps
	}

	step := (s.Max - s.Min) / float64(s.Steps-1)
	entries := make([]Entry, 0, s.Steps)
	for i := 0; i < s.Steps; i++ {
		value := s.Min + float64(i)*step
		src := sourceParameters(s.Base)
		if err := SetParam(&src, s.Param, value); err != nil {
			return nil, err
		}
		name := s.Name
		if name == "" {
			name = "sweep"
		}
		entries = append(entries, Entry{
			Name:   fmt.Sprintf("%s %s=%g", name, s.Param, value),
			Source: src,
		})
	}
	return entries, nil
}

// SetParam assigns one named component of the source.
func SetParam(p *pcdm.PointCDMParameters, name string, value float64) error {
	switch name {
	case "east":
		p.HorizontalCoord[0] = value
	case "north":
		p.HorizontalCoord[1] = value
	case "depth":
		p.Depth = value
	case "omega_x":
		p.Omega[0] = value
	case "omega_y":
		p.Omega[1] = value
	case "omega_z":
		p.Omega[2] = value
	case "dv_x":
		p.DV[0] = value
	case "dv_y":
		p.DV[1] = value
	case "dv_z":
		p.DV[2] = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownParam, name)
	}
	return nil
}

func sourceParameters(s config.SourceConfig) pcdm.PointCDMParameters {
	cfg := config.Config{Source: s}
	return cfg.Parameters().Source
}

// RunBatch adds every entry of b to p and computes them concurrently. Models
// are returned in entry order; failed computations are joined into err.
func RunBatch(ctx context.Context, p *project.Project, b *Batch, log logger.Logger) ([]*project.Model, error) {
	if log == nil {
		log = logger.Nop()
	}

	entries, err := b.Entries()
	if err != nil {
		return nil, err
	}

	if b.Nu != nil {
		if err := p.SetPoissonsRatio(*b.Nu); err != nil {
			return nil, err
		}
	}

	models := make([]*project.Model, 0, len(entries))
	for i, e := range entries {
		m, err := p.NewModel(e.Name, e.Source)
		if err != nil {
			return models, fmt.Errorf("entry %d: %w", i+1, err)
		}
		models = append(models, m)
	}

	pending := make([]<-chan error, len(models))
	for i, m := range models {
		pending[i] = m.RequestResults(ctx)
	}

	var errs []error
	for i, ch := range pending {
		if err := <-ch; err != nil {
			log.Warn("batch model failed", logger.String("model", models[i].Name()), logger.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", models[i].Name(), err))
			continue
		}
		log.Info("batch model computed", logger.Int("index", i+1), logger.Int("total", len(models)),
			logger.String("model", models[i].Name()))
	}

	return models, errors.Join(errs...)
}
