// Package project keeps a set of pCDM models that share observation points and
// Poisson's ratio, persisted through internal/storage.
package project

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/san-kum/pcdm/internal/grid"
	"github.com/san-kum/pcdm/internal/logger"
	"github.com/san-kum/pcdm/internal/metrics"
	"github.com/san-kum/pcdm/internal/pcdm"
	"github.com/san-kum/pcdm/internal/storage"
)

const (
	GeometryRegularGrid = "regular_grid"
	GeometryPointCloud  = "point_cloud"
)

// Project is safe for concurrent use.
type Project struct {
	mu       sync.RWMutex
	store    *storage.Store
	settings storage.ProjectSettings
	coords   pcdm.HorizontalCoordinates
	models   map[string]*Model

	logger   logger.Logger
	recorder *metrics.Recorder
}

// Create initializes dir as a project, keeping existing content.
func Create(dir string, opts ...Option) (*Project, error) {
	if err := storage.New(dir).Init(); err != nil {
		return nil, err
	}
	return Open(dir, opts...)
}

// Open reads an existing project. Model files with unparsable names are skipped.
func Open(dir string, opts ...Option) (*Project, error) {
	if err := storage.CheckProject(dir); err != nil {
		return nil, err
	}

	p := &Project{
		store:  storage.New(dir),
		models: make(map[string]*Model),
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	settings, err := p.store.LoadSettings()
	if err != nil {
		return nil, fmt.Errorf("project: read settings: %w", err)
	}
	p.settings = settings

	p.readCoordinates()

	if err := p.readModels(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Project) readCoordinates() {
	if !p.settings.HasCoordinates {
		return
	}
	coords, err := p.store.LoadCoords()
	if err != nil {
		p.logger.Warn("discarding unreadable observation points", logger.Error(err))
		p.settings.HasCoordinates = false
		p.settings.GeometryType = ""
		p.settings.Grid = nil
		if err := p.store.SaveSettings(p.settings); err != nil {
			p.logger.Error("failed to write project settings", logger.Error(err))
		}
		return
	}
	p.coords = coords
}

func (p *Project) readModels() error {
	keys, err := p.store.ListModels()
	if err != nil {
		return err
	}
	for _, key := range keys {
		ts, err := StringToTimestamp(key)
		if err != nil {
			p.logger.Debug("skipping model file", logger.String("name", key))
			continue
		}
		rec, err := p.store.LoadModel(key)
		if err != nil {
			p.logger.Warn("skipping unreadable model", logger.String("model", key), logger.Error(err))
			continue
		}
		p.models[key] = newModel(p, ts, rec)
	}
	return nil
}

func (p *Project) Dir() string { return p.store.Dir() }

func (p *Project) PoissonsRatio() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settings.Nu
}

// SetPoissonsRatio stores nu and invalidates all models if it changed.
func (p *Project) SetPoissonsRatio(nu float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if nu == p.settings.Nu {
		return nil
	}
	p.settings.Nu = nu
	p.invalidateModels()
	return p.store.SaveSettings(p.settings)
}

// HorizontalCoords returns the shared observation points. Do not modify them.
func (p *Project) HorizontalCoords() pcdm.HorizontalCoordinates {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.coords
}

func (p *Project) HasHorizontalCoords() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settings.HasCoordinates
}

// GeometryType is GeometryRegularGrid, GeometryPointCloud or empty.
func (p *Project) GeometryType() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settings.GeometryType
}

// Grid returns the grid spec when the points were generated from one.
func (p *Project) Grid() (grid.Spec, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.settings.Grid == nil {
		return grid.Spec{}, false
	}
	return *p.settings.Grid, true
}

// SetHorizontalCoords replaces the observation points with a point cloud and
// invalidates all models.
func (p *Project) SetHorizontalCoords(c pcdm.HorizontalCoordinates) error {
	return p.setCoords(c, GeometryPointCloud, nil)
}

// SetGrid replaces the observation points with a regular grid.
func (p *Project) SetGrid(spec grid.Spec) error {
	c, err := grid.Regular(spec)
	if err != nil {
		return err
	}
	return p.setCoords(c, GeometryRegularGrid, &spec)
}

func (p *Project) setCoords(c pcdm.HorizontalCoordinates, geometry string, spec *grid.Spec) error {
	if !c.Consistent() {
		return pcdm.ErrInvalidInputShape
	}
	if c.Len() == 0 {
		return pcdm.ErrEmptyInput
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.store.SaveCoords(c); err != nil {
		return err
	}
	p.coords = c.Clone()
	p.settings.HasCoordinates = true
	p.settings.GeometryType = geometry
	p.settings.Grid = spec
	p.invalidateModels()
	return p.store.SaveSettings(p.settings)
}

// invalidateModels requires p.mu to be held.
func (p *Project) invalidateModels() {
	for _, m := range p.models {
		m.Invalidate()
	}
}

// AddModel returns the model at ts, creating and persisting it if needed.
func (p *Project) AddModel(ts time.Time) (*Model, error) {
	ts = normalize(ts)

	p.mu.Lock()
	defer p.mu.Unlock()

	if m, ok := p.models[TimestampToString(ts)]; ok {
		return m, nil
	}
	return p.addModelLocked(ts, storage.ModelRecord{})
}

// NewModel adds a model stamped with the first free millisecond at or after
// the current time.
func (p *Project) NewModel(name string, params pcdm.PointCDMParameters) (*Model, error) {
	ts := normalize(time.Now())

	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if _, taken := p.models[TimestampToString(ts)]; !taken {
			break
		}
		ts = ts.Add(time.Millisecond)
	}
	return p.addModelLocked(ts, storage.ModelRecord{
		Name:   name,
		Source: storage.NewSourceRecord(params),
	})
}

// addModelLocked requires p.mu to be held for writing and ts to be free.
func (p *Project) addModelLocked(ts time.Time, rec storage.ModelRecord) (*Model, error) {
	m := newModel(p, ts, rec)
	if err := m.persist(); err != nil {
		return nil, err
	}
	p.models[m.Key()] = m
	return m, nil
}

func (p *Project) Model(ts time.Time) (*Model, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m, ok := p.models[TimestampToString(normalize(ts))]
	return m, ok
}

// Models returns all models ordered by timestamp.
func (p *Project) Models() []*Model {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*Model, 0, len(p.models))
	for _, m := range p.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp().Before(out[j].Timestamp()) })
	return out
}

// Find resolves a timestamp string, a model name or "latest". Names are
// matched against the most recent model first.
func (p *Project) Find(ref string) (*Model, error) {
	if ref == "" || ref == "latest" {
		if m, ok := p.MostRecentModel(); ok {
			return m, nil
		}
		models := p.Models()
		if len(models) == 0 {
			return nil, ErrModelNotFound
		}
		return models[len(models)-1], nil
	}

	if ts, err := StringToTimestamp(ref); err == nil {
		if m, ok := p.Model(ts); ok {
			return m, nil
		}
	}

	models := p.Models()
	for i := len(models) - 1; i >= 0; i-- {
		if models[i].Name() == ref {
			return models[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrModelNotFound, ref)
}

// DeleteModel removes the model and its files. Pending computations finish
// but their results are dropped.
func (p *Project) DeleteModel(ts time.Time) error {
	key := TimestampToString(normalize(ts))

	p.mu.Lock()
	m, ok := p.models[key]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrModelNotFound, key)
	}
	delete(p.models, key)
	if p.settings.MostRecentModel == key {
		p.settings.MostRecentModel = ""
	}
	settings := p.settings
	p.mu.Unlock()

	if err := m.prepareDelete(); err != nil {
		return err
	}
	return p.store.SaveSettings(settings)
}

// MostRecentModel returns the model last marked with SetMostRecentModel.
func (p *Project) MostRecentModel() (*Model, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.settings.MostRecentModel == "" {
		return nil, false
	}
	m, ok := p.models[p.settings.MostRecentModel]
	return m, ok
}

func (p *Project) SetMostRecentModel(ts time.Time) error {
	key := TimestampToString(normalize(ts))

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.settings.MostRecentModel == key {
		return nil
	}
	p.settings.MostRecentModel = key
	return p.store.SaveSettings(p.settings)
}

// ComputeAll requests results for every model concurrently and waits for them.
// Errors of individual models are joined.
func (p *Project) ComputeAll(ctx context.Context) error {
	models := p.Models()
	errs := make([]error, len(models))

	var wg sync.WaitGroup
	for i, m := range models {
		wg.Add(1)
		go func(idx int, m *Model) {
			defer wg.Done()
			if err := <-m.RequestResults(ctx); err != nil {
				errs[idx] = fmt.Errorf("model %s: %w", m.Key(), err)
			}
		}(i, m)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// snapshot copies what a backend run needs.
func (p *Project) snapshot() (pcdm.HorizontalCoordinates, float64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.coords, p.settings.Nu
}
