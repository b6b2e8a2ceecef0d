package project

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/san-kum/pcdm/internal/logger"
	"github.com/san-kum/pcdm/internal/pcdm"
	"github.com/san-kum/pcdm/internal/storage"
)

// Model is one set of source parameters inside a project. Results are cached
// in memory and on disk until parameters, points or nu change.
type Model struct {
	project   *Project
	timestamp time.Time
	key       string

	mu               sync.Mutex
	name             string
	params           pcdm.PointCDMParameters
	results          pcdm.Results
	hasStoredResults bool
	removed          bool
	// generation changes on every invalidation so late results can be dropped.
	generation uint64
	pending    chan struct{}
}

func newModel(p *Project, ts time.Time, rec storage.ModelRecord) *Model {
	return &Model{
		project:          p,
		timestamp:        ts,
		key:              TimestampToString(ts),
		name:             rec.Name,
		params:           rec.Source.Parameters(),
		hasStoredResults: rec.HasStoredResults,
	}
}

func (m *Model) Timestamp() time.Time { return m.timestamp }

// Key is the timestamp string that names the model files.
func (m *Model) Key() string { return m.key }

func (m *Model) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name
}

func (m *Model) SetName(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removed {
		return ErrModelDeleted
	}
	if m.name == name {
		return nil
	}
	m.name = name
	return m.persistLocked()
}

func (m *Model) Parameters() pcdm.PointCDMParameters {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.params
}

// SetParameters stores p, dropping results, unless it equals the current parameters.
func (m *Model) SetParameters(p pcdm.PointCDMParameters) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removed {
		return ErrModelDeleted
	}
	if m.params.Equal(p) {
		return nil
	}
	m.params = p
	m.invalidateLocked()
	return m.persistLocked()
}

// HasResults reports results in memory or on disk.
func (m *Model) HasResults() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.results.Valid() || m.hasStoredResults
}

// Results returns the current results, reading them from disk if necessary.
// Do not modify the returned slices.
func (m *Model) Results() (pcdm.Results, error) {
	n := m.project.HorizontalCoords().Len()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.results.Valid() {
		return m.results, nil
	}
	if m.hasStoredResults && m.readResultsLocked(n) {
		return m.results, nil
	}
	return pcdm.Results{}, pcdm.ErrNoResults
}

// Invalidate drops results in memory and on disk.
func (m *Model) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidateLocked()
}

func (m *Model) invalidateLocked() {
	m.generation++
	m.results = pcdm.Results{}
	if err := m.project.store.RemoveResults(m.key); err != nil {
		m.project.logger.Warn("failed to remove stored results", logger.String("model", m.key), logger.Error(err))
	}
	if m.hasStoredResults {
		m.hasStoredResults = false
		if !m.removed {
			if err := m.persistLocked(); err != nil {
				m.project.logger.Error("failed to write model", logger.String("model", m.key), logger.Error(err))
			}
		}
	}
}

// RequestResults makes results available. Cached results complete at once;
// otherwise a backend runs on a new goroutine. The channel receives exactly
// one value and is then closed.
func (m *Model) RequestResults(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	finish := func(err error) <-chan error {
		done <- err
		close(done)
		return done
	}

	m.mu.Lock()
	m.waitPendingLocked()
	generation := m.generation
	m.mu.Unlock()

	// read the generation first: a concurrent change of points or nu bumps it
	// after the snapshot and the results are dropped
	coords, nu := m.project.snapshot()

	m.mu.Lock()
	m.waitPendingLocked()
	if m.removed {
		m.mu.Unlock()
		return finish(ErrModelDeleted)
	}
	if m.results.Valid() || (m.hasStoredResults && m.readResultsLocked(coords.Len())) {
		m.mu.Unlock()
		return finish(nil)
	}
	if err := ctx.Err(); err != nil {
		m.mu.Unlock()
		return finish(err)
	}
	if m.generation != generation {
		m.mu.Unlock()
		return m.RequestResults(ctx)
	}

	params := pcdm.Parameters{Source: m.params, Nu: nu}
	pending := make(chan struct{})
	m.pending = pending
	m.mu.Unlock()

	go func() {
		err := m.compute(ctx, coords, params, generation)

		m.mu.Lock()
		m.pending = nil
		m.mu.Unlock()
		close(pending)

		finish(err)
	}()
	return done
}

// waitPendingLocked releases m.mu while a computation is running.
func (m *Model) waitPendingLocked() {
	for m.pending != nil {
		pending := m.pending
		m.mu.Unlock()
		<-pending
		m.mu.Lock()
	}
}

func (m *Model) compute(ctx context.Context, coords pcdm.HorizontalCoordinates, params pcdm.Parameters, generation uint64) error {
	log := m.project.logger.Named("model")

	var opts []pcdm.Option
	opts = append(opts, pcdm.WithLogger(log))
	if rec := m.project.recorder; rec != nil {
		opts = append(opts, pcdm.WithObserver(rec.Observer()))
	}
	backend := pcdm.New(opts...)
	backend.SetHorizontalCoords(coords)
	backend.SetParameters(params)

	var state pcdm.State
	if rec := m.project.recorder; rec != nil {
		state = rec.RunBackend(backend)
	} else {
		state = backend.Run()
	}

	if state != pcdm.StateResultsReady {
		m.Invalidate()
		return backend.Err()
	}
	results, err := backend.TakeResults()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.removed {
		return ErrModelDeleted
	}
	if m.generation != generation {
		return ErrInvalidated
	}

	m.results = results
	m.storeResultsLocked()
	log.Debug("model computed", logger.String("model", m.key), logger.Int("points", results.Len()))
	return nil
}

// WaitForResults blocks until a pending computation finishes and reports
// whether results are loaded.
func (m *Model) WaitForResults() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waitPendingLocked()
	return m.results.Valid()
}

// readResultsLocked loads stored results and discards them unless they hold
// n points.
func (m *Model) readResultsLocked(n int) bool {
	results, err := m.project.store.LoadResults(m.key)
	if err == nil && results.Len() != n {
		err = storage.ErrCorruptResults
	}
	if err != nil {
		m.project.logger.Warn("discarding stored results", logger.String("model", m.key), logger.Error(err))
		m.invalidateLocked()
		return false
	}
	m.results = results
	return true
}

func (m *Model) storeResultsLocked() {
	err := m.project.store.SaveResults(m.key, m.results)
	m.hasStoredResults = err == nil
	if err != nil {
		m.project.logger.Error("failed to store results", logger.String("model", m.key), logger.Error(err))
	}
	if err := m.persistLocked(); err != nil {
		m.project.logger.Error("failed to write model", logger.String("model", m.key), logger.Error(err))
	}
}

func (m *Model) persist() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persistLocked()
}

func (m *Model) persistLocked() error {
	return m.project.store.SaveModel(m.key, storage.ModelRecord{
		Name:             m.name,
		Source:           storage.NewSourceRecord(m.params),
		HasStoredResults: m.hasStoredResults,
	})
}

func (m *Model) prepareDelete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waitPendingLocked()
	m.removed = true
	m.results = pcdm.Results{}
	m.hasStoredResults = false
	m.generation++

	if err := m.project.store.DeleteModel(m.key); err != nil && !errors.Is(err, storage.ErrNoStoredResults) {
		return err
	}
	return nil
}
