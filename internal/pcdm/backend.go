// Package pcdm computes surface displacements of a point Compound Dislocation
// Model: three mutually orthogonal tensile point dislocations in an elastic
// half-space (Nikkhoo et al., 2016).
package pcdm

import (
	"github.com/san-kum/pcdm/internal/logger"
)

// Backend owns observation points, parameters and results of one pCDM
// computation and tracks whether results are current.
//
// A Backend is not safe for concurrent use. Run a whole Backend on a worker
// goroutine and hand the results back with TakeResults instead.
type Backend struct {
	coords    HorizontalCoordinates
	params    Parameters
	state     State
	err       error
	results   Results
	observers []StateObserver
	logger    logger.Logger
	workers   int
}

func New(opts ...Option) *Backend {
	b := &Backend{
		state:   StateUninitialized,
		logger:  logger.Nop(),
		workers: 1,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) State() State { return b.state }

// Err returns the reason for StateInvalidParameters, nil otherwise.
func (b *Backend) Err() error { return b.err }

func (b *Backend) Parameters() Parameters { return b.params }

// HorizontalCoords returns the stored observation points. Do not modify them.
func (b *Backend) HorizontalCoords() HorizontalCoordinates { return b.coords }

// SetHorizontalCoords copies the observation points into the backend.
func (b *Backend) SetHorizontalCoords(c HorizontalCoordinates) State {
	if !c.Consistent() {
		b.logger.Warn("input east and north coordinates differ in size",
			logger.Int("east", len(c.East)), logger.Int("north", len(c.North)))
		b.coords = HorizontalCoordinates{}
		b.fail(ErrInvalidInputShape)
		return b.state
	}

	b.coords = c.Clone()
	b.err = nil
	b.setState(StateParametersChanged)
	return b.state
}

// SetParameters stores p unless it equals the current parameters.
func (b *Backend) SetParameters(p Parameters) State {
	if b.params.Equal(p) {
		return b.state
	}

	b.params = p

	if err := p.Source.Validate(); err != nil {
		b.logger.Warn("invalid source parameters", logger.Error(err))
		b.fail(err)
		return b.state
	}

	b.err = nil
	b.setState(StateParametersChanged)
	return b.state
}

// Run computes the displacement field if results are not already current.
// It is a no-op for StateInvalidParameters and StateResultsReady.
func (b *Backend) Run() State {
	switch b.state {
	case StateInvalidParameters:
		b.logger.Warn("run skipped: invalid parameters", logger.Error(b.err))
		return b.state
	case StateResultsReady:
		return b.state
	}

	// Setters validate already; the inputs are checked again before use.
	if !b.coords.Consistent() {
		b.fail(ErrInvalidInputShape)
		return b.state
	}
	if b.coords.Len() == 0 {
		b.logger.Warn("run skipped: no input set")
		b.fail(ErrEmptyInput)
		return b.state
	}
	if err := b.params.Source.Validate(); err != nil {
		b.fail(err)
		return b.state
	}

	b.results = b.compute()
	b.err = nil
	b.setState(StateResultsReady)

	b.logger.Debug("pcdm results computed", logger.Int("points", b.results.Len()))
	return b.state
}

func (b *Backend) compute() Results {
	n := b.coords.Len()
	src := b.params.Source
	triad := Triad(src.Omega)

	total := ZeroResults(n)
	for k, o := range triad {
		// zero potency contributes exact zeros; never evaluate the formula
		if src.DV[k] == 0 {
			continue
		}
		parallelFor(n, b.workers, func(start, end int) {
			ptd := ComputeDisplacement(b.coords.East[start:end], b.coords.North[start:end],
				src.HorizontalCoord, src.Depth, o.StrikeDeg, o.DipRad, src.DV[k], b.params.Nu)
			total.AddAt(start, ptd)
		})
	}
	return total
}

// Results returns a borrowed view of the current results. ok is false unless
// the state is StateResultsReady. The slices must not be modified.
func (b *Backend) Results() (r Results, ok bool) {
	if b.state != StateResultsReady {
		return Results{}, false
	}
	return b.results, true
}

// TakeResults moves the results out of the backend. Afterwards the backend
// holds no results and reports StateParametersChanged.
func (b *Backend) TakeResults() (Results, error) {
	if b.state != StateResultsReady {
		return Results{}, ErrNoResults
	}
	r := b.results
	b.results = Results{}
	b.setState(StateParametersChanged)
	return r, nil
}

// Invalidate drops current results so the next Run recomputes.
func (b *Backend) Invalidate() {
	if b.state == StateResultsReady {
		b.setState(StateParametersChanged)
	}
}

func (b *Backend) fail(err error) {
	b.err = err
	b.setState(StateInvalidParameters)
}

func (b *Backend) setState(s State) {
	if s != StateResultsReady {
		b.results = Results{}
	}
	if s == b.state {
		return
	}
	old := b.state
	b.state = s
	for _, o := range b.observers {
		o(old, s)
	}
}
