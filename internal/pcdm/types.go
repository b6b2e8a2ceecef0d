package pcdm

import "math"

// HorizontalCoordinates holds the observation points on the surface.
type HorizontalCoordinates struct {
	East  []float64
	North []float64
}

func (c HorizontalCoordinates) Len() int { return len(c.East) }

// Consistent reports whether both sequences have the same length.
func (c HorizontalCoordinates) Consistent() bool {
	return len(c.East) == len(c.North)
}

func (c HorizontalCoordinates) Clone() HorizontalCoordinates {
	return HorizontalCoordinates{
		East:  cloneFloats(c.East),
		North: cloneFloats(c.North),
	}
}

// PointCDMParameters describes the point source.
type PointCDMParameters struct {
	// HorizontalCoord is the epicenter (east, north) in the unit and
	// coordinate system of the observation points.
	HorizontalCoord [2]float64
	// Depth below the surface, positive down.
	Depth float64
	// Omega holds clockwise rotations about the x, y and z axes in degrees.
	Omega [3]float64
	// DV holds the potencies of the dislocations that are normal to the
	// x, y and z axes before rotation. Unit: length cubed.
	DV [3]float64
}

// Validate checks potency sign consistency first, then depth.
func (p PointCDMParameters) Validate() error {
	allPositive := p.DV[0] >= 0 && p.DV[1] >= 0 && p.DV[2] >= 0
	allNegative := p.DV[0] <= 0 && p.DV[1] <= 0 && p.DV[2] <= 0
	if !allPositive && !allNegative {
		return ErrMixedPotencySign
	}
	if p.Depth < 0 {
		return ErrNegativeDepth
	}
	return nil
}

func (p PointCDMParameters) IsValid() bool {
	return p.Validate() == nil
}

// TotalPotency is the volume change of the source.
func (p PointCDMParameters) TotalPotency() float64 {
	return p.DV[0] + p.DV[1] + p.DV[2]
}

func (p PointCDMParameters) Equal(other PointCDMParameters) bool {
	return nearlyEqualAll(p.HorizontalCoord[:], other.HorizontalCoord[:]) &&
		nearlyEqual(p.Depth, other.Depth) &&
		nearlyEqualAll(p.Omega[:], other.Omega[:]) &&
		nearlyEqualAll(p.DV[:], other.DV[:])
}

// Parameters bundles the source with the material constant needed to run.
type Parameters struct {
	Source PointCDMParameters
	// Nu is Poisson's ratio. It is not range checked.
	Nu float64
}

func (p Parameters) Equal(other Parameters) bool {
	return p.Source.Equal(other.Source) && nearlyEqual(p.Nu, other.Nu)
}

// Results holds the east, north and vertical displacement per observation point.
type Results struct {
	East     []float64
	North    []float64
	Vertical []float64
}

func (r Results) Len() int { return len(r.East) }

func (r Results) Empty() bool {
	return len(r.East) == 0 && len(r.North) == 0 && len(r.Vertical) == 0
}

// Valid reports whether all three components are non-empty and equally long.
func (r Results) Valid() bool {
	n := len(r.East)
	return n > 0 && len(r.North) == n && len(r.Vertical) == n
}

// Component returns east (0), north (1) or vertical (2).
func (r Results) Component(i int) []float64 {
	switch i {
	case 0:
		return r.East
	case 1:
		return r.North
	case 2:
		return r.Vertical
	}
	return nil
}

func (r Results) Clone() Results {
	return Results{
		East:     cloneFloats(r.East),
		North:    cloneFloats(r.North),
		Vertical: cloneFloats(r.Vertical),
	}
}

// ZeroResults returns n points of exactly zero displacement.
func ZeroResults(n int) Results {
	return Results{
		East:     make([]float64, n),
		North:    make([]float64, n),
		Vertical: make([]float64, n),
	}
}

// Add accumulates other into r. Both must have the same length.
func (r Results) Add(other Results) {
	r.AddAt(0, other)
}

// AddAt accumulates other into r starting at point offset.
func (r Results) AddAt(offset int, other Results) {
	for i := range other.East {
		r.East[offset+i] += other.East[i]
		r.North[offset+i] += other.North[i]
		r.Vertical[offset+i] += other.Vertical[i]
	}
}

const equalityEpsilon = 4 * 2.220446049250313e-16

func nearlyEqual(a, b float64) bool {
	if a == b {
		return true
	}
	diff := math.Abs(a - b)
	scale := math.Max(math.Abs(a), math.Abs(b))
	return diff <= equalityEpsilon*scale
}

func nearlyEqualAll(a, b []float64) bool {
	for i := range a {
		if !nearlyEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func cloneFloats(s []float64) []float64 {
	if s == nil {
		return nil
	}
	c := make([]float64, len(s))
	copy(c, s)
	return c
}
