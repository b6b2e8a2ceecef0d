package analysis

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/pcdm/internal/pcdm"
)

var (
	ErrMismatch = errors.New("analysis: results do not match coordinates")
	ErrNoRow    = errors.New("analysis: no points on profile")
)

// Component indices as used by pcdm.Results.Component.
const (
	East = iota
	North
	Vertical
)

var ComponentNames = [3]string{"east", "north", "vertical"}

type Point struct {
	East, North float64
}

type ComponentStats struct {
	Name    string
	Min     float64
	MinAt   Point
	Max     float64
	MaxAt   Point
	Mean    float64
	StdDev  float64
	PeakAbs float64
	PeakAt  Point
}

type Summary struct {
	Points     int
	Components [3]ComponentStats
	// MaxHorizontal is the largest sqrt(ue² + un²).
	MaxHorizontal   float64
	MaxHorizontalAt Point
}

func check(coords pcdm.HorizontalCoordinates, r pcdm.Results) error {
	if !coords.Consistent() || !r.Valid() || r.Len() != coords.Len() {
		return ErrMismatch
	}
	return nil
}

func Summarize(coords pcdm.HorizontalCoordinates, r pcdm.Results) (Summary, error) {
	if err := check(coords, r); err != nil {
		return Summary{}, err
	}

	at := func(i int) Point { return Point{East: coords.East[i], North: coords.North[i]} }

	s := Summary{Points: r.Len()}
	for c := 0; c < 3; c++ {
		values := r.Component(c)
		minIdx, maxIdx := floats.MinIdx(values), floats.MaxIdx(values)
		mean, std := stat.MeanStdDev(values, nil)

		cs := ComponentStats{
			Name:   ComponentNames[c],
			Min:    values[minIdx],
			MinAt:  at(minIdx),
			Max:    values[maxIdx],
			MaxAt:  at(maxIdx),
			Mean:   mean,
			StdDev: std,
		}
		if math.IsNaN(std) {
			cs.StdDev = 0
		}
		if math.Abs(cs.Min) > math.Abs(cs.Max) {
			cs.PeakAbs, cs.PeakAt = math.Abs(cs.Min), cs.MinAt
		} else {
			cs.PeakAbs, cs.PeakAt = math.Abs(cs.Max), cs.MaxAt
		}
		s.Components[c] = cs
	}

	for i := range r.East {
		h := math.Hypot(r.East[i], r.North[i])
		if h > s.MaxHorizontal {
			s.MaxHorizontal, s.MaxHorizontalAt = h, at(i)
		}
	}
	return s, nil
}

// HorizontalMagnitude returns sqrt(ue² + un²) per point.
func HorizontalMagnitude(r pcdm.Results) []float64 {
	out := make([]float64, r.Len())
	for i := range out {
		out[i] = math.Hypot(r.East[i], r.North[i])
	}
	return out
}
