// Package grid builds observation point sets for the pCDM backend.
package grid

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/san-kum/pcdm/internal/pcdm"
)

var (
	ErrInvalidStep  = errors.New("grid: step must be positive")
	ErrInvalidRange = errors.New("grid: max must not be smaller than min")
	ErrNoPoints     = errors.New("grid: coordinate file contains no points")
)

// Spec describes a regular east/north grid. Bounds are inclusive.
type Spec struct {
	MinEast   float64 `yaml:"min_east" koanf:"min_east"`
	StepEast  float64 `yaml:"step_east" koanf:"step_east"`
	MaxEast   float64 `yaml:"max_east" koanf:"max_east"`
	MinNorth  float64 `yaml:"min_north" koanf:"min_north"`
	StepNorth float64 `yaml:"step_north" koanf:"step_north"`
	MaxNorth  float64 `yaml:"max_north" koanf:"max_north"`
}

func (s Spec) Validate() error {
	if s.StepEast <= 0 || s.StepNorth <= 0 {
		return ErrInvalidStep
	}
	if s.MaxEast < s.MinEast || s.MaxNorth < s.MinNorth {
		return ErrInvalidRange
	}
	return nil
}

// Dims returns the number of columns (east) and rows (north).
func (s Spec) Dims() (nEast, nNorth int) {
	return count(s.MinEast, s.StepEast, s.MaxEast), count(s.MinNorth, s.StepNorth, s.MaxNorth)
}

func count(min, step, max float64) int {
	eps := step * 0.0001
	n := 0
	for v := min; v <= max+eps; v = float64(n)*step + min {
		n++
	}
	return n
}

// Regular generates the grid with east as the outer and north as the inner
// loop. Values are computed as index*step+min so rounding does not accumulate.
func Regular(s Spec) (pcdm.HorizontalCoordinates, error) {
	if err := s.Validate(); err != nil {
		return pcdm.HorizontalCoordinates{}, err
	}

	nEast, nNorth := s.Dims()
	c := pcdm.HorizontalCoordinates{
		East:  make([]float64, 0, nEast*nNorth),
		North: make([]float64, 0, nEast*nNorth),
	}

	for i := 0; i < nEast; i++ {
		x := float64(i)*s.StepEast + s.MinEast
		for j := 0; j < nNorth; j++ {
			y := float64(j)*s.StepNorth + s.MinNorth
			c.East = append(c.East, x)
			c.North = append(c.North, y)
		}
	}
	return c, nil
}

// ReadCSV reads "east,north" rows. A non-numeric first row is treated as a header.
func ReadCSV(r io.Reader) (pcdm.HorizontalCoordinates, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return pcdm.HorizontalCoordinates{}, err
	}

	var c pcdm.HorizontalCoordinates
	for i, record := range records {
		if len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "") {
			continue
		}
		if len(record) < 2 {
			return pcdm.HorizontalCoordinates{}, fmt.Errorf("grid: line %d: expected east,north", i+1)
		}
		x, errX := strconv.ParseFloat(strings.TrimSpace(record[0]), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if errX != nil || errY != nil {
			if i == 0 {
				continue
			}
			return pcdm.HorizontalCoordinates{}, fmt.Errorf("grid: line %d: invalid number", i+1)
		}
		if !finite(x) || !finite(y) {
			return pcdm.HorizontalCoordinates{}, fmt.Errorf("grid: line %d: non-finite coordinate", i+1)
		}
		c.East = append(c.East, x)
		c.North = append(c.North, y)
	}

	if c.Len() == 0 {
		return pcdm.HorizontalCoordinates{}, ErrNoPoints
	}
	return c, nil
}

// WriteCSV writes coordinates with an "east,north" header.
func WriteCSV(w io.Writer, c pcdm.HorizontalCoordinates) error {
	if !c.Consistent() {
		return pcdm.ErrInvalidInputShape
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"east", "north"}); err != nil {
		return err
	}
	for i := range c.East {
		row := []string{
			strconv.FormatFloat(c.East[i], 'g', -1, 64),
			strconv.FormatFloat(c.North[i], 'g', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
