package analysis

import (
	"math"
	"sort"

	"github.com/san-kum/pcdm/internal/pcdm"
)

// ProfileData is one east-west row of a displacement field, sorted by easting.
type ProfileData struct {
	North  float64
	East   []float64
	Values [3][]float64
}

// Profile extracts the points whose northing is closest to north.
func Profile(coords pcdm.HorizontalCoordinates, r pcdm.Results, north float64) (ProfileData, error) {
	if err := check(coords, r); err != nil {
		return ProfileData{}, err
	}

	nearest := coords.North[0]
	for _, y := range coords.North {
		if math.Abs(y-north) < math.Abs(nearest-north) {
			nearest = y
		}
	}

	tol := 1e-9 * math.Max(1, math.Abs(nearest))
	var idx []int
	for i, y := range coords.North {
		if math.Abs(y-nearest) <= tol {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return ProfileData{}, ErrNoRow
	}
	sort.SliceStable(idx, func(a, b int) bool { return coords.East[idx[a]] < coords.East[idx[b]] })

	p := ProfileData{North: nearest, East: make([]float64, len(idx))}
	for c := range p.Values {
		p.Values[c] = make([]float64, len(idx))
	}
	for k, i := range idx {
		p.East[k] = coords.East[i]
		for c := range p.Values {
			p.Values[c][k] = r.Component(c)[i]
		}
	}
	return p, nil
}

// Raster is a rows×cols image of a scattered field. Row 0 is the northern edge.
// Cells without points are NaN.
type Raster struct {
	Cells                                [][]float64
	MinEast, MaxEast, MinNorth, MaxNorth float64
	Min, Max                             float64
}

// Rasterize averages values into a cols×rows raster spanning the point extent.
func Rasterize(coords pcdm.HorizontalCoordinates, values []float64, cols, rows int) (Raster, error) {
	if !coords.Consistent() || len(values) != coords.Len() || coords.Len() == 0 || cols < 1 || rows < 1 {
		return Raster{}, ErrMismatch
	}

	r := Raster{
		MinEast: math.Inf(1), MaxEast: math.Inf(-1),
		MinNorth: math.Inf(1), MaxNorth: math.Inf(-1),
		Min: math.Inf(1), Max: math.Inf(-1),
	}
	for i := range coords.East {
		if !finitePoint(coords, i) {
			continue
		}
		r.MinEast = math.Min(r.MinEast, coords.East[i])
		r.MaxEast = math.Max(r.MaxEast, coords.East[i])
		r.MinNorth = math.Min(r.MinNorth, coords.North[i])
		r.MaxNorth = math.Max(r.MaxNorth, coords.North[i])
	}

	sums := make([][]float64, rows)
	counts := make([][]int, rows)
	for j := range sums {
		sums[j] = make([]float64, cols)
		counts[j] = make([]int, cols)
	}

	bin := func(v, lo, hi float64, n int) int {
		if hi <= lo {
			return 0
		}
		k := int((v - lo) / (hi - lo) * float64(n))
		if k >= n {
			k = n - 1
		}
		return k
	}

	for i, v := range values {
		if !finitePoint(coords, i) {
			continue
		}
		col := bin(coords.East[i], r.MinEast, r.MaxEast, cols)
		row := rows - 1 - bin(coords.North[i], r.MinNorth, r.MaxNorth, rows)
		sums[row][col] += v
		counts[row][col]++
	}

	r.Cells = make([][]float64, rows)
	for j := range r.Cells {
		r.Cells[j] = make([]float64, cols)
		for k := range r.Cells[j] {
			if counts[j][k] == 0 {
				r.Cells[j][k] = math.NaN()
				continue
			}
			v := sums[j][k] / float64(counts[j][k])
			r.Cells[j][k] = v
			r.Min = math.Min(r.Min, v)
			r.Max = math.Max(r.Max, v)
		}
	}
	return r, nil
}

func finitePoint(coords pcdm.HorizontalCoordinates, i int) bool {
	e, n := coords.East[i], coords.North[i]
	return !math.IsNaN(e) && !math.IsInf(e, 0) && !math.IsNaN(n) && !math.IsInf(n, 0)
}
