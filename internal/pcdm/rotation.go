package pcdm

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Orientation of one dislocation of the triad.
type Orientation struct {
	StrikeDeg float64
	DipRad    float64
}

// DipDeg returns the dip in degrees.
func (o Orientation) DipDeg() float64 { return o.DipRad * 180 / math.Pi }

func rotX(a float64) *mat.Dense {
	s, c := math.Sincos(a)
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, c, -s,
		0, s, c,
	})
}

func rotY(a float64) *mat.Dense {
	s, c := math.Sincos(a)
	return mat.NewDense(3, 3, []float64{
		c, 0, s,
		0, 1, 0,
		-s, 0, c,
	})
}

func rotZ(a float64) *mat.Dense {
	s, c := math.Sincos(a)
	return mat.NewDense(3, 3, []float64{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	})
}

// RotationMatrix returns R = Rz(-ωz)·Ry(-ωy)·Rx(-ωx) for clockwise angles in degrees.
func RotationMatrix(omega [3]float64) *mat.Dense {
	toRad := math.Pi / 180
	rx := rotX(-omega[0] * toRad)
	ry := rotY(-omega[1] * toRad)
	rz := rotZ(-omega[2] * toRad)

	var zy, r mat.Dense
	zy.Mul(rz, ry)
	r.Mul(&zy, rx)
	return &r
}

// Triad derives strike and dip of the three dislocations from the rotated
// canonical axes. Column k of R is the normal of dislocation k.
func Triad(omega [3]float64) [3]Orientation {
	r := RotationMatrix(omega)

	var out [3]Orientation
	for k := 0; k < 3; k++ {
		vx, vy := -r.At(1, k), r.At(0, k)
		norm := math.Hypot(vx, vy)

		strike := 0.0
		if norm > 0 {
			strike = math.Atan2(vx/norm, vy/norm) * 180 / math.Pi
		}
		if math.IsNaN(strike) {
			strike = 0
		}

		// guard acos against rounding slightly outside [-1, 1]
		cz := math.Max(-1, math.Min(1, r.At(2, k)))

		out[k] = Orientation{StrikeDeg: strike, DipRad: math.Acos(cz)}
	}
	return out
}
