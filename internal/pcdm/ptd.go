package pcdm

import "math"

// ComputeDisplacement evaluates the surface displacement of a single tensile
// point dislocation (PTD) in an elastic half-space (Okada, 1985; Nikkhoo et
// al., 2016) at every observation point.
//
// strikeDeg is in degrees, dipRad in radians. The function does not validate
// its inputs; depth sign and potency consistency are checked by
// PointCDMParameters.Validate.
func ComputeDisplacement(east, north []float64, origin [2]float64, depth, strikeDeg, dipRad, potency, nu float64) Results {
	n := len(east)
	out := ZeroResults(n)

	if math.IsNaN(strikeDeg) {
		strikeDeg = 0
	}

	β := (strikeDeg - 90) * math.Pi / 180
	sinβ, cosβ := math.Sincos(β)

	sinDip, cosDip := math.Sincos(dipRad)
	sinDipSq := sinDip * sinDip

	d := depth
	nuScaled := 1 - 2*nu
	scale := potency / 2 / math.Pi

	for i := 0; i < n; i++ {
		x := east[i] - origin[0]
		y := north[i] - origin[1]

		// rotated frame
		aX := cosβ*x - sinβ*y
		aY := sinβ*x + cosβ*y
		aXSq := aX * aX
		aYSq := aY * aY

		r := math.Sqrt(aXSq + aYSq + d*d)
		q := aY*sinDip - d*cosDip

		rCb := r * r * r
		rd := r + d
		rdSq := rd * rd
		rdCb := rdSq * rd

		I1 := nuScaled * aY * (1/r/rdSq - aXSq*(3*r+d)/rCb/rdCb)
		I2 := nuScaled * aX * (1/r/rdSq - aYSq*(3*r+d)/rCb/rdCb)
		I3 := nuScaled*aX/rCb - I2
		I5 := nuScaled * (1/r/rd - aXSq*(2*r+d)/rCb/rdSq)

		qSq3 := 3 * q * q / math.Pow(r, 5)

		ue := scale * (aX*qSq3 - I3*sinDipSq)
		un := scale * (aY*qSq3 - I1*sinDipSq)
		uv := scale * (d*qSq3 - I5*sinDipSq)

		// back to east/north with the transposed rotation
		out.East[i] = cosβ*ue + sinβ*un
		out.North[i] = -sinβ*ue + cosβ*un
		out.Vertical[i] = uv
	}

	return out
}
