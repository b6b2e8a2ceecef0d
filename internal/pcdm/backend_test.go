package pcdm_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/pcdm/internal/grid"
	"github.com/san-kum/pcdm/internal/pcdm"
)

// f32 mirrors the single-precision literals the reference values were produced with.
func f32(v float64) float64 { return float64(float32(v)) }

func referenceGrid() pcdm.HorizontalCoordinates {
	c, err := grid.Regular(grid.Spec{
		MinEast: -7, StepEast: f32(0.1), MaxEast: 7,
		MinNorth: -5, StepNorth: f32(0.1), MaxNorth: 5,
	})
	Expect(err).NotTo(HaveOccurred())
	return c
}

func referenceParameters() pcdm.Parameters {
	return pcdm.Parameters{
		Source: pcdm.PointCDMParameters{
			HorizontalCoord: [2]float64{0.5, -0.25},
			Depth:           2.75,
			Omega:           [3]float64{5, -8, 30},
			DV:              [3]float64{f32(0.00144), f32(0.00128), f32(0.00072)},
		},
		Nu: 0.25,
	}
}

func smallGrid() pcdm.HorizontalCoordinates {
	return pcdm.HorizontalCoordinates{
		East:  []float64{-3, -1.5, 0, 0.5, 2, 4.25},
		North: []float64{1, -2, 0, -0.25, 3.5, -1},
	}
}

func approx(expected float64) OmegaMatcher {
	return BeNumerically("~", expected, math.Abs(expected)*1e-5)
}

type transition struct{ from, to pcdm.State }

var _ = Describe("Backend", func() {
	var (
		backend     *pcdm.Backend
		transitions []transition
	)

	BeforeEach(func() {
		transitions = nil
		backend = pcdm.New(pcdm.WithObserver(func(old, new pcdm.State) {
			transitions = append(transitions, transition{old, new})
		}))
	})

	It("starts uninitialized without results", func() {
		Expect(backend.State()).To(Equal(pcdm.StateUninitialized))
		_, ok := backend.Results()
		Expect(ok).To(BeFalse())
		Expect(backend.Err()).NotTo(HaveOccurred())
	})

	Context("setting coordinates", func() {
		It("rejects sequences of different length", func() {
			state := backend.SetHorizontalCoords(pcdm.HorizontalCoordinates{
				East:  []float64{1, 2, 3},
				North: []float64{1, 2, 3, 4},
			})
			Expect(state).To(Equal(pcdm.StateInvalidParameters))
			Expect(backend.Err()).To(MatchError(pcdm.ErrInvalidInputShape))
			Expect(backend.HorizontalCoords().Len()).To(BeZero())
		})

		It("copies the caller's coordinates", func() {
			c := smallGrid()
			Expect(backend.SetHorizontalCoords(c)).To(Equal(pcdm.StateParametersChanged))

			c.East[0] = 1000
			Expect(backend.HorizontalCoords().East[0]).To(Equal(-3.0))
		})

		It("clears results that were ready", func() {
			backend.SetHorizontalCoords(smallGrid())
			backend.SetParameters(referenceParameters())
			Expect(backend.Run()).To(Equal(pcdm.StateResultsReady))

			Expect(backend.SetHorizontalCoords(smallGrid())).To(Equal(pcdm.StateParametersChanged))
			_, ok := backend.Results()
			Expect(ok).To(BeFalse())
		})
	})

	Context("setting parameters", func() {
		It("rejects potencies of mixed sign", func() {
			p := referenceParameters()
			p.Source.DV = [3]float64{1, -1, 0}
			Expect(backend.SetParameters(p)).To(Equal(pcdm.StateInvalidParameters))
			Expect(backend.Err()).To(MatchError(pcdm.ErrMixedPotencySign))
			Expect(backend.Err()).To(MatchError(pcdm.ErrInvalidSourceParameters))
		})

		It("rejects a negative depth", func() {
			p := referenceParameters()
			p.Source.Depth = -0.001
			Expect(backend.SetParameters(p)).To(Equal(pcdm.StateInvalidParameters))
			Expect(backend.Err()).To(MatchError(pcdm.ErrNegativeDepth))
		})

		It("recovers once corrected parameters are supplied", func() {
			p := referenceParameters()
			p.Source.Depth = -1
			backend.SetHorizontalCoords(smallGrid())
			backend.SetParameters(p)
			Expect(backend.Run()).To(Equal(pcdm.StateInvalidParameters))

			Expect(backend.SetParameters(referenceParameters())).To(Equal(pcdm.StateParametersChanged))
			Expect(backend.Err()).NotTo(HaveOccurred())
			Expect(backend.Run()).To(Equal(pcdm.StateResultsReady))
		})

		It("ignores updates equal to the current parameters", func() {
			backend.SetHorizontalCoords(smallGrid())
			backend.SetParameters(referenceParameters())
			backend.Run()
			seen := len(transitions)

			Expect(backend.SetParameters(referenceParameters())).To(Equal(pcdm.StateResultsReady))
			Expect(transitions).To(HaveLen(seen))
			_, ok := backend.Results()
			Expect(ok).To(BeTrue())
		})

		It("does not range check Poisson's ratio", func() {
			p := referenceParameters()
			p.Nu = 0.7
			backend.SetHorizontalCoords(smallGrid())
			Expect(backend.SetParameters(p)).To(Equal(pcdm.StateParametersChanged))
		})
	})

	Context("running", func() {
		It("fails without observation points", func() {
			backend.SetParameters(referenceParameters())
			Expect(backend.Run()).To(Equal(pcdm.StateInvalidParameters))
			Expect(backend.Err()).To(MatchError(pcdm.ErrEmptyInput))
		})

		It("runs with default parameters", func() {
			backend.SetHorizontalCoords(smallGrid())
			Expect(backend.Run()).To(Equal(pcdm.StateResultsReady))

			r, ok := backend.Results()
			Expect(ok).To(BeTrue())
			Expect(r.Len()).To(Equal(6))
		})

		It("is a no-op in the invalid state", func() {
			backend.SetHorizontalCoords(pcdm.HorizontalCoordinates{East: []float64{1}, North: nil})
			seen := len(transitions)
			Expect(backend.Run()).To(Equal(pcdm.StateInvalidParameters))
			Expect(transitions).To(HaveLen(seen))
		})

		It("is idempotent", func() {
			backend.SetHorizontalCoords(smallGrid())
			backend.SetParameters(referenceParameters())
			Expect(backend.Run()).To(Equal(pcdm.StateResultsReady))
			first, _ := backend.Results()
			seen := len(transitions)

			Expect(backend.Run()).To(Equal(pcdm.StateResultsReady))
			second, _ := backend.Results()

			Expect(transitions).To(HaveLen(seen))
			Expect(&second.East[0]).To(BeIdenticalTo(&first.East[0]))
			Expect(second).To(Equal(first))
		})

		It("reports every transition to observers", func() {
			backend.SetHorizontalCoords(smallGrid())
			backend.SetParameters(referenceParameters())
			backend.Run()
			_, err := backend.TakeResults()
			Expect(err).NotTo(HaveOccurred())

			Expect(transitions).To(Equal([]transition{
				{pcdm.StateUninitialized, pcdm.StateParametersChanged},
				{pcdm.StateParametersChanged, pcdm.StateResultsReady},
				{pcdm.StateResultsReady, pcdm.StateParametersChanged},
			}))
		})
	})

	Context("zero potencies", func() {
		BeforeEach(func() {
			backend.SetHorizontalCoords(smallGrid())
		})

		It("yields exact zeros when every potency is zero", func() {
			p := referenceParameters()
			p.Source.DV = [3]float64{0, 0, 0}
			backend.SetParameters(p)
			Expect(backend.Run()).To(Equal(pcdm.StateResultsReady))

			r, _ := backend.Results()
			Expect(r.Len()).To(Equal(6))
			for c := 0; c < 3; c++ {
				Expect(r.Component(c)).To(HaveEach(BeZero()))
			}
		})

		It("adds nothing for a zero axis", func() {
			p := referenceParameters()
			p.Source.DV = [3]float64{0, 0.002, 0}
			backend.SetParameters(p)
			backend.Run()
			r, _ := backend.Results()

			o := pcdm.Triad(p.Source.Omega)[1]
			c := smallGrid()
			single := pcdm.ComputeDisplacement(c.East, c.North, p.Source.HorizontalCoord,
				p.Source.Depth, o.StrikeDeg, o.DipRad, 0.002, p.Nu)

			Expect(r.East).To(Equal(single.East))
			Expect(r.North).To(Equal(single.North))
			Expect(r.Vertical).To(Equal(single.Vertical))
		})
	})

	It("equals the sum of the three single dislocations", func() {
		c := smallGrid()
		p := referenceParameters()
		p.Source.DV = [3]float64{0.003, 0.001, 0.0005}
		backend.SetHorizontalCoords(c)
		backend.SetParameters(p)
		backend.Run()
		r, _ := backend.Results()

		sum := pcdm.ZeroResults(c.Len())
		for k, o := range pcdm.Triad(p.Source.Omega) {
			sum.Add(pcdm.ComputeDisplacement(c.East, c.North, p.Source.HorizontalCoord,
				p.Source.Depth, o.StrikeDeg, o.DipRad, p.Source.DV[k], p.Nu))
		}

		for i := 0; i < c.Len(); i++ {
			Expect(r.East[i]).To(BeNumerically("~", sum.East[i], 1e-18))
			Expect(r.North[i]).To(BeNumerically("~", sum.North[i], 1e-18))
			Expect(r.Vertical[i]).To(BeNumerically("~", sum.Vertical[i], 1e-18))
		}
	})

	It("gives identical results on one or several workers", func() {
		c := referenceGrid()
		p := referenceParameters()

		serial := pcdm.New(pcdm.WithWorkers(1))
		serial.SetHorizontalCoords(c)
		serial.SetParameters(p)
		Expect(serial.Run()).To(Equal(pcdm.StateResultsReady))

		parallel := pcdm.New(pcdm.WithWorkers(4))
		parallel.SetHorizontalCoords(c)
		parallel.SetParameters(p)
		Expect(parallel.Run()).To(Equal(pcdm.StateResultsReady))

		a, _ := serial.Results()
		b, _ := parallel.Results()
		Expect(b.East).To(Equal(a.East))
		Expect(b.North).To(Equal(a.North))
		Expect(b.Vertical).To(Equal(a.Vertical))
	})

	It("does not depend on rotation for an isotropic source", func() {
		c := smallGrid()
		p := referenceParameters()
		p.Source.DV = [3]float64{1e-3, 1e-3, 1e-3}
		p.Source.Omega = [3]float64{0, 0, 0}

		backend.SetHorizontalCoords(c)
		backend.SetParameters(p)
		backend.Run()
		unrotated, err := backend.TakeResults()
		Expect(err).NotTo(HaveOccurred())

		p.Source.Omega = [3]float64{20, -35, 50}
		backend.SetParameters(p)
		backend.Run()
		rotated, _ := backend.Results()

		for i := 0; i < c.Len(); i++ {
			Expect(rotated.East[i]).To(BeNumerically("~", unrotated.East[i], 1e-15))
			Expect(rotated.North[i]).To(BeNumerically("~", unrotated.North[i], 1e-15))
			Expect(rotated.Vertical[i]).To(BeNumerically("~", unrotated.Vertical[i], 1e-15))
		}
	})

	Context("taking results", func() {
		It("fails before a run", func() {
			_, err := backend.TakeResults()
			Expect(err).To(MatchError(pcdm.ErrNoResults))
		})

		It("moves the results out and regresses the state", func() {
			backend.SetHorizontalCoords(smallGrid())
			backend.SetParameters(referenceParameters())
			backend.Run()

			r, err := backend.TakeResults()
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Valid()).To(BeTrue())
			Expect(r.Len()).To(Equal(6))

			Expect(backend.State()).To(Equal(pcdm.StateParametersChanged))
			_, ok := backend.Results()
			Expect(ok).To(BeFalse())

			_, err = backend.TakeResults()
			Expect(err).To(MatchError(pcdm.ErrNoResults))

			Expect(backend.Run()).To(Equal(pcdm.StateResultsReady))
			again, _ := backend.Results()
			Expect(again).To(Equal(r))
		})
	})

	It("invalidates ready results", func() {
		backend.SetHorizontalCoords(smallGrid())
		backend.Run()
		backend.Invalidate()
		Expect(backend.State()).To(Equal(pcdm.StateParametersChanged))
		_, ok := backend.Results()
		Expect(ok).To(BeFalse())
	})

	It("reproduces the reference displacement field", func() {
		backend.SetHorizontalCoords(referenceGrid())
		Expect(backend.State()).To(Equal(pcdm.StateParametersChanged))

		backend.SetParameters(referenceParameters())
		Expect(backend.State()).To(Equal(pcdm.StateParametersChanged))

		Expect(backend.Run()).To(Equal(pcdm.StateResultsReady))

		r, ok := backend.Results()
		Expect(ok).To(BeTrue())
		Expect(r.East).To(HaveLen(14241))
		Expect(r.North).To(HaveLen(14241))
		Expect(r.Vertical).To(HaveLen(14241))

		Expect(r.East[0]).To(approx(-4.8481476e-006))
		Expect(r.North[0]).To(approx(-2.9985717e-006))
		Expect(r.Vertical[0]).To(approx(1.8188007e-006))

		Expect(r.East[1]).To(approx(-4.9327205e-006))
		Expect(r.North[1]).To(approx(-2.9850895e-006))
		Expect(r.Vertical[1]).To(approx(1.8489232e-006))

		Expect(r.East[14240]).To(approx(4.4342782e-006))
		Expect(r.North[14240]).To(approx(3.5152977e-006))
		Expect(r.Vertical[14240]).To(approx(1.9343227e-006))
	})
})
