package project_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/pcdm/internal/grid"
	"github.com/san-kum/pcdm/internal/metrics"
	"github.com/san-kum/pcdm/internal/pcdm"
	"github.com/san-kum/pcdm/internal/project"
	"github.com/san-kum/pcdm/internal/storage"
)

var testGrid = grid.Spec{
	MinEast: -2, StepEast: 0.5, MaxEast: 2,
	MinNorth: -1, StepNorth: 0.5, MaxNorth: 1,
}

func source() pcdm.PointCDMParameters {
	return pcdm.PointCDMParameters{
		HorizontalCoord: [2]float64{0.5, -0.25},
		Depth:           2.75,
		Omega:           [3]float64{5, -8, 30},
		DV:              [3]float64{0.00144, 0.00128, 0.00072},
	}
}

func await(m *project.Model) error {
	var err error
	Eventually(m.RequestResults(context.Background()), 5*time.Second).Should(Receive(&err))
	return err
}

var _ = Describe("Project", func() {
	var (
		dir string
		p   *project.Project
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		var err error
		p, err = project.Create(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.SetPoissonsRatio(0.25)).To(Succeed())
		Expect(p.SetGrid(testGrid)).To(Succeed())
	})

	It("refuses to open a folder without a project file", func() {
		_, err := project.Open(GinkgoT().TempDir())
		Expect(err).To(MatchError(storage.ErrNotAProject))
	})

	It("persists settings, points and models", func() {
		m, err := p.NewModel("first", source())
		Expect(err).NotTo(HaveOccurred())
		Expect(p.SetMostRecentModel(m.Timestamp())).To(Succeed())

		reopened, err := project.Open(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(reopened.PoissonsRatio()).To(Equal(0.25))
		Expect(reopened.GeometryType()).To(Equal(project.GeometryRegularGrid))
		Expect(reopened.HorizontalCoords().Len()).To(Equal(9 * 5))

		spec, ok := reopened.Grid()
		Expect(ok).To(BeTrue())
		Expect(spec).To(Equal(testGrid))

		models := reopened.Models()
		Expect(models).To(HaveLen(1))
		Expect(models[0].Name()).To(Equal("first"))
		Expect(models[0].Parameters().Equal(source())).To(BeTrue())

		recent, ok := reopened.MostRecentModel()
		Expect(ok).To(BeTrue())
		Expect(recent.Key()).To(Equal(m.Key()))
	})

	It("returns the existing model for a known timestamp", func() {
		ts := time.Date(2024, 3, 1, 12, 30, 0, 123_000_000, time.Local)
		a, err := p.AddModel(ts)
		Expect(err).NotTo(HaveOccurred())
		b, err := p.AddModel(ts)
		Expect(err).NotTo(HaveOccurred())
		Expect(b).To(BeIdenticalTo(a))
		Expect(a.Key()).To(Equal("2024-03-01 12-30-00.123"))
	})

	It("gives concurrent new models distinct timestamps", func() {
		const n = 16
		models := make([]*project.Model, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				defer GinkgoRecover()
				params := source()
				params.Depth = float64(i + 1)
				m, err := p.NewModel(fmt.Sprintf("m%d", i), params)
				Expect(err).NotTo(HaveOccurred())
				models[i] = m
			}(i)
		}
		wg.Wait()

		keys := map[string]bool{}
		for i, m := range models {
			keys[m.Key()] = true
			Expect(m.Name()).To(Equal(fmt.Sprintf("m%d", i)))
			Expect(m.Parameters().Depth).To(Equal(float64(i + 1)))
		}
		Expect(keys).To(HaveLen(n))
		Expect(p.Models()).To(HaveLen(n))

		reopened, err := project.Open(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(reopened.Models()).To(HaveLen(n))
	})

	It("keeps models ordered by timestamp", func() {
		later := time.Date(2024, 3, 2, 0, 0, 0, 0, time.Local)
		earlier := later.Add(-time.Hour)
		_, err := p.AddModel(later)
		Expect(err).NotTo(HaveOccurred())
		_, err = p.AddModel(earlier)
		Expect(err).NotTo(HaveOccurred())

		models := p.Models()
		Expect(models).To(HaveLen(2))
		Expect(models[0].Timestamp().Equal(earlier)).To(BeTrue())
	})

	It("finds models by name and timestamp", func() {
		m, err := p.NewModel("sill", source())
		Expect(err).NotTo(HaveOccurred())

		found, err := p.Find("sill")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeIdenticalTo(m))

		found, err = p.Find(m.Key())
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeIdenticalTo(m))

		found, err = p.Find("latest")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeIdenticalTo(m))

		_, err = p.Find("missing")
		Expect(err).To(MatchError(project.ErrModelNotFound))
	})

	Context("computing results", func() {
		var m *project.Model

		BeforeEach(func() {
			var err error
			m, err = p.NewModel("reference", source())
			Expect(err).NotTo(HaveOccurred())
		})

		It("computes the same field as a backend", func() {
			Expect(await(m)).To(Succeed())
			Expect(m.HasResults()).To(BeTrue())

			b := pcdm.New()
			b.SetHorizontalCoords(p.HorizontalCoords())
			b.SetParameters(pcdm.Parameters{Source: source(), Nu: 0.25})
			Expect(b.Run()).To(Equal(pcdm.StateResultsReady))
			want, _ := b.Results()

			got, err := m.Results()
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Vertical).To(Equal(want.Vertical))
			Expect(got.East).To(Equal(want.East))
		})

		It("stores results and reloads them from disk", func() {
			Expect(await(m)).To(Succeed())
			Expect(filepath.Join(dir, storage.ModelsDirName, m.Key()+"_u_vec.csv")).To(BeAnExistingFile())

			reopened, err := project.Open(dir)
			Expect(err).NotTo(HaveOccurred())
			again, ok := reopened.Model(m.Timestamp())
			Expect(ok).To(BeTrue())
			Expect(again.HasResults()).To(BeTrue())

			stored, err := again.Results()
			Expect(err).NotTo(HaveOccurred())
			original, _ := m.Results()
			Expect(stored.Len()).To(Equal(original.Len()))
			for i := range original.Vertical {
				Expect(stored.Vertical[i]).To(Equal(original.Vertical[i]))
			}
		})

		It("drops results when parameters change", func() {
			Expect(await(m)).To(Succeed())

			Expect(m.SetParameters(source())).To(Succeed())
			Expect(m.HasResults()).To(BeTrue())

			changed := source()
			changed.Depth = 3
			Expect(m.SetParameters(changed)).To(Succeed())
			Expect(m.HasResults()).To(BeFalse())
			_, err := m.Results()
			Expect(err).To(MatchError(pcdm.ErrNoResults))
		})

		It("drops results of all models when nu or points change", func() {
			other, err := p.NewModel("other", source())
			Expect(err).NotTo(HaveOccurred())
			Expect(p.ComputeAll(context.Background())).To(Succeed())
			Expect(m.HasResults()).To(BeTrue())
			Expect(other.HasResults()).To(BeTrue())

			Expect(p.SetPoissonsRatio(0.3)).To(Succeed())
			Expect(m.HasResults()).To(BeFalse())
			Expect(other.HasResults()).To(BeFalse())

			Expect(p.ComputeAll(context.Background())).To(Succeed())
			Expect(p.SetHorizontalCoords(pcdm.HorizontalCoordinates{
				East: []float64{0, 1}, North: []float64{0, 1},
			})).To(Succeed())
			Expect(m.HasResults()).To(BeFalse())
			Expect(p.GeometryType()).To(Equal(project.GeometryPointCloud))
			_, hasGrid := p.Grid()
			Expect(hasGrid).To(BeFalse())
		})

		It("reports invalid source parameters", func() {
			bad := source()
			bad.Depth = -1
			Expect(m.SetParameters(bad)).To(Succeed())
			Expect(await(m)).To(MatchError(pcdm.ErrNegativeDepth))
			Expect(m.HasResults()).To(BeFalse())
		})

		It("rejects canceled requests", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			var err error
			Eventually(m.RequestResults(ctx)).Should(Receive(&err))
			Expect(err).To(MatchError(context.Canceled))
		})

		It("discards stored results of the wrong size", func() {
			Expect(await(m)).To(Succeed())
			path := filepath.Join(dir, storage.ModelsDirName, m.Key()+"_u_vec.csv")
			Expect(os.WriteFile(path, []byte("ue,un,uv\n1,2,3\n"), 0644)).To(Succeed())

			reopened, err := project.Open(dir)
			Expect(err).NotTo(HaveOccurred())
			again, _ := reopened.Model(m.Timestamp())
			_, err = again.Results()
			Expect(err).To(MatchError(pcdm.ErrNoResults))
			Expect(again.HasResults()).To(BeFalse())
			Expect(path).NotTo(BeAnExistingFile())
		})

		It("waits for pending results", func() {
			ch := m.RequestResults(context.Background())
			Expect(m.WaitForResults()).To(BeTrue())
			Eventually(ch).Should(Receive(BeNil()))
		})

		It("records backend runs", func() {
			rec := metrics.NewRecorder()
			withMetrics, err := project.Open(dir, project.WithRecorder(rec))
			Expect(err).NotTo(HaveOccurred())
			Expect(withMetrics.ComputeAll(context.Background())).To(Succeed())

			snap, err := rec.Snapshot()
			Expect(err).NotTo(HaveOccurred())
			Expect(snap).To(HaveKeyWithValue("pcdm_backend_runs_total{state=results_ready}", 1.0))
		})
	})

	It("deletes models and their files", func() {
		m, err := p.NewModel("gone", source())
		Expect(err).NotTo(HaveOccurred())
		Expect(p.SetMostRecentModel(m.Timestamp())).To(Succeed())
		Expect(await(m)).To(Succeed())

		Expect(p.DeleteModel(m.Timestamp())).To(Succeed())
		Expect(p.Models()).To(BeEmpty())
		_, ok := p.MostRecentModel()
		Expect(ok).To(BeFalse())
		Expect(filepath.Join(dir, storage.ModelsDirName, m.Key()+".yaml")).NotTo(BeAnExistingFile())
		Expect(m.SetName("x")).To(MatchError(project.ErrModelDeleted))

		Expect(p.DeleteModel(m.Timestamp())).To(MatchError(project.ErrModelNotFound))
	})
})

var _ = Describe("Timestamps", func() {
	It("round-trips through the file name format", func() {
		ts := time.Date(2021, 7, 9, 8, 7, 6, 5_000_000, time.Local)
		s := project.TimestampToString(ts)
		Expect(s).To(Equal("2021-07-09 08-07-06.005"))

		back, err := project.StringToTimestamp(s)
		Expect(err).NotTo(HaveOccurred())
		Expect(back.Equal(ts)).To(BeTrue())
	})

	It("rejects other strings", func() {
		_, err := project.StringToTimestamp("coordinates")
		Expect(err).To(MatchError(project.ErrInvalidTimestamp))
	})
})
