package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/pcdm/internal/analysis"
	"github.com/san-kum/pcdm/internal/automation"
	"github.com/san-kum/pcdm/internal/config"
	"github.com/san-kum/pcdm/internal/export"
	"github.com/san-kum/pcdm/internal/grid"
	"github.com/san-kum/pcdm/internal/logger"
	"github.com/san-kum/pcdm/internal/metrics"
	"github.com/san-kum/pcdm/internal/pcdm"
	"github.com/san-kum/pcdm/internal/project"
	"github.com/san-kum/pcdm/internal/storage"
	"github.com/san-kum/pcdm/internal/viz"
)

func initProject(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("coords") {
		cfg.CoordsFile = coordsFile
	}
	if cmd.Flags().Changed("nu") {
		cfg.Nu = nu
	}

	p, err := createProject(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("project: %s\n", p.Dir())
	fmt.Printf("points: %d (%s)\n", p.HorizontalCoords().Len(), p.GeometryType())
	fmt.Printf("nu: %g\n", p.PoissonsRatio())
	return nil
}

func createProject(cfg *config.Config) (*project.Project, error) {
	p, err := project.Create(dataDir, project.WithLogger(logger.Named("project")))
	if err != nil {
		return nil, err
	}

	if cfg.CoordsFile != "" {
		coords, err := cfg.Coordinates()
		if err != nil {
			return nil, fmt.Errorf("failed to read coordinates: %w", err)
		}
		if err := p.SetHorizontalCoords(coords); err != nil {
			return nil, err
		}
	} else if err := p.SetGrid(cfg.Grid); err != nil {
		return nil, err
	}

	if err := p.SetPoissonsRatio(cfg.Nu); err != nil {
		return nil, err
	}
	return p, nil
}

// sourceConfig layers config file, preset and flags, in that order.
func sourceConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if preset != "" {
		pc := config.GetPreset(preset)
		if pc == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		cfg.Source = pc.Source
		cfg.Nu = pc.Nu
		if cfg.Name == "" {
			cfg.Name = pc.Name
		}
	}

	flags := cmd.Flags()
	if flags.Changed("name") {
		cfg.Name = name
	}
	if flags.Changed("east") {
		cfg.Source.East = east
	}
	if flags.Changed("north") {
		cfg.Source.North = north
	}
	if flags.Changed("depth") {
		cfg.Source.Depth = depth
	}
	if flags.Changed("omega") {
		if len(omega) != 3 {
			return nil, fmt.Errorf("--omega needs 3 values, got %d", len(omega))
		}
		copy(cfg.Source.Omega[:], omega)
	}
	if flags.Changed("dv") {
		if len(dv) != 3 {
			return nil, fmt.Errorf("--dv needs 3 values, got %d", len(dv))
		}
		copy(cfg.Source.DV[:], dv)
	}
	if flags.Changed("nu") {
		cfg.Nu = nu
	}
	return cfg, nil
}

func runModel(cmd *cobra.Command, args []string) error {
	cfg, err := sourceConfig(cmd)
	if err != nil {
		return err
	}
	params := cfg.Parameters()
	if err := params.Source.Validate(); err != nil {
		return err
	}

	p, err := project.Open(dataDir, project.WithLogger(logger.Named("project")))
	if errors.Is(err, storage.ErrNotAProject) {
		logger.Get().Info("creating project", logger.String("dir", dataDir))
		p, err = createProject(cfg)
	}
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("nu") || configFile != "" || preset != "" {
		if params.Nu != p.PoissonsRatio() {
			logger.Get().Warn("changing Poisson's ratio invalidates all models",
				logger.Float64("old", p.PoissonsRatio()), logger.Float64("new", params.Nu))
		}
		if err := p.SetPoissonsRatio(params.Nu); err != nil {
			return err
		}
	}

	m, err := p.NewModel(cfg.Name, params.Source)
	if err != nil {
		return err
	}

	fmt.Printf("computing %d points...\n", p.HorizontalCoords().Len())
	start := time.Now()
	if err := <-m.RequestResults(cmd.Context()); err != nil {
		return err
	}
	elapsed := time.Since(start)

	if err := p.SetMostRecentModel(m.Timestamp()); err != nil {
		return err
	}

	r, err := m.Results()
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("model: %s\n", m.Key())
	return printSummary(os.Stdout, p.HorizontalCoords(), r)
}

func ensureResults(cmd *cobra.Command, m *project.Model) (pcdm.Results, error) {
	if !m.HasResults() {
		if err := <-m.RequestResults(cmd.Context()); err != nil {
			return pcdm.Results{}, err
		}
	}
	return m.Results()
}

func printSummary(out io.Writer, coords pcdm.HorizontalCoordinates, r pcdm.Results) error {
	s, err := analysis.Summarize(coords, r)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "\npoints: %d\n\n", s.Points)
	fmt.Fprintln(w, "COMPONENT\tMIN\tAT\tMAX\tAT\tMEAN\tSTDDEV")
	for _, c := range s.Components {
		fmt.Fprintf(w, "%s\t%.4e\t(%.2f, %.2f)\t%.4e\t(%.2f, %.2f)\t%.3e\t%.3e\n",
			c.Name, c.Min, c.MinAt.East, c.MinAt.North, c.Max, c.MaxAt.East, c.MaxAt.North, c.Mean, c.StdDev)
	}
	fmt.Fprintf(w, "\nmax horizontal: %.4e at (%.2f, %.2f)\n",
		s.MaxHorizontal, s.MaxHorizontalAt.East, s.MaxHorizontalAt.North)
	return w.Flush()
}

func listModels(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}

	models := p.Models()
	if len(models) == 0 {
		fmt.Println("no models found")
		return nil
	}

	recent, _ := p.MostRecentModel()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, " \tTIMESTAMP\tNAME\tEPICENTER\tDEPTH\tDV\tRESULTS")
	for _, m := range models {
		marker := " "
		if m == recent {
			marker = "*"
		}
		src := m.Parameters()
		fmt.Fprintf(w, "%s\t%s\t%s\t(%.2f, %.2f)\t%.3f\t%.3g\t%v\n",
			marker, m.Key(), m.Name(), src.HorizontalCoord[0], src.HorizontalCoord[1],
			src.Depth, src.DV, m.HasResults())
	}
	return w.Flush()
}

func showModel(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	m, err := loadModel(p, args)
	if err != nil {
		return err
	}

	src := m.Parameters()
	fmt.Printf("model: %s\n", m.Key())
	fmt.Printf("name: %s\n", m.Name())
	fmt.Printf("epicenter: (%g, %g)\n", src.HorizontalCoord[0], src.HorizontalCoord[1])
	fmt.Printf("depth: %g\n", src.Depth)
	fmt.Printf("omega: %v\n", src.Omega)
	fmt.Printf("dv: %v (total %g)\n", src.DV, src.TotalPotency())
	fmt.Printf("nu: %g\n", p.PoissonsRatio())

	if err := src.Validate(); err != nil {
		fmt.Printf("invalid: %v\n", err)
		return nil
	}

	r, err := ensureResults(cmd, m)
	if err != nil {
		return err
	}
	return printSummary(os.Stdout, p.HorizontalCoords(), r)
}

func plotModel(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	m, err := loadModel(p, args)
	if err != nil {
		return err
	}
	r, err := ensureResults(cmd, m)
	if err != nil {
		return err
	}

	n := m.Parameters().HorizontalCoord[1]
	if cmd.Flags().Changed("north") {
		n = profileN
	}
	prof, err := analysis.Profile(p.HorizontalCoords(), r, n)
	if err != nil {
		return err
	}

	fmt.Printf("model: %s\n", m.Key())
	fmt.Printf("profile: north=%g, %d points from east=%g to %g\n\n",
		prof.North, len(prof.East), prof.East[0], prof.East[len(prof.East)-1])

	for c, values := range prof.Values {
		graph := asciigraph.Plot(values,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(analysis.ComponentNames[c]+" displacement"),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func componentValues(r pcdm.Results) ([]float64, error) {
	switch strings.ToLower(component) {
	case "east", "e":
		return r.East, nil
	case "north", "n":
		return r.North, nil
	case "vertical", "up", "v", "u":
		return r.Vertical, nil
	case "horizontal", "h":
		return analysis.HorizontalMagnitude(r), nil
	}
	return nil, fmt.Errorf("unknown component: %s", component)
}

func mapModel(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	m, err := loadModel(p, args)
	if err != nil {
		return err
	}
	r, err := ensureResults(cmd, m)
	if err != nil {
		return err
	}
	values, err := componentValues(r)
	if err != nil {
		return err
	}

	if err := viz.SetTheme(theme); err != nil {
		return err
	}
	th := viz.CurrentTheme
	heat, err := viz.Heatmap(p.HorizontalCoords(), values, cols, rows, th)
	if err != nil {
		return err
	}

	fmt.Println(viz.HeaderStyle.Render(fmt.Sprintf("%s: %s displacement", m.Key(), component)))
	fmt.Println(heat)
	fmt.Println()
	fmt.Println(viz.Legend(floats.Min(values), floats.Max(values), 32, th))
	return nil
}

func renameModel(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	m, err := p.Find(args[0])
	if err != nil {
		return err
	}
	if err := m.SetName(args[1]); err != nil {
		return err
	}
	fmt.Printf("renamed %s to %q\n", m.Key(), args[1])
	return nil
}

func deleteModel(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	m, err := p.Find(args[0])
	if err != nil {
		return err
	}
	if err := p.DeleteModel(m.Timestamp()); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", m.Key())
	return nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func openOutput() (io.WriteCloser, error) {
	if outFile == "" || outFile == "-" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(outFile)
}

func writeOutput(write func(io.Writer) error) error {
	out, err := openOutput()
	if err != nil {
		return err
	}
	if err := write(out); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if outFile != "" && outFile != "-" {
		fmt.Fprintf(os.Stderr, "exported to %s\n", outFile)
	}
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	m, err := loadModel(p, args)
	if err != nil {
		return err
	}
	r, err := ensureResults(cmd, m)
	if err != nil {
		return err
	}
	return writeOutput(func(w io.Writer) error {
		return export.WriteCSV(w, p.HorizontalCoords(), r)
	})
}

func exportJSON(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	m, err := loadModel(p, args)
	if err != nil {
		return err
	}
	r, err := ensureResults(cmd, m)
	if err != nil {
		return err
	}

	params := pcdm.Parameters{Source: m.Parameters(), Nu: p.PoissonsRatio()}
	data := export.NewModelData(m.Name(), m.Timestamp(), params, p.HorizontalCoords(), r)
	return writeOutput(func(w io.Writer) error {
		return export.WriteJSON(w, data)
	})
}

func exportSVG(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	m, err := loadModel(p, args)
	if err != nil {
		return err
	}
	r, err := ensureResults(cmd, m)
	if err != nil {
		return err
	}
	values, err := componentValues(r)
	if err != nil {
		return err
	}

	if err := viz.SetTheme(theme); err != nil {
		return err
	}

	src := m.Parameters()
	svg, err := export.FieldToSVG(p.HorizontalCoords(), values, cols, rows, 12, viz.CurrentTheme, &src)
	if err != nil {
		return err
	}
	return writeOutput(func(w io.Writer) error {
		_, err := io.WriteString(w, svg)
		return err
	})
}

func runBatch(cmd *cobra.Command, args []string) error {
	batch, err := automation.LoadBatch(args[0])
	if err != nil {
		return err
	}
	p, err := openProject()
	if err != nil {
		return err
	}

	fmt.Printf("running batch %q...\n", batch.Name)
	models, err := automation.RunBatch(cmd.Context(), p, batch, logger.Named("batch"))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIMESTAMP\tNAME\tRESULTS")
	for _, m := range models {
		fmt.Fprintf(w, "%s\t%s\t%v\n", m.Key(), m.Name(), m.HasResults())
	}
	if flushErr := w.Flush(); flushErr != nil && err == nil {
		err = flushErr
	}
	return err
}

func computeAll(cmd *cobra.Command, args []string) error {
	rec := metrics.NewRecorder()
	p, err := project.Open(dataDir, project.WithLogger(logger.Named("project")), project.WithRecorder(rec))
	if err != nil {
		return err
	}

	start := time.Now()
	err = p.ComputeAll(cmd.Context())
	elapsed := time.Since(start)

	snap, snapErr := rec.Snapshot()
	if snapErr != nil {
		return snapErr
	}
	fmt.Printf("models: %d\n", len(p.Models()))
	fmt.Printf("computed: %.0f\n", snap["pcdm_backend_runs_total{state=results_ready}"])
	fmt.Printf("failed: %.0f\n", snap["pcdm_backend_runs_total{state=invalid_parameters}"])
	fmt.Printf("elapsed: %v\n", elapsed)
	return err
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tEPICENTER\tDEPTH\tOMEGA\tDV\tNU")
	for _, name := range config.ListPresets() {
		cfg := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t(%g, %g)\t%g\t%v\t%v\t%g\n",
			name, cfg.Source.East, cfg.Source.North, cfg.Source.Depth, cfg.Source.Omega, cfg.Source.DV, cfg.Nu)
	}
	return w.Flush()
}

func runLive(cmd *cobra.Command, args []string) error {
	var (
		p      *project.Project
		coords pcdm.HorizontalCoordinates
		params pcdm.Parameters
		title  = "live"
	)

	p, err := openProject()
	switch {
	case err == nil:
		coords = p.HorizontalCoords()
		params.Nu = p.PoissonsRatio()
		if preset == "" {
			m, err := loadModel(p, args)
			if err != nil {
				return err
			}
			params.Source = m.Parameters()
			title = m.Name()
			if title == "" {
				title = m.Key()
			}
		}
	case errors.Is(err, storage.ErrNotAProject) && !saveLive:
		p = nil
		coords, err = grid.Regular(config.DefaultGrid())
		if err != nil {
			return err
		}
		params = config.DefaultConfig().Parameters()
	default:
		return err
	}

	if preset != "" {
		pc := config.GetPreset(preset)
		if pc == nil {
			return fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		params.Source = pc.Parameters().Source
		if p == nil {
			params.Nu = pc.Nu
		}
		title = preset
	}

	if err := viz.SetTheme(theme); err != nil {
		return err
	}

	rec := metrics.NewRecorder()
	final, err := tea.NewProgram(viz.NewModel(title, coords, params, rec), tea.WithAltScreen()).Run()
	if err != nil {
		return err
	}

	if !saveLive || p == nil {
		return nil
	}
	result := final.(viz.Model).Parameters()
	if err := result.Source.Validate(); err != nil {
		return fmt.Errorf("not saving: %w", err)
	}
	if err := p.SetPoissonsRatio(result.Nu); err != nil {
		return err
	}
	m, err := p.NewModel(title+" (live)", result.Source)
	if err != nil {
		return err
	}
	if err := p.SetMostRecentModel(m.Timestamp()); err != nil {
		return err
	}
	fmt.Printf("saved %s\n", m.Key())
	return nil
}

func benchBackend(cmd *cobra.Command, args []string) error {
	if benchRuns < 1 {
		return fmt.Errorf("--runs must be positive")
	}

	rec := metrics.NewRecorder()
	params := config.GetPreset("reference").Parameters()
	steps := []float64{0.5, 0.2, 0.1, 0.05}

	fmt.Println("benchmarking pcdm backend")
	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tPOINTS\tRUNS\tMEAN\tPOINTS/SEC")

	for _, step := range steps {
		spec := config.DefaultGrid()
		spec.StepEast, spec.StepNorth = step, step
		coords, err := grid.Regular(spec)
		if err != nil {
			return err
		}

		var total time.Duration
		for i := 0; i < benchRuns; i++ {
			b := pcdm.New(pcdm.WithObserver(rec.Observer()), pcdm.WithWorkers(workers))
			b.SetHorizontalCoords(coords)
			b.SetParameters(params)

			start := time.Now()
			if state := rec.RunBackend(b); state != pcdm.StateResultsReady {
				return fmt.Errorf("backend ended in %s: %w", state, b.Err())
			}
			total += time.Since(start)
		}

		mean := total / time.Duration(benchRuns)
		fmt.Fprintf(w, "%.2f\t%d\t%d\t%v\t%.0f\n",
			step, coords.Len(), benchRuns, mean, float64(coords.Len())/mean.Seconds())
	}
	if err := w.Flush(); err != nil {
		return err
	}

	snap, err := rec.Snapshot()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Println("\nmetrics:")
	for _, k := range keys {
		fmt.Printf("  %s: %g\n", k, snap[k])
	}
	return nil
}
