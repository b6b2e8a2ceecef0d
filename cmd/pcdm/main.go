package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/san-kum/pcdm/internal/config"
	"github.com/san-kum/pcdm/internal/logger"
	"github.com/san-kum/pcdm/internal/project"
	"github.com/san-kum/pcdm/internal/storage"
	"github.com/san-kum/pcdm/internal/viz"
)

var (
	dataDir  string
	logLevel string
	// Config file
	configFile string
	// Preset name
	preset string
	// Source flags
	name  string
	east  float64
	north float64
	depth float64
	omega []float64
	dv    []float64
	nu    float64
	// Observation points
	coordsFile string
	// Output
	outFile   string
	component string
	theme     string
	cols      int
	rows      int
	profileN  float64
	saveLive  bool
	benchRuns int
	workers   int
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "pcdm",
		Short:         "point compound dislocation model of surface deformation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.Init()
			return logger.SetLevelString(logLevel)
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultDataDir, "project directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "create a project from a grid or a coordinates file",
		Args:  cobra.NoArgs,
		RunE:  initProject,
	}
	initCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	initCmd.Flags().StringVar(&coordsFile, "coords", "", "east,north CSV file (overrides the grid)")
	initCmd.Flags().Float64Var(&nu, "nu", config.DefaultNu, "Poisson's ratio")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "add a model, compute it and print a summary",
		Args:  cobra.NoArgs,
		RunE:  runModel,
	}
	addSourceFlags(runCmd)
	runCmd.Flags().Float64Var(&nu, "nu", config.DefaultNu, "Poisson's ratio (applies to the whole project)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list models",
		Args:  cobra.NoArgs,
		RunE:  listModels,
	}

	showCmd := &cobra.Command{
		Use:   "show [model]",
		Short: "show parameters and displacement summary",
		Args:  cobra.MaximumNArgs(1),
		RunE:  showModel,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [model]",
		Short: "plot displacement profiles",
		Args:  cobra.MaximumNArgs(1),
		RunE:  plotModel,
	}
	plotCmd.Flags().Float64Var(&profileN, "north", 0, "northing of the profile (default: source northing)")

	mapCmd := &cobra.Command{
		Use:   "map [model]",
		Short: "draw a displacement map",
		Args:  cobra.MaximumNArgs(1),
		RunE:  mapModel,
	}
	addMapFlags(mapCmd)

	renameCmd := &cobra.Command{
		Use:   "rename [model] [name]",
		Short: "rename a model",
		Args:  cobra.ExactArgs(2),
		RunE:  renameModel,
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [model]",
		Short: "delete a model and its results",
		Args:  cobra.ExactArgs(1),
		RunE:  deleteModel,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [model]",
		Short: "export displacements to CSV",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default: stdout)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [model]",
		Short: "export model and displacements to JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default: stdout)")

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [model]",
		Short: "export a displacement map to SVG",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default: stdout)")
	addMapFlags(exportSVGCmd)

	batchCmd := &cobra.Command{
		Use:   "batch [file]",
		Short: "add and compute the models of a batch file",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}

	computeAllCmd := &cobra.Command{
		Use:   "compute-all",
		Short: "compute every model without results",
		Args:  cobra.NoArgs,
		RunE:  computeAll,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list source presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	liveCmd := &cobra.Command{
		Use:   "live [model]",
		Short: "tune a source interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	liveCmd.Flags().StringVar(&preset, "preset", "", "start from a preset instead of a model")
	liveCmd.Flags().BoolVar(&saveLive, "save", false, "store the final parameters as a new model")
	liveCmd.Flags().StringVar(&theme, "theme", viz.ThemeBalance.Name, "color theme ("+strings.Join(viz.ThemeNames(), ", ")+")")

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "benchmark the backend on growing grids",
		Args:  cobra.NoArgs,
		RunE:  benchBackend,
	}
	benchCmd.Flags().IntVar(&benchRuns, "runs", 5, "runs per grid size")
	benchCmd.Flags().IntVar(&workers, "workers", 1, "evaluation goroutines (0: GOMAXPROCS)")

	rootCmd.AddCommand(initCmd, runCmd, listCmd, showCmd, plotCmd, mapCmd, renameCmd, deleteCmd,
		exportCSVCmd, exportJSONCmd, exportSVGCmd, batchCmd, computeAllCmd, presetsCmd, liveCmd, benchCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset source")
	cmd.Flags().StringVar(&name, "name", "", "model name")
	cmd.Flags().Float64Var(&east, "east", 0, "source easting")
	cmd.Flags().Float64Var(&north, "north", 0, "source northing")
	cmd.Flags().Float64Var(&depth, "depth", config.DefaultDepth, "source depth (positive down)")
	cmd.Flags().Float64SliceVar(&omega, "omega", []float64{0, 0, 0}, "clockwise rotations about x,y,z in degrees")
	cmd.Flags().Float64SliceVar(&dv, "dv", []float64{1e-3, 1e-3, 1e-3}, "potencies normal to x,y,z")
}

func addMapFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&component, "component", "vertical", "east, north, vertical or horizontal")
	cmd.Flags().StringVar(&theme, "theme", viz.ThemeBalance.Name, "color theme ("+strings.Join(viz.ThemeNames(), ", ")+")")
	cmd.Flags().IntVar(&cols, "cols", 48, "raster columns")
	cmd.Flags().IntVar(&rows, "rows", 24, "raster rows")
}

// openProject opens the project in --data.
func openProject() (*project.Project, error) {
	p, err := project.Open(dataDir, project.WithLogger(logger.Named("project")))
	if errors.Is(err, storage.ErrNotAProject) {
		return nil, fmt.Errorf("%s is not a project, create one with `pcdm init`: %w", dataDir, err)
	}
	return p, err
}

// loadModel resolves a model reference; no argument means the latest model.
func loadModel(p *project.Project, args []string) (*project.Model, error) {
	ref := ""
	if len(args) > 0 {
		ref = args[0]
	}
	return p.Find(ref)
}
