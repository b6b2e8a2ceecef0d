// Package storage persists pCDM projects as a directory of YAML and CSV files:
//
//	<root>/pcdm_project.yaml           project settings
//	<root>/coordinates.csv             observation points
//	<root>/models/<ts>.yaml            model name and source parameters
//	<root>/models/<ts>_u_vec.csv       computed displacements
package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/pcdm/internal/grid"
	"github.com/san-kum/pcdm/internal/pcdm"
)

const (
	ProjectFileName = "pcdm_project.yaml"
	CoordsFileName  = "coordinates.csv"
	ModelsDirName   = "models"

	modelExt      = ".yaml"
	resultsSuffix = "_u_vec.csv"
)

var (
	ErrNotAProject     = errors.New("storage: the folder does not contain a project file")
	ErrNotReadable     = errors.New("storage: the project is not readable")
	ErrNotWritable     = errors.New("storage: the project is not writable")
	ErrNoCoordinates   = errors.New("storage: the project has no observation points")
	ErrNoStoredResults = errors.New("storage: no stored results")
	ErrCorruptResults  = errors.New("storage: stored results are malformed")
)

// ProjectSettings is the content of the project file.
type ProjectSettings struct {
	Nu              float64 `yaml:"nu"`
	MostRecentModel string  `yaml:"most_recent_model,omitempty"`
	HasCoordinates  bool    `yaml:"has_coordinates"`
	// GeometryType is informational: "regular_grid" or "point_cloud".
	GeometryType string     `yaml:"geometry_type,omitempty"`
	Grid         *grid.Spec `yaml:"grid,omitempty"`
}

// ModelRecord is the content of one model file.
type ModelRecord struct {
	Name             string       `yaml:"name"`
	Source           SourceRecord `yaml:"point_cdm"`
	HasStoredResults bool         `yaml:"has_stored_results"`
}

type SourceRecord struct {
	HorizontalCoordinate [2]float64 `yaml:"horizontal_coordinate,flow"`
	Depth                float64    `yaml:"depth"`
	Rotation             [3]float64 `yaml:"rotation,flow"`
	Potencies            [3]float64 `yaml:"potencies,flow"`
}

func NewSourceRecord(p pcdm.PointCDMParameters) SourceRecord {
	return SourceRecord{
		HorizontalCoordinate: p.HorizontalCoord,
		Depth:                p.Depth,
		Rotation:             p.Omega,
		Potencies:            p.DV,
	}
}

func (r SourceRecord) Parameters() pcdm.PointCDMParameters {
	return pcdm.PointCDMParameters{
		HorizontalCoord: r.HorizontalCoordinate,
		Depth:           r.Depth,
		Omega:           r.Rotation,
		DV:              r.Potencies,
	}
}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Dir() string { return s.baseDir }

// Init creates the project and models directories and touches the project file.
func (s *Store) Init() error {
	if err := os.MkdirAll(s.modelsDir(), 0755); err != nil {
		return err
	}
	if _, err := os.Stat(s.projectFile()); errors.Is(err, os.ErrNotExist) {
		return s.SaveSettings(ProjectSettings{})
	} else if err != nil {
		return err
	}
	return nil
}

// CheckProject reports whether dir holds a usable project.
func CheckProject(dir string) error {
	file := filepath.Join(dir, ProjectFileName)
	if _, err := os.Stat(file); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotAProject
		}
		return fmt.Errorf("%w: %v", ErrNotReadable, err)
	}

	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotReadable, err)
	}
	f.Close()

	f, err = os.OpenFile(file, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotWritable, err)
	}
	f.Close()

	probe, err := os.CreateTemp(dir, ".pcdm-probe-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotWritable, err)
	}
	probe.Close()
	os.Remove(probe.Name())
	return nil
}

func (s *Store) LoadSettings() (ProjectSettings, error) {
	var settings ProjectSettings
	if err := readYAML(s.projectFile(), &settings); err != nil {
		return ProjectSettings{}, err
	}
	return settings, nil
}

func (s *Store) SaveSettings(settings ProjectSettings) error {
	return writeYAML(s.projectFile(), settings)
}

func (s *Store) LoadCoords() (pcdm.HorizontalCoordinates, error) {
	f, err := os.Open(filepath.Join(s.baseDir, CoordsFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return pcdm.HorizontalCoordinates{}, ErrNoCoordinates
		}
		return pcdm.HorizontalCoordinates{}, err
	}
	defer f.Close()
	return grid.ReadCSV(f)
}

func (s *Store) SaveCoords(c pcdm.HorizontalCoordinates) error {
	return writeFile(filepath.Join(s.baseDir, CoordsFileName), func(w io.Writer) error {
		return grid.WriteCSV(w, c)
	})
}

func (s *Store) RemoveCoords() error {
	return removeIfExists(filepath.Join(s.baseDir, CoordsFileName))
}

// ListModels returns the timestamp keys of all model files in ascending order.
func (s *Store) ListModels() ([]string, error) {
	entries, err := os.ReadDir(s.modelsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, modelExt) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, modelExt))
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) LoadModel(key string) (ModelRecord, error) {
	var rec ModelRecord
	if err := readYAML(s.modelFile(key), &rec); err != nil {
		return ModelRecord{}, err
	}
	return rec, nil
}

func (s *Store) SaveModel(key string, rec ModelRecord) error {
	if err := os.MkdirAll(s.modelsDir(), 0755); err != nil {
		return err
	}
	return writeYAML(s.modelFile(key), rec)
}

// DeleteModel removes the model file and its results.
func (s *Store) DeleteModel(key string) error {
	if err := s.RemoveResults(key); err != nil {
		return err
	}
	return removeIfExists(s.modelFile(key))
}

func (s *Store) LoadResults(key string) (pcdm.Results, error) {
	f, err := os.Open(s.resultsFile(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return pcdm.Results{}, ErrNoStoredResults
		}
		return pcdm.Results{}, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return pcdm.Results{}, fmt.Errorf("%w: %v", ErrCorruptResults, err)
	}
	if len(records) < 2 {
		return pcdm.Results{}, ErrCorruptResults
	}

	n := len(records) - 1
	res := pcdm.Results{
		East:     make([]float64, n),
		North:    make([]float64, n),
		Vertical: make([]float64, n),
	}
	for i, record := range records[1:] {
		if len(record) != 3 {
			return pcdm.Results{}, fmt.Errorf("%w: line %d", ErrCorruptResults, i+2)
		}
		for c, dst := range [][]float64{res.East, res.North, res.Vertical} {
			v, err := strconv.ParseFloat(record[c], 64)
			if err != nil {
				return pcdm.Results{}, fmt.Errorf("%w: line %d: %v", ErrCorruptResults, i+2, err)
			}
			dst[i] = v
		}
	}
	return res, nil
}

func (s *Store) SaveResults(key string, res pcdm.Results) error {
	if res.Empty() || !res.Valid() {
		return ErrCorruptResults
	}

	return writeFile(s.resultsFile(key), func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"ue", "un", "uv"}); err != nil {
			return err
		}
		for i := range res.East {
			row := []string{
				strconv.FormatFloat(res.East[i], 'g', -1, 64),
				strconv.FormatFloat(res.North[i], 'g', -1, 64),
				strconv.FormatFloat(res.Vertical[i], 'g', -1, 64),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

func (s *Store) RemoveResults(key string) error {
	return removeIfExists(s.resultsFile(key))
}

func (s *Store) projectFile() string { return filepath.Join(s.baseDir, ProjectFileName) }
func (s *Store) modelsDir() string   { return filepath.Join(s.baseDir, ModelsDirName) }

func (s *Store) modelFile(key string) string {
	return filepath.Join(s.modelsDir(), key+modelExt)
}

func (s *Store) resultsFile(key string) string {
	return filepath.Join(s.modelsDir(), key+resultsSuffix)
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}

func writeYAML(path string, in any) error {
	data, err := yaml.Marshal(in)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
