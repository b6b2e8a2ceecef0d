package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/san-kum/pcdm/internal/pcdm"
)

// ModelData is the JSON form of a computed model.
type ModelData struct {
	Name      string     `json:"name"`
	Timestamp time.Time  `json:"timestamp"`
	Source    SourceData `json:"source"`
	Nu        float64    `json:"nu"`
	Points    int        `json:"points"`
	East      []float64  `json:"east"`
	North     []float64  `json:"north"`
	UE        []float64  `json:"ue"`
	UN        []float64  `json:"un"`
	UV        []float64  `json:"uv"`
}

type SourceData struct {
	HorizontalCoord [2]float64 `json:"horizontal_coord"`
	Depth           float64    `json:"depth"`
	Omega           [3]float64 `json:"omega"`
	DV              [3]float64 `json:"dv"`
}

func NewModelData(name string, ts time.Time, p pcdm.Parameters, coords pcdm.HorizontalCoordinates, r pcdm.Results) ModelData {
	return ModelData{
		Name:      name,
		Timestamp: ts,
		Source: SourceData{
			HorizontalCoord: p.Source.HorizontalCoord,
			Depth:           p.Source.Depth,
			Omega:           p.Source.Omega,
			DV:              p.Source.DV,
		},
		Nu:     p.Nu,
		Points: r.Len(),
		East:   coords.East,
		North:  coords.North,
		UE:     r.East,
		UN:     r.North,
		UV:     r.Vertical,
	}
}

func WriteJSON(w io.Writer, data ModelData) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// WriteCSV writes one "east,north,ue,un,uv" row per point.
func WriteCSV(w io.Writer, coords pcdm.HorizontalCoordinates, r pcdm.Results) error {
	if !coords.Consistent() || !r.Valid() || r.Len() != coords.Len() {
		return pcdm.ErrInvalidInputShape
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"east", "north", "ue", "un", "uv"}); err != nil {
		return err
	}
	for i := range coords.East {
		row := []string{
			strconv.FormatFloat(coords.East[i], 'g', -1, 64),
			strconv.FormatFloat(coords.North[i], 'g', -1, 64),
			strconv.FormatFloat(r.East[i], 'g', -1, 64),
			strconv.FormatFloat(r.North[i], 'g', -1, 64),
			strconv.FormatFloat(r.Vertical[i], 'g', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
