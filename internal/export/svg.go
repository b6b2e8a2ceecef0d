// Package export writes displacement fields to SVG, CSV and JSON.
package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/pcdm/internal/analysis"
	"github.com/san-kum/pcdm/internal/pcdm"
	"github.com/san-kum/pcdm/internal/viz"
)

// FieldToSVG draws values as a grid of colored cells on a cols×rows raster,
// with the source epicenter marked when source is non-nil.
func FieldToSVG(coords pcdm.HorizontalCoordinates, values []float64, cols, rows int, cellSize float64, theme viz.Theme, source *pcdm.PointCDMParameters) (string, error) {
	raster, err := analysis.Rasterize(coords, values, cols, rows)
	if err != nil {
		return "", err
	}

	width := float64(cols) * cellSize
	height := float64(rows) * cellSize
	limit := math.Max(math.Abs(raster.Min), math.Abs(raster.Max))

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<g shape-rendering="crispEdges">
`, width, height, width, height))

	for j, row := range raster.Cells {
		for k, v := range row {
			if math.IsNaN(v) {
				continue
			}
			sb.WriteString(fmt.Sprintf(`<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s"><title>%.6g</title></rect>
`, float64(k)*cellSize, float64(j)*cellSize, cellSize, cellSize, viz.ScaleColor(v, limit, theme), v))
		}
	}
	sb.WriteString("</g>\n")

	if source != nil {
		x, y, ok := project(raster, source.HorizontalCoord[0], source.HorizontalCoord[1], width, height)
		if ok {
			sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="%.1f" fill="none" stroke="%s" stroke-width="2"/>
`, x, y, cellSize, theme.Accent))
		}
	}

	sb.WriteString("</svg>")
	return sb.String(), nil
}

func project(r analysis.Raster, east, north, width, height float64) (x, y float64, ok bool) {
	if east < r.MinEast || east > r.MaxEast || north < r.MinNorth || north > r.MaxNorth {
		return 0, 0, false
	}
	rangeE := r.MaxEast - r.MinEast
	rangeN := r.MaxNorth - r.MinNorth
	if rangeE == 0 {
		rangeE = 1
	}
	if rangeN == 0 {
		rangeN = 1
	}
	return (east - r.MinEast) / rangeE * width, height - (north-r.MinNorth)/rangeN*height, true
}

// ProfileToSVG draws a displacement profile as a polyline.
func ProfileToSVG(east, values []float64, width, height int, strokeColor string) string {
	if len(east) < 2 || len(east) != len(values) {
		return ""
	}

	minX, maxX := east[0], east[0]
	minY, maxY := values[0], values[0]
	for i := range east {
		minX, maxX = math.Min(minX, east[i]), math.Max(maxX, east[i])
		minY, maxY = math.Min(minY, values[i]), math.Max(maxY, values[i])
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeY = maxY - minY

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`,
		width, height, width, height, strokeColor))

	for i := range east {
		x := (east[i] - minX) / rangeX * float64(width)
		y := float64(height) - (values[i]-minY)/rangeY*float64(height)
		if i == 0 {
			sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
		} else {
			sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
		}
	}

	sb.WriteString(`"/>
</svg>`)
	return sb.String()
}
