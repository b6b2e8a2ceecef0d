package viz

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/pcdm/internal/analysis"
	"github.com/san-kum/pcdm/internal/pcdm"
)

// Heatmap renders values as a cols×rows block of colored cells, two
// characters wide each. The scale is symmetric around zero.
func Heatmap(coords pcdm.HorizontalCoordinates, values []float64, cols, rows int, theme Theme) (string, error) {
	raster, err := analysis.Rasterize(coords, values, cols, rows)
	if err != nil {
		return "", err
	}
	return RenderRaster(raster, theme), nil
}

func RenderRaster(r analysis.Raster, theme Theme) string {
	limit := math.Max(math.Abs(r.Min), math.Abs(r.Max))

	var sb strings.Builder
	for j, row := range r.Cells {
		for _, v := range row {
			if math.IsNaN(v) {
				sb.WriteString("  ")
				continue
			}
			cell := lipgloss.NewStyle().Background(ScaleColor(v, limit, theme))
			sb.WriteString(cell.Render("  "))
		}
		if j < len(r.Cells)-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// Legend renders the color scale with its end values.
func Legend(min, max float64, width int, theme Theme) string {
	limit := math.Max(math.Abs(min), math.Abs(max))
	if width < 2 {
		width = 2
	}

	var sb strings.Builder
	for i := 0; i < width; i++ {
		v := -limit + 2*limit*float64(i)/float64(width-1)
		sb.WriteString(lipgloss.NewStyle().Background(ScaleColor(v, limit, theme)).Render(" "))
	}
	return fmt.Sprintf("%s %s %s",
		Subtle.Render(fmt.Sprintf("%.3g", -limit)), sb.String(), Subtle.Render(fmt.Sprintf("%.3g", limit)))
}
