package viz

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/pcdm/internal/analysis"
	"github.com/san-kum/pcdm/internal/metrics"
	"github.com/san-kum/pcdm/internal/pcdm"
)

const (
	mapCols = 48
	mapRows = 20
)

var (
	mapStyle         = lipgloss.NewStyle().Padding(1, 2)
	statsStyle       = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2).Width(52)
	headerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	valueStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	activeParamStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	graphStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	helpStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

// param is one adjustable field of pcdm.Parameters.
type param struct {
	name string
	step float64
	get  func(*pcdm.Parameters) *float64
}

var params = []param{
	{"east", 0.25, func(p *pcdm.Parameters) *float64 { return &p.Source.HorizontalCoord[0] }},
	{"north", 0.25, func(p *pcdm.Parameters) *float64 { return &p.Source.HorizontalCoord[1] }},
	{"depth", 0.1, func(p *pcdm.Parameters) *float64 { return &p.Source.Depth }},
	{"omega x", 5, func(p *pcdm.Parameters) *float64 { return &p.Source.Omega[0] }},
	{"omega y", 5, func(p *pcdm.Parameters) *float64 { return &p.Source.Omega[1] }},
	{"omega z", 5, func(p *pcdm.Parameters) *float64 { return &p.Source.Omega[2] }},
	{"dv x", 1e-4, func(p *pcdm.Parameters) *float64 { return &p.Source.DV[0] }},
	{"dv y", 1e-4, func(p *pcdm.Parameters) *float64 { return &p.Source.DV[1] }},
	{"dv z", 1e-4, func(p *pcdm.Parameters) *float64 { return &p.Source.DV[2] }},
	{"nu", 0.01, func(p *pcdm.Parameters) *float64 { return &p.Nu }},
}

// Model is an interactive view of one source. Every parameter change runs the
// backend again.
type Model struct {
	backend   *pcdm.Backend
	recorder  *metrics.Recorder
	title     string
	coords    pcdm.HorizontalCoordinates
	params    pcdm.Parameters
	initial   pcdm.Parameters
	selected  int
	component int
	theme     Theme
	results   pcdm.Results
	summary   analysis.Summary
	elapsed   time.Duration
	showHelp  bool
}

// NewModel prepares a backend for coords and computes the initial field.
// recorder may be nil.
func NewModel(title string, coords pcdm.HorizontalCoordinates, p pcdm.Parameters, recorder *metrics.Recorder) Model {
	var opts []pcdm.Option
	if recorder != nil {
		opts = append(opts, pcdm.WithObserver(recorder.Observer()))
	}
	b := pcdm.New(opts...)
	b.SetHorizontalCoords(coords)

	m := Model{
		backend:   b,
		recorder:  recorder,
		title:     title,
		coords:    b.HorizontalCoords(),
		params:    p,
		initial:   p,
		component: analysis.Vertical,
		theme:     CurrentTheme,
	}
	m.recompute()
	return m
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "tab":
		m.selected = (m.selected + 1) % len(params)
	case "shift+tab":
		m.selected = (m.selected + len(params) - 1) % len(params)
	case "up", "k":
		m.adjust(1)
	case "down", "j":
		m.adjust(-1)
	case "c":
		m.component = (m.component + 1) % 3
	case "t":
		m.theme = NextTheme(m.theme.Name)
	case "r":
		m.params = m.initial
		m.recompute()
	case "?":
		m.showHelp = !m.showHelp
	}
	return m, nil
}

func (m *Model) adjust(dir float64) {
	p := params[m.selected]
	v := p.get(&m.params)
	*v += dir * p.step
	// drop accumulated rounding so repeated steps land on round values
	*v = math.Round(*v*1e9) / 1e9
	m.recompute()
}

func (m *Model) recompute() {
	m.backend.SetParameters(m.params)

	start := time.Now()
	var state pcdm.State
	if m.recorder != nil {
		state = m.recorder.RunBackend(m.backend)
	} else {
		state = m.backend.Run()
	}
	m.elapsed = time.Since(start)

	m.results = pcdm.Results{}
	if state != pcdm.StateResultsReady {
		return
	}
	r, _ := m.backend.Results()
	m.results = r
	if s, err := analysis.Summarize(m.coords, r); err == nil {
		m.summary = s
	}
}

// Parameters returns the parameters currently shown.
func (m Model) Parameters() pcdm.Parameters { return m.params }

func (m Model) State() pcdm.State { return m.backend.State() }

func (m Model) View() string {
	var left string
	if m.results.Valid() {
		values := m.results.Component(m.component)
		if heat, err := Heatmap(m.coords, values, mapCols, mapRows, m.theme); err == nil {
			stats := m.summary.Components[m.component]
			left = heat + "\n\n" + Legend(stats.Min, stats.Max, 24, m.theme)
		}
	} else {
		left = StatusInvalid.Render("no results")
	}
	mapView := mapStyle.Render(left)

	var s strings.Builder
	s.WriteString(headerStyle.Render(strings.ToUpper(m.title)) + "\n")

	state := m.backend.State()
	if state == pcdm.StateResultsReady {
		s.WriteString(StatusReady.Render(state.String()))
	} else {
		s.WriteString(StatusInvalid.Render(state.String()))
	}
	s.WriteString("\n")
	if err := m.backend.Err(); err != nil {
		s.WriteString(lipgloss.NewStyle().Foreground(m.theme.Error).Render(err.Error()) + "\n")
	}
	s.WriteString("\n")

	if m.results.Valid() {
		stats := m.summary.Components[m.component]
		s.WriteString(MetricLabel.Render("Component") + MetricValue.Render(stats.Name) + "\n")
		s.WriteString(MetricLabel.Render("Max") + MetricValue.Render(fmt.Sprintf("%.4g at (%.2f, %.2f)", stats.Max, stats.MaxAt.East, stats.MaxAt.North)) + "\n")
		s.WriteString(MetricLabel.Render("Min") + MetricValue.Render(fmt.Sprintf("%.4g at (%.2f, %.2f)", stats.Min, stats.MinAt.East, stats.MinAt.North)) + "\n")
		s.WriteString(MetricLabel.Render("Horizontal") + MetricValue.Render(fmt.Sprintf("%.4g", m.summary.MaxHorizontal)) + "\n")
		s.WriteString(MetricLabel.Render("Points") + MetricValue.Render(fmt.Sprintf("%d in %s", m.summary.Points, m.elapsed.Round(time.Microsecond))) + "\n")

		if prof, err := analysis.Profile(m.coords, m.results, m.params.Source.HorizontalCoord[1]); err == nil && len(prof.East) > 1 {
			chart := asciigraph.Plot(prof.Values[m.component], asciigraph.Height(5), asciigraph.Width(36),
				asciigraph.Caption(fmt.Sprintf("%s along north=%.2f", stats.Name, prof.North)))
			s.WriteString(graphStyle.Render(chart) + "\n")
		}
	}

	s.WriteString("\nPARAMETERS\n")
	for i, p := range params {
		v := *p.get(&m.params)
		line := fmt.Sprintf("%-8s %12.6g", p.name, v)
		if i == m.selected {
			s.WriteString(activeParamStyle.Render("> "+line) + "\n")
		} else {
			s.WriteString("  " + valueStyle.Render(line) + "\n")
		}
	}
	s.WriteString(helpStyle.Render(Separator(30) + "\n" + KeyHint.Render("TAB:Select ↑↓:Tune C:Component\nT:Theme R:Reset ?:Help Q:Quit")))

	mainView := lipgloss.JoinHorizontal(lipgloss.Top, mapView, statsStyle.Render(s.String()))
	if m.showHelp {
		return `
╔══════════════════════════════════════╗
║          KEYBOARD SHORTCUTS          ║
╠══════════════════════════════════════╣
║  Tab      - Next parameter           ║
║  Shift+Tab- Previous parameter       ║
║  Up/K     - Increase parameter       ║
║  Down/J   - Decrease parameter       ║
║  C        - Cycle component          ║
║  T        - Cycle themes             ║
║  R        - Reset parameters         ║
║  ?        - Toggle this help         ║
║  Q        - Quit                     ║
╚══════════════════════════════════════╝
` + "\n\n" + mainView
	}
	return mainView
}
