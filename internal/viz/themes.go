package viz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var ErrUnknownTheme = errors.New("viz: unknown theme")

// Theme defines the colors of the TUI and the diverging scale of field maps.
type Theme struct {
	Name      string
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color
	Text      lipgloss.Color
	Muted     lipgloss.Color
	Error     lipgloss.Color
	// Negative, Zero and Positive anchor the field color scale.
	Negative lipgloss.Color
	Zero     lipgloss.Color
	Positive lipgloss.Color
}

var (
	ThemeBalance = Theme{
		Name:      "balance",
		Primary:   lipgloss.Color("#00ffff"),
		Secondary: lipgloss.Color("#ff00ff"),
		Accent:    lipgloss.Color("#ffff00"),
		Text:      lipgloss.Color("#ffffff"),
		Muted:     lipgloss.Color("#666688"),
		Error:     lipgloss.Color("#ff4444"),
		Negative:  lipgloss.Color("#2166ac"),
		Zero:      lipgloss.Color("#f7f7f7"),
		Positive:  lipgloss.Color("#b2182b"),
	}

	ThemeTopo = Theme{
		Name:      "topo",
		Primary:   lipgloss.Color("#88cc88"),
		Secondary: lipgloss.Color("#cc9955"),
		Accent:    lipgloss.Color("#ffd700"),
		Text:      lipgloss.Color("#f0f0e0"),
		Muted:     lipgloss.Color("#777766"),
		Error:     lipgloss.Color("#ff4444"),
		Negative:  lipgloss.Color("#1b7837"),
		Zero:      lipgloss.Color("#f7f7f7"),
		Positive:  lipgloss.Color("#762a83"),
	}

	ThemeMinimal = Theme{
		Name:      "minimal",
		Primary:   lipgloss.Color("#ffffff"),
		Secondary: lipgloss.Color("#cccccc"),
		Accent:    lipgloss.Color("#0088ff"),
		Text:      lipgloss.Color("#ffffff"),
		Muted:     lipgloss.Color("#888888"),
		Error:     lipgloss.Color("#ff0000"),
		Negative:  lipgloss.Color("#000000"),
		Zero:      lipgloss.Color("#808080"),
		Positive:  lipgloss.Color("#ffffff"),
	}

	ThemeSunset = Theme{
		Name:      "sunset",
		Primary:   lipgloss.Color("#ff6b6b"),
		Secondary: lipgloss.Color("#feca57"),
		Accent:    lipgloss.Color("#ff9ff3"),
		Text:      lipgloss.Color("#fff5f5"),
		Muted:     lipgloss.Color("#8b6b8c"),
		Error:     lipgloss.Color("#ff4757"),
		Negative:  lipgloss.Color("#5e3c99"),
		Zero:      lipgloss.Color("#f7f7f7"),
		Positive:  lipgloss.Color("#e66101"),
	}

	CurrentTheme = ThemeBalance

	Themes = []Theme{
		ThemeBalance,
		ThemeTopo,
		ThemeMinimal,
		ThemeSunset,
	}
)

// GetTheme returns a theme by name, falling back to the default.
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return ThemeBalance
}

// SetTheme makes the named theme current. Unknown names leave it unchanged.
func SetTheme(name string) error {
	for _, n := range ThemeNames() {
		if n == name {
			CurrentTheme = GetTheme(name)
			return nil
		}
	}
	return fmt.Errorf("%w: %s (available: %s)", ErrUnknownTheme, name, strings.Join(ThemeNames(), ", "))
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}

// NextTheme returns the theme after name in Themes.
func NextTheme(name string) Theme {
	for i, t := range Themes {
		if t.Name == name {
			return Themes[(i+1)%len(Themes)]
		}
	}
	return ThemeBalance
}
