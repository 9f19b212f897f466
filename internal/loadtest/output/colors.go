package output

import (
	"github.com/fatih/color"
)

// ColorScheme defines the colors used for the different parts of a report
type ColorScheme struct {
	Title    *color.Color
	Rule     *color.Color
	Label    *color.Color
	Value    *color.Color
	Pass     *color.Color
	Warn     *color.Color
	Fail     *color.Color
	Dim      *color.Color
	Emphasis *color.Color
}

// DefaultColorScheme returns the default color scheme
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Title:    color.New(color.Bold),
		Rule:     color.New(color.FgCyan),
		Label:    color.New(color.Bold),
		Value:    color.New(color.FgCyan),
		Pass:     color.New(color.FgGreen, color.Bold),
		Warn:     color.New(color.FgYellow, color.Bold),
		Fail:     color.New(color.FgRed, color.Bold),
		Dim:      color.New(color.Faint),
		Emphasis: color.New(color.FgMagenta, color.Bold),
	}
}

// NoColorScheme returns a color scheme with all colors disabled
func NoColorScheme() *ColorScheme {
	scheme := DefaultColorScheme()
	scheme.each(func(c *color.Color) { c.DisableColor() })
	return scheme
}

// forceColors enables every color regardless of the global TTY detection
// done by the color package.
func (s *ColorScheme) forceColors() *ColorScheme {
	s.each(func(c *color.Color) { c.EnableColor() })
	return s
}

func (s *ColorScheme) each(fn func(*color.Color)) {
	for _, c := range []*color.Color{s.Title, s.Rule, s.Label, s.Value, s.Pass, s.Warn, s.Fail, s.Dim, s.Emphasis} {
		fn(c)
	}
}

// Symbols used in summaries.
const (
	iconPass = "✓"
	iconFail = "✗"
	iconWarn = "⚠"
)
