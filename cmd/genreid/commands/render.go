package commands

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/satindergrewal/genreid/internal/genre"
)

var (
	accent = lipgloss.Color("#00ff9f")
	dim    = lipgloss.Color("#6e7681")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	labelStyle = lipgloss.NewStyle().Width(14)
	barStyle   = lipgloss.NewStyle().Foreground(accent)
	helpStyle  = lipgloss.NewStyle().Foreground(dim)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1)
)

const barWidth = 24

// renderResult draws one prediction as a bordered card with a bar per
// ranked genre.
func renderResult(name string, res *genre.Result) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(res.Genre))
	b.WriteString(helpStyle.Render(fmt.Sprintf("  %s · %s · %d features", name, res.Source, res.FeaturesUsed)))
	for _, s := range res.Top3 {
		n := int(s.Prob*barWidth + 0.5)
		n = min(max(n, 0), barWidth)
		b.WriteString("\n")
		b.WriteString(labelStyle.Render(s.Genre))
		b.WriteString(barStyle.Render(strings.Repeat("█", n)))
		b.WriteString(helpStyle.Render(strings.Repeat("░", barWidth-n)))
		b.WriteString(fmt.Sprintf(" %5.1f%%", s.Prob*100))
	}
	return boxStyle.Render(b.String())
}
