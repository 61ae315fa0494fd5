package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// Style definitions.
var (
	// TitleStyle for headers.
	TitleStyle = lipgloss.NewStyle().Bold(true)

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().Faint(true)

	// ErrorStyle for error messages.
	ErrorStyle = lipgloss.NewStyle().Bold(true)

	// BannerStyle for the market-closed notice.
	BannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("124")).
			Padding(0, 1)

	// PanelStyle frames the Trading View panel.
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(1, 2)

	// UpStyle and DownStyle color the sparkline's last move.
	UpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	DownStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// FormatPriceWithColor formats a price with indicator based on comparison with previous price.
func FormatPriceWithColor(current, previous decimal.Decimal, pipSize int) string {
	priceStr := current.StringFixed(int32(pipSize))

	if previous.IsZero() {
		return priceStr
	}

	if current.GreaterThan(previous) {
		return priceStr + " ▲"
	} else if current.LessThan(previous) {
		return priceStr + " ▼"
	}

	return priceStr
}

// Sparkline renders prices as a single row of block characters, scaled between their min and max.
func Sparkline(prices []decimal.Decimal) string {
	if len(prices) == 0 {
		return ""
	}

	lo, hi := prices[0], prices[0]
	for _, p := range prices[1:] {
		lo = decimal.Min(lo, p)
		hi = decimal.Max(hi, p)
	}

	span := hi.Sub(lo)
	top := decimal.NewFromInt(int64(len(sparkBlocks) - 1))

	var s strings.Builder
	for _, p := range prices {
		idx := 0
		if !span.IsZero() {
			idx = int(p.Sub(lo).Div(span).Mul(top).Round(0).IntPart())
		}
		s.WriteRune(sparkBlocks[idx])
	}

	line := s.String()
	n := len(prices)
	if n > 1 && prices[n-1].GreaterThan(prices[n-2]) {
		return UpStyle.Render(line)
	}
	if n > 1 && prices[n-1].LessThan(prices[n-2]) {
		return DownStyle.Render(line)
	}

	return line
}
