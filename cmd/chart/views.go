package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	"github.com/rxtech-lab/argo-charts/pkg/chartapi"
)

// listItem implements list.Item interface for the granularity list.
type listItem struct {
	name        string
	description string
	granularity int
}

func (i listItem) Title() string       { return i.name }
func (i listItem) Description() string { return i.description }
func (i listItem) FilterValue() string { return i.name }

// NewGranularityList creates a new list for granularity selection.
func NewGranularityList() list.Model {
	items := []list.Item{
		listItem{name: "ticks", description: "Every tick", granularity: 0},
		listItem{name: "1m", description: "1 minute candles", granularity: 60},
		listItem{name: "2m", description: "2 minute candles", granularity: 120},
		listItem{name: "3m", description: "3 minute candles", granularity: 180},
		listItem{name: "5m", description: "5 minute candles", granularity: 300},
		listItem{name: "10m", description: "10 minute candles", granularity: 600},
		listItem{name: "15m", description: "15 minute candles", granularity: 900},
		listItem{name: "30m", description: "30 minute candles", granularity: 1800},
		listItem{name: "1h", description: "1 hour candles", granularity: 3600},
		listItem{name: "2h", description: "2 hour candles", granularity: 7200},
		listItem{name: "4h", description: "4 hour candles", granularity: 14400},
		listItem{name: "8h", description: "8 hour candles", granularity: 28800},
		listItem{name: "1d", description: "1 day candles", granularity: 86400},
	}

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true

	l := list.New(items, delegate, 0, 0)
	l.Title = "Select Granularity"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)

	return l
}

// GranularityName is the list label of a granularity in seconds.
func GranularityName(granularity int) string {
	if granularity == 0 {
		return "ticks"
	}

	switch {
	case granularity%86400 == 0:
		return fmt.Sprintf("%dd", granularity/86400)
	case granularity%3600 == 0:
		return fmt.Sprintf("%dh", granularity/3600)
	default:
		return fmt.Sprintf("%dm", granularity/60)
	}
}

// NewSymbolInput creates a new text input for symbol entry.
func NewSymbolInput() textinput.Model {
	ti := textinput.New()
	ti.Placeholder = "R_100"
	ti.Focus()
	ti.CharLimit = 32
	ti.Width = 40
	ti.Prompt = "> "

	return ti
}

// ParseSymbol trims the input. Symbols are case sensitive (R_100, frxEURUSD) and contain no spaces.
func ParseSymbol(input string) (string, bool) {
	s := strings.TrimSpace(input)
	if s == "" || strings.ContainsAny(s, " \t,") {
		return "", false
	}

	return s, true
}

// NewDataTable creates a new table for the latest points.
func NewDataTable() table.Model {
	columns := []table.Column{
		{Title: "Time", Width: 10},
		{Title: "Close", Width: 16},
		{Title: "Open", Width: 14},
		{Title: "High", Width: 14},
		{Title: "Low", Width: 14},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)

	t.SetStyles(s)

	return t
}

// UpdateTableRows shows the newest points first.
func UpdateTableRows(t table.Model, points []chartapi.Point, pipSize int) table.Model {
	rows := make([]table.Row, 0, len(points))

	for i := len(points) - 1; i >= 0; i-- {
		p := points[i]

		prev := p.Close
		if i > 0 {
			prev = points[i-1].Close
		}

		rows = append(rows, table.Row{
			p.Time.Format("15:04:05"),
			FormatPriceWithColor(p.Close, prev, pipSize),
			p.Open.StringFixed(int32(pipSize)),
			p.High.StringFixed(int32(pipSize)),
			p.Low.StringFixed(int32(pipSize)),
		})
	}

	t.SetRows(rows)

	return t
}
