package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rxtech-lab/argo-charts/pkg/chart"
	"github.com/rxtech-lab/argo-charts/pkg/chartapi"
	"github.com/rxtech-lab/argo-charts/pkg/errors"
	"github.com/shopspring/decimal"
)

// Application states.
const (
	StateSymbolInput = iota
	StateGranularitySelect
	StateChart
)

// maxPoints bounds the points kept for the table and sparkline.
const maxPoints = 120

const defaultPipSize = 2

// Sender delivers messages to a running program; *tea.Program implements it.
type Sender interface {
	Send(msg tea.Msg)
}

// Streamer subscribes the chart through the mediator and forwards deliveries to the program.
type Streamer struct {
	mediator *chart.Mediator
	program  Sender
	count    int
}

// NewStreamer creates a streamer requesting count history points per subscription.
func NewStreamer(mediator *chart.Mediator, count int) *Streamer {
	return &Streamer{
		mediator: mediator,
		program:  nil,
		count:    count,
	}
}

// SetProgram sets the program that receives messages from the mediator's goroutines.
func (s *Streamer) SetProgram(p Sender) {
	s.program = p
}

// Subscribe returns a command that (re)subscribes the chart. Earlier streams are superseded by the mediator.
func (s *Streamer) Subscribe(symbol string, granularity int) tea.Cmd {
	return func() tea.Msg {
		if s == nil || s.mediator == nil || s.program == nil {
			return StreamErrorMsg{Err: errors.New(errors.ErrCodeNotConnected, "streamer is not connected")}
		}

		req := chartapi.NewTicksHistoryRequest(symbol, granularity, s.count, true)
		result := s.mediator.Subscribe(context.Background(), req, func(d chart.Data) {
			s.program.Send(ChartDataMsg{Symbol: symbol, Granularity: granularity, Data: d})
		})

		return SubscribedMsg{Symbol: symbol, Granularity: granularity, Result: result}
	}
}

// Stop returns a command that forgets the chart's live stream.
func (s *Streamer) Stop() tea.Cmd {
	return func() tea.Msg {
		if s != nil && s.mediator != nil {
			s.mediator.Stop()
		}

		return nil
	}
}

// Model is the main Bubble Tea model for the live chart.
type Model struct {
	state           int
	symbolInput     textinput.Model
	granularityList list.Model
	dataTable       table.Model
	symbol          string
	granularity     int
	points          []chartapi.Point
	pipSize         int
	subscriptionID  string
	marketClosed    bool
	tradingView     bool
	tradingViewURL  string
	err             error
	width           int
	height          int

	streamer *Streamer
}

// NewModel creates a new Model with initial state.
func NewModel(streamer *Streamer, tradingViewURL string) Model {
	return Model{
		state:           StateSymbolInput,
		symbolInput:     NewSymbolInput(),
		granularityList: NewGranularityList(),
		dataTable:       NewDataTable(),
		pipSize:         defaultPipSize,
		tradingViewURL:  tradingViewURL,
		streamer:        streamer,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			// Only quit on 'q' if not in text input mode
			if m.state != StateSymbolInput {
				return m, tea.Quit
			}
		case "esc":
			return m.handleEsc()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.granularityList.SetSize(msg.Width, msg.Height-4)
		m.dataTable.SetWidth(msg.Width)
		m.dataTable.SetHeight(max(msg.Height-10, 3))

		return m, nil

	case ChartDataMsg:
		if msg.Symbol != m.symbol || msg.Granularity != m.granularity || m.state != StateChart {
			return m, nil
		}

		return m.applyData(msg.Data), nil

	case SubscribedMsg:
		if msg.Symbol != m.symbol || msg.Granularity != m.granularity {
			return m, nil
		}

		switch msg.Result.Kind {
		case chart.ResultStreaming:
			if id := msg.Result.SubscriptionID; id.IsSome() {
				m.subscriptionID = id.Unwrap()
			}
		case chart.ResultMarketClosed:
			m.marketClosed = true
		case chart.ResultFailed, chart.ResultInvalid:
			m.err = msg.Result.Err
		case chart.ResultSnapshot, chart.ResultStale, chart.ResultDisposed:
		}

		return m, nil

	case StreamErrorMsg:
		m.err = msg.Err

		return m, nil
	}

	// Delegate to state-specific update
	switch m.state {
	case StateSymbolInput:
		return m.updateSymbolInput(msg)
	case StateGranularitySelect:
		return m.updateGranularitySelect(msg)
	case StateChart:
		return m.updateChart(msg)
	}

	return m, nil
}

func (m Model) handleEsc() (tea.Model, tea.Cmd) {
	switch m.state {
	case StateGranularitySelect:
		m.state = StateSymbolInput
		m.symbolInput.Focus()

		return m, textinput.Blink
	case StateChart:
		m = m.resetChart()
		m.symbol = ""
		m.granularity = 0
		m.tradingView = false
		m.symbolInput.Reset()
		m.symbolInput.Focus()
		m.state = StateSymbolInput

		return m, tea.Batch(textinput.Blink, m.streamer.Stop())
	}

	return m, nil
}

func (m Model) updateSymbolInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		if symbol, valid := ParseSymbol(m.symbolInput.Value()); valid {
			m.symbol = symbol
			m.state = StateGranularitySelect
			m.symbolInput.Blur()

			return m, nil
		}
	}

	var cmd tea.Cmd
	m.symbolInput, cmd = m.symbolInput.Update(msg)

	return m, cmd
}

func (m Model) updateGranularitySelect(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		if item, ok := m.granularityList.SelectedItem().(listItem); ok {
			m = m.resetChart()
			m.granularity = item.granularity
			m.state = StateChart

			return m, m.streamer.Subscribe(m.symbol, m.granularity)
		}
	}

	var cmd tea.Cmd
	m.granularityList, cmd = m.granularityList.Update(msg)

	return m, cmd
}

func (m Model) updateChart(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "t" {
		m.tradingView = !m.tradingView

		return m, nil
	}

	var cmd tea.Cmd
	m.dataTable, cmd = m.dataTable.Update(msg)

	return m, cmd
}

func (m Model) resetChart() Model {
	m.points = nil
	m.pipSize = defaultPipSize
	m.subscriptionID = ""
	m.marketClosed = false
	m.err = nil
	m.dataTable = UpdateTableRows(m.dataTable, nil, m.pipSize)

	return m
}

// applyData folds a delivery into the chart's points.
func (m Model) applyData(d chart.Data) Model {
	if d.Empty {
		m.marketClosed = true
		m.points = nil
		m.dataTable = UpdateTableRows(m.dataTable, nil, m.pipSize)

		return m
	}

	resp := d.Response
	switch {
	case resp.Tick != nil:
		m.pipSize = resp.Tick.PipSize
	case resp.OHLC != nil:
		m.pipSize = resp.OHLC.PipSize
	}

	incoming := resp.Points()
	if d.Reason == chart.ReasonSnapshot {
		m.points = incoming
	} else {
		for _, p := range incoming {
			// an ohlc frame updates the open candle until the next one starts
			if n := len(m.points); n > 0 && resp.OHLC != nil && m.points[n-1].Time.Equal(p.Time) {
				m.points[n-1] = p

				continue
			}
			m.points = append(m.points, p)
		}
	}

	if len(m.points) > maxPoints {
		m.points = append([]chartapi.Point(nil), m.points[len(m.points)-maxPoints:]...)
	}

	m.marketClosed = false
	m.dataTable = UpdateTableRows(m.dataTable, m.points, m.pipSize)

	return m
}

func (m Model) closes() []decimal.Decimal {
	width := len(m.points)
	if m.width > 4 && m.width-4 < width {
		width = m.width - 4
	}

	closes := make([]decimal.Decimal, 0, width)
	for _, p := range m.points[len(m.points)-width:] {
		closes = append(closes, p.Close)
	}

	return closes
}

// View implements tea.Model.
func (m Model) View() string {
	var s strings.Builder

	switch m.state {
	case StateSymbolInput:
		s.WriteString(TitleStyle.Render("Enter Symbol"))
		s.WriteString("\n\n")
		s.WriteString("Enter a symbol to chart (e.g., R_100, frxEURUSD):\n\n")
		s.WriteString(m.symbolInput.View())
		s.WriteString("\n\n")
		s.WriteString(HelpStyle.Render("Press Enter to confirm, ctrl+c to quit"))

	case StateGranularitySelect:
		s.WriteString(TitleStyle.Render(fmt.Sprintf("Select Granularity for %s", m.symbol)))
		s.WriteString("\n\n")
		s.WriteString(m.granularityList.View())
		s.WriteString("\n")
		s.WriteString(HelpStyle.Render("Press Enter to select, Esc to go back"))

	case StateChart:
		if m.tradingView {
			s.WriteString(TitleStyle.Render("Trading View"))
			s.WriteString("\n\n")
			s.WriteString(PanelStyle.Render(fmt.Sprintf("%s\n\nOpen this URL in a browser for the full chart.", m.tradingViewURL)))
			s.WriteString("\n\n")
			s.WriteString(HelpStyle.Render("t: Charts | Esc: change symbol | q: quit"))

			break
		}

		s.WriteString(TitleStyle.Render(fmt.Sprintf("Live Chart - %s (%s)", m.symbol, GranularityName(m.granularity))))
		s.WriteString("\n\n")

		if m.marketClosed {
			s.WriteString(BannerStyle.Render("Market is closed"))
			s.WriteString("\n\n")
		}

		if m.err != nil {
			s.WriteString(ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			s.WriteString("\n\n")
		}

		switch {
		case len(m.points) > 0:
			s.WriteString(Sparkline(m.closes()))
			s.WriteString("\n\n")
			s.WriteString(m.dataTable.View())
		case !m.marketClosed:
			s.WriteString("Waiting for data...\n")
		}

		s.WriteString("\n")
		s.WriteString(HelpStyle.Render("t: Trading View | Esc: change symbol | q: quit"))
	}

	return s.String()
}
