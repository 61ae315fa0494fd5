package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/rxtech-lab/argo-charts/internal/config"
	"github.com/rxtech-lab/argo-charts/pkg/chart"
	"github.com/rxtech-lab/argo-charts/pkg/chartapi"
	"github.com/rxtech-lab/argo-charts/pkg/errors"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

func output(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}

	return os.Stdout
}

// viewAction runs the interactive chart.
func viewAction(ctx context.Context, cmd *cli.Command) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	streamer := NewStreamer(s.mediator, s.config.Chart.Count)
	p := tea.NewProgram(NewModel(streamer, s.config.Chart.TradingViewURL), tea.WithAltScreen(), tea.WithContext(ctx))
	streamer.SetProgram(p)

	g, gctx := errgroup.WithContext(ctx)
	if addr := cmd.String("metrics-addr"); addr != "" {
		g.Go(func() error { return s.serveMetrics(gctx, addr) })
	}

	g.Go(func() error {
		defer cancel()

		_, err := p.Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}

		return err
	})

	return g.Wait()
}

// streamAction prints every delivery of one stream until interrupted.
func streamAction(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	req := streamRequest(cmd, s.config)
	out := output(cmd)

	g, gctx := errgroup.WithContext(ctx)
	if addr := cmd.String("metrics-addr"); addr != "" {
		g.Go(func() error { return s.serveMetrics(gctx, addr) })
	}

	g.Go(func() error {
		defer cancel()

		result := s.mediator.Subscribe(gctx, req, func(d chart.Data) {
			fmt.Fprintln(out, DescribeData(d))
		})

		switch result.Kind {
		case chart.ResultStreaming:
			<-gctx.Done()

			return nil
		case chart.ResultFailed, chart.ResultInvalid:
			return result.Err
		case chart.ResultSnapshot, chart.ResultMarketClosed, chart.ResultStale, chart.ResultDisposed:
		}

		return nil
	})

	return g.Wait()
}

// streamRequest starts from the configured chart and applies the stream flags.
func streamRequest(cmd *cli.Command, cfg *config.Config) chartapi.TicksHistoryRequest {
	symbol := cfg.Chart.Symbol
	if cmd.IsSet("symbol") {
		symbol = cmd.String("symbol")
	}

	granularity := cfg.Chart.Granularity
	if cmd.IsSet("granularity") {
		granularity = int(cmd.Int("granularity"))
	}

	count := cfg.Chart.Count
	if cmd.IsSet("count") {
		count = int(cmd.Int("count"))
	}

	req := chartapi.NewTicksHistoryRequest(symbol, granularity, count, !cmd.Bool("once"))
	if cmd.IsSet("style") {
		req.Style = chartapi.Style(cmd.String("style"))
	}

	return req
}

// DescribeData renders one delivery as a log line.
func DescribeData(d chart.Data) string {
	if d.Empty {
		return "market closed: no data"
	}

	resp := d.Response
	points := resp.Points()

	switch {
	case d.Reason == chart.ReasonSnapshot:
		line := fmt.Sprintf("snapshot %s points=%d", resp.MsgType, len(points))
		if n := len(points); n > 0 {
			line += fmt.Sprintf(" last=%s at=%s", points[n-1].Close, points[n-1].Time.Format(time.RFC3339))
		}
		if id := resp.SubscriptionID(); id.IsSome() {
			line += " subscription=" + id.Unwrap()
		}

		return line
	case resp.Tick != nil:
		return fmt.Sprintf("tick %s %s quote=%s",
			resp.Tick.Symbol, time.Unix(resp.Tick.Epoch, 0).UTC().Format(time.RFC3339), resp.Tick.Quote)
	case resp.OHLC != nil:
		return fmt.Sprintf("ohlc %s %s o=%s h=%s l=%s c=%s",
			resp.OHLC.Symbol, time.Unix(resp.OHLC.OpenTime, 0).UTC().Format(time.RFC3339),
			resp.OHLC.Open, resp.OHLC.High, resp.OHLC.Low, resp.OHLC.Close)
	}

	return "update " + resp.MsgType
}

// symbolsAction lists the active symbols.
func symbolsAction(ctx context.Context, cmd *cli.Command) error {
	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	resp, err := s.mediator.FetchOnce(ctx, chartapi.ActiveSymbolsRequest{
		ActiveSymbols: "brief",
		ProductType:   cmd.String("product-type"),
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(output(cmd), SymbolsTable(resp.ActiveSymbols))

	return nil
}

// SymbolsTable renders active symbols.
func SymbolsTable(symbols []chartapi.ActiveSymbol) string {
	rows := make([][]string, 0, len(symbols))
	for _, sym := range symbols {
		open := "closed"
		if sym.ExchangeIsOpen == 1 {
			open = "open"
		}

		rows = append(rows, []string{sym.Symbol, sym.DisplayName, sym.MarketDisplayName, open})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Symbol", "Name", "Market", "Exchange").
		Rows(rows...).
		String()
}

// timeAction prints the server time.
func timeAction(ctx context.Context, cmd *cli.Command) error {
	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	resp, err := s.mediator.FetchOnce(ctx, chartapi.ServerTimeRequest{Time: 1})
	if err != nil {
		return err
	}

	fmt.Fprintln(output(cmd), time.Unix(resp.Time, 0).UTC().Format(time.RFC3339))

	return nil
}

// tradingTimesAction prints opening and closing times for a date.
func tradingTimesAction(ctx context.Context, cmd *cli.Command) error {
	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	resp, err := s.mediator.FetchOnce(ctx, chartapi.TradingTimesRequest{TradingTimes: cmd.String("date")})
	if err != nil {
		return err
	}

	fmt.Fprintln(output(cmd), TradingTimesTable(resp.TradingTimes))

	return nil
}

// TradingTimesTable renders one row per symbol.
func TradingTimesTable(times *chartapi.TradingTimes) string {
	rows := make([][]string, 0)
	if times != nil {
		for _, market := range times.Markets {
			for _, submarket := range market.Submarkets {
				for _, sym := range submarket.Symbols {
					rows = append(rows, []string{
						market.Name,
						submarket.Name,
						sym.Symbol,
						strings.Join(sym.Times.Open, ","),
						strings.Join(sym.Times.Close, ","),
					})
				}
			}
		}
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Market", "Submarket", "Symbol", "Open", "Close").
		Rows(rows...).
		String()
}

// schemaAction prints the JSON schema of the config file.
func schemaAction(_ context.Context, cmd *cli.Command) error {
	schema, err := config.Schema()
	if err != nil {
		return err
	}

	fmt.Fprintln(output(cmd), schema)

	return nil
}
