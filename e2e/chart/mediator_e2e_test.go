package chart_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rxtech-lab/argo-charts/e2e/mockserver"
	"github.com/rxtech-lab/argo-charts/internal/logger"
	"github.com/rxtech-lab/argo-charts/pkg/chart"
	"github.com/rxtech-lab/argo-charts/pkg/chartapi"
	"github.com/rxtech-lab/argo-charts/pkg/transport"
	"github.com/stretchr/testify/suite"
)

// MediatorE2ETestSuite runs the mediator over a real websocket against the mock tick server.
type MediatorE2ETestSuite struct {
	suite.Suite
	server   *mockserver.MockTickServer
	client   *transport.WebSocketClient
	mediator *chart.Mediator
}

func TestMediatorE2ESuite(t *testing.T) {
	suite.Run(t, new(MediatorE2ETestSuite))
}

func (s *MediatorE2ETestSuite) SetupTest() {
	s.server = mockserver.NewMockTickServer(mockserver.ServerConfig{
		Symbols:        []string{"R_100", "R_50"},
		ClosedSymbols:  []string{"frxEURUSD"},
		ResponseDelays: map[string]time.Duration{"R_50": 300 * time.Millisecond},
		StreamInterval: 20 * time.Millisecond,
		Seed:           12345,
	})
	s.Require().NoError(s.server.Start(":0"))

	opts := transport.DefaultOptions(s.server.WebSocketURL(), 1089)
	opts.KeepaliveInterval = 0
	opts.RequestTimeout = 5 * time.Second

	client, err := transport.NewWebSocketClient(opts, logger.NewNopLogger())
	s.Require().NoError(err)
	s.Require().NoError(client.Connect(context.Background()))
	s.client = client

	s.mediator = chart.NewMediator(client, logger.NewNopLogger(), chart.NewMetrics(prometheus.NewRegistry()))
}

func (s *MediatorE2ETestSuite) TearDownTest() {
	s.mediator.Dispose()
	_ = s.client.Close()
	_ = s.server.Stop()
}

type collector struct {
	mu   sync.Mutex
	data []chart.Data
}

func (c *collector) onData(d chart.Data) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = append(c.data, d)
}

func (c *collector) snapshot() []chart.Data {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]chart.Data(nil), c.data...)
}

func (s *MediatorE2ETestSuite) TestTickStreamLifecycle() {
	got := &collector{}

	result := s.mediator.Subscribe(context.Background(), chartapi.NewTicksHistoryRequest("R_100", 0, 50, true), got.onData)
	s.Require().Equal(chart.ResultStreaming, result.Kind)
	s.Require().True(result.SubscriptionID.IsSome())
	id := result.SubscriptionID.Unwrap()

	s.Eventually(func() bool { return len(got.snapshot()) >= 4 }, 2*time.Second, 10*time.Millisecond)

	data := got.snapshot()
	s.Equal(chart.ReasonSnapshot, data[0].Reason)
	s.Len(data[0].Response.History.Prices, 50)
	for _, d := range data[1:] {
		s.Equal(chart.ReasonUpdate, d.Reason)
		s.Equal("tick", d.Response.MsgType)
		s.Equal(id, d.Response.SubscriptionID().Unwrap())
	}

	s.mediator.Dispose()
	s.Eventually(func() bool { return s.server.ActiveStreams() == 0 }, 2*time.Second, 10*time.Millisecond)
	s.Equal(1, s.server.RequestCount("forget_all"))

	count := len(got.snapshot())
	time.Sleep(100 * time.Millisecond)
	s.Len(got.snapshot(), count)
}

func (s *MediatorE2ETestSuite) TestCandleStream() {
	got := &collector{}

	result := s.mediator.Subscribe(context.Background(), chartapi.NewTicksHistoryRequest("R_100", 60, 30, true), got.onData)
	s.Require().Equal(chart.ResultStreaming, result.Kind)

	s.Eventually(func() bool { return len(got.snapshot()) >= 2 }, 2*time.Second, 10*time.Millisecond)

	data := got.snapshot()
	s.Len(data[0].Response.Candles, 30)
	s.Equal("ohlc", data[1].Response.MsgType)
}

func (s *MediatorE2ETestSuite) TestSwitchingSymbolForgetsPreviousStream() {
	first := &collector{}
	second := &collector{}

	s.Require().Equal(chart.ResultStreaming, s.mediator.Subscribe(context.Background(), chartapi.NewTicksHistoryRequest("R_100", 0, 10, true), first.onData).Kind)
	s.Require().Equal(chart.ResultStreaming, s.mediator.Subscribe(context.Background(), chartapi.NewTicksHistoryRequest("R_50", 0, 10, true), second.onData).Kind)

	s.Eventually(func() bool { return s.server.RequestCount("forget") == 1 }, 2*time.Second, 10*time.Millisecond)
	s.Eventually(func() bool { return s.server.ActiveStreams() == 1 }, 2*time.Second, 10*time.Millisecond)

	frozen := len(first.snapshot())
	s.Eventually(func() bool { return len(second.snapshot()) >= 3 }, 2*time.Second, 10*time.Millisecond)
	s.Len(first.snapshot(), frozen)

	for _, d := range second.snapshot()[1:] {
		s.Equal("R_50", d.Response.Tick.Symbol)
	}
}

func (s *MediatorE2ETestSuite) TestSlowResponseIsSuperseded() {
	slow := &collector{}
	fast := &collector{}
	slowResult := make(chan chart.Result, 1)

	go func() {
		slowResult <- s.mediator.Subscribe(context.Background(), chartapi.NewTicksHistoryRequest("R_50", 0, 10, true), slow.onData)
	}()
	s.Require().Eventually(func() bool { return s.server.RequestCount("ticks_history") == 1 }, 2*time.Second, 5*time.Millisecond)

	s.Equal(chart.ResultStreaming, s.mediator.Subscribe(context.Background(), chartapi.NewTicksHistoryRequest("R_100", 0, 10, true), fast.onData).Kind)

	select {
	case result := <-slowResult:
		s.Equal(chart.ResultStale, result.Kind)
	case <-time.After(3 * time.Second):
		s.Fail("slow subscribe did not return")
	}

	s.Empty(slow.snapshot())
	s.Eventually(func() bool { return s.server.ActiveStreams() == 1 }, 2*time.Second, 10*time.Millisecond)
	s.Eventually(func() bool { return len(fast.snapshot()) >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func (s *MediatorE2ETestSuite) TestCancelledSubscribeLeavesNoStream() {
	abandoned := &collector{}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result := s.mediator.Subscribe(ctx, chartapi.NewTicksHistoryRequest("R_50", 0, 10, true), abandoned.onData)
	s.Require().Equal(chart.ResultFailed, result.Kind)
	s.ErrorIs(result.Err, context.DeadlineExceeded)

	// the stream opened by the late answer is forgotten as soon as it arrives
	s.Eventually(func() bool { return s.server.RequestCount("forget") == 1 }, 2*time.Second, 10*time.Millisecond)
	s.Eventually(func() bool { return s.server.ActiveStreams() == 0 }, 2*time.Second, 10*time.Millisecond)
	s.Equal(0, s.mediator.Registry().Len())

	next := &collector{}
	s.Equal(chart.ResultStreaming, s.mediator.Subscribe(context.Background(), chartapi.NewTicksHistoryRequest("R_100", 0, 10, true), next.onData).Kind)
	s.Eventually(func() bool { return len(next.snapshot()) >= 2 }, 2*time.Second, 10*time.Millisecond)
	s.Equal(1, s.server.ActiveStreams())
	s.Empty(abandoned.snapshot())
}

func (s *MediatorE2ETestSuite) TestMarketClosed() {
	got := &collector{}

	result := s.mediator.Subscribe(context.Background(), chartapi.NewTicksHistoryRequest("frxEURUSD", 0, 10, true), got.onData)

	s.Equal(chart.ResultMarketClosed, result.Kind)
	s.Require().Len(got.snapshot(), 1)
	s.True(got.snapshot()[0].Empty)
	s.Equal(chart.ReasonMarketClosed, got.snapshot()[0].Reason)
	s.Equal(0, s.mediator.Registry().Len())
}

func (s *MediatorE2ETestSuite) TestFetchOnce() {
	resp, err := s.mediator.FetchOnce(context.Background(), chartapi.ActiveSymbolsRequest{ActiveSymbols: "brief"})
	s.Require().NoError(err)
	s.Len(resp.ActiveSymbols, 3)

	resp, err = s.mediator.FetchOnce(context.Background(), chartapi.NewTicksHistoryRequest("R_100", 0, 5, false))
	s.Require().NoError(err)
	s.Len(resp.History.Prices, 5)
	s.Equal(0, s.server.ActiveStreams())
}
