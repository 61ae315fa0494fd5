// Package mockserver provides a mock tick API server for testing.
// It speaks the websocket JSON protocol of the real API: ticks_history with
// optional subscription, forget, forget_all, active_symbols, time,
// trading_times and ping.
package mockserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rxtech-lab/argo-charts/internal/logger"
	"github.com/rxtech-lab/argo-charts/mocks"
	"github.com/rxtech-lab/argo-charts/pkg/chartapi"
	"go.uber.org/zap"
)

// WebSocketPath is the route the API is served on.
const WebSocketPath = "/websockets/v3"

// ServerConfig holds configuration for the mock server.
type ServerConfig struct {
	// Symbols are the open markets the server knows
	Symbols []string
	// ClosedSymbols answer ticks_history with MarketIsClosed
	ClosedSymbols []string
	// ResponseDelays holds back the ticks_history response of a symbol
	ResponseDelays map[string]time.Duration
	// StreamInterval is the interval between push frames
	StreamInterval time.Duration
	// Seed makes generated prices reproducible
	Seed int64
	// Logger defaults to a no-op logger
	Logger *logger.Logger
}

// MockTickServer is an in-process tick API.
type MockTickServer struct {
	mu sync.RWMutex

	httpServer *http.Server
	listener   net.Listener
	upgrader   websocket.Upgrader
	logger     *logger.Logger

	config    ServerConfig
	open      map[string]bool
	closed    map[string]bool
	generator *mocks.DataGenerator
	genMu     sync.Mutex

	sessions map[*session]struct{}
	requests map[string]int
}

// NewMockTickServer creates a new mock server.
func NewMockTickServer(config ServerConfig) *MockTickServer {
	if config.StreamInterval <= 0 {
		config.StreamInterval = 50 * time.Millisecond
	}

	if config.Logger == nil {
		config.Logger = logger.NewNopLogger()
	}

	server := &MockTickServer{
		mu:         sync.RWMutex{},
		httpServer: nil,
		listener:   nil,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		logger:    config.Logger.Named("mockserver"),
		config:    config,
		open:      make(map[string]bool),
		closed:    make(map[string]bool),
		generator: mocks.NewDataGenerator(config.Seed),
		genMu:     sync.Mutex{},
		sessions:  make(map[*session]struct{}),
		requests:  make(map[string]int),
	}

	for _, symbol := range config.Symbols {
		server.open[symbol] = true
	}

	for _, symbol := range config.ClosedSymbols {
		server.closed[symbol] = true
	}

	return server
}

// Start starts the mock server on the given address.
// Use ":0" to get a random available port.
func (s *MockTickServer) Start(address string) error {
	if address == "" {
		address = ":0"
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	s.listener = listener

	router := mux.NewRouter()
	router.HandleFunc(WebSocketPath, s.handleWebSocket)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop closes every connection and shuts the server down.
func (s *MockTickServer) Stop() error {
	s.mu.Lock()
	sessions := make([]*session, 0, len(s.sessions))
	for sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// Address returns the address the server is listening on.
func (s *MockTickServer) Address() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// WebSocketURL returns the endpoint clients dial.
func (s *MockTickServer) WebSocketURL() string {
	return "ws://" + s.Address() + WebSocketPath
}

// ActiveStreams is the number of live subscriptions across all connections.
func (s *MockTickServer) ActiveStreams() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for sess := range s.sessions {
		total += sess.streamCount()
	}

	return total
}

// RequestCount is how many requests of msgType the server received.
func (s *MockTickServer) RequestCount(msgType string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.requests[msgType]
}

// SetMarketClosed opens or closes a symbol's market.
func (s *MockTickServer) SetMarketClosed(symbol string, closed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed[symbol] = closed
	if !closed {
		s.open[symbol] = true
	}
}

func (s *MockTickServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("app_id") == "" {
		http.Error(w, "app_id is required", http.StatusUnauthorized)

		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	sess := newSession(s, conn)

	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.sessions, sess)
		s.mu.Unlock()
		sess.close()
	}()

	sess.serve()
}

func (s *MockTickServer) countRequest(msgType string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests[msgType]++
}

func (s *MockTickServer) marketState(symbol string) (known bool, closed bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.open[symbol] || s.closed[symbol], s.closed[symbol]
}

func (s *MockTickServer) delay(symbol string) time.Duration {
	return s.config.ResponseDelays[symbol]
}

func (s *MockTickServer) generatorConfig(symbol string, granularity int, count int) mocks.GeneratorConfig {
	config := mocks.DefaultConfig()
	config.Symbol = symbol
	config.Count = count
	config.Interval = time.Second
	if granularity > 0 {
		config.Interval = time.Duration(granularity) * time.Second
	}
	config.StartTime = time.Now().Add(-time.Duration(count) * config.Interval).Truncate(config.Interval)

	return config
}

// session is one client connection and its streams.
type session struct {
	server *MockTickServer
	conn   *websocket.Conn

	writeMu sync.Mutex
	mu      sync.Mutex
	streams map[string]*stream
	done    chan struct{}
	once    sync.Once
}

type stream struct {
	id       string
	category string
	stop     chan struct{}
	once     sync.Once
}

func (st *stream) halt() {
	st.once.Do(func() { close(st.stop) })
}

func newSession(server *MockTickServer, conn *websocket.Conn) *session {
	return &session{
		server:  server,
		conn:    conn,
		writeMu: sync.Mutex{},
		mu:      sync.Mutex{},
		streams: make(map[string]*stream),
		done:    make(chan struct{}),
		once:    sync.Once{},
	}
}

func (sess *session) serve() {
	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}

		var req map[string]json.RawMessage
		if err := json.Unmarshal(data, &req); err != nil {
			sess.send(errorFrame("", nil, "InputValidationFailed", "Input must be a JSON object."))

			continue
		}

		// requests are answered concurrently so delayed ones can be overtaken
		go sess.handle(req)
	}
}

func (sess *session) handle(req map[string]json.RawMessage) {
	var reqID any
	if raw, ok := req["req_id"]; ok {
		_ = json.Unmarshal(raw, &reqID)
	}

	switch {
	case has(req, "ticks_history"):
		sess.server.countRequest("ticks_history")
		sess.handleTicksHistory(req, reqID)
	case has(req, "forget_all"):
		sess.server.countRequest("forget_all")
		sess.handleForgetAll(req, reqID)
	case has(req, "forget"):
		sess.server.countRequest("forget")
		sess.handleForget(req, reqID)
	case has(req, "active_symbols"):
		sess.server.countRequest("active_symbols")
		sess.handleActiveSymbols(reqID)
	case has(req, "trading_times"):
		sess.server.countRequest("trading_times")
		sess.handleTradingTimes(reqID)
	case has(req, "time"):
		sess.server.countRequest("time")
		sess.send(map[string]any{"msg_type": "time", "req_id": reqID, "time": time.Now().Unix()})
	case has(req, "ping"):
		sess.server.countRequest("ping")
		sess.send(map[string]any{"msg_type": "ping", "req_id": reqID, "ping": "pong"})
	default:
		sess.send(errorFrame("error", reqID, "UnrecognisedRequest", "Unrecognised request."))
	}
}

func (sess *session) handleTicksHistory(raw map[string]json.RawMessage, reqID any) {
	var req chartapi.TicksHistoryRequest
	body, _ := json.Marshal(raw)
	if err := json.Unmarshal(body, &req); err != nil {
		sess.send(errorFrame("history", reqID, "InputValidationFailed", err.Error()))

		return
	}

	msgType := req.MsgType()

	if d := sess.server.delay(req.TicksHistory); d > 0 {
		select {
		case <-time.After(d):
		case <-sess.done:
			return
		}
	}

	known, closed := sess.server.marketState(req.TicksHistory)
	switch {
	case closed:
		sess.send(errorFrame(msgType, reqID, chartapi.CodeMarketIsClosed, "This market is presently closed."))

		return
	case !known:
		sess.send(errorFrame(msgType, reqID, "InvalidSymbol", fmt.Sprintf("Symbol %s is invalid.", req.TicksHistory)))

		return
	}

	count := req.Count
	if count <= 0 {
		count = 100
	}

	config := sess.server.generatorConfig(req.TicksHistory, req.Granularity, count)
	resp := map[string]any{"msg_type": msgType, "req_id": reqID, "echo_req": raw, "pip_size": config.PipSize}

	sess.server.genMu.Lock()
	var last chartapi.Candle
	if req.Style == chartapi.StyleCandles {
		candles := sess.server.generator.Candles(config)
		resp["candles"] = candles
		last = candles[len(candles)-1]
	} else {
		history := sess.server.generator.History(config)
		resp["history"] = history
		last = chartapi.Candle{Epoch: history.Times[len(history.Times)-1], Close: history.Prices[len(history.Prices)-1]}
	}
	sess.server.genMu.Unlock()

	if !req.IsSubscribe() {
		sess.send(resp)

		return
	}

	st := &stream{
		id:       uuid.NewString(),
		category: req.StreamCategory(),
		stop:     make(chan struct{}),
		once:     sync.Once{},
	}
	resp["subscription"] = map[string]any{"id": st.id}

	sess.mu.Lock()
	sess.streams[st.id] = st
	sess.mu.Unlock()

	sess.send(resp)
	go sess.pushFrames(st, req, reqID, config, last)
}

func (sess *session) pushFrames(st *stream, req chartapi.TicksHistoryRequest, reqID any, config mocks.GeneratorConfig, last chartapi.Candle) {
	ticker := time.NewTicker(sess.server.config.StreamInterval)
	defer ticker.Stop()

	price := last.Close
	epoch := last.Epoch
	openTime := last.Epoch

	for {
		select {
		case <-st.stop:
			return
		case <-sess.done:
			return
		case <-ticker.C:
		}

		epoch++

		sess.server.genMu.Lock()
		tick := sess.server.generator.NextTick(config, price, epoch)
		sess.server.genMu.Unlock()
		price = tick.Quote

		frame := map[string]any{
			"req_id":       reqID,
			"subscription": map[string]any{"id": st.id},
		}

		if req.Style == chartapi.StyleCandles {
			if epoch-openTime >= int64(req.Granularity) {
				openTime = epoch
			}
			frame["msg_type"] = "ohlc"
			frame["ohlc"] = chartapi.OHLC{
				ID:          st.id,
				Symbol:      req.TicksHistory,
				Epoch:       epoch,
				OpenTime:    openTime,
				Granularity: req.Granularity,
				Open:        tick.Quote,
				High:        tick.Ask,
				Low:         tick.Bid,
				Close:       tick.Quote,
				PipSize:     tick.PipSize,
			}
		} else {
			tick.ID = st.id
			frame["msg_type"] = "tick"
			frame["tick"] = tick
		}

		// a stream forgotten between the tick and the write must not push
		select {
		case <-st.stop:
			return
		default:
		}

		sess.send(frame)
	}
}

func (sess *session) handleForget(raw map[string]json.RawMessage, reqID any) {
	var id string
	_ = json.Unmarshal(raw["forget"], &id)

	sess.mu.Lock()
	st, ok := sess.streams[id]
	delete(sess.streams, id)
	sess.mu.Unlock()

	forgotten := 0
	if ok {
		st.halt()
		forgotten = 1
	}

	sess.send(map[string]any{"msg_type": "forget", "req_id": reqID, "forget": forgotten})
}

func (sess *session) handleForgetAll(raw map[string]json.RawMessage, reqID any) {
	var categories []string
	if err := json.Unmarshal(raw["forget_all"], &categories); err != nil {
		var single string
		_ = json.Unmarshal(raw["forget_all"], &single)
		categories = []string{single}
	}

	wanted := make(map[string]bool, len(categories))
	for _, c := range categories {
		wanted[c] = true
	}

	ids := make([]string, 0)

	sess.mu.Lock()
	for id, st := range sess.streams {
		if wanted[st.category] {
			st.halt()
			delete(sess.streams, id)
			ids = append(ids, id)
		}
	}
	sess.mu.Unlock()

	sess.send(map[string]any{"msg_type": "forget_all", "req_id": reqID, "forget_all": ids})
}

func (sess *session) handleActiveSymbols(reqID any) {
	sess.server.mu.RLock()
	symbols := make([]chartapi.ActiveSymbol, 0, len(sess.server.open)+len(sess.server.closed))
	seen := make(map[string]bool)
	for _, group := range []map[string]bool{sess.server.open, sess.server.closed} {
		for symbol := range group {
			if seen[symbol] {
				continue
			}
			seen[symbol] = true

			isOpen := 1
			if sess.server.closed[symbol] {
				isOpen = 0
			}

			symbols = append(symbols, chartapi.ActiveSymbol{
				Symbol:            symbol,
				DisplayName:       symbol,
				Market:            "synthetic_index",
				MarketDisplayName: "Derived",
				Submarket:         "random_index",
				ExchangeIsOpen:    isOpen,
			})
		}
	}
	sess.server.mu.RUnlock()

	sess.send(map[string]any{"msg_type": "active_symbols", "req_id": reqID, "active_symbols": symbols})
}

func (sess *session) handleTradingTimes(reqID any) {
	sess.server.mu.RLock()
	symbols := make([]map[string]any, 0, len(sess.server.open))
	for symbol := range sess.server.open {
		symbols = append(symbols, map[string]any{
			"name":   symbol,
			"symbol": symbol,
			"times":  map[string]any{"open": []string{"00:00:00"}, "close": []string{"23:59:59"}, "settlement": "23:59:59"},
		})
	}
	sess.server.mu.RUnlock()

	sess.send(map[string]any{
		"msg_type": "trading_times",
		"req_id":   reqID,
		"trading_times": map[string]any{
			"markets": []map[string]any{{
				"name":       "Derived",
				"submarkets": []map[string]any{{"name": "Continuous Indices", "symbols": symbols}},
			}},
		},
	})
}

func (sess *session) send(v any) {
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()

	if err := sess.conn.WriteJSON(v); err != nil {
		sess.server.logger.Debug("Write failed", zap.Error(err))
	}
}

func (sess *session) streamCount() int {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	return len(sess.streams)
}

func (sess *session) close() {
	sess.once.Do(func() {
		close(sess.done)

		sess.mu.Lock()
		for id, st := range sess.streams {
			st.halt()
			delete(sess.streams, id)
		}
		sess.mu.Unlock()

		_ = sess.conn.Close()
	})
}

func has(req map[string]json.RawMessage, key string) bool {
	_, ok := req[key]

	return ok
}

func errorFrame(msgType string, reqID any, code string, message string) map[string]any {
	return map[string]any{
		"msg_type": msgType,
		"req_id":   reqID,
		"error":    map[string]any{"code": code, "message": message},
	}
}
