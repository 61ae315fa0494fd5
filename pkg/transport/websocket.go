package transport

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rxtech-lab/argo-charts/internal/logger"
	"github.com/rxtech-lab/argo-charts/pkg/chartapi"
	"github.com/rxtech-lab/argo-charts/pkg/errors"
	"go.uber.org/zap"
)

const writeTimeout = 10 * time.Second

type result struct {
	resp *chartapi.Response
	err  error
}

// WebSocketClient implements Transport over one gorilla/websocket connection.
// Requests are correlated by req_id; every frame that does not answer a pending
// request is broadcast to the attached listeners.
//
// A subscribing request abandoned on timeout or cancellation is remembered, and
// the stream its late response opens is forgotten on arrival.
//
// The client reconnects after a dropped connection, but server-side streams do
// not survive it. Registered subscriptions stay silent until their owner
// subscribes again; Reconnects lets consumers notice.
type WebSocketClient struct {
	opts      Options
	logger    *logger.Logger
	sessionID string
	dialer    *websocket.Dialer

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	conn    *websocket.Conn
	closed  bool
	writeMu sync.Mutex

	nextReqID atomic.Int64
	pendingMu sync.Mutex
	pending   map[int64]chan result
	abandoned map[int64]struct{}

	listeners  *listenerSet
	dropped    atomic.Uint64
	reconnects atomic.Uint64

	keepaliveOnce sync.Once
	wg            sync.WaitGroup
}

var _ Transport = (*WebSocketClient)(nil)

// NewWebSocketClient creates a client. Call Connect before sending.
func NewWebSocketClient(opts Options, log *logger.Logger) (*WebSocketClient, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	sessionID := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())

	return &WebSocketClient{
		opts:      opts,
		logger:    log.Named("transport").With(zap.String("session_id", sessionID)),
		sessionID: sessionID,
		dialer: &websocket.Dialer{
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		ctx:       ctx,
		cancel:    cancel,
		mu:        sync.RWMutex{},
		conn:      nil,
		closed:    false,
		writeMu:   sync.Mutex{},
		nextReqID: atomic.Int64{},
		pendingMu: sync.Mutex{},
		pending:   make(map[int64]chan result),
		abandoned: make(map[int64]struct{}),

		listeners:  newListenerSet(opts.FrameBuffer),
		dropped:    atomic.Uint64{},
		reconnects: atomic.Uint64{},

		keepaliveOnce: sync.Once{},
		wg:            sync.WaitGroup{},
	}, nil
}

// SessionID identifies this client in logs.
func (c *WebSocketClient) SessionID() string {
	return c.sessionID
}

// DroppedFrames is the number of push frames discarded because a listener's buffer was full.
func (c *WebSocketClient) DroppedFrames() uint64 {
	return c.dropped.Load()
}

// Reconnects is the number of times the connection was replaced after a drop.
// Streams subscribed before a reconnect no longer receive frames.
func (c *WebSocketClient) Reconnects() uint64 {
	return c.reconnects.Load()
}

// Connect dials the endpoint and starts the read and keepalive loops.
func (c *WebSocketClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New(errors.ErrCodeConnectionClosed, "client is closed")
	}

	if c.conn != nil {
		return nil
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	c.conn = conn
	c.wg.Add(1)
	go c.readLoop(conn)

	if c.opts.KeepaliveInterval > 0 {
		c.keepaliveOnce.Do(func() {
			c.wg.Add(1)
			go c.keepalive()
		})
	}

	return nil
}

func (c *WebSocketClient) dial(ctx context.Context) (*websocket.Conn, error) {
	target, err := c.opts.URL()
	if err != nil {
		return nil, err
	}

	conn, _, err := c.dialer.DialContext(ctx, target, nil)
	if err != nil {
		c.logger.Error("Failed to connect", zap.String("endpoint", c.opts.Endpoint), zap.Error(err))

		return nil, errors.Wrapf(errors.ErrCodeConnectionFailed, err, "failed to connect to %s", c.opts.Endpoint)
	}

	c.logger.Info("Connected", zap.String("endpoint", c.opts.Endpoint))

	return conn, nil
}

// Send implements Transport.
func (c *WebSocketClient) Send(ctx context.Context, req chartapi.Request) (*chartapi.Response, error) {
	reqID := c.nextReqID.Add(1)

	payload, err := encodeRequest(req, reqID)
	if err != nil {
		return nil, err
	}

	waiter := make(chan result, 1)

	c.pendingMu.Lock()
	c.pending[reqID] = waiter
	c.pendingMu.Unlock()

	if err := c.write(payload); err != nil {
		c.dropPending(reqID)

		return nil, err
	}

	timer := time.NewTimer(c.opts.RequestTimeout)
	defer timer.Stop()

	select {
	case res := <-waiter:
		if res.err != nil {
			return nil, res.err
		}

		if apiErr := res.resp.Err(); apiErr != nil {
			return nil, apiErr
		}

		return res.resp, nil
	case <-timer.C:
		c.abandon(reqID, req, waiter)

		return nil, errors.Newf(errors.ErrCodeRequestTimeout, "%s request %d timed out after %s", req.MsgType(), reqID, c.opts.RequestTimeout)
	case <-ctx.Done():
		c.abandon(reqID, req, waiter)

		return nil, ctx.Err()
	}
}

// OnMessage implements Transport.
func (c *WebSocketClient) OnMessage() Listener {
	return c.listeners.add()
}

// Forget implements Transport.
func (c *WebSocketClient) Forget(ctx context.Context, id string) error {
	_, err := c.Send(ctx, chartapi.ForgetRequest{Forget: id})
	if err != nil {
		return errors.Wrapf(errors.ErrCodeForgetFailed, err, "failed to forget stream %s", id)
	}

	return nil
}

// ForgetAll implements Transport.
func (c *WebSocketClient) ForgetAll(ctx context.Context, categories ...string) error {
	_, err := c.Send(ctx, chartapi.ForgetAllRequest{ForgetAll: categories})
	if err != nil {
		return errors.Wrapf(errors.ErrCodeForgetFailed, err, "failed to forget streams %v", categories)
	}

	return nil
}

// Close stops the loops, fails pending requests and closes every listener.
func (c *WebSocketClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()

		return nil
	}

	c.closed = true
	c.cancel()

	var closeErr error
	if c.conn != nil {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		closeErr = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	c.wg.Wait()
	c.failPending(errors.New(errors.ErrCodeConnectionClosed, "connection closed"))
	c.listeners.closeAll()

	c.logger.Info("Disconnected", zap.Uint64("dropped_frames", c.dropped.Load()))

	if closeErr != nil {
		return errors.Wrap(errors.ErrCodeConnectionClosed, "failed to close connection", closeErr)
	}

	return nil
}

func (c *WebSocketClient) write(payload []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return errors.New(errors.ErrCodeConnectionClosed, "connection closed")
	}

	if c.conn == nil {
		return errors.New(errors.ErrCodeNotConnected, "not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return errors.Wrap(errors.ErrCodeSendFailed, "failed to set write deadline", err)
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return errors.Wrap(errors.ErrCodeSendFailed, "failed to write frame", err)
	}

	return nil
}

func (c *WebSocketClient) readLoop(conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if c.isClosed() {
				return
			}

			c.logger.Warn("Read failed", zap.Error(err))
			c.failPending(errors.Wrap(errors.ErrCodeConnectionClosed, "connection lost", err))

			next, ok := c.reconnect(conn)
			if !ok {
				return
			}

			conn = next

			continue
		}

		if messageType != websocket.TextMessage {
			continue
		}

		resp, err := chartapi.Decode(data)
		if err != nil {
			c.logger.Warn("Dropping undecodable frame", zap.Error(err))

			continue
		}

		c.dispatch(resp)
	}
}

// dispatch resolves the waiter for the first response of a request and broadcasts everything else.
func (c *WebSocketClient) dispatch(resp *chartapi.Response) {
	if resp.ReqID != 0 {
		c.pendingMu.Lock()
		waiter, ok := c.pending[resp.ReqID]
		if ok {
			delete(c.pending, resp.ReqID)
			waiter <- result{resp: resp, err: nil}
		}
		_, late := c.abandoned[resp.ReqID]
		if late {
			delete(c.abandoned, resp.ReqID)
		}
		c.pendingMu.Unlock()

		if ok {
			return
		}

		if late {
			c.forgetLate(resp)

			return
		}
	}

	if resp.MsgType == "ping" {
		return
	}

	if dropped := c.listeners.broadcast(resp); dropped > 0 {
		c.dropped.Add(uint64(dropped))
		c.logger.Debug("Listener buffer full, frame dropped",
			zap.String("msg_type", resp.MsgType),
			zap.Int("listeners", dropped),
		)
	}
}

// reconnect replaces a broken connection. Server-side streams do not survive it.
func (c *WebSocketClient) reconnect(broken *websocket.Conn) (*websocket.Conn, bool) {
	_ = broken.Close()

	for attempt := 1; attempt <= c.opts.ReconnectAttempts; attempt++ {
		select {
		case <-c.ctx.Done():
			return nil, false
		case <-time.After(c.opts.ReconnectDelay):
		}

		c.logger.Info("Reconnecting",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.opts.ReconnectAttempts),
		)

		conn, err := c.dial(c.ctx)
		if err != nil {
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()

			return nil, false
		}
		c.conn = conn
		c.mu.Unlock()

		c.reconnects.Add(1)

		return conn, true
	}

	c.mu.Lock()
	if c.conn == broken {
		c.conn = nil
	}
	c.mu.Unlock()

	c.logger.Error("Giving up reconnecting", zap.Int("attempts", c.opts.ReconnectAttempts))

	return nil, false
}

func (c *WebSocketClient) keepalive() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.opts.KeepaliveInterval)
	defer ticker.Stop()

	payload, err := json.Marshal(chartapi.PingRequest{Ping: 1})
	if err != nil {
		return
	}

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if err := c.write(payload); err != nil {
				c.logger.Debug("Keepalive ping failed", zap.Error(err))
			}
		}
	}
}

func (c *WebSocketClient) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.closed
}

// abandon stops waiting for reqID. A subscribing request may still open a
// stream on the server, so its first response is forgotten instead of broadcast.
func (c *WebSocketClient) abandon(reqID int64, req chartapi.Request, waiter chan result) {
	sub, ok := req.(interface{ IsSubscribe() bool })
	subscribing := ok && sub.IsSubscribe()

	c.pendingMu.Lock()
	_, waiting := c.pending[reqID]
	delete(c.pending, reqID)
	if waiting && subscribing {
		c.abandoned[reqID] = struct{}{}
	}
	c.pendingMu.Unlock()

	if waiting || !subscribing {
		return
	}

	// answered while giving up; waiters are filled under pendingMu
	select {
	case res := <-waiter:
		if res.err == nil {
			c.forgetLate(res.resp)
		}
	default:
	}
}

// forgetLate cancels the stream opened by the response of an abandoned request.
func (c *WebSocketClient) forgetLate(resp *chartapi.Response) {
	id := resp.SubscriptionID()
	if id.IsNone() {
		return
	}

	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()

		return
	}
	c.wg.Add(1)
	c.mu.RUnlock()

	c.logger.Debug("Forgetting stream of abandoned request", zap.Int64("req_id", resp.ReqID), zap.String("id", id.Unwrap()))

	go func() {
		defer c.wg.Done()

		ctx, cancel := context.WithTimeout(c.ctx, c.opts.RequestTimeout)
		defer cancel()

		if err := c.Forget(ctx, id.Unwrap()); err != nil {
			c.logger.Warn("Failed to forget abandoned stream", zap.String("id", id.Unwrap()), zap.Error(err))
		}
	}()
}

func (c *WebSocketClient) dropPending(reqID int64) {
	c.pendingMu.Lock()
	delete(c.pending, reqID)
	c.pendingMu.Unlock()
}

func (c *WebSocketClient) failPending(err error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	for _, waiter := range c.pending {
		waiter <- result{resp: nil, err: err}
	}

	c.pending = make(map[int64]chan result)
	// streams of abandoned requests died with the connection
	c.abandoned = make(map[int64]struct{})
}

// encodeRequest marshals req and stamps it with reqID.
func encodeRequest(req chartapi.Request, reqID int64) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSendFailed, "failed to encode request", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, errors.Wrap(errors.ErrCodeSendFailed, "request must encode as an object", err)
	}

	id, err := json.Marshal(reqID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSendFailed, "failed to encode req_id", err)
	}
	fields["req_id"] = id

	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSendFailed, "failed to encode request", err)
	}

	return payload, nil
}
