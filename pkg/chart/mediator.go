// Package chart mediates between a chart and the shared streaming connection:
// it turns "give me this symbol's history and keep it live" into a sequenced
// request, subscribe and forget protocol with at most one live stream per chart.
package chart

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-charts/internal/logger"
	"github.com/rxtech-lab/argo-charts/pkg/chartapi"
	"github.com/rxtech-lab/argo-charts/pkg/errors"
	"github.com/rxtech-lab/argo-charts/pkg/transport"
	"go.uber.org/zap"
)

// PrimaryCategory is the registry key of a chart's single live stream, whatever its style.
const PrimaryCategory = chartapi.CategoryTicks

// DataReason says why a callback fired.
type DataReason string

const (
	ReasonSnapshot     DataReason = "snapshot"
	ReasonUpdate       DataReason = "update"
	ReasonMarketClosed DataReason = "market_closed"
)

// Data is what a chart callback receives.
type Data struct {
	Response *chartapi.Response
	// Empty is set for the market-closed result; Response is nil then.
	Empty  bool
	Reason DataReason
}

// OnData receives the snapshot and every later update of a stream.
type OnData func(Data)

// ResultKind classifies how a Subscribe call ended.
type ResultKind string

const (
	ResultStreaming    ResultKind = "streaming"
	ResultSnapshot     ResultKind = "snapshot"
	ResultMarketClosed ResultKind = "market_closed"
	ResultStale        ResultKind = "stale"
	ResultFailed       ResultKind = "failed"
	ResultDisposed     ResultKind = "disposed"
	ResultInvalid      ResultKind = "invalid"
)

// Result is the outcome of Subscribe. Failures are also logged; callers may ignore Result.
type Result struct {
	Kind           ResultKind
	SubscriptionID optional.Option[string]
	Err            error
}

// Mediator owns one chart's streams on a shared Transport.
// OnData callbacks must not call Dispose.
type Mediator struct {
	transport transport.Transport
	registry  *Registry
	logger    *logger.Logger
	metrics   *Metrics

	// deliverMu is held for reading around every callback and for writing while Dispose flips disposed.
	deliverMu  sync.RWMutex
	disposed   atomic.Bool
	deliveries sync.WaitGroup
	once       sync.Once

	categoriesMu sync.Mutex
	categories   map[string]struct{}
}

// NewMediator creates a mediator on t. A nil metrics gets an unregistered set.
func NewMediator(t transport.Transport, log *logger.Logger, metrics *Metrics) *Mediator {
	if log == nil {
		log = logger.NewNopLogger()
	}

	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	return &Mediator{
		transport:    t,
		registry:     NewRegistry(t, log),
		logger:       log.Named("chart"),
		metrics:      metrics,
		deliverMu:    sync.RWMutex{},
		disposed:     atomic.Bool{},
		deliveries:   sync.WaitGroup{},
		once:         sync.Once{},
		categoriesMu: sync.Mutex{},
		categories:   make(map[string]struct{}),
	}
}

// Registry exposes the mediator's registry for inspection.
func (m *Mediator) Registry() *Registry {
	return m.registry
}

// Subscribe releases the chart's current stream, sends req and hands the
// snapshot to onData. With req.Subscribe set the new stream is registered and
// its push frames are forwarded to onData until it is superseded or disposed.
func (m *Mediator) Subscribe(ctx context.Context, req chartapi.TicksHistoryRequest, onData OnData) Result {
	if err := req.Validate(); err != nil {
		m.logger.Warn("Rejecting invalid request", zap.String("symbol", req.TicksHistory), zap.Error(err))

		return m.finish(Result{Kind: ResultInvalid, SubscriptionID: optional.None[string](), Err: err})
	}

	m.trackCategory(req.StreamCategory())

	category := PrimaryCategory
	token := m.registry.Begin(category)
	if token == 0 {
		return m.finish(disposedResult())
	}

	var listener transport.Listener
	if req.IsSubscribe() {
		// attached before sending so frames racing the response are buffered
		listener = m.transport.OnMessage()
	}

	closeListener := func() {
		if listener != nil {
			listener.Close()
		}
	}

	resp, err := m.transport.Send(ctx, req)
	if err != nil {
		closeListener()

		return m.finish(m.handleFailure(category, token, req, err, onData))
	}

	if !req.IsSubscribe() {
		if !m.deliver(onData, Data{Response: resp, Empty: false, Reason: ReasonSnapshot}, func() bool {
			return m.registry.IsLatest(category, token)
		}) {
			return m.finish(m.droppedResult(category, token))
		}

		return m.finish(Result{Kind: ResultSnapshot, SubscriptionID: optional.None[string](), Err: nil})
	}

	id := resp.SubscriptionID()
	if id.IsNone() {
		closeListener()
		err := errors.Newf(errors.ErrCodeMissingSubscription, "%s response for %s carries no subscription id", resp.MsgType, req.TicksHistory)
		m.logger.Error("Subscribe failed", zap.String("symbol", req.TicksHistory), zap.Error(err))

		return m.finish(Result{Kind: ResultFailed, SubscriptionID: optional.None[string](), Err: err})
	}

	handle := m.registry.NewHandle(category, token, id.Unwrap())
	if err := m.registry.Register(category, token, handle); err != nil {
		closeListener()

		if errors.HasCode(err, errors.ErrCodeMediatorDisposed) {
			return m.finish(Result{Kind: ResultDisposed, SubscriptionID: id, Err: err})
		}

		return m.finish(Result{Kind: ResultStale, SubscriptionID: id, Err: err})
	}

	m.logger.Debug("Stream registered",
		zap.String("symbol", req.TicksHistory),
		zap.String("id", handle.ID()),
		zap.Uint64("token", token),
	)
	m.metrics.ActiveSubscriptions.Set(float64(m.registry.Len()))

	delivered := m.deliver(onData, Data{Response: resp, Empty: false, Reason: ReasonSnapshot}, func() bool {
		return m.registry.IsCurrent(handle)
	})

	if !m.startPump(handle, listener, onData) {
		closeListener()

		return m.finish(Result{Kind: ResultDisposed, SubscriptionID: id, Err: nil})
	}

	if !delivered {
		return m.finish(Result{Kind: ResultStale, SubscriptionID: id, Err: nil})
	}

	return m.finish(Result{Kind: ResultStreaming, SubscriptionID: id, Err: nil})
}

// Stop forgets the chart's live stream. A Subscribe still waiting for its
// response is superseded and cancels its stream when the answer arrives.
func (m *Mediator) Stop() {
	if m.registry.Begin(PrimaryCategory) == 0 {
		return
	}

	m.metrics.ActiveSubscriptions.Set(float64(m.registry.Len()))
	m.logger.Debug("Chart stream stopped")
}

// FetchOnce sends a one-shot request. It never touches the registry.
func (m *Mediator) FetchOnce(ctx context.Context, req chartapi.Request) (*chartapi.Response, error) {
	if m.disposed.Load() {
		return nil, errors.New(errors.ErrCodeMediatorDisposed, "mediator disposed")
	}

	if v, ok := req.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}

	if th, ok := req.(chartapi.TicksHistoryRequest); ok && th.IsSubscribe() {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "streaming requests must go through Subscribe")
	}

	resp, err := m.transport.Send(ctx, req)
	if err != nil {
		m.logger.Debug("One-shot request failed", zap.String("msg_type", req.MsgType()), zap.Error(err))

		return nil, err
	}

	return resp, nil
}

// Dispose releases every stream, asks the server to forget every category this
// mediator streamed, and waits for in-flight deliveries. No callback runs after
// it returns. Calling it again is a no-op.
func (m *Mediator) Dispose() {
	m.once.Do(func() {
		m.deliverMu.Lock()
		m.disposed.Store(true)
		m.deliverMu.Unlock()

		m.registry.ReleaseAll()

		if categories := m.usedCategories(); len(categories) > 0 {
			ctx, cancel := context.WithTimeout(context.Background(), DefaultForgetTimeout)
			if err := m.transport.ForgetAll(ctx, categories...); err != nil {
				m.logger.Warn("Failed to forget streams on dispose", zap.Strings("categories", categories), zap.Error(err))
			}
			cancel()
		}

		m.deliveries.Wait()
		m.registry.Wait()
		m.metrics.ActiveSubscriptions.Set(0)
		m.logger.Debug("Mediator disposed")
	})
}

// Disposed reports whether Dispose has been called.
func (m *Mediator) Disposed() bool {
	return m.disposed.Load()
}

func (m *Mediator) handleFailure(category string, token uint64, req chartapi.TicksHistoryRequest, err error, onData OnData) Result {
	if m.disposed.Load() {
		return disposedResult()
	}

	if !m.registry.IsLatest(category, token) {
		m.logger.Debug("Ignoring failure of superseded request", zap.String("symbol", req.TicksHistory), zap.Error(err))

		return Result{Kind: ResultStale, SubscriptionID: optional.None[string](), Err: err}
	}

	if chartapi.IsMarketClosed(err) {
		m.logger.Info("Market is closed", zap.String("symbol", req.TicksHistory))

		if !m.deliver(onData, Data{Response: nil, Empty: true, Reason: ReasonMarketClosed}, func() bool {
			return m.registry.IsLatest(category, token)
		}) {
			return m.droppedResult(category, token)
		}

		return Result{Kind: ResultMarketClosed, SubscriptionID: optional.None[string](), Err: err}
	}

	m.logger.Error("Subscribe failed", zap.String("symbol", req.TicksHistory), zap.Error(err))

	return Result{Kind: ResultFailed, SubscriptionID: optional.None[string](), Err: err}
}

// deliver runs onData unless the mediator is disposed or valid reports false.
func (m *Mediator) deliver(onData OnData, data Data, valid func() bool) bool {
	m.deliverMu.RLock()
	defer m.deliverMu.RUnlock()

	if m.disposed.Load() || !valid() {
		return false
	}

	if onData != nil {
		onData(data)
	}

	return true
}

// startPump forwards the handle's push frames until it is cancelled.
func (m *Mediator) startPump(h *Handle, listener transport.Listener, onData OnData) bool {
	m.deliverMu.RLock()
	defer m.deliverMu.RUnlock()

	if m.disposed.Load() {
		return false
	}

	m.deliveries.Add(1)
	go m.pump(h, listener, onData)

	return true
}

func (m *Mediator) pump(h *Handle, listener transport.Listener, onData OnData) {
	defer m.deliveries.Done()
	defer listener.Close()

	for {
		select {
		case <-h.Done():
			return
		case frame, ok := <-listener.Frames():
			if !ok {
				return
			}

			id := frame.SubscriptionID()
			if id.IsNone() || id.Unwrap() != h.ID() {
				continue
			}

			if !m.deliver(onData, Data{Response: frame, Empty: false, Reason: ReasonUpdate}, func() bool {
				return m.registry.IsCurrent(h)
			}) {
				m.metrics.FramesDropped.WithLabelValues("superseded").Inc()

				continue
			}

			m.metrics.FramesDelivered.Inc()
		}
	}
}

func (m *Mediator) droppedResult(category string, token uint64) Result {
	if m.disposed.Load() {
		return disposedResult()
	}

	m.logger.Debug("Dropping superseded response", zap.String("category", category), zap.Uint64("token", token))

	return Result{Kind: ResultStale, SubscriptionID: optional.None[string](), Err: nil}
}

func (m *Mediator) finish(r Result) Result {
	m.metrics.observe(r.Kind)

	return r
}

func (m *Mediator) trackCategory(category string) {
	m.categoriesMu.Lock()
	defer m.categoriesMu.Unlock()

	m.categories[category] = struct{}{}
}

func (m *Mediator) usedCategories() []string {
	m.categoriesMu.Lock()
	defer m.categoriesMu.Unlock()

	categories := make([]string, 0, len(m.categories))
	for c := range m.categories {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	return categories
}

func disposedResult() Result {
	return Result{
		Kind:           ResultDisposed,
		SubscriptionID: optional.None[string](),
		Err:            errors.New(errors.ErrCodeMediatorDisposed, "mediator disposed"),
	}
}
