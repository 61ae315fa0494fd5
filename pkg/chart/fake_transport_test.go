package chart

import (
	"context"
	"sync"
	"time"

	"github.com/rxtech-lab/argo-charts/pkg/chartapi"
	"github.com/rxtech-lab/argo-charts/pkg/transport"
)

type reply struct {
	resp *chartapi.Response
	err  error
}

// pendingSend is a Send call held until the test answers it.
type pendingSend struct {
	req   chartapi.Request
	reply chan reply
}

func (p *pendingSend) respond(resp *chartapi.Response, err error) {
	p.reply <- reply{resp: resp, err: err}
}

// fakeTransport holds every Send until the test replies, so tests control response order.
type fakeTransport struct {
	mu         sync.Mutex
	sends      chan *pendingSend
	forgets    []string
	forgetAlls [][]string
	calls      int
	listeners  []*fakeListener
}

var _ transport.Transport = (*fakeTransport)(nil)

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sends: make(chan *pendingSend, 64)}
}

func (f *fakeTransport) Send(ctx context.Context, req chartapi.Request) (*chartapi.Response, error) {
	call := &pendingSend{req: req, reply: make(chan reply, 1)}

	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	f.sends <- call

	select {
	case r := <-call.reply:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeTransport) OnMessage() transport.Listener {
	f.mu.Lock()
	defer f.mu.Unlock()

	l := &fakeListener{ch: make(chan *chartapi.Response, 16)}
	f.listeners = append(f.listeners, l)

	return l
}

func (f *fakeTransport) Forget(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.forgets = append(f.forgets, id)

	return nil
}

func (f *fakeTransport) ForgetAll(_ context.Context, categories ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.forgetAlls = append(f.forgetAlls, categories)

	return nil
}

// nextSend waits for the next Send call.
func (f *fakeTransport) nextSend() *pendingSend {
	select {
	case call := <-f.sends:
		return call
	case <-time.After(2 * time.Second):
		return nil
	}
}

func (f *fakeTransport) push(frame *chartapi.Response) {
	f.mu.Lock()
	listeners := append([]*fakeListener(nil), f.listeners...)
	f.mu.Unlock()

	for _, l := range listeners {
		l.push(frame)
	}
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

func (f *fakeTransport) forgotten() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.forgets...)
}

func (f *fakeTransport) forgottenAll() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([][]string(nil), f.forgetAlls...)
}

func (f *fakeTransport) openListeners() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	open := 0
	for _, l := range f.listeners {
		if !l.isClosed() {
			open++
		}
	}

	return open
}

type fakeListener struct {
	mu     sync.Mutex
	ch     chan *chartapi.Response
	closed bool
}

func (l *fakeListener) Frames() <-chan *chartapi.Response {
	return l.ch
}

func (l *fakeListener) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	l.closed = true
	close(l.ch)
}

func (l *fakeListener) push(frame *chartapi.Response) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	select {
	case l.ch <- frame:
	default:
	}
}

func (l *fakeListener) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.closed
}

// recorder collects callback invocations.
type recorder struct {
	mu   sync.Mutex
	data []Data
}

func (r *recorder) onData(d Data) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data = append(r.data, d)
}

func (r *recorder) all() []Data {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Data(nil), r.data...)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.data)
}

func historyResponse(id string) *chartapi.Response {
	resp := &chartapi.Response{
		MsgType: "history",
		History: &chartapi.History{},
	}
	if id != "" {
		resp.Subscription = &chartapi.SubscriptionInfo{ID: id}
	}

	return resp
}

func tickFrame(id string, epoch int64) *chartapi.Response {
	return &chartapi.Response{
		MsgType:      "tick",
		Tick:         &chartapi.Tick{ID: id, Symbol: "R_100", Epoch: epoch},
		Subscription: &chartapi.SubscriptionInfo{ID: id},
	}
}
