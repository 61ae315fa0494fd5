package chart

import "sync"

// Handle is a live server-side stream owned by a Registry.
type Handle struct {
	id       string
	category string
	token    uint64

	once   sync.Once
	done   chan struct{}
	cancel func()
}

func newHandle(id string, category string, token uint64, cancel func()) *Handle {
	return &Handle{
		id:       id,
		category: category,
		token:    token,
		once:     sync.Once{},
		done:     make(chan struct{}),
		cancel:   cancel,
	}
}

// ID is the server's subscription id.
func (h *Handle) ID() string {
	return h.id
}

// Category is the registry key the handle was issued for.
func (h *Handle) Category() string {
	return h.category
}

// Token is the request token the handle was issued for.
func (h *Handle) Token() uint64 {
	return h.token
}

// Cancel stops the stream. Only the first call reaches the transport.
func (h *Handle) Cancel() {
	h.once.Do(func() {
		close(h.done)
		if h.cancel != nil {
			h.cancel()
		}
	})
}

// Done is closed once the handle is cancelled or discarded.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Cancelled reports whether Done is closed.
func (h *Handle) Cancelled() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// discard closes the handle without telling the server.
func (h *Handle) discard() {
	h.once.Do(func() {
		close(h.done)
	})
}
