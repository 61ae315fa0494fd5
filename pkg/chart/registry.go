package chart

import (
	"context"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-charts/internal/logger"
	"github.com/rxtech-lab/argo-charts/pkg/errors"
	"go.uber.org/zap"
)

// DefaultForgetTimeout bounds each fire-and-forget cancellation sent to the server.
const DefaultForgetTimeout = 10 * time.Second

// Forgetter cancels server-side streams by id.
type Forgetter interface {
	Forget(ctx context.Context, id string) error
}

// Registry tracks at most one live stream per category. Each category also
// carries the latest request token; only a response holding that token may register.
type Registry struct {
	forgetter     Forgetter
	logger        *logger.Logger
	forgetTimeout time.Duration

	mu       sync.Mutex
	handles  map[string]*Handle
	tokens   map[string]uint64
	disposed bool
	// drained is set by the first Wait after ReleaseAll; no forget starts after it.
	drained bool

	forgets sync.WaitGroup
}

// NewRegistry creates an empty registry that cancels streams through forgetter.
func NewRegistry(forgetter Forgetter, log *logger.Logger) *Registry {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Registry{
		forgetter:     forgetter,
		logger:        log.Named("registry"),
		forgetTimeout: DefaultForgetTimeout,
		mu:            sync.Mutex{},
		handles:       make(map[string]*Handle),
		tokens:        make(map[string]uint64),
		disposed:      false,
		drained:       false,
		forgets:       sync.WaitGroup{},
	}
}

// SetForgetTimeout changes the deadline of subsequent cancellations.
func (r *Registry) SetForgetTimeout(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.forgetTimeout = d
}

// NewHandle builds a handle whose Cancel forgets id through the registry's forgetter.
func (r *Registry) NewHandle(category string, token uint64, id string) *Handle {
	return newHandle(id, category, token, func() {
		r.forget(id)
	})
}

// Begin issues a new token for category and releases its current handle.
// It returns 0 once the registry is released.
func (r *Registry) Begin(category string) uint64 {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()

		return 0
	}

	r.tokens[category]++
	token := r.tokens[category]
	prev := r.handles[category]
	delete(r.handles, category)
	r.mu.Unlock()

	if prev != nil {
		r.logger.Debug("Releasing stream before new request",
			zap.String("category", category),
			zap.String("id", prev.ID()),
			zap.Uint64("token", token),
		)
		prev.Cancel()
	}

	return token
}

// Register stores h for category if token is the latest one issued for it.
// A stale handle is cancelled and ErrCodeStaleResponse returned. After
// ReleaseAll the handle is discarded without any server call and
// ErrCodeMediatorDisposed returned.
func (r *Registry) Register(category string, token uint64, h *Handle) error {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		h.discard()

		return errors.Newf(errors.ErrCodeMediatorDisposed, "registry released, discarding stream %s", h.ID())
	}

	latest := r.tokens[category]
	if token == 0 || token != latest {
		r.mu.Unlock()
		r.logger.Debug("Cancelling stale stream",
			zap.String("category", category),
			zap.String("id", h.ID()),
			zap.Uint64("token", token),
			zap.Uint64("latest", latest),
		)
		h.Cancel()

		return errors.Newf(errors.ErrCodeStaleResponse, "token %d superseded by %d", token, latest)
	}

	prev := r.handles[category]
	r.handles[category] = h
	r.mu.Unlock()

	if prev != nil && prev != h {
		prev.Cancel()
	}

	return nil
}

// Release cancels and removes the handle of category. Missing handles are ignored.
func (r *Registry) Release(category string) {
	r.mu.Lock()
	h := r.handles[category]
	delete(r.handles, category)
	r.mu.Unlock()

	if h != nil {
		h.Cancel()
	}
}

// ReleaseAll cancels every handle and rejects all later registrations.
func (r *Registry) ReleaseAll() {
	r.mu.Lock()
	r.disposed = true
	handles := make([]*Handle, 0, len(r.handles))
	for category, h := range r.handles {
		handles = append(handles, h)
		delete(r.handles, category)
	}
	r.mu.Unlock()

	for _, h := range handles {
		h.Cancel()
	}
}

// IsCurrent reports whether h is the registered handle of its category.
func (r *Registry) IsCurrent(h *Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return h != nil && r.handles[h.Category()] == h
}

// IsLatest reports whether token is still the newest one issued for category.
func (r *Registry) IsLatest(category string, token uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return !r.disposed && token != 0 && r.tokens[category] == token
}

// Current returns the subscription id registered for category.
func (r *Registry) Current(category string) optional.Option[string] {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handles[category]; ok {
		return optional.Some(h.ID())
	}

	return optional.None[string]()
}

// Len is the number of registered handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.handles)
}

// Released reports whether ReleaseAll has been called.
func (r *Registry) Released() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.disposed
}

// Wait blocks until every cancellation already started has returned. After
// ReleaseAll it also closes the registry to new cancellations, so none reaches
// the server once Wait returns.
func (r *Registry) Wait() {
	r.mu.Lock()
	if r.disposed {
		r.drained = true
	}
	r.mu.Unlock()

	r.forgets.Wait()
}

func (r *Registry) forget(id string) {
	if r.forgetter == nil {
		return
	}

	r.mu.Lock()
	if r.drained {
		r.mu.Unlock()
		// the release-time forget_all already covers it
		r.logger.Debug("Skipping forget after release", zap.String("id", id))

		return
	}
	timeout := r.forgetTimeout
	r.forgets.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.forgets.Done()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := r.forgetter.Forget(ctx, id); err != nil {
			r.logger.Warn("Failed to forget stream", zap.String("id", id), zap.Error(err))
		}
	}()
}
