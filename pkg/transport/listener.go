package transport

import (
	"sync"

	"github.com/rxtech-lab/argo-charts/pkg/chartapi"
)

// listenerSet fans push frames out to listeners without letting a slow one block the caller.
type listenerSet struct {
	mu        sync.RWMutex
	listeners map[*listener]struct{}
	closed    bool
	buffer    int
}

func newListenerSet(buffer int) *listenerSet {
	return &listenerSet{
		mu:        sync.RWMutex{},
		listeners: make(map[*listener]struct{}),
		closed:    false,
		buffer:    buffer,
	}
}

// add returns a new listener. After closeAll it returns one whose channel is already closed.
func (s *listenerSet) add() *listener {
	l := &listener{
		set:  s,
		ch:   make(chan *chartapi.Response, s.buffer),
		once: sync.Once{},
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		l.once.Do(func() { close(l.ch) })

		return l
	}

	s.listeners[l] = struct{}{}

	return l
}

// broadcast delivers resp to every listener and returns how many were full.
func (s *listenerSet) broadcast(resp *chartapi.Response) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dropped := 0
	for l := range s.listeners {
		select {
		case l.ch <- resp:
		default:
			dropped++
		}
	}

	return dropped
}

func (s *listenerSet) remove(l *listener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.listeners[l]; !ok {
		return
	}

	delete(s.listeners, l)
	close(l.ch)
}

func (s *listenerSet) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for l := range s.listeners {
		delete(s.listeners, l)
		close(l.ch)
	}
}

func (s *listenerSet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.listeners)
}

type listener struct {
	set  *listenerSet
	ch   chan *chartapi.Response
	once sync.Once
}

// Frames implements Listener.
func (l *listener) Frames() <-chan *chartapi.Response {
	return l.ch
}

// Close implements Listener. It is safe to call more than once.
func (l *listener) Close() {
	l.once.Do(func() {
		l.set.remove(l)
	})
}
