// Package transport carries chart requests and push frames over a single shared
// streaming connection.
package transport

import (
	"context"

	"github.com/rxtech-lab/argo-charts/pkg/chartapi"
)

// Transport is the connection the chart mediator talks through.
type Transport interface {
	// Send issues req and waits for its first response. A response carrying an
	// error envelope is returned as *chartapi.APIError.
	Send(ctx context.Context, req chartapi.Request) (*chartapi.Response, error)
	// OnMessage attaches a listener that receives every push frame.
	OnMessage() Listener
	// Forget cancels one server-side stream.
	Forget(ctx context.Context, id string) error
	// ForgetAll cancels every server-side stream of the given categories.
	ForgetAll(ctx context.Context, categories ...string) error
}

// Listener receives push frames until it is closed.
type Listener interface {
	// Frames is closed when the listener or the transport is closed.
	Frames() <-chan *chartapi.Response
	Close()
}
