package relay

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Done is returned by a pump to end its relay cleanly: a client disconnect
// or an upstream terminal event is a normal way for a leg to finish, not an
// error.
var Done = errors.New("relay: done")

// Pump is one directional forwarding loop of a duplex relay. A pump must
// return promptly once ctx is canceled. Message order within a pump is
// whatever the pump's source emits; the relay adds no reordering.
type Pump func(ctx context.Context) error

// Relay runs an inbound and an outbound pump concurrently for one
// conversation leg and guarantees that the client connection and the
// upstream link are each closed exactly once, regardless of which side
// exits first or why.
type Relay struct {
	closeClient   func() error
	closeUpstream func() error

	clientOnce   sync.Once
	upstreamOnce sync.Once
}

// New creates a relay owning the two close functions. Either may be nil.
func New(closeClient, closeUpstream func() error) *Relay {
	return &Relay{
		closeClient:   closeClient,
		closeUpstream: closeUpstream,
	}
}

// Run starts both pumps and blocks until both have returned. The first
// pump to exit, for any reason, cancels the context of the other. Both
// sides are torn down before Run returns. A relay is never retried; the
// client reconnects with a new session if it wants to resume.
func (r *Relay) Run(ctx context.Context, inbound, outbound Pump) error {
	g, gctx := errgroup.WithContext(ctx)

	// Pumps park in socket reads that take no context, so cancellation is
	// delivered by closing both sides as soon as the group context ends.
	stop := context.AfterFunc(gctx, r.Shutdown)
	defer stop()

	run := func(p Pump) func() error {
		return func() error {
			err := p(gctx)
			if err == nil {
				// A finished pump still has to cancel its peer.
				err = Done
			}
			return err
		}
	}

	g.Go(run(inbound))
	g.Go(run(outbound))

	err := g.Wait()
	r.Shutdown()

	if errors.Is(err, Done) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Shutdown closes both sides, each exactly once. Safe to call concurrently
// with Run and multiple times.
func (r *Relay) Shutdown() {
	r.clientOnce.Do(func() {
		if r.closeClient != nil {
			r.closeClient()
		}
	})
	r.upstreamOnce.Do(func() {
		if r.closeUpstream != nil {
			r.closeUpstream()
		}
	})
}
