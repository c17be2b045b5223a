package relay

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRelayFirstExitCancelsPeer(t *testing.T) {
	var clientClosed, upstreamClosed atomic.Int32
	r := New(
		func() error { clientClosed.Add(1); return nil },
		func() error { upstreamClosed.Add(1); return nil },
	)

	peerCanceled := make(chan struct{})

	err := r.Run(context.Background(),
		func(ctx context.Context) error {
			<-ctx.Done()
			close(peerCanceled)
			return Done
		},
		func(ctx context.Context) error {
			// Outbound finishes immediately; inbound must observe
			// cancellation.
			return Done
		},
	)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	select {
	case <-peerCanceled:
	default:
		t.Fatal("peer pump was not canceled")
	}
	if got := clientClosed.Load(); got != 1 {
		t.Errorf("client closed %d times; want 1", got)
	}
	if got := upstreamClosed.Load(); got != 1 {
		t.Errorf("upstream closed %d times; want 1", got)
	}
}

func TestRelayErrorWins(t *testing.T) {
	boom := errors.New("boom")
	r := New(nil, nil)

	err := r.Run(context.Background(),
		func(ctx context.Context) error {
			return boom
		},
		func(ctx context.Context) error {
			<-ctx.Done()
			return Done
		},
	)
	if !errors.Is(err, boom) {
		t.Errorf("Run = %v; want boom", err)
	}
}

func TestRelayNilReturnEndsRelay(t *testing.T) {
	r := New(nil, nil)

	start := time.Now()
	err := r.Run(context.Background(),
		func(ctx context.Context) error {
			return nil
		},
		func(ctx context.Context) error {
			<-ctx.Done()
			return Done
		},
	)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("relay took %v to settle; want well under the grace period", elapsed)
	}
}

func TestRelayParentCancelClosesBothSides(t *testing.T) {
	var clientClosed, upstreamClosed atomic.Int32
	r := New(
		func() error { clientClosed.Add(1); return nil },
		func() error { upstreamClosed.Add(1); return nil },
	)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := r.Run(ctx,
		func(ctx context.Context) error {
			<-ctx.Done()
			return Done
		},
		func(ctx context.Context) error {
			<-ctx.Done()
			return Done
		},
	)
	if err != nil {
		t.Fatalf("Run after parent cancel: %v", err)
	}
	if clientClosed.Load() != 1 || upstreamClosed.Load() != 1 {
		t.Errorf("closed client=%d upstream=%d; want 1/1",
			clientClosed.Load(), upstreamClosed.Load())
	}
}

func TestRelayShutdownIdempotent(t *testing.T) {
	var clientClosed, upstreamClosed atomic.Int32
	r := New(
		func() error { clientClosed.Add(1); return nil },
		func() error { upstreamClosed.Add(1); return nil },
	)

	r.Shutdown()
	r.Shutdown()

	if clientClosed.Load() != 1 || upstreamClosed.Load() != 1 {
		t.Errorf("closed client=%d upstream=%d; want 1/1",
			clientClosed.Load(), upstreamClosed.Load())
	}
}

func TestRelayOrderPreserved(t *testing.T) {
	// The relay adds no buffering of its own: a pump that forwards a
	// sequence must deliver it intact.
	src := make(chan int, 16)
	for i := 0; i < 10; i++ {
		src <- i
	}
	close(src)

	var got []int
	r := New(nil, nil)
	err := r.Run(context.Background(),
		func(ctx context.Context) error {
			<-ctx.Done()
			return Done
		},
		func(ctx context.Context) error {
			for v := range src {
				got = append(got, v)
			}
			return Done
		},
	)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("got[%d] = %d; want %d", i, v, i)
		}
	}
	if len(got) != 10 {
		t.Fatalf("forwarded %d items; want 10", len(got))
	}
}
