package izumo

import (
	"context"
	"sync"

	"golang.org/x/sys/unix"
)

// IOEvents is a bitmask of readiness conditions reported by the reactor.
type IOEvents uint32

const (
	// EventRead indicates the file descriptor is ready for reading.
	EventRead IOEvents = 1 << iota
	// EventWrite indicates the file descriptor is ready for writing.
	EventWrite
	// EventError indicates an error condition on the file descriptor.
	EventError
	// EventHangup indicates the peer closed its end of the connection.
	EventHangup
)

// listenerState mirrors the IDLE/WAITING state machine from spec §4.2.
type listenerState int

const (
	listenerIdle listenerState = iota
	listenerWaiting
)

// Listener is the reactor's per-descriptor record. It holds the monitored
// file descriptor, a back-reference to the owning Reactor, and a
// single-slot continuation: at most one goroutine may be suspended inside
// Wait at a time.
type Listener struct {
	fd      int
	reactor *Reactor

	mu    sync.Mutex
	state listenerState
	wake  chan struct{} // non-nil only while state == listenerWaiting
	last  IOEvents      // events delivered by the most recent onEvent
}

// newListener registers fd with reactor and returns the owning Listener.
// Fails with a *SystemError if registration fails.
func newListener(reactor *Reactor, fd int) (*Listener, error) {
	l := &Listener{fd: fd, reactor: reactor}
	if err := reactor.register(l); err != nil {
		return nil, err
	}
	return l, nil
}

// FD returns the monitored file descriptor.
func (l *Listener) FD() int {
	return l.fd
}

// Wait suspends the calling goroutine until the reactor reports readiness
// on this listener's descriptor, or ctx is done. It is the Go rendering of
// EpollListener::waitEvent — calling Wait while another Wait is already
// pending on the same Listener returns ErrListenerBusy instead of
// corrupting the single continuation slot.
func (l *Listener) Wait(ctx context.Context) (IOEvents, error) {
	l.mu.Lock()
	if l.state == listenerWaiting {
		l.mu.Unlock()
		return 0, ErrListenerBusy
	}
	ch := make(chan struct{})
	l.wake = ch
	l.state = listenerWaiting
	l.mu.Unlock()

	select {
	case <-ch:
		l.mu.Lock()
		ev := l.last
		l.mu.Unlock()
		return ev, nil
	case <-ctx.Done():
		l.mu.Lock()
		if l.wake == ch {
			l.wake = nil
			l.state = listenerIdle
		}
		l.mu.Unlock()
		return 0, ctx.Err()
	}
}

// onEvent is invoked by the reactor goroutine when the descriptor becomes
// ready. It atomically swaps the continuation slot to idle before resuming
// the waiter, so the resumed goroutine may immediately call Wait again
// (spec §4.2: "resumes the listener's pending continuation if any
// (atomically swapping the slot to empty before resuming...)").
func (l *Listener) onEvent(events IOEvents) {
	l.mu.Lock()
	ch := l.wake
	l.wake = nil
	l.state = listenerIdle
	l.last = events
	l.mu.Unlock()

	if ch != nil {
		close(ch)
	}
}

// Close unregisters the listener and closes its file descriptor. Must be
// called exactly once. It is a programming error to Close a Listener while
// a continuation is registered on it (spec §5's cancellation rule); Close
// clears the slot first so no dangling continuation is left registered
// with the reactor, but any goroutine currently blocked in Wait will never
// be woken — callers must ensure no Wait is outstanding before Close.
func (l *Listener) Close() error {
	l.mu.Lock()
	l.wake = nil
	l.state = listenerIdle
	l.mu.Unlock()

	unregErr := l.reactor.unregister(l)
	closeErr := unix.Close(l.fd)
	if unregErr != nil {
		return unregErr
	}
	return NewSystemError("close", closeErr)
}
