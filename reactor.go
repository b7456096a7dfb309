package izumo

import (
	"context"

	"github.com/sirupsen/logrus"
)

// poller is the platform-specific backend a Reactor drives. Implementations
// live in poller_linux.go (epoll), poller_darwin.go (kqueue), and
// poller_other.go (unsupported-platform stub).
type poller interface {
	init() error
	close() error
	add(fd int) error
	del(fd int) error
	// wait blocks until at least one descriptor is ready (or the wait is
	// interrupted), invoking deliver for each ready fd. It must silently
	// retry on EINTR and return a *SystemError for any other failure.
	wait(deliver func(fd int, events IOEvents)) error
}

// Reactor is the process-local readiness-notification loop: it owns one
// polling descriptor and an intrusive registry of Listeners. Per spec §4.2,
// a Reactor is meant to be driven from a single goroutine via Run; register
// and unregister are safe to call from any goroutine.
type Reactor struct {
	p   poller
	log logrus.FieldLogger
	reg *registry
}

// NewReactor constructs a Reactor. It does not start polling; call Run on
// the goroutine that should own the reactor loop.
func NewReactor(opts ...ReactorOption) (*Reactor, error) {
	cfg := resolveReactorOptions(opts)

	p := newPoller()
	if p == nil {
		return nil, ErrUnsupportedPlatform
	}
	if err := p.init(); err != nil {
		return nil, NewSystemError("poller init", err)
	}

	r := &Reactor{
		p:   p,
		log: cfg.logger,
		reg: newRegistry(),
	}
	return r, nil
}

// Listen wraps fd (which must already be non-blocking) in a new Listener
// registered with this reactor.
func (r *Reactor) Listen(fd int) (*Listener, error) {
	return newListener(r, fd)
}

func (r *Reactor) register(l *Listener) error {
	r.reg.put(l)
	if err := r.p.add(l.fd); err != nil {
		r.reg.delete(l.fd)
		return NewSystemError("register fd", err)
	}
	r.log.WithField("fd", l.fd).Debug("izumo: registered listener")
	return nil
}

func (r *Reactor) unregister(l *Listener) error {
	r.reg.delete(l.fd)
	if err := r.p.del(l.fd); err != nil {
		return NewSystemError("unregister fd", err)
	}
	r.log.WithField("fd", l.fd).Debug("izumo: unregistered listener")
	return nil
}

// Run drives the reactor's main loop until ctx is done or the poller
// reports a fatal error. Per spec §7, a SystemError from the reactor
// itself is meant to be fatal to the embedding process; Run simply returns
// it to the caller, who decides what "fatal" means for their process.
func (r *Reactor) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)

	// Close the poller (unblocking any in-progress wait) if ctx is
	// cancelled. There is no graceful shutdown protocol (spec §1
	// non-goals); this just stops the loop from spinning forever in a
	// process that wants to exit.
	go func() {
		select {
		case <-ctx.Done():
			_ = r.p.close()
		case <-done:
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := r.p.wait(func(fd int, events IOEvents) {
			if l, ok := r.reg.get(fd); ok {
				l.onEvent(events)
			}
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}

// Close releases the reactor's polling descriptor. Listeners must be
// closed first; Close does not unregister them.
func (r *Reactor) Close() error {
	return r.p.close()
}
