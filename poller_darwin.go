//go:build darwin

package izumo

import (
	"golang.org/x/sys/unix"
)

// kqueuePoller is the Darwin poller backend. Grounded on
// eventloop/poller_darwin.go's FastPoller, adapted to register both read
// and write filters per fd (kqueue has no single "edge-triggered union of
// read+write+hangup" event the way epoll does; EV_CLEAR on both filters
// gives the closest equivalent of edge-triggered semantics, and EOF is
// reported per-filter via Kevent_t.Flags&EV_EOF rather than a dedicated
// hangup filter).
type kqueuePoller struct {
	kq       int
	eventBuf [256]unix.Kevent_t
}

func newPoller() poller {
	return &kqueuePoller{kq: -1}
}

func (p *kqueuePoller) init() error {
	kq, err := unix.Kqueue()
	if err != nil {
		return err
	}
	unix.CloseOnExec(kq)
	p.kq = kq
	return nil
}

func (p *kqueuePoller) close() error {
	if p.kq < 0 {
		return nil
	}
	fd := p.kq
	p.kq = -1
	return unix.Close(fd)
}

func (p *kqueuePoller) add(fd int) error {
	changes := []unix.Kevent_t{
		makeKevent(fd, unix.EVFILT_READ, unix.EV_ADD|unix.EV_CLEAR),
		makeKevent(fd, unix.EVFILT_WRITE, unix.EV_ADD|unix.EV_CLEAR),
	}
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	return err
}

func (p *kqueuePoller) del(fd int) error {
	changes := []unix.Kevent_t{
		makeKevent(fd, unix.EVFILT_READ, unix.EV_DELETE),
		makeKevent(fd, unix.EVFILT_WRITE, unix.EV_DELETE),
	}
	// Ignore errors: a filter may already be gone if the fd was closed
	// out from under us, same tolerance as eventloop/poller_darwin.go's
	// UnregisterFD.
	_, _ = unix.Kevent(p.kq, changes, nil, nil)
	return nil
}

func makeKevent(fd int, filter int16, flags uint16) unix.Kevent_t {
	return unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: filter,
		Flags:  flags,
	}
}

func (p *kqueuePoller) wait(deliver func(fd int, events IOEvents)) error {
	n, err := unix.Kevent(p.kq, nil, p.eventBuf[:], nil)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return NewSystemError("kevent", err)
	}

	for i := 0; i < n; i++ {
		ev := p.eventBuf[i]
		fd := int(ev.Ident)
		deliver(fd, kqueueToEvents(ev))
	}
	return nil
}

func kqueueToEvents(ev unix.Kevent_t) IOEvents {
	var out IOEvents
	switch ev.Filter {
	case unix.EVFILT_READ:
		out |= EventRead
	case unix.EVFILT_WRITE:
		out |= EventWrite
	}
	if ev.Flags&unix.EV_EOF != 0 {
		out |= EventHangup
	}
	if ev.Flags&unix.EV_ERROR != 0 {
		out |= EventError
	}
	return out
}
