//go:build linux

package izumo

import (
	"golang.org/x/sys/unix"
)

// epollPoller is the Linux poller backend. Grounded on
// eventloop/poller_linux.go's FastPoller, simplified: this package does not
// need FastPoller's inline-callback dispatch table (izumo dispatches
// through the Reactor's registry instead), only the epoll syscalls
// themselves and the exact edge-triggered event mask from
// original_source/src/backends/epoll.cc's EpollService::addListener.
type epollPoller struct {
	epfd     int
	eventBuf [256]unix.EpollEvent
}

func newPoller() poller {
	return &epollPoller{epfd: -1}
}

func (p *epollPoller) init() error {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	p.epfd = fd
	return nil
}

func (p *epollPoller) close() error {
	if p.epfd < 0 {
		return nil
	}
	fd := p.epfd
	p.epfd = -1
	return unix.Close(fd)
}

// epollEventMask is the edge-triggered union of {readable, writable,
// peer-closed} required by spec §4.2, matching
// original_source/src/backends/epoll.cc exactly: EPOLLIN|EPOLLOUT|EPOLLRDHUP|EPOLLET.
const epollEventMask = unix.EPOLLIN | unix.EPOLLOUT | unix.EPOLLRDHUP | unix.EPOLLET

func (p *epollPoller) add(fd int) error {
	ev := &unix.EpollEvent{Events: uint32(epollEventMask), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev)
}

func (p *epollPoller) del(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) wait(deliver func(fd int, events IOEvents)) error {
	n, err := unix.EpollWait(p.epfd, p.eventBuf[:], -1)
	if err != nil {
		if err == unix.EINTR {
			// Spec §4.2: "interrupted-syscall errors are silently retried".
			return nil
		}
		return NewSystemError("epoll_wait", err)
	}

	for i := 0; i < n; i++ {
		fd := int(p.eventBuf[i].Fd)
		deliver(fd, epollToEvents(p.eventBuf[i].Events))
	}
	return nil
}

func epollToEvents(mask uint32) IOEvents {
	var ev IOEvents
	if mask&unix.EPOLLIN != 0 {
		ev |= EventRead
	}
	if mask&unix.EPOLLOUT != 0 {
		ev |= EventWrite
	}
	if mask&unix.EPOLLERR != 0 {
		ev |= EventError
	}
	if mask&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		ev |= EventHangup
	}
	return ev
}
