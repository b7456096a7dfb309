package izumo

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Acceptor wraps a listening socket's Listener and yields accepted Streams.
// Grounded on original_source/include/tcp/TCPServer.hh's TCPAcceptor /
// EpollTCPAcceptor.
type Acceptor struct {
	listener *Listener
}

// Accept performs the non-blocking accept4-and-suspend-on-EAGAIN loop from
// spec §4.3, returning a Stream wrapping the newly accepted, already
// non-blocking connection.
func (a *Acceptor) Accept(ctx context.Context) (*Stream, error) {
	for {
		fd, _, err := unix.Accept4(a.listener.FD(), unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err == nil {
			l, lerr := newListener(a.listener.reactor, fd)
			if lerr != nil {
				_ = unix.Close(fd)
				return nil, lerr
			}
			return newStream(l), nil
		}

		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			if _, werr := a.listener.Wait(ctx); werr != nil {
				return nil, werr
			}
			continue
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		return nil, NewSystemError("accept4", err)
	}
}

// Close closes the listening socket.
func (a *Acceptor) Close() error {
	return a.listener.Close()
}

// bindSocket creates a non-blocking, SO_REUSEADDR|SO_REUSEPORT TCP socket
// bound to addr:port and listening with the given backlog. Grounded
// line-for-line on original_source/src/backends/epoll.cc's bindSocket.
func bindSocket(addr string, port uint16, backlog int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, NewSystemError("socket", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return -1, NewSystemError("SO_REUSEADDR", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		_ = unix.Close(fd)
		return -1, NewSystemError("SO_REUSEPORT", err)
	}

	ip, err := parseIPv4(addr)
	if err != nil {
		_ = unix.Close(fd)
		return -1, err
	}

	sa := &unix.SockaddrInet4{Port: int(port), Addr: ip}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return -1, NewSystemError("bind", err)
	}

	if err := unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		return -1, NewSystemError("listen", err)
	}

	return fd, nil
}

// parseIPv4 parses a dotted-quad string into the 4-byte form unix.Bind
// expects, matching the narrow contract of spec §6's bind address
// ("IPv4 dotted-quad string, port") rather than pulling in net.ParseIP's
// full IPv4/IPv6/zone handling for a single-purpose core.
func parseIPv4(addr string) ([4]byte, error) {
	var out [4]byte
	var parts [4]int
	n, err := fmt.Sscanf(addr, "%d.%d.%d.%d", &parts[0], &parts[1], &parts[2], &parts[3])
	if err != nil || n != 4 {
		return out, fmt.Errorf("izumo: invalid IPv4 address %q", addr)
	}
	for i, p := range parts {
		if p < 0 || p > 255 {
			return out, fmt.Errorf("izumo: invalid IPv4 address %q", addr)
		}
		out[i] = byte(p)
	}
	return out, nil
}

// Handler is the application-supplied connection handler. The framework
// guarantees exclusive ownership of stream for the duration of the Handler
// call, which runs on a goroutine spawned fresh per accepted connection by
// Server.Serve; Serve closes stream once Handler returns.
type Handler func(ctx context.Context, stream *Stream) error

// Server owns an Acceptor and drives an infinite accept loop, dispatching
// each accepted Stream to a freshly spawned, detached goroutine running
// Handler. Grounded on original_source/src/tcp/TCPServer.cc's
// TCPServer::start.
type Server struct {
	acceptor *Acceptor
	handler  Handler
	cfg      *serverConfig
}

// NewServer binds addr:port on reactor and returns a Server ready to Serve
// requests with handler. Per spec §6, this performs the listening socket's
// construction side effects (socket/SO_REUSEADDR/SO_REUSEPORT/bind/listen/
// register) eagerly.
func NewServer(reactor *Reactor, addr string, port uint16, handler Handler, opts ...ServerOption) (*Server, error) {
	cfg := resolveServerOptions(opts)

	fd, err := bindSocket(addr, port, cfg.backlog)
	if err != nil {
		return nil, err
	}

	l, err := newListener(reactor, fd)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	return &Server{
		acceptor: &Acceptor{listener: l},
		handler:  handler,
		cfg:      cfg,
	}, nil
}

// Serve runs the accept loop until ctx is done or Accept fails fatally.
// Each accepted connection is handed to a detached goroutine: Serve does
// not wait for it, and the goroutine frees itself simply by returning (see
// DESIGN.md's Open Question #5 on detached-task ownership).
func (s *Server) Serve(ctx context.Context) error {
	for {
		stream, err := s.acceptor.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		go func() {
			defer func() {
				if r := recover(); r != nil {
					s.cfg.logger.WithField("panic", r).Error("izumo: handler panicked")
				}
			}()
			if err := s.handler(ctx, stream); err != nil {
				s.cfg.logger.WithError(err).Debug("izumo: handler returned error")
			}
			_ = stream.Close()
		}()
	}
}

// Close closes the listening socket.
func (s *Server) Close() error {
	return s.acceptor.Close()
}
