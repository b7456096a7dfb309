package izumo

import (
	"context"
	"errors"

	"golang.org/x/sys/unix"
)

// Stream wraps one non-blocking TCP connection's file descriptor together
// with the Listener that suspends its caller on EAGAIN. A Stream owns its
// descriptor exclusively, matching original_source/include/tcp/TCPStream.hh
// ("moving the stream transfers the backend" — in Go, this is expressed by
// convention: a Stream should not be used from more than one goroutine, and
// not retained after Close).
type Stream struct {
	listener *Listener
}

func newStream(l *Listener) *Stream {
	return &Stream{listener: l}
}

// FD returns the underlying file descriptor.
func (s *Stream) FD() int {
	return s.listener.FD()
}

// Close closes the underlying descriptor and unregisters it from the
// reactor.
func (s *Stream) Close() error {
	return s.listener.Close()
}

// rawOp runs the acquire-drain-suspend loop shared by read and write (spec
// §4.3): attempt the syscall, await readiness on EAGAIN, retry on EINTR,
// otherwise fail with a *SystemError.
func (s *Stream) rawOp(ctx context.Context, op string, attempt func() (int, error)) (int, error) {
	for {
		n, err := attempt()
		if err == nil {
			return n, nil
		}
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			if _, werr := s.listener.Wait(ctx); werr != nil {
				return 0, werr
			}
			continue
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		return 0, NewSystemError(op, err)
	}
}

// rawRead performs one non-blocking recv into view's backing bytes. A
// zero-length result is reported as ErrEndOfStream, per spec §4.3.
func (s *Stream) rawRead(ctx context.Context, view View) (int, error) {
	n, err := s.rawOp(ctx, "recv", func() (int, error) {
		return unix.Read(s.FD(), view.Bytes())
	})
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrEndOfStream
	}
	return n, nil
}

// rawWrite performs one non-blocking send of view's bytes. A zero-length
// result is reported as ErrEndOfStream per spec §4.3's explicit decision
// (see DESIGN.md Open Question #3) even though POSIX only documents that
// behavior for recv.
func (s *Stream) rawWrite(ctx context.Context, view View) (int, error) {
	n, err := s.rawOp(ctx, "send", func() (int, error) {
		return unix.Write(s.FD(), view.Bytes())
	})
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrEndOfStream
	}
	return n, nil
}

// ReadAtMost reads at most len(view) bytes, returning a prefix view of the
// bytes actually received.
func (s *Stream) ReadAtMost(ctx context.Context, view View) (View, error) {
	n, err := s.rawRead(ctx, view)
	if err != nil {
		return View{}, err
	}
	return view.SubTo(n), nil
}

// ReadExact reads until view is completely filled, looping over partial
// reads. Per spec §8's "read-exact law", on success exactly view.Len()
// bytes were received and stored in order.
func (s *Stream) ReadExact(ctx context.Context, view View) (View, error) {
	full := view
	remaining := view
	for remaining.Len() > 0 {
		n, err := s.rawRead(ctx, remaining)
		if err != nil {
			return View{}, err
		}
		remaining = remaining.SubFrom(n)
	}
	return full, nil
}

// SendAtMost writes at most len(view) bytes, returning the count sent.
func (s *Stream) SendAtMost(ctx context.Context, view View) (int, error) {
	return s.rawWrite(ctx, view)
}

// SendAll writes every byte in view, looping over partial writes. Per spec
// §8's "full-write law", on success exactly view.Len() bytes were passed to
// the underlying write, in order.
func (s *Stream) SendAll(ctx context.Context, view View) error {
	remaining := view
	for remaining.Len() > 0 {
		n, err := s.rawWrite(ctx, remaining)
		if err != nil {
			return err
		}
		remaining = remaining.SubFrom(n)
	}
	return nil
}

// AsyncReadAtMost spawns ReadAtMost as a Task, for callers that want to
// compose it with other suspension points rather than calling it directly.
func (s *Stream) AsyncReadAtMost(ctx context.Context, view View) *Task[View] {
	return Spawn(func() (View, error) { return s.ReadAtMost(ctx, view) })
}

// AsyncSendAll spawns SendAll as a Task.
func (s *Stream) AsyncSendAll(ctx context.Context, view View) *Task[struct{}] {
	return Spawn(func() (struct{}, error) { return struct{}{}, s.SendAll(ctx, view) })
}
