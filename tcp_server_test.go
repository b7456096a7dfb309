package izumo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

var errMismatch = errors.New("echoed payload did not match")

// TestServerEchoesAcceptedConnections is a basic wiring smoke test for
// Server/Acceptor: a handful of concurrent plain-TCP clients, each of which
// writes one short line and expects it echoed back on the same connection.
// It does not exercise chunked reads or half-close — see
// TestStreamEchoLoopUnderChunkedReadinessWithHalfClose for spec §8 scenario
// 6 ("echo under load") itself.
func TestServerEchoesAcceptedConnections(t *testing.T) {
	r, err := NewReactor()
	require.NoError(t, err)
	defer r.Close()

	const port = 18181
	server, err := NewServer(r, "127.0.0.1", port, func(ctx context.Context, s *Stream) error {
		buf := NewBuffer(256)
		view, err := s.ReadAtMost(ctx, buf.View())
		if err != nil {
			return err
		}
		return s.SendAll(ctx, view)
	})
	require.NoError(t, err)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = r.Run(ctx) }()
	go func() { _ = server.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)

	const clients = 8
	results := make(chan error, clients)
	for i := 0; i < clients; i++ {
		go func(i int) {
			results <- runEchoClient(port, []byte("hello from client\n"))
		}(i)
	}

	for i := 0; i < clients; i++ {
		select {
		case err := <-results:
			require.NoError(t, err)
		case <-time.After(3 * time.Second):
			t.Fatal("client timed out waiting for echo")
		}
	}
}

func runEchoClient(port int, payload []byte) error {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)

	addr := &unix.SockaddrInet4{Port: port, Addr: [4]byte{127, 0, 0, 1}}
	for {
		err := unix.Connect(fd, addr)
		if err == nil || err == unix.EISCONN {
			break
		}
		if err == unix.EINTR || err == unix.EINPROGRESS {
			continue
		}
		return err
	}

	if _, err := unix.Write(fd, payload); err != nil {
		return err
	}

	out := make([]byte, len(payload))
	got := 0
	for got < len(out) {
		n, err := unix.Read(fd, out[got:])
		if err != nil {
			return err
		}
		got += n
	}
	if string(out) != string(payload) {
		return errMismatch
	}
	return nil
}

// TestStreamEchoLoopUnderChunkedReadinessWithHalfClose is spec §8 scenario 6
// ("echo under load"): for a client that sends N bytes and then half-closes,
// an echo loop built from ReadAtMost/SendAll must receive exactly N bytes
// back in order, regardless of how the reactor chunks readiness events.
// The payload is sent as many small writes (rather than one large one) so
// the server side observes multiple separate readiness events and partial
// reads, the shape original_source/src/main.cc's echo loop
// ("while (true) { auto incoming = co_await stream.readAtMost(...);
// co_await stream.sendAll(incoming); }") is actually sensitive to.
func TestStreamEchoLoopUnderChunkedReadinessWithHalfClose(t *testing.T) {
	r, _ := newTestReactor(t)
	a, b := socketpair(t)
	stream := newTestStream(t, r, a)
	defer stream.Close()

	payload := make([]byte, 128*1024)
	for i := range payload {
		payload[i] = byte(i * 7)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Server side: an echo loop over the izumo Stream, exactly the shape
	// the original source's main loop uses — read at most, echo back,
	// repeat until the peer's half-close surfaces as ErrEndOfStream.
	serverDone := make(chan error, 1)
	go func() {
		buf := NewBuffer(4096)
		for {
			chunk, err := stream.ReadAtMost(ctx, buf.View())
			if err != nil {
				if errors.Is(err, ErrEndOfStream) {
					serverDone <- nil
					return
				}
				serverDone <- err
				return
			}
			if err := stream.SendAll(ctx, chunk); err != nil {
				serverDone <- err
				return
			}
		}
	}()

	// Client side: raw, nonblocking socketpair fd, driven with its own
	// EAGAIN-retry loops (the fd was created SOCK_NONBLOCK by socketpair).
	clientResult := make(chan []byte, 1)
	clientErr := make(chan error, 1)
	go func() {
		const writeChunk = 4096
		for i := 0; i < len(payload); i += writeChunk {
			end := i + writeChunk
			if end > len(payload) {
				end = len(payload)
			}
			if err := blockingWrite(b, payload[i:end]); err != nil {
				clientErr <- err
				return
			}
		}
		if err := unix.Shutdown(b, unix.SHUT_WR); err != nil {
			clientErr <- err
			return
		}

		got := make([]byte, 0, len(payload))
		chunk := make([]byte, 4096)
		for len(got) < len(payload) {
			n, err := blockingRead(b, chunk)
			if err != nil {
				clientErr <- err
				return
			}
			if n == 0 {
				break
			}
			got = append(got, chunk[:n]...)
		}
		clientResult <- got
	}()

	select {
	case got := <-clientResult:
		require.Equal(t, payload, got)
	case err := <-clientErr:
		t.Fatalf("client failed: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("client did not receive the full echoed payload")
	}

	select {
	case err := <-serverDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server echo loop did not observe end of stream after half-close")
	}
}

// blockingWrite retries on EAGAIN/EINTR so a nonblocking fd can be driven
// like a blocking one from test code.
func blockingWrite(fd int, data []byte) error {
	for len(data) > 0 {
		n, err := unix.Write(fd, data)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
				time.Sleep(time.Millisecond)
				continue
			}
			return err
		}
		data = data[n:]
	}
	return nil
}

// blockingRead retries on EAGAIN/EINTR so a nonblocking fd can be driven
// like a blocking one from test code.
func blockingRead(fd int, buf []byte) (int, error) {
	for {
		n, err := unix.Read(fd, buf)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
				time.Sleep(time.Millisecond)
				continue
			}
			return 0, err
		}
		return n, nil
	}
}
