package izumo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newTestStream(t *testing.T, r *Reactor, fd int) *Stream {
	t.Helper()
	l, err := newListener(r, fd)
	require.NoError(t, err)
	return newStream(l)
}

func TestStreamReadExactAssemblesPartialReads(t *testing.T) {
	r, _ := newTestReactor(t)
	a, b := socketpair(t)
	stream := newTestStream(t, r, a)
	defer stream.Close()

	payload := []byte("hello, world")
	go func() {
		for _, chunk := range [][]byte{payload[:4], payload[4:9], payload[9:]} {
			time.Sleep(5 * time.Millisecond)
			_, _ = unix.Write(b, chunk)
		}
	}()

	buf := NewBuffer(len(payload))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out, err := stream.ReadExact(ctx, buf.View())
	require.NoError(t, err)
	require.Equal(t, payload, out.Bytes())
}

func TestStreamSendAllFlushesPartialWrites(t *testing.T) {
	r, _ := newTestReactor(t)
	a, b := socketpair(t)
	stream := newTestStream(t, r, a)
	defer stream.Close()

	payload := make([]byte, 256*1024)
	for i := range payload {
		payload[i] = byte(i)
	}

	received := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 0, len(payload))
		chunk := make([]byte, 4096)
		for len(buf) < len(payload) {
			n, err := unix.Read(b, chunk)
			if err != nil || n == 0 {
				break
			}
			buf = append(buf, chunk[:n]...)
		}
		received <- buf
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, stream.SendAll(ctx, NewView(payload)))

	select {
	case got := <-received:
		require.Equal(t, payload, got)
	case <-time.After(5 * time.Second):
		t.Fatal("receiver did not observe the full payload")
	}
}

func TestStreamReadAtMostReportsEndOfStream(t *testing.T) {
	r, _ := newTestReactor(t)
	a, b := socketpair(t)
	stream := newTestStream(t, r, a)
	defer stream.Close()

	require.NoError(t, unix.Shutdown(b, unix.SHUT_WR))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	buf := NewBuffer(16)
	_, err := stream.ReadAtMost(ctx, buf.View())
	require.ErrorIs(t, err, ErrEndOfStream)
}
