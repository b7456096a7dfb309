package izumo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// newTestReactor builds a Reactor and starts its Run loop on a background
// goroutine for the duration of the test.
func newTestReactor(t *testing.T) (*Reactor, context.CancelFunc) {
	t.Helper()
	r, err := NewReactor()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = r.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		_ = r.Close()
	})
	return r, cancel
}

func socketpair(t *testing.T) (a, b int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestListenerWaitReturnsOnReadiness(t *testing.T) {
	r, _ := newTestReactor(t)
	a, b := socketpair(t)

	la, err := r.Listen(a)
	require.NoError(t, err)
	defer la.Close()

	done := make(chan IOEvents, 1)
	go func() {
		ev, werr := la.Wait(context.Background())
		require.NoError(t, werr)
		done <- ev
	}()

	time.Sleep(20 * time.Millisecond)
	_, err = unix.Write(b, []byte("x"))
	require.NoError(t, err)

	select {
	case ev := <-done:
		require.NotZero(t, ev&EventRead)
	case <-time.After(time.Second):
		t.Fatal("listener did not wake up on readiness")
	}
}

func TestListenerWaitBusyReturnsError(t *testing.T) {
	r, _ := newTestReactor(t)
	a, _ := socketpair(t)

	la, err := r.Listen(a)
	require.NoError(t, err)
	defer la.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	go func() {
		close(started)
		_, _ = la.Wait(ctx)
	}()
	<-started
	time.Sleep(20 * time.Millisecond)

	_, err = la.Wait(context.Background())
	require.ErrorIs(t, err, ErrListenerBusy)
}

func TestListenerWaitContextCancellation(t *testing.T) {
	r, _ := newTestReactor(t)
	a, _ := socketpair(t)

	la, err := r.Listen(a)
	require.NoError(t, err)
	defer la.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = la.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The slot must be free again for a fresh Wait after cancellation.
	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel2()
	_, err = la.Wait(ctx2)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
