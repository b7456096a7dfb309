//go:build !linux && !darwin

package izumo

// newPoller returns nil on platforms without an edge-triggered readiness
// backend; NewReactor turns that into ErrUnsupportedPlatform. Spec §6
// requires "an edge-triggered readiness mechanism" from the environment —
// this package only implements the two POSIX backends the teacher package
// itself supports (epoll, kqueue); Windows IOCP is not completion-based in
// the same edge-triggered sense and is out of scope here.
func newPoller() poller {
	return nil
}
