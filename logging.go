package izumo

import (
	"io"

	"github.com/sirupsen/logrus"
)

// noopLogger returns a logrus.FieldLogger that discards everything,
// matching eventloop/logging.go's "logging is an infrastructure
// cross-cutting concern; default to a low-overhead no-op" design decision,
// ported onto logrus rather than a bespoke Logger interface (see
// DESIGN.md's per-file grounding for why logrus was chosen here).
func noopLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
