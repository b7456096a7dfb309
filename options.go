package izumo

import "github.com/sirupsen/logrus"

// reactorConfig holds resolved construction options for a Reactor.
// Grounded on eventloop/options.go's loopOptions/LoopOption pattern.
type reactorConfig struct {
	logger logrus.FieldLogger
}

// ReactorOption configures a Reactor at construction time.
type ReactorOption interface {
	applyReactor(*reactorConfig)
}

type reactorOptionFunc func(*reactorConfig)

func (f reactorOptionFunc) applyReactor(c *reactorConfig) { f(c) }

// WithLogger injects a structured logger into a Reactor (and, via
// WithServerLogger, a Server). The core stays silent unless the embedding
// application opts in — logging is an ambient concern carried alongside
// the core even though spec.md treats feature-level logging as an external
// collaborator (SPEC_FULL.md §6).
func WithLogger(logger logrus.FieldLogger) ReactorOption {
	return reactorOptionFunc(func(c *reactorConfig) {
		if logger != nil {
			c.logger = logger
		}
	})
}

func resolveReactorOptions(opts []ReactorOption) *reactorConfig {
	cfg := &reactorConfig{logger: noopLogger()}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyReactor(cfg)
	}
	return cfg
}

// serverConfig holds resolved construction options for a Server.
type serverConfig struct {
	logger  logrus.FieldLogger
	backlog int
}

// ServerOption configures a Server at construction time.
type ServerOption interface {
	applyServer(*serverConfig)
}

type serverOptionFunc func(*serverConfig)

func (f serverOptionFunc) applyServer(c *serverConfig) { f(c) }

// WithServerLogger injects a structured logger into a Server.
func WithServerLogger(logger logrus.FieldLogger) ServerOption {
	return serverOptionFunc(func(c *serverConfig) {
		if logger != nil {
			c.logger = logger
		}
	})
}

// WithBacklog overrides the listen(2) backlog. Per spec §4.3 the backlog
// must be at least 128; values below that are clamped up rather than
// rejected, matching the teacher's tolerant option-resolution style
// (resolveLoopOptions skips nil options rather than erroring on them).
func WithBacklog(n int) ServerOption {
	return serverOptionFunc(func(c *serverConfig) {
		if n > c.backlog {
			c.backlog = n
		}
	})
}

const minBacklog = 128

func resolveServerOptions(opts []ServerOption) *serverConfig {
	cfg := &serverConfig{logger: noopLogger(), backlog: minBacklog}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyServer(cfg)
	}
	if cfg.backlog < minBacklog {
		cfg.backlog = minBacklog
	}
	return cfg
}
