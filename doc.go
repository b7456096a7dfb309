// Package izumo implements a cooperative, single-reactor-goroutine
// asynchronous I/O runtime: a goroutine-backed task abstraction, an
// edge-triggered readiness reactor (epoll on Linux, kqueue on Darwin), TCP
// acceptor/stream façades built on top of it, and an incremental HTTP/1
// request/response head parser.
//
// # Architecture
//
// A [Reactor] owns exactly one polling descriptor and a registry of
// [Listener] values, one per monitored file descriptor. Each [Listener] has
// at most one suspended continuation at a time: a goroutine blocked inside
// [Listener.Wait]. [Reactor.Run] drives the polling loop on whichever
// goroutine calls it and must not be called concurrently from more than one
// goroutine.
//
// [Stream] and [Acceptor] wrap a [Listener] and a non-blocking file
// descriptor, looping on EAGAIN by awaiting readiness rather than blocking
// the OS thread. [Server] drives an [Acceptor] in a loop, spawning a
// detached goroutine per accepted connection.
//
// [RequestHead] and [ResponseHead] parse HTTP/1 message heads incrementally:
// fed any prefix of the wire bytes, they report whether the prefix already
// contains a complete head, is a valid-so-far but incomplete prefix, or is
// malformed.
//
// # Task model
//
// Go has no stackless coroutines, so [Task] is a goroutine-backed future
// rather than a literal coroutine frame; see DESIGN.md for the reasoning.
// It still honors the same contract: a task starts eagerly, has at most one
// awaiter, and propagates failure through [Task.Await] the way the spec's
// "symmetric transfer" propagates a re-raised exception.
//
// # Thread safety
//
// [Reactor.Run] must run on a single goroutine. [Reactor.Listen] and
// [Listener.Close] are safe to call from any goroutine. [Task],
// [Stream], and [Acceptor] values are not safe for concurrent use from more
// than one goroutine at a time — each represents a single in-flight
// operation, exactly as the C++ source they are ported from does not
// support concurrent operations on one connection.
package izumo
