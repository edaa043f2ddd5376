// Package transport narrows the request/reply and publish/subscribe
// primitives the rest of this module needs down to three small
// interfaces. internal/server and internal/client are written entirely
// against these; they never import nats.go directly, which is what lets
// the loopback implementation stand in for a running NATS broker in
// tests.
package transport

import (
	"errors"
	"time"
)

// ErrPollTimeout is returned by PollSubscription.NextMsg when no message
// arrived before the deadline. It is an expected, routine result, not a
// failure — callers loop on it.
var ErrPollTimeout = errors.New("transport: poll timeout")

// Subscription is a live request/reply registration on the server side.
type Subscription interface {
	Unsubscribe() error
}

// PollSubscription is a broadcast-side subscription read with a bounded
// poll, the analogue of a ZeroMQ SUB socket polled with a timeout.
type PollSubscription interface {
	// NextMsg blocks for up to timeout waiting for the next message. It
	// returns ErrPollTimeout, not data, if none arrives in time.
	NextMsg(timeout time.Duration) ([]byte, error)
	Unsubscribe() error
}

// Conn is everything a coordinator needs from the transport layer.
type Conn interface {
	// Publish sends data once, fire-and-forget, on subject.
	Publish(subject string, data []byte) error

	// Request sends data on subject and blocks for the first reply, or
	// until timeout elapses.
	Request(subject string, data []byte, timeout time.Duration) ([]byte, error)

	// SubscribeRequest registers handler to be invoked, synchronously and
	// one at a time, for every request arriving on subject; its return
	// value is sent back as the reply.
	SubscribeRequest(subject string, handler func(data []byte) []byte) (Subscription, error)

	// SubscribeSync registers a poll-style subscription on subject.
	SubscribeSync(subject string) (PollSubscription, error)

	// Close releases the connection and all subscriptions on it.
	Close() error
}
