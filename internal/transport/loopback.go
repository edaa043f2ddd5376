package transport

import (
	"fmt"
	"sync"
	"time"
)

// Broker is an in-process stand-in for a NATS server: publish/subscribe
// fanout and a single request handler per subject, all in memory. It
// exists for two reasons: unit tests that exercise the server and client
// coordinators without standing up a real broker, and a single-process
// demo mode. Production wiring always uses Dial instead.
type Broker struct {
	mu         sync.Mutex
	pollSubs   map[string][]*loopbackPollSub
	reqHandler map[string]func([]byte) []byte
	reqMu      sync.Mutex // serializes request handling per the single-dispatcher invariant
}

// NewBroker creates an empty in-process broker.
func NewBroker() *Broker {
	return &Broker{
		pollSubs:   make(map[string][]*loopbackPollSub),
		reqHandler: make(map[string]func([]byte) []byte),
	}
}

// NewConn returns a Conn backed by this broker. Multiple conns from the
// same broker see each other's publishes and requests, as if connected
// to the same NATS server.
func (b *Broker) NewConn() Conn {
	return &loopbackConn{broker: b}
}

func (b *Broker) publish(subject string, data []byte) {
	b.mu.Lock()
	subs := append([]*loopbackPollSub(nil), b.pollSubs[subject]...)
	b.mu.Unlock()
	for _, s := range subs {
		select {
		case s.ch <- data:
		default:
			// Slow subscriber: drop rather than block the publisher,
			// matching a real broker's behavior under backpressure.
		}
	}
}

func (b *Broker) request(subject string, data []byte) ([]byte, error) {
	b.mu.Lock()
	handler, ok := b.reqHandler[subject]
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("transport: loopback: no responder for %q", subject)
	}
	b.reqMu.Lock()
	defer b.reqMu.Unlock()
	return handler(data), nil
}

func (b *Broker) subscribeRequest(subject string, handler func([]byte) []byte) Subscription {
	b.mu.Lock()
	b.reqHandler[subject] = handler
	b.mu.Unlock()
	return loopbackRequestSub{broker: b, subject: subject}
}

func (b *Broker) subscribeSync(subject string) *loopbackPollSub {
	s := &loopbackPollSub{broker: b, subject: subject, ch: make(chan []byte, 256)}
	b.mu.Lock()
	b.pollSubs[subject] = append(b.pollSubs[subject], s)
	b.mu.Unlock()
	return s
}

func (b *Broker) unsubscribeSync(s *loopbackPollSub) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.pollSubs[s.subject]
	for i, cur := range subs {
		if cur == s {
			b.pollSubs[s.subject] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

func (b *Broker) unsubscribeRequest(subject string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.reqHandler, subject)
}

type loopbackConn struct {
	broker *Broker
}

func (c *loopbackConn) Publish(subject string, data []byte) error {
	c.broker.publish(subject, data)
	return nil
}

func (c *loopbackConn) Request(subject string, data []byte, timeout time.Duration) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		d, err := c.broker.request(subject, data)
		done <- result{d, err}
	}()
	select {
	case r := <-done:
		return r.data, r.err
	case <-time.After(timeout):
		return nil, fmt.Errorf("transport: loopback: request to %q: %w", subject, ErrPollTimeout)
	}
}

func (c *loopbackConn) SubscribeRequest(subject string, handler func(data []byte) []byte) (Subscription, error) {
	return c.broker.subscribeRequest(subject, handler), nil
}

func (c *loopbackConn) SubscribeSync(subject string) (PollSubscription, error) {
	return c.broker.subscribeSync(subject), nil
}

func (c *loopbackConn) Close() error {
	return nil
}

type loopbackPollSub struct {
	broker  *Broker
	subject string
	ch      chan []byte
}

func (s *loopbackPollSub) NextMsg(timeout time.Duration) ([]byte, error) {
	select {
	case data := <-s.ch:
		return data, nil
	case <-time.After(timeout):
		return nil, ErrPollTimeout
	}
}

func (s *loopbackPollSub) Unsubscribe() error {
	s.broker.unsubscribeSync(s)
	return nil
}

type loopbackRequestSub struct {
	broker  *Broker
	subject string
}

func (s loopbackRequestSub) Unsubscribe() error {
	s.broker.unsubscribeRequest(s.subject)
	return nil
}
