package transport

import (
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Options mirrors the reconnect/keepalive knobs the pack's NATS clients
// always set explicitly rather than trust defaults for.
type Options struct {
	MaxReconnects   int
	ReconnectWait   time.Duration
	ReconnectJitter time.Duration
	MaxPingsOut     int
	PingInterval    time.Duration
}

// DefaultOptions returns the conservative reconnect policy used
// throughout the pack's NATS wrappers.
func DefaultOptions() Options {
	return Options{
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
		ReconnectJitter: 500 * time.Millisecond,
		MaxPingsOut:     3,
		PingInterval:    20 * time.Second,
	}
}

type natsConn struct {
	nc     *nats.Conn
	logger zerolog.Logger
}

// Dial connects to a NATS server at url and returns a Conn backed by it.
func Dial(url string, opts Options, logger zerolog.Logger) (Conn, error) {
	c := &natsConn{logger: logger}
	natsOpts := []nats.Option{
		nats.MaxReconnects(opts.MaxReconnects),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.ReconnectJitter(opts.ReconnectJitter, opts.ReconnectJitter),
		nats.MaxPingsOutstanding(opts.MaxPingsOut),
		nats.PingInterval(opts.PingInterval),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				c.logger.Warn().Err(err).Msg("nats connection lost")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.logger.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			c.logger.Error().Err(err).Msg("nats async error")
		}),
	}

	conn, err := nats.Connect(url, natsOpts...)
	if err != nil {
		return nil, fmt.Errorf("transport: connect to %s: %w", url, err)
	}
	c.nc = conn
	return c, nil
}

func (c *natsConn) Publish(subject string, data []byte) error {
	if err := c.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("transport: publish %s: %w", subject, err)
	}
	return nil
}

func (c *natsConn) Request(subject string, data []byte, timeout time.Duration) ([]byte, error) {
	msg, err := c.nc.Request(subject, data, timeout)
	if err != nil {
		return nil, fmt.Errorf("transport: request %s: %w", subject, err)
	}
	return msg.Data, nil
}

func (c *natsConn) SubscribeRequest(subject string, handler func(data []byte) []byte) (Subscription, error) {
	sub, err := c.nc.Subscribe(subject, func(msg *nats.Msg) {
		reply := handler(msg.Data)
		if msg.Reply == "" {
			return
		}
		if err := c.nc.Publish(msg.Reply, reply); err != nil {
			c.logger.Error().Err(err).Str("subject", subject).Msg("failed to send reply")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("transport: subscribe request %s: %w", subject, err)
	}
	return natsSubscription{sub}, nil
}

func (c *natsConn) SubscribeSync(subject string) (PollSubscription, error) {
	sub, err := c.nc.SubscribeSync(subject)
	if err != nil {
		return nil, fmt.Errorf("transport: subscribe sync %s: %w", subject, err)
	}
	return natsPollSubscription{sub}, nil
}

func (c *natsConn) Close() error {
	c.nc.Close()
	return nil
}

type natsSubscription struct {
	sub *nats.Subscription
}

func (s natsSubscription) Unsubscribe() error {
	return s.sub.Unsubscribe()
}

type natsPollSubscription struct {
	sub *nats.Subscription
}

func (s natsPollSubscription) NextMsg(timeout time.Duration) ([]byte, error) {
	msg, err := s.sub.NextMsg(timeout)
	if err != nil {
		if errors.Is(err, nats.ErrTimeout) {
			return nil, ErrPollTimeout
		}
		return nil, err
	}
	return msg.Data, nil
}

func (s natsPollSubscription) Unsubscribe() error {
	return s.sub.Unsubscribe()
}
