// Package server implements the host-side coordinator: the authoritative
// document, the subscriber table, the double-buffered batch queue, the
// batcher goroutine, adaptive batch delay, and the periodic snapshot
// task. It owns every piece of shared state the concurrency model
// describes and is the only package that mutates the hosted Document.
package server

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/AlexisGoodfellow/WinfreyEdit/internal/document"
	"github.com/AlexisGoodfellow/WinfreyEdit/internal/metrics"
	"github.com/AlexisGoodfellow/WinfreyEdit/internal/transport"
	"github.com/AlexisGoodfellow/WinfreyEdit/internal/wire"
)

// Config configures a Coordinator.
type Config struct {
	DocumentPath       string
	InteractiveSubject string
	BroadcastSubject   string
	InitialBatchDelay  time.Duration
	LatencyMargin      time.Duration
	SnapshotInterval   time.Duration
}

// Coordinator is the host side of the system: it holds the authoritative
// Document, mediates every subscription, filters and batches incoming
// edits, and publishes ordered broadcasts.
type Coordinator struct {
	cfg    Config
	conn   transport.Conn
	logger zerolog.Logger
	m      *metrics.Registry

	doc *document.Document

	subMu       sync.Mutex
	subscribers map[string]struct{}
	latencies   map[string]time.Duration

	batchDelayNanos atomic.Int64

	queueMu  sync.Mutex
	q1, q2   []wire.Operation
	activeQ1 bool

	reqSub  transport.Subscription
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a Coordinator, loading the initial document from
// cfg.DocumentPath. A missing file starts an empty document, matching
// the original backend's best-effort load.
func New(cfg Config, conn transport.Conn, m *metrics.Registry, logger zerolog.Logger) (*Coordinator, error) {
	text := ""
	if data, err := os.ReadFile(cfg.DocumentPath); err == nil {
		text = string(data)
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	c := &Coordinator{
		cfg:         cfg,
		conn:        conn,
		logger:      logger,
		m:           m,
		doc:         document.NewFromText(text, nil),
		subscribers: make(map[string]struct{}),
		latencies:   make(map[string]time.Duration),
		activeQ1:    true,
	}
	c.batchDelayNanos.Store(int64(cfg.InitialBatchDelay))
	return c, nil
}

// Start subscribes the interactive request handler and launches the
// batcher and snapshot background loops. It returns once the request
// handler is registered; the loops run until ctx is cancelled or Stop is
// called.
func (c *Coordinator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	sub, err := c.conn.SubscribeRequest(c.cfg.InteractiveSubject, c.handleRequest)
	if err != nil {
		cancel()
		return err
	}
	c.reqSub = sub

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.batcherLoop(ctx)
	}()
	go func() {
		defer c.wg.Done()
		c.snapshotLoop(ctx)
	}()

	c.logger.Info().
		Str("interactive_subject", c.cfg.InteractiveSubject).
		Str("broadcast_subject", c.cfg.BroadcastSubject).
		Msg("server coordinator started")
	return nil
}

// Stop cancels the background loops, unsubscribes the interactive
// handler, and waits for a clean shutdown.
func (c *Coordinator) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	var err error
	if c.reqSub != nil {
		err = c.reqSub.Unsubscribe()
	}
	c.wg.Wait()
	return err
}

// batchDelay returns the current adaptive batch delay. Reads are
// lock-free; a stale value only widens or narrows the next sleep
// slightly and never affects correctness (see handleEcho in handlers.go).
func (c *Coordinator) batchDelay() time.Duration {
	return time.Duration(c.batchDelayNanos.Load())
}

func newCursorID() string {
	return uuid.NewString()
}
