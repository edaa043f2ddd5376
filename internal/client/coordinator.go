// Package client implements the participant-side coordinator: the
// subscribe handshake, late-join buffering of broadcasts that arrive
// before the initial snapshot, inbound batch application, outbound edit
// emission under the server's clock-offset convention, and the periodic
// echo probe that feeds the server's adaptive batch delay.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/AlexisGoodfellow/WinfreyEdit/internal/document"
	"github.com/AlexisGoodfellow/WinfreyEdit/internal/transport"
	"github.com/AlexisGoodfellow/WinfreyEdit/internal/wire"
)

// requestTimeout bounds every interactive request/reply round trip this
// coordinator makes. It is not configurable per-spec, since timeouts are
// a transport-layer property rather than something the editing protocol
// prescribes.
const requestTimeout = 5 * time.Second

// OffsetSource supplies the coordinator's current clock offset against
// the server's reference time. It is an external collaborator, per the
// outbound edit timestamp convention (spec'd as ltime = now - offset);
// ZeroOffset is the default when no shared clock is available.
type OffsetSource interface {
	Offset() time.Duration
}

// ZeroOffset is an OffsetSource that always reports zero skew.
type ZeroOffset struct{}

// Offset implements OffsetSource.
func (ZeroOffset) Offset() time.Duration { return 0 }

// Config configures a Coordinator.
type Config struct {
	InteractiveSubject   string
	BroadcastSubject     string
	PollTimeout          time.Duration
	ClockRefreshInterval time.Duration
}

// Coordinator is the participant side of the system.
type Coordinator struct {
	cfg       Config
	conn      transport.Conn
	logger    zerolog.Logger
	offset    OffsetSource
	callbacks document.Callbacks

	doc  *document.Document
	myID string

	timeMu sync.Mutex

	queueMu     sync.Mutex
	updateQueue []wire.Batch
	fullyLoaded bool

	pollSub transport.PollSubscription
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped atomic.Bool
}

// New builds a Coordinator. callbacks (may be nil) receives document
// change notifications once the snapshot is installed; offset (may be
// nil, defaulting to ZeroOffset{}) supplies the clock-skew correction
// applied to outbound edit timestamps.
func New(cfg Config, conn transport.Conn, callbacks document.Callbacks, offset OffsetSource, logger zerolog.Logger) *Coordinator {
	if offset == nil {
		offset = ZeroOffset{}
	}
	return &Coordinator{
		cfg:       cfg,
		conn:      conn,
		logger:    logger,
		offset:    offset,
		callbacks: callbacks,
		doc:       document.New([]string{""}, callbacks),
	}
}

// MyID returns the cursor id the server assigned this client during
// Subscribe. It is empty until Subscribe succeeds.
func (c *Coordinator) MyID() string {
	return c.myID
}

// Document returns the coordinator's local view of the hosted document.
// Callers must not mutate it directly; all mutation flows through
// applied broadcasts.
func (c *Coordinator) Document() *document.Document {
	return c.doc
}

// Subscribe performs the full join sequence: it starts the background
// broadcast poll loop first (so broadcasts arriving before the reply are
// buffered, not lost), sends the subscribe request, installs the
// returned snapshot, and drains anything that queued up in the
// meantime. It also starts the periodic echo probe.
func (c *Coordinator) Subscribe(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	sub, err := c.conn.SubscribeSync(c.cfg.BroadcastSubject)
	if err != nil {
		cancel()
		return fmt.Errorf("client: subscribe to broadcast: %w", err)
	}
	c.pollSub = sub

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.inboundLoop(ctx)
	}()

	reqOp := wire.Operation{UUID: "0", Name: wire.Subscribe, Args: []string{}}
	data, err := wire.Encode(reqOp)
	if err != nil {
		return err
	}
	respData, err := c.conn.Request(c.cfg.InteractiveSubject, data, requestTimeout)
	if err != nil {
		return fmt.Errorf("client: subscribe request: %w", err)
	}

	var reply wire.SubscribeReply
	if err := json.Unmarshal(respData, &reply); err != nil {
		return fmt.Errorf("client: decode subscribe reply: %w", err)
	}
	if reply.Status != "subscribed" {
		return fmt.Errorf("client: subscribe rejected: status %q", reply.Status)
	}

	c.myID = reply.Other.UUID
	c.installSnapshot(reply.Other)
	c.drainQueue()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.echoLoop(ctx)
	}()

	c.logger.Info().Str("uuid", c.myID).Msg("subscribed")
	return nil
}

func (c *Coordinator) installSnapshot(other wire.SubscribedOther) {
	c.doc = document.New(other.File, c.callbacks)
	for id, pos := range other.Cursors {
		if err := c.doc.Create(id, pos.CY, pos.CX); err != nil {
			c.logger.Warn().Err(err).Str("uuid", id).Msg("failed to install cursor from snapshot")
		}
	}
}

// Unsubscribe sends the unsubscribe request and stops both background
// loops. Only the first call does anything; later calls return nil
// without sending a request. Further edits after this point are
// rejected by the caller's own bookkeeping, not by this coordinator.
func (c *Coordinator) Unsubscribe() error {
	if !c.stopped.CompareAndSwap(false, true) {
		return nil
	}

	op := wire.Operation{UUID: c.myID, Name: wire.Unsubscribe, Args: []string{c.myID}}
	data, err := wire.Encode(op)
	if err == nil {
		if _, reqErr := c.conn.Request(c.cfg.InteractiveSubject, data, requestTimeout); reqErr != nil {
			c.logger.Warn().Err(reqErr).Msg("unsubscribe request failed")
		}
	}

	if c.cancel != nil {
		c.cancel()
	}
	if c.pollSub != nil {
		_ = c.pollSub.Unsubscribe()
	}
	c.wg.Wait()
	return nil
}
