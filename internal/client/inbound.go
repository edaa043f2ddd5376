package client

import (
	"context"
	"errors"

	"github.com/AlexisGoodfellow/WinfreyEdit/internal/ops"
	"github.com/AlexisGoodfellow/WinfreyEdit/internal/transport"
	"github.com/AlexisGoodfellow/WinfreyEdit/internal/wire"
)

// inboundLoop polls the broadcast subscription and routes every batch
// that arrives to enqueueOrApply. It starts before the subscribe
// handshake completes, so broadcasts published in the gap between this
// client's first poll and its subscribe reply are captured rather than
// lost.
func (c *Coordinator) inboundLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		data, err := c.pollSub.NextMsg(c.cfg.PollTimeout)
		if err != nil {
			if errors.Is(err, transport.ErrPollTimeout) {
				continue
			}
			c.logger.Warn().Err(err).Msg("broadcast poll failed")
			continue
		}

		batch, err := wire.DecodeBatch(data)
		if err != nil {
			c.logger.Warn().Err(err).Msg("malformed broadcast batch")
			continue
		}
		c.enqueueOrApply(batch)
	}
}

// enqueueOrApply is the late-join buffering decision point: while the
// client hasn't finished installing its initial snapshot, or while a
// backlog from before that point is still being drained, a fresh batch
// goes to the back of the queue to preserve delivery order; once both
// conditions clear, batches apply immediately.
func (c *Coordinator) enqueueOrApply(batch wire.Batch) {
	c.queueMu.Lock()
	if !c.fullyLoaded || len(c.updateQueue) > 0 {
		c.updateQueue = append(c.updateQueue, batch)
		c.queueMu.Unlock()
		return
	}
	c.queueMu.Unlock()
	c.applyBatch(batch)
}

// drainQueue marks the snapshot as installed and empties anything that
// queued up while the handshake was in flight. fullyLoaded is set before
// the loop starts (not after it ends), so anything enqueueOrApply adds
// while the drain is still running joins the same FIFO queue instead of
// applying out of order.
func (c *Coordinator) drainQueue() {
	c.queueMu.Lock()
	c.fullyLoaded = true
	c.queueMu.Unlock()

	for {
		c.queueMu.Lock()
		if len(c.updateQueue) == 0 {
			c.queueMu.Unlock()
			return
		}
		next := c.updateQueue[0]
		c.updateQueue = c.updateQueue[1:]
		c.queueMu.Unlock()

		c.applyBatch(next)
	}
}

func (c *Coordinator) applyBatch(batch wire.Batch) {
	for _, op := range batch {
		if err := ops.Apply(c.doc, op); err != nil {
			c.logger.Debug().Err(err).Str("op", string(op.Name)).Str("uuid", op.UUID).Msg("failed to apply broadcast operation")
		}
	}
}
