package server

import (
	"context"
	"sort"
	"time"

	"github.com/AlexisGoodfellow/WinfreyEdit/internal/ops"
	"github.com/AlexisGoodfellow/WinfreyEdit/internal/wire"
)

// enqueue appends op to whichever half of the double-buffered queue is
// currently active. The batcher swaps the active pointer under the same
// lock so ingress never blocks on the batcher applying the other half.
func (c *Coordinator) enqueue(op wire.Operation) {
	c.queueMu.Lock()
	if c.activeQ1 {
		c.q1 = append(c.q1, op)
	} else {
		c.q2 = append(c.q2, op)
	}
	c.queueMu.Unlock()
}

// drainActive swaps the active queue pointer and returns everything that
// had accumulated on it, leaving both halves ready for the next cycle.
func (c *Coordinator) drainActive() []wire.Operation {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()

	var drained []wire.Operation
	if c.activeQ1 {
		drained = c.q1
		c.q1 = nil
	} else {
		drained = c.q2
		c.q2 = nil
	}
	c.activeQ1 = !c.activeQ1
	return drained
}

// batcherLoop sleeps for the current adaptive delay, drains and sorts
// the batch that accumulated, applies it to the document in order, and
// publishes it. An empty batch is not published.
func (c *Coordinator) batcherLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.batchDelay()):
		}

		batch := c.drainActive()
		if len(batch) == 0 {
			continue
		}

		sort.SliceStable(batch, func(i, j int) bool {
			ti, _ := batch[i].TimeSeconds()
			tj, _ := batch[j].TimeSeconds()
			return ti < tj
		})

		for _, op := range batch {
			if err := ops.Apply(c.doc, op); err != nil {
				c.logger.Warn().Err(err).Str("uuid", op.UUID).Str("op", string(op.Name)).Msg("failed to apply batched operation")
			}
		}

		c.m.BatchSize.Observe(float64(len(batch)))

		data, err := wire.EncodeBatch(batch)
		if err != nil {
			c.logger.Error().Err(err).Msg("failed to encode batch")
			continue
		}
		if err := c.conn.Publish(c.cfg.BroadcastSubject, data); err != nil {
			c.logger.Error().Err(err).Msg("failed to publish batch")
		}
	}
}
