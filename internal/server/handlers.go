package server

import (
	"encoding/json"
	"time"

	"github.com/AlexisGoodfellow/WinfreyEdit/internal/document"
	"github.com/AlexisGoodfellow/WinfreyEdit/internal/ops"
	"github.com/AlexisGoodfellow/WinfreyEdit/internal/wire"
)

func marshalJSON(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// handleRequest is the interactive subject's single entry point. NATS
// invokes it at most once at a time per subscription, which is what
// makes the per-request state machine and the control-plane's direct
// document mutation safe without an extra lock.
func (c *Coordinator) handleRequest(data []byte) []byte {
	op, err := wire.Decode(data)
	if err != nil {
		c.logger.Warn().Err(err).Msg("malformed request")
		return []byte(wire.FailureString("Malformed message", err.Error()))
	}

	if !wire.IsKnown(op.Name) {
		c.m.UnknownOperations.Inc()
		reply, _ := marshalJSON(wire.NoSuchRPCFail())
		return reply
	}

	if wire.IsControlPlane(op.Name) {
		return c.handleControlPlane(op)
	}
	return c.handleDataPlane(op)
}

func (c *Coordinator) handleControlPlane(op wire.Operation) []byte {
	switch op.Name {
	case wire.Subscribe:
		return c.handleSubscribe()
	case wire.Unsubscribe:
		return c.handleUnsubscribe(op)
	case wire.EchoResponse:
		return c.handleEcho(op)
	default:
		return c.handleCursorRequest(op)
	}
}

// handleSubscribe mints a fresh cursor id, creates it at the origin, adds
// the subscriber, and replies with the full current document plus cursor
// table. It also broadcasts the new cursor as a single-element batch so
// already-connected participants see it without waiting for a data-plane
// edit to flush.
func (c *Coordinator) handleSubscribe() []byte {
	id := newCursorID()
	if err := c.doc.Create(id, 0, 0); err != nil {
		c.logger.Error().Err(err).Str("uuid", id).Msg("failed to create cursor on subscribe")
		reply, _ := marshalJSON(wire.FailReply{Status: "fail", Other: err.Error()})
		return reply
	}

	c.subMu.Lock()
	c.subscribers[id] = struct{}{}
	c.subMu.Unlock()

	c.m.ConnectedClients.Set(float64(c.subscriberCount()))

	reply := wire.SubscribeReply{
		Status: "subscribed",
		Other: wire.SubscribedOther{
			UUID:    id,
			File:    c.doc.Lines(),
			Cursors: cursorPositions(c.doc),
		},
	}
	out, _ := marshalJSON(reply)

	c.broadcastOne(wire.Operation{UUID: id, Name: wire.CreateCursor, Args: []string{id, "0", "0"}})
	return out
}

func (c *Coordinator) handleUnsubscribe(op wire.Operation) []byte {
	id := op.Args[0]
	if err := c.doc.Remove(id); err != nil {
		reply, _ := marshalJSON(wire.FailReply{Status: "fail", Other: err.Error()})
		return reply
	}

	c.subMu.Lock()
	delete(c.subscribers, id)
	delete(c.latencies, id)
	c.subMu.Unlock()

	c.m.ConnectedClients.Set(float64(c.subscriberCount()))

	c.broadcastOne(wire.Operation{UUID: id, Name: wire.RemoveCursor, Args: []string{id}})
	reply, _ := marshalJSON(wire.StatusReply{Status: "unsubscribed"})
	return reply
}

func (c *Coordinator) handleCursorRequest(op wire.Operation) []byte {
	if err := ops.Apply(c.doc, op); err != nil {
		reply, _ := marshalJSON(wire.FailReply{Status: "fail", Other: err.Error()})
		return reply
	}
	c.broadcastOne(op)
	return wire.Null
}

// handleEcho averages a fresh 5-sample latency probe, replaces that
// client's latency entry with the result, and recomputes the global adaptive batch delay as
// max(latencies) + LatencyMargin, per the self-tuning RTT formula.
func (c *Coordinator) handleEcho(op wire.Operation) []byte {
	samples := op.Args
	now := nowSeconds()

	var sum float64
	for i, s := range samples {
		ti, ok := parseSeconds(s)
		if !ok {
			continue
		}
		li := now - (ti - 0.01*float64(len(samples)-i))
		sum += li
	}
	avg := sum / float64(len(samples))
	latency := time.Duration(avg * float64(time.Second))
	if latency < 0 {
		latency = 0
	}

	c.subMu.Lock()
	c.latencies[op.UUID] = latency
	max := latency
	for _, l := range c.latencies {
		if l > max {
			max = l
		}
	}
	c.subMu.Unlock()

	c.batchDelayNanos.Store(int64(max + c.cfg.LatencyMargin))
	c.m.BatchDelay.Set((max + c.cfg.LatencyMargin).Seconds())

	return wire.Null
}

// handleDataPlane applies the staleness filter and, if the edit passes
// it, enqueues it onto the active half of the double-buffered queue for
// the batcher to pick up on its next cycle.
func (c *Coordinator) handleDataPlane(op wire.Operation) []byte {
	t, ok := op.TimeSeconds()
	if ok {
		horizon := nowSeconds() - c.batchDelay().Seconds()
		if t < horizon {
			c.m.OperationsDropped.Inc()
			reply, _ := marshalJSON(wire.StaleDropped())
			return reply
		}
	}

	c.enqueue(op)
	return wire.Null
}

func (c *Coordinator) subscriberCount() int {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	return len(c.subscribers)
}

func (c *Coordinator) broadcastOne(op wire.Operation) {
	data, err := wire.EncodeBatch(wire.Batch{op})
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to encode single-operation batch")
		return
	}
	if err := c.conn.Publish(c.cfg.BroadcastSubject, data); err != nil {
		c.logger.Error().Err(err).Msg("failed to publish broadcast")
	}
}

func cursorPositions(doc *document.Document) map[string]wire.CursorPosition {
	cursors := doc.Cursors()
	out := make(map[string]wire.CursorPosition, len(cursors))
	for id, c := range cursors {
		out[id] = wire.CursorPosition{CX: c.Col, CY: c.Line}
	}
	return out
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

func parseSeconds(s string) (float64, bool) {
	op := wire.Operation{Time: s}
	return op.TimeSeconds()
}
