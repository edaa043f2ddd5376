package client

import (
	"fmt"
	"time"

	"github.com/AlexisGoodfellow/WinfreyEdit/internal/wire"
)

// ltime computes the outbound edit timestamp: the local clock corrected
// by the current offset against the server's reference time. It is
// computed under timeMu, so edit emission and the echo probe never read
// the offset at the same time.
func (c *Coordinator) ltime() float64 {
	c.timeMu.Lock()
	defer c.timeMu.Unlock()
	now := float64(time.Now().UnixNano()) / 1e9
	return now - c.offset.Offset().Seconds()
}

func (c *Coordinator) sendEdit(op wire.Operation) error {
	op = op.WithTime(c.ltime())
	data, err := wire.Encode(op)
	if err != nil {
		return err
	}
	// The reply to a data-plane edit is an acknowledgement only (null or
	// a staleness drop notice); nothing in it feeds back into local
	// state, since this client never applies its own edits optimistically.
	reply, err := c.conn.Request(c.cfg.InteractiveSubject, data, requestTimeout)
	if err != nil {
		return fmt.Errorf("client: send edit: %w", err)
	}
	if string(reply) != string(wire.Null) {
		c.logger.Debug().Str("reply", string(reply)).Str("op", string(op.Name)).Msg("edit not accepted")
	}
	return nil
}

// MoveCursor requests that this client's cursor move one step in
// direction ("left", "right", "up", "down", "backspace", "delete",
// "enter").
func (c *Coordinator) MoveCursor(direction string) error {
	return c.sendEdit(wire.Operation{UUID: c.myID, Name: wire.MoveCursor, Args: []string{c.myID, direction}})
}

// InsertChar requests that ch be inserted at this client's cursor.
func (c *Coordinator) InsertChar(ch string) error {
	return c.sendEdit(wire.Operation{UUID: c.myID, Name: wire.InsertChar, Args: []string{c.myID, ch}})
}
