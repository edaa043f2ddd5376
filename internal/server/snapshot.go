package server

import (
	"context"
	"os"
	"time"
)

// snapshotLoop periodically overwrites the hosted document's file with
// the current in-memory text. Failures are logged and counted but never
// stop the loop — a snapshot write failing is not a reason to bring the
// editing session down.
func (c *Coordinator) snapshotLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.SnapshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeSnapshot()
		}
	}
}

func (c *Coordinator) writeSnapshot() {
	text := c.doc.Text()
	if err := os.WriteFile(c.cfg.DocumentPath, []byte(text), 0o644); err != nil {
		c.m.SnapshotErrors.Inc()
		c.logger.Warn().Err(err).Str("path", c.cfg.DocumentPath).Msg("snapshot write failed")
		return
	}
	c.m.SnapshotsWritten.Inc()
}
