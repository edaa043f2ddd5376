package client

import (
	"context"
	"strconv"
	"time"

	"github.com/AlexisGoodfellow/WinfreyEdit/internal/wire"
)

// echoSampleSpacing is the gap between each of the 5 timestamps an echo
// probe captures, matching the server's RTT formula which assumes
// samples 10ms apart.
const echoSampleSpacing = 10 * time.Millisecond

// echoLoop periodically sends a 5-timestamp echo probe so the server can
// refresh its estimate of this client's round-trip latency and retune
// the adaptive batch delay.
func (c *Coordinator) echoLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.ClockRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.sendEcho(); err != nil {
				c.logger.Debug().Err(err).Msg("echo probe failed")
			}
		}
	}
}

func (c *Coordinator) sendEcho() error {
	samples := make([]string, 5)
	for i := range samples {
		samples[i] = strconv.FormatFloat(c.ltime(), 'f', 6, 64)
		if i < len(samples)-1 {
			time.Sleep(echoSampleSpacing)
		}
	}

	op := wire.Operation{UUID: c.myID, Name: wire.EchoResponse, Args: samples}
	data, err := wire.Encode(op)
	if err != nil {
		return err
	}
	_, err = c.conn.Request(c.cfg.InteractiveSubject, data, requestTimeout)
	return err
}
