package component

import (
	"context"
	"time"

	"github.com/elijahnyp/timer_programmer/programmer"
)

// Run polls updatable entities every scan interval until ctx is done.
func (c *EntityComponent) Run(ctx context.Context) {
	ticker := time.NewTicker(c.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log().Debug().Msg("polling stopped")
			return
		case <-ticker.C:
			c.Poll(ctx)
		}
	}
}

// Poll refreshes every entity implementing programmer.Updater. Polls closer
// together than programmer.MinTimeBetweenScans are skipped; it reports whether
// the poll ran.
func (c *EntityComponent) Poll(ctx context.Context) bool {
	c.mu.Lock()
	now := c.now()
	if !c.lastScan.IsZero() && now.Sub(c.lastScan) < programmer.MinTimeBetweenScans {
		c.mu.Unlock()
		c.log().Trace().Msg("poll throttled")
		return false
	}
	c.lastScan = now
	handles := make([]*entityHandle, 0, len(c.entities))
	for _, h := range c.entities {
		handles = append(handles, h)
	}
	c.mu.Unlock()

	for _, h := range handles {
		u, ok := h.entity.(programmer.Updater)
		if !ok {
			continue
		}
		if ctx.Err() != nil {
			return true
		}
		h.mu.Lock()
		err := u.Update(ctx)
		h.mu.Unlock()
		if err != nil {
			c.log().Warn().Err(err).Msgf("update of %s failed", h.entity.EntityID())
			continue
		}
		c.publish(h.entity)
	}
	return true
}
