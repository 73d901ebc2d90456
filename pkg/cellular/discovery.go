package cellular

import (
	"context"
	"errors"
	"log"
	"time"
)

const (
	maxDiscoveryAttempts = 3
	powerCycleTimeout    = 60 * time.Second
)

// DiscoveryResult is the outcome of module discovery. Discovery runs once per
// process; a modem that was not found stays unknown until restart.
type DiscoveryResult struct {
	DevName     string
	Attempts    int
	Unsupported bool
}

// Found reports whether a device name was resolved
func (r DiscoveryResult) Found() bool {
	return r.DevName != ""
}

// initialize is the body of the discovery job
func (c *Controller) initialize(ctx context.Context) DiscoveryResult {
	res := c.discover(ctx)
	if ctx.Err() != nil {
		return res
	}

	c.devName = res.DevName
	switch {
	case res.Found():
		log.Printf("cellular module found at %s after %d attempt(s)", res.DevName, res.Attempts)
	case res.Unsupported:
		log.Printf("no supported cellular module, giving up")
	default:
		log.Printf("cellular module not found after %d attempts", res.Attempts)
	}

	c.generateWatchdog()
	c.rebuild()
	return res
}

func (c *Controller) discover(ctx context.Context) DiscoveryResult {
	var res DiscoveryResult

	for res.Attempts < maxDiscoveryAttempts && ctx.Err() == nil {
		res.Attempts++
		c.metrics.DiscoveryAttempts.Inc()

		info, err := c.modem.ModuleInfo(ctx)
		if err == nil {
			res.DevName = info.WWANNode
			return res
		}
		if errors.Is(err, ErrModuleNotSupported) {
			res.Unsupported = true
			return res
		}

		log.Printf("get wwan node failure (attempt %d/%d): %v", res.Attempts, maxDiscoveryAttempts, err)
		c.metrics.PowerCycles.Inc()
		if err := c.modem.PowerCycle(ctx, powerCycleTimeout); err != nil {
			log.Printf("modem power cycle failed: %v", err)
		}
	}

	return res
}
