package cellular

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ebobo/cellular_go/pkg/metrics"
	"github.com/ebobo/cellular_go/pkg/model"
)

// Config is the controller configuration
type Config struct {
	Store      ConfigStore
	Modem      Modem
	NewManager ManagerFactory
	NewUsage   UsageFactory
	Watchdog   Watchdog
	Events     EventSink
	Metrics    *metrics.Metrics
}

// Controller owns the cellular configuration, the modem device name and the
// live connection manager.
type Controller struct {
	store      ConfigStore
	modem      Modem
	newManager ManagerFactory
	newUsage   UsageFactory
	watchdog   Watchdog
	events     EventSink
	metrics    *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	bg     sync.WaitGroup

	config  model.Config
	devName string
	mgr     Manager
	usage   UsageTracker
	init    *Job[DiscoveryResult]
}

// New loads the stored configuration and returns a controller that has not
// started discovery yet.
func New(c Config) (*Controller, error) {
	cfg, err := c.Store.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("unable to load cellular configuration: %w", err)
	}
	cfg.Normalize()

	m := c.Metrics
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}

	return &Controller{
		store:      c.Store,
		modem:      c.Modem,
		newManager: c.NewManager,
		newUsage:   c.NewUsage,
		watchdog:   c.Watchdog,
		events:     c.Events,
		metrics:    m,
		config:     cfg,
	}, nil
}

// Start writes the watchdog for the stored configuration and starts module
// discovery in the background.
func (c *Controller) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.generateWatchdog()
	c.init = StartJob(func() DiscoveryResult {
		return c.initialize(c.ctx)
	})
}

// Initialized reports whether discovery has finished, whatever its outcome
func (c *Controller) Initialized() bool {
	return c.init != nil && c.init.Done()
}

// Exists reports whether resource id can be read or updated. It is false for
// every id until discovery has finished.
func (c *Controller) Exists(id int) bool {
	return c.Initialized() && id == model.ResourceID
}

// Discovery returns the discovery outcome once it is known
func (c *Controller) Discovery() (DiscoveryResult, bool) {
	if c.init == nil {
		return DiscoveryResult{}, false
	}
	return c.init.Result()
}

// Shutdown cancels discovery, waits for background work and stops the manager
func (c *Controller) Shutdown() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.init != nil {
		c.init.Wait()
	}
	c.bg.Wait()

	if c.mgr != nil {
		c.mgr.Stop()
		c.mgr = nil
	}
	log.Printf("cellular controller stopped")
}

// Config returns the current configuration
func (c *Controller) Config() model.Config {
	return c.config
}

func (c *Controller) generateWatchdog() {
	err := c.watchdog.Generate(
		c.config.WatchdogEnabled(),
		c.config.Keepalive.TargetHost,
		c.devName,
		c.config.Keepalive.Reboot.Cycles)
	if err != nil {
		log.Printf("failed to generate keepalive watchdog: %v", err)
	}
}
