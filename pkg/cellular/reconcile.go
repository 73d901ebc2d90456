package cellular

import (
	"fmt"
	"log"
	"time"

	"github.com/ebobo/cellular_go/pkg/model"
)

const managerLogPeriod = 60 * time.Second

// Apply replaces the configuration of resource id with req and rebuilds the
// connection manager from it. Nothing is changed when req is invalid.
//
// The old manager is stopped before the new one is built, so there is a short
// window without any manager. Reads in that window see the resource as not
// ready.
func (c *Controller) Apply(id int, req model.ConfigRequest) (model.Config, error) {
	if !c.Initialized() || id != model.ResourceID {
		return model.Config{}, ErrNotFound
	}

	if err := req.Validate(); err != nil {
		return model.Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	cfg := req.Config()
	cfg.Normalize()

	if err := c.store.SaveConfig(cfg); err != nil {
		return model.Config{}, fmt.Errorf("unable to persist cellular configuration: %w", err)
	}
	c.config = cfg
	log.Printf("cellular configuration updated: enable=%t static=%t pdp_id=%d apn=%q keepalive=%t",
		cfg.Enable, cfg.PDPContext.Static, cfg.PDPContext.ID, cfg.PDPContext.Primary.APN, cfg.Keepalive.Enable)

	c.rebuild()
	c.generateWatchdog()

	return c.config, nil
}

// rebuild stops the current manager and starts a new one for the current configuration
func (c *Controller) rebuild() {
	if c.mgr != nil {
		c.mgr.Stop()
		c.mgr = nil
	}

	mgr, err := c.newManager(c.managerOptions())
	if err != nil {
		log.Printf("failed to create cellular manager: %v", err)
		return
	}
	c.metrics.Reconciliations.Inc()

	if c.config.PINCode != "" && mgr.Status().PINUnusable() {
		c.clearPIN("update")
	}

	mgr.SetUpdateNetworkInformationCallback(c.publishNetworkInfo)
	c.mgr = mgr
	if err := mgr.Start(); err != nil {
		log.Printf("failed to start cellular manager: %v", err)
	}

	if c.devName != "" && c.newUsage != nil {
		c.usage = c.newUsage(c.devName)
	}
}

func (c *Controller) managerOptions() ManagerOptions {
	cfg := c.config

	var pin *string
	if cfg.PINCode != "" {
		p := cfg.PINCode
		pin = &p
	}

	return ManagerOptions{
		DevName:                 c.devName,
		Enabled:                 cfg.Enable,
		PIN:                     pin,
		PDPContextStatic:        cfg.PDPContext.Static,
		PDPContextID:            cfg.PDPContext.ID,
		PDPContextPrimaryAPN:    cfg.PDPContext.Primary.APN,
		PDPContextPrimaryType:   cfg.PDPContext.Primary.Type,
		PDPContextSecondaryAPN:  cfg.PDPContext.Secondary.APN,
		PDPContextSecondaryType: cfg.PDPContext.Secondary.Type,
		PDPContextRetryTimeout:  time.Duration(cfg.PDPContext.RetryTimeout) * time.Second,
		KeepaliveEnabled:        cfg.Keepalive.Enable,
		KeepaliveHost:           cfg.Keepalive.TargetHost,
		KeepalivePeriod:         time.Duration(cfg.Keepalive.IntervalSec) * time.Second,
		LogPeriod:               managerLogPeriod,
	}
}

// clearPIN forgets a PIN the SIM will not accept so it is never tried again
func (c *Controller) clearPIN(site string) {
	log.Printf("stored PIN was refused by the SIM, clearing it")
	c.config.PINCode = ""
	if err := c.store.SaveConfig(c.config); err != nil {
		log.Printf("failed to persist cleared PIN: %v", err)
	}
	c.metrics.PINCleared.WithLabelValues(site).Inc()
}
