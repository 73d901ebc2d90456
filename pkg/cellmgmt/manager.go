package cellmgmt

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ebobo/cellular_go/pkg/cellular"
	"github.com/ebobo/cellular_go/pkg/keepalive"
	"github.com/ebobo/cellular_go/pkg/model"
)

const (
	defaultPollInterval = 10 * time.Second
	setupTimeout        = 60 * time.Second

	// consecutive failed probes before the connection is restarted
	keepaliveMaxFailures = 3

	networkConnected = "connected"
)

// Prober checks that host is reachable over the cellular link
type Prober interface {
	Ping(ctx context.Context, host string) error
}

// Manager keeps one cellular connection up as described by its options.
// It is built for one configuration and thrown away when the configuration
// changes.
type Manager struct {
	cm     *CellMgmt
	opts   cellular.ManagerOptions
	prober Prober

	PollInterval time.Duration

	mu       sync.Mutex
	status   model.Status
	module   *model.ModuleInfo
	static   *model.StaticInfo
	cell     *model.CellularInfo
	network  *model.NetworkInfo
	callback func(model.NetworkInfo)

	// owned by the run goroutine
	profile       int
	attemptSince  time.Time
	lastProbe     time.Time
	probeFailures int
	lastLog       time.Time
	started       bool

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewFactory returns a cellular.ManagerFactory building managers on cm
func NewFactory(cm *CellMgmt) cellular.ManagerFactory {
	return func(opts cellular.ManagerOptions) (cellular.Manager, error) {
		return NewManager(cm, opts)
	}
}

// NewManager identifies the module and checks the SIM, entering the PIN when
// one is given. A refused PIN leaves the manager in pin_error.
func NewManager(cm *CellMgmt, opts cellular.ManagerOptions) (*Manager, error) {
	m := &Manager{
		cm:           cm,
		opts:         opts,
		prober:       keepalive.NewPinger(opts.DevName),
		PollInterval: defaultPollInterval,
		status:       model.StatusInitializing,
		done:         make(chan struct{}),
	}

	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()

	module, err := cm.ModuleInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to identify cellular module: %w", err)
	}
	m.module = &module

	m.status = m.checkSIM(ctx)
	if m.status == model.StatusReady {
		if static, err := cm.SIMInfo(ctx); err == nil {
			m.static = &static
		} else {
			log.Printf("failed to read SIM information: %v", err)
		}
	}

	return m, nil
}

func (m *Manager) checkSIM(ctx context.Context) model.Status {
	status, err := m.cm.SIMStatus(ctx)
	if err != nil {
		log.Printf("failed to read SIM status: %v", err)
		return model.StatusInitializing
	}
	if status != model.StatusPIN || m.opts.PIN == nil {
		return status
	}

	if err := m.cm.UnlockPIN(ctx, *m.opts.PIN); err != nil {
		log.Printf("SIM refused the PIN: %v", err)
		return model.StatusPINError
	}
	return model.StatusReady
}

// SetProber replaces the ICMP prober used for keepalive
func (m *Manager) SetProber(p Prober) {
	m.prober = p
}

func (m *Manager) Status() model.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Manager) ModuleInformation() *model.ModuleInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.module
}

func (m *Manager) StaticInformation() *model.StaticInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.static
}

func (m *Manager) CellularInformation() *model.CellularInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cell
}

func (m *Manager) NetworkInformation() *model.NetworkInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.network
}

func (m *Manager) PDPContextList() ([]model.PDPContext, error) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return m.cm.PDPContexts(ctx)
}

func (m *Manager) SetUpdateNetworkInformationCallback(fn func(model.NetworkInfo)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callback = fn
}

// Start runs the connection loop in the background
func (m *Manager) Start() error {
	if m.cancel != nil {
		return fmt.Errorf("cellular manager for %s already started", m.opts.DevName)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.run(ctx)
	return nil
}

// Stop ends the loop, disconnects, and returns once the callback can no
// longer be called.
func (m *Manager) Stop() {
	m.once.Do(func() {
		if m.cancel == nil {
			return
		}
		m.cancel()
		<-m.done

		if m.started {
			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			defer cancel()
			if err := m.cm.Stop(ctx); err != nil {
				log.Printf("failed to stop cellular connection: %v", err)
			}
		}
		m.setStatus(model.StatusDisconnected)
	})
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.PollInterval)
	defer ticker.Stop()

	for {
		m.step(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// step refreshes the module state once and moves the connection along
func (m *Manager) step(ctx context.Context) {
	if cell, err := m.cm.CellularInfo(ctx); err == nil {
		m.mu.Lock()
		m.cell = &cell
		m.mu.Unlock()
	}

	network, err := m.cm.NetworkInfo(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("failed to read network information of %s: %v", m.opts.DevName, err)
		}
		return
	}
	m.updateNetwork(network)

	switch {
	case !m.opts.Enabled:
		m.disconnect(ctx, network)
	case !m.simReady():
		// nothing to do until the SIM is usable, which needs a new configuration
	case network.Status == networkConnected:
		m.setStatus(model.StatusConnected)
		m.attemptSince = time.Time{}
		m.keepalive(ctx)
	default:
		m.connect(ctx)
	}

	if time.Since(m.lastLog) >= m.opts.LogPeriod {
		m.lastLog = time.Now()
		m.logState()
	}
}

func (m *Manager) simReady() bool {
	switch m.Status() {
	case model.StatusNoSIM, model.StatusPIN, model.StatusPINError, model.StatusInitializing:
		return false
	}
	return true
}

func (m *Manager) connect(ctx context.Context) {
	now := time.Now()
	if m.attemptSince.IsZero() {
		m.attemptSince = now
	} else if m.opts.PDPContextRetryTimeout > 0 && now.Sub(m.attemptSince) >= m.opts.PDPContextRetryTimeout {
		m.profile ^= 1
		m.attemptSince = now
		log.Printf("no connection on %s within %s, switching to the %s profile",
			m.opts.DevName, m.opts.PDPContextRetryTimeout, m.profileName())
	}

	m.setStatus(model.StatusConnecting)
	m.started = true

	apn, pdpType := m.opts.PDPContextPrimaryAPN, m.opts.PDPContextPrimaryType
	if m.profile == 1 {
		apn, pdpType = m.opts.PDPContextSecondaryAPN, m.opts.PDPContextSecondaryType
	}

	id := m.opts.PDPContextID
	if m.opts.PDPContextStatic {
		if err := m.cm.SetPDPContext(ctx, id, apn, pdpType); err != nil {
			log.Printf("failed to write PDP context %d: %v", id, err)
			return
		}
	}

	if err := m.cm.Start(ctx, id, apn, pdpType); err != nil && ctx.Err() == nil {
		log.Printf("failed to connect %s with PDP context %d: %v", m.opts.DevName, id, err)
	}
}

func (m *Manager) disconnect(ctx context.Context, network model.NetworkInfo) {
	if network.Status == networkConnected {
		m.setStatus(model.StatusDisconnecting)
		if err := m.cm.Stop(ctx); err != nil && ctx.Err() == nil {
			log.Printf("failed to disconnect %s: %v", m.opts.DevName, err)
			return
		}
	}
	m.setStatus(model.StatusDisconnected)
}

func (m *Manager) keepalive(ctx context.Context) {
	if !m.opts.KeepaliveEnabled || m.opts.KeepaliveHost == "" {
		return
	}
	if time.Since(m.lastProbe) < m.opts.KeepalivePeriod {
		return
	}
	m.lastProbe = time.Now()

	err := m.prober.Ping(ctx, m.opts.KeepaliveHost)
	if err == nil {
		m.probeFailures = 0
		return
	}
	if ctx.Err() != nil {
		return
	}

	m.probeFailures++
	log.Printf("keepalive probe %d/%d to %s failed: %v",
		m.probeFailures, keepaliveMaxFailures, m.opts.KeepaliveHost, err)
	if m.probeFailures < keepaliveMaxFailures {
		return
	}
	m.probeFailures = 0
	log.Printf("%s unreachable, restarting the connection on %s", m.opts.KeepaliveHost, m.opts.DevName)
	m.setStatus(model.StatusDisconnecting)
	if err := m.cm.Stop(ctx); err != nil {
		log.Printf("failed to disconnect %s: %v", m.opts.DevName, err)
	}
}

// updateNetwork stores network and calls the callback when it changed
func (m *Manager) updateNetwork(network model.NetworkInfo) {
	m.mu.Lock()
	changed := m.network == nil || !m.network.Equal(network)
	m.network = &network
	fn := m.callback
	m.mu.Unlock()

	if changed && fn != nil {
		fn(network)
	}
}

func (m *Manager) setStatus(s model.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = s
}

func (m *Manager) profileName() string {
	if m.profile == 1 {
		return "secondary"
	}
	return "primary"
}

func (m *Manager) logState() {
	m.mu.Lock()
	defer m.mu.Unlock()

	line := fmt.Sprintf("cellular %s: status=%s", m.opts.DevName, m.status)
	if m.cell != nil {
		line += fmt.Sprintf(" mode=%s operator=%q rssi=%ddBm", m.cell.Mode, m.cell.Operator, m.cell.SignalRSSIDBm)
	}
	if m.network != nil && m.network.IP != "" {
		line += fmt.Sprintf(" ip=%s", m.network.IP)
	}
	log.Print(line)
}
