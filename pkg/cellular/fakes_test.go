package cellular

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ebobo/cellular_go/pkg/metrics"
	"github.com/ebobo/cellular_go/pkg/model"
)

var errModemBusy = errors.New("modem busy")

type memStore struct {
	mu    sync.Mutex
	cfg   model.Config
	saves int
	err   error
}

func (s *memStore) LoadConfig() (model.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg, nil
}

func (s *memStore) SaveConfig(c model.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.cfg = c
	s.saves++
	return nil
}

func (s *memStore) stored() model.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// fakeModem answers ModuleInfo from a script, one entry per call. The last
// entry repeats once the script is exhausted.
type fakeModem struct {
	mu          sync.Mutex
	script      []error
	info        model.ModuleInfo
	calls       int
	powerCycles int
	gate        chan struct{}
	firmware    model.Firmware
	switched    []model.FirmwareSwitch
}

func (m *fakeModem) ModuleInfo(ctx context.Context) (model.ModuleInfo, error) {
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return model.ModuleInfo{}, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var err error
	if len(m.script) > 0 {
		i := m.calls
		if i >= len(m.script) {
			i = len(m.script) - 1
		}
		err = m.script[i]
	}
	m.calls++
	if err != nil {
		return model.ModuleInfo{}, err
	}
	return m.info, nil
}

func (m *fakeModem) PowerCycle(_ context.Context, timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if timeout != powerCycleTimeout {
		panic("unexpected power cycle timeout")
	}
	m.powerCycles++
	return nil
}

func (m *fakeModem) Firmware(context.Context) (model.Firmware, error) {
	return m.firmware, nil
}

func (m *fakeModem) SetFirmware(_ context.Context, fw model.FirmwareSwitch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.switched = append(m.switched, fw)
	return nil
}

type fakeManager struct {
	mu       sync.Mutex
	opts     ManagerOptions
	status   model.Status
	minfo    *model.ModuleInfo
	sinfo    *model.StaticInfo
	cinfo    *model.CellularInfo
	ninfo    *model.NetworkInfo
	pdpc     []model.PDPContext
	pdpcErr  error
	callback func(model.NetworkInfo)
	started  bool
	stopped  bool
}

func (m *fakeManager) Status() model.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *fakeManager) setStatus(s model.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = s
}

func (m *fakeManager) ModuleInformation() *model.ModuleInfo     { return m.minfo }
func (m *fakeManager) StaticInformation() *model.StaticInfo     { return m.sinfo }
func (m *fakeManager) CellularInformation() *model.CellularInfo { return m.cinfo }
func (m *fakeManager) NetworkInformation() *model.NetworkInfo   { return m.ninfo }

func (m *fakeManager) PDPContextList() ([]model.PDPContext, error) {
	return m.pdpc, m.pdpcErr
}

func (m *fakeManager) SetUpdateNetworkInformationCallback(fn func(model.NetworkInfo)) {
	m.callback = fn
}

func (m *fakeManager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
	return nil
}

func (m *fakeManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
}

// notify behaves like a real manager: a stopped manager stays silent
func (m *fakeManager) notify(info model.NetworkInfo) {
	m.mu.Lock()
	stopped := m.stopped
	m.mu.Unlock()
	if !stopped && m.callback != nil {
		m.callback(info)
	}
}

func (m *fakeManager) isLive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started && !m.stopped
}

type fakeFactory struct {
	mu sync.Mutex
	// status every new manager starts with
	status model.Status
	pdpErr error
	built  []*fakeManager
	// most managers found live at the same time
	maxLive int
}

func (f *fakeFactory) New(opts ManagerOptions) (Manager, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	live := 0
	for _, m := range f.built {
		if m.isLive() {
			live++
		}
	}
	if live+1 > f.maxLive {
		f.maxLive = live + 1
	}

	m := &fakeManager{
		opts:    opts,
		status:  f.status,
		minfo:   &model.ModuleInfo{Module: "MC7354", WWANNode: opts.DevName, IMEI: "356853050000001", MAC: "00:a0:c9:14:c8:29"},
		sinfo:   &model.StaticInfo{IMSI: "001010000000001", ICCID: "8988211000000000001", PINRetryRemain: 3},
		cinfo:   &model.CellularInfo{Mode: "lte", SignalCSQ: 20, SignalRSSIDBm: -73, Operator: "Telenor", TAC: "1A2B", CellID: "01F4A3"},
		ninfo:   &model.NetworkInfo{Status: "connected", IP: "10.64.1.2", Netmask: "255.255.255.252", Gateway: "10.64.1.1", DNS: []string{"10.0.0.53"}},
		pdpc:    []model.PDPContext{{ID: 1, APN: "internet", Type: model.PDPTypeIPv4v6}},
		pdpcErr: f.pdpErr,
	}
	f.built = append(f.built, m)
	return m, nil
}

func (f *fakeFactory) managers() []*fakeManager {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeManager(nil), f.built...)
}

func (f *fakeFactory) last() *fakeManager {
	b := f.managers()
	if len(b) == 0 {
		return nil
	}
	return b[len(b)-1]
}

type fakeUsage struct {
	usage model.Usage
	err   error
}

func (u *fakeUsage) Usage() (model.Usage, error) {
	return u.usage, u.err
}

type watchdogCall struct {
	enabled    bool
	targetHost string
	iface      string
	cycles     int
}

type fakeWatchdog struct {
	mu    sync.Mutex
	calls []watchdogCall
}

func (w *fakeWatchdog) Generate(enabled bool, targetHost string, iface string, cycles int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, watchdogCall{enabled, targetHost, iface, cycles})
	return nil
}

func (w *fakeWatchdog) last() watchdogCall {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls[len(w.calls)-1]
}

func (w *fakeWatchdog) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.calls)
}

type putCall struct {
	resource string
	data     any
}

type fakeSink struct {
	mu   sync.Mutex
	puts []putCall
}

func (s *fakeSink) Put(resource string, data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts = append(s.puts, putCall{resource, data})
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.puts)
}

type testEnv struct {
	ctrl     *Controller
	store    *memStore
	modem    *fakeModem
	factory  *fakeFactory
	usage    *fakeUsage
	watchdog *fakeWatchdog
	sink     *fakeSink
}

func newTestEnv(t *testing.T, cfg model.Config, modem *fakeModem) *testEnv {
	t.Helper()
	if modem == nil {
		modem = &fakeModem{info: model.ModuleInfo{Module: "MC7354", WWANNode: "wwan0"}}
	}
	env := &testEnv{
		store:    &memStore{cfg: cfg},
		modem:    modem,
		factory:  &fakeFactory{status: model.StatusConnected},
		usage:    &fakeUsage{usage: model.Usage{TxKByte: 120, RxKByte: 4096}},
		watchdog: &fakeWatchdog{},
		sink:     &fakeSink{},
	}

	ctrl, err := New(Config{
		Store:      env.store,
		Modem:      env.modem,
		NewManager: env.factory.New,
		NewUsage:   func(string) UsageTracker { return env.usage },
		Watchdog:   env.watchdog,
		Events:     env.sink,
		Metrics:    metrics.New(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	env.ctrl = ctrl
	t.Cleanup(ctrl.Shutdown)
	return env
}

// start runs discovery to completion
func (e *testEnv) start() DiscoveryResult {
	e.ctrl.Start(context.Background())
	return e.ctrl.init.Wait()
}

func boolp(b bool) *bool    { return &b }
func intp(i int) *int       { return &i }
func strp(s string) *string { return &s }

func request(static bool, id int, pin string) model.ConfigRequest {
	return model.ConfigRequest{
		Enable: boolp(true),
		PDPContext: &model.PDPContextRequest{
			Static:       boolp(static),
			ID:           intp(id),
			RetryTimeout: intp(120),
			Primary:      &model.PDPProfileRequest{APN: strp("internet"), Type: model.PDPTypeIPv4v6},
		},
		PINCode: pin,
		Keepalive: &model.KeepaliveRequest{
			Enable:      boolp(true),
			TargetHost:  strp("8.8.8.8"),
			IntervalSec: intp(60),
			Reboot:      &model.RebootRequest{Enable: boolp(true), Cycles: intp(3)},
		},
	}
}
