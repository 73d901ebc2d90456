// Package cellular brings up the cellular modem of a gateway and keeps it
// configured.
//
// A Controller finds the modem once in the background, builds a connection
// Manager from the stored configuration, rebuilds it on every accepted update,
// and keeps the monit keepalive check in step with the configuration. Reads
// aggregate the live manager state, and network changes reported by the
// manager are published as interface events.
//
// The controller has no locks. Updates must be serialized by the caller,
// which is what the HTTP server does.
package cellular

import (
	"context"
	"errors"
	"time"

	"github.com/ebobo/cellular_go/pkg/model"
)

var (
	// ErrNotFound is returned for any resource other than 1 and for every request
	// made before the modem discovery has finished.
	ErrNotFound = errors.New("resource not exist")

	// ErrInvalid wraps validation failures of submitted payloads
	ErrInvalid = errors.New("invalid request")

	// ErrModuleNotSupported tells discovery that no supported module exists at all
	ErrModuleNotSupported = errors.New("no supported cellular module")
)

// Manager drives one cellular connection. Snapshot getters return nil when the
// information is not available yet.
type Manager interface {
	Status() model.Status
	ModuleInformation() *model.ModuleInfo
	StaticInformation() *model.StaticInfo
	CellularInformation() *model.CellularInfo
	NetworkInformation() *model.NetworkInfo
	PDPContextList() ([]model.PDPContext, error)

	// SetUpdateNetworkInformationCallback must be called before Start
	SetUpdateNetworkInformationCallback(fn func(model.NetworkInfo))
	Start() error
	// Stop returns once the manager will not call its callback again
	Stop()
}

// ManagerOptions is everything a Manager is built from
type ManagerOptions struct {
	DevName string
	Enabled bool
	// PIN is nil when no PIN is configured
	PIN *string

	PDPContextStatic        bool
	PDPContextID            int
	PDPContextPrimaryAPN    string
	PDPContextPrimaryType   string
	PDPContextSecondaryAPN  string
	PDPContextSecondaryType string
	PDPContextRetryTimeout  time.Duration

	KeepaliveEnabled bool
	KeepaliveHost    string
	KeepalivePeriod  time.Duration

	LogPeriod time.Duration
}

type ManagerFactory func(ManagerOptions) (Manager, error)

// Modem is the module level tooling used outside of a connection
type Modem interface {
	ModuleInfo(ctx context.Context) (model.ModuleInfo, error)
	PowerCycle(ctx context.Context, timeout time.Duration) error
	Firmware(ctx context.Context) (model.Firmware, error)
	SetFirmware(ctx context.Context, fw model.FirmwareSwitch) error
}

// UsageTracker refreshes and returns the data usage of one interface
type UsageTracker interface {
	Usage() (model.Usage, error)
}

type UsageFactory func(devName string) UsageTracker

type ConfigStore interface {
	LoadConfig() (model.Config, error)
	SaveConfig(c model.Config) error
}

type Watchdog interface {
	Generate(enabled bool, targetHost string, iface string, cycles int) error
}

// EventSink receives events for a resource path such as /network/interfaces/wwan0
type EventSink interface {
	Put(resource string, data any) error
}
