package model

// Status is the connectivity state reported by the modem manager
type Status string

const (
	StatusInitializing     Status = "initializing"
	StatusNoSIM            Status = "nosim"
	StatusPIN              Status = "pin"
	StatusPINError         Status = "pin_error"
	StatusReady            Status = "ready"
	StatusConnecting       Status = "connecting"
	StatusConnected        Status = "connected"
	StatusDisconnecting    Status = "disconnecting"
	StatusDisconnected     Status = "disconnected"
	StatusServiceSearching Status = "service_searching"
	StatusPowerCycle       Status = "power_cycle"

	// StatusUnavailable is only reported in views built without a live manager.
	StatusUnavailable Status = "unavailable"
)

// PINUnusable reports whether the SIM is asking for a PIN or refused the one it was given.
// A stored PIN is never worth retrying in either state.
func (s Status) PINUnusable() bool {
	return s == StatusPIN || s == StatusPINError
}

// ResourceID is the only cellular resource a gateway exposes.
const ResourceID = 1

const (
	PDPTypeIPv4   = "ipv4"
	PDPTypeIPv6   = "ipv6"
	PDPTypeIPv4v6 = "ipv4v6"
)

type PDPProfile struct {
	APN  string `json:"apn" yaml:"apn"`
	Type string `json:"type" yaml:"type"`
}

type PDPContextConfig struct {
	Static       bool       `json:"static" yaml:"static"`
	ID           int        `json:"id" yaml:"id"`
	RetryTimeout int        `json:"retryTimeout" yaml:"retryTimeout"`
	Primary      PDPProfile `json:"primary" yaml:"primary"`
	Secondary    PDPProfile `json:"secondary" yaml:"secondary"`
}

type Reboot struct {
	Enable bool `json:"enable" yaml:"enable"`
	Cycles int  `json:"cycles" yaml:"cycles"`
}

type Keepalive struct {
	Enable      bool   `json:"enable" yaml:"enable"`
	TargetHost  string `json:"targetHost" yaml:"targetHost"`
	IntervalSec int    `json:"intervalSec" yaml:"intervalSec"`
	Reboot      Reboot `json:"reboot" yaml:"reboot"`
}

// Config is the persisted cellular configuration, a single record per gateway
type Config struct {
	ID         int              `json:"id" yaml:"id"`
	Enable     bool             `json:"enable" yaml:"enable"`
	PDPContext PDPContextConfig `json:"pdpContext" yaml:"pdpContext"`
	PINCode    string           `json:"pinCode" yaml:"pinCode"`
	Keepalive  Keepalive        `json:"keepalive" yaml:"keepalive"`
}

// Normalize applies the rules every accepted configuration must satisfy.
// A static PDP context always uses the first profile slot.
func (c *Config) Normalize() {
	c.ID = ResourceID
	if c.PDPContext.Static {
		c.PDPContext.ID = 1
	}
}

// WatchdogEnabled is the combined condition under which the reboot watchdog is installed.
func (c Config) WatchdogEnabled() bool {
	return c.Enable && c.Keepalive.Enable && c.Keepalive.Reboot.Enable
}

// DefaultConfig is stored when a gateway boots without any configuration.
func DefaultConfig() Config {
	return Config{
		ID:     ResourceID,
		Enable: true,
		PDPContext: PDPContextConfig{
			Static:       true,
			ID:           1,
			RetryTimeout: 120,
			Primary:      PDPProfile{APN: "internet", Type: PDPTypeIPv4v6},
			Secondary:    PDPProfile{Type: PDPTypeIPv4v6},
		},
		Keepalive: Keepalive{
			Enable:      false,
			TargetHost:  "8.8.8.8",
			IntervalSec: 60,
			Reboot:      Reboot{Enable: false, Cycles: 1},
		},
	}
}

// Snapshots reported by the modem manager. Any of them may be missing.

type ModuleInfo struct {
	Module   string `json:"module"`
	WWANNode string `json:"wwanNode"`
	IMEI     string `json:"imei"`
	ESN      string `json:"esn"`
	MAC      string `json:"mac"`
}

type StaticInfo struct {
	IMSI           string `json:"imsi"`
	ICCID          string `json:"iccId"`
	PINRetryRemain int    `json:"pinRetryRemain"`
}

type CellularInfo struct {
	Mode          string  `json:"mode"`
	SignalCSQ     int     `json:"csq"`
	SignalRSSIDBm int     `json:"rssi"`
	SignalECIODBm float64 `json:"ecio"`
	Operator      string  `json:"operator"`
	LAC           string  `json:"lac"`
	TAC           string  `json:"tac"`
	NID           string  `json:"nid"`
	CellID        string  `json:"cellId"`
	BID           string  `json:"bid"`
}

type NetworkInfo struct {
	Status  string   `json:"status"`
	IP      string   `json:"ip"`
	Netmask string   `json:"netmask"`
	Gateway string   `json:"gateway"`
	DNS     []string `json:"dns"`
}

// Equal compares two network snapshots field by field.
func (n NetworkInfo) Equal(o NetworkInfo) bool {
	if n.Status != o.Status || n.IP != o.IP || n.Netmask != o.Netmask || n.Gateway != o.Gateway {
		return false
	}
	if len(n.DNS) != len(o.DNS) {
		return false
	}
	for i := range n.DNS {
		if n.DNS[i] != o.DNS[i] {
			return false
		}
	}
	return true
}

// PDPContext is one profile as reported by the modem
type PDPContext struct {
	ID   int    `json:"id"`
	APN  string `json:"apn"`
	Type string `json:"type"`
}
