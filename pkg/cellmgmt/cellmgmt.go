// Package cellmgmt drives the cellular module through the cell_mgmt tool
// shipped on the gateway. The tool prints Key=Value lines; this package turns
// them into model snapshots and implements the connection manager on top.
package cellmgmt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ebobo/cellular_go/pkg/cellular"
	"github.com/ebobo/cellular_go/pkg/model"
)

var (
	// ErrCommand wraps every failed cell_mgmt invocation
	ErrCommand = errors.New("cell_mgmt failed")

	// ErrAllModuleNotSupported is returned by ModuleInfo when the gateway has no
	// module cell_mgmt can drive. It matches cellular.ErrModuleNotSupported.
	ErrAllModuleNotSupported = fmt.Errorf("%w", cellular.ErrModuleNotSupported)
)

const (
	DefaultPath = "/usr/sbin/cell_mgmt"

	moduleUnsupported = "unsupported"
	commandTimeout    = 30 * time.Second
)

// SIM states as printed by cell_mgmt sim_status
const (
	simReady = "READY"
	simPIN   = "SIM PIN"
	simPUK   = "SIM PUK"
	simNone  = "NOSIM"
)

var cgdcontRegex = regexp.MustCompile(`^\+CGDCONT:\s*(\d+),"([^"]*)","([^"]*)"`)

// CellMgmt is a typed wrapper around the cell_mgmt tool
type CellMgmt struct {
	runner Runner
}

func New(runner Runner) *CellMgmt {
	return &CellMgmt{runner: runner}
}

func (c *CellMgmt) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	return c.runner.Run(ctx, args...)
}

func (c *CellMgmt) runKV(ctx context.Context, args ...string) (map[string]string, error) {
	out, err := c.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	return parseKeyValues(out), nil
}

// ModuleInfo reports the module model, its network interface and identity
func (c *CellMgmt) ModuleInfo(ctx context.Context) (model.ModuleInfo, error) {
	kv, err := c.runKV(ctx, "m_info")
	if err != nil {
		return model.ModuleInfo{}, err
	}
	if strings.EqualFold(kv["Module"], moduleUnsupported) {
		return model.ModuleInfo{}, ErrAllModuleNotSupported
	}
	if kv["WWAN_node"] == "" {
		return model.ModuleInfo{}, fmt.Errorf("%w: m_info without WWAN_node", ErrCommand)
	}

	mac := kv["MAC"]
	if mac == "" {
		mac = "00:00:00:00:00:00"
	}
	return model.ModuleInfo{
		Module:   kv["Module"],
		WWANNode: kv["WWAN_node"],
		IMEI:     kv["IMEI"],
		ESN:      kv["ESN"],
		MAC:      mac,
	}, nil
}

// PowerCycle restarts the module and waits up to timeout for it to come back
func (c *CellMgmt) PowerCycle(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := c.runner.Run(ctx, "power_cycle", strconv.Itoa(int(timeout.Seconds())))
	return err
}

// SIMStatus maps the SIM state onto a connection status
func (c *CellMgmt) SIMStatus(ctx context.Context) (model.Status, error) {
	kv, err := c.runKV(ctx, "sim_status")
	if err != nil {
		return model.StatusInitializing, err
	}
	switch strings.ToUpper(kv["SIM"]) {
	case simReady:
		return model.StatusReady, nil
	case simPIN:
		return model.StatusPIN, nil
	case simPUK:
		return model.StatusPINError, nil
	case simNone:
		return model.StatusNoSIM, nil
	}
	return model.StatusInitializing, fmt.Errorf("%w: unknown SIM state %q", ErrCommand, kv["SIM"])
}

// UnlockPIN enters pin. An error means the SIM refused it.
func (c *CellMgmt) UnlockPIN(ctx context.Context, pin string) error {
	_, err := c.run(ctx, "unlock_pin", pin)
	return err
}

func (c *CellMgmt) SIMInfo(ctx context.Context) (model.StaticInfo, error) {
	kv, err := c.runKV(ctx, "sim_info")
	if err != nil {
		return model.StaticInfo{}, err
	}
	retry, err := strconv.Atoi(kv["PIN_retry_remain"])
	if err != nil {
		retry = -1
	}
	return model.StaticInfo{
		IMSI:           kv["IMSI"],
		ICCID:          kv["ICCID"],
		PINRetryRemain: retry,
	}, nil
}

func (c *CellMgmt) CellularInfo(ctx context.Context) (model.CellularInfo, error) {
	kv, err := c.runKV(ctx, "cell_info")
	if err != nil {
		return model.CellularInfo{}, err
	}
	csq, _ := strconv.Atoi(kv["CSQ"])
	rssi, _ := strconv.Atoi(kv["RSSI"])
	ecio, _ := strconv.ParseFloat(kv["ECIO"], 64)
	return model.CellularInfo{
		Mode:          kv["Mode"],
		SignalCSQ:     csq,
		SignalRSSIDBm: rssi,
		SignalECIODBm: ecio,
		Operator:      kv["Operator"],
		LAC:           kv["LAC"],
		TAC:           kv["TAC"],
		NID:           kv["NID"],
		CellID:        kv["CellID"],
		BID:           kv["BID"],
	}, nil
}

func (c *CellMgmt) NetworkInfo(ctx context.Context) (model.NetworkInfo, error) {
	kv, err := c.runKV(ctx, "network_info")
	if err != nil {
		return model.NetworkInfo{}, err
	}
	return model.NetworkInfo{
		Status:  kv["Status"],
		IP:      kv["IP"],
		Netmask: kv["Netmask"],
		Gateway: kv["Gateway"],
		DNS:     strings.Fields(kv["DNS"]),
	}, nil
}

// Start connects using PDP context id with the given profile
func (c *CellMgmt) Start(ctx context.Context, id int, apn string, pdpType string) error {
	_, err := c.run(ctx, "start",
		"PDP_id="+strconv.Itoa(id),
		"APN="+apn,
		"PDP_type="+pdpType)
	return err
}

func (c *CellMgmt) Stop(ctx context.Context) error {
	_, err := c.run(ctx, "stop")
	return err
}

func (c *CellMgmt) PDPContexts(ctx context.Context) ([]model.PDPContext, error) {
	out, err := c.run(ctx, "get_pdp_context")
	if err != nil {
		return nil, err
	}

	list := []model.PDPContext{}
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		m := cgdcontRegex.FindStringSubmatch(strings.TrimSpace(scanner.Text()))
		if m == nil {
			continue
		}
		id, _ := strconv.Atoi(m[1])
		list = append(list, model.PDPContext{
			ID:   id,
			Type: strings.ToLower(m[2]),
			APN:  m[3],
		})
	}
	return list, nil
}

func (c *CellMgmt) SetPDPContext(ctx context.Context, id int, apn string, pdpType string) error {
	_, err := c.run(ctx, "set_pdp_context", strconv.Itoa(id), apn, strings.ToUpper(pdpType))
	return err
}

// Firmware lists the firmware images on the module
func (c *CellMgmt) Firmware(ctx context.Context) (model.Firmware, error) {
	out, err := c.run(ctx, "get_cellular_fw")
	if err != nil {
		return model.Firmware{}, err
	}

	fw := model.Firmware{Switchable: true, Available: []model.FirmwareImage{}}
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 4 {
			continue
		}
		img := model.FirmwareImage{FWVer: fields[1], Config: fields[2], Carrier: fields[3]}
		switch fields[0] {
		case "current":
			fw.Current = &img
		case "preferred":
			fw.Preferred = &img
		case "available":
			fw.Available = append(fw.Available, img)
		}
	}
	return fw, nil
}

// SetFirmware switches the module to another firmware image. The module
// reboots while doing so, which takes minutes.
func (c *CellMgmt) SetFirmware(ctx context.Context, fw model.FirmwareSwitch) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()
	_, err := c.runner.Run(ctx, "set_cellular_fw", fw.FWVer, fw.Config, fw.Carrier)
	return err
}

// parseKeyValues reads Key=Value lines, ignoring everything else
func parseKeyValues(out string) map[string]string {
	kv := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		k, v, ok := strings.Cut(line, "=")
		if !ok || k == "" {
			continue
		}
		kv[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return kv
}
