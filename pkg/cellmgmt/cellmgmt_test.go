package cellmgmt

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebobo/cellular_go/pkg/cellular"
	"github.com/ebobo/cellular_go/pkg/model"
)

// scriptRunner answers commands from a table and records what was run
type scriptRunner struct {
	mu      sync.Mutex
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func (r *scriptRunner) Run(_ context.Context, args ...string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, strings.Join(args, " "))
	if err := r.errs[args[0]]; err != nil {
		return "", err
	}
	return r.outputs[args[0]], nil
}

func (r *scriptRunner) ran(prefix string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, c := range r.calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func TestModuleInfo(t *testing.T) {
	r := &scriptRunner{outputs: map[string]string{
		"m_info": "Module=MC7354\nWWAN_node=wwan0\nIMEI=356853050370859\nESN=\nnoise line\n",
	}}
	info, err := New(r).ModuleInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.ModuleInfo{
		Module:   "MC7354",
		WWANNode: "wwan0",
		IMEI:     "356853050370859",
		MAC:      "00:00:00:00:00:00",
	}, info)
}

func TestModuleInfoUnsupported(t *testing.T) {
	r := &scriptRunner{outputs: map[string]string{"m_info": "Module=unsupported\n"}}
	_, err := New(r).ModuleInfo(context.Background())
	assert.ErrorIs(t, err, ErrAllModuleNotSupported)
	assert.ErrorIs(t, err, cellular.ErrModuleNotSupported)
}

func TestModuleInfoNotReady(t *testing.T) {
	r := &scriptRunner{outputs: map[string]string{"m_info": "Module=MC7354\n"}}
	_, err := New(r).ModuleInfo(context.Background())
	assert.ErrorIs(t, err, ErrCommand)
	assert.NotErrorIs(t, err, cellular.ErrModuleNotSupported)

	r = &scriptRunner{errs: map[string]error{"m_info": ErrCommand}}
	_, err = New(r).ModuleInfo(context.Background())
	assert.ErrorIs(t, err, ErrCommand)
}

func TestSIMStatus(t *testing.T) {
	for state, want := range map[string]model.Status{
		"READY":   model.StatusReady,
		"SIM PIN": model.StatusPIN,
		"SIM PUK": model.StatusPINError,
		"NOSIM":   model.StatusNoSIM,
	} {
		r := &scriptRunner{outputs: map[string]string{"sim_status": "SIM=" + state}}
		got, err := New(r).SIMStatus(context.Background())
		require.NoError(t, err, state)
		assert.Equal(t, want, got, state)
	}

	r := &scriptRunner{outputs: map[string]string{"sim_status": "SIM=BUSY"}}
	_, err := New(r).SIMStatus(context.Background())
	assert.ErrorIs(t, err, ErrCommand)
}

func TestSIMInfo(t *testing.T) {
	r := &scriptRunner{outputs: map[string]string{
		"sim_info": "IMSI=001010123456789\nICCID=8901260123456789012\nPIN_retry_remain=2\n",
	}}
	info, err := New(r).SIMInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.StaticInfo{IMSI: "001010123456789", ICCID: "8901260123456789012", PINRetryRemain: 2}, info)

	r.outputs["sim_info"] = "IMSI=001010123456789\n"
	info, err = New(r).SIMInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, -1, info.PINRetryRemain)
}

func TestCellularAndNetworkInfo(t *testing.T) {
	r := &scriptRunner{outputs: map[string]string{
		"cell_info":    "Mode=LTE\nCSQ=18\nRSSI=-77\nECIO=-6.5\nOperator=Telia\nTAC=1F2E\nCellID=12345\n",
		"network_info": "Status=connected\nIP=10.0.0.2\nNetmask=255.255.255.0\nGateway=10.0.0.1\nDNS=8.8.8.8 8.8.4.4\n",
	}}
	cm := New(r)

	cell, err := cm.CellularInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "LTE", cell.Mode)
	assert.Equal(t, 18, cell.SignalCSQ)
	assert.Equal(t, -77, cell.SignalRSSIDBm)
	assert.InDelta(t, -6.5, cell.SignalECIODBm, 0.001)
	assert.Equal(t, "Telia", cell.Operator)
	assert.Equal(t, "1F2E", cell.TAC)
	assert.Equal(t, "12345", cell.CellID)

	network, err := cm.NetworkInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.NetworkInfo{
		Status:  "connected",
		IP:      "10.0.0.2",
		Netmask: "255.255.255.0",
		Gateway: "10.0.0.1",
		DNS:     []string{"8.8.8.8", "8.8.4.4"},
	}, network)
}

func TestPDPContexts(t *testing.T) {
	r := &scriptRunner{outputs: map[string]string{
		"get_pdp_context": "+CGDCONT: 1,\"IPV4V6\",\"internet\",\"\",0,0\n" +
			"+CGDCONT: 3,\"IP\",\"telia.se\",\"\",0,0\n" +
			"OK\n",
	}}
	list, err := New(r).PDPContexts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.PDPContext{
		{ID: 1, APN: "internet", Type: "ipv4v6"},
		{ID: 3, APN: "telia.se", Type: "ip"},
	}, list)

	r.outputs["get_pdp_context"] = "OK\n"
	list, err = New(r).PDPContexts(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestFirmware(t *testing.T) {
	r := &scriptRunner{outputs: map[string]string{
		"get_cellular_fw": "current 05.05.58.00 005.025_002 GENERIC\n" +
			"preferred 05.05.63.01 005.029_000 ATT\n" +
			"available 05.05.58.00 005.025_002 GENERIC\n" +
			"available 05.05.63.01 005.029_000 ATT\n",
	}}
	cm := New(r)

	fw, err := cm.Firmware(context.Background())
	require.NoError(t, err)
	assert.True(t, fw.Switchable)
	require.NotNil(t, fw.Current)
	assert.Equal(t, "GENERIC", fw.Current.Carrier)
	require.NotNil(t, fw.Preferred)
	assert.Equal(t, "05.05.63.01", fw.Preferred.FWVer)
	assert.Len(t, fw.Available, 2)

	require.NoError(t, cm.SetFirmware(context.Background(),
		model.FirmwareSwitch{FWVer: "05.05.63.01", Config: "005.029_000", Carrier: "ATT"}))
	assert.Equal(t, []string{"set_cellular_fw 05.05.63.01 005.029_000 ATT"}, r.ran("set_cellular_fw"))
}

func TestCommandFailure(t *testing.T) {
	failure := errors.New("exit status 1")
	r := &scriptRunner{errs: map[string]error{"network_info": failure}}
	_, err := New(r).NetworkInfo(context.Background())
	assert.ErrorIs(t, err, failure)
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, `'/usr/sbin/cell_mgmt' 'unlock_pin' '12'\''34'`,
		shellQuote([]string{"/usr/sbin/cell_mgmt", "unlock_pin", "12'34"}))
}
