package cellmgmt

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/ebobo/cellular_go/pkg/model"
	"github.com/ebobo/cellular_go/pkg/utility"
)

// SimRunner answers cell_mgmt commands for a made up module, so the service can
// run on a machine without cellular hardware.
type SimRunner struct {
	mu        sync.Mutex
	fake      utility.FakeModule
	pin       string
	locked    bool
	connected bool
	apn       string
	pdp       map[int]model.PDPContext
	firmware  []model.FirmwareImage
	preferred int
}

// NewSimRunner creates a module on wwanNode. A non empty pin locks the SIM.
func NewSimRunner(wwanNode string, pin string) *SimRunner {
	fake := utility.GenerateFakeModule(wwanNode)
	log.Printf("simulating cellular module %s (serial %s) on %s", fake.Module.Module, fake.Serial, wwanNode)

	return &SimRunner{
		fake:   fake,
		pin:    pin,
		locked: pin != "",
		pdp: map[int]model.PDPContext{
			1: {ID: 1, APN: "internet", Type: model.PDPTypeIPv4v6},
		},
		firmware: []model.FirmwareImage{
			{FWVer: "05.05.58.00", Config: "005.025_002", Carrier: "GENERIC"},
			{FWVer: "05.05.63.01", Config: "005.029_000", Carrier: "ATT"},
			{FWVer: "05.05.39.02", Config: "005.018_000", Carrier: "VERIZON"},
		},
	}
}

func (s *SimRunner) Run(ctx context.Context, args ...string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCommand, err)
	}
	if len(args) == 0 {
		return "", fmt.Errorf("%w: missing command", ErrCommand)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch args[0] {
	case "m_info":
		m := s.fake.Module
		return keyValues("Module", m.Module, "WWAN_node", m.WWANNode, "IMEI", m.IMEI, "ESN", m.ESN, "MAC", m.MAC), nil
	case "power_cycle":
		s.connected = false
		return "", nil
	case "sim_status":
		if s.locked {
			return keyValues("SIM", simPIN), nil
		}
		return keyValues("SIM", simReady), nil
	case "unlock_pin":
		if len(args) < 2 || args[1] != s.pin {
			s.fake.Static.PINRetryRemain--
			return "", fmt.Errorf("%w: unlock_pin: incorrect PIN", ErrCommand)
		}
		s.locked = false
		return "", nil
	case "sim_info":
		st := s.fake.Static
		return keyValues("IMSI", st.IMSI, "ICCID", st.ICCID, "PIN_retry_remain", strconv.Itoa(st.PINRetryRemain)), nil
	case "cell_info":
		return keyValues("Mode", "LTE", "CSQ", "22", "RSSI", "-69", "ECIO", "-5.5",
			"Operator", "Simulated", "LAC", "2FA1", "TAC", "2FA1", "CellID", "0A1B2C3"), nil
	case "network_info":
		if !s.connected {
			return keyValues("Status", "disconnected"), nil
		}
		return keyValues("Status", networkConnected, "APN", s.apn, "IP", "10.64.12.7", "Netmask", "255.255.255.252",
			"Gateway", "10.64.12.8", "DNS", "10.11.12.13 10.11.12.14"), nil
	case "start":
		if s.locked {
			return "", fmt.Errorf("%w: start: SIM locked", ErrCommand)
		}
		for _, a := range args[1:] {
			if v, ok := strings.CutPrefix(a, "APN="); ok {
				s.apn = v
			}
		}
		s.connected = true
		return "", nil
	case "stop":
		s.connected = false
		return "", nil
	case "get_pdp_context":
		ids := make([]int, 0, len(s.pdp))
		for id := range s.pdp {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		var b strings.Builder
		for _, id := range ids {
			p := s.pdp[id]
			fmt.Fprintf(&b, "+CGDCONT: %d,\"%s\",\"%s\",\"\",0,0\n", p.ID, strings.ToUpper(p.Type), p.APN)
		}
		return b.String(), nil
	case "set_pdp_context":
		if len(args) != 4 {
			return "", fmt.Errorf("%w: set_pdp_context: expected id apn type", ErrCommand)
		}
		id, err := strconv.Atoi(args[1])
		if err != nil {
			return "", fmt.Errorf("%w: set_pdp_context: %v", ErrCommand, err)
		}
		s.pdp[id] = model.PDPContext{ID: id, APN: args[2], Type: strings.ToLower(args[3])}
		return "", nil
	case "get_cellular_fw":
		// the module reboots into the preferred image right away
		cur := s.firmware[s.preferred]
		var b strings.Builder
		fmt.Fprintf(&b, "current %s %s %s\n", cur.FWVer, cur.Config, cur.Carrier)
		fmt.Fprintf(&b, "preferred %s %s %s\n", cur.FWVer, cur.Config, cur.Carrier)
		for _, img := range s.firmware {
			fmt.Fprintf(&b, "available %s %s %s\n", img.FWVer, img.Config, img.Carrier)
		}
		return b.String(), nil
	case "set_cellular_fw":
		if len(args) != 4 {
			return "", fmt.Errorf("%w: set_cellular_fw: expected fwver config carrier", ErrCommand)
		}
		for i, img := range s.firmware {
			if img.FWVer == args[1] && img.Config == args[2] && img.Carrier == args[3] {
				s.preferred = i
				s.connected = false
				return "", nil
			}
		}
		return "", fmt.Errorf("%w: set_cellular_fw: image not found", ErrCommand)
	}

	return "", fmt.Errorf("%w: unknown command %q", ErrCommand, args[0])
}

func keyValues(kv ...string) string {
	var b strings.Builder
	for i := 0; i+1 < len(kv); i += 2 {
		b.WriteString(kv[i])
		b.WriteByte('=')
		b.WriteString(kv[i+1])
		b.WriteByte('\n')
	}
	return b.String()
}
