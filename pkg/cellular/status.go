package cellular

import (
	"log"

	"github.com/ebobo/cellular_go/pkg/model"
)

const unknownName = "n/a"

// List returns the cellular resources. It is empty until the modem is known
// and a manager runs for it.
func (c *Controller) List() []model.Cellular {
	if !c.Initialized() || !c.ready() {
		return []model.Cellular{}
	}
	return []model.Cellular{c.aggregate()}
}

// Get returns resource id. A resource without a live manager is returned as a
// placeholder carrying only the configuration.
func (c *Controller) Get(id int) (model.Cellular, error) {
	if !c.Initialized() || id != model.ResourceID {
		return model.Cellular{}, ErrNotFound
	}
	if !c.ready() {
		return c.placeholder(), nil
	}
	return c.aggregate(), nil
}

func (c *Controller) ready() bool {
	return c.devName != "" && c.mgr != nil && c.usage != nil
}

func (c *Controller) placeholder() model.Cellular {
	name := c.devName
	if name == "" {
		name = unknownName
	}
	return assemble(c.config, name, model.StatusUnavailable, nil, nil, nil, nil, nil, model.UnknownUsage)
}

func (c *Controller) aggregate() model.Cellular {
	status := c.mgr.Status()
	minfo := c.mgr.ModuleInformation()
	sinfo := c.mgr.StaticInformation()
	cinfo := c.mgr.CellularInformation()
	ninfo := c.mgr.NetworkInformation()

	pdpcList, err := c.mgr.PDPContextList()
	if err != nil {
		log.Printf("failed to list PDP contexts: %v", err)
		pdpcList = nil
	}

	usage, err := c.usage.Usage()
	if err != nil {
		log.Printf("failed to get data usage of %s: %v", c.devName, err)
		usage = model.UnknownUsage
	} else {
		c.metrics.UsageKBytes.WithLabelValues("tx").Set(float64(usage.TxKByte))
		c.metrics.UsageKBytes.WithLabelValues("rx").Set(float64(usage.RxKByte))
	}
	if cinfo != nil {
		c.metrics.SignalRSSI.Set(float64(cinfo.SignalRSSIDBm))
	}

	if c.config.PINCode != "" && status.PINUnusable() {
		c.clearPIN("read")
	}

	return assemble(c.config, c.devName, status, minfo, sinfo, cinfo, ninfo, pdpcList, usage)
}

// assemble builds the resource view. Missing snapshots leave their fields at
// the same defaults every client has always seen.
func assemble(
	cfg model.Config,
	name string,
	status model.Status,
	minfo *model.ModuleInfo,
	sinfo *model.StaticInfo,
	cinfo *model.CellularInfo,
	ninfo *model.NetworkInfo,
	pdpcList []model.PDPContext,
	usage model.Usage,
) model.Cellular {
	if pdpcList == nil {
		pdpcList = []model.PDPContext{}
	}

	v := model.Cellular{
		ID:             model.ResourceID,
		Name:           name,
		Status:         status,
		PINRetryRemain: -1,
		MAC:            "00:00:00:00:00:00",
		DNS:            []string{},
		Usage:          usage,

		Enable: cfg.Enable,
		PDPContext: model.PDPContextView{
			PDPContextConfig: cfg.PDPContext,
			List:             pdpcList,
		},
		PINCode:   cfg.PINCode,
		Keepalive: cfg.Keepalive,
	}

	if cinfo != nil {
		v.Mode = cinfo.Mode
		v.Signal = model.Signal{
			CSQ:  cinfo.SignalCSQ,
			RSSI: cinfo.SignalRSSIDBm,
			ECIO: cinfo.SignalECIODBm,
		}
		v.OperatorName = cinfo.Operator
		v.LAC = cinfo.LAC
		v.TAC = cinfo.TAC
		v.NID = cinfo.NID
		v.CellID = cinfo.CellID
		v.BID = cinfo.BID
	}

	if sinfo != nil {
		v.IMSI = sinfo.IMSI
		v.ICCID = sinfo.ICCID
		v.PINRetryRemain = sinfo.PINRetryRemain
	}

	if minfo != nil {
		v.IMEI = minfo.IMEI
		v.ESN = minfo.ESN
		v.MAC = minfo.MAC
	}

	if ninfo != nil {
		v.IP = ninfo.IP
		v.Netmask = ninfo.Netmask
		v.Gateway = ninfo.Gateway
		if ninfo.DNS != nil {
			v.DNS = ninfo.DNS
		}
	}

	return v
}
