package model

type Signal struct {
	CSQ  int     `json:"csq"`
	RSSI int     `json:"rssi"`
	ECIO float64 `json:"ecio"`
}

type Usage struct {
	TxKByte int64 `json:"txkbyte"`
	RxKByte int64 `json:"rxkbyte"`
}

// UnknownUsage is reported whenever the usage counters cannot be read
var UnknownUsage = Usage{TxKByte: -1, RxKByte: -1}

// PDPContextView is the configured PDP context together with the profiles on the modem
type PDPContextView struct {
	PDPContextConfig
	List []PDPContext `json:"list"`
}

// Cellular is the aggregated resource returned by the cellular API
type Cellular struct {
	ID             int      `json:"id"`
	Name           string   `json:"name"`
	Mode           string   `json:"mode"`
	Signal         Signal   `json:"signal"`
	OperatorName   string   `json:"operatorName"`
	LAC            string   `json:"lac"`
	TAC            string   `json:"tac"`
	NID            string   `json:"nid"`
	CellID         string   `json:"cellId"`
	BID            string   `json:"bid"`
	IMSI           string   `json:"imsi"`
	ICCID          string   `json:"iccId"`
	IMEI           string   `json:"imei"`
	ESN            string   `json:"esn"`
	PINRetryRemain int      `json:"pinRetryRemain"`
	Status         Status   `json:"status"`
	MAC            string   `json:"mac"`
	IP             string   `json:"ip"`
	Netmask        string   `json:"netmask"`
	Gateway        string   `json:"gateway"`
	DNS            []string `json:"dns"`
	Usage          Usage    `json:"usage"`

	Enable     bool           `json:"enable"`
	PDPContext PDPContextView `json:"pdpContext"`
	PINCode    string         `json:"pinCode"`
	Keepalive  Keepalive      `json:"keepalive"`
}

// NetworkInterface is the event published whenever the cellular link changes
type NetworkInterface struct {
	Name    string   `json:"name"`
	WAN     bool     `json:"wan"`
	Type    string   `json:"type"`
	Mode    string   `json:"mode"`
	Status  string   `json:"status"`
	IP      string   `json:"ip"`
	Netmask string   `json:"netmask"`
	Gateway string   `json:"gateway"`
	DNS     []string `json:"dns"`
}

// FirmwareSwitchableModule is the only module whose firmware image can be switched
const FirmwareSwitchableModule = "MC7354"

type FirmwareImage struct {
	FWVer   string `json:"fwver"`
	Config  string `json:"config"`
	Carrier string `json:"carrier"`
}

type Firmware struct {
	Switchable bool            `json:"switchable"`
	Current    *FirmwareImage  `json:"current"`
	Preferred  *FirmwareImage  `json:"preferred"`
	Available  []FirmwareImage `json:"available"`
}

// FirmwareSwitch asks the modem to boot another firmware image
type FirmwareSwitch struct {
	FWVer   string `json:"fwver" validate:"required"`
	Config  string `json:"config" validate:"required"`
	Carrier string `json:"carrier" validate:"required"`
}
