package model

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validRequest = `{
	"enable": true,
	"pdpContext": {
		"static": false,
		"id": 3,
		"retryTimeout": 300,
		"primary": {"apn": "broadband", "type": "ipv4"},
		"secondary": {}
	},
	"pinCode": "0000",
	"keepalive": {
		"enable": true,
		"targetHost": "8.8.4.4",
		"intervalSec": 120,
		"reboot": {"enable": true, "cycles": 5}
	}
}`

func decode(t *testing.T, s string) ConfigRequest {
	t.Helper()
	var req ConfigRequest
	require.NoError(t, json.Unmarshal([]byte(s), &req))
	return req
}

func TestValidRequest(t *testing.T) {
	req := decode(t, validRequest)
	require.NoError(t, req.Validate())

	c := req.Config()
	assert.Equal(t, ResourceID, c.ID)
	assert.True(t, c.Enable)
	assert.Equal(t, 3, c.PDPContext.ID)
	assert.Equal(t, 300, c.PDPContext.RetryTimeout)
	assert.Equal(t, PDPProfile{APN: "broadband", Type: PDPTypeIPv4}, c.PDPContext.Primary)
	assert.Equal(t, PDPProfile{APN: "", Type: PDPTypeIPv4v6}, c.PDPContext.Secondary)
	assert.Equal(t, "0000", c.PINCode)
	assert.Equal(t, Reboot{Enable: true, Cycles: 5}, c.Keepalive.Reboot)
	assert.True(t, c.WatchdogEnabled())
}

func TestRequestDefaults(t *testing.T) {
	req := decode(t, `{
		"enable": false,
		"pdpContext": {"static": true, "id": 1, "primary": {}},
		"keepalive": {"enable": false, "targetHost": "", "intervalSec": 0}
	}`)
	require.NoError(t, req.Validate())

	c := req.Config()
	assert.Equal(t, 120, c.PDPContext.RetryTimeout)
	assert.Equal(t, PDPProfile{APN: "internet", Type: PDPTypeIPv4v6}, c.PDPContext.Primary)
	assert.Equal(t, PDPProfile{Type: PDPTypeIPv4v6}, c.PDPContext.Secondary)
	assert.Equal(t, "", c.PINCode)
	assert.Equal(t, Reboot{Enable: false, Cycles: 1}, c.Keepalive.Reboot)
	assert.False(t, c.WatchdogEnabled())
}

func TestRequestRejected(t *testing.T) {
	tests := []struct {
		name string
		edit func(r *ConfigRequest)
	}{
		{"missing enable", func(r *ConfigRequest) { r.Enable = nil }},
		{"missing pdp context", func(r *ConfigRequest) { r.PDPContext = nil }},
		{"missing keepalive", func(r *ConfigRequest) { r.Keepalive = nil }},
		{"missing static", func(r *ConfigRequest) { r.PDPContext.Static = nil }},
		{"missing primary", func(r *ConfigRequest) { r.PDPContext.Primary = nil }},
		{"pin too short", func(r *ConfigRequest) { r.PINCode = "123" }},
		{"pin not digits", func(r *ConfigRequest) { r.PINCode = "12a4" }},
		{"retry timeout below range", func(r *ConfigRequest) { v := 5; r.PDPContext.RetryTimeout = &v }},
		{"retry timeout above range", func(r *ConfigRequest) { v := 86400; r.PDPContext.RetryTimeout = &v }},
		{"interval below range", func(r *ConfigRequest) { v := 30; r.Keepalive.IntervalSec = &v }},
		{"bad pdp type", func(r *ConfigRequest) { r.PDPContext.Primary.Type = "ipx" }},
		{"cycles above range", func(r *ConfigRequest) { v := 49; r.Keepalive.Reboot.Cycles = &v }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := decode(t, validRequest)
			tt.edit(&req)
			assert.Error(t, req.Validate())
		})
	}
}

func TestRequestZeroTimersAllowed(t *testing.T) {
	req := decode(t, validRequest)
	zero := 0
	req.PDPContext.RetryTimeout = &zero
	req.Keepalive.IntervalSec = &zero
	assert.NoError(t, req.Validate())
}

func TestRequestNegativeContextID(t *testing.T) {
	req := decode(t, validRequest)
	id := -1
	req.PDPContext.ID = &id
	require.NoError(t, req.Validate())
	assert.Equal(t, -1, req.Config().PDPContext.ID)
}

func TestRequestRejectedMessage(t *testing.T) {
	req := decode(t, validRequest)
	retry := 5
	req.PDPContext.RetryTimeout = &retry
	cycles := 49
	req.Keepalive.Reboot.Cycles = &cycles

	err := req.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ConfigRequest.PDPContext.RetryTimeout failed on eq=0|min=10")
	assert.NotContains(t, err.Error(), "min=10=10")
	assert.Contains(t, err.Error(), "ConfigRequest.Keepalive.Reboot.Cycles failed on max=48")
}

func TestNormalize(t *testing.T) {
	c := DefaultConfig()
	c.ID = 7
	c.PDPContext.Static = true
	c.PDPContext.ID = 5
	c.Normalize()
	assert.Equal(t, 1, c.ID)
	assert.Equal(t, 1, c.PDPContext.ID)

	c.PDPContext.Static = false
	c.PDPContext.ID = 5
	c.Normalize()
	assert.Equal(t, 5, c.PDPContext.ID)
}

func TestStatusPINUnusable(t *testing.T) {
	assert.True(t, StatusPIN.PINUnusable())
	assert.True(t, StatusPINError.PINUnusable())
	assert.False(t, StatusConnected.PINUnusable())
	assert.False(t, StatusNoSIM.PINUnusable())
}

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	seed := `
enable: true
pdpContext:
  static: true
  id: 4
  primary:
    apn: telenor
keepalive:
  enable: true
  targetHost: 1.1.1.1
  intervalSec: 300
  reboot:
    enable: true
    cycles: 2
`
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o644))

	c, err := LoadSeed(path)
	require.NoError(t, err)
	assert.Equal(t, 1, c.PDPContext.ID)
	assert.Equal(t, "telenor", c.PDPContext.Primary.APN)
	assert.Equal(t, "1.1.1.1", c.Keepalive.TargetHost)
	assert.Equal(t, 2, c.Keepalive.Reboot.Cycles)
}

func TestLoadSeedInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("enable: true\n"), 0o644))

	_, err := LoadSeed(path)
	assert.Error(t, err)
}

func TestFirmwareSwitchValidation(t *testing.T) {
	assert.NoError(t, ValidateFirmwareSwitch(FirmwareSwitch{FWVer: "05.05.58.00", Config: "005.025_000", Carrier: "ATT"}))
	assert.Error(t, ValidateFirmwareSwitch(FirmwareSwitch{FWVer: "05.05.58.00"}))
}
