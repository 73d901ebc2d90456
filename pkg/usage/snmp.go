// Package usage reads the data usage of the cellular interface from the
// gateway's SNMP agent.
package usage

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/ebobo/cellular_go/pkg/model"
)

var (
	// ErrUnavailable is returned when the counters cannot be read
	ErrUnavailable = errors.New("usage counters unavailable")

	// ErrNoInterface means the agent does not know the interface
	ErrNoInterface = errors.New("interface not found in IF-MIB")
)

// IF-MIB
const (
	oidIfName        = ".1.3.6.1.2.1.31.1.1.1.1"
	oidIfHCInOctets  = ".1.3.6.1.2.1.31.1.1.1.6"
	oidIfHCOutOctets = ".1.3.6.1.2.1.31.1.1.1.10"
)

type snmpSession interface {
	WalkAll(rootOid string) ([]gosnmp.SnmpPDU, error)
	Get(oids []string) (*gosnmp.SnmpPacket, error)
}

// dialer opens an SNMP session and returns a function closing it
type dialer func() (snmpSession, func(), error)

// SNMPTracker reads the 64 bit octet counters of one interface
type SNMPTracker struct {
	dev     string
	dial    dialer
	ifIndex int
}

// NewSNMPTracker returns a tracker for dev on the agent at target
func NewSNMPTracker(dev string, target string, community string) *SNMPTracker {
	return &SNMPTracker{
		dev: dev,
		dial: func() (snmpSession, func(), error) {
			snmpClient := &gosnmp.GoSNMP{
				Target:    target,
				Port:      161,
				Community: community,
				Version:   gosnmp.Version2c,
				Timeout:   time.Duration(2) * time.Second,
				Retries:   1,
			}
			if err := snmpClient.Connect(); err != nil {
				return nil, nil, err
			}
			return snmpClient, func() { snmpClient.Conn.Close() }, nil
		},
	}
}

// Usage refreshes and returns the transmitted and received kilobytes
func (t *SNMPTracker) Usage() (model.Usage, error) {
	client, closeFn, err := t.dial()
	if err != nil {
		return model.UnknownUsage, fmt.Errorf("%w: snmp connect: %v", ErrUnavailable, err)
	}
	defer closeFn()

	if t.ifIndex == 0 {
		idx, err := findIfIndex(client, t.dev)
		if err != nil {
			return model.UnknownUsage, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		t.ifIndex = idx
	}

	in := fmt.Sprintf("%s.%d", oidIfHCInOctets, t.ifIndex)
	out := fmt.Sprintf("%s.%d", oidIfHCOutOctets, t.ifIndex)
	result, err := client.Get([]string{in, out})
	if err != nil {
		return model.UnknownUsage, fmt.Errorf("%w: snmp get: %v", ErrUnavailable, err)
	}

	var rx, tx uint64
	found := 0
	for _, pdu := range result.Variables {
		if pdu.Type == gosnmp.NoSuchInstance || pdu.Type == gosnmp.NoSuchObject {
			// the interface went away, look it up again next time
			t.ifIndex = 0
			return model.UnknownUsage, fmt.Errorf("%w: %s", ErrUnavailable, pdu.Name)
		}
		switch strings.TrimPrefix(pdu.Name, ".") {
		case strings.TrimPrefix(in, "."):
			rx = gosnmp.ToBigInt(pdu.Value).Uint64()
			found++
		case strings.TrimPrefix(out, "."):
			tx = gosnmp.ToBigInt(pdu.Value).Uint64()
			found++
		}
	}
	if found != 2 {
		return model.UnknownUsage, fmt.Errorf("%w: incomplete response", ErrUnavailable)
	}

	return model.Usage{
		TxKByte: int64(tx / 1024),
		RxKByte: int64(rx / 1024),
	}, nil
}

func findIfIndex(client snmpSession, dev string) (int, error) {
	results, err := client.WalkAll(oidIfName)
	if err != nil {
		return 0, fmt.Errorf("snmp walk: %w", err)
	}

	for _, pdu := range results {
		name, ok := pdu.Value.([]byte)
		if !ok || string(name) != dev {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimPrefix(strings.TrimPrefix(pdu.Name, "."), strings.TrimPrefix(oidIfName, ".")+"."))
		if err != nil {
			return 0, fmt.Errorf("bad ifName oid %s: %w", pdu.Name, err)
		}
		return idx, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrNoInterface, dev)
}
