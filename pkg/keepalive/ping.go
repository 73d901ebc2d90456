// Package keepalive probes a remote host over the cellular link with ICMP echo.
package keepalive

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

var ErrNoReply = errors.New("no echo reply")

const defaultTimeout = 5 * time.Second

// Pinger sends ICMP echo requests from the address of one interface.
// It needs a raw socket, so the process must run as root.
type Pinger struct {
	Iface   string
	Timeout time.Duration

	id  uint16
	seq uint16
}

func NewPinger(iface string) *Pinger {
	return &Pinger{
		Iface:   iface,
		Timeout: defaultTimeout,
		id:      uint16(rand.Intn(0x10000)),
	}
}

// Ping sends one echo request to host and waits for the matching reply
func (p *Pinger) Ping(ctx context.Context, host string) error {
	dst, err := net.ResolveIPAddr("ip4", host)
	if err != nil {
		return fmt.Errorf("unable to resolve %s: %w", host, err)
	}

	laddr := "0.0.0.0"
	if p.Iface != "" {
		laddr, err = interfaceIPv4(p.Iface)
		if err != nil {
			return err
		}
	}

	conn, err := net.ListenPacket("ip4:icmp", laddr)
	if err != nil {
		return fmt.Errorf("unable to open icmp socket: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(p.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("unable to set deadline: %w", err)
	}

	p.seq++
	req, err := EchoRequest(p.id, p.seq, []byte("cellular-keepalive"))
	if err != nil {
		return err
	}
	if _, err := conn.WriteTo(req, dst); err != nil {
		return fmt.Errorf("unable to send echo request to %s: %w", host, err)
	}

	buf := make([]byte, 1500)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			return fmt.Errorf("%w from %s: %v", ErrNoReply, host, err)
		}
		if addr, ok := from.(*net.IPAddr); !ok || !addr.IP.Equal(dst.IP) {
			continue
		}
		if IsEchoReply(buf[:n], p.id, p.seq) {
			return nil
		}
	}
}

// EchoRequest serializes an ICMPv4 echo request
func EchoRequest(id uint16, seq uint16, payload []byte) ([]byte, error) {
	icmp := &layers.ICMPv4{
		TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0),
		Id:       id,
		Seq:      seq,
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, icmp, gopacket.Payload(payload)); err != nil {
		return nil, fmt.Errorf("unable to serialize echo request: %w", err)
	}
	return buf.Bytes(), nil
}

// IsEchoReply reports whether b is the reply to echo request id/seq
func IsEchoReply(b []byte, id uint16, seq uint16) bool {
	packet := gopacket.NewPacket(b, layers.LayerTypeICMPv4, gopacket.Default)
	icmp, ok := packet.Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4)
	if !ok {
		return false
	}
	return icmp.TypeCode.Type() == layers.ICMPv4TypeEchoReply && icmp.Id == id && icmp.Seq == seq
}

func interfaceIPv4(name string) (string, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return "", fmt.Errorf("unable to find interface %s: %w", name, err)
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return "", fmt.Errorf("unable to read addresses of %s: %w", name, err)
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.To4() != nil {
			return ipnet.IP.String(), nil
		}
	}
	return "", fmt.Errorf("interface %s has no IPv4 address", name)
}
