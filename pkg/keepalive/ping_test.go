package keepalive

import (
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reply(t *testing.T, id uint16, seq uint16) []byte {
	t.Helper()
	icmp := &layers.ICMPv4{
		TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoReply, 0),
		Id:       id,
		Seq:      seq,
	}
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{ComputeChecksums: true}, icmp))
	return buf.Bytes()
}

func TestEchoRequest(t *testing.T) {
	b, err := EchoRequest(0x1234, 7, []byte("hello"))
	require.NoError(t, err)

	packet := gopacket.NewPacket(b, layers.LayerTypeICMPv4, gopacket.Default)
	icmp, ok := packet.Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4)
	require.True(t, ok)
	assert.Equal(t, uint8(layers.ICMPv4TypeEchoRequest), icmp.TypeCode.Type())
	assert.Equal(t, uint16(0x1234), icmp.Id)
	assert.Equal(t, uint16(7), icmp.Seq)
	assert.Equal(t, []byte("hello"), icmp.Payload)
	assert.NotZero(t, icmp.Checksum)

	// a request is not a reply to itself
	assert.False(t, IsEchoReply(b, 0x1234, 7))
}

func TestIsEchoReply(t *testing.T) {
	assert.True(t, IsEchoReply(reply(t, 42, 3), 42, 3))
	assert.False(t, IsEchoReply(reply(t, 42, 3), 42, 4))
	assert.False(t, IsEchoReply(reply(t, 41, 3), 42, 3))
	assert.False(t, IsEchoReply([]byte{0x00}, 42, 3))
}
