package events

import (
	"encoding/json"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	msgs []*nats.Msg
}

func (p *capturePublisher) PublishMsg(msg *nats.Msg) error {
	p.msgs = append(p.msgs, msg)
	return nil
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "event.network.interfaces.wwan0", Subject("/network/interfaces/wwan0"))
	assert.Equal(t, "event.network.cellulars", Subject("network/cellulars/"))
}

func TestPut(t *testing.T) {
	pub := &capturePublisher{}
	sink := &NATSSink{pub: pub}

	data := map[string]any{"name": "wwan0", "wan": true}
	require.NoError(t, sink.Put("/network/interfaces/wwan0", data))
	require.NoError(t, sink.Put("/network/interfaces/wwan0", data))

	require.Len(t, pub.msgs, 2)
	msg := pub.msgs[0]
	assert.Equal(t, "event.network.interfaces.wwan0", msg.Subject)

	var env struct {
		ID       string         `json:"id"`
		Method   string         `json:"method"`
		Resource string         `json:"resource"`
		Data     map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg.Data, &env))
	assert.Equal(t, "put", env.Method)
	assert.Equal(t, "/network/interfaces/wwan0", env.Resource)
	assert.Equal(t, "wwan0", env.Data["name"])
	assert.Equal(t, env.ID, msg.Header.Get(nats.MsgIdHdr))

	assert.NotEqual(t, msg.Header.Get(nats.MsgIdHdr), pub.msgs[1].Header.Get(nats.MsgIdHdr))
}

func TestPutUnencodable(t *testing.T) {
	sink := &NATSSink{pub: &capturePublisher{}}
	assert.Error(t, sink.Put("/x", make(chan int)))
}
