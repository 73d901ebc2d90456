// Package events publishes resource events to the gateway's message bus.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// ErrNotConnected is returned when publishing on a closed connection
var ErrNotConnected = errors.New("not connected to message bus")

const subjectPrefix = "event"

// Envelope is the message published for every event
type Envelope struct {
	ID       string    `json:"id"`
	Method   string    `json:"method"`
	Resource string    `json:"resource"`
	Time     time.Time `json:"time"`
	Data     any       `json:"data"`
}

type publisher interface {
	PublishMsg(msg *nats.Msg) error
}

// NATSSink publishes events as NATS messages on event.<resource path>
type NATSSink struct {
	conn *nats.Conn
	pub  publisher
}

// Connect dials the message bus. The connection keeps reconnecting for the
// lifetime of the process.
func Connect(url string, name string) (*NATSSink, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("message bus disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("message bus reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to message bus %s: %w", url, err)
	}
	return &NATSSink{conn: nc, pub: nc}, nil
}

// Put publishes data as a put event for resource
func (s *NATSSink) Put(resource string, data any) error {
	if s.conn != nil && s.conn.IsClosed() {
		return ErrNotConnected
	}

	msg, err := newMessage("put", resource, data)
	if err != nil {
		return err
	}
	return s.pub.PublishMsg(msg)
}

// Close drains pending messages and closes the connection
func (s *NATSSink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Drain()
}

func newMessage(method string, resource string, data any) (*nats.Msg, error) {
	id := uuid.New().String()
	payload, err := json.Marshal(Envelope{
		ID:       id,
		Method:   method,
		Resource: resource,
		Time:     time.Now().UTC(),
		Data:     data,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to encode event for %s: %w", resource, err)
	}

	msg := nats.NewMsg(Subject(resource))
	msg.Header.Set(nats.MsgIdHdr, id)
	msg.Data = payload
	return msg, nil
}

// Subject maps a resource path such as /network/interfaces/wwan0 to its subject
func Subject(resource string) string {
	parts := strings.FieldsFunc(resource, func(r rune) bool { return r == '/' })
	return subjectPrefix + "." + strings.Join(parts, ".")
}

// LogSink only logs events, for gateways running without a message bus
type LogSink struct{}

func (LogSink) Put(resource string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	log.Printf("event put %s %s", resource, b)
	return nil
}
