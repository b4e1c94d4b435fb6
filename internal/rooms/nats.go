package rooms

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const subjectPrefix = "gosocial.rooms."

type publisher interface {
	Publish(subject string, data []byte) error
}

type envelope struct {
	Room      string          `json:"room"`
	Event     string          `json:"event"`
	Payload   json.RawMessage `json:"payload"`
	Origin    string          `json:"origin"`
	Timestamp time.Time       `json:"timestamp"`
}

// NatsFanout relays broadcasts between server instances over NATS. Room
// membership stays local to each instance, so MembersOf only sees
// connections held by this process.
type NatsFanout struct {
	*Local
	pub    publisher
	sub    *nats.Subscription
	origin string
	log    *log.Logger
}

func NewNatsFanout(nc *nats.Conn, local *Local, logger *log.Logger) (*NatsFanout, error) {
	f := newNatsFanout(nc, local, logger)

	sub, err := nc.Subscribe(subjectPrefix+">", f.handle)
	if err != nil {
		return nil, fmt.Errorf("subscribe rooms: %w", err)
	}
	f.sub = sub

	return f, nil
}

func newNatsFanout(pub publisher, local *Local, logger *log.Logger) *NatsFanout {
	return &NatsFanout{
		Local:  local,
		pub:    pub,
		origin: uuid.NewString(),
		log:    logger,
	}
}

func subject(room string) string {
	return subjectPrefix + strings.ReplaceAll(room, ".", "_")
}

// Broadcast delivers to local members right away and publishes the event
// for every other instance.
func (f *NatsFanout) Broadcast(room, event string, payload any) {
	ev := &Event{Event: event, Data: payload, Timestamp: time.Now().UTC()}
	f.Local.deliver(room, ev)

	data, err := json.Marshal(payload)
	if err != nil {
		f.log.Printf("marshal %q payload: %v", event, err)
		return
	}

	env, err := json.Marshal(envelope{
		Room:      room,
		Event:     event,
		Payload:   data,
		Origin:    f.origin,
		Timestamp: ev.Timestamp,
	})
	if err != nil {
		f.log.Printf("marshal envelope: %v", err)
		return
	}

	if err := f.pub.Publish(subject(room), env); err != nil {
		f.log.Printf("publish %q to %q: %v", event, room, err)
	}
}

func (f *NatsFanout) handle(msg *nats.Msg) {
	var env envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		f.log.Printf("invalid room envelope on %q: %v", msg.Subject, err)
		return
	}

	if env.Origin == f.origin {
		return
	}

	f.Local.deliver(env.Room, &Event{
		Event:     env.Event,
		Data:      env.Payload,
		Timestamp: env.Timestamp,
	})
}

func (f *NatsFanout) Close() error {
	if f.sub == nil {
		return nil
	}
	return f.sub.Unsubscribe()
}
