package server

import (
	"encoding/json"
	"time"

	"github.com/npezzotti/gosocial/internal/chat"
	"github.com/npezzotti/gosocial/internal/rooms"
)

// ClientMessage is a request frame sent by the client.
type ClientMessage struct {
	Id    int             `json:"id"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Ack is the outcome of exactly one client request.
type Ack struct {
	Success bool      `json:"success,omitempty"`
	Data    any       `json:"data,omitempty"`
	Error   string    `json:"error,omitempty"`
	Code    chat.Kind `json:"code,omitempty"`
}

// ServerMessage is either an ack for a request or a server initiated event.
type ServerMessage struct {
	Id        *int       `json:"id,omitempty"`
	Ack       *Ack       `json:"ack,omitempty"`
	Event     string     `json:"event,omitempty"`
	Data      any        `json:"data,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

func NewAck(id int, data any) *ServerMessage {
	return &ServerMessage{
		Id:  &id,
		Ack: &Ack{Success: true, Data: data},
	}
}

func NewAckError(id int, err *chat.Error) *ServerMessage {
	return &ServerMessage{
		Id:  &id,
		Ack: &Ack{Error: err.Message, Code: err.Kind},
	}
}

func NewEvent(ev *rooms.Event) *ServerMessage {
	ts := ev.Timestamp
	return &ServerMessage{
		Event:     ev.Event,
		Data:      ev.Data,
		Timestamp: &ts,
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	return NewAckError(id, chat.ErrValidation("invalid message"))
}

func ErrUnknownEvent(id int) *ServerMessage {
	return NewAckError(id, chat.ErrValidation("unknown event"))
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return NewAckError(id, &chat.Error{Kind: chat.KindOperationFailed, Message: "service unavailable"})
}

func ErrRateLimited(id int) *ServerMessage {
	return NewAckError(id, &chat.Error{Kind: chat.KindOperationFailed, Message: "rate limit exceeded"})
}
