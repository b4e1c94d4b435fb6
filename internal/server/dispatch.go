package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/npezzotti/gosocial/internal/chat"
)

type handlerFunc func(ctx context.Context, sess chat.Session, data json.RawMessage) (any, error)

// bind decodes the request data into T before calling fn.
func bind[T, R any](fn func(context.Context, chat.Session, T) (R, error)) handlerFunc {
	return func(ctx context.Context, sess chat.Session, data json.RawMessage) (any, error) {
		var req T
		if len(data) > 0 {
			if err := json.Unmarshal(data, &req); err != nil {
				return nil, chat.ErrValidation("invalid request data")
			}
		}

		return fn(ctx, sess, req)
	}
}

func noArgs[R any](fn func(context.Context, chat.Session) (R, error)) handlerFunc {
	return func(ctx context.Context, sess chat.Session, _ json.RawMessage) (any, error) {
		return fn(ctx, sess)
	}
}

func (cs *ChatServer) routes() map[string]handlerFunc {
	return map[string]handlerFunc{
		"channel:get_dms_list":   noArgs(cs.chat.ListDMs),
		"channel:get_posts_list": noArgs(cs.chat.ListPosts),
		"channel:get_dm_channel": bind(cs.chat.GetDMChannel),
		"channel:join":           bind(cs.chat.Join),
		"channel:leave":          bind(cs.chat.Leave),
		"channel:mark_as_read":   bind(cs.chat.MarkAsRead),
		"message:create":         bind(cs.chat.CreateMessage),
		"message:get":            bind(cs.chat.GetMessages),
		"message:update":         bind(cs.chat.UpdateMessage),
		"message:delete":         bind(cs.chat.DeleteMessage),
		"upload:init":            bind(cs.chat.InitUpload),
		"upload:complete":        bind(cs.chat.CompleteUpload),
	}
}

// dispatch schedules the request on the worker pool. Every request is
// answered with exactly one ack.
func (cs *ChatServer) dispatch(c *Client, msg *ClientMessage) {
	h, ok := cs.handlers[msg.Event]
	if !ok {
		c.queueMessage(ErrUnknownEvent(msg.Id))
		return
	}

	if !cs.pool.TrySubmit(func() { cs.execute(c, msg, h) }) {
		cs.log.Printf("worker queue full, rejecting %q from client %s", msg.Event, c.id)
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (cs *ChatServer) execute(c *Client, msg *ClientMessage, h handlerFunc) {
	defer func() {
		if r := recover(); r != nil {
			cs.log.Printf("panic handling %q: %v", msg.Event, r)
			c.queueMessage(NewAckError(msg.Id, chat.ErrOperationFailed(fmt.Errorf("panic: %v", r))))
		}
	}()

	sess := chat.Session{UserId: c.userId, Conn: c}
	data, err := h(cs.ctx, sess, msg.Data)
	if err != nil {
		e := chat.AsError(err)
		if e.Kind == chat.KindOperationFailed && e.Err != nil {
			cs.log.Printf("%s for user %d: %v", msg.Event, c.userId, e.Err)
		}
		c.queueMessage(NewAckError(msg.Id, e))
		return
	}

	c.queueMessage(NewAck(msg.Id, data))
}
