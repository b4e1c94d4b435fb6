// Package docstore keeps message documents ordered by creation time per channel.
package docstore

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("message not found")

type Message struct {
	Id          string    `json:"id"`
	ChannelId   string    `json:"channel_id"`
	ChannelType string    `json:"channel_type"`
	AuthorId    int       `json:"author_id"`
	Content     string    `json:"content"`
	Attachments []string  `json:"attachments"`
	ReplyTo     *string   `json:"reply_to,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type NewMessage struct {
	ChannelId   string
	ChannelType string
	AuthorId    int
	Content     string
	Attachments []string
	ReplyTo     *string
}

type MessageStore interface {
	Ping(ctx context.Context) error
	// Insert stores the message under a freshly generated id. CreatedAt is
	// unique within the channel and follows insertion order.
	Insert(ctx context.Context, msg NewMessage) (Message, error)
	Get(ctx context.Context, id string) (Message, error)
	// List returns at most limit messages of the channel created strictly
	// before the given time (or the latest when before is nil), newest first.
	List(ctx context.Context, channelId string, before *time.Time, limit int) ([]Message, error)
	Replace(ctx context.Context, msg Message) (Message, error)
	Delete(ctx context.Context, id string) error
}
