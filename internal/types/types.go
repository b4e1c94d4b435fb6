package types

import (
	"time"
)

type User struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	Password     string    `json:"-"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

type ChannelType string

const (
	ChannelTypeDM   ChannelType = "dm"
	ChannelTypePost ChannelType = "post"
)

func (t ChannelType) Valid() bool {
	return t == ChannelTypeDM || t == ChannelTypePost
}

// Channel is the per-member view of a channel. UnreadCount and LastReadAt
// belong to the requesting member.
type Channel struct {
	Id          string      `json:"id"`
	Type        ChannelType `json:"type"`
	OtherUser   *User       `json:"other_user,omitempty"`
	PostId      *int        `json:"post_id,omitempty"`
	UnreadCount int         `json:"unread_count"`
	LastReadAt  *time.Time  `json:"last_read_at"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Attachment is the display form of a stored file referenced by a message or post.
type Attachment struct {
	Id          string `json:"id"`
	Url         string `json:"url"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Hash        string `json:"hash"`
}

type Message struct {
	Id          string       `json:"id"`
	ChannelId   string       `json:"channel_id"`
	ChannelType ChannelType  `json:"channel_type"`
	AuthorId    int          `json:"author_id"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments"`
	ReplyTo     *string      `json:"reply_to,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type Post struct {
	Id          int          `json:"id"`
	AuthorId    int          `json:"author_id"`
	ChannelId   string       `json:"channel_id"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments"`
	CreatedAt   time.Time    `json:"created_at"`
}

type FriendRequest struct {
	Id         int       `json:"id"`
	SenderId   int       `json:"sender_id"`
	ReceiverId int       `json:"receiver_id"`
	CreatedAt  time.Time `json:"created_at"`
}
