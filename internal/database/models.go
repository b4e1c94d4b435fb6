package database

import "time"

type User struct {
	Id           int
	Username     string
	EmailAddress string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Channel struct {
	Id        string
	Type      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

const (
	ChannelTypeDM   = "dm"
	ChannelTypePost = "post"
)

type ChannelMember struct {
	ChannelId   string
	UserId      int
	LastReadAt  *time.Time
	UnreadCount int
	CreatedAt   time.Time
}

// ChannelSummary is a channel as listed for one of its members.
type ChannelSummary struct {
	Channel
	UnreadCount int
	LastReadAt  *time.Time
	// OtherUser is set for dm channels.
	OtherUser *User
	// PostId is set for post channels.
	PostId *int
}

type Post struct {
	Id        int
	AuthorId  int
	ChannelId string
	Content   string
	CreatedAt time.Time
}

const (
	StatusPending = "pending"
	StatusDone    = "done"
)

type StorageObject struct {
	Id         string
	Hash       string
	Filename   string
	MimeType   string
	Size       int64
	StorageKey string
	Status     string
	Url        *string
	UploaderId int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (o StorageObject) Done() bool {
	return o.Status == StatusDone
}

type Attachment struct {
	Id              string
	StorageObjectId string
	UserId          int
	Filename        string
	MessageId       *string
	PostId          *int
	CreatedAt       time.Time
}

// AttachmentObject is an attachment joined with the object it references.
type AttachmentObject struct {
	Attachment
	Object StorageObject
}

type FriendRequest struct {
	Id         int
	SenderId   int
	ReceiverId int
	CreatedAt  time.Time
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
}

type UpdateAccountParams struct {
	UserId       int
	Username     string
	PasswordHash string
}

type CreateStorageObjectParams struct {
	Id         string
	Hash       string
	Filename   string
	MimeType   string
	Size       int64
	StorageKey string
	UploaderId int
}

type CreateAttachmentParams struct {
	Id              string
	StorageObjectId string
	UserId          int
	Filename        string
}

type CreatePostParams struct {
	AuthorId      int
	ChannelId     string
	Content       string
	AttachmentIds []string
}
