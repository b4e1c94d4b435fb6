package database

import (
	"context"
	"time"
)

type GoSocialRepository interface {
	Ping(ctx context.Context) error

	CreateAccount(ctx context.Context, params CreateAccountParams) (User, error)
	UpdateAccount(ctx context.Context, params UpdateAccountParams) (User, error)
	GetAccountById(ctx context.Context, userId int) (User, error)
	GetAccountByEmail(ctx context.Context, email string) (User, error)

	GetChannel(ctx context.Context, channelId string) (Channel, error)
	ListChannels(ctx context.Context, userId int, channelType string, limit int) ([]ChannelSummary, error)
	GetOrCreateDMChannel(ctx context.Context, userId, otherUserId int) (Channel, bool, error)
	GetChannelMember(ctx context.Context, channelId string, userId int) (ChannelMember, error)
	AddChannelMember(ctx context.Context, channelId string, userId int) (bool, error)
	CreateRecentPostMarker(ctx context.Context, channelId string, userId int) (bool, error)
	MarkChannelRead(ctx context.Context, channelId string, userId int, at time.Time) (ChannelMember, error)
	IncrementUnread(ctx context.Context, channelId string, excludeUserIds []int) (int64, error)
	TouchChannel(ctx context.Context, channelId string, at time.Time) error

	GetStorageObject(ctx context.Context, id string) (StorageObject, error)
	GetStorageObjectByHash(ctx context.Context, hash string) (StorageObject, error)
	CreateStorageObject(ctx context.Context, params CreateStorageObjectParams) (StorageObject, error)
	CompleteStorageObject(ctx context.Context, id, url string, params CreateAttachmentParams) (StorageObject, Attachment, error)
	DeleteStorageObject(ctx context.Context, id string) error

	CreateAttachment(ctx context.Context, params CreateAttachmentParams) (Attachment, error)
	GetAttachments(ctx context.Context, attachmentIds []string) ([]AttachmentObject, error)
	LinkMessageAttachments(ctx context.Context, messageId string, userId int, attachmentIds []string) error

	CreatePost(ctx context.Context, params CreatePostParams) (Post, error)
	GetPost(ctx context.Context, postId int) (Post, error)
	GetPostAttachments(ctx context.Context, postId int) ([]AttachmentObject, error)

	CreateFriendRequest(ctx context.Context, senderId, receiverId int) (FriendRequest, error)
	ListFriendRequests(ctx context.Context, userId int) ([]FriendRequest, error)
	DeleteFriendRequest(ctx context.Context, requestId, userId int) error
	AcceptFriendRequest(ctx context.Context, requestId, receiverId int) (Channel, error)
	ListFriends(ctx context.Context, userId int) ([]User, error)
	AreFriends(ctx context.Context, userId, otherUserId int) (bool, error)
	RemoveFriend(ctx context.Context, userId, friendId int) error
}
