package database

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockGoSocialRepository struct {
	mock.Mock
}

func (m *MockGoSocialRepository) Ping(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockGoSocialRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockGoSocialRepository) UpdateAccount(ctx context.Context, params UpdateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockGoSocialRepository) GetAccountById(ctx context.Context, userId int) (User, error) {
	args := m.Called(userId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockGoSocialRepository) GetAccountByEmail(ctx context.Context, email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockGoSocialRepository) GetChannel(ctx context.Context, channelId string) (Channel, error) {
	args := m.Called(channelId)
	return args.Get(0).(Channel), args.Error(1)
}
func (m *MockGoSocialRepository) ListChannels(ctx context.Context, userId int, channelType string, limit int) ([]ChannelSummary, error) {
	args := m.Called(userId, channelType, limit)
	return args.Get(0).([]ChannelSummary), args.Error(1)
}
func (m *MockGoSocialRepository) GetOrCreateDMChannel(ctx context.Context, userId, otherUserId int) (Channel, bool, error) {
	args := m.Called(userId, otherUserId)
	return args.Get(0).(Channel), args.Bool(1), args.Error(2)
}
func (m *MockGoSocialRepository) GetChannelMember(ctx context.Context, channelId string, userId int) (ChannelMember, error) {
	args := m.Called(channelId, userId)
	return args.Get(0).(ChannelMember), args.Error(1)
}
func (m *MockGoSocialRepository) AddChannelMember(ctx context.Context, channelId string, userId int) (bool, error) {
	args := m.Called(channelId, userId)
	return args.Bool(0), args.Error(1)
}
func (m *MockGoSocialRepository) CreateRecentPostMarker(ctx context.Context, channelId string, userId int) (bool, error) {
	args := m.Called(channelId, userId)
	return args.Bool(0), args.Error(1)
}
func (m *MockGoSocialRepository) MarkChannelRead(ctx context.Context, channelId string, userId int, at time.Time) (ChannelMember, error) {
	args := m.Called(channelId, userId, at)
	return args.Get(0).(ChannelMember), args.Error(1)
}
func (m *MockGoSocialRepository) IncrementUnread(ctx context.Context, channelId string, excludeUserIds []int) (int64, error) {
	args := m.Called(channelId, excludeUserIds)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockGoSocialRepository) TouchChannel(ctx context.Context, channelId string, at time.Time) error {
	args := m.Called(channelId, at)
	return args.Error(0)
}
func (m *MockGoSocialRepository) GetStorageObject(ctx context.Context, id string) (StorageObject, error) {
	args := m.Called(id)
	return args.Get(0).(StorageObject), args.Error(1)
}
func (m *MockGoSocialRepository) GetStorageObjectByHash(ctx context.Context, hash string) (StorageObject, error) {
	args := m.Called(hash)
	return args.Get(0).(StorageObject), args.Error(1)
}
func (m *MockGoSocialRepository) CreateStorageObject(ctx context.Context, params CreateStorageObjectParams) (StorageObject, error) {
	args := m.Called(params)
	return args.Get(0).(StorageObject), args.Error(1)
}
func (m *MockGoSocialRepository) CompleteStorageObject(ctx context.Context, id, url string, params CreateAttachmentParams) (StorageObject, Attachment, error) {
	args := m.Called(id, url, params)
	return args.Get(0).(StorageObject), args.Get(1).(Attachment), args.Error(2)
}
func (m *MockGoSocialRepository) DeleteStorageObject(ctx context.Context, id string) error {
	args := m.Called(id)
	return args.Error(0)
}
func (m *MockGoSocialRepository) CreateAttachment(ctx context.Context, params CreateAttachmentParams) (Attachment, error) {
	args := m.Called(params)
	return args.Get(0).(Attachment), args.Error(1)
}
func (m *MockGoSocialRepository) GetAttachments(ctx context.Context, attachmentIds []string) ([]AttachmentObject, error) {
	args := m.Called(attachmentIds)
	return args.Get(0).([]AttachmentObject), args.Error(1)
}
func (m *MockGoSocialRepository) LinkMessageAttachments(ctx context.Context, messageId string, userId int, attachmentIds []string) error {
	args := m.Called(messageId, userId, attachmentIds)
	return args.Error(0)
}
func (m *MockGoSocialRepository) CreatePost(ctx context.Context, params CreatePostParams) (Post, error) {
	args := m.Called(params)
	return args.Get(0).(Post), args.Error(1)
}
func (m *MockGoSocialRepository) GetPost(ctx context.Context, postId int) (Post, error) {
	args := m.Called(postId)
	return args.Get(0).(Post), args.Error(1)
}
func (m *MockGoSocialRepository) GetPostAttachments(ctx context.Context, postId int) ([]AttachmentObject, error) {
	args := m.Called(postId)
	return args.Get(0).([]AttachmentObject), args.Error(1)
}
func (m *MockGoSocialRepository) CreateFriendRequest(ctx context.Context, senderId, receiverId int) (FriendRequest, error) {
	args := m.Called(senderId, receiverId)
	return args.Get(0).(FriendRequest), args.Error(1)
}
func (m *MockGoSocialRepository) ListFriendRequests(ctx context.Context, userId int) ([]FriendRequest, error) {
	args := m.Called(userId)
	return args.Get(0).([]FriendRequest), args.Error(1)
}
func (m *MockGoSocialRepository) DeleteFriendRequest(ctx context.Context, requestId, userId int) error {
	args := m.Called(requestId, userId)
	return args.Error(0)
}
func (m *MockGoSocialRepository) AcceptFriendRequest(ctx context.Context, requestId, receiverId int) (Channel, error) {
	args := m.Called(requestId, receiverId)
	return args.Get(0).(Channel), args.Error(1)
}
func (m *MockGoSocialRepository) ListFriends(ctx context.Context, userId int) ([]User, error) {
	args := m.Called(userId)
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockGoSocialRepository) AreFriends(ctx context.Context, userId, otherUserId int) (bool, error) {
	args := m.Called(userId, otherUserId)
	return args.Bool(0), args.Error(1)
}
func (m *MockGoSocialRepository) RemoveFriend(ctx context.Context, userId, friendId int) error {
	args := m.Called(userId, friendId)
	return args.Error(0)
}
