package docstore

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockMessageStore struct {
	mock.Mock
}

func (m *MockMessageStore) Ping(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockMessageStore) Insert(ctx context.Context, msg NewMessage) (Message, error) {
	args := m.Called(msg)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockMessageStore) Get(ctx context.Context, id string) (Message, error) {
	args := m.Called(id)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockMessageStore) List(ctx context.Context, channelId string, before *time.Time, limit int) ([]Message, error) {
	args := m.Called(channelId, before, limit)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockMessageStore) Replace(ctx context.Context, msg Message) (Message, error) {
	args := m.Called(msg)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockMessageStore) Delete(ctx context.Context, id string) error {
	args := m.Called(id)
	return args.Error(0)
}
