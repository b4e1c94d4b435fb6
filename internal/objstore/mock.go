package objstore

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error) {
	args := m.Called(key, expiry)
	return args.String(0), args.Error(1)
}
func (m *MockObjectStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(key)
	if rc, ok := args.Get(0).(io.ReadCloser); ok {
		return rc, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockObjectStore) Remove(ctx context.Context, key string) error {
	args := m.Called(key)
	return args.Error(0)
}
func (m *MockObjectStore) PublicURL(key string) string {
	args := m.Called(key)
	return args.String(0)
}
