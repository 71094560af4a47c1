package blobstore

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) Upload(ctx context.Context, files []File) ([]Blob, error) {
	args := m.Called(ctx, files)
	if blobs, ok := args.Get(0).([]Blob); ok {
		return blobs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockObjectStore) Delete(ctx context.Context, ids []string) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}
