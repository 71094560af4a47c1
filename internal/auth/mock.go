package auth

import (
	"github.com/npezzotti/gossip/internal/types"
	"github.com/stretchr/testify/mock"
)

type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Authenticate(credential string) (types.User, error) {
	args := m.Called(credential)
	return args.Get(0).(types.User), args.Error(1)
}
