package mocks

import (
	"context"

	"github.com/bnema/telegram-query-cli/internal/ports"
	"github.com/stretchr/testify/mock"
)

type MockSecretStore struct {
	mock.Mock
}

var _ ports.SecretStore = (*MockSecretStore)(nil)

// NewMockSecretStore registers an expectation check on test cleanup.
func NewMockSecretStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockSecretStore {
	m := &MockSecretStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSecretStore) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockSecretStore) Put(ctx context.Context, key string, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}
