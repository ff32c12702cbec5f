package store

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockBuzzRepository struct {
	mock.Mock
}

func (m *MockBuzzRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockBuzzRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockBuzzRepository) ListMessages(limit int) ([]Message, error) {
	args := m.Called(limit)
	if msgs, ok := args.Get(0).([]Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockBuzzRepository) GetProfile(id string) (Profile, error) {
	args := m.Called(id)
	return args.Get(0).(Profile), args.Error(1)
}
func (m *MockBuzzRepository) UpdateProfile(params UpdateProfileParams) (Profile, error) {
	args := m.Called(params)
	return args.Get(0).(Profile), args.Error(1)
}
func (m *MockBuzzRepository) Subscribe(ctx context.Context) (<-chan ChangeEvent, error) {
	args := m.Called(ctx)
	if ch, ok := args.Get(0).(<-chan ChangeEvent); ok {
		return ch, args.Error(1)
	}
	if ch, ok := args.Get(0).(chan ChangeEvent); ok {
		return ch, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockBuzzRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}
