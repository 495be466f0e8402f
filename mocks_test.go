package identity_test

import (
	"context"

	"github.com/goliatone/go-identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockLogger implements identity.Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Info(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Warn(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Error(format string, args ...any) {
	m.Called(format, args)
}

// noopLogger swallows everything; used where log assertions add noise
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MockUserStore implements identity.UserStore for testing
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) GetByUserID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*identity.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	args := m.Called(ctx, email)
	if u := args.Get(0); u != nil {
		return u.(*identity.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserStore) GetByWalletAddress(ctx context.Context, address string) (*identity.User, error) {
	args := m.Called(ctx, address)
	if u := args.Get(0); u != nil {
		return u.(*identity.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserStore) CreateUser(ctx context.Context, record *identity.User) (*identity.User, error) {
	args := m.Called(ctx, record)
	return m.userReturn(args, ctx, record)
}

func (m *MockUserStore) UpdateUser(ctx context.Context, record *identity.User) (*identity.User, error) {
	args := m.Called(ctx, record)
	return m.userReturn(args, ctx, record)
}

// userReturn unwraps either a static *identity.User or a passthrough function
// configured via Return.
func (m *MockUserStore) userReturn(args mock.Arguments, ctx context.Context, record *identity.User) (*identity.User, error) {
	switch ret := args.Get(0).(type) {
	case func(context.Context, *identity.User) (*identity.User, error):
		return ret(ctx, record)
	case *identity.User:
		return ret, args.Error(1)
	default:
		return nil, args.Error(1)
	}
}

// MockRoleStore implements identity.RoleStore for testing
type MockRoleStore struct {
	mock.Mock
}

func (m *MockRoleStore) FindRoleNames(ctx context.Context, userID uuid.UUID) ([]string, error) {
	args := m.Called(ctx, userID)
	if names := args.Get(0); names != nil {
		return names.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

// staticVerifier returns a fixed claim or error
type staticVerifier struct {
	provider identity.ProviderType
	claim    *identity.ProviderClaim
	err      error
}

func (v staticVerifier) Provider() identity.ProviderType {
	return v.provider
}

func (v staticVerifier) Verify(ctx context.Context, raw string) (*identity.ProviderClaim, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.claim, nil
}
