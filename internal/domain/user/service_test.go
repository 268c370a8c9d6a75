package user

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slog"
)

// MockRepository is a mock implementation of the Repository interface for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, login, passwordHash string) (int, error) {
	args := m.Called(ctx, login, passwordHash)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) FindByLogin(ctx context.Context, login string) (User, error) {
	args := m.Called(ctx, login)
	return args.Get(0).(User), args.Error(1)
}

const strongPassword = "Cashier#2024"

func newService(repo Repository) *Service {
	return NewService(repo, NewCredentialsValidator(), slog.Default())
}

func TestService_Register(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newService(mockRepo)

	mockRepo.On("Create", mock.Anything, "cashier@shop.io", mock.MatchedBy(func(hash string) bool {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(strongPassword)) == nil
	})).Return(123, nil)

	userID, err := service.Register(context.Background(), "cashier@shop.io", strongPassword)
	assert.NoError(t, err)
	assert.Equal(t, 123, userID)

	mockRepo.AssertExpectations(t)
}

func TestService_LoginIsNormalized(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte(strongPassword), bcrypt.MinCost)
	require.NoError(t, err)

	mockRepo := new(MockRepository)
	service := newService(mockRepo)

	mockRepo.On("Create", mock.Anything, "cashier@shop.io", mock.AnythingOfType("string")).Return(5, nil)
	mockRepo.On("FindByLogin", mock.Anything, "cashier@shop.io").
		Return(User{ID: 5, Login: "cashier@shop.io", Password: string(hash)}, nil)
	mockRepo.On("FindByLogin", mock.Anything, "FrontDesk").Return(User{}, ErrNotFound)

	_, err = service.Register(context.Background(), "  Cashier@Shop.IO ", strongPassword)
	require.NoError(t, err)

	u, err := service.Authenticate(context.Background(), "CASHIER@shop.io", strongPassword)
	require.NoError(t, err)
	assert.Equal(t, 5, u.ID)

	// регистр имени пользователя сохраняется
	_, err = service.Authenticate(context.Background(), " FrontDesk ", strongPassword)
	assert.ErrorIs(t, err, ErrInvalidAuth)

	mockRepo.AssertExpectations(t)
}

func TestService_Register_RepositoryError(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newService(mockRepo)

	mockRepo.On("Create", mock.Anything, "testuser", mock.AnythingOfType("string")).Return(0, ErrExists)

	_, err := service.Register(context.Background(), "testuser", strongPassword)
	assert.ErrorIs(t, err, ErrExists)

	mockRepo.AssertExpectations(t)
}

func TestService_Register_InvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		login    string
		password string
	}{
		{name: "empty login", login: "", password: strongPassword},
		{name: "short password", login: "testuser", password: "pin1234"},
		{name: "password equals login", login: "testuser", password: "TestUser"},
		{name: "password longer than bcrypt limit", login: "testuser", password: strings.Repeat("x", 80)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockRepository)
			service := newService(mockRepo)

			_, err := service.Register(context.Background(), tt.login, tt.password)

			assert.ErrorIs(t, err, ErrInvalidInput)
			mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestService_Authenticate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte(strongPassword), bcrypt.MinCost)
	require.NoError(t, err)
	stored := User{ID: 123, Login: "testuser", Password: string(hash)}

	tests := []struct {
		name      string
		login     string
		password  string
		setupMock func(m *MockRepository)
		wantErr   error
	}{
		{
			name:     "success",
			login:    "testuser",
			password: strongPassword,
			setupMock: func(m *MockRepository) {
				m.On("FindByLogin", mock.Anything, "testuser").Return(stored, nil)
			},
		},
		{
			name:     "wrong password",
			login:    "testuser",
			password: "Wrong#2024",
			setupMock: func(m *MockRepository) {
				m.On("FindByLogin", mock.Anything, "testuser").Return(stored, nil)
			},
			wantErr: ErrInvalidAuth,
		},
		{
			name:     "unknown user",
			login:    "ghost",
			password: strongPassword,
			setupMock: func(m *MockRepository) {
				m.On("FindByLogin", mock.Anything, "ghost").Return(User{}, ErrNotFound)
			},
			wantErr: ErrInvalidAuth,
		},
		{
			name:      "invalid login format",
			login:     "a b",
			password:  strongPassword,
			setupMock: func(*MockRepository) {},
			wantErr:   ErrInvalidAuth,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockRepository)
			tt.setupMock(mockRepo)
			service := newService(mockRepo)

			user, err := service.Authenticate(context.Background(), tt.login, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 123, user.ID)
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestService_Authenticate_RepositoryFailure(t *testing.T) {
	mockRepo := new(MockRepository)
	mockRepo.On("FindByLogin", mock.Anything, "testuser").Return(User{}, errors.New("connection refused"))
	service := newService(mockRepo)

	_, err := service.Authenticate(context.Background(), "testuser", strongPassword)

	assert.ErrorContains(t, err, "connection refused")
	assert.NotErrorIs(t, err, ErrInvalidAuth)
}
