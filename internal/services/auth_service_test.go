package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"twitapp/internal/models"
	"twitapp/internal/repositories"
	"twitapp/internal/services"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// MockUserRepository is a mock implementation of repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	if args.Error(0) == nil && user.ID == "" {
		user.ID = "user-new"
	}
	return args.Error(0)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func newHasher(t *testing.T) *services.BcryptHasher {
	t.Helper()
	h, err := services.NewBcryptHasher("test_secret_key", bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

func newAuthService(t *testing.T, repo repositories.UserRepository) *services.AuthService {
	t.Helper()
	tokens, err := services.NewTokenService(testJWTSecret, time.Hour)
	require.NoError(t, err)
	svc, err := services.NewAuthService(repo, newHasher(t), tokens, nil)
	require.NoError(t, err)
	return svc
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(t, mockRepo)

	// Successful registration
	mockRepo.On("GetByEmail", mock.Anything, "a@x.com").Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
		return u.Email == "a@x.com" && u.PasswordHash != "" && u.PasswordHash != "p1"
	})).Return(nil).Once()

	summary, err := authService.Register(ctx, "a@x.com", "p1")
	require.NoError(t, err)
	assert.Equal(t, "user-new", summary.ID)
	assert.Equal(t, "Your registration was successful", summary.Message)
	mockRepo.AssertExpectations(t)

	// Email already registered
	mockRepo.On("GetByEmail", mock.Anything, "a@x.com").Return(&models.User{ID: "1", Email: "a@x.com"}, nil).Once()
	_, err = authService.Register(ctx, "a@x.com", "p1")
	assert.ErrorIs(t, err, services.ErrBadRequest)
	assert.Equal(t, "User with a@x.com already exists", oops.GetPublic(err, ""))
	mockRepo.AssertExpectations(t)

	// Store failure
	mockRepo.On("GetByEmail", mock.Anything, "b@x.com").Return(nil, errors.New("connection reset")).Once()
	_, err = authService.Register(ctx, "b@x.com", "p1")
	assert.ErrorIs(t, err, services.ErrInternal)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(t, mockRepo)

	hash, err := newHasher(t).Hash("p1")
	require.NoError(t, err)
	user := &models.User{ID: "user-123", Email: "a@x.com", PasswordHash: hash}

	// Successful login
	mockRepo.On("GetByEmail", mock.Anything, "a@x.com").Return(user, nil).Once()
	token, err := authService.Login(ctx, "a@x.com", "p1")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := authService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID())

	// Wrong password
	mockRepo.On("GetByEmail", mock.Anything, "a@x.com").Return(user, nil).Once()
	_, wrongPassword := authService.Login(ctx, "a@x.com", "wrong")
	assert.ErrorIs(t, wrongPassword, services.ErrUnauthorized)

	// Unknown email returns the same message
	mockRepo.On("GetByEmail", mock.Anything, "nobody@x.com").Return(nil, repositories.ErrNotFound).Once()
	_, unknown := authService.Login(ctx, "nobody@x.com", "p1")
	assert.ErrorIs(t, unknown, services.ErrUnauthorized)
	assert.Equal(t, oops.GetPublic(wrongPassword, ""), oops.GetPublic(unknown, ""))

	// Store failure is internal, not unauthorized
	mockRepo.On("GetByEmail", mock.Anything, "c@x.com").Return(nil, errors.New("timeout")).Once()
	_, err = authService.Login(ctx, "c@x.com", "p1")
	assert.ErrorIs(t, err, services.ErrInternal)

	mockRepo.AssertExpectations(t)
}

func TestAuthService_ChangePassword(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(t, mockRepo)
	hasher := newHasher(t)

	hash, err := hasher.Hash("old")
	require.NoError(t, err)
	user := func() *models.User {
		return &models.User{ID: "user-123", Email: "a@x.com", PasswordHash: hash}
	}

	// Old and new are equal
	mockRepo.On("GetByEmail", mock.Anything, "a@x.com").Return(user(), nil).Once()
	_, err = authService.ChangePassword(ctx, "user-123", "a@x.com", "old", "old")
	assert.ErrorIs(t, err, services.ErrBadRequest)
	assert.Equal(t, "Old and new password must not be the same", oops.GetPublic(err, ""))

	// Wrong old password
	mockRepo.On("GetByEmail", mock.Anything, "a@x.com").Return(user(), nil).Once()
	_, err = authService.ChangePassword(ctx, "user-123", "a@x.com", "wrong", "new")
	assert.ErrorIs(t, err, services.ErrBadRequest)
	assert.Equal(t, "Invalid password provided.", oops.GetPublic(err, ""))

	// Unknown email
	mockRepo.On("GetByEmail", mock.Anything, "nobody@x.com").Return(nil, repositories.ErrNotFound).Once()
	_, err = authService.ChangePassword(ctx, "user-123", "nobody@x.com", "old", "new")
	assert.ErrorIs(t, err, services.ErrBadRequest)

	// Success rehashes and updates by id
	mockRepo.On("GetByEmail", mock.Anything, "a@x.com").Return(user(), nil).Once()
	mockRepo.On("Update", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
		ok, err := hasher.Verify("new", u.PasswordHash)
		return u.ID == "user-123" && err == nil && ok
	})).Return(nil).Once()
	msg, err := authService.ChangePassword(ctx, "user-123", "a@x.com", "old", "new")
	require.NoError(t, err)
	assert.Equal(t, "Password updated successfully.", msg)

	mockRepo.AssertExpectations(t)
}

func TestAuthService_ChangePasswordForAnotherAccount(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(t, mockRepo)
	hasher := newHasher(t)

	oldHash, err := hasher.Hash("old")
	require.NoError(t, err)
	target := &models.User{ID: "user-123", Email: "a@x.com", PasswordHash: oldHash}

	// The caller is looked up by id for the warning; the change still goes through.
	mockRepo.On("GetByEmail", mock.Anything, "a@x.com").Return(target, nil).Once()
	mockRepo.On("GetByID", mock.Anything, "user-456").Return(&models.User{ID: "user-456", Email: "b@x.com"}, nil).Once()
	mockRepo.On("Update", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
		return u.ID == "user-123"
	})).Return(nil).Once()

	msg, err := authService.ChangePassword(ctx, "user-456", "a@x.com", "old", "new")
	require.NoError(t, err)
	assert.Equal(t, "Password updated successfully.", msg)

	// A caller that no longer exists does not block the change either.
	mockRepo.On("GetByEmail", mock.Anything, "a@x.com").Return(target, nil).Once()
	mockRepo.On("GetByID", mock.Anything, "gone").Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("Update", mock.Anything, mock.Anything).Return(nil).Once()

	_, err = authService.ChangePassword(ctx, "gone", "a@x.com", "new", "newer")
	require.NoError(t, err)

	mockRepo.AssertExpectations(t)
}

func TestAuthService_LoginAfterPasswordChange(t *testing.T) {
	ctx := context.Background()
	authService := newAuthService(t, repositories.NewMockUserRepository())

	summary, err := authService.Register(ctx, "a@x.com", "p1")
	require.NoError(t, err)

	_, err = authService.ChangePassword(ctx, summary.ID, "a@x.com", "p1", "p2")
	require.NoError(t, err)

	_, err = authService.Login(ctx, "a@x.com", "p2")
	assert.NoError(t, err)
	_, err = authService.Login(ctx, "a@x.com", "p1")
	assert.ErrorIs(t, err, services.ErrUnauthorized)
}

func TestAuthService_RegistrationScenario(t *testing.T) {
	ctx := context.Background()
	authService := newAuthService(t, repositories.NewMockUserRepository())

	summary, err := authService.Register(ctx, "a@x.com", "p1")
	require.NoError(t, err)
	assert.NotEmpty(t, summary.ID)

	_, err = authService.Register(ctx, "a@x.com", "p1")
	assert.ErrorIs(t, err, services.ErrBadRequest)
	assert.Contains(t, oops.GetPublic(err, ""), "already exists")

	token, err := authService.Login(ctx, "a@x.com", "p1")
	require.NoError(t, err)
	claims, err := authService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, summary.ID, claims.UserID())

	_, err = authService.Login(ctx, "a@x.com", "wrong")
	assert.ErrorIs(t, err, services.ErrUnauthorized)
}

func TestAuthService_Logout(t *testing.T) {
	authService := newAuthService(t, repositories.NewMockUserRepository())
	assert.Equal(t, "Logged out successfully", authService.Logout(context.Background(), "user-123"))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, services.ErrBadRequest, services.KindOf(oops.Wrap(services.ErrBadRequest)))
	assert.Equal(t, services.ErrUnauthorized, services.KindOf(services.ErrUnauthorized))
	assert.Equal(t, services.ErrInternal, services.KindOf(errors.New("boom")))
}
