package repositories

import (
	"context"
	"sync"

	"twitapp/internal/models"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// MockUserRepository is an in-memory implementation of UserRepository.
// Like the other stores it does not enforce email uniqueness.
type MockUserRepository struct {
	users map[string]models.User
	order []string
	mu    sync.RWMutex
}

// NewMockUserRepository creates a new instance of MockUserRepository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users: make(map[string]models.User),
	}
}

// Create adds a new user.
func (r *MockUserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if _, ok := r.users[user.ID]; ok {
		return oops.Code("USER_CREATE_FAILED").
			With("id", user.ID).
			Errorf("user with ID %s already exists", user.ID)
	}
	r.users[user.ID] = *user
	r.order = append(r.order, user.ID)
	return nil
}

// GetByEmail returns the first user registered with email.
func (r *MockUserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		if u := r.users[id]; u.Email == email {
			return &u, nil
		}
	}
	return nil, oops.Code("USER_NOT_FOUND").With("email", email).Wrap(ErrNotFound)
}

// GetByID returns a user by its ID.
func (r *MockUserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}
	return &u, nil
}

// Update replaces an existing user.
func (r *MockUserRepository) Update(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; !ok {
		return oops.Code("USER_NOT_FOUND").With("id", user.ID).Wrap(ErrNotFound)
	}
	r.users[user.ID] = *user
	return nil
}
