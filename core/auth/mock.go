package auth

import (
	"sync"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core/user"
)

// MockStore is the secondary identity source: a fixed in-memory credential
// table used only when the primary provider is unreachable or slow AND
// fallback mode is explicitly enabled (Config.Auth.FallbackEnabled).
// Sessions it issues carry opaque non-JWT tokens and cannot be refreshed.
type MockStore struct {
	mu    sync.RWMutex
	table map[string]mockUser // keyed by id
}

type mockUser struct {
	id       string
	email    string
	password string
	name     string
	role     string
	avatar   string
}

var mockUsers = []mockUser{
	{id: "mock-user-1", email: "student@example.com", password: "password", name: "Test Student", role: user.RoleStudent, avatar: "https://i.pravatar.cc/150?img=1"},
	{id: "mock-user-2", email: "instructor@example.com", password: "password", name: "Test Instructor", role: user.RoleInstructor, avatar: "https://i.pravatar.cc/150?img=2"},
	{id: "mock-user-3", email: "admin@example.com", password: "password", name: "Test Admin", role: user.RoleAdmin, avatar: "https://i.pravatar.cc/150?img=3"},
	{id: "mock-user-4", email: "john@example.com", password: "password", name: "John Doe", role: user.RoleStudent, avatar: "https://i.pravatar.cc/150?img=4"},
	{id: "mock-user-5", email: "jane@example.com", password: "password", name: "Jane Smith", role: user.RoleInstructor, avatar: "https://i.pravatar.cc/150?img=5"},
	{id: "mock-user-6", email: "test@example.com", password: "password", name: "Test User", role: user.RoleStudent, avatar: "https://i.pravatar.cc/150?img=6"},
}

func NewMockStore() *MockStore {
	table := make(map[string]mockUser, len(mockUsers))
	for _, mu := range mockUsers {
		table[mu.id] = mu
	}
	return &MockStore{table: table}
}

// SignIn matches the credential pair against the fixed table.
func (s *MockStore) SignIn(email, password string) (Session, user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, mu := range s.table {
		if mu.email == email && mu.password == password {
			return s.session(), s.profile(mu), nil
		}
	}
	return Session{}, user.User{}, ErrInvalidCredentials
}

// Profile returns the mock profile for a previously issued mock identity.
func (s *MockStore) Profile(userID string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if mu, ok := s.table[userID]; ok {
		return s.profile(mu), nil
	}
	return user.User{}, user.ErrNotFound
}

func (s *MockStore) session() Session {
	return Session{
		AccessToken:  "mock-token",
		RefreshToken: "mock-refresh-token",
		ExpiresAt:    nowFunc().Add(time.Hour),
	}
}

func (s *MockStore) profile(mu mockUser) user.User {
	return user.User{
		ID:        mu.id,
		Email:     mu.email,
		Name:      mu.name,
		Role:      mu.role,
		AvatarURL: null.StringFrom(mu.avatar),
		IsActive:  true,
	}
}
