package directory

import (
	"context"
	"strings"

	"log/slog"

	"github.com/syncmymind/api/internal/domain"
	"github.com/syncmymind/api/internal/repository"
)

const maxSearchLimit = 50

// Service serves user directory lookups for the share dialog.
type Service struct {
	users        repository.UserRepository
	defaultLimit int
	logger       *slog.Logger
}

// New returns a directory service. defaultLimit caps result pages when the
// caller does not ask for a size.
func New(users repository.UserRepository, defaultLimit int, logger *slog.Logger) Service {
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	return Service{users: users, defaultLimit: defaultLimit, logger: logger}
}

// Search matches users by name or email substring, case-insensitively.
// A blank query returns an empty slice without hitting the store.
func (s Service) Search(ctx context.Context, query string, limit int) ([]domain.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.User{}, nil
	}
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	users, err := s.users.SearchUsers(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("user search", "matches", len(users), "limit", limit)
	return users, nil
}

// Row formats a user for directory responses. Password material never leaves
// the repository layer.
func Row(u *domain.User) map[string]any {
	return map[string]any{
		"id":    u.ID,
		"email": u.Email,
		"name":  u.DisplayName(),
	}
}

// Rows formats a user list.
func Rows(users []domain.User) []map[string]any {
	rows := make([]map[string]any, 0, len(users))
	for i := range users {
		rows = append(rows, Row(&users[i]))
	}
	return rows
}
