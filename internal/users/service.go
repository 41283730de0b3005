package users

import (
	"context"

	"github.com/memberdesk/memberdesk/internal/auth"
	"github.com/memberdesk/memberdesk/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	SetRole(ctx context.Context, email, role string) (bool, error)
}

// Service handles user management logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// PromoteToAdmin elevates the account to the admin role. This is the only
// provisioning path for elevated roles; signups always start as plain users.
func (s *Service) PromoteToAdmin(ctx context.Context, email string) error {
	matched, err := s.repo.SetRole(ctx, auth.NormalizeEmail(email), auth.RoleAdmin)
	if err != nil {
		return err
	}
	if !matched {
		return shared.ErrNotFound
	}
	return nil
}
