package users

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/clinicore/clinicore/internal/platform/httpx"
	"github.com/clinicore/clinicore/internal/rbac"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	CreateUser(ctx context.Context, username, fullName, passwordHash string) (int64, error)
	UpdateUser(ctx context.Context, id int64, fullName string, isActive bool) error
	SetPassword(ctx context.Context, id int64, passwordHash string) error
}

// RolesPort resolves and assigns roles.
type RolesPort interface {
	GetRoleByName(ctx context.Context, name string) (rbac.Role, error)
	AssignRole(ctx context.Context, userID, roleID int64) error
	RemoveRole(ctx context.Context, userID, roleID int64) error
}

// Service handles user business logic.
type Service struct {
	repo  RepositoryPort
	roles RolesPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, roles RolesPort) *Service {
	return &Service{repo: repo, roles: roles}
}

// CreateUserInput carries the fields for account creation.
type CreateUserInput struct {
	Username string
	FullName string
	Password string
	Roles    []string
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// GetUser returns a single user.
func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetUser(ctx, id)
}

// CreateUser hashes the password, inserts the account, and assigns roles.
func (s *Service) CreateUser(ctx context.Context, input CreateUserInput) (*User, error) {
	username := strings.TrimSpace(strings.ToLower(input.Username))
	if username == "" {
		return nil, fmt.Errorf("username is required: %w", httpx.ErrValidation)
	}
	if len(input.Password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters: %w", httpx.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	id, err := s.repo.CreateUser(ctx, username, strings.TrimSpace(input.FullName), string(hash))
	if err != nil {
		return nil, err
	}

	for _, roleName := range input.Roles {
		if err := s.assignRoleByName(ctx, id, roleName); err != nil {
			return nil, err
		}
	}
	return s.repo.GetUser(ctx, id)
}

// UpdateUser changes profile fields.
func (s *Service) UpdateUser(ctx context.Context, id int64, fullName string, isActive bool) (*User, error) {
	if err := s.repo.UpdateUser(ctx, id, strings.TrimSpace(fullName), isActive); err != nil {
		return nil, err
	}
	return s.repo.GetUser(ctx, id)
}

// ChangePassword replaces the password for an account.
func (s *Service) ChangePassword(ctx context.Context, id int64, password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters: %w", httpx.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.SetPassword(ctx, id, string(hash))
}

// AssignRole grants a named role to a user.
func (s *Service) AssignRole(ctx context.Context, userID int64, roleName string) error {
	return s.assignRoleByName(ctx, userID, roleName)
}

// RemoveRole revokes a named role from a user.
func (s *Service) RemoveRole(ctx context.Context, userID int64, roleName string) error {
	role, err := s.roles.GetRoleByName(ctx, roleName)
	if err != nil {
		return fmt.Errorf("role %q: %w", roleName, httpx.ErrNotFound)
	}
	return s.roles.RemoveRole(ctx, userID, role.ID)
}

func (s *Service) assignRoleByName(ctx context.Context, userID int64, roleName string) error {
	role, err := s.roles.GetRoleByName(ctx, roleName)
	if err != nil {
		return fmt.Errorf("role %q: %w", roleName, httpx.ErrNotFound)
	}
	return s.roles.AssignRole(ctx, userID, role.ID)
}
