package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/grabngo/loaner/internal/apperr"
	"github.com/grabngo/loaner/internal/directory"
	"github.com/grabngo/loaner/internal/model"
	"github.com/grabngo/loaner/internal/repository"
)

// UserService manages users, roles and role membership
type UserService struct {
	users       *repository.UserRepository
	directory   directory.Client
	superadmins []string
}

// NewUserService creates a user service. Addresses in superadmins are
// promoted the first time they are loaded.
func NewUserService(users *repository.UserRepository, dir directory.Client, superadmins []string) *UserService {
	return &UserService{users: users, directory: dir, superadmins: superadmins}
}

func (s *UserService) isConfiguredSuperadmin(email string) bool {
	for _, a := range s.superadmins {
		if strings.EqualFold(a, email) {
			return true
		}
	}
	return false
}

// ==================== Users ====================

// GetUser loads a user, creating it when missing. Every user holds the
// user role; extra roles are unioned in.
func (s *UserService) GetUser(ctx context.Context, email string, extraRoles ...string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperr.ErrBadInput.Withf("an email is required")
	}

	if err := s.ensureUserRole(ctx); err != nil {
		return nil, err
	}
	names := append([]string{model.RoleUser}, extraRoles...)
	roles, err := s.users.FindRoles(ctx, dedupe(names))
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, apperr.ErrUserNotFound) {
		user = &model.User{Email: email, Superadmin: s.isConfiguredSuperadmin(email)}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, err
		}
		log.Printf("✅ Created user %s", email)
	} else if err != nil {
		return nil, err
	}

	if err := s.users.AddRoles(ctx, user, roles); err != nil {
		return nil, err
	}
	return s.users.FindByEmail(ctx, email)
}

// ensureUserRole creates the implicit user role on a fresh database
func (s *UserService) ensureUserRole(ctx context.Context) error {
	_, err := s.users.FindRole(ctx, model.RoleUser)
	if !errors.Is(err, apperr.ErrRoleNotFound) {
		return err
	}
	role := &model.Role{Name: model.RoleUser}
	role.SetPermissions(DefaultRoles()[model.RoleUser])
	return s.users.UpsertRole(ctx, role)
}

// Get loads an existing user
func (s *UserService) Get(ctx context.Context, email string) (*model.User, error) {
	return s.users.FindByEmail(ctx, strings.ToLower(email))
}

// List returns a page of users
func (s *UserService) List(ctx context.Context, pageSize int, token string) ([]model.User, string, int64, error) {
	page, err := repository.ParsePage(pageSize, token)
	if err != nil {
		return nil, "", 0, err
	}
	users, total, err := s.users.List(ctx, page)
	if err != nil {
		return nil, "", 0, err
	}
	return users, page.NextToken(total), total, nil
}

// SetSuperadmin grants or revokes superadmin
func (s *UserService) SetSuperadmin(ctx context.Context, email string, superadmin bool) (*model.User, error) {
	if _, err := s.Get(ctx, email); err != nil {
		return nil, err
	}
	if err := s.users.SetSuperadmin(ctx, strings.ToLower(email), superadmin); err != nil {
		return nil, err
	}
	return s.Get(ctx, email)
}

// ==================== Roles ====================

// SaveRole creates or replaces a role
func (s *UserService) SaveRole(ctx context.Context, req model.RoleRequest) (*model.Role, error) {
	if req.Name == "" {
		return nil, apperr.ErrBadInput.Withf("role name is required")
	}
	role := &model.Role{Name: req.Name, AssociatedGroup: req.AssociatedGroup}
	role.SetPermissions(req.Permissions)
	if err := s.users.UpsertRole(ctx, role); err != nil {
		return nil, err
	}
	return s.users.FindRole(ctx, req.Name)
}

func (s *UserService) GetRole(ctx context.Context, name string) (*model.Role, error) {
	return s.users.FindRole(ctx, name)
}

func (s *UserService) ListRoles(ctx context.Context) ([]model.Role, error) {
	return s.users.ListRoles(ctx)
}

// DeleteRole removes a role. The implicit user role cannot be deleted.
func (s *UserService) DeleteRole(ctx context.Context, name string) error {
	if name == model.RoleUser {
		return apperr.ErrBadInput.Withf("the %s role cannot be deleted", model.RoleUser)
	}
	return s.users.DeleteRole(ctx, name)
}

// SyncRoles grants each role to the members of its directory group. It
// returns the number of memberships granted.
func (s *UserService) SyncRoles(ctx context.Context) (int, error) {
	roles, err := s.users.ListRoles(ctx)
	if err != nil {
		return 0, err
	}

	granted := 0
	for _, role := range roles {
		if role.AssociatedGroup == "" {
			continue
		}
		members, err := s.directory.ListGroupMembers(ctx, role.AssociatedGroup)
		if err != nil {
			log.Printf("⚠️  Failed to list members of %s for role %s: %v", role.AssociatedGroup, role.Name, err)
			continue
		}
		for _, email := range members {
			before, err := s.users.FindByEmail(ctx, strings.ToLower(email))
			if err == nil && before.HasRole(role.Name) {
				continue
			}
			if _, err := s.GetUser(ctx, email, role.Name); err != nil {
				log.Printf("⚠️  Failed to grant %s to %s: %v", role.Name, email, err)
				continue
			}
			granted++
		}
	}
	if granted > 0 {
		log.Printf("✅ Role sync granted %d memberships", granted)
	}
	return granted, nil
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
