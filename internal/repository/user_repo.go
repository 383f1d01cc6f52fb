package repository

import (
	"context"
	"errors"

	"github.com/grabngo/loaner/internal/apperr"
	"github.com/grabngo/loaner/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository handles database operations for User and Role
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail finds a user with roles preloaded
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Preload("Roles").Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrUserNotFound.Withf("%s", email)
		}
		return nil, err
	}
	return &user, nil
}

// Create inserts a user and links the given roles
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Omit("Roles.*").Create(user).Error
}

// AddRoles links additional roles to a user, skipping ones already held
func (r *UserRepository) AddRoles(ctx context.Context, user *model.User, roles []model.Role) error {
	var missing []model.Role
	for _, role := range roles {
		if !user.HasRole(role.Name) {
			missing = append(missing, role)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Model(user).Association("Roles").Append(missing); err != nil {
		return err
	}
	return nil
}

// RemoveRole unlinks a role from a user
func (r *UserRepository) RemoveRole(ctx context.Context, user *model.User, role *model.Role) error {
	return r.db.WithContext(ctx).Model(user).Association("Roles").Delete(role)
}

// SetSuperadmin updates the superadmin flag
func (r *UserRepository) SetSuperadmin(ctx context.Context, email string, superadmin bool) error {
	return r.db.WithContext(ctx).Model(&model.User{}).
		Where("email = ?", email).
		Update("superadmin", superadmin).Error
}

// List returns a page of users
func (r *UserRepository) List(ctx context.Context, page Page) ([]model.User, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []model.User
	err := r.db.WithContext(ctx).Preload("Roles").
		Order("email ASC").Offset(page.Offset).Limit(page.Size).
		Find(&users).Error
	return users, total, err
}

// ListAll returns every user, used by backups
func (r *UserRepository) ListAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).Preload("Roles").Order("email ASC").Find(&users).Error
	return users, err
}

// ==================== Roles ====================

// FindRole finds a role by name
func (r *UserRepository) FindRole(ctx context.Context, name string) (*model.Role, error) {
	var role model.Role
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrRoleNotFound.Withf("%s", name)
		}
		return nil, err
	}
	return &role, nil
}

// FindRoles loads the named roles, failing on the first unknown name
func (r *UserRepository) FindRoles(ctx context.Context, names []string) ([]model.Role, error) {
	roles := make([]model.Role, 0, len(names))
	for _, name := range names {
		role, err := r.FindRole(ctx, name)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *role)
	}
	return roles, nil
}

// UpsertRole creates or replaces a role definition
func (r *UserRepository) UpsertRole(ctx context.Context, role *model.Role) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"permissions", "associated_group", "updated_at"}),
	}).Create(role).Error
}

// ListRoles returns every role
func (r *UserRepository) ListRoles(ctx context.Context) ([]model.Role, error) {
	var roles []model.Role
	err := r.db.WithContext(ctx).Order("name ASC").Find(&roles).Error
	return roles, err
}

// DeleteRole removes a role and its memberships
func (r *UserRepository) DeleteRole(ctx context.Context, name string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM user_roles WHERE role_name = ?", name).Error; err != nil {
			return err
		}
		res := tx.Where("name = ?", name).Delete(&model.Role{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.ErrRoleNotFound.Withf("%s", name)
		}
		return nil
	})
}
