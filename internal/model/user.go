package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// RoleUser is the implicit role every user holds
const RoleUser = "user"

// Permission names an operation gated by role
type Permission string

const (
	PermissionReadDevices        Permission = "read_devices"
	PermissionEnrollDevice       Permission = "enroll_device"
	PermissionUnenrollDevice     Permission = "unenroll_device"
	PermissionLockDevice         Permission = "lock_device"
	PermissionUnlockDevice       Permission = "unlock_device"
	PermissionMarkLost           Permission = "mark_lost"
	PermissionMarkDamaged        Permission = "mark_damaged"
	PermissionAuditShelf         Permission = "audit_shelf"
	PermissionReadShelves        Permission = "read_shelves"
	PermissionModifyShelf        Permission = "modify_shelf"
	PermissionReadConfigs        Permission = "read_configs"
	PermissionModifyConfig       Permission = "modify_config"
	PermissionModifyTag          Permission = "modify_tag"
	PermissionReadSurveys        Permission = "read_surveys"
	PermissionModifySurvey       Permission = "modify_survey"
	PermissionModifyRole         Permission = "modify_role"
	PermissionReadUsers          Permission = "read_users"
	PermissionBootstrap          Permission = "bootstrap"
	PermissionModifyReminders    Permission = "modify_reminders"
	PermissionModifySubscription Permission = "modify_subscription"
)

// Role groups permissions and may be synced from a directory group
type Role struct {
	Name            string         `json:"name" gorm:"primaryKey;size:100"`
	Permissions     datatypes.JSON `json:"permissions"`
	AssociatedGroup string         `json:"associated_group" gorm:"size:255"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// PermissionList decodes the stored permission names
func (r *Role) PermissionList() []Permission {
	var perms []Permission
	if len(r.Permissions) == 0 {
		return perms
	}
	_ = json.Unmarshal(r.Permissions, &perms)
	return perms
}

// SetPermissions encodes perms into the JSON column
func (r *Role) SetPermissions(perms []Permission) {
	if perms == nil {
		perms = []Permission{}
	}
	data, _ := json.Marshal(perms)
	r.Permissions = datatypes.JSON(data)
}

// User is a person known to the loaner program
type User struct {
	Email      string    `json:"email" gorm:"primaryKey;size:255"`
	Superadmin bool      `json:"superadmin"`
	Roles      []Role    `json:"roles" gorm:"many2many:user_roles;joinForeignKey:UserEmail;joinReferences:RoleName"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RoleNames returns the names of the user's roles
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}

// HasRole reports whether the user holds the named role
func (u *User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// Permissions returns the union of permissions across roles
func (u *User) Permissions() []Permission {
	seen := make(map[Permission]bool)
	var out []Permission
	for _, r := range u.Roles {
		for _, p := range r.PermissionList() {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}

// Can reports whether the user may perform an operation gated by p
func (u *User) Can(p Permission) bool {
	if u.Superadmin {
		return true
	}
	for _, have := range u.Permissions() {
		if have == p {
			return true
		}
	}
	return false
}
