// Package directory talks to the directory service that owns the physical
// placement (organizational unit) and identity of Chrome devices.
package directory

import (
	"context"
	"path"
)

// Organizational unit names under the configured prefix
const (
	OUDefault = "Default"
	OUGuest   = "Guest"
	OULocked  = "Locked"
)

// Device is the directory's view of a Chrome device
type Device struct {
	DeviceID     string
	SerialNumber string
	AssetTag     string
	Model        string
	OrgUnitPath  string
	Status       string
}

// Client is the directory surface used by the loaner core.
// Implementations return apperr.ErrDeviceNotFoundInDirectory for unknown
// devices and wrap every other failure in apperr.ErrDirectoryRPC.
type Client interface {
	GetByID(ctx context.Context, deviceID string) (*Device, error)
	GetBySerial(ctx context.Context, serial string) (*Device, error)
	GetByAssetTag(ctx context.Context, assetTag string) (*Device, error)
	MoveToOU(ctx context.Context, deviceID, orgUnitPath string) error
	Disable(ctx context.Context, deviceID string) error
	Reenable(ctx context.Context, deviceID string) error
	ListGroupMembers(ctx context.Context, groupEmail string) ([]string, error)
}

// OUPath joins an organizational unit name onto the prefix
func OUPath(prefix, name string) string {
	if prefix == "" {
		prefix = "/"
	}
	return path.Join("/", prefix, name)
}
