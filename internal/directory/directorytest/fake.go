// Package directorytest provides an in-memory directory for tests.
package directorytest

import (
	"context"
	"sync"

	"github.com/grabngo/loaner/internal/apperr"
	"github.com/grabngo/loaner/internal/directory"
)

// Fake is an in-memory directory.Client
type Fake struct {
	mu       sync.Mutex
	devices  map[string]*directory.Device
	groups   map[string][]string
	disabled map[string]bool

	// Fail, when set for a method name, is returned by that method
	Fail map[string]error

	Moves []Move

	// OnMove, when set, runs after each successful MoveToOU
	OnMove func(deviceID, ou string)
}

// Move records a MoveToOU call
type Move struct {
	DeviceID string
	OU       string
}

func New(devices ...directory.Device) *Fake {
	f := &Fake{
		devices:  make(map[string]*directory.Device),
		groups:   make(map[string][]string),
		disabled: make(map[string]bool),
		Fail:     make(map[string]error),
	}
	for _, d := range devices {
		f.Add(d)
	}
	return f
}

// Add registers a device
func (f *Fake) Add(d directory.Device) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dd := d
	f.devices[d.DeviceID] = &dd
}

// SetGroup replaces a group's members
func (f *Fake) SetGroup(group string, members ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups[group] = members
}

// OU returns the current organizational unit of a device
func (f *Fake) OU(deviceID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.devices[deviceID]; ok {
		return d.OrgUnitPath
	}
	return ""
}

// Disabled reports whether a device was disabled
func (f *Fake) Disabled(deviceID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disabled[deviceID]
}

func (f *Fake) fail(method string) error {
	if err, ok := f.Fail[method]; ok {
		return err
	}
	return nil
}

func (f *Fake) GetByID(_ context.Context, deviceID string) (*directory.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("GetByID"); err != nil {
		return nil, err
	}
	d, ok := f.devices[deviceID]
	if !ok {
		return nil, apperr.ErrDeviceNotFoundInDirectory.Withf("%s", deviceID)
	}
	cp := *d
	return &cp, nil
}

func (f *Fake) find(match func(*directory.Device) bool, ident string) (*directory.Device, error) {
	for _, d := range f.devices {
		if match(d) {
			cp := *d
			return &cp, nil
		}
	}
	return nil, apperr.ErrDeviceNotFoundInDirectory.Withf("%s", ident)
}

func (f *Fake) GetBySerial(_ context.Context, serial string) (*directory.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("GetBySerial"); err != nil {
		return nil, err
	}
	return f.find(func(d *directory.Device) bool { return d.SerialNumber == serial }, serial)
}

func (f *Fake) GetByAssetTag(_ context.Context, assetTag string) (*directory.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("GetByAssetTag"); err != nil {
		return nil, err
	}
	return f.find(func(d *directory.Device) bool { return d.AssetTag == assetTag }, assetTag)
}

func (f *Fake) MoveToOU(_ context.Context, deviceID, ou string) error {
	if err := f.move(deviceID, ou); err != nil {
		return err
	}
	if f.OnMove != nil {
		f.OnMove(deviceID, ou)
	}
	return nil
}

func (f *Fake) move(deviceID, ou string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("MoveToOU"); err != nil {
		return err
	}
	d, ok := f.devices[deviceID]
	if !ok {
		return apperr.ErrDeviceNotFoundInDirectory.Withf("%s", deviceID)
	}
	d.OrgUnitPath = ou
	f.Moves = append(f.Moves, Move{DeviceID: deviceID, OU: ou})
	return nil
}

func (f *Fake) Disable(_ context.Context, deviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("Disable"); err != nil {
		return err
	}
	f.disabled[deviceID] = true
	return nil
}

func (f *Fake) Reenable(_ context.Context, deviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("Reenable"); err != nil {
		return err
	}
	delete(f.disabled, deviceID)
	return nil
}

func (f *Fake) ListGroupMembers(_ context.Context, group string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListGroupMembers"); err != nil {
		return nil, err
	}
	return append([]string(nil), f.groups[group]...), nil
}

var _ directory.Client = (*Fake)(nil)
