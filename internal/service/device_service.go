package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/grabngo/loaner/internal/action"
	"github.com/grabngo/loaner/internal/apperr"
	"github.com/grabngo/loaner/internal/directory"
	"github.com/grabngo/loaner/internal/event"
	"github.com/grabngo/loaner/internal/metrics"
	"github.com/grabngo/loaner/internal/model"
	"github.com/grabngo/loaner/internal/repository"
	"github.com/grabngo/loaner/internal/settings"
)

// DeviceService implements the device lifecycle: enrollment, loans, returns
// and fleet flags. Directory calls happen before the local write so a failed
// call leaves the row untouched; events are raised after the write commits.
type DeviceService struct {
	devices   *repository.DeviceRepository
	shelves   *repository.ShelfRepository
	tags      *repository.TagRepository
	settings  *settings.Store
	directory directory.Client
	bus       *event.Bus
	now       func() time.Time
}

func NewDeviceService(
	devices *repository.DeviceRepository,
	shelves *repository.ShelfRepository,
	tags *repository.TagRepository,
	store *settings.Store,
	dir directory.Client,
	bus *event.Bus,
) *DeviceService {
	return &DeviceService{
		devices:   devices,
		shelves:   shelves,
		tags:      tags,
		settings:  store,
		directory: dir,
		bus:       bus,
		now:       utcNow,
	}
}

func utcNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func (s *DeviceService) ou(ctx context.Context, name string) (string, error) {
	prefix, err := s.settings.GetString(ctx, settings.OrgUnitPrefix)
	if err != nil {
		return "", err
	}
	return directory.OUPath(prefix, name), nil
}

func (s *DeviceService) raise(ctx context.Context, name string, d *model.Device, actor, user string) {
	s.bus.Raise(ctx, name, action.Args{Device: d, ActingUser: actor, User: user})
}

// ==================== Lookup ====================

// Get resolves a device by the first identifier that matches, in the order
// url-safe key, chrome device id, asset tag, serial number, then the
// unknown identifier tried against each of those.
func (s *DeviceService) Get(ctx context.Context, ident model.DeviceIdentifier) (*model.Device, error) {
	if ident.Empty() {
		return nil, apperr.ErrIdentifierRequired
	}

	if ident.URLSafeKey != "" {
		id, err := uuid.Parse(ident.URLSafeKey)
		if err != nil {
			return nil, apperr.ErrBadURLSafeKey.Withf("malformed url-safe key %q", ident.URLSafeKey)
		}
		return s.devices.FindByID(ctx, id)
	}
	if ident.ChromeDeviceID != "" {
		return s.devices.FindByChromeID(ctx, ident.ChromeDeviceID)
	}
	if ident.AssetTag != "" {
		return s.devices.FindByAssetTag(ctx, ident.AssetTag)
	}
	if ident.SerialNumber != "" {
		return s.devices.FindBySerial(ctx, ident.SerialNumber)
	}
	return s.findByUnknown(ctx, ident.UnknownIdentifier)
}

func (s *DeviceService) findByUnknown(ctx context.Context, value string) (*model.Device, error) {
	return lookupDevice(ctx, s.devices, value)
}

// lookupDevice tries value as each kind of device identifier in turn
func lookupDevice(ctx context.Context, devices *repository.DeviceRepository, value string) (*model.Device, error) {
	if id, err := uuid.Parse(value); err == nil {
		if d, err := devices.FindByID(ctx, id); err == nil {
			return d, nil
		}
	}
	lookups := []func(context.Context, string) (*model.Device, error){
		devices.FindByChromeID,
		devices.FindByAssetTag,
		devices.FindBySerial,
	}
	for _, find := range lookups {
		d, err := find(ctx, value)
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, apperr.ErrDeviceDoesNotExist) {
			return nil, err
		}
	}
	return nil, apperr.ErrDeviceDoesNotExist.Withf("no device matches %q", value)
}

// List returns a filtered page of devices
func (s *DeviceService) List(ctx context.Context, req model.ListDevicesRequest) (*model.DeviceListResponse, error) {
	page, err := repository.ParsePage(req.PageSize, req.PageToken)
	if err != nil {
		return nil, err
	}

	filter := model.DeviceFilter{
		Enrolled:     req.Enrolled,
		AssignedUser: req.AssignedUser,
		Locked:       req.Locked,
		Lost:         req.Lost,
		Damaged:      req.Damaged,
		TagName:      req.Tag,
		Query:        req.Query,
	}
	if req.Shelf != "" {
		id, err := uuid.Parse(req.Shelf)
		if err != nil {
			shelf, err := s.shelves.FindByLocation(ctx, req.Shelf)
			if err != nil {
				return nil, err
			}
			id = shelf.ID
		}
		filter.ShelfID = &id
	}

	devices, total, err := s.devices.List(ctx, filter, page)
	if err != nil {
		return nil, err
	}
	return &model.DeviceListResponse{
		Devices:       devices,
		NextPageToken: page.NextToken(total),
		TotalResults:  total,
	}, nil
}

// ListUserDevices returns the devices on loan to email
func (s *DeviceService) ListUserDevices(ctx context.Context, email string) ([]model.Device, error) {
	enrolled := true
	devices, _, err := s.devices.List(ctx, model.DeviceFilter{Enrolled: &enrolled, AssignedUser: email},
		repository.Page{Size: repository.MaxPageSize})
	return devices, err
}

// ==================== Enrollment ====================

// Enroll brings a directory device into the loaner program. The identifiers
// required depend on device_identifier_mode.
func (s *DeviceService) Enroll(ctx context.Context, req model.EnrollDeviceRequest, actor string) (*model.Device, error) {
	mode, err := s.settings.GetString(ctx, settings.DeviceIdentifierMode)
	if err != nil {
		return nil, err
	}
	switch mode {
	case settings.ModeAssetTag:
		if req.AssetTag == "" {
			return nil, apperr.ErrIdentifierRequired.Withf("an asset tag is required to enroll")
		}
	case settings.ModeBothRequired:
		if req.AssetTag == "" || req.SerialNumber == "" {
			return nil, apperr.ErrIdentifierRequired.Withf("both serial number and asset tag are required to enroll")
		}
	default:
		if req.SerialNumber == "" {
			return nil, apperr.ErrIdentifierRequired.Withf("a serial number is required to enroll")
		}
	}

	var dirDev *directory.Device
	if req.SerialNumber != "" {
		dirDev, err = s.directory.GetBySerial(ctx, req.SerialNumber)
	} else {
		dirDev, err = s.directory.GetByAssetTag(ctx, req.AssetTag)
	}
	if err != nil {
		return nil, err
	}

	existing, err := s.devices.FindByChromeID(ctx, dirDev.DeviceID)
	if err != nil && !errors.Is(err, apperr.ErrDeviceDoesNotExist) {
		return nil, err
	}
	if existing != nil && existing.Enrolled {
		return nil, apperr.ErrDeviceAlreadyEnrolled.Withf("device %s is already enrolled", dirDev.SerialNumber)
	}

	ou, err := s.ou(ctx, directory.OUDefault)
	if err != nil {
		return nil, err
	}
	if err := s.directory.MoveToOU(ctx, dirDev.DeviceID, ou); err != nil {
		return nil, err
	}

	now := s.now()
	apply := func(d *model.Device) error {
		d.ChromeDeviceID = dirDev.DeviceID
		d.SerialNumber = dirDev.SerialNumber
		d.DeviceModel = dirDev.Model
		if tag := firstNonEmpty(req.AssetTag, dirDev.AssetTag); tag != "" {
			d.AssetTag = &tag
		}
		d.Enrolled = true
		d.Locked = false
		d.Lost = false
		d.Damaged = false
		d.DamagedReason = ""
		d.CurrentOU = ou
		d.OUChangedDate = &now
		d.ClearLoan()
		d.ShelfID = nil
		return nil
	}

	var d *model.Device
	if existing == nil {
		d = &model.Device{}
		_ = apply(d)
		err = s.devices.Create(ctx, d)
	} else {
		d, err = s.devices.Mutate(ctx, existing.ID, apply)
	}
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Enrolled device %s", d.SerialNumber)
	s.raise(ctx, model.EventDeviceEnroll, d, actor, "")
	return d, nil
}

// Unenroll removes a device from the program and parks it in the unenroll OU
func (s *DeviceService) Unenroll(ctx context.Context, ident model.DeviceIdentifier, actor string) (*model.Device, error) {
	d, err := s.Get(ctx, ident)
	if err != nil {
		return nil, err
	}
	if !d.Enrolled {
		return nil, apperr.ErrDeviceNotEnrolled.Withf("device %s is not enrolled", d.SerialNumber)
	}

	if d.Lost {
		if err := s.directory.Reenable(ctx, d.ChromeDeviceID); err != nil {
			return nil, err
		}
	}
	ou, err := s.settings.GetString(ctx, settings.UnenrollOU)
	if err != nil {
		return nil, err
	}
	if err := s.directory.MoveToOU(ctx, d.ChromeDeviceID, ou); err != nil {
		return nil, err
	}

	now := s.now()
	d, err = s.devices.Mutate(ctx, d.ID, func(d *model.Device) error {
		d.Enrolled = false
		d.ClearLoan()
		d.ShelfID = nil
		d.Locked = false
		d.Lost = false
		d.CurrentOU = ou
		d.OUChangedDate = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.raise(ctx, model.EventDeviceUnenroll, d, actor, "")
	return d, nil
}

// ==================== Heartbeat ====================

// Heartbeat records a device check-in and tells the device what to do next.
// userEmail is the signed-in user on the device, empty when nobody is.
func (s *DeviceService) Heartbeat(ctx context.Context, deviceID, userEmail string) (*model.HeartbeatResponse, error) {
	now := s.now()

	d, err := s.devices.FindByChromeID(ctx, deviceID)
	if errors.Is(err, apperr.ErrDeviceDoesNotExist) {
		return s.heartbeatUnknown(ctx, deviceID, now)
	}
	if err != nil {
		return nil, err
	}

	if !d.Enrolled {
		if _, err := s.touch(ctx, d.ID, now); err != nil {
			return nil, err
		}
		metrics.Heartbeats.WithLabelValues("unenrolled").Inc()
		return &model.HeartbeatResponse{IsEnrolled: false}, nil
	}

	// A pending return seen without its borrower means the device came back
	if d.OnLoan() && d.PendingReturn() && userEmail != d.AssignedUser {
		returned, err := s.completeReturn(ctx, d, nil, userEmail)
		switch {
		case errors.Is(err, apperr.ErrConcurrentModification):
			// the borrower resumed or the loan changed hands; go on with what is stored now
			if d, err = s.devices.FindByID(ctx, d.ID); err != nil {
				return nil, err
			}
		case err != nil:
			return nil, err
		default:
			d = returned
		}
	}

	if !d.OnLoan() {
		silent, err := s.settings.GetBool(ctx, settings.SilentOnboarding)
		if err != nil {
			return nil, err
		}
		if _, err := s.touch(ctx, d.ID, now); err != nil {
			return nil, err
		}
		if userEmail != "" && !d.Lost {
			if _, err := s.assign(ctx, d.ID, userEmail, userEmail); err != nil {
				return nil, err
			}
		}
		metrics.Heartbeats.WithLabelValues("start_assignment").Inc()
		return &model.HeartbeatResponse{IsEnrolled: true, StartAssignment: true, SilentOnboarding: silent}, nil
	}

	resumed := false
	d, err = s.devices.Mutate(ctx, d.ID, func(d *model.Device) error {
		d.LastHeartbeat = &now
		d.LastKnownHealthy = &now
		resumed = false
		if d.PendingReturn() && userEmail != "" && userEmail == d.AssignedUser {
			d.MarkPendingReturnDate = nil
			resumed = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if resumed {
		s.raise(ctx, model.EventDeviceLoanResume, d, userEmail, d.AssignedUser)
	}
	metrics.Heartbeats.WithLabelValues("on_loan").Inc()
	return &model.HeartbeatResponse{IsEnrolled: true}, nil
}

func (s *DeviceService) heartbeatUnknown(ctx context.Context, deviceID string, now time.Time) (*model.HeartbeatResponse, error) {
	dirDev, err := s.directory.GetByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	d := &model.Device{
		ChromeDeviceID: dirDev.DeviceID,
		SerialNumber:   dirDev.SerialNumber,
		DeviceModel:    dirDev.Model,
		CurrentOU:      dirDev.OrgUnitPath,
		LastHeartbeat:  &now,
	}
	if dirDev.AssetTag != "" {
		tag := dirDev.AssetTag
		d.AssetTag = &tag
	}
	if err := s.devices.Create(ctx, d); err != nil {
		return nil, err
	}
	metrics.Heartbeats.WithLabelValues("unknown").Inc()
	return &model.HeartbeatResponse{IsEnrolled: false}, nil
}

func (s *DeviceService) touch(ctx context.Context, id uuid.UUID, now time.Time) (*model.Device, error) {
	return s.devices.Mutate(ctx, id, func(d *model.Device) error {
		d.LastHeartbeat = &now
		if d.Enrolled {
			d.LastKnownHealthy = &now
		}
		return nil
	})
}

// ==================== Loans ====================

// Assign loans an enrolled, unassigned device to userEmail
func (s *DeviceService) Assign(ctx context.Context, ident model.DeviceIdentifier, userEmail, actor string) (*model.Device, error) {
	d, err := s.Get(ctx, ident)
	if err != nil {
		return nil, err
	}
	return s.assign(ctx, d.ID, userEmail, actor)
}

func (s *DeviceService) assign(ctx context.Context, id uuid.UUID, userEmail, actor string) (*model.Device, error) {
	loanDays, err := s.settings.GetInt(ctx, settings.LoanDuration)
	if err != nil {
		return nil, err
	}
	maxDays, err := s.settings.GetInt(ctx, settings.MaximumLoanDuration)
	if err != nil {
		return nil, err
	}

	now := s.now()
	due, maxExtend := ReturnDates(now, loanDays, maxDays)

	d, err := s.devices.Mutate(ctx, id, func(d *model.Device) error {
		if !d.Enrolled {
			return apperr.ErrDeviceNotEnrolled.Withf("device %s is not enrolled", d.SerialNumber)
		}
		if d.Lost {
			return apperr.ErrDeviceLost.Withf("device %s is marked lost", d.SerialNumber)
		}
		if d.OnLoan() {
			return apperr.ErrAlreadyAssigned.Withf("device %s is already assigned", d.SerialNumber)
		}
		assigned, dueDate, maxDate := now, due, maxExtend
		d.AssignedUser = userEmail
		d.AssignmentDate = &assigned
		d.DueDate = &dueDate
		d.MaxExtendDate = &maxDate
		d.MarkPendingReturnDate = nil
		d.ShelfID = nil
		d.Onboarded = false
		d.LastReminder = model.Reminder{}
		reminderAt := dueDate
		d.NextReminder = model.Reminder{Level: 0, Time: &reminderAt}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Device %s loaned to %s until %s", d.SerialNumber, userEmail, d.DueDate.Format(time.RFC3339))
	s.raise(ctx, model.EventDeviceLoanAssign, d, actor, userEmail)
	return d, nil
}

// ReturnDates computes the due date and the latest extension date of a loan
// starting at start. The due date never passes the extension limit.
func ReturnDates(start time.Time, loanDays, maxDays int64) (due, maxExtend time.Time) {
	due = start.AddDate(0, 0, int(loanDays))
	maxExtend = start.AddDate(0, 0, int(maxDays))
	if due.After(maxExtend) {
		due = maxExtend
	}
	return due, maxExtend
}

// requireBorrower checks that d is on loan to userEmail
func (s *DeviceService) requireBorrower(d *model.Device, userEmail string) error {
	if !d.OnLoan() {
		return apperr.ErrUnassignedDevice.Withf("device %s is not on loan", d.SerialNumber)
	}
	if d.AssignedUser != userEmail {
		return apperr.ErrNotAssignee.Withf("%s is not the borrower of device %s", userEmail, d.SerialNumber)
	}
	return nil
}

// Extend moves the due date of a loan, bounded by max_extend_date
func (s *DeviceService) Extend(ctx context.Context, ident model.DeviceIdentifier, userEmail string, extendTo time.Time) (*model.Device, error) {
	d, err := s.Get(ctx, ident)
	if err != nil {
		return nil, err
	}

	now := s.now()
	extendTo = extendTo.UTC()
	d, err = s.devices.Mutate(ctx, d.ID, func(d *model.Device) error {
		if err := s.requireBorrower(d, userEmail); err != nil {
			return err
		}
		if !extendTo.After(now) {
			return apperr.ErrExtend.Withf("extension date must be in the future")
		}
		if d.MaxExtendDate == nil || extendTo.After(*d.MaxExtendDate) {
			return apperr.ErrExtend.Withf("device %s cannot be extended past its maximum loan date", d.SerialNumber)
		}
		due := extendTo
		d.DueDate = &due
		level := d.NextReminder.Level
		if d.LastReminder.IsSet() && d.LastReminder.Level > level {
			level = d.LastReminder.Level
		}
		reminderAt := due
		d.NextReminder = model.Reminder{Level: level, Time: &reminderAt}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.raise(ctx, model.EventDeviceLoanExtend, d, userEmail, userEmail)
	return d, nil
}

// MarkPendingReturn records that the borrower has started returning the device
func (s *DeviceService) MarkPendingReturn(ctx context.Context, ident model.DeviceIdentifier, userEmail string) (*model.Device, error) {
	d, err := s.Get(ctx, ident)
	if err != nil {
		return nil, err
	}

	now := s.now()
	d, err = s.devices.Mutate(ctx, d.ID, func(d *model.Device) error {
		if err := s.requireBorrower(d, userEmail); err != nil {
			return err
		}
		d.MarkPendingReturnDate = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.raise(ctx, model.EventDevicePendingReturn, d, userEmail, userEmail)
	return d, nil
}

// ResumeLoan cancels a pending return
func (s *DeviceService) ResumeLoan(ctx context.Context, ident model.DeviceIdentifier, userEmail string) (*model.Device, error) {
	d, err := s.Get(ctx, ident)
	if err != nil {
		return nil, err
	}

	d, err = s.devices.Mutate(ctx, d.ID, func(d *model.Device) error {
		if err := s.requireBorrower(d, userEmail); err != nil {
			return err
		}
		if !d.PendingReturn() {
			return apperr.ErrReturnNotPending.Withf("device %s has no pending return", d.SerialNumber)
		}
		d.MarkPendingReturnDate = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.raise(ctx, model.EventDeviceLoanResume, d, userEmail, userEmail)
	return d, nil
}

// returnOU reports the OU a returning device must be moved to, or "" when it can stay put
func (s *DeviceService) returnOU(ctx context.Context, d *model.Device) (string, error) {
	if !d.Locked && !d.GuestEnabled {
		return "", nil
	}
	return s.ou(ctx, directory.OUDefault)
}

// applyReturn clears the loan and optionally places the device on a shelf
func applyReturn(d *model.Device, shelfID *uuid.UUID, ou string, now time.Time) {
	d.ClearLoan()
	d.Locked = false
	d.ShelfID = shelfID
	if ou != "" {
		d.CurrentOU = ou
		d.OUChangedDate = &now
	}
}

// stillReturning reports a conflict when d is no longer on a pending return
// to former
func stillReturning(d *model.Device, former string) error {
	if d.AssignedUser != former || !d.PendingReturn() {
		return apperr.ErrConcurrentModification.Withf("device %s is no longer being returned by %s", d.SerialNumber, former)
	}
	return nil
}

// completeReturn ends the pending return seen on d and raises device_return.
// It refuses when the loan moved on since d was read.
func (s *DeviceService) completeReturn(ctx context.Context, d *model.Device, shelfID *uuid.UUID, actor string) (*model.Device, error) {
	former := d.AssignedUser
	fresh, err := s.devices.FindByID(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	if err := stillReturning(fresh, former); err != nil {
		return nil, err
	}

	ou, err := s.returnOU(ctx, fresh)
	if err != nil {
		return nil, err
	}
	if ou != "" {
		if err := s.directory.MoveToOU(ctx, fresh.ChromeDeviceID, ou); err != nil {
			return nil, err
		}
	}

	now := s.now()
	d, err = s.devices.Mutate(ctx, d.ID, func(d *model.Device) error {
		if err := stillReturning(d, former); err != nil {
			return err
		}
		applyReturn(d, shelfID, ou, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Device %s returned by %s", d.SerialNumber, former)
	s.raise(ctx, model.EventDeviceReturn, d, actor, former)
	return d, nil
}

// ==================== Guest mode ====================

// EnableGuestMode moves the borrower's device into the guest OU for the
// configured window and schedules its expiry
func (s *DeviceService) EnableGuestMode(ctx context.Context, ident model.DeviceIdentifier, userEmail string) (*model.Device, error) {
	allowed, err := s.settings.GetBool(ctx, settings.AllowGuestMode)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, apperr.ErrGuestNotAllowed
	}

	d, err := s.Get(ctx, ident)
	if err != nil {
		return nil, err
	}
	if err := s.requireBorrower(d, userEmail); err != nil {
		return nil, err
	}

	ou, err := s.ou(ctx, directory.OUGuest)
	if err != nil {
		return nil, err
	}
	if err := s.directory.MoveToOU(ctx, d.ChromeDeviceID, ou); err != nil {
		return nil, apperr.ErrEnableGuest.Wrap(err)
	}

	now := s.now()
	d, err = s.devices.Mutate(ctx, d.ID, func(d *model.Device) error {
		d.GuestEnabled = true
		d.CurrentOU = ou
		d.OUChangedDate = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.raise(ctx, model.EventDeviceGuestEnabled, d, userEmail, userEmail)

	hours, err := s.settings.GetInt(ctx, settings.GuestModeTimeoutInHours)
	if err != nil {
		log.Printf("⚠️  Guest mode timeout unavailable for %s: %v", d.SerialNumber, err)
		return d, nil
	}
	expiry := now.Add(time.Duration(hours) * time.Hour)
	if err := s.bus.Schedule(ctx, action.GuestModeExpired, action.Args{Device: d, ActingUser: userEmail}, expiry); err != nil {
		log.Printf("❌ Failed to schedule guest mode expiry for %s: %v", d.SerialNumber, err)
	}
	return d, nil
}

// ==================== Fleet flags ====================

// Lock moves the device into the locked OU
func (s *DeviceService) Lock(ctx context.Context, ident model.DeviceIdentifier, actor string) (*model.Device, error) {
	return s.setLocked(ctx, ident, actor, true)
}

// Unlock moves a locked device back into the default OU
func (s *DeviceService) Unlock(ctx context.Context, ident model.DeviceIdentifier, actor string) (*model.Device, error) {
	return s.setLocked(ctx, ident, actor, false)
}

func (s *DeviceService) setLocked(ctx context.Context, ident model.DeviceIdentifier, actor string, locked bool) (*model.Device, error) {
	d, err := s.Get(ctx, ident)
	if err != nil {
		return nil, err
	}
	if !d.Enrolled {
		return nil, apperr.ErrDeviceNotEnrolled.Withf("device %s is not enrolled", d.SerialNumber)
	}

	name, evt := directory.OULocked, model.EventDeviceLock
	if !locked {
		name, evt = directory.OUDefault, model.EventDeviceUnlock
	}
	ou, err := s.ou(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := s.directory.MoveToOU(ctx, d.ChromeDeviceID, ou); err != nil {
		return nil, err
	}

	now := s.now()
	d, err = s.devices.Mutate(ctx, d.ID, func(d *model.Device) error {
		d.Locked = locked
		d.CurrentOU = ou
		d.OUChangedDate = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.raise(ctx, evt, d, actor, d.AssignedUser)
	return d, nil
}

// MarkDamaged flags a device as damaged
func (s *DeviceService) MarkDamaged(ctx context.Context, ident model.DeviceIdentifier, actor, reason string) (*model.Device, error) {
	d, err := s.Get(ctx, ident)
	if err != nil {
		return nil, err
	}

	d, err = s.devices.Mutate(ctx, d.ID, func(d *model.Device) error {
		d.Damaged = true
		d.DamagedReason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.raise(ctx, model.EventDeviceDamaged, d, actor, d.AssignedUser)
	return d, nil
}

// MarkLost disables the device in the directory and ends its loan
func (s *DeviceService) MarkLost(ctx context.Context, ident model.DeviceIdentifier, actor string) (*model.Device, error) {
	d, err := s.Get(ctx, ident)
	if err != nil {
		return nil, err
	}
	if err := s.directory.Disable(ctx, d.ChromeDeviceID); err != nil {
		return nil, err
	}

	former := d.AssignedUser
	d, err = s.devices.Mutate(ctx, d.ID, func(d *model.Device) error {
		d.Lost = true
		d.ClearLoan()
		d.ShelfID = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.raise(ctx, model.EventDeviceLost, d, actor, former)
	return d, nil
}

// AuditCheck verifies a device may be placed on a shelf
func AuditCheck(d *model.Device) error {
	switch {
	case !d.Enrolled:
		return apperr.ErrDeviceNotEnrolled.Withf("device %s is not enrolled", d.SerialNumber)
	case d.Damaged:
		return apperr.ErrDeviceDamaged.Withf("device %s is marked damaged", d.SerialNumber)
	case d.Lost:
		return apperr.ErrDeviceLost.Withf("device %s is marked lost", d.SerialNumber)
	}
	return nil
}

// DeviceAuditCheck resolves a device and runs AuditCheck on it
func (s *DeviceService) DeviceAuditCheck(ctx context.Context, ident model.DeviceIdentifier) (*model.Device, error) {
	d, err := s.Get(ctx, ident)
	if err != nil {
		return nil, err
	}
	return d, AuditCheck(d)
}

// ==================== Tags ====================

// AddTag attaches a tag to a device
func (s *DeviceService) AddTag(ctx context.Context, ident model.DeviceIdentifier, tagName, actor string) (*model.Device, error) {
	d, err := s.Get(ctx, ident)
	if err != nil {
		return nil, err
	}
	tag, err := s.tags.FindByName(ctx, tagName)
	if err != nil {
		return nil, err
	}
	if err := s.devices.AddTag(ctx, d, tag); err != nil {
		return nil, err
	}
	d, err = s.devices.FindByID(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	s.raise(ctx, model.EventDeviceTagsChanged, d, actor, d.AssignedUser)
	return d, nil
}

// RemoveTag detaches a tag from a device
func (s *DeviceService) RemoveTag(ctx context.Context, ident model.DeviceIdentifier, tagName, actor string) (*model.Device, error) {
	d, err := s.Get(ctx, ident)
	if err != nil {
		return nil, err
	}
	tag, err := s.tags.FindByName(ctx, tagName)
	if err != nil {
		return nil, err
	}
	if err := s.devices.RemoveTag(ctx, d, tag); err != nil {
		return nil, err
	}
	d, err = s.devices.FindByID(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	s.raise(ctx, model.EventDeviceTagsChanged, d, actor, d.AssignedUser)
	return d, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
