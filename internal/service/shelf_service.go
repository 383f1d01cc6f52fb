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
	"github.com/grabngo/loaner/internal/model"
	"github.com/grabngo/loaner/internal/repository"
	"github.com/grabngo/loaner/internal/settings"
	"gorm.io/gorm"
)

type ShelfService struct {
	db       *gorm.DB
	shelves  *repository.ShelfRepository
	devices  *repository.DeviceRepository
	deviceSv *DeviceService
	settings *settings.Store
	bus      *event.Bus
	now      func() time.Time
}

func NewShelfService(
	db *gorm.DB,
	shelves *repository.ShelfRepository,
	devices *repository.DeviceRepository,
	deviceSv *DeviceService,
	store *settings.Store,
	bus *event.Bus,
) *ShelfService {
	return &ShelfService{
		db:       db,
		shelves:  shelves,
		devices:  devices,
		deviceSv: deviceSv,
		settings: store,
		bus:      bus,
		now:      utcNow,
	}
}

func (s *ShelfService) raise(ctx context.Context, name string, shelf *model.Shelf, actor string) {
	s.bus.Raise(ctx, name, action.Args{Shelf: shelf, ActingUser: actor})
}

func checkLatLong(lat, long *float64) error {
	if (lat == nil) != (long == nil) {
		return apperr.ErrLatLong.Withf("latitude and longitude must be given together")
	}
	if lat != nil && (*lat < -90 || *lat > 90 || *long < -180 || *long > 180) {
		return apperr.ErrLatLong.Withf("coordinates out of range")
	}
	return nil
}

// ==================== Enroll ====================

// Enroll creates an enabled shelf
func (s *ShelfService) Enroll(ctx context.Context, req model.EnrollShelfRequest, actor string) (*model.Shelf, error) {
	if err := checkLatLong(req.Latitude, req.Longitude); err != nil {
		return nil, err
	}

	shelf := &model.Shelf{
		Location:                 req.Location,
		Enabled:                  true,
		FriendlyName:             req.FriendlyName,
		Capacity:                 req.Capacity,
		Latitude:                 req.Latitude,
		Longitude:                req.Longitude,
		Altitude:                 req.Altitude,
		ResponsibleForAudit:      req.ResponsibleForAudit,
		AuditNotificationEnabled: true,
		AuditIntervalOverride:    req.AuditIntervalOverride,
	}
	if req.AuditNotificationEnabled != nil {
		shelf.AuditNotificationEnabled = *req.AuditNotificationEnabled
	}

	if err := s.shelves.Create(ctx, shelf); err != nil {
		return nil, err
	}

	log.Printf("✅ Shelf enrolled: %s", shelf.Location)
	s.raise(ctx, model.EventShelfEnroll, shelf, actor)
	return shelf, nil
}

// ==================== Lookup ====================

// Get loads a shelf by url-safe key or location
func (s *ShelfService) Get(ctx context.Context, key string) (*model.Shelf, error) {
	if key == "" {
		return nil, apperr.ErrBadInput.Withf("a shelf key or location is required")
	}
	if id, err := uuid.Parse(key); err == nil {
		shelf, err := s.shelves.FindByID(ctx, id)
		if !errors.Is(err, apperr.ErrShelfNotFound) {
			return shelf, err
		}
	}
	return s.shelves.FindByLocation(ctx, key)
}

// List returns a filtered page of shelves. Disabled shelves are hidden
// unless asked for explicitly.
func (s *ShelfService) List(ctx context.Context, req model.ListShelvesRequest) (*model.ShelfListResponse, error) {
	page, err := repository.ParsePage(req.PageSize, req.PageToken)
	if err != nil {
		return nil, err
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	shelves, total, err := s.shelves.List(ctx, &enabled, req.Query, page)
	if err != nil {
		return nil, err
	}
	return &model.ShelfListResponse{
		Shelves:       shelves,
		NextPageToken: page.NextToken(total),
		TotalResults:  total,
	}, nil
}

// ==================== Update ====================

// Disable stops a shelf from accepting devices
func (s *ShelfService) Disable(ctx context.Context, key, actor string) (*model.Shelf, error) {
	shelf, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	shelf.Enabled = false
	if err := s.shelves.Save(ctx, shelf); err != nil {
		return nil, err
	}

	s.raise(ctx, model.EventShelfDisable, shelf, actor)
	return shelf, nil
}

// Update applies a partial update. Moving to a location already taken fails.
func (s *ShelfService) Update(ctx context.Context, key string, req model.UpdateShelfRequest, actor string) (*model.Shelf, error) {
	shelf, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	if req.Location != nil && *req.Location != shelf.Location {
		other, err := s.shelves.FindByLocation(ctx, *req.Location)
		if err == nil && other.ID != shelf.ID {
			return nil, apperr.ErrShelfDuplicate.Withf("a shelf already exists at %s", *req.Location)
		}
		if err != nil && !errors.Is(err, apperr.ErrShelfNotFound) {
			return nil, err
		}
		shelf.Location = *req.Location
	}
	if req.Latitude != nil || req.Longitude != nil {
		if err := checkLatLong(req.Latitude, req.Longitude); err != nil {
			return nil, err
		}
		shelf.Latitude, shelf.Longitude = req.Latitude, req.Longitude
	}
	if req.Capacity != nil {
		if *req.Capacity < 1 {
			return nil, apperr.ErrBadInput.Withf("capacity must be positive")
		}
		held, err := s.devices.CountByShelf(ctx, shelf.ID)
		if err != nil {
			return nil, err
		}
		if int64(*req.Capacity) < held {
			return nil, apperr.ErrShelfCapacity.Withf("shelf %s holds %d devices, capacity %d requested",
				shelf.Location, held, *req.Capacity)
		}
		shelf.Capacity = *req.Capacity
	}
	if req.FriendlyName != nil {
		shelf.FriendlyName = *req.FriendlyName
	}
	if req.Altitude != nil {
		shelf.Altitude = req.Altitude
	}
	if req.ResponsibleForAudit != nil {
		shelf.ResponsibleForAudit = *req.ResponsibleForAudit
	}
	if req.AuditNotificationEnabled != nil {
		shelf.AuditNotificationEnabled = *req.AuditNotificationEnabled
	}
	if req.AuditIntervalOverride != nil {
		shelf.AuditIntervalOverride = req.AuditIntervalOverride
	}

	if err := s.shelves.Save(ctx, shelf); err != nil {
		return nil, err
	}

	s.raise(ctx, model.EventShelfUpdate, shelf, actor)
	return shelf, nil
}

// ==================== Audit ====================

// Audit reconciles the shelf's contents with the devices physically
// presented. Devices no longer present lose their shelf, presented devices
// gain it, and any on loan are returned. The whole audit commits or none of it.
func (s *ShelfService) Audit(ctx context.Context, key string, identifiers []string, actor string) (*model.Shelf, error) {
	shelf, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !shelf.Enabled {
		return nil, apperr.ErrShelfDisabled.Withf("shelf %s is disabled", shelf.Location)
	}

	defaultOU, err := s.deviceSv.ou(ctx, directory.OUDefault)
	if err != nil {
		return nil, err
	}

	presented := make(map[uuid.UUID]*model.Device)
	var order []uuid.UUID
	for _, ident := range identifiers {
		d, err := lookupDevice(ctx, s.devices, ident)
		if err != nil {
			return nil, err
		}
		if err := AuditCheck(d); err != nil {
			return nil, err
		}
		if _, dup := presented[d.ID]; !dup {
			presented[d.ID] = d
			order = append(order, d.ID)
		}
	}
	if len(presented) > shelf.Capacity {
		return nil, apperr.ErrShelfCapacity.Withf("shelf %s holds %d devices, %d presented",
			shelf.Location, shelf.Capacity, len(presented))
	}

	// Directory moves are made before the transaction opens; the returns
	// below refuse any device whose loan changed in the meantime.
	moves := make(map[uuid.UUID]string)
	for _, id := range order {
		d := presented[id]
		if d.OnLoan() && (d.Locked || d.GuestEnabled) {
			if err := s.deviceSv.directory.MoveToOU(ctx, d.ChromeDeviceID, defaultOU); err != nil {
				return nil, err
			}
			moves[id] = defaultOU
		}
	}

	var returned []*model.Device
	var formerUsers []string
	now := s.now()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		returned, formerUsers = nil, nil
		devices := s.devices.WithTx(tx)
		shelves := s.shelves.WithTx(tx)

		current, err := shelves.FindByID(ctx, shelf.ID)
		if err != nil {
			return err
		}
		if !current.Enabled {
			return apperr.ErrShelfDisabled.Withf("shelf %s is disabled", current.Location)
		}
		if len(presented) > current.Capacity {
			return apperr.ErrShelfCapacity.Withf("shelf %s holds %d devices, %d presented",
				current.Location, current.Capacity, len(presented))
		}

		onShelf, err := devices.ListByShelf(ctx, current.ID)
		if err != nil {
			return err
		}
		for _, d := range onShelf {
			if _, ok := presented[d.ID]; ok {
				continue
			}
			if _, err := devices.Mutate(ctx, d.ID, func(d *model.Device) error {
				d.ShelfID = nil
				return nil
			}); err != nil {
				return err
			}
		}

		shelfID := current.ID
		for _, id := range order {
			d := presented[id]
			if d.OnLoan() {
				former, ou := d.AssignedUser, moves[id]
				updated, err := devices.Mutate(ctx, id, func(d *model.Device) error {
					if d.AssignedUser != former || (ou == "" && (d.Locked || d.GuestEnabled)) {
						return apperr.ErrConcurrentModification.Withf("device %s changed during the audit", d.SerialNumber)
					}
					applyReturn(d, &shelfID, ou, now)
					return nil
				})
				if err != nil {
					return err
				}
				returned = append(returned, updated)
				formerUsers = append(formerUsers, former)
				continue
			}
			if d.ShelfID != nil && *d.ShelfID == shelfID {
				continue
			}
			if _, err := devices.Mutate(ctx, id, func(d *model.Device) error {
				if d.OnLoan() {
					return apperr.ErrConcurrentModification.Withf("device %s was loaned during the audit", d.SerialNumber)
				}
				d.ShelfID = &shelfID
				return nil
			}); err != nil {
				return err
			}
		}

		audited := now
		current.LastAuditTime = &audited
		current.LastAuditBy = actor
		current.AuditRequested = false
		if err := shelves.Save(ctx, current); err != nil {
			return err
		}
		shelf = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Shelf %s audited by %s: %d devices", shelf.Location, actor, len(identifiers))
	for i, d := range returned {
		s.bus.Raise(ctx, model.EventDeviceReturn, action.Args{Device: d, ActingUser: actor, User: formerUsers[i]})
	}
	s.raise(ctx, model.EventShelfAudited, shelf, actor)
	return shelf, nil
}

// AuditScan raises request_shelf_audit for every shelf whose audit interval
// has elapsed. It returns the number of shelves flagged.
func (s *ShelfService) AuditScan(ctx context.Context) (int, error) {
	enabled, err := s.settings.GetBool(ctx, settings.ShelfAudit)
	if err != nil {
		return 0, err
	}
	if !enabled {
		return 0, nil
	}
	interval, err := s.settings.GetInt(ctx, settings.AuditInterval)
	if err != nil {
		return 0, err
	}

	shelves, err := s.shelves.ListEnabled(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	flagged := 0
	for i := range shelves {
		shelf := &shelves[i]
		if !shelf.AuditDue(now, int(interval)) {
			continue
		}
		s.raise(ctx, model.EventRequestShelfAudit, shelf, "")
		flagged++
	}
	if flagged > 0 {
		log.Printf("📡 Requested audits for %d shelves", flagged)
	}
	return flagged, nil
}
