package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/grabngo/loaner/internal/apperr"
	"github.com/grabngo/loaner/internal/metrics"
	"github.com/grabngo/loaner/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConflictRetries is how many times a device transition is retried after a stale write
const ConflictRetries = 3

// DeviceRepository handles database operations for Device
type DeviceRepository struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *DeviceRepository) WithTx(tx *gorm.DB) *DeviceRepository {
	return &DeviceRepository{db: tx}
}

// Create inserts a new device
func (r *DeviceRepository) Create(ctx context.Context, d *model.Device) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(d).Error
}

func (r *DeviceRepository) findOne(ctx context.Context, query string, arg interface{}) (*model.Device, error) {
	var d model.Device
	err := r.db.WithContext(ctx).Preload("Tags").Where(query, arg).First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrDeviceDoesNotExist
		}
		return nil, err
	}
	return &d, nil
}

// FindByID finds a device by its surrogate key
func (r *DeviceRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Device, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByChromeID finds a device by its directory id
func (r *DeviceRepository) FindByChromeID(ctx context.Context, chromeID string) (*model.Device, error) {
	return r.findOne(ctx, "chrome_device_id = ?", chromeID)
}

// FindBySerial finds a device by serial number
func (r *DeviceRepository) FindBySerial(ctx context.Context, serial string) (*model.Device, error) {
	return r.findOne(ctx, "serial_number = ?", serial)
}

// FindByAssetTag finds a device by asset tag
func (r *DeviceRepository) FindByAssetTag(ctx context.Context, tag string) (*model.Device, error) {
	return r.findOne(ctx, "asset_tag = ?", tag)
}

// Save writes d if the stored row still carries d.Version.
// On success d.Version is advanced; a stale row yields ErrConcurrentModification.
func (r *DeviceRepository) Save(ctx context.Context, d *model.Device) error {
	prev := d.Version
	d.Version = prev + 1

	res := r.db.WithContext(ctx).Model(d).
		Where("version = ?", prev).
		Select("*").
		Omit("id", "created_at", clause.Associations).
		Updates(d)
	if res.Error != nil {
		d.Version = prev
		return res.Error
	}
	if res.RowsAffected == 0 {
		d.Version = prev
		return apperr.ErrConcurrentModification
	}
	return nil
}

// Mutate runs fn against the latest row and commits it with compare-and-set,
// reloading and re-running fn when another writer got there first.
func (r *DeviceRepository) Mutate(ctx context.Context, id uuid.UUID, fn func(d *model.Device) error) (*model.Device, error) {
	for attempt := 0; attempt <= ConflictRetries; attempt++ {
		d, err := r.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(d); err != nil {
			return nil, err
		}
		err = r.Save(ctx, d)
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, apperr.ErrConcurrentModification) {
			return nil, err
		}
		metrics.WriteConflicts.Inc()
	}
	return nil, apperr.ErrConcurrentModification.Withf("device %s modified concurrently", id)
}

// List returns a filtered page of devices and the total match count
func (r *DeviceRepository) List(ctx context.Context, f model.DeviceFilter, page Page) ([]model.Device, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Device{})
	if f.Enrolled != nil {
		q = q.Where("enrolled = ?", *f.Enrolled)
	}
	if f.AssignedUser != "" {
		q = q.Where("assigned_user = ?", f.AssignedUser)
	}
	if f.ShelfID != nil {
		q = q.Where("shelf_id = ?", *f.ShelfID)
	}
	if f.Locked != nil {
		q = q.Where("locked = ?", *f.Locked)
	}
	if f.Lost != nil {
		q = q.Where("lost = ?", *f.Lost)
	}
	if f.Damaged != nil {
		q = q.Where("damaged = ?", *f.Damaged)
	}
	if f.TagName != "" {
		q = q.Where("id IN (?)", r.db.Table("device_tags").
			Select("device_tags.device_id").
			Joins("JOIN tags ON tags.id = device_tags.tag_id").
			Where("tags.name = ?", f.TagName))
	}
	if f.Query != "" {
		like := "%" + f.Query + "%"
		q = q.Where("serial_number LIKE ? OR asset_tag LIKE ? OR assigned_user LIKE ? OR device_model LIKE ?",
			like, like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var devices []model.Device
	err := q.Preload("Tags").
		Order("serial_number ASC").
		Offset(page.Offset).
		Limit(page.Size).
		Find(&devices).Error
	return devices, total, err
}

// ListByShelf returns the devices currently pointing at a shelf
func (r *DeviceRepository) ListByShelf(ctx context.Context, shelfID uuid.UUID) ([]model.Device, error) {
	var devices []model.Device
	err := r.db.WithContext(ctx).Where("shelf_id = ?", shelfID).Find(&devices).Error
	return devices, err
}

// CountByShelf counts devices pointing at a shelf
func (r *DeviceRepository) CountByShelf(ctx context.Context, shelfID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Device{}).Where("shelf_id = ?", shelfID).Count(&n).Error
	return n, err
}

// ListDueReminders returns on-loan devices whose next reminder is due at now
func (r *DeviceRepository) ListDueReminders(ctx context.Context, now time.Time) ([]model.Device, error) {
	var devices []model.Device
	err := r.db.WithContext(ctx).
		Where("enrolled = ? AND assigned_user <> ''", true).
		Where("next_reminder_time IS NOT NULL AND next_reminder_time <= ?", now).
		Order("next_reminder_time ASC").
		Find(&devices).Error
	return devices, err
}

// ListAll returns every device row, used by backups
func (r *DeviceRepository) ListAll(ctx context.Context) ([]model.Device, error) {
	var devices []model.Device
	err := r.db.WithContext(ctx).Preload("Tags").Order("created_at ASC").Find(&devices).Error
	return devices, err
}

// AddTag attaches a tag to the device
func (r *DeviceRepository) AddTag(ctx context.Context, d *model.Device, tag *model.Tag) error {
	return r.db.WithContext(ctx).Model(d).Association("Tags").Append(tag)
}

// RemoveTag detaches a tag from the device
func (r *DeviceRepository) RemoveTag(ctx context.Context, d *model.Device, tag *model.Tag) error {
	return r.db.WithContext(ctx).Model(d).Association("Tags").Delete(tag)
}
