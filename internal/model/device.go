package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reminder is one escalation checkpoint of a loan
type Reminder struct {
	Level int        `json:"level" gorm:"default:0"`
	Time  *time.Time `json:"time"`
	Count int        `json:"count" gorm:"default:0"`
}

// IsSet reports whether the reminder is scheduled
func (r Reminder) IsSet() bool {
	return r.Time != nil
}

// Device represents a single Chromebook in the loaner fleet
type Device struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	ChromeDeviceID string    `json:"chrome_device_id" gorm:"size:100;uniqueIndex;not null"`
	SerialNumber   string    `json:"serial_number" gorm:"size:100;uniqueIndex;not null"`
	AssetTag       *string   `json:"asset_tag" gorm:"size:100;uniqueIndex"`
	DeviceModel    string    `json:"device_model" gorm:"size:100"`

	// Fleet state
	Enrolled         bool       `json:"enrolled" gorm:"default:false;index"`
	CurrentOU        string     `json:"current_ou" gorm:"size:255"`
	OUChangedDate    *time.Time `json:"ou_changed_date"`
	Locked           bool       `json:"locked" gorm:"default:false"`
	Lost             bool       `json:"lost" gorm:"default:false"`
	Damaged          bool       `json:"damaged" gorm:"default:false"`
	DamagedReason    string     `json:"damaged_reason" gorm:"size:500"`
	LastHeartbeat    *time.Time `json:"last_heartbeat"`
	LastKnownHealthy *time.Time `json:"last_known_healthy"`

	// Loan state
	AssignedUser          string     `json:"assigned_user" gorm:"size:255;index"`
	AssignmentDate        *time.Time `json:"assignment_date"`
	DueDate               *time.Time `json:"due_date"`
	MarkPendingReturnDate *time.Time `json:"mark_pending_return_date"`
	MaxExtendDate         *time.Time `json:"max_extend_date"`
	ShelfID               *uuid.UUID `json:"shelf_id" gorm:"type:uuid;index"`
	Onboarded             bool       `json:"onboarded" gorm:"default:false"`
	GuestEnabled          bool       `json:"guest_enabled" gorm:"default:false"`

	// Reminder state
	LastReminder Reminder `json:"last_reminder" gorm:"embedded;embeddedPrefix:last_reminder_"`
	NextReminder Reminder `json:"next_reminder" gorm:"embedded;embeddedPrefix:next_reminder_"`

	Tags []Tag `json:"tags,omitempty" gorm:"many2many:device_tags"`

	Version   int64     `json:"-" gorm:"not null;default:1"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns the surrogate key
func (d *Device) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Version == 0 {
		d.Version = 1
	}
	return nil
}

// URLSafeKey is the opaque identifier exposed to clients
func (d *Device) URLSafeKey() string {
	return d.ID.String()
}

// OnLoan reports whether the device is assigned to a user
func (d *Device) OnLoan() bool {
	return d.AssignedUser != ""
}

// PendingReturn reports whether the assignee has started a return
func (d *Device) PendingReturn() bool {
	return d.MarkPendingReturnDate != nil
}

// ClearLoan resets the loan and reminder fields
func (d *Device) ClearLoan() {
	d.AssignedUser = ""
	d.AssignmentDate = nil
	d.DueDate = nil
	d.MarkPendingReturnDate = nil
	d.MaxExtendDate = nil
	d.LastReminder = Reminder{}
	d.NextReminder = Reminder{}
	d.GuestEnabled = false
}

// DeviceFilter narrows device listings
type DeviceFilter struct {
	Enrolled     *bool
	AssignedUser string
	ShelfID      *uuid.UUID
	Locked       *bool
	Lost         *bool
	Damaged      *bool
	TagName      string
	Query        string
}
