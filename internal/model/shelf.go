package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Shelf represents a self-service location holding devices between loans
type Shelf struct {
	ID                       uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Location                 string     `json:"location" gorm:"size:255;uniqueIndex;not null"`
	Enabled                  bool       `json:"enabled" gorm:"index"`
	FriendlyName             string     `json:"friendly_name" gorm:"size:255"`
	Capacity                 int        `json:"capacity" gorm:"not null"`
	Latitude                 *float64   `json:"latitude"`
	Longitude                *float64   `json:"longitude"`
	Altitude                 *float64   `json:"altitude"`
	ResponsibleForAudit      string     `json:"responsible_for_audit" gorm:"size:255"`
	AuditNotificationEnabled bool       `json:"audit_notification_enabled"`
	AuditIntervalOverride    *int       `json:"audit_interval_override"` // hours
	AuditRequested           bool       `json:"audit_requested" gorm:"default:false"`
	LastAuditTime            *time.Time `json:"last_audit_time"`
	LastAuditBy              string     `json:"last_audit_by" gorm:"size:255"`
	CreatedAt                time.Time  `json:"created_at"`
	UpdatedAt                time.Time  `json:"updated_at"`
}

// BeforeCreate assigns the surrogate key
func (s *Shelf) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Identifier returns the friendly name when set, the location otherwise
func (s *Shelf) Identifier() string {
	if s.FriendlyName != "" {
		return s.FriendlyName
	}
	return s.Location
}

// AuditDue reports whether an audit should be requested at now
func (s *Shelf) AuditDue(now time.Time, defaultIntervalHours int) bool {
	if !s.Enabled || !s.AuditNotificationEnabled || s.AuditRequested {
		return false
	}
	interval := defaultIntervalHours
	if s.AuditIntervalOverride != nil {
		interval = *s.AuditIntervalOverride
	}
	if s.LastAuditTime == nil {
		return true
	}
	return !now.Before(s.LastAuditTime.Add(time.Duration(interval) * time.Hour))
}
