package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Event names raised by device and shelf transitions
const (
	EventDeviceEnroll        = "device_enroll"
	EventDeviceUnenroll      = "device_unenroll"
	EventDeviceLoanAssign    = "device_loan_assign"
	EventDeviceLoanExtend    = "device_loan_extend"
	EventDevicePendingReturn = "device_pending_return"
	EventDeviceLoanResume    = "device_loan_resume"
	EventDeviceReturn        = "device_return"
	EventDeviceGuestEnabled  = "device_guest_enabled"
	EventDeviceLock          = "device_lock"
	EventDeviceUnlock        = "device_unlock"
	EventDeviceDamaged       = "device_damaged"
	EventDeviceLost          = "device_lost"
	EventDeviceTagsChanged   = "device_tags_changed"
	EventReminderDue         = "reminder_due"
	EventShelfEnroll         = "shelf_enroll"
	EventShelfDisable        = "shelf_disable"
	EventShelfUpdate         = "shelf_update"
	EventShelfAudited        = "shelf_audited"
	EventRequestShelfAudit   = "request_shelf_audit"
)

// EventSubscription maps an event name to an ordered list of actions
type EventSubscription struct {
	EventName   string         `json:"event_name" gorm:"primaryKey;size:100"`
	ActionNames datatypes.JSON `json:"action_names"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Actions decodes the subscribed action names in order
func (s *EventSubscription) Actions() []string {
	var names []string
	if len(s.ActionNames) == 0 {
		return names
	}
	_ = json.Unmarshal(s.ActionNames, &names)
	return names
}

// SetActions encodes names into the JSON column
func (s *EventSubscription) SetActions(names []string) {
	if names == nil {
		names = []string{}
	}
	data, _ := json.Marshal(names)
	s.ActionNames = datatypes.JSON(data)
}

// BootstrapStatus records the outcome of one bootstrap task
type BootstrapStatus struct {
	Name        string    `json:"name" gorm:"primaryKey;size:100"`
	Description string    `json:"description" gorm:"size:255"`
	Success     bool      `json:"success"`
	Timestamp   time.Time `json:"timestamp"`
	Details     string    `json:"details" gorm:"type:text"`
}
