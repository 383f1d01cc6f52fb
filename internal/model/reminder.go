package model

import "time"

// ReminderEvent configures one escalation level of overdue reminders
type ReminderEvent struct {
	Level              int       `json:"level" gorm:"primaryKey;autoIncrement:false"`
	DelayAfterPrevious int64     `json:"delay_after_previous"` // seconds
	TemplateName       string    `json:"template_name" gorm:"size:100;not null"`
	Description        string    `json:"description" gorm:"size:255"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Delay returns the delay as a duration
func (r *ReminderEvent) Delay() time.Duration {
	return time.Duration(r.DelayAfterPrevious) * time.Second
}
