package model

import (
	"time"

	"github.com/google/uuid"
)

// ==================== Auth ====================

type GoogleLoginRequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// GoogleUserInfo holds the verified claims of a Google ID token
type GoogleUserInfo struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Verified bool   `json:"verified"`
}

type UserResponse struct {
	Email       string       `json:"email"`
	Superadmin  bool         `json:"superadmin"`
	Roles       []string     `json:"roles"`
	Permissions []Permission `json:"permissions"`
}

// ToResponse converts User to UserResponse
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		Email:       u.Email,
		Superadmin:  u.Superadmin,
		Roles:       u.RoleNames(),
		Permissions: u.Permissions(),
	}
}

// ==================== Devices ====================

// DeviceIdentifier carries any of the accepted ways to name a device
type DeviceIdentifier struct {
	URLSafeKey        string `json:"urlkey" form:"urlkey"`
	ChromeDeviceID    string `json:"chrome_device_id" form:"chrome_device_id"`
	AssetTag          string `json:"asset_tag" form:"asset_tag"`
	SerialNumber      string `json:"serial_number" form:"serial_number"`
	UnknownIdentifier string `json:"identifier" form:"identifier"`
}

// Empty reports whether no identifier was supplied
func (d DeviceIdentifier) Empty() bool {
	return d.URLSafeKey == "" && d.ChromeDeviceID == "" && d.AssetTag == "" &&
		d.SerialNumber == "" && d.UnknownIdentifier == ""
}

type HeartbeatRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
}

type HeartbeatResponse struct {
	IsEnrolled       bool `json:"is_enrolled"`
	StartAssignment  bool `json:"start_assignment"`
	SilentOnboarding bool `json:"silent_onboarding"`
}

// AssignDeviceRequest loans a device. UserEmail defaults to the caller.
type AssignDeviceRequest struct {
	DeviceIdentifier
	UserEmail string `json:"user_email"`
}

type EnrollDeviceRequest struct {
	SerialNumber string `json:"serial_number"`
	AssetTag     string `json:"asset_tag"`
}

type ExtendLoanRequest struct {
	DeviceIdentifier
	ExtendDate time.Time `json:"extend_date" binding:"required"`
}

type DamagedRequest struct {
	DeviceIdentifier
	Reason string `json:"damaged_reason"`
}

type DeviceTagRequest struct {
	DeviceIdentifier
	TagName string `json:"tag_name" binding:"required"`
}

type ListDevicesRequest struct {
	PageSize     int    `form:"page_size"`
	PageToken    string `form:"page_token"`
	Enrolled     *bool  `form:"enrolled"`
	AssignedUser string `form:"assigned_user"`
	Shelf        string `form:"shelf"`
	Locked       *bool  `form:"locked"`
	Lost         *bool  `form:"lost"`
	Damaged      *bool  `form:"damaged"`
	Tag          string `form:"tag"`
	Query        string `form:"query"`
}

type DeviceListResponse struct {
	Devices       []Device `json:"devices"`
	NextPageToken string   `json:"next_page_token,omitempty"`
	TotalResults  int64    `json:"total_results"`
}

// ==================== Shelves ====================

type EnrollShelfRequest struct {
	Location                 string   `json:"location" binding:"required"`
	Capacity                 int      `json:"capacity" binding:"required,min=1"`
	FriendlyName             string   `json:"friendly_name"`
	Latitude                 *float64 `json:"latitude"`
	Longitude                *float64 `json:"longitude"`
	Altitude                 *float64 `json:"altitude"`
	ResponsibleForAudit      string   `json:"responsible_for_audit"`
	AuditNotificationEnabled *bool    `json:"audit_notification_enabled"`
	AuditIntervalOverride    *int     `json:"audit_interval_override"`
}

type UpdateShelfRequest struct {
	Location                 *string  `json:"location"`
	Capacity                 *int     `json:"capacity"`
	FriendlyName             *string  `json:"friendly_name"`
	Latitude                 *float64 `json:"latitude"`
	Longitude                *float64 `json:"longitude"`
	Altitude                 *float64 `json:"altitude"`
	ResponsibleForAudit      *string  `json:"responsible_for_audit"`
	AuditNotificationEnabled *bool    `json:"audit_notification_enabled"`
	AuditIntervalOverride    *int     `json:"audit_interval_override"`
}

type AuditShelfRequest struct {
	DeviceIdentifiers []string `json:"device_identifiers"`
}

type ListShelvesRequest struct {
	PageSize  int    `form:"page_size"`
	PageToken string `form:"page_token"`
	Enabled   *bool  `form:"enabled"`
	Query     string `form:"query"`
}

type ShelfListResponse struct {
	Shelves       []Shelf `json:"shelves"`
	NextPageToken string  `json:"next_page_token,omitempty"`
	TotalResults  int64   `json:"total_results"`
}

// ==================== Tags ====================

type TagRequest struct {
	Name        string `json:"name" binding:"required"`
	Color       string `json:"color"`
	Hidden      bool   `json:"hidden"`
	Protect     bool   `json:"protect"`
	Description string `json:"description"`
}

// ==================== Config ====================

// ConfigValue is a typed configuration value on the wire
type ConfigValue struct {
	Name         string   `json:"name"`
	StringValue  *string  `json:"string_value,omitempty"`
	IntegerValue *int64   `json:"integer_value,omitempty"`
	BoolValue    *bool    `json:"bool_value,omitempty"`
	ListValue    []string `json:"list_value,omitempty"`
}

type UpdateConfigRequest struct {
	Configs []ConfigValue `json:"configs" binding:"required"`
}

// ==================== Survey ====================

type AnswerInput struct {
	Text            string `json:"text" binding:"required"`
	MoreInfoEnabled bool   `json:"more_info_enabled"`
	PlaceholderText string `json:"placeholder_text"`
}

type QuestionRequest struct {
	Type       QuestionType  `json:"type" binding:"required"`
	Text       string        `json:"text" binding:"required"`
	Enabled    bool          `json:"enabled"`
	RandWeight int           `json:"rand_weight" binding:"min=0"`
	Answers    []AnswerInput `json:"answers"`
}

type SubmitSurveyRequest struct {
	QuestionID   uuid.UUID `json:"question_id" binding:"required"`
	AnswerID     uuid.UUID `json:"answer_id" binding:"required"`
	MoreInfoText string    `json:"more_info_text"`
}

// ==================== Roles / reminders / events ====================

type RoleRequest struct {
	Name            string       `json:"name" binding:"required"`
	Permissions     []Permission `json:"permissions"`
	AssociatedGroup string       `json:"associated_group"`
}

type ReminderEventRequest struct {
	Level              int    `json:"level" binding:"min=0"`
	DelayAfterPrevious int64  `json:"delay_after_previous" binding:"min=0"`
	TemplateName       string `json:"template_name" binding:"required"`
	Description        string `json:"description"`
}

type SubscriptionRequest struct {
	EventName string   `json:"event_name" binding:"required"`
	Actions   []string `json:"actions"`
}

// ==================== Bootstrap ====================

type BootstrapRunRequest struct {
	Tasks []string `json:"requested_tasks"`
}

type BootstrapStatusResponse struct {
	Enabled   bool              `json:"enabled"`
	Started   bool              `json:"started"`
	Completed bool              `json:"completed"`
	Tasks     []BootstrapStatus `json:"tasks"`
}

type SetSuperadminRequest struct {
	Superadmin bool `json:"superadmin"`
}

type UserListResponse struct {
	Users         []User `json:"users"`
	NextPageToken string `json:"next_page_token,omitempty"`
	TotalResults  int64  `json:"total_results"`
}

// ==================== Live feed ====================

// EventNotice is published to live feed subscribers whenever an event is raised
type EventNotice struct {
	Event    string     `json:"event"`
	DeviceID *uuid.UUID `json:"device_id,omitempty"`
	ShelfID  *uuid.UUID `json:"shelf_id,omitempty"`
	Actor    string     `json:"actor,omitempty"`
	At       time.Time  `json:"at"`
}

// ==================== Common ====================

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}
