// Package settings is the typed runtime configuration store.
//
// Lookups fall back from the in-process memo to the settings table and finally
// to the compiled-in defaults. Writes persist first and then refresh the memo.
package settings

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/grabngo/loaner/internal/apperr"
	"github.com/grabngo/loaner/internal/model"
	"github.com/grabngo/loaner/internal/repository"
	"github.com/patrickmn/go-cache"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"
)

// Recognized keys
const (
	AllowGuestMode          = "allow_guest_mode"
	AnonymousSurveys        = "anonymous_surveys"
	AnonymousSurveyUser     = "anonymous_survey_user"
	AuditInterval           = "audit_interval"
	BootstrapCompleted      = "bootstrap_completed"
	BootstrapStarted        = "bootstrap_started"
	DeviceIdentifierMode    = "device_identifier_mode"
	EnableBackups           = "enable_backups"
	GCPCloudStorageBucket   = "gcp_cloud_storage_bucket"
	GuestModeTimeoutInHours = "guest_mode_timeout_in_hours"
	ImgBannerPrimary        = "img_banner_primary"
	ImgButtonManage         = "img_button_manage"
	LoanDuration            = "loan_duration"
	LoanDurationEmail       = "loan_duration_email"
	MaximumLoanDuration     = "maximum_loan_duration"
	OrgUnitPrefix           = "org_unit_prefix"
	ReminderEmailBCC        = "reminder_email_bcc"
	ShelfAudit              = "shelf_audit"
	ShelfAuditEmail         = "shelf_audit_email"
	ShelfAuditEmailTo       = "shelf_audit_email_to"
	SilentOnboarding        = "silent_onboarding"
	SupportContact          = "support_contact"
	UnenrollOU              = "unenroll_ou"
	UseAssetTags            = "use_asset_tags"
)

// Values of device_identifier_mode
const (
	ModeAssetTag     = "asset_tag"
	ModeSerialNumber = "serial_number"
	ModeBothRequired = "both_required"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Store resolves typed configuration values
type Store struct {
	repo     *repository.SettingRepository
	memo     *cache.Cache
	defaults map[string]interface{}
}

// New builds a Store over the settings table
func New(repo *repository.SettingRepository) (*Store, error) {
	raw := map[string]interface{}{}
	if err := yaml.Unmarshal(defaultsYAML, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse default settings: %w", err)
	}

	defaults := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		nv, err := normalize(v)
		if err != nil {
			return nil, fmt.Errorf("default %s: %w", k, err)
		}
		defaults[k] = nv
	}

	return &Store{
		repo:     repo,
		memo:     cache.New(cache.NoExpiration, 0),
		defaults: defaults,
	}, nil
}

// Get returns the effective value of name
func (s *Store) Get(ctx context.Context, name string) (interface{}, error) {
	if v, ok := s.memo.Get(name); ok {
		return v, nil
	}

	row, err := s.repo.Get(ctx, name)
	if err == nil {
		if v, ok := rowValue(row); ok {
			s.memo.Set(name, v, cache.NoExpiration)
			return v, nil
		}
	} else if !errors.Is(err, apperr.ErrKeyNotFound) {
		return nil, err
	}

	if v, ok := s.defaults[name]; ok {
		return v, nil
	}
	return nil, apperr.ErrKeyNotFound.Withf("%s", name)
}

// GetString returns a string-typed value
func (s *Store) GetString(ctx context.Context, name string) (string, error) {
	v, err := s.Get(ctx, name)
	if err != nil {
		return "", err
	}
	str, ok := v.(string)
	if !ok {
		return "", typeMismatch(name, "string", v)
	}
	return str, nil
}

// GetInt returns an integer-typed value
func (s *Store) GetInt(ctx context.Context, name string) (int64, error) {
	v, err := s.Get(ctx, name)
	if err != nil {
		return 0, err
	}
	n, ok := v.(int64)
	if !ok {
		return 0, typeMismatch(name, "int", v)
	}
	return n, nil
}

// GetBool returns a bool-typed value
func (s *Store) GetBool(ctx context.Context, name string) (bool, error) {
	v, err := s.Get(ctx, name)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, typeMismatch(name, "bool", v)
	}
	return b, nil
}

// GetList returns a list-typed value
func (s *Store) GetList(ctx context.Context, name string) ([]string, error) {
	v, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	l, ok := v.([]string)
	if !ok {
		return nil, typeMismatch(name, "list", v)
	}
	return l, nil
}

// Set persists value under name and refreshes the memo.
// With validate, name must be a known default key.
func (s *Store) Set(ctx context.Context, name string, value interface{}, validate bool) error {
	if validate {
		if _, ok := s.defaults[name]; !ok {
			return apperr.ErrKeyNotFound.Withf("%s is not a recognized setting", name)
		}
	}

	v, err := normalize(value)
	if err != nil {
		return apperr.ErrBadInput.Withf("setting %s: %v", name, err)
	}

	row := &model.Setting{Name: name}
	switch tv := v.(type) {
	case bool:
		row.BoolValue = &tv
	case int64:
		row.IntegerValue = &tv
	case string:
		row.StringValue = &tv
	case []string:
		data, _ := json.Marshal(tv)
		row.ListValue = datatypes.JSON(data)
	}

	if err := s.repo.Upsert(ctx, row); err != nil {
		return fmt.Errorf("failed to persist setting %s: %w", name, err)
	}
	s.memo.Set(name, v, cache.NoExpiration)
	return nil
}

// Keys returns every recognized setting name in order
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.defaults))
	for k := range s.defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// List returns the effective value of every recognized setting
func (s *Store) List(ctx context.Context) ([]model.ConfigValue, error) {
	keys := s.Keys()
	out := make([]model.ConfigValue, 0, len(keys))
	for _, k := range keys {
		v, err := s.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		out = append(out, ToConfigValue(k, v))
	}
	return out, nil
}

// Upgrade applies one-time migrations of stored settings
func (s *Store) Upgrade(ctx context.Context) error {
	_, err := s.repo.Get(ctx, DeviceIdentifierMode)
	if err == nil {
		return nil
	}
	if !errors.Is(err, apperr.ErrKeyNotFound) {
		return err
	}

	useAssetTags, err := s.GetBool(ctx, UseAssetTags)
	if err != nil {
		return err
	}
	if !useAssetTags {
		return nil
	}
	log.Printf("⚙️  Upgrading %s to %s (use_asset_tags is set)", DeviceIdentifierMode, ModeBothRequired)
	return s.Set(ctx, DeviceIdentifierMode, ModeBothRequired, true)
}

// ToConfigValue wraps a typed value for the wire
func ToConfigValue(name string, v interface{}) model.ConfigValue {
	cv := model.ConfigValue{Name: name}
	switch tv := v.(type) {
	case bool:
		cv.BoolValue = &tv
	case int64:
		cv.IntegerValue = &tv
	case string:
		cv.StringValue = &tv
	case []string:
		cv.ListValue = tv
	}
	return cv
}

// FromConfigValue extracts the single populated value
func FromConfigValue(cv model.ConfigValue) (interface{}, error) {
	switch {
	case cv.BoolValue != nil:
		return *cv.BoolValue, nil
	case cv.IntegerValue != nil:
		return *cv.IntegerValue, nil
	case cv.StringValue != nil:
		return *cv.StringValue, nil
	case cv.ListValue != nil:
		return cv.ListValue, nil
	}
	return nil, apperr.ErrBadInput.Withf("setting %s carries no value", cv.Name)
}

func rowValue(row *model.Setting) (interface{}, bool) {
	switch {
	case row.BoolValue != nil:
		return *row.BoolValue, true
	case row.IntegerValue != nil:
		return *row.IntegerValue, true
	case row.StringValue != nil:
		return *row.StringValue, true
	case len(row.ListValue) > 0:
		var l []string
		if err := json.Unmarshal(row.ListValue, &l); err != nil {
			return nil, false
		}
		return l, true
	}
	return nil, false
}

// normalize tags a value by its Go type; bool is matched before any integer kind
func normalize(v interface{}) (interface{}, error) {
	switch tv := v.(type) {
	case bool:
		return tv, nil
	case int:
		return int64(tv), nil
	case int32:
		return int64(tv), nil
	case int64:
		return tv, nil
	case string:
		return tv, nil
	case []string:
		if tv == nil {
			return []string{}, nil
		}
		return tv, nil
	case []interface{}:
		out := make([]string, 0, len(tv))
		for _, item := range tv {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("list items must be strings, got %T", item)
			}
			out = append(out, str)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported value type %T", v)
}

func typeMismatch(name, want string, got interface{}) error {
	return apperr.New(apperr.Internal, "ConfigTypeError", fmt.Sprintf("%s is %T, not %s", name, got, want))
}
