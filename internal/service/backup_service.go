package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/grabngo/loaner/internal/apperr"
	"github.com/grabngo/loaner/internal/repository"
	"github.com/grabngo/loaner/internal/settings"
	"github.com/grabngo/loaner/pkg/storage"
)

// BackupResult describes one export run
type BackupResult struct {
	Skipped bool             `json:"skipped"`
	Bucket  string           `json:"bucket,omitempty"`
	Prefix  string           `json:"prefix,omitempty"`
	Objects []storage.Object `json:"objects,omitempty"`
}

// BackupService exports every table as JSON lines to object storage
type BackupService struct {
	devices   *repository.DeviceRepository
	shelves   *repository.ShelfRepository
	users     *repository.UserRepository
	tags      *repository.TagRepository
	reminders *repository.ReminderRepository
	subs      *repository.SubscriptionRepository
	surveys   *repository.SurveyRepository
	rows      *repository.SettingRepository
	settings  *settings.Store
	store     storage.ObjectStore
	now       func() time.Time
}

func NewBackupService(
	devices *repository.DeviceRepository,
	shelves *repository.ShelfRepository,
	users *repository.UserRepository,
	tags *repository.TagRepository,
	reminders *repository.ReminderRepository,
	subs *repository.SubscriptionRepository,
	surveys *repository.SurveyRepository,
	rows *repository.SettingRepository,
	store *settings.Store,
	objects storage.ObjectStore,
) *BackupService {
	return &BackupService{
		devices:   devices,
		shelves:   shelves,
		users:     users,
		tags:      tags,
		reminders: reminders,
		subs:      subs,
		surveys:   surveys,
		rows:      rows,
		settings:  store,
		store:     objects,
		now:       utcNow,
	}
}

type exportTable struct {
	name string
	load func(ctx context.Context) (interface{}, error)
}

func (s *BackupService) tables() []exportTable {
	return []exportTable{
		{"devices", func(ctx context.Context) (interface{}, error) { return s.devices.ListAll(ctx) }},
		{"shelves", func(ctx context.Context) (interface{}, error) { return s.shelves.ListAll(ctx) }},
		{"users", func(ctx context.Context) (interface{}, error) { return s.users.ListAll(ctx) }},
		{"roles", func(ctx context.Context) (interface{}, error) { return s.users.ListRoles(ctx) }},
		{"tags", func(ctx context.Context) (interface{}, error) { return s.tags.List(ctx, true) }},
		{"reminder_events", func(ctx context.Context) (interface{}, error) { return s.reminders.List(ctx) }},
		{"event_subscriptions", func(ctx context.Context) (interface{}, error) { return s.subs.List(ctx) }},
		{"questions", func(ctx context.Context) (interface{}, error) { return s.surveys.ListQuestions(ctx, "") }},
		{"settings", func(ctx context.Context) (interface{}, error) { return s.rows.List(ctx) }},
	}
}

// Run exports the database when backups are enabled and a bucket is set.
// Upload failures keep the remote status reachable via storage.StatusCode.
func (s *BackupService) Run(ctx context.Context) (*BackupResult, error) {
	enabled, err := s.settings.GetBool(ctx, settings.EnableBackups)
	if err != nil {
		return nil, err
	}
	bucket, err := s.settings.GetString(ctx, settings.GCPCloudStorageBucket)
	if err != nil {
		return nil, err
	}
	if !enabled || bucket == "" || s.store == nil {
		log.Printf("⚠️  Backups disabled or no bucket configured, skipping")
		return &BackupResult{Skipped: true}, nil
	}

	res := &BackupResult{
		Bucket: bucket,
		Prefix: "backups/" + s.now().Format("20060102T150405Z"),
	}
	for _, table := range s.tables() {
		rows, err := table.load(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", table.name, err)
		}
		data, err := jsonLines(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", table.name, err)
		}

		name := res.Prefix + "/" + table.name + ".jsonl"
		obj, err := s.store.Put(ctx, bucket, name, bytes.NewReader(data), int64(len(data)), "application/x-ndjson")
		if err != nil {
			return nil, apperr.ErrBackupUpload.Withf("%s", name).Wrap(err)
		}
		res.Objects = append(res.Objects, *obj)
	}

	log.Printf("✅ Backup written to %s/%s (%d tables)", bucket, res.Prefix, len(res.Objects))
	return res, nil
}

// jsonLines encodes a slice as one JSON document per line
func jsonLines(rows interface{}) ([]byte, error) {
	raw, err := json.Marshal(rows)
	if err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	for _, item := range items {
		buf.Write(item)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
