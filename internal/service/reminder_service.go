package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/grabngo/loaner/internal/action"
	"github.com/grabngo/loaner/internal/apperr"
	"github.com/grabngo/loaner/internal/event"
	"github.com/grabngo/loaner/internal/model"
	"github.com/grabngo/loaner/internal/repository"
)

// ReminderService drives overdue reminders and manages the reminder and
// event subscription tables
type ReminderService struct {
	devices   *repository.DeviceRepository
	reminders *repository.ReminderRepository
	subs      *repository.SubscriptionRepository
	registry  *action.Registry
	bus       *event.Bus
	now       func() time.Time
}

func NewReminderService(
	devices *repository.DeviceRepository,
	reminders *repository.ReminderRepository,
	subs *repository.SubscriptionRepository,
	registry *action.Registry,
	bus *event.Bus,
) *ReminderService {
	return &ReminderService{
		devices:   devices,
		reminders: reminders,
		subs:      subs,
		registry:  registry,
		bus:       bus,
		now:       utcNow,
	}
}

// ==================== Scan ====================

// ScanResult summarizes one reminder tick
type ScanResult struct {
	Raised  int `json:"raised"`
	Skipped int `json:"skipped"`
}

// Scan raises reminder_due for every on-loan device whose next reminder is
// due. Devices pointing at a level with no ReminderEvent are logged and skipped.
func (s *ReminderService) Scan(ctx context.Context) (ScanResult, error) {
	var res ScanResult

	devices, err := s.devices.ListDueReminders(ctx, s.now())
	if err != nil {
		return res, err
	}

	for i := range devices {
		d := &devices[i]
		if _, err := s.reminders.Get(ctx, d.NextReminder.Level); err != nil {
			if errors.Is(err, apperr.ErrReminderNotFound) {
				log.Printf("⚠️  %v", apperr.ErrBadDevice.Withf("device %s is due a reminder at level %d, which is not configured",
					d.SerialNumber, d.NextReminder.Level))
				res.Skipped++
				continue
			}
			return res, err
		}
		s.bus.Raise(ctx, model.EventReminderDue, action.Args{Device: d, User: d.AssignedUser})
		res.Raised++
	}

	if res.Raised > 0 || res.Skipped > 0 {
		log.Printf("📧 Reminder scan: %d raised, %d skipped", res.Raised, res.Skipped)
	}
	return res, nil
}

// ==================== Reminder events ====================

func (s *ReminderService) ListReminderEvents(ctx context.Context) ([]model.ReminderEvent, error) {
	return s.reminders.List(ctx)
}

func (s *ReminderService) GetReminderEvent(ctx context.Context, level int) (*model.ReminderEvent, error) {
	return s.reminders.Get(ctx, level)
}

// SaveReminderEvent creates or replaces the reminder at req.Level
func (s *ReminderService) SaveReminderEvent(ctx context.Context, req model.ReminderEventRequest) (*model.ReminderEvent, error) {
	if req.Level < 0 || req.DelayAfterPrevious < 0 {
		return nil, apperr.ErrBadInput.Withf("level and delay must not be negative")
	}
	ev := &model.ReminderEvent{
		Level:              req.Level,
		DelayAfterPrevious: req.DelayAfterPrevious,
		TemplateName:       req.TemplateName,
		Description:        req.Description,
	}
	if err := s.reminders.Upsert(ctx, ev); err != nil {
		return nil, err
	}
	return s.reminders.Get(ctx, req.Level)
}

func (s *ReminderService) DeleteReminderEvent(ctx context.Context, level int) error {
	return s.reminders.Delete(ctx, level)
}

// ==================== Subscriptions ====================

func (s *ReminderService) ListSubscriptions(ctx context.Context) ([]model.EventSubscription, error) {
	return s.subs.List(ctx)
}

// Subscribe replaces the action list of an event. Every action must be registered.
func (s *ReminderService) Subscribe(ctx context.Context, req model.SubscriptionRequest) error {
	if req.EventName == "" {
		return apperr.ErrBadInput.Withf("event name is required")
	}
	for _, name := range req.Actions {
		if _, err := s.registry.Get(name); err != nil {
			return err
		}
	}
	return s.subs.Upsert(ctx, req.EventName, req.Actions)
}

func (s *ReminderService) Unsubscribe(ctx context.Context, eventName string) error {
	return s.subs.Delete(ctx, eventName)
}
