package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/grabngo/loaner/internal/action"
	"github.com/grabngo/loaner/internal/apperr"
	"github.com/grabngo/loaner/internal/model"
	"github.com/grabngo/loaner/internal/repository"
	"github.com/grabngo/loaner/internal/settings"
)

// Bootstrap task names
const (
	TaskDefaultSettings    = "default_settings"
	TaskDefaultRoles       = "default_roles"
	TaskReminderEvents     = "reminder_events"
	TaskEventSubscriptions = "event_subscriptions"
	TaskSurveyQuestions    = "survey_questions"
	TaskDefaultTags        = "default_tags"
)

// DefaultRoles returns the permission sets installed on a fresh deployment
func DefaultRoles() map[string][]model.Permission {
	return map[string][]model.Permission{
		model.RoleUser: {},
		"technician": {
			model.PermissionReadDevices,
			model.PermissionEnrollDevice,
			model.PermissionUnenrollDevice,
			model.PermissionLockDevice,
			model.PermissionUnlockDevice,
			model.PermissionMarkDamaged,
			model.PermissionMarkLost,
			model.PermissionReadShelves,
			model.PermissionAuditShelf,
		},
		"operator": {
			model.PermissionReadDevices,
			model.PermissionEnrollDevice,
			model.PermissionUnenrollDevice,
			model.PermissionLockDevice,
			model.PermissionUnlockDevice,
			model.PermissionMarkDamaged,
			model.PermissionMarkLost,
			model.PermissionReadShelves,
			model.PermissionModifyShelf,
			model.PermissionAuditShelf,
			model.PermissionModifyTag,
			model.PermissionReadConfigs,
			model.PermissionReadSurveys,
			model.PermissionModifySurvey,
			model.PermissionReadUsers,
		},
	}
}

// DefaultSubscriptions wires the built-in actions to the events that need them
func DefaultSubscriptions() map[string][]string {
	return map[string][]string{
		model.EventDeviceLoanAssign:  {action.SendWelcome},
		model.EventDeviceReturn:      {action.SendReturnThanks},
		model.EventReminderDue:       {action.SendReminder},
		model.EventRequestShelfAudit: {action.RequestShelfAudit},
	}
}

var defaultReminders = []model.ReminderEvent{
	{Level: 0, DelayAfterPrevious: 0, TemplateName: "reminder_due", Description: "Loan is due"},
	{Level: 1, DelayAfterPrevious: 86400, TemplateName: "reminder_overdue", Description: "Loan is a day overdue"},
	{Level: 2, DelayAfterPrevious: 172800, TemplateName: "reminder_final", Description: "Final notice"},
}

var defaultQuestions = []model.QuestionRequest{
	{
		Type:       model.QuestionTypeAssignment,
		Text:       "Why are you borrowing a loaner today?",
		Enabled:    true,
		RandWeight: 1,
		Answers: []model.AnswerInput{
			{Text: "My laptop is being repaired"},
			{Text: "I forgot my laptop at home"},
			{Text: "Other", MoreInfoEnabled: true, PlaceholderText: "Tell us more"},
		},
	},
	{
		Type:       model.QuestionTypeReturn,
		Text:       "How was your loaner experience?",
		Enabled:    true,
		RandWeight: 1,
		Answers: []model.AnswerInput{
			{Text: "Great"},
			{Text: "Fine"},
			{Text: "Something went wrong", MoreInfoEnabled: true, PlaceholderText: "What happened?"},
		},
	},
}

var defaultTags = []model.TagRequest{
	{Name: "Needs repair", Color: "red", Protect: true, Description: "Device is waiting for repair"},
	{Name: "Spare", Color: "blue", Description: "Kept in reserve"},
}

type bootstrapTask struct {
	description string
	run         func(ctx context.Context) error
}

// BootstrapService installs the defaults a new deployment needs
type BootstrapService struct {
	status    *repository.BootstrapRepository
	settings  *settings.Store
	users     *UserService
	reminders *ReminderService
	surveys   *SurveyService
	tags      *TagService
	tasks     map[string]bootstrapTask
	now       func() time.Time
}

func NewBootstrapService(
	status *repository.BootstrapRepository,
	store *settings.Store,
	users *UserService,
	reminders *ReminderService,
	surveys *SurveyService,
	tags *TagService,
) *BootstrapService {
	s := &BootstrapService{
		status:    status,
		settings:  store,
		users:     users,
		reminders: reminders,
		surveys:   surveys,
		tags:      tags,
		now:       utcNow,
	}
	s.tasks = map[string]bootstrapTask{
		TaskDefaultSettings:    {"Apply setting upgrades", s.defaultSettings},
		TaskDefaultRoles:       {"Create the default roles", s.defaultRoles},
		TaskReminderEvents:     {"Create the reminder escalation levels", s.reminderEvents},
		TaskEventSubscriptions: {"Subscribe the built-in actions", s.eventSubscriptions},
		TaskSurveyQuestions:    {"Create sample survey questions", s.surveyQuestions},
		TaskDefaultTags:        {"Create the default tags", s.defaultTags},
	}
	return s
}

// TaskNames returns every bootstrap task name in order
func (s *BootstrapService) TaskNames() []string {
	names := make([]string, 0, len(s.tasks))
	for n := range s.tasks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Run executes the requested tasks, or all of them when none are named.
// Each outcome is recorded; bootstrap completes once every task has succeeded.
func (s *BootstrapService) Run(ctx context.Context, requested []string) (*model.BootstrapStatusResponse, error) {
	if len(requested) == 0 {
		requested = s.TaskNames()
	}
	for _, name := range requested {
		if _, ok := s.tasks[name]; !ok {
			return nil, apperr.ErrBadInput.Withf("unknown bootstrap task %q", name)
		}
	}

	if err := s.settings.Set(ctx, settings.BootstrapStarted, true, true); err != nil {
		return nil, err
	}

	log.Printf("🚀 Running bootstrap tasks: %v", requested)
	for _, name := range requested {
		task := s.tasks[name]
		st := &model.BootstrapStatus{
			Name:        name,
			Description: task.description,
			Timestamp:   s.now(),
			Success:     true,
		}
		if err := task.run(ctx); err != nil {
			st.Success = false
			st.Details = err.Error()
			log.Printf("❌ Bootstrap task %s failed: %v", name, err)
		} else {
			log.Printf("✅ Bootstrap task %s done", name)
		}
		if err := s.status.Record(ctx, st); err != nil {
			return nil, err
		}
	}

	status, err := s.Status(ctx)
	if err != nil {
		return nil, err
	}
	if s.allSucceeded(status.Tasks) && !status.Completed {
		if err := s.settings.Set(ctx, settings.BootstrapCompleted, true, true); err != nil {
			return nil, err
		}
		status.Completed = true
		status.Enabled = false
	}
	return status, nil
}

func (s *BootstrapService) allSucceeded(recorded []model.BootstrapStatus) bool {
	ok := make(map[string]bool, len(recorded))
	for _, st := range recorded {
		ok[st.Name] = st.Success
	}
	for name := range s.tasks {
		if !ok[name] {
			return false
		}
	}
	return true
}

// Status reports bootstrap progress and the last outcome of each task
func (s *BootstrapService) Status(ctx context.Context) (*model.BootstrapStatusResponse, error) {
	started, err := s.settings.GetBool(ctx, settings.BootstrapStarted)
	if err != nil {
		return nil, err
	}
	completed, err := s.settings.GetBool(ctx, settings.BootstrapCompleted)
	if err != nil {
		return nil, err
	}
	tasks, err := s.status.List(ctx)
	if err != nil {
		return nil, err
	}
	return &model.BootstrapStatusResponse{
		Enabled:   !completed,
		Started:   started,
		Completed: completed,
		Tasks:     tasks,
	}, nil
}

// ==================== Tasks ====================

func (s *BootstrapService) defaultSettings(ctx context.Context) error {
	return s.settings.Upgrade(ctx)
}

func (s *BootstrapService) defaultRoles(ctx context.Context) error {
	for name, perms := range DefaultRoles() {
		if _, err := s.users.SaveRole(ctx, model.RoleRequest{Name: name, Permissions: perms}); err != nil {
			return fmt.Errorf("role %s: %w", name, err)
		}
	}
	return nil
}

func (s *BootstrapService) reminderEvents(ctx context.Context) error {
	for _, ev := range defaultReminders {
		_, err := s.reminders.SaveReminderEvent(ctx, model.ReminderEventRequest{
			Level:              ev.Level,
			DelayAfterPrevious: ev.DelayAfterPrevious,
			TemplateName:       ev.TemplateName,
			Description:        ev.Description,
		})
		if err != nil {
			return fmt.Errorf("reminder level %d: %w", ev.Level, err)
		}
	}
	return nil
}

func (s *BootstrapService) eventSubscriptions(ctx context.Context) error {
	for name, actions := range DefaultSubscriptions() {
		if err := s.reminders.Subscribe(ctx, model.SubscriptionRequest{EventName: name, Actions: actions}); err != nil {
			return fmt.Errorf("event %s: %w", name, err)
		}
	}
	return nil
}

func (s *BootstrapService) surveyQuestions(ctx context.Context) error {
	existing, err := s.surveys.ListQuestions(ctx, "")
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	for _, q := range defaultQuestions {
		if _, err := s.surveys.CreateQuestion(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *BootstrapService) defaultTags(ctx context.Context) error {
	for _, t := range defaultTags {
		_, err := s.tags.Create(ctx, t)
		if err != nil && !errors.Is(err, apperr.ErrBadInput) {
			return fmt.Errorf("tag %s: %w", t.Name, err)
		}
	}
	return nil
}
