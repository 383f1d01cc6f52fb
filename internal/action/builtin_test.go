package action

import (
	"context"
	"testing"
	"time"

	"github.com/grabngo/loaner/internal/apperr"
	"github.com/grabngo/loaner/internal/dbtest"
	"github.com/grabngo/loaner/internal/directory"
	"github.com/grabngo/loaner/internal/directory/directorytest"
	"github.com/grabngo/loaner/internal/model"
	"github.com/grabngo/loaner/internal/repository"
	"github.com/grabngo/loaner/internal/settings"
	"github.com/grabngo/loaner/internal/taskqueue"
	"github.com/grabngo/loaner/pkg/mailer/mailertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	env  *Env
	dir  *directorytest.Fake
	mail *mailertest.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)

	store, err := settings.New(repository.NewSettingRepository(db))
	require.NoError(t, err)

	dir := directorytest.New()
	mail := &mailertest.Recorder{}
	return &fixture{
		env: &Env{
			Devices:   repository.NewDeviceRepository(db),
			Shelves:   repository.NewShelfRepository(db),
			Reminders: repository.NewReminderRepository(db),
			Settings:  store,
			Directory: dir,
			Mail:      mail,
			Now:       func() time.Time { return testNow },
		},
		dir:  dir,
		mail: mail,
	}
}

func (f *fixture) loanedDevice(t *testing.T, serial string) *model.Device {
	t.Helper()
	assigned := testNow.Add(-72 * time.Hour)
	due := testNow.Add(-time.Hour)
	d := &model.Device{
		ChromeDeviceID: "chrome-" + serial,
		SerialNumber:   serial,
		Enrolled:       true,
		AssignedUser:   "student@example.com",
		AssignmentDate: &assigned,
		DueDate:        &due,
	}
	require.NoError(t, f.env.Devices.Create(context.Background(), d))
	f.dir.Add(directory.Device{DeviceID: d.ChromeDeviceID, SerialNumber: serial})
	return d
}

func (f *fixture) reminderLevels(t *testing.T, levels ...model.ReminderEvent) {
	t.Helper()
	for i := range levels {
		require.NoError(t, f.env.Reminders.Upsert(context.Background(), &levels[i]))
	}
}

func TestSendReminder_AdvancesAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.reminderLevels(t,
		model.ReminderEvent{Level: 0, TemplateName: "reminder_due"},
		model.ReminderEvent{Level: 1, TemplateName: "reminder_overdue", DelayAfterPrevious: 86400},
	)

	d := f.loanedDevice(t, "REM1")
	_, err := f.env.Devices.Mutate(ctx, d.ID, func(d *model.Device) error {
		at := testNow.Add(-time.Minute)
		d.NextReminder = model.Reminder{Level: 0, Time: &at}
		return nil
	})
	require.NoError(t, err)
	snap, err := f.env.Devices.FindByID(ctx, d.ID)
	require.NoError(t, err)

	require.NoError(t, sendReminder(ctx, f.env, Args{Device: snap}))

	got, err := f.env.Devices.FindByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.LastReminder.Level)
	assert.Equal(t, 1, got.LastReminder.Count)
	require.NotNil(t, got.NextReminder.Time)
	assert.Equal(t, 1, got.NextReminder.Level)
	assert.True(t, got.NextReminder.Time.Equal(testNow.Add(24*time.Hour)))

	sent := f.mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"student@example.com"}, sent[0].To)
	assert.Equal(t, "reminder_due", sent[0].Template)

	// a redelivered task carries the same snapshot
	require.NoError(t, sendReminder(ctx, f.env, Args{Device: snap}))
	assert.Len(t, f.mail.Sent(), 1)
	again, err := f.env.Devices.FindByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Version, again.Version)
}

func TestSendReminder_LastLevelClearsNext(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.reminderLevels(t, model.ReminderEvent{Level: 2, TemplateName: "reminder_final"})

	d := f.loanedDevice(t, "REM2")
	_, err := f.env.Devices.Mutate(ctx, d.ID, func(d *model.Device) error {
		last := testNow.Add(-48 * time.Hour)
		at := testNow.Add(-time.Minute)
		d.LastReminder = model.Reminder{Level: 2, Time: &last, Count: 1}
		d.NextReminder = model.Reminder{Level: 2, Time: &at}
		return nil
	})
	require.NoError(t, err)
	snap, err := f.env.Devices.FindByID(ctx, d.ID)
	require.NoError(t, err)

	require.NoError(t, sendReminder(ctx, f.env, Args{Device: snap}))

	got, err := f.env.Devices.FindByID(ctx, d.ID)
	require.NoError(t, err)
	assert.False(t, got.NextReminder.IsSet())
	assert.Equal(t, 2, got.LastReminder.Count)
	require.Len(t, f.mail.Sent(), 1)
	assert.Equal(t, 2, f.mail.Sent()[0].Data["Count"])
}

func TestSendReminder_EmailDisabledStillAdvances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.env.Settings.Set(ctx, settings.LoanDurationEmail, false, true))
	f.reminderLevels(t, model.ReminderEvent{Level: 0, TemplateName: "reminder_due"})

	d := f.loanedDevice(t, "REM3")
	_, err := f.env.Devices.Mutate(ctx, d.ID, func(d *model.Device) error {
		at := testNow
		d.NextReminder = model.Reminder{Level: 0, Time: &at}
		return nil
	})
	require.NoError(t, err)
	snap, err := f.env.Devices.FindByID(ctx, d.ID)
	require.NoError(t, err)

	require.NoError(t, sendReminder(ctx, f.env, Args{Device: snap}))
	assert.Empty(t, f.mail.Sent())

	got, err := f.env.Devices.FindByID(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, got.LastReminder.IsSet())
	assert.False(t, got.NextReminder.IsSet())
}

func TestSendReminder_RequiresPendingReminder(t *testing.T) {
	f := newFixture(t)
	d := f.loanedDevice(t, "REM4")

	err := sendReminder(context.Background(), f.env, Args{Device: d})
	assert.ErrorIs(t, err, apperr.ErrBadDevice)

	err = sendReminder(context.Background(), f.env, Args{})
	assert.ErrorIs(t, err, apperr.ErrMissingDevice)
}

func TestLockDevice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.loanedDevice(t, "LOCK1")

	require.NoError(t, lockDevice(ctx, f.env, Args{Device: d}))

	got, err := f.env.Devices.FindByID(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, got.Locked)
	assert.Equal(t, "/Loaner/Locked", got.CurrentOU)
	assert.Equal(t, "/Loaner/Locked", f.dir.OU(d.ChromeDeviceID))
}

func TestLockDevice_DirectoryFailureLeavesRowUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.loanedDevice(t, "LOCK2")
	f.dir.Fail["MoveToOU"] = apperr.ErrDirectoryRPC

	err := lockDevice(ctx, f.env, Args{Device: d})
	assert.ErrorIs(t, err, apperr.ErrDirectoryRPC)

	got, err := f.env.Devices.FindByID(ctx, d.ID)
	require.NoError(t, err)
	assert.False(t, got.Locked)
}

func TestSendWelcomeAndReturnThanks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.loanedDevice(t, "MAIL1")

	require.NoError(t, sendWelcome(ctx, f.env, Args{Device: d}))

	returned := *d
	returned.ClearLoan()
	assert.ErrorIs(t, sendWelcome(ctx, f.env, Args{Device: &returned}), apperr.ErrBadDevice)
	assert.ErrorIs(t, sendReturnThanks(ctx, f.env, Args{Device: &returned}), apperr.ErrBadDevice)
	require.NoError(t, sendReturnThanks(ctx, f.env, Args{Device: &returned, User: "student@example.com"}))

	sent := f.mail.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "loan_assignment", sent[0].Template)
	assert.Equal(t, "loan_return", sent[1].Template)
	assert.Equal(t, []string{"student@example.com"}, sent[1].To)
}

func TestRequestShelfAudit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	shelf := &model.Shelf{
		Location:                 "Library",
		Capacity:                 10,
		Enabled:                  true,
		AuditNotificationEnabled: true,
		ResponsibleForAudit:      "librarian@example.com",
	}
	require.NoError(t, f.env.Shelves.Create(ctx, shelf))

	require.NoError(t, requestShelfAudit(ctx, f.env, Args{Shelf: shelf}))
	require.NoError(t, requestShelfAudit(ctx, f.env, Args{Shelf: shelf}))

	got, err := f.env.Shelves.FindByID(ctx, shelf.ID)
	require.NoError(t, err)
	assert.True(t, got.AuditRequested)

	sent := f.mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"librarian@example.com"}, sent[0].To)

	assert.ErrorIs(t, requestShelfAudit(ctx, f.env, Args{}), apperr.ErrMissingShelf)
}

func TestGuestModeExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.loanedDevice(t, "GUEST1")
	d, err := f.env.Devices.Mutate(ctx, d.ID, func(d *model.Device) error {
		d.GuestEnabled = true
		d.CurrentOU = "/Loaner/Guest"
		return nil
	})
	require.NoError(t, err)

	t.Run("reassigned device is left alone", func(t *testing.T) {
		stale := *d
		stale.AssignedUser = "someone-else@example.com"
		require.NoError(t, guestModeExpired(ctx, f.env, Args{Device: &stale}))
		got, err := f.env.Devices.FindByID(ctx, d.ID)
		require.NoError(t, err)
		assert.True(t, got.GuestEnabled)
	})

	t.Run("current loan leaves guest mode", func(t *testing.T) {
		require.NoError(t, guestModeExpired(ctx, f.env, Args{Device: d}))
		got, err := f.env.Devices.FindByID(ctx, d.ID)
		require.NoError(t, err)
		assert.False(t, got.GuestEnabled)
		assert.Equal(t, "/Loaner/Default", got.CurrentOU)
	})
}

func TestDispatcher_Handle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.loanedDevice(t, "DISP1")
	registry, err := NewRegistry(Builtins(), false)
	require.NoError(t, err)
	dispatcher := NewDispatcher(registry, f.env)

	t.Run("runs the named action", func(t *testing.T) {
		task, err := NewTask(SendWelcome, Args{Device: d})
		require.NoError(t, err)
		require.NoError(t, dispatcher.Handle(ctx, task))
		assert.Len(t, f.mail.Sent(), 1)
	})

	t.Run("unknown action is permanent", func(t *testing.T) {
		task, err := NewTask("reticulate_splines", Args{Device: d})
		require.NoError(t, err)
		err = dispatcher.Handle(ctx, task)
		assert.True(t, taskqueue.IsPermanent(err))
		assert.ErrorIs(t, err, apperr.ErrUnknownAction)
	})

	t.Run("missing device is permanent", func(t *testing.T) {
		task, err := NewTask(LockDevice, Args{})
		require.NoError(t, err)
		err = dispatcher.Handle(ctx, task)
		assert.True(t, taskqueue.IsPermanent(err))
	})

	t.Run("unreadable payload is permanent", func(t *testing.T) {
		task := &taskqueue.Task{ID: "x", Name: SendWelcome, Payload: []byte(`{"args":`)}
		assert.True(t, taskqueue.IsPermanent(dispatcher.Handle(ctx, task)))
	})

	t.Run("upstream failure is retried", func(t *testing.T) {
		f.dir.Fail["MoveToOU"] = apperr.ErrDirectoryRPC
		defer delete(f.dir.Fail, "MoveToOU")
		task, err := NewTask(LockDevice, Args{Device: d})
		require.NoError(t, err)
		err = dispatcher.Handle(ctx, task)
		require.Error(t, err)
		assert.False(t, taskqueue.IsPermanent(err))
	})
}
