package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/grabngo/loaner/internal/action"
	"github.com/grabngo/loaner/internal/apperr"
	"github.com/grabngo/loaner/internal/directory"
	"github.com/grabngo/loaner/internal/model"
	"github.com/grabngo/loaner/internal/repository"
	"github.com/grabngo/loaner/internal/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrollLoanReturn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.dir.Add(directory.Device{DeviceID: "unique_id", SerialNumber: "123456", OrgUnitPath: "/"})

	d, err := f.devices.Enroll(ctx, model.EnrollDeviceRequest{SerialNumber: "123456"}, "tech@example.com")
	require.NoError(t, err)
	assert.True(t, d.Enrolled)
	assert.Equal(t, "/Loaner/Default", d.CurrentOU)
	assert.Equal(t, "/Loaner/Default", f.dir.OU("unique_id"))

	resp, err := f.devices.Heartbeat(ctx, "unique_id", "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.HeartbeatResponse{IsEnrolled: true, StartAssignment: true}, *resp)

	d = f.reload(t, d)
	assert.Equal(t, "user@example.com", d.AssignedUser)
	require.NotNil(t, d.DueDate)
	assert.True(t, d.DueDate.Equal(testNow.AddDate(0, 0, 3)))
	assert.True(t, d.MaxExtendDate.Equal(testNow.AddDate(0, 0, 14)))
	assert.Equal(t, 0, d.NextReminder.Level)
	assert.Contains(t, f.queued(), action.SendWelcome)

	d, err = f.devices.MarkPendingReturn(ctx, model.DeviceIdentifier{ChromeDeviceID: "unique_id"}, "user@example.com")
	require.NoError(t, err)
	assert.NotNil(t, d.MarkPendingReturnDate)

	f.advance(time.Hour)
	resp, err = f.devices.Heartbeat(ctx, "unique_id", "")
	require.NoError(t, err)
	assert.True(t, resp.IsEnrolled)

	d = f.reload(t, d)
	assert.Empty(t, d.AssignedUser)
	assert.Nil(t, d.AssignmentDate)
	assert.Nil(t, d.DueDate)
	assert.Nil(t, d.MarkPendingReturnDate)
	assert.False(t, d.NextReminder.IsSet())
	assert.Contains(t, f.queued(), action.SendReturnThanks)
}

func TestAssignThenReturnRestoresDevice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	before := f.enrolled(t, "RT1")
	_, err := f.devices.Assign(ctx, model.DeviceIdentifier{SerialNumber: "RT1"}, "a@example.com", "a@example.com")
	require.NoError(t, err)
	_, err = f.devices.MarkPendingReturn(ctx, model.DeviceIdentifier{SerialNumber: "RT1"}, "a@example.com")
	require.NoError(t, err)
	_, err = f.devices.Heartbeat(ctx, "chrome-RT1", "")
	require.NoError(t, err)

	after := f.reload(t, before)
	assert.Equal(t, before.AssignedUser, after.AssignedUser)
	assert.Equal(t, before.AssignmentDate, after.AssignmentDate)
	assert.Equal(t, before.DueDate, after.DueDate)
	assert.Equal(t, before.MaxExtendDate, after.MaxExtendDate)
	assert.Equal(t, before.MarkPendingReturnDate, after.MarkPendingReturnDate)
	assert.Equal(t, before.ShelfID, after.ShelfID)
	assert.Equal(t, before.LastReminder, after.LastReminder)
	assert.Equal(t, before.NextReminder, after.NextReminder)
	assert.Equal(t, before.Locked, after.Locked)
	assert.Equal(t, before.CurrentOU, after.CurrentOU)
}

func TestEnroll(t *testing.T) {
	t.Run("already enrolled", func(t *testing.T) {
		f := newFixture(t)
		f.enrolled(t, "E1")
		_, err := f.devices.Enroll(context.Background(), model.EnrollDeviceRequest{SerialNumber: "E1"}, "tech@example.com")
		assert.ErrorIs(t, err, apperr.ErrDeviceAlreadyEnrolled)
		assert.Equal(t, http.StatusConflict, apperr.HTTPStatus(err))
	})

	t.Run("unknown to directory", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.devices.Enroll(context.Background(), model.EnrollDeviceRequest{SerialNumber: "nope"}, "tech@example.com")
		assert.ErrorIs(t, err, apperr.ErrDeviceNotFoundInDirectory)
	})

	t.Run("directory failure leaves no row", func(t *testing.T) {
		f := newFixture(t)
		f.dir.Add(directory.Device{DeviceID: "chrome-E2", SerialNumber: "E2"})
		f.dir.Fail["MoveToOU"] = apperr.ErrDirectoryRPC.Withf("unavailable")

		_, err := f.devices.Enroll(context.Background(), model.EnrollDeviceRequest{SerialNumber: "E2"}, "tech@example.com")
		assert.ErrorIs(t, err, apperr.ErrDirectoryRPC)

		_, err = f.deviceRepo.FindBySerial(context.Background(), "E2")
		assert.ErrorIs(t, err, apperr.ErrDeviceDoesNotExist)
		assert.Empty(t, f.queued())
	})

	t.Run("asset tag mode", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		require.NoError(t, f.store.Set(ctx, settings.DeviceIdentifierMode, settings.ModeAssetTag, true))
		f.dir.Add(directory.Device{DeviceID: "chrome-E3", SerialNumber: "E3", AssetTag: "TAG-3"})

		_, err := f.devices.Enroll(ctx, model.EnrollDeviceRequest{SerialNumber: "E3"}, "tech@example.com")
		assert.ErrorIs(t, err, apperr.ErrIdentifierRequired)

		d, err := f.devices.Enroll(ctx, model.EnrollDeviceRequest{AssetTag: "TAG-3"}, "tech@example.com")
		require.NoError(t, err)
		assert.Equal(t, "E3", d.SerialNumber)
		require.NotNil(t, d.AssetTag)
		assert.Equal(t, "TAG-3", *d.AssetTag)
	})

	t.Run("both required", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		require.NoError(t, f.store.Set(ctx, settings.DeviceIdentifierMode, settings.ModeBothRequired, true))

		_, err := f.devices.Enroll(ctx, model.EnrollDeviceRequest{AssetTag: "TAG-4"}, "tech@example.com")
		assert.ErrorIs(t, err, apperr.ErrIdentifierRequired)
	})

	t.Run("reenrolls placeholder row", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		f.dir.Add(directory.Device{DeviceID: "chrome-E5", SerialNumber: "E5", OrgUnitPath: "/"})

		_, err := f.devices.Heartbeat(ctx, "chrome-E5", "")
		require.NoError(t, err)
		d, err := f.devices.Enroll(ctx, model.EnrollDeviceRequest{SerialNumber: "E5"}, "tech@example.com")
		require.NoError(t, err)
		assert.True(t, d.Enrolled)
		assert.NotNil(t, d.LastHeartbeat)
	})
}

func TestUnenroll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.loaned(t, "U1", "a@example.com")

	d, err := f.devices.Unenroll(ctx, model.DeviceIdentifier{SerialNumber: "U1"}, "tech@example.com")
	require.NoError(t, err)
	assert.False(t, d.Enrolled)
	assert.Empty(t, d.AssignedUser)
	assert.Nil(t, d.DueDate)
	assert.Nil(t, d.ShelfID)
	assert.Equal(t, "/", f.dir.OU("chrome-U1"))

	_, err = f.devices.Unenroll(ctx, model.DeviceIdentifier{SerialNumber: "U1"}, "tech@example.com")
	assert.ErrorIs(t, err, apperr.ErrDeviceNotEnrolled)
}

func TestHeartbeat(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown device", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.devices.Heartbeat(ctx, "ghost", "")
		assert.ErrorIs(t, err, apperr.ErrDeviceNotFoundInDirectory)
	})

	t.Run("unenrolled without row", func(t *testing.T) {
		f := newFixture(t)
		f.dir.Add(directory.Device{DeviceID: "hb1", SerialNumber: "HB1", OrgUnitPath: "/"})

		resp, err := f.devices.Heartbeat(ctx, "hb1", "a@example.com")
		require.NoError(t, err)
		assert.False(t, resp.IsEnrolled)

		d, err := f.deviceRepo.FindByChromeID(ctx, "hb1")
		require.NoError(t, err)
		assert.False(t, d.Enrolled)
		require.NotNil(t, d.LastHeartbeat)
		assert.True(t, d.LastHeartbeat.Equal(testNow))
	})

	t.Run("unenrolled with row", func(t *testing.T) {
		f := newFixture(t)
		f.dir.Add(directory.Device{DeviceID: "hb2", SerialNumber: "HB2"})
		_, err := f.devices.Heartbeat(ctx, "hb2", "")
		require.NoError(t, err)

		f.advance(time.Minute)
		resp, err := f.devices.Heartbeat(ctx, "hb2", "")
		require.NoError(t, err)
		assert.False(t, resp.IsEnrolled)

		d, err := f.deviceRepo.FindByChromeID(ctx, "hb2")
		require.NoError(t, err)
		assert.True(t, d.LastHeartbeat.Equal(testNow.Add(time.Minute)))
	})

	t.Run("unassigned enrolled honours silent onboarding", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.Set(ctx, settings.SilentOnboarding, true, true))
		d := f.enrolled(t, "HB3")

		resp, err := f.devices.Heartbeat(ctx, d.ChromeDeviceID, "")
		require.NoError(t, err)
		assert.Equal(t, model.HeartbeatResponse{IsEnrolled: true, StartAssignment: true, SilentOnboarding: true}, *resp)
		assert.False(t, f.reload(t, d).OnLoan())
	})

	t.Run("assigned same user", func(t *testing.T) {
		f := newFixture(t)
		d := f.loaned(t, "HB4", "a@example.com")

		resp, err := f.devices.Heartbeat(ctx, d.ChromeDeviceID, "a@example.com")
		require.NoError(t, err)
		assert.Equal(t, model.HeartbeatResponse{IsEnrolled: true}, *resp)
		assert.Equal(t, "a@example.com", f.reload(t, d).AssignedUser)
	})

	t.Run("assignee reappears after pending return", func(t *testing.T) {
		f := newFixture(t)
		d := f.loaned(t, "HB5", "a@example.com")
		_, err := f.devices.MarkPendingReturn(ctx, model.DeviceIdentifier{SerialNumber: "HB5"}, "a@example.com")
		require.NoError(t, err)

		resp, err := f.devices.Heartbeat(ctx, d.ChromeDeviceID, "a@example.com")
		require.NoError(t, err)
		assert.False(t, resp.StartAssignment)

		got := f.reload(t, d)
		assert.Nil(t, got.MarkPendingReturnDate)
		assert.Equal(t, "a@example.com", got.AssignedUser)
	})

	t.Run("assigned different user", func(t *testing.T) {
		f := newFixture(t)
		d := f.loaned(t, "HB6", "a@example.com")

		resp, err := f.devices.Heartbeat(ctx, d.ChromeDeviceID, "b@example.com")
		require.NoError(t, err)
		assert.Equal(t, model.HeartbeatResponse{IsEnrolled: true}, *resp)
		assert.Equal(t, "a@example.com", f.reload(t, d).AssignedUser)
	})

	t.Run("different user after pending return takes over", func(t *testing.T) {
		f := newFixture(t)
		d := f.loaned(t, "HB7", "a@example.com")
		_, err := f.devices.MarkPendingReturn(ctx, model.DeviceIdentifier{SerialNumber: "HB7"}, "a@example.com")
		require.NoError(t, err)

		resp, err := f.devices.Heartbeat(ctx, d.ChromeDeviceID, "b@example.com")
		require.NoError(t, err)
		assert.True(t, resp.StartAssignment)

		got := f.reload(t, d)
		assert.Equal(t, "b@example.com", got.AssignedUser)
		assert.Nil(t, got.MarkPendingReturnDate)
	})
}

func TestExtend(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.loaned(t, "X1", "a@example.com")
	ident := model.DeviceIdentifier{SerialNumber: "X1"}

	d, err := f.devices.Extend(ctx, ident, "a@example.com", testNow.AddDate(0, 0, 14))
	require.NoError(t, err)
	assert.True(t, d.DueDate.Equal(testNow.AddDate(0, 0, 14)))
	assert.True(t, d.NextReminder.Time.Equal(*d.DueDate))

	_, err = f.devices.Extend(ctx, ident, "a@example.com", testNow.AddDate(0, 0, 15))
	assert.ErrorIs(t, err, apperr.ErrExtend)

	_, err = f.devices.Extend(ctx, ident, "a@example.com", testNow.AddDate(0, 0, 14).Add(time.Second))
	assert.ErrorIs(t, err, apperr.ErrExtend)

	_, err = f.devices.Extend(ctx, ident, "a@example.com", testNow)
	assert.ErrorIs(t, err, apperr.ErrExtend)

	_, err = f.devices.Extend(ctx, ident, "b@example.com", testNow.AddDate(0, 0, 5))
	assert.ErrorIs(t, err, apperr.ErrNotAssignee)
	assert.Equal(t, http.StatusForbidden, apperr.HTTPStatus(err))
}

func TestExtendUnassigned(t *testing.T) {
	f := newFixture(t)
	f.enrolled(t, "X2")
	_, err := f.devices.Extend(context.Background(), model.DeviceIdentifier{SerialNumber: "X2"}, "a@example.com", testNow.Add(time.Hour))
	assert.ErrorIs(t, err, apperr.ErrUnassignedDevice)
}

func TestAssignRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.loaned(t, "A1", "a@example.com")

	_, err := f.devices.Assign(ctx, model.DeviceIdentifier{SerialNumber: "A1"}, "b@example.com", "b@example.com")
	assert.ErrorIs(t, err, apperr.ErrAlreadyAssigned)

	f.dir.Add(directory.Device{DeviceID: "chrome-A2", SerialNumber: "A2"})
	_, err = f.devices.Heartbeat(ctx, "chrome-A2", "")
	require.NoError(t, err)
	_, err = f.devices.Assign(ctx, model.DeviceIdentifier{SerialNumber: "A2"}, "b@example.com", "b@example.com")
	assert.ErrorIs(t, err, apperr.ErrDeviceNotEnrolled)
}

func TestReturnDates(t *testing.T) {
	due, max := ReturnDates(testNow, 3, 14)
	assert.True(t, due.Equal(testNow.AddDate(0, 0, 3)))
	assert.True(t, max.Equal(testNow.AddDate(0, 0, 14)))

	due, max = ReturnDates(testNow, 30, 14)
	assert.True(t, due.Equal(max))
}

func TestResumeLoan(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.loaned(t, "R1", "a@example.com")
	ident := model.DeviceIdentifier{SerialNumber: "R1"}

	_, err := f.devices.ResumeLoan(ctx, ident, "a@example.com")
	assert.ErrorIs(t, err, apperr.ErrReturnNotPending)

	_, err = f.devices.MarkPendingReturn(ctx, ident, "a@example.com")
	require.NoError(t, err)
	d, err := f.devices.ResumeLoan(ctx, ident, "a@example.com")
	require.NoError(t, err)
	assert.Nil(t, d.MarkPendingReturnDate)
}

func TestStaleReturnKeepsNewerLoan(t *testing.T) {
	ctx := context.Background()
	ident := model.DeviceIdentifier{SerialNumber: "SR1"}

	tests := []struct {
		name  string
		after func(f *fixture) error
		user  string
	}{
		{
			name: "borrower resumed",
			after: func(f *fixture) error {
				_, err := f.devices.ResumeLoan(ctx, ident, "a@example.com")
				return err
			},
			user: "a@example.com",
		},
		{
			name: "picked up by someone else",
			after: func(f *fixture) error {
				_, err := f.devices.Heartbeat(ctx, "chrome-SR1", "b@example.com")
				return err
			},
			user: "b@example.com",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.loaned(t, "SR1", "a@example.com")
			stale, err := f.devices.MarkPendingReturn(ctx, ident, "a@example.com")
			require.NoError(t, err)
			require.NoError(t, tt.after(f))

			_, err = f.devices.completeReturn(ctx, stale, nil, "c@example.com")
			assert.ErrorIs(t, err, apperr.ErrConcurrentModification)

			got := f.reload(t, stale)
			assert.Equal(t, tt.user, got.AssignedUser)
			assert.NotNil(t, got.DueDate)
		})
	}
}

func TestGuestMode(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled by config", func(t *testing.T) {
		f := newFixture(t)
		f.loaned(t, "G1", "a@example.com")

		_, err := f.devices.EnableGuestMode(ctx, model.DeviceIdentifier{SerialNumber: "G1"}, "a@example.com")
		assert.ErrorIs(t, err, apperr.ErrGuestNotAllowed)
		assert.True(t, apperr.IsKind(err, apperr.BadInput))
	})

	t.Run("enabled schedules expiry", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.Set(ctx, settings.AllowGuestMode, true, true))
		f.loaned(t, "G2", "a@example.com")

		d, err := f.devices.EnableGuestMode(ctx, model.DeviceIdentifier{SerialNumber: "G2"}, "a@example.com")
		require.NoError(t, err)
		assert.True(t, d.GuestEnabled)
		assert.Equal(t, "/Loaner/Guest", f.dir.OU("chrome-G2"))

		var found bool
		for _, task := range f.queue.Pending() {
			if task.Name != action.GuestModeExpired {
				continue
			}
			at, ok := f.queue.DueAt(task.ID)
			require.True(t, ok)
			assert.True(t, at.Equal(testNow.Add(12*time.Hour)))
			found = true
		}
		assert.True(t, found)
	})

	t.Run("directory failure", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.Set(ctx, settings.AllowGuestMode, true, true))
		f.loaned(t, "G3", "a@example.com")
		f.dir.Fail["MoveToOU"] = errors.New("rpc down")

		_, err := f.devices.EnableGuestMode(ctx, model.DeviceIdentifier{SerialNumber: "G3"}, "a@example.com")
		assert.ErrorIs(t, err, apperr.ErrEnableGuest)
		assert.False(t, mustFind(t, f, "G3").GuestEnabled)
	})
}

func mustFind(t *testing.T, f *fixture, serial string) *model.Device {
	t.Helper()
	d, err := f.deviceRepo.FindBySerial(context.Background(), serial)
	require.NoError(t, err)
	return d
}

func TestLockAndUnlock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.enrolled(t, "L1")
	ident := model.DeviceIdentifier{SerialNumber: "L1"}

	f.dir.Fail["MoveToOU"] = apperr.ErrDirectoryRPC
	_, err := f.devices.Lock(ctx, ident, "admin@example.com")
	assert.ErrorIs(t, err, apperr.ErrDirectoryRPC)
	assert.False(t, mustFind(t, f, "L1").Locked)

	delete(f.dir.Fail, "MoveToOU")
	d, err := f.devices.Lock(ctx, ident, "admin@example.com")
	require.NoError(t, err)
	assert.True(t, d.Locked)
	assert.Equal(t, "/Loaner/Locked", f.dir.OU("chrome-L1"))

	d, err = f.devices.Unlock(ctx, ident, "admin@example.com")
	require.NoError(t, err)
	assert.False(t, d.Locked)
	assert.Equal(t, "/Loaner/Default", f.dir.OU("chrome-L1"))
}

func TestMarkDamagedAndLost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.loaned(t, "D1", "a@example.com")
	ident := model.DeviceIdentifier{SerialNumber: "D1"}

	d, err := f.devices.MarkDamaged(ctx, ident, "a@example.com", "cracked screen")
	require.NoError(t, err)
	assert.True(t, d.Damaged)
	assert.Equal(t, "cracked screen", d.DamagedReason)
	assert.ErrorIs(t, AuditCheck(d), apperr.ErrDeviceDamaged)

	d, err = f.devices.MarkLost(ctx, ident, "a@example.com")
	require.NoError(t, err)
	assert.True(t, d.Lost)
	assert.Empty(t, d.AssignedUser)
	assert.True(t, f.dir.Disabled("chrome-D1"))
}

func TestUnenrollReenablesLostDevice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.enrolled(t, "D2")
	ident := model.DeviceIdentifier{SerialNumber: "D2"}

	_, err := f.devices.MarkLost(ctx, ident, "admin@example.com")
	require.NoError(t, err)
	d, err := f.devices.Unenroll(ctx, ident, "admin@example.com")
	require.NoError(t, err)
	assert.False(t, d.Lost)
	assert.False(t, f.dir.Disabled("chrome-D2"))
}

func TestGetResolution(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.dir.Add(directory.Device{DeviceID: "chrome-G", SerialNumber: "SER-G", AssetTag: "TAG-G"})
	enrolled, err := f.devices.Enroll(ctx, model.EnrollDeviceRequest{SerialNumber: "SER-G"}, "tech@example.com")
	require.NoError(t, err)

	tests := []struct {
		name  string
		ident model.DeviceIdentifier
		err   error
	}{
		{"url key", model.DeviceIdentifier{URLSafeKey: enrolled.URLSafeKey()}, nil},
		{"chrome id", model.DeviceIdentifier{ChromeDeviceID: "chrome-G"}, nil},
		{"asset tag", model.DeviceIdentifier{AssetTag: "TAG-G"}, nil},
		{"serial", model.DeviceIdentifier{SerialNumber: "SER-G"}, nil},
		{"unknown as serial", model.DeviceIdentifier{UnknownIdentifier: "SER-G"}, nil},
		{"unknown as tag", model.DeviceIdentifier{UnknownIdentifier: "TAG-G"}, nil},
		{"unknown as key", model.DeviceIdentifier{UnknownIdentifier: enrolled.URLSafeKey()}, nil},
		{"bad url key", model.DeviceIdentifier{URLSafeKey: "not-a-key"}, apperr.ErrBadURLSafeKey},
		{"nothing", model.DeviceIdentifier{}, apperr.ErrIdentifierRequired},
		{"no match", model.DeviceIdentifier{UnknownIdentifier: "missing"}, apperr.ErrDeviceDoesNotExist},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := f.devices.Get(ctx, tt.ident)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, enrolled.ID, d.ID)
		})
	}
}

func TestListDevices(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.loaned(t, "LS1", "a@example.com")
	f.enrolled(t, "LS2")
	f.enrolled(t, "LS3")

	res, err := f.devices.List(ctx, model.ListDevicesRequest{PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, res.Devices, 2)
	assert.EqualValues(t, 3, res.TotalResults)
	require.NotEmpty(t, res.NextPageToken)

	res, err = f.devices.List(ctx, model.ListDevicesRequest{PageSize: 2, PageToken: res.NextPageToken})
	require.NoError(t, err)
	assert.Len(t, res.Devices, 1)
	assert.Empty(t, res.NextPageToken)

	mine, err := f.devices.ListUserDevices(ctx, "a@example.com")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "LS1", mine[0].SerialNumber)

	_, err = f.devices.List(ctx, model.ListDevicesRequest{PageToken: "%%%"})
	assert.ErrorIs(t, err, apperr.ErrBadPageToken)
}

func TestDeviceTags(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.enrolled(t, "T1")
	tags := NewTagService(repository.NewTagRepository(f.db))
	_, err := tags.Create(ctx, model.TagRequest{Name: "loaner-pool"})
	require.NoError(t, err)
	ident := model.DeviceIdentifier{SerialNumber: "T1"}

	d, err := f.devices.AddTag(ctx, ident, "loaner-pool", "tech@example.com")
	require.NoError(t, err)
	require.Len(t, d.Tags, 1)

	res, err := f.devices.List(ctx, model.ListDevicesRequest{Tag: "loaner-pool"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.TotalResults)

	d, err = f.devices.RemoveTag(ctx, ident, "loaner-pool", "tech@example.com")
	require.NoError(t, err)
	assert.Empty(t, d.Tags)

	_, err = f.devices.AddTag(ctx, ident, "missing", "tech@example.com")
	assert.ErrorIs(t, err, apperr.ErrTagNotFound)
}
