package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/grabngo/loaner/internal/action"
	"github.com/grabngo/loaner/internal/apperr"
	"github.com/grabngo/loaner/internal/cron"
	"github.com/grabngo/loaner/internal/dbtest"
	"github.com/grabngo/loaner/internal/directory"
	"github.com/grabngo/loaner/internal/directory/directorytest"
	"github.com/grabngo/loaner/internal/event"
	"github.com/grabngo/loaner/internal/model"
	"github.com/grabngo/loaner/internal/repository"
	"github.com/grabngo/loaner/internal/service"
	"github.com/grabngo/loaner/internal/settings"
	"github.com/grabngo/loaner/internal/taskqueue/queuetest"
	"github.com/grabngo/loaner/pkg/auth"
	"github.com/grabngo/loaner/pkg/mailer/mailertest"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type server struct {
	router *gin.Engine
	jwt    *auth.JWTManager
	dir    *directorytest.Fake
}

func newServer(t *testing.T, scheduler *cron.Scheduler) *server {
	t.Helper()
	db := dbtest.Open(t)
	store, err := settings.New(repository.NewSettingRepository(db))
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	dir := directorytest.New()
	devices := repository.NewDeviceRepository(db)
	shelves := repository.NewShelfRepository(db)
	tags := repository.NewTagRepository(db)
	subs := repository.NewSubscriptionRepository(db)

	registry, err := action.NewRegistry(action.Builtins(), false)
	require.NoError(t, err)
	dispatcher := action.NewDispatcher(registry, &action.Env{
		Devices:   devices,
		Shelves:   shelves,
		Reminders: repository.NewReminderRepository(db),
		Settings:  store,
		Directory: dir,
		Mail:      &mailertest.Recorder{},
	})
	bus := event.NewBus(subs, dispatcher, queuetest.New(), nil, nil)

	deviceService := service.NewDeviceService(devices, shelves, tags, store, dir, bus)
	shelfService := service.NewShelfService(db, shelves, devices, deviceService, store, bus)

	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	hs := &Handlers{
		Device: NewDeviceHandler(deviceService),
		Shelf:  NewShelfHandler(shelfService),
		Admin: NewAdminHandler(
			service.NewTagService(tags),
			service.NewConfigService(store),
			nil, nil, nil,
		),
	}
	if scheduler != nil {
		hs.Cron = NewCronHandler(scheduler)
	}

	r := gin.New()
	hs.Register(r, RouteOptions{JWT: jwtManager, Redis: rdb, CronToken: "cron-secret", HeartbeatRate: 100, HeartbeatBurst: 100})
	return &server{router: r, jwt: jwtManager, dir: dir}
}

func (s *server) token(t *testing.T, email string, perms ...model.Permission) string {
	t.Helper()
	names := make([]string, 0, len(perms))
	for _, p := range perms {
		names = append(names, string(p))
	}
	token, err := s.jwt.GenerateToken(email, []string{model.RoleUser}, names, false)
	require.NoError(t, err)
	return token
}

func (s *server) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestDeviceLoanFlow(t *testing.T) {
	s := newServer(t, nil)
	s.dir.Add(directory.Device{DeviceID: "chrome-1", SerialNumber: "SN1", OrgUnitPath: "/"})
	tech := s.token(t, "tech@example.com", model.PermissionEnrollDevice, model.PermissionReadDevices)
	alice := s.token(t, "alice@example.com")
	bob := s.token(t, "bob@example.com")

	w := s.do(http.MethodPost, "/api/v1/devices/enroll", alice, model.EnrollDeviceRequest{SerialNumber: "SN1"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/v1/devices/enroll", tech, model.EnrollDeviceRequest{SerialNumber: "SN1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, decode[model.Device](t, w).Enrolled)

	w = s.do(http.MethodPost, "/api/v1/devices/enroll", tech, model.EnrollDeviceRequest{SerialNumber: "SN1"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/api/v1/devices/assign", alice, model.AssignDeviceRequest{
		DeviceIdentifier: model.DeviceIdentifier{SerialNumber: "SN1"},
		UserEmail:        "carol@example.com",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/v1/devices/assign", alice, model.AssignDeviceRequest{
		DeviceIdentifier: model.DeviceIdentifier{SerialNumber: "SN1"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "alice@example.com", decode[model.Device](t, w).AssignedUser)

	// borrowers see their own device, others need read_devices
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/devices/lookup?serial_number=SN1", alice, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/devices/lookup?serial_number=SN1", bob, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/devices/lookup?identifier=SN1", tech, nil).Code)

	w = s.do(http.MethodPost, "/api/v1/devices/extend", alice, model.ExtendLoanRequest{
		DeviceIdentifier: model.DeviceIdentifier{SerialNumber: "SN1"},
		ExtendDate:       time.Now().Add(60 * 24 * time.Hour),
	})
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
	assert.Equal(t, "ExtendError", decode[model.ErrorResponse](t, w).Error)

	w = s.do(http.MethodPost, "/api/v1/devices/pending-return", bob, model.DeviceIdentifier{SerialNumber: "SN1"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/v1/devices/lost", bob, model.DeviceIdentifier{SerialNumber: "SN1"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/v1/devices/pending-return", alice, model.DeviceIdentifier{SerialNumber: "SN1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, decode[model.Device](t, w).MarkPendingReturnDate)

	w = s.do(http.MethodGet, "/api/v1/devices/mine", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.Device](t, w), 1)
}

func TestHeartbeat(t *testing.T) {
	s := newServer(t, nil)
	s.dir.Add(directory.Device{DeviceID: "chrome-9", SerialNumber: "SN9", OrgUnitPath: "/"})

	w := s.do(http.MethodPost, "/api/v1/devices/heartbeat", "", model.HeartbeatRequest{DeviceID: "chrome-9"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, decode[model.HeartbeatResponse](t, w).IsEnrolled)

	w = s.do(http.MethodPost, "/api/v1/devices/heartbeat", "", model.HeartbeatRequest{DeviceID: "ghost"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/api/v1/devices/heartbeat", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListDevicesBadToken(t *testing.T) {
	s := newServer(t, nil)
	tech := s.token(t, "tech@example.com", model.PermissionReadDevices)

	w := s.do(http.MethodGet, "/api/v1/devices?page_token=%25%25%25", tech, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/v1/devices", tech, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, decode[model.DeviceListResponse](t, w).TotalResults)
}

func TestShelfEndpoints(t *testing.T) {
	s := newServer(t, nil)
	s.dir.Add(directory.Device{DeviceID: "chrome-2", SerialNumber: "SN2", OrgUnitPath: "/"})
	tech := s.token(t, "tech@example.com",
		model.PermissionEnrollDevice, model.PermissionModifyShelf,
		model.PermissionReadShelves, model.PermissionAuditShelf)

	require.Equal(t, http.StatusCreated,
		s.do(http.MethodPost, "/api/v1/devices/enroll", tech, model.EnrollDeviceRequest{SerialNumber: "SN2"}).Code)

	w := s.do(http.MethodPost, "/api/v1/shelves", tech, model.EnrollShelfRequest{Location: "Lobby", Capacity: 1})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/v1/shelves", tech, model.EnrollShelfRequest{Location: "Lobby", Capacity: 1})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/api/v1/shelves/Lobby/audit", tech, model.AuditShelfRequest{DeviceIdentifiers: []string{"SN2"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "tech@example.com", decode[model.Shelf](t, w).LastAuditBy)

	w = s.do(http.MethodGet, "/api/v1/shelves/Nowhere", tech, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "ShelfNotFoundError", decode[model.ErrorResponse](t, w).Error)
}

func TestConfigAndTags(t *testing.T) {
	s := newServer(t, nil)
	admin := s.token(t, "admin@example.com", model.PermissionReadConfigs, model.PermissionModifyConfig, model.PermissionModifyTag)

	w := s.do(http.MethodGet, "/api/v1/config/"+settings.LoanDuration, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, decode[model.ConfigValue](t, w).IntegerValue)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/v1/config/no_such_key", admin, nil).Code)

	w = s.do(http.MethodPost, "/api/v1/tags", admin, model.TagRequest{Name: "loaner", Protect: true})
	require.Equal(t, http.StatusCreated, w.Code)
	w = s.do(http.MethodDelete, "/api/v1/tags/loaner", admin, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "TagProtectedError", decode[model.ErrorResponse](t, w).Error)
}

func TestCronEndpoint(t *testing.T) {
	scheduler := cron.NewScheduler(time.Minute)
	require.NoError(t, scheduler.Add(cron.JobReminders, "", func(ctx context.Context) (interface{}, error) {
		return service.ScanResult{Raised: 2}, nil
	}))
	require.NoError(t, scheduler.Add(cron.JobBackup, "", func(ctx context.Context) (interface{}, error) {
		return nil, apperr.ErrBackupUpload.Wrap(minio.ErrorResponse{StatusCode: http.StatusForbidden, Code: "AccessDenied"})
	}))
	s := newServer(t, scheduler)

	cronReq := func(job, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/_cron/"+job, nil)
		req.Header.Set("X-Cron-Token", token)
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusForbidden, cronReq(cron.JobReminders, "wrong").Code)
	assert.Equal(t, http.StatusNotFound, cronReq("nope", "cron-secret").Code)

	w := cronReq(cron.JobReminders, "cron-secret")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"raised":2`)

	w = cronReq(cron.JobBackup, "cron-secret")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "BackupUploadError", decode[model.ErrorResponse](t, w).Error)
}
