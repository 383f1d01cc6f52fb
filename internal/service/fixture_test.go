package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/grabngo/loaner/internal/action"
	"github.com/grabngo/loaner/internal/dbtest"
	"github.com/grabngo/loaner/internal/directory"
	"github.com/grabngo/loaner/internal/directory/directorytest"
	"github.com/grabngo/loaner/internal/event"
	"github.com/grabngo/loaner/internal/model"
	"github.com/grabngo/loaner/internal/repository"
	"github.com/grabngo/loaner/internal/search"
	"github.com/grabngo/loaner/internal/settings"
	"github.com/grabngo/loaner/internal/taskqueue/queuetest"
	"github.com/grabngo/loaner/pkg/mailer/mailertest"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	db    *gorm.DB
	clock time.Time

	store *settings.Store
	dir   *directorytest.Fake
	mail  *mailertest.Recorder
	queue *queuetest.Memory

	deviceRepo   *repository.DeviceRepository
	shelfRepo    *repository.ShelfRepository
	reminderRepo *repository.ReminderRepository
	subs         *repository.SubscriptionRepository

	registry   *action.Registry
	dispatcher *action.Dispatcher
	bus        *event.Bus

	devices   *DeviceService
	shelves   *ShelfService
	reminders *ReminderService
	users     *UserService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{db: dbtest.Open(t), clock: testNow}
	now := func() time.Time { return f.clock }

	var err error
	f.store, err = settings.New(repository.NewSettingRepository(f.db))
	require.NoError(t, err)

	f.dir = directorytest.New()
	f.mail = &mailertest.Recorder{}
	f.queue = queuetest.New()
	f.queue.Now = now

	f.deviceRepo = repository.NewDeviceRepository(f.db)
	f.shelfRepo = repository.NewShelfRepository(f.db)
	f.reminderRepo = repository.NewReminderRepository(f.db)
	f.subs = repository.NewSubscriptionRepository(f.db)
	tags := repository.NewTagRepository(f.db)

	f.registry, err = action.NewRegistry(action.Builtins(), false)
	require.NoError(t, err)
	f.dispatcher = action.NewDispatcher(f.registry, &action.Env{
		Devices:   f.deviceRepo,
		Shelves:   f.shelfRepo,
		Reminders: f.reminderRepo,
		Settings:  f.store,
		Directory: f.dir,
		Mail:      f.mail,
		ManageURL: "https://loaner.example.com",
		Now:       now,
	})
	f.bus = event.NewBus(f.subs, f.dispatcher, f.queue, nil, nil)

	for name, actions := range DefaultSubscriptions() {
		require.NoError(t, f.subs.Upsert(ctx, name, actions))
	}

	f.devices = NewDeviceService(f.deviceRepo, f.shelfRepo, tags, f.store, f.dir, f.bus)
	f.devices.now = now
	f.shelves = NewShelfService(f.db, f.shelfRepo, f.deviceRepo, f.devices, f.store, f.bus)
	f.shelves.now = now
	f.reminders = NewReminderService(f.deviceRepo, f.reminderRepo, f.subs, f.registry, f.bus)
	f.reminders.now = now
	f.users = NewUserService(repository.NewUserRepository(f.db), f.dir, []string{"admin@example.com"})
	return f
}

// indexed rebuilds the bus around a search indexer backed by miniredis
func (f *fixture) indexed(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	f.bus = event.NewBus(f.subs, f.dispatcher, f.queue, nil, search.NewRedisIndexer(rdb))
	f.devices.bus = f.bus
	f.shelves.bus = f.bus
	f.reminders.bus = f.bus
	return rdb
}

// searchRecords returns the kind and id of each record on the search stream
func searchRecords(t *testing.T, rdb *redis.Client) [][2]string {
	t.Helper()
	entries, err := rdb.XRange(context.Background(), search.Stream, "-", "+").Result()
	require.NoError(t, err)
	var out [][2]string
	for _, e := range entries {
		out = append(out, [2]string{e.Values["kind"].(string), e.Values["id"].(string)})
	}
	return out
}

func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

// enrolled adds a directory device and enrolls it
func (f *fixture) enrolled(t *testing.T, serial string) *model.Device {
	t.Helper()
	f.dir.Add(directory.Device{DeviceID: "chrome-" + serial, SerialNumber: serial, OrgUnitPath: "/"})
	d, err := f.devices.Enroll(context.Background(), model.EnrollDeviceRequest{SerialNumber: serial}, "tech@example.com")
	require.NoError(t, err)
	return d
}

// loaned enrolls a device and assigns it to user
func (f *fixture) loaned(t *testing.T, serial, user string) *model.Device {
	t.Helper()
	f.enrolled(t, serial)
	d, err := f.devices.Assign(context.Background(), model.DeviceIdentifier{SerialNumber: serial}, user, user)
	require.NoError(t, err)
	return d
}

func (f *fixture) shelf(t *testing.T, location string, capacity int) *model.Shelf {
	t.Helper()
	s, err := f.shelves.Enroll(context.Background(), model.EnrollShelfRequest{Location: location, Capacity: capacity}, "tech@example.com")
	require.NoError(t, err)
	return s
}

func (f *fixture) reload(t *testing.T, d *model.Device) *model.Device {
	t.Helper()
	got, err := f.deviceRepo.FindByID(context.Background(), d.ID)
	require.NoError(t, err)
	return got
}

// queued returns the action names waiting on the queue
func (f *fixture) queued() []string {
	var names []string
	for _, task := range f.queue.Pending() {
		names = append(names, task.Name)
	}
	return names
}
