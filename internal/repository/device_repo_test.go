package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/grabngo/loaner/internal/apperr"
	"github.com/grabngo/loaner/internal/dbtest"
	"github.com/grabngo/loaner/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDevice(serial string) *model.Device {
	return &model.Device{
		ChromeDeviceID: "chrome-" + serial,
		SerialNumber:   serial,
		Enrolled:       true,
	}
}

func TestDeviceRepository_SaveRejectsStaleVersion(t *testing.T) {
	db, mock := dbtest.Mock(t)
	repo := NewDeviceRepository(db)

	d := newDevice("123456")
	d.ID = uuid.New()
	d.Version = 4

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "devices" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.Save(context.Background(), d)
	assert.ErrorIs(t, err, apperr.ErrConcurrentModification)
	assert.Equal(t, int64(4), d.Version, "version must be restored after a failed write")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeviceRepository_SaveAdvancesVersion(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewDeviceRepository(db)
	ctx := context.Background()

	d := newDevice("A1")
	require.NoError(t, repo.Create(ctx, d))
	require.Equal(t, int64(1), d.Version)

	stale := *d
	d.DeviceModel = "Chromebook 14"
	require.NoError(t, repo.Save(ctx, d))
	assert.Equal(t, int64(2), d.Version)

	stale.Locked = true
	assert.ErrorIs(t, repo.Save(ctx, &stale), apperr.ErrConcurrentModification)

	got, err := repo.FindByID(ctx, d.ID)
	require.NoError(t, err)
	assert.False(t, got.Locked, "stale write must not overwrite the committed row")
	assert.Equal(t, "Chromebook 14", got.DeviceModel)
}

func TestDeviceRepository_MutateRetriesThenConflicts(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewDeviceRepository(db)
	ctx := context.Background()

	d := newDevice("B1")
	require.NoError(t, repo.Create(ctx, d))

	t.Run("recovers from a single interleaved write", func(t *testing.T) {
		calls := 0
		got, err := repo.Mutate(ctx, d.ID, func(cur *model.Device) error {
			calls++
			if calls == 1 {
				other, err := repo.FindByID(ctx, d.ID)
				require.NoError(t, err)
				other.DeviceModel = "interleaved"
				require.NoError(t, repo.Save(ctx, other))
			}
			cur.Locked = true
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
		assert.True(t, got.Locked)
		assert.Equal(t, "interleaved", got.DeviceModel)
	})

	t.Run("gives up after the retry budget", func(t *testing.T) {
		calls := 0
		_, err := repo.Mutate(ctx, d.ID, func(cur *model.Device) error {
			calls++
			other, err := repo.FindByID(ctx, d.ID)
			require.NoError(t, err)
			require.NoError(t, repo.Save(ctx, other))
			return nil
		})
		assert.ErrorIs(t, err, apperr.ErrConcurrentModification)
		assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
		assert.Equal(t, ConflictRetries+1, calls)
	})
}

func TestDeviceRepository_Lookups(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewDeviceRepository(db)
	ctx := context.Background()

	tag := "ASSET-9"
	d := newDevice("C1")
	d.AssetTag = &tag
	require.NoError(t, repo.Create(ctx, d))

	byChrome, err := repo.FindByChromeID(ctx, "chrome-C1")
	require.NoError(t, err)
	assert.Equal(t, d.ID, byChrome.ID)

	byTag, err := repo.FindByAssetTag(ctx, tag)
	require.NoError(t, err)
	assert.Equal(t, d.ID, byTag.ID)

	_, err = repo.FindBySerial(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrDeviceDoesNotExist)
}

func TestParsePage(t *testing.T) {
	p, err := ParsePage(0, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultPageSize, p.Size)

	next := p.NextToken(100)
	require.NotEmpty(t, next)

	p2, err := ParsePage(10, next)
	require.NoError(t, err)
	assert.Equal(t, DefaultPageSize, p2.Offset)

	assert.Empty(t, Page{Size: 10, Offset: 90}.NextToken(100))

	_, err = ParsePage(10, "%%%not-a-token")
	assert.ErrorIs(t, err, apperr.ErrBadPageToken)
	assert.Equal(t, apperr.BadInput, apperr.KindOf(err))
}
