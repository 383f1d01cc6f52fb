package repository

import (
	"context"
	"errors"

	"github.com/grabngo/loaner/internal/apperr"
	"github.com/grabngo/loaner/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingRepository handles database operations for Setting
type SettingRepository struct {
	db *gorm.DB
}

func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// Get returns the persisted row for name
func (r *SettingRepository) Get(ctx context.Context, name string) (*model.Setting, error) {
	var s model.Setting
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrKeyNotFound.Withf("%s", name)
		}
		return nil, err
	}
	return &s, nil
}

// Upsert replaces the row for s.Name
func (r *SettingRepository) Upsert(ctx context.Context, s *model.Setting) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"string_value", "integer_value", "bool_value", "list_value", "updated_at"}),
	}).Create(s).Error
}

// List returns every persisted setting
func (r *SettingRepository) List(ctx context.Context) ([]model.Setting, error) {
	var out []model.Setting
	err := r.db.WithContext(ctx).Order("name ASC").Find(&out).Error
	return out, err
}
