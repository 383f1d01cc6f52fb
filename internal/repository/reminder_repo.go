package repository

import (
	"context"
	"errors"

	"github.com/grabngo/loaner/internal/apperr"
	"github.com/grabngo/loaner/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReminderRepository handles database operations for ReminderEvent
type ReminderRepository struct {
	db *gorm.DB
}

func NewReminderRepository(db *gorm.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

// Get returns the reminder event for a level
func (r *ReminderRepository) Get(ctx context.Context, level int) (*model.ReminderEvent, error) {
	var ev model.ReminderEvent
	if err := r.db.WithContext(ctx).Where("level = ?", level).First(&ev).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrReminderNotFound.Withf("no reminder event at level %d", level)
		}
		return nil, err
	}
	return &ev, nil
}

// List returns all reminder events ordered by level
func (r *ReminderRepository) List(ctx context.Context) ([]model.ReminderEvent, error) {
	var events []model.ReminderEvent
	err := r.db.WithContext(ctx).Order("level ASC").Find(&events).Error
	return events, err
}

// Upsert creates or replaces the event at ev.Level
func (r *ReminderRepository) Upsert(ctx context.Context, ev *model.ReminderEvent) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "level"}},
		DoUpdates: clause.AssignmentColumns([]string{"delay_after_previous", "template_name", "description", "updated_at"}),
	}).Create(ev).Error
}

// Delete removes the event at level
func (r *ReminderRepository) Delete(ctx context.Context, level int) error {
	res := r.db.WithContext(ctx).Where("level = ?", level).Delete(&model.ReminderEvent{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrReminderNotFound.Withf("no reminder event at level %d", level)
	}
	return nil
}
