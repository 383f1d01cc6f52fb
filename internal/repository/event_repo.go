package repository

import (
	"context"
	"errors"

	"github.com/grabngo/loaner/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubscriptionRepository handles database operations for EventSubscription
type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// ActionsFor returns the ordered action names subscribed to event.
// An event without subscriptions yields an empty list.
func (r *SubscriptionRepository) ActionsFor(ctx context.Context, event string) ([]string, error) {
	var sub model.EventSubscription
	err := r.db.WithContext(ctx).Where("event_name = ?", event).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return sub.Actions(), nil
}

// Upsert replaces the subscription list for an event
func (r *SubscriptionRepository) Upsert(ctx context.Context, event string, actions []string) error {
	sub := model.EventSubscription{EventName: event}
	sub.SetActions(actions)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"action_names", "updated_at"}),
	}).Create(&sub).Error
}

// List returns all subscriptions
func (r *SubscriptionRepository) List(ctx context.Context) ([]model.EventSubscription, error) {
	var subs []model.EventSubscription
	err := r.db.WithContext(ctx).Order("event_name ASC").Find(&subs).Error
	return subs, err
}

// Delete removes the subscription for an event
func (r *SubscriptionRepository) Delete(ctx context.Context, event string) error {
	return r.db.WithContext(ctx).Where("event_name = ?", event).Delete(&model.EventSubscription{}).Error
}

// BootstrapRepository stores bootstrap task outcomes
type BootstrapRepository struct {
	db *gorm.DB
}

func NewBootstrapRepository(db *gorm.DB) *BootstrapRepository {
	return &BootstrapRepository{db: db}
}

// Record upserts a task outcome
func (r *BootstrapRepository) Record(ctx context.Context, st *model.BootstrapStatus) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"description", "success", "timestamp", "details"}),
	}).Create(st).Error
}

// List returns every recorded outcome
func (r *BootstrapRepository) List(ctx context.Context) ([]model.BootstrapStatus, error) {
	var out []model.BootstrapStatus
	err := r.db.WithContext(ctx).Order("name ASC").Find(&out).Error
	return out, err
}
