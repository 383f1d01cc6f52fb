package repository

import (
	"context"
	"errors"

	"github.com/grabngo/loaner/internal/apperr"
	"github.com/grabngo/loaner/internal/model"
	"gorm.io/gorm"
)

// TagRepository handles database operations for Tag
type TagRepository struct {
	db *gorm.DB
}

func NewTagRepository(db *gorm.DB) *TagRepository {
	return &TagRepository{db: db}
}

// Create inserts a tag
func (r *TagRepository) Create(ctx context.Context, t *model.Tag) error {
	return r.db.WithContext(ctx).Create(t).Error
}

// FindByName finds a tag by its unique name
func (r *TagRepository) FindByName(ctx context.Context, name string) (*model.Tag, error) {
	var t model.Tag
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrTagNotFound.Withf("no tag named %q", name)
		}
		return nil, err
	}
	return &t, nil
}

// List returns tags, hiding hidden ones unless includeHidden is set
func (r *TagRepository) List(ctx context.Context, includeHidden bool) ([]model.Tag, error) {
	q := r.db.WithContext(ctx)
	if !includeHidden {
		q = q.Where("hidden = ?", false)
	}
	var tags []model.Tag
	err := q.Order("name ASC").Find(&tags).Error
	return tags, err
}

// Save writes every column of the tag
func (r *TagRepository) Save(ctx context.Context, t *model.Tag) error {
	return r.db.WithContext(ctx).Save(t).Error
}

// Delete removes a tag and detaches it from every device
func (r *TagRepository) Delete(ctx context.Context, t *model.Tag) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM device_tags WHERE tag_id = ?", t.ID).Error; err != nil {
			return err
		}
		return tx.Delete(t).Error
	})
}
