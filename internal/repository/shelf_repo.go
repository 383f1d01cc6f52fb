package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/grabngo/loaner/internal/apperr"
	"github.com/grabngo/loaner/internal/model"
	"gorm.io/gorm"
)

// ShelfRepository handles database operations for Shelf
type ShelfRepository struct {
	db *gorm.DB
}

func NewShelfRepository(db *gorm.DB) *ShelfRepository {
	return &ShelfRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *ShelfRepository) WithTx(tx *gorm.DB) *ShelfRepository {
	return &ShelfRepository{db: tx}
}

// Create inserts a new shelf, rejecting a duplicate location
func (r *ShelfRepository) Create(ctx context.Context, s *model.Shelf) error {
	if _, err := r.FindByLocation(ctx, s.Location); err == nil {
		return apperr.ErrShelfDuplicate.Withf("shelf %q already exists", s.Location)
	}
	return r.db.WithContext(ctx).Create(s).Error
}

// FindByID finds a shelf by surrogate key
func (r *ShelfRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Shelf, error) {
	var s model.Shelf
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrShelfNotFound
		}
		return nil, err
	}
	return &s, nil
}

// FindByLocation finds a shelf by its natural key
func (r *ShelfRepository) FindByLocation(ctx context.Context, location string) (*model.Shelf, error) {
	var s model.Shelf
	if err := r.db.WithContext(ctx).Where("location = ?", location).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrShelfNotFound.Withf("no shelf at %q", location)
		}
		return nil, err
	}
	return &s, nil
}

// Save writes every column of the shelf
func (r *ShelfRepository) Save(ctx context.Context, s *model.Shelf) error {
	return r.db.WithContext(ctx).Save(s).Error
}

// List returns a page of shelves and the total match count
func (r *ShelfRepository) List(ctx context.Context, enabled *bool, query string, page Page) ([]model.Shelf, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Shelf{})
	if enabled != nil {
		q = q.Where("enabled = ?", *enabled)
	}
	if query != "" {
		like := "%" + query + "%"
		q = q.Where("location LIKE ? OR friendly_name LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var shelves []model.Shelf
	err := q.Order("location ASC").Offset(page.Offset).Limit(page.Size).Find(&shelves).Error
	return shelves, total, err
}

// ListEnabled returns all enabled shelves
func (r *ShelfRepository) ListEnabled(ctx context.Context) ([]model.Shelf, error) {
	var shelves []model.Shelf
	err := r.db.WithContext(ctx).Where("enabled = ?", true).Order("location ASC").Find(&shelves).Error
	return shelves, err
}

// ListAll returns every shelf row, used by backups
func (r *ShelfRepository) ListAll(ctx context.Context) ([]model.Shelf, error) {
	var shelves []model.Shelf
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&shelves).Error
	return shelves, err
}
