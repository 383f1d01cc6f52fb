package service

import (
	"context"

	"github.com/grabngo/loaner/internal/apperr"
	"github.com/grabngo/loaner/internal/model"
	"github.com/grabngo/loaner/internal/repository"
)

type TagService struct {
	tags *repository.TagRepository
}

func NewTagService(tags *repository.TagRepository) *TagService {
	return &TagService{tags: tags}
}

func (s *TagService) Create(ctx context.Context, req model.TagRequest) (*model.Tag, error) {
	if _, err := s.tags.FindByName(ctx, req.Name); err == nil {
		return nil, apperr.ErrBadInput.Withf("tag %q already exists", req.Name)
	}
	t := &model.Tag{
		Name:        req.Name,
		Color:       req.Color,
		Hidden:      req.Hidden,
		Protect:     req.Protect,
		Description: req.Description,
	}
	if err := s.tags.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TagService) Get(ctx context.Context, name string) (*model.Tag, error) {
	return s.tags.FindByName(ctx, name)
}

func (s *TagService) List(ctx context.Context, includeHidden bool) ([]model.Tag, error) {
	return s.tags.List(ctx, includeHidden)
}

// Update rewrites a tag; a rename must not collide with another tag
func (s *TagService) Update(ctx context.Context, name string, req model.TagRequest) (*model.Tag, error) {
	t, err := s.tags.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if req.Name != t.Name {
		if other, err := s.tags.FindByName(ctx, req.Name); err == nil && other.ID != t.ID {
			return nil, apperr.ErrBadInput.Withf("tag %q already exists", req.Name)
		}
	}
	t.Name = req.Name
	t.Color = req.Color
	t.Hidden = req.Hidden
	t.Protect = req.Protect
	t.Description = req.Description
	if err := s.tags.Save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Delete removes a tag. Protected tags may only be deleted by a superadmin.
func (s *TagService) Delete(ctx context.Context, name string, superadmin bool) error {
	t, err := s.tags.FindByName(ctx, name)
	if err != nil {
		return err
	}
	if t.Protect && !superadmin {
		return apperr.ErrTagProtected.Withf("tag %q is protected", name)
	}
	return s.tags.Delete(ctx, t)
}
