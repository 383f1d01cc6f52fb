package service

import (
	"context"

	"github.com/grabngo/loaner/internal/model"
	"github.com/grabngo/loaner/internal/settings"
)

// ConfigService exposes the runtime settings over the API
type ConfigService struct {
	settings *settings.Store
}

func NewConfigService(store *settings.Store) *ConfigService {
	return &ConfigService{settings: store}
}

// Get returns one setting in its wire form
func (s *ConfigService) Get(ctx context.Context, name string) (model.ConfigValue, error) {
	v, err := s.settings.Get(ctx, name)
	if err != nil {
		return model.ConfigValue{}, err
	}
	return settings.ToConfigValue(name, v), nil
}

func (s *ConfigService) List(ctx context.Context) ([]model.ConfigValue, error) {
	return s.settings.List(ctx)
}

// Update writes each value. Unknown names are rejected; values written
// before a failure stay written.
func (s *ConfigService) Update(ctx context.Context, values []model.ConfigValue) error {
	for _, cv := range values {
		v, err := settings.FromConfigValue(cv)
		if err != nil {
			return err
		}
		if err := s.settings.Set(ctx, cv.Name, v, true); err != nil {
			return err
		}
	}
	return nil
}
