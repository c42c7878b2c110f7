package bot

import (
	"github.com/iamwavecut/modbot/internal/config"
	"github.com/iamwavecut/modbot/internal/registry"
)

type service struct {
	store *registry.Store
	cfg   *config.Config
}

func NewService(store *registry.Store, cfg *config.Config) *service {
	return &service{
		store: store,
		cfg:   cfg,
	}
}

func (s *service) GetStore() *registry.Store {
	return s.store
}

func (s *service) GetConfig() *config.Config {
	return s.cfg
}
