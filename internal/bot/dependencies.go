package bot

import (
	"context"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/iamwavecut/modbot/internal/config"
	"github.com/iamwavecut/modbot/internal/registry"
)

// Service gives handlers access to the shared runtime objects.
type Service interface {
	GetStore() *registry.Store
	GetConfig() *config.Config
}

// Handler defines the interface for all update handlers in the system
type Handler interface {
	Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (proceed bool, err error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error)

func (f HandlerFunc) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	return f(ctx, u, chat, user)
}
