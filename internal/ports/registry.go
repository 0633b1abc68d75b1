package ports

import (
	"context"

	"github.com/bnema/telegram-query-cli/internal/domain"
)

type AccountSource interface {
	Accounts(ctx context.Context) ([]domain.PhoneID, error)
}

// BotRegistry is read again at the start of every polling cycle.
type BotRegistry interface {
	Bots(ctx context.Context) ([]domain.BotEntry, error)
}
