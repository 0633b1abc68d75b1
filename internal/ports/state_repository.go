package ports

import (
	"context"

	"github.com/bnema/telegram-query-cli/internal/domain"
)

type StateRepository interface {
	Get(ctx context.Context, phone domain.PhoneID) (domain.AccountState, error)
	List(ctx context.Context) ([]domain.AccountState, error)
	Save(ctx context.Context, state domain.AccountState) error
}
