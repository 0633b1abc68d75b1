package ports

import (
	"context"

	"github.com/bnema/telegram-query-cli/internal/domain"
)

type QueryStore interface {
	Policy() domain.StorePolicy
	Load(ctx context.Context, key domain.QueryKey) (string, bool, error)
	Save(ctx context.Context, key domain.QueryKey, token string) (domain.SaveResult, error)
}

// QueryHistory is implemented by stores that keep superseded tokens.
type QueryHistory interface {
	History(ctx context.Context, key domain.QueryKey) ([]string, error)
}
