package ports

import (
	"context"

	"github.com/bnema/telegram-query-cli/internal/domain"
)

type Deliverer interface {
	Deliver(ctx context.Context, url string, payload domain.Delivery) error
}
