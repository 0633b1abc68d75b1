package ports

import (
	"context"

	"github.com/bnema/telegram-query-cli/internal/domain"
)

type ChallengeProvider interface {
	RequestChallengeCode(ctx context.Context, phone domain.PhoneID) (string, error)
}

type IdentityPrompter interface {
	RequestIdentity(ctx context.Context, phone domain.PhoneID) (domain.APIIdentity, error)
}
