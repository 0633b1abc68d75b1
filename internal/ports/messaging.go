package ports

import (
	"context"

	"github.com/bnema/telegram-query-cli/internal/domain"
)

// ChallengeFunc is called by the messaging client when a login code is needed.
type ChallengeFunc func(ctx context.Context) (string, error)

// MessagingClient opens authenticated sessions. Resume must fail with
// domain.ErrSessionRejected when the stored token is no longer authorized and
// Login must fail with domain.ErrChallengeRejected when the supplied code is wrong.
type MessagingClient interface {
	Resume(ctx context.Context, identity domain.APIIdentity, token string) (Session, error)
	Login(ctx context.Context, identity domain.APIIdentity, phone domain.PhoneID, challenge ChallengeFunc) (Session, error)
}

type Session interface {
	ResolveEntity(ctx context.Context, handle domain.BotHandle) (domain.Entity, error)
	SendMessage(ctx context.Context, entity domain.Entity, text string) error
	FetchRecentMessages(ctx context.Context, entity domain.Entity, limit int) ([]domain.Message, error)
	Serialize(ctx context.Context) (string, error)
	Close() error
}
