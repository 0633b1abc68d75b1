package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/telegram-query-cli/internal/domain"
	"github.com/bnema/telegram-query-cli/internal/ports"
)

type AccountStatus struct {
	Phone      domain.PhoneID
	HasSession bool
	State      domain.AccountState
}

type StatusService struct {
	accounts    ports.AccountSource
	credentials *CredentialStore
	state       ports.StateRepository
	store       ports.QueryStore
}

func NewStatusService(accounts ports.AccountSource, credentials *CredentialStore, state ports.StateRepository, store ports.QueryStore) *StatusService {
	return &StatusService{accounts: accounts, credentials: credentials, state: state, store: store}
}

// Statuses lists configured accounts in file order followed by accounts that
// only exist in the run state.
func (s *StatusService) Statuses(ctx context.Context) ([]AccountStatus, error) {
	phones, err := s.accounts.Accounts(ctx)
	if err != nil && !errors.Is(err, domain.ErrConfigMissing) {
		return nil, fmt.Errorf("load accounts: %w", err)
	}

	states, err := s.state.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list account state: %w", err)
	}
	byPhone := make(map[domain.PhoneID]domain.AccountState, len(states))
	for _, state := range states {
		byPhone[state.Phone] = state
	}

	statuses := make([]AccountStatus, 0, len(phones)+len(states))
	seen := make(map[domain.PhoneID]struct{}, len(phones))
	for _, phone := range phones {
		status, err := s.status(ctx, phone, byPhone)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
		seen[phone] = struct{}{}
	}
	for _, state := range states {
		if _, ok := seen[state.Phone]; ok {
			continue
		}
		status, err := s.status(ctx, state.Phone, byPhone)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}

	return statuses, nil
}

func (s *StatusService) status(ctx context.Context, phone domain.PhoneID, states map[domain.PhoneID]domain.AccountState) (AccountStatus, error) {
	account, err := s.credentials.Account(ctx, phone)
	if err != nil {
		return AccountStatus{}, fmt.Errorf("check credentials for %s: %w", phone, err)
	}

	state, ok := states[phone]
	if !ok {
		state = domain.AccountState{Phone: phone}
	}

	return AccountStatus{Phone: phone, HasSession: account.HasSession(), State: state}, nil
}

// Query returns the stored token for a bot. account is ignored by the
// history policy, which keys tokens by bot alone.
func (s *StatusService) Query(ctx context.Context, phone domain.PhoneID, bot domain.BotHandle) (string, bool, error) {
	if !bot.Valid() {
		return "", false, fmt.Errorf("invalid bot handle %q", bot)
	}
	if s.store.Policy() == domain.StorePolicyOverwrite && phone == "" {
		return "", false, errors.New("--account is required with the overwrite store policy")
	}

	return s.store.Load(ctx, domain.QueryKey{Account: phone, Bot: bot})
}

// History returns every stored token for a bot, newest first. Only stores
// that keep superseded tokens support it.
func (s *StatusService) History(ctx context.Context, bot domain.BotHandle) ([]string, error) {
	if !bot.Valid() {
		return nil, fmt.Errorf("invalid bot handle %q", bot)
	}

	history, ok := s.store.(ports.QueryHistory)
	if !ok {
		return nil, fmt.Errorf("query history requires the %s store policy", domain.StorePolicyHistory)
	}
	return history.History(ctx, domain.QueryKey{Bot: bot})
}
