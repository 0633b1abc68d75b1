package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/telegram-query-cli/internal/domain"
	"github.com/bnema/telegram-query-cli/internal/logging"
	"github.com/bnema/telegram-query-cli/internal/ports"
	"github.com/charmbracelet/log"
)

// ActiveSession is an account that passed the login phase.
type ActiveSession struct {
	Phone   domain.PhoneID
	Session ports.Session
}

type LoginService struct {
	accounts   ports.AccountSource
	sessions   *SessionService
	state      ports.StateRepository
	clock      ports.Clock
	loginDelay time.Duration
	logger     *log.Logger
}

func NewLoginService(
	accounts ports.AccountSource,
	sessions *SessionService,
	state ports.StateRepository,
	clock ports.Clock,
	loginDelay time.Duration,
	logger *log.Logger,
) *LoginService {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &LoginService{
		accounts:   accounts,
		sessions:   sessions,
		state:      state,
		clock:      clock,
		loginDelay: loginDelay,
		logger:     logger,
	}
}

// Accounts lists configured phones. A missing account file counts as empty.
func (s *LoginService) Accounts(ctx context.Context) ([]domain.PhoneID, error) {
	phones, err := s.accounts.Accounts(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrConfigMissing) {
			return nil, fmt.Errorf("load accounts: %w", err)
		}
		s.logger.Warn("account list missing", "err", err)
		return nil, nil
	}
	return phones, nil
}

// LoginAll logs every configured account in order, pausing between accounts.
// Failed accounts are logged and skipped; ErrNoSessions is returned when none succeed.
func (s *LoginService) LoginAll(ctx context.Context) ([]ActiveSession, error) {
	phones, err := s.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	if len(phones) == 0 {
		return nil, domain.ErrNoAccounts
	}

	s.logger.Info("logging in accounts", "count", len(phones))

	active := make([]ActiveSession, 0, len(phones))
	for i, phone := range phones {
		if i > 0 {
			if err := s.clock.Sleep(ctx, s.loginDelay); err != nil {
				CloseSessions(active)
				return nil, err
			}
		}

		session, err := s.LoginOne(ctx, phone)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				CloseSessions(active)
				return nil, ctxErr
			}
			s.logger.Error("login failed", "account", phone, "err", err)
			continue
		}

		active = append(active, ActiveSession{Phone: phone, Session: session})
	}

	if len(active) == 0 {
		return nil, domain.ErrNoSessions
	}

	s.logger.Info("login phase finished", "active", len(active), "failed", len(phones)-len(active))
	return active, nil
}

// LoginOne establishes a session for a single account and records the outcome.
func (s *LoginService) LoginOne(ctx context.Context, phone domain.PhoneID) (ports.Session, error) {
	session, err := s.sessions.EnsureSession(ctx, phone)
	s.record(ctx, phone, err)
	return session, err
}

func (s *LoginService) record(ctx context.Context, phone domain.PhoneID, loginErr error) {
	if s.state == nil || ctx.Err() != nil {
		return
	}

	state, err := s.state.Get(ctx, phone)
	if err != nil {
		if !errors.Is(err, domain.ErrAccountNotFound) {
			s.logger.Warn("load account state", "account", phone, "err", err)
			return
		}
		state = domain.AccountState{Phone: phone}
	}

	state.LastLoginAt = s.clock.Now()
	state.LoginStatus = domain.LoginStatusOK
	state.LoginError = ""
	if loginErr != nil {
		state.LoginStatus = domain.LoginStatusFailed
		state.LoginError = loginReason(loginErr)
	}

	if err := s.state.Save(ctx, state); err != nil {
		s.logger.Warn("save account state", "account", phone, "err", err)
	}
}

func loginReason(err error) string {
	var loginErr *domain.LoginError
	if errors.As(err, &loginErr) && loginErr.Reason != nil {
		return loginErr.Reason.Error()
	}
	return err.Error()
}

// CloseSessions closes every session, ignoring errors.
func CloseSessions(sessions []ActiveSession) {
	for _, active := range sessions {
		_ = active.Session.Close()
	}
}
