package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/telegram-query-cli/internal/domain"
	"github.com/bnema/telegram-query-cli/internal/logging"
	"github.com/bnema/telegram-query-cli/internal/ports"
	"github.com/charmbracelet/log"
)

const defaultMaxChallengeAttempts = 5

type SessionServiceConfig struct {
	// DefaultIdentity is used when an account has no cached API identity.
	DefaultIdentity      domain.APIIdentity
	MaxChallengeAttempts int
}

// SessionService resumes stored sessions or runs a fresh login and persists
// the resulting token before handing the session back.
type SessionService struct {
	client      ports.MessagingClient
	credentials *CredentialStore
	challenges  ports.ChallengeProvider
	identities  ports.IdentityPrompter
	cfg         SessionServiceConfig
	logger      *log.Logger
}

func NewSessionService(
	client ports.MessagingClient,
	credentials *CredentialStore,
	challenges ports.ChallengeProvider,
	identities ports.IdentityPrompter,
	cfg SessionServiceConfig,
	logger *log.Logger,
) *SessionService {
	if cfg.MaxChallengeAttempts <= 0 {
		cfg.MaxChallengeAttempts = defaultMaxChallengeAttempts
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &SessionService{
		client:      client,
		credentials: credentials,
		challenges:  challenges,
		identities:  identities,
		cfg:         cfg,
		logger:      logger,
	}
}

// EnsureSession returns a live session for phone. Failures are reported as
// *domain.LoginError and leave the credential store untouched.
func (s *SessionService) EnsureSession(ctx context.Context, phone domain.PhoneID) (ports.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := s.logger.With("account", phone)

	identity, cached, err := s.resolveIdentity(ctx, phone)
	if err != nil {
		return nil, &domain.LoginError{Phone: phone, Reason: err}
	}

	token, stored, err := s.credentials.LoadSession(ctx, phone)
	if err != nil {
		return nil, &domain.LoginError{Phone: phone, Reason: err}
	}

	if stored {
		session, err := s.client.Resume(ctx, identity, token)
		switch {
		case err == nil:
			logger.Info("session resumed")
			return s.persist(ctx, phone, identity, cached, session)
		case errors.Is(err, domain.ErrSessionRejected):
			logger.Warn("stored session rejected, starting fresh login")
		default:
			return nil, &domain.LoginError{Phone: phone, Reason: err}
		}
	}

	session, err := s.login(ctx, phone, identity)
	if err != nil {
		return nil, &domain.LoginError{Phone: phone, Reason: err}
	}
	logger.Info("logged in")

	return s.persist(ctx, phone, identity, cached, session)
}

func (s *SessionService) login(ctx context.Context, phone domain.PhoneID, identity domain.APIIdentity) (ports.Session, error) {
	challenge := func(ctx context.Context) (string, error) {
		return s.challenges.RequestChallengeCode(ctx, phone)
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxChallengeAttempts; attempt++ {
		session, err := s.client.Login(ctx, identity, phone, challenge)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, domain.ErrChallengeRejected) {
			return nil, err
		}
		lastErr = err
		s.logger.Warn("challenge code rejected", "account", phone, "attempt", attempt, "max", s.cfg.MaxChallengeAttempts)
	}

	return nil, fmt.Errorf("gave up after %d attempts: %w", s.cfg.MaxChallengeAttempts, lastErr)
}

// resolveIdentity prefers the cached per-account identity, then the configured
// default, then an interactive prompt. cached reports whether it came from disk.
func (s *SessionService) resolveIdentity(ctx context.Context, phone domain.PhoneID) (domain.APIIdentity, bool, error) {
	identity, ok, err := s.credentials.LoadIdentity(ctx, phone)
	if err != nil {
		return domain.APIIdentity{}, false, err
	}
	if ok {
		return identity, true, nil
	}

	if !s.cfg.DefaultIdentity.IsZero() {
		if err := s.cfg.DefaultIdentity.Validate(); err != nil {
			return domain.APIIdentity{}, false, fmt.Errorf("configured api identity: %w", err)
		}
		return s.cfg.DefaultIdentity, false, nil
	}

	if s.identities == nil {
		return domain.APIIdentity{}, false, domain.ErrIdentityMissing
	}

	identity, err = s.identities.RequestIdentity(ctx, phone)
	if err != nil {
		return domain.APIIdentity{}, false, fmt.Errorf("request api identity: %w", err)
	}
	if err := identity.Validate(); err != nil {
		return domain.APIIdentity{}, false, fmt.Errorf("request api identity: %w", errors.Join(domain.ErrIdentityMissing, err))
	}

	return identity, false, nil
}

func (s *SessionService) persist(ctx context.Context, phone domain.PhoneID, identity domain.APIIdentity, cached bool, session ports.Session) (ports.Session, error) {
	fail := func(err error) (ports.Session, error) {
		if closeErr := session.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close session: %w", closeErr))
		}
		return nil, &domain.LoginError{Phone: phone, Reason: err}
	}

	token, err := session.Serialize(ctx)
	if err != nil {
		return fail(fmt.Errorf("serialize session: %w", err))
	}
	// The identity goes first: a session token is only resumable together
	// with the identity that created it.
	if !cached {
		if err := s.credentials.SaveIdentity(ctx, phone, identity); err != nil {
			return fail(err)
		}
	}
	if err := s.credentials.SaveSession(ctx, phone, token); err != nil {
		return fail(err)
	}

	return session, nil
}
