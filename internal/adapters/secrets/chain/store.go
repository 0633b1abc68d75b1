package chain

import (
	"context"
	"errors"
	"fmt"

	filestore "github.com/bnema/telegram-query-cli/internal/adapters/secrets/file"
	passstore "github.com/bnema/telegram-query-cli/internal/adapters/secrets/pass"
	"github.com/bnema/telegram-query-cli/internal/ports"
)

const (
	BackendFile         = "file"
	BackendPass         = "pass"
	BackendPassWithFile = "pass+file"
)

// Store tries primary first and falls back to the second backend.
type Store struct {
	primary  ports.SecretStore
	fallback ports.SecretStore
}

var _ ports.SecretStore = (*Store)(nil)

var (
	errNilPrimaryStore  = errors.New("primary credential store is nil")
	errNilFallbackStore = errors.New("fallback credential store is nil")
)

func NewStore(primary ports.SecretStore, fallback ports.SecretStore) (*Store, error) {
	if primary == nil {
		return nil, errNilPrimaryStore
	}
	if fallback == nil {
		return nil, errNilFallbackStore
	}

	return &Store{primary: primary, fallback: fallback}, nil
}

// Open builds the credential backend named by the credentials.backend setting.
func Open(backend string, fileRoot string) (ports.SecretStore, error) {
	switch backend {
	case "", BackendFile:
		return filestore.NewStore(fileRoot), nil
	case BackendPass:
		return passstore.NewStore(""), nil
	case BackendPassWithFile:
		return NewStore(passstore.NewStore(""), filestore.NewStore(fileRoot))
	default:
		return nil, fmt.Errorf("unsupported credentials backend %q", backend)
	}
}

func (s *Store) Put(ctx context.Context, key string, value string) error {
	err := s.primary.Put(ctx, key, value)
	if err == nil {
		return nil
	}
	if shouldSkipFallback(err) {
		return err
	}

	fallbackErr := s.fallback.Put(ctx, key, value)
	if fallbackErr == nil {
		return nil
	}

	return fmt.Errorf("primary backend put failed: %w; fallback backend put failed: %w", err, fallbackErr)
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	value, err := s.primary.Get(ctx, key)
	if err == nil {
		return value, nil
	}
	if shouldSkipFallback(err) {
		return "", err
	}

	fallbackValue, fallbackErr := s.fallback.Get(ctx, key)
	if fallbackErr == nil {
		return fallbackValue, nil
	}

	return "", fmt.Errorf("primary backend get failed: %w; fallback backend get failed: %w", err, fallbackErr)
}

func shouldSkipFallback(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
