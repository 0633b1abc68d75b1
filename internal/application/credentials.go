package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/telegram-query-cli/internal/domain"
	"github.com/bnema/telegram-query-cli/internal/ports"
)

const (
	sessionFileName  = "session.txt"
	identityFileName = "api.txt"
)

// CredentialStore maps per-account session tokens and API identities onto
// secret store keys of the form "<phone>/session.txt".
type CredentialStore struct {
	store ports.SecretStore
}

func NewCredentialStore(store ports.SecretStore) *CredentialStore {
	return &CredentialStore{store: store}
}

func SessionKey(phone domain.PhoneID) string {
	return phone.StorageName() + "/" + sessionFileName
}

func IdentityKey(phone domain.PhoneID) string {
	return phone.StorageName() + "/" + identityFileName
}

func (c *CredentialStore) LoadSession(ctx context.Context, phone domain.PhoneID) (string, bool, error) {
	token, err := c.store.Get(ctx, SessionKey(phone))
	if err != nil {
		if errors.Is(err, domain.ErrSecretNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("load session: %w", err)
	}

	token = strings.TrimSpace(token)
	return token, token != "", nil
}

func (c *CredentialStore) SaveSession(ctx context.Context, phone domain.PhoneID, token string) error {
	if strings.TrimSpace(token) == "" {
		return errors.New("save session: token is empty")
	}
	if err := c.store.Put(ctx, SessionKey(phone), token); err != nil {
		return fmt.Errorf("save session: %w", errors.Join(domain.ErrStoreIO, err))
	}
	return nil
}

func (c *CredentialStore) LoadIdentity(ctx context.Context, phone domain.PhoneID) (domain.APIIdentity, bool, error) {
	raw, err := c.store.Get(ctx, IdentityKey(phone))
	if err != nil {
		if errors.Is(err, domain.ErrSecretNotFound) {
			return domain.APIIdentity{}, false, nil
		}
		return domain.APIIdentity{}, false, fmt.Errorf("load api identity: %w", err)
	}

	identity, err := domain.ParseAPIIdentity(raw)
	if err != nil {
		return domain.APIIdentity{}, false, fmt.Errorf("load api identity: %w", err)
	}
	return identity, true, nil
}

func (c *CredentialStore) SaveIdentity(ctx context.Context, phone domain.PhoneID, identity domain.APIIdentity) error {
	if err := identity.Validate(); err != nil {
		return fmt.Errorf("save api identity: %w", err)
	}
	if err := c.store.Put(ctx, IdentityKey(phone), identity.Encode()); err != nil {
		return fmt.Errorf("save api identity: %w", errors.Join(domain.ErrStoreIO, err))
	}
	return nil
}

// Account loads everything stored for phone. Missing entries leave the
// corresponding fields zero.
func (c *CredentialStore) Account(ctx context.Context, phone domain.PhoneID) (domain.Account, error) {
	token, _, err := c.LoadSession(ctx, phone)
	if err != nil {
		return domain.Account{}, err
	}

	identity, _, err := c.LoadIdentity(ctx, phone)
	if err != nil {
		return domain.Account{}, err
	}

	return domain.Account{Phone: phone, Identity: identity, SessionToken: token}, nil
}
