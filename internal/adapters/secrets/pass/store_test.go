package pass

import (
	"context"
	"errors"
	"testing"

	"github.com/bnema/telegram-query-cli/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorePutUsesPassInsertUnderPrefix(t *testing.T) {
	t.Parallel()

	called := false
	store := &Store{
		prefix: "tq/accounts",
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			called = true
			assert.Equal(t, []string{"insert", "-m", "-f", "tq/accounts/15550001111/session"}, args)
			assert.Equal(t, "1BVtsOKABu0\n", input)
			return "", "", nil
		},
	}

	err := store.Put(context.Background(), "15550001111/session.txt", "1BVtsOKABu0")
	require.NoError(t, err)
	assert.True(t, called)
}

func TestStoreGetKeepsMultilineValues(t *testing.T) {
	t.Parallel()

	store := &Store{
		prefix: "tq/accounts",
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			assert.Equal(t, []string{"show", "tq/accounts/15550001111/api"}, args)
			assert.Empty(t, input)
			return "12345\nabcdef\n", "", nil
		},
	}

	value, err := store.Get(context.Background(), "15550001111/api.txt")
	require.NoError(t, err)
	assert.Equal(t, "12345\nabcdef", value)
}

func TestStoreGetMapsMissingEntryToSecretNotFound(t *testing.T) {
	t.Parallel()

	store := &Store{
		prefix: "tq/accounts",
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			return "", "Error: tq/accounts/1/session is not in the password store.", errors.New("exit status 1")
		},
	}

	_, err := store.Get(context.Background(), "1/session.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSecretNotFound)
}

func TestStoreGetReturnsClearError(t *testing.T) {
	t.Parallel()

	store := &Store{
		prefix: "tq/accounts",
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			return "", "gpg: decryption failed", errors.New("exit status 2")
		},
	}

	_, err := store.Get(context.Background(), "1/session.txt")
	require.Error(t, err)
	assert.ErrorContains(t, err, "pass get")
	assert.ErrorContains(t, err, "tq/accounts/1/session")
	assert.ErrorContains(t, err, "gpg: decryption failed")
	assert.NotErrorIs(t, err, domain.ErrSecretNotFound)
}

func TestNewStoreDefaultsPrefix(t *testing.T) {
	t.Parallel()

	store := NewStore("")
	assert.Equal(t, "tq/accounts/1/session", store.entry("1/session.txt"))
}
