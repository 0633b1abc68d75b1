package toml

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bnema/telegram-query-cli/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositoryRoundTrip(t *testing.T) {
	t.Parallel()

	repo, err := NewRepository(filepath.Join(t.TempDir(), "state.toml"))
	require.NoError(t, err)

	now := time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC)
	first := domain.AccountState{
		Phone:       "+15550001111",
		LoginStatus: domain.LoginStatusOK,
		LastLoginAt: now,
		Bots: []domain.BotState{
			{
				Handle:      "@alpha_bot",
				Query:       "query_id=ABC123",
				FetchedAt:   now.Add(time.Minute),
				ChangedAt:   now.Add(time.Minute),
				Delivery:    domain.DeliveryStatusOK,
				DeliveredAt: now.Add(2 * time.Minute),
			},
			{Handle: "@beta_bot", Missed: true, FetchedAt: now.Add(3 * time.Minute)},
		},
	}
	second := domain.AccountState{
		Phone:       "+15550002222",
		LoginStatus: domain.LoginStatusFailed,
		LoginError:  "challenge code rejected",
		LastLoginAt: now,
	}

	require.NoError(t, repo.Save(context.Background(), first))
	require.NoError(t, repo.Save(context.Background(), second))

	got, err := repo.Get(context.Background(), first.Phone)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	states, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.AccountState{first, second}, states)
}

func TestRepositorySaveReplacesExistingAccount(t *testing.T) {
	t.Parallel()

	repo, err := NewRepository(filepath.Join(t.TempDir(), "state.toml"))
	require.NoError(t, err)

	require.NoError(t, repo.Save(context.Background(), domain.AccountState{Phone: "+1", LoginStatus: domain.LoginStatusFailed}))
	require.NoError(t, repo.Save(context.Background(), domain.AccountState{Phone: "+1", LoginStatus: domain.LoginStatusOK}))

	states, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, domain.LoginStatusOK, states[0].LoginStatus)
}

func TestRepositorySaveCreatesDirectoryAndEnforcesPermissions(t *testing.T) {
	t.Parallel()

	statePath := filepath.Join(t.TempDir(), "nested", "state.toml")
	repo, err := NewRepository(statePath)
	require.NoError(t, err)

	require.NoError(t, repo.Save(context.Background(), domain.AccountState{Phone: "+1"}))

	info, err := os.Stat(statePath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	dirInfo, err := os.Stat(filepath.Dir(statePath))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), dirInfo.Mode().Perm())
}

func TestRepositoryMissingFileBehaviors(t *testing.T) {
	t.Parallel()

	repo, err := NewRepository(filepath.Join(t.TempDir(), "state.toml"))
	require.NoError(t, err)

	states, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, states)

	_, err = repo.Get(context.Background(), "+1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAccountNotFound))
}

func TestRepositoryListMalformedTOMLReturnsError(t *testing.T) {
	t.Parallel()

	statePath := filepath.Join(t.TempDir(), "state.toml")
	require.NoError(t, os.WriteFile(statePath, []byte("[[accounts]\nphone = "), 0o600))

	repo, err := NewRepository(statePath)
	require.NoError(t, err)

	_, err = repo.List(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "decode state file")
}

func TestRepositorySaveCanceledContextReturnsContextError(t *testing.T) {
	t.Parallel()

	repo, err := NewRepository(filepath.Join(t.TempDir(), "state.toml"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = repo.Save(ctx, domain.AccountState{Phone: "+1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRepositoryConcurrentSavesAcrossInstancesPreserveAllAccounts(t *testing.T) {
	t.Parallel()

	statePath := filepath.Join(t.TempDir(), "state.toml")

	newRepo := func() *Repository {
		repo, err := NewRepository(statePath)
		require.NoError(t, err)
		return repo
	}

	repoA := newRepo()
	repoB := newRepo()

	const perRepoWrites = 50
	start := make(chan struct{})
	errCh := make(chan error, perRepoWrites*2)
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		<-start
		for i := 0; i < perRepoWrites; i++ {
			errCh <- repoA.Save(context.Background(), domain.AccountState{Phone: domain.PhoneID("+100" + strconv.Itoa(i))})
		}
	}()

	go func() {
		defer wg.Done()
		<-start
		for i := 0; i < perRepoWrites; i++ {
			errCh <- repoB.Save(context.Background(), domain.AccountState{Phone: domain.PhoneID("+200" + strconv.Itoa(i))})
		}
	}()

	close(start)
	wg.Wait()
	close(errCh)

	for err := range errCh {
		require.NoError(t, err)
	}

	states, err := repoA.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, states, perRepoWrites*2)
}

func TestRepositorySaveSerializedTOMLIncludesVersion(t *testing.T) {
	t.Parallel()

	statePath := filepath.Join(t.TempDir(), "state.toml")
	repo, err := NewRepository(statePath)
	require.NoError(t, err)

	require.NoError(t, repo.Save(context.Background(), domain.AccountState{Phone: "+1", LoginStatus: domain.LoginStatusOK}))

	data, err := os.ReadFile(statePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "version = 1")
	assert.Contains(t, string(data), "login_status")
}

func TestRepositoryFutureSchemaVersionReturnsError(t *testing.T) {
	t.Parallel()

	statePath := filepath.Join(t.TempDir(), "state.toml")
	require.NoError(t, os.WriteFile(statePath, []byte(strings.Join([]string{
		"version = 999",
		"",
		"accounts = []",
		"",
	}, "\n")), 0o600))

	repo, err := NewRepository(statePath)
	require.NoError(t, err)

	_, err = repo.List(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "unsupported state schema version")
}

func TestNewRepositoryRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := NewRepository("")
	require.Error(t, err)
}
