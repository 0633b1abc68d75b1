package lines

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bnema/telegram-query-cli/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "list.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestAccountsSkipsBlankLinesAndKeepsOrder(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "+15550001111\n\n  +15550002222  \r\n+15550001111\n")

	phones, err := NewAccountFile(path).Accounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.PhoneID{"+15550001111", "+15550002222"}, phones)
}

func TestAccountsMissingFileIsConfigMissing(t *testing.T) {
	t.Parallel()

	_, err := NewAccountFile(filepath.Join(t.TempDir(), "phone.txt")).Accounts(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfigMissing)
}

func TestBotsParsesHandlesAndOptionalEndpoints(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "@alpha_bot|https://hooks.example/alpha\n@beta_bot\nbroken_bot|https://x\n @gamma_bot | \n@\n|https://orphan\n")

	bots, err := NewBotFile(path).Bots(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.BotEntry{
		{Handle: "@alpha_bot", Endpoint: "https://hooks.example/alpha"},
		{Handle: "@beta_bot"},
		{Handle: "@gamma_bot"},
	}, bots)
}

func TestBotsEmptyFileYieldsNoBots(t *testing.T) {
	t.Parallel()

	bots, err := NewBotFile(writeFile(t, "\n\n")).Bots(context.Background())
	require.NoError(t, err)
	assert.Empty(t, bots)
}

func TestBotsRereadPicksUpChanges(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "@alpha_bot\n@beta_bot\n")
	registry := NewBotFile(path)

	bots, err := registry.Bots(context.Background())
	require.NoError(t, err)
	require.Len(t, bots, 2)

	require.NoError(t, os.WriteFile(path, []byte("@beta_bot\n@delta_bot|https://hooks.example/delta\n"), 0o600))

	bots, err = registry.Bots(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.BotEntry{
		{Handle: "@beta_bot"},
		{Handle: "@delta_bot", Endpoint: "https://hooks.example/delta"},
	}, bots)
}
