package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bnema/telegram-query-cli/internal/domain"
	"github.com/bnema/telegram-query-cli/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	goodPhone = "+15550001111"
	badPhone  = "+15550002222"
)

func TestVersionPrintsVersion(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", stdout)
}

func TestBotsListsRegistry(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeFixture(home, "bot.txt", "@alpha_bot|https://example.test/hook\n\n@beta_bot\nnot-a-bot\n"))

	stdout, _, err := executeCLI(t, home, "bots")
	require.NoError(t, err)
	assert.Equal(t, "@alpha_bot\thttps://example.test/hook\n@beta_bot\t-\n", stdout)
}

func TestBotsMissingRegistryPrintsNoBots(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), "bots")
	require.NoError(t, err)
	assert.Contains(t, stdout, "no bots found")
}

func TestAccountsShowsStoredSessions(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeFixture(home, "phone.txt", goodPhone+"\n"+badPhone+"\n"))
	require.NoError(t, writeFixture(home, filepath.Join("sessions", "15550001111", "session.txt"), "stored-token\n"))

	stdout, _, err := executeCLI(t, home, "accounts")
	require.NoError(t, err)
	assert.Contains(t, stdout, goodPhone+"\tsession stored")
	assert.Contains(t, stdout, badPhone+"\tno session")
}

func TestPollWithoutAccountsFails(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home, ""))

	_, _, err := executeCLIWith(t, home, newFakeTelegram(), "poll")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNoAccounts))
}

func TestPollStoresQueryAndSkipsFailedAccount(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home, ""))
	require.NoError(t, writeFixture(home, "phone.txt", goodPhone+"\n"+badPhone+"\n"))
	require.NoError(t, writeFixture(home, "bot.txt", "@alpha_bot\n"))

	telegram := newFakeTelegram()
	telegram.failLogin[badPhone] = errors.New("network unreachable")

	stdout, stderr, err := executeCLIWith(t, home, telegram, "poll")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "polled 1, found 1, missed 0, failed 0")
	assert.Contains(t, stderr, "login failed")

	data, err := os.ReadFile(filepath.Join(home, "queries", "alpha_bot_query.txt"))
	require.NoError(t, err)
	assert.Equal(t, "query_id=ABC123\n", string(data))

	stdout, _, err = executeCLI(t, home, "query", "show", "--bot", "@alpha_bot")
	require.NoError(t, err)
	assert.Equal(t, "query_id=ABC123\n", stdout)

	stdout, _, err = executeCLI(t, home, "accounts")
	require.NoError(t, err)
	assert.Contains(t, stdout, goodPhone+"\tsession stored")
	assert.Contains(t, stdout, badPhone+"\tno session")

	stdout, _, err = executeCLI(t, home, "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "accounts: 2")
	assert.Contains(t, stdout, "@alpha_bot: query_id=ABC123")
	assert.Contains(t, stdout, "login: failed")
}

func TestPollResumesStoredSessionWithoutChallenge(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home, ""))
	require.NoError(t, writeFixture(home, "phone.txt", goodPhone+"\n"))
	require.NoError(t, writeFixture(home, "bot.txt", "@alpha_bot\n"))

	telegram := newFakeTelegram()
	_, _, err := executeCLIWith(t, home, telegram, "login")
	require.NoError(t, err)
	require.Equal(t, 1, telegram.challenges())

	_, _, err = executeCLIWith(t, home, telegram, "poll")
	require.NoError(t, err)
	assert.Equal(t, 1, telegram.challenges())
	assert.Equal(t, 1, telegram.resumes())
}

func TestPollDeliversQueryToEndpoint(t *testing.T) {
	var mu sync.Mutex
	var payloads []domain.Delivery
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload domain.Delivery
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		mu.Lock()
		payloads = append(payloads, payload)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home, ""))
	require.NoError(t, writeFixture(home, "phone.txt", goodPhone+"\n"))
	require.NoError(t, writeFixture(home, "bot.txt", "@alpha_bot|"+server.URL+"\n"))

	_, stderr, err := executeCLIWith(t, home, newFakeTelegram(), "poll")
	require.NoError(t, err, "stderr: %s", stderr)

	mu.Lock()
	require.Len(t, payloads, 1)
	assert.Equal(t, "query_id=ABC123", payloads[0].Query)
	assert.Equal(t, "@alpha_bot", payloads[0].Bot)
	assert.Equal(t, goodPhone, payloads[0].Account)
	mu.Unlock()

	stdout, _, err := executeCLI(t, home, "status", "--json")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(stdout)))
	assert.Contains(t, stdout, "\"Delivery\": \"ok\"")
}

func TestFetchShowsSpinnerAndPrintsQuery(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home, ""))
	require.NoError(t, writeFixture(home, "phone.txt", goodPhone+"\n"))

	telegram := newFakeTelegram()
	telegram.fetchDelay = 200 * time.Millisecond

	stdout, stderr, err := executeCLIWith(t, home, telegram, "fetch", "--account", goodPhone, "--bot", "@alpha_bot")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Fetching query from @alpha_bot")
	assert.Contains(t, stdout, "@alpha_bot: query_id=ABC123")
	assert.Contains(t, stdout, "store: saved")

	spinnerAt := strings.LastIndex(stderr, "Fetching query from @alpha_bot")
	savedAt := strings.Index(stderr, "query saved")
	require.GreaterOrEqual(t, savedAt, 0)
	assert.Greater(t, savedAt, spinnerAt, "log lines must follow the spinner output")
}

func TestFetchRequiresAccountAndBot(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "fetch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag(s)")
}

func TestQueryShowHistoryListsNewestFirst(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeFixture(home, filepath.Join("queries", "alpha_bot_query.txt"), "query_id=NEW\nquery_id=OLD\n"))

	stdout, _, err := executeCLI(t, home, "query", "show", "--bot", "@alpha_bot", "--history")
	require.NoError(t, err)
	assert.Equal(t, "query_id=NEW\nquery_id=OLD\n", stdout)
}

func TestQueryShowHistoryRejectsOverwritePolicy(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home, "[store]\npolicy = \"overwrite\"\n"))

	_, _, err := executeCLI(t, home, "query", "show", "--bot", "@alpha_bot", "--history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires the history store policy")
}

func TestQueryShowOverwritePolicyRequiresAccount(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home, "[store]\npolicy = \"overwrite\"\n"))

	_, _, err := executeCLI(t, home, "query", "show", "--bot", "@alpha_bot")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--account is required")
}

func TestInvalidStorePolicyIsReported(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home, "[store]\npolicy = \"sometimes\"\n"))

	_, _, err := executeCLI(t, home, "bots")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store policy")
}

func TestLoginSingleAccountPersistsSession(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home, ""))
	require.NoError(t, writeFixture(home, "phone.txt", goodPhone+"\n"))

	stdout, _, err := executeCLIWith(t, home, newFakeTelegram(), "login", "--account", goodPhone)
	require.NoError(t, err)
	assert.Contains(t, stdout, "logged in "+goodPhone)

	data, err := os.ReadFile(filepath.Join(home, "sessions", "15550001111", "session.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "token-"+goodPhone)

	stdout, _, err = executeCLI(t, home, "accounts")
	require.NoError(t, err)
	assert.Contains(t, stdout, goodPhone+"\tsession stored\tapi id 12345")
}

func executeCLI(t *testing.T, home string, args ...string) (string, string, error) {
	t.Helper()
	return executeCLIWith(t, home, nil, args...)
}

func executeCLIWith(t *testing.T, home string, messaging ports.MessagingClient, args ...string) (string, string, error) {
	t.Helper()

	root := newRootCmdWith(wireOptions{
		messaging: messaging,
		prompter:  fakePrompter{code: "12345"},
	})
	stdout := &bytes.Buffer{}
	stderr := &lockedBuffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(append([]string{"--home", home}, args...))

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFixture(home, name, content string) error {
	path := filepath.Join(home, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o600)
}

func writeConfigFixture(home, extra string) error {
	config := `[telegram]
api_id = 12345
api_hash = "0123456789abcdef"

[poll]
settle = "0s"
pacing = "0s"
login_delay = "0s"

` + extra

	return writeFixture(home, "tq.toml", config)
}

// lockedBuffer is shared by the logger and the spinner renderer.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fakePrompter struct {
	code string
}

func (f fakePrompter) RequestChallengeCode(context.Context, domain.PhoneID) (string, error) {
	return f.code, nil
}

func (f fakePrompter) RequestIdentity(context.Context, domain.PhoneID) (domain.APIIdentity, error) {
	return domain.APIIdentity{}, errors.New("identity prompt not expected")
}

type fakeTelegram struct {
	mu         sync.Mutex
	failLogin  map[string]error
	fetchDelay time.Duration
	logins     int
	resumed    int
}

func newFakeTelegram() *fakeTelegram {
	return &fakeTelegram{failLogin: map[string]error{}}
}

func (f *fakeTelegram) challenges() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins
}

func (f *fakeTelegram) resumes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resumed
}

func (f *fakeTelegram) Resume(_ context.Context, _ domain.APIIdentity, token string) (ports.Session, error) {
	phone, ok := strings.CutPrefix(token, "token-")
	if !ok {
		return nil, domain.ErrSessionRejected
	}

	f.mu.Lock()
	f.resumed++
	f.mu.Unlock()

	return &fakeBotSession{phone: phone, fetchDelay: f.fetchDelay}, nil
}

func (f *fakeTelegram) Login(ctx context.Context, _ domain.APIIdentity, phone domain.PhoneID, challenge ports.ChallengeFunc) (ports.Session, error) {
	if err := f.failLogin[string(phone)]; err != nil {
		return nil, err
	}

	code, err := challenge(ctx)
	if err != nil {
		return nil, err
	}
	if code != "12345" {
		return nil, domain.ErrChallengeRejected
	}

	f.mu.Lock()
	f.logins++
	f.mu.Unlock()

	return &fakeBotSession{phone: string(phone), fetchDelay: f.fetchDelay}, nil
}

// fakeBotSession answers every probe with a query_id reply from the bot.
type fakeBotSession struct {
	phone      string
	fetchDelay time.Duration
}

func (s *fakeBotSession) ResolveEntity(_ context.Context, handle domain.BotHandle) (domain.Entity, error) {
	return domain.Entity{ID: "id-" + handle.Username(), Handle: handle}, nil
}

func (s *fakeBotSession) SendMessage(context.Context, domain.Entity, string) error {
	return nil
}

func (s *fakeBotSession) FetchRecentMessages(ctx context.Context, entity domain.Entity, _ int) ([]domain.Message, error) {
	if s.fetchDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.fetchDelay):
		}
	}

	return []domain.Message{
		{SenderID: entity.ID, Body: "Open the app: https://t.me/app#tgWebAppData=query_id=ABC123&tgWebAppVersion=7"},
		{SenderID: "someone-else", Body: "query_id=NOPE"},
	}, nil
}

func (s *fakeBotSession) Serialize(context.Context) (string, error) {
	return fmt.Sprintf("token-%s", s.phone), nil
}

func (s *fakeBotSession) Close() error {
	return nil
}
