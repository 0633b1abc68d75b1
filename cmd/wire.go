package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/bnema/telegram-query-cli/internal/adapters/delivery/webhook"
	"github.com/bnema/telegram-query-cli/internal/adapters/messaging/telegram"
	"github.com/bnema/telegram-query-cli/internal/adapters/prompt/terminal"
	filequerystore "github.com/bnema/telegram-query-cli/internal/adapters/querystore/file"
	"github.com/bnema/telegram-query-cli/internal/adapters/registry/lines"
	statusadapter "github.com/bnema/telegram-query-cli/internal/adapters/render/status"
	tomlrepo "github.com/bnema/telegram-query-cli/internal/adapters/repo/toml"
	chainstore "github.com/bnema/telegram-query-cli/internal/adapters/secrets/chain"
	"github.com/bnema/telegram-query-cli/internal/application"
	"github.com/bnema/telegram-query-cli/internal/config"
	"github.com/bnema/telegram-query-cli/internal/logging"
	"github.com/bnema/telegram-query-cli/internal/ports"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// wireOptions replaces outer adapters, mostly for tests.
type wireOptions struct {
	messaging ports.MessagingClient
	prompter  prompter
	clock     ports.Clock
}

type prompter interface {
	ports.ChallengeProvider
	ports.IdentityPrompter
}

type app struct {
	cfg            config.Config
	logger         *log.Logger
	credentials    *application.CredentialStore
	login          *application.LoginService
	poller         *application.Poller
	status         *application.StatusService
	statusRenderer func([]application.AccountStatus, statusadapter.RenderOptions) (string, error)
	now            func() time.Time
}

func (a *app) wire(cmd *cobra.Command, home string, opts wireOptions) error {
	cfg, err := config.Load(viper.New(), home)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Logging)
	if err != nil {
		return fmt.Errorf("wire logger: %w", err)
	}

	secretStore, err := chainstore.Open(cfg.Credentials.Backend, cfg.Paths.Sessions)
	if err != nil {
		return fmt.Errorf("wire credential store: %w", err)
	}

	queryStore, err := filequerystore.New(cfg.Store.Policy, cfg.Paths.Queries, cfg.Store.HistoryLimit)
	if err != nil {
		return fmt.Errorf("wire query store: %w", err)
	}

	state, err := tomlrepo.NewRepository(cfg.Paths.State)
	if err != nil {
		return fmt.Errorf("wire state repository: %w", err)
	}

	clock := opts.clock
	if clock == nil {
		clock = ports.SystemClock{}
	}

	messaging := opts.messaging
	if messaging == nil {
		messaging = telegram.NewClient(telegram.Config{ConnectionRetries: cfg.Telegram.ConnectionRetries})
	}

	prompts := opts.prompter
	if prompts == nil {
		prompts = terminal.New(os.Stdin, cmd.ErrOrStderr())
	}

	defaultIdentity, _ := cfg.Telegram.Identity()
	accounts := lines.NewAccountFile(cfg.Paths.Accounts)
	credentials := application.NewCredentialStore(secretStore)

	sessions := application.NewSessionService(messaging, credentials, prompts, prompts, application.SessionServiceConfig{
		DefaultIdentity:      defaultIdentity,
		MaxChallengeAttempts: cfg.Login.MaxChallengeAttempts,
	}, logger)

	a.cfg = cfg
	a.logger = logger
	a.credentials = credentials
	a.login = application.NewLoginService(accounts, sessions, state, clock, cfg.Poll.LoginDelay, logger)
	a.poller = application.NewPoller(
		lines.NewBotFile(cfg.Paths.Bots),
		queryStore,
		webhook.Deliverer{RequestTimeout: cfg.Delivery.Timeout},
		state,
		application.NewExtractor(cfg.Poll.Window),
		clock,
		application.PollerConfig{
			Probe:  cfg.Poll.Probe,
			Settle: cfg.Poll.Settle,
			Pacing: cfg.Poll.Pacing,
		},
		logger,
	)
	a.status = application.NewStatusService(accounts, credentials, state, queryStore)
	a.statusRenderer = statusadapter.Render
	a.now = clock.Now

	return nil
}

