package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/bnema/telegram-query-cli/internal/application"
	"github.com/bnema/telegram-query-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newFetchCmd(app *app) *cobra.Command {
	var phone string
	var handle string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Probe a single bot from one account and store its query",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			bot, err := lookupBot(ctx, app, domain.BotHandle(handle))
			if err != nil {
				return err
			}

			session, err := app.login.LoginOne(ctx, domain.PhoneID(phone))
			if err != nil {
				if interrupted(ctx, err) {
					return nil
				}
				return err
			}
			defer func() { _ = session.Close() }()

			active := application.ActiveSession{Phone: domain.PhoneID(phone), Session: session}

			var outcome application.BotOutcome
			fetch := func(ctx context.Context) error {
				var err error
				outcome, err = app.poller.PollBot(ctx, active, bot)
				return err
			}

			// Log lines written while the spinner owns stderr are replayed
			// once it has cleared its line.
			held := &heldOutput{}
			app.logger.SetOutput(held)
			label := fmt.Sprintf("Fetching query from %s...", bot.Handle)
			err = runFetchSpinner(ctx, cmd.ErrOrStderr(), label, fetch)
			app.logger.SetOutput(cmd.ErrOrStderr())
			if _, werr := held.WriteTo(cmd.ErrOrStderr()); werr != nil && err == nil {
				err = werr
			}
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}

			return writeOutcome(cmd, bot, outcome)
		},
	}

	cmd.Flags().StringVar(&phone, "account", "", "Phone number of the account to poll from")
	cmd.Flags().StringVar(&handle, "bot", "", "Bot handle, for example @example_bot")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("bot")

	return cmd
}

// heldOutput buffers writes until WriteTo drains them.
type heldOutput struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (h *heldOutput) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buf.Write(p)
}

func (h *heldOutput) WriteTo(w io.Writer) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buf.WriteTo(w)
}

// lookupBot returns the registry entry for handle, or an entry without an
// endpoint when the bot is not registered.
func lookupBot(ctx context.Context, app *app, handle domain.BotHandle) (domain.BotEntry, error) {
	if !handle.Valid() {
		return domain.BotEntry{}, fmt.Errorf("invalid bot handle %q", handle)
	}

	bots, err := app.poller.Bots(ctx)
	if err != nil {
		return domain.BotEntry{}, err
	}
	for _, bot := range bots {
		if bot.Handle == handle {
			return bot, nil
		}
	}

	return domain.BotEntry{Handle: handle}, nil
}

func writeOutcome(cmd *cobra.Command, bot domain.BotEntry, outcome application.BotOutcome) error {
	out := cmd.OutOrStdout()
	if !outcome.Found {
		_, err := fmt.Fprintf(out, "%s: no query found\n", bot.Handle)
		return err
	}

	if _, err := fmt.Fprintf(out, "%s: %s\n", bot.Handle, outcome.Token); err != nil {
		return err
	}

	saved := "unchanged"
	if outcome.Saved.Changed {
		saved = "saved"
	}
	if _, err := fmt.Fprintf(out, "store: %s\n", saved); err != nil {
		return err
	}

	if outcome.Delivery != domain.DeliveryStatusNone {
		_, err := fmt.Fprintf(out, "delivery: %s\n", outcome.Delivery)
		return err
	}
	return nil
}
