package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/bnema/telegram-query-cli/internal/application"
	"github.com/spf13/cobra"
)

func newRunCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Log in every account and poll all bots on a fixed interval",
		Long:  "run logs in every account from the account list, runs a polling cycle immediately and then one cycle per poll.interval until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sessions, err := app.login.LoginAll(ctx)
			if err != nil {
				if interrupted(ctx, err) {
					return nil
				}
				return err
			}
			defer application.CloseSessions(sessions)

			scheduler := application.NewScheduler(app.cfg.Poll.Interval, func(ctx context.Context) error {
				_, err := app.poller.RunCycle(ctx, sessions)
				return err
			}, app.logger)

			if err := scheduler.Run(ctx); err != nil && !interrupted(ctx, err) {
				return err
			}

			app.logger.Info("shutting down")
			return nil
		},
	}
}

// interrupted reports whether err is the result of ctx being cancelled by a signal.
func interrupted(ctx context.Context, err error) bool {
	return ctx.Err() != nil && errors.Is(err, context.Canceled)
}
