package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bnema/telegram-query-cli/internal/application"
	"github.com/spf13/cobra"
)

func newPollCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Log in every account and run exactly one polling cycle",
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

			report, err := app.poller.RunCycle(ctx, sessions)
			if err != nil {
				if interrupted(ctx, err) {
					return nil
				}
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "polled %d, found %d, missed %d, failed %d\n",
				report.Bots, report.Found, report.Missed, report.Failures)
			return err
		},
	}
}
