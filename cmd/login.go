package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/bnema/telegram-query-cli/internal/application"
	"github.com/bnema/telegram-query-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newLoginCmd(app *app) *cobra.Command {
	var phone string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Establish and store sessions without polling",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			if phone != "" {
				session, err := app.login.LoginOne(ctx, domain.PhoneID(phone))
				if err != nil {
					return err
				}
				_ = session.Close()

				_, err = fmt.Fprintf(cmd.OutOrStdout(), "logged in %s\n", phone)
				return err
			}

			phones, err := app.login.Accounts(ctx)
			if err != nil {
				return err
			}

			sessions, err := app.login.LoginAll(ctx)
			if err != nil {
				return err
			}
			application.CloseSessions(sessions)

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "logged in %d of %d accounts\n", len(sessions), len(phones))
			return err
		},
	}

	cmd.Flags().StringVar(&phone, "account", "", "Phone number of a single account to log in")

	return cmd
}
