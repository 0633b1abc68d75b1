package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAccountsCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:     "accounts",
		Aliases: []string{"account"},
		Short:   "List configured accounts and whether a session is stored",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			phones, err := app.login.Accounts(cmd.Context())
			if err != nil {
				return err
			}
			if len(phones) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "no accounts configured")
				return err
			}

			for _, phone := range phones {
				account, err := app.credentials.Account(cmd.Context(), phone)
				if err != nil {
					return err
				}

				session := "no session"
				if account.HasSession() {
					session = "session stored"
				}
				identity := "default api id"
				if !account.Identity.IsZero() {
					identity = fmt.Sprintf("api id %d", account.Identity.ID)
				}
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", phone, session, identity); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
