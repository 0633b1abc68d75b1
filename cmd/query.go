package cmd

import (
	"fmt"

	"github.com/bnema/telegram-query-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newQueryCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Inspect stored query tokens",
	}

	cmd.AddCommand(newQueryShowCmd(app))

	return cmd
}

func newQueryShowCmd(app *app) *cobra.Command {
	var phone string
	var handle string
	var history bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the newest stored query for a bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if history {
				tokens, err := app.status.History(cmd.Context(), domain.BotHandle(handle))
				if err != nil {
					return err
				}
				if len(tokens) == 0 {
					return fmt.Errorf("no query stored for %s", handle)
				}
				for _, token := range tokens {
					if _, err := fmt.Fprintln(cmd.OutOrStdout(), token); err != nil {
						return err
					}
				}
				return nil
			}

			token, ok, err := app.status.Query(cmd.Context(), domain.PhoneID(phone), domain.BotHandle(handle))
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no query stored for %s", handle)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&handle, "bot", "", "Bot handle, for example @example_bot")
	cmd.Flags().StringVar(&phone, "account", "", "Phone number (required with the overwrite store policy)")
	cmd.Flags().BoolVar(&history, "history", false, "Print every stored query, newest first (history store policy)")
	_ = cmd.MarkFlagRequired("bot")

	return cmd
}
