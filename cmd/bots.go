package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBotsCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "bots",
		Short: "List bots from the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bots, err := app.poller.Bots(cmd.Context())
			if err != nil {
				return err
			}
			if len(bots) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "no bots found")
				return err
			}

			for _, bot := range bots {
				endpoint := bot.Endpoint
				if !bot.HasEndpoint() {
					endpoint = "-"
				}
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", bot.Handle, endpoint); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
