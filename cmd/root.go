package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

const homeEnv = "TQ_HOME"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(wireOptions{})
}

func newRootCmdWith(opts wireOptions) *cobra.Command {
	var home string
	app := &app{}

	rootCmd := &cobra.Command{
		Use:           "tq",
		Short:         "Telegram Query CLI (tq): harvest bot query tokens across accounts",
		Long:          "tq logs into several Telegram user accounts, probes the bots listed in the registry, extracts the query token from their replies, stores it and forwards it to the bot endpoint.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.wire(cmd, home, opts)
		},
	}

	rootCmd.PersistentFlags().StringVar(&home, "home", envOrDefault(homeEnv, "."), "Working directory holding tq.toml, phone.txt, bot.txt, sessions and queries")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(app),
		newLoginCmd(app),
		newPollCmd(app),
		newFetchCmd(app),
		newBotsCmd(app),
		newAccountsCmd(app),
		newStatusCmd(app),
		newQueryCmd(app),
	)

	return rootCmd
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
