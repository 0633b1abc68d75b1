package main

import (
	"os"

	"github.com/bnema/telegram-query-cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
