package main

import (
	"os"

	"duskline/cmd/duskline/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
