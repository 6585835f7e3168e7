package commands

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"duskline/internal/app"
)

var (
	home       string
	passphrase string
	relayURL   string

	appCtx *app.App
)

// Execute builds the root command and runs it.
func Execute() error {
	root := &cobra.Command{
		Use:   "duskline",
		Short: "Secure terminal chat over a relay that never sees plaintext",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".duskline")
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}

			w := app.NewWire(app.Config{Home: home, RelayURL: relayURL})
			appCtx = app.New(w, relayURL)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.duskline)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting the local identity")
	root.PersistentFlags().StringVar(&relayURL, "relay", "", "relay WebSocket URL (e.g. ws://127.0.0.1:8080/ws)")

	root.AddCommand(initCmd(), fingerprintCmd(), registerCmd(), addPeerCmd(), chatCmd())
	return root.Execute()
}
