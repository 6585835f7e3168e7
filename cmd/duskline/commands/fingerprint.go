package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"duskline/internal/domain"
)

var fingerprintUsername string

func fingerprintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the local identity's fingerprint and any pinned relay fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			fp, err := appCtx.Wire.IDs.FingerprintIdentity(passphrase)
			if err != nil {
				return err
			}
			fmt.Printf("Fingerprint: %s\n", fp)

			if fingerprintUsername != "" && relayURL != "" {
				profile, ok, err := appCtx.Wire.Accounts.LoadAccountProfile(relayURL, domain.Username(fingerprintUsername))
				if err != nil {
					return err
				}
				if ok {
					fmt.Printf("Pinned relay fingerprint: %s\n", profile.RelayFingerprint)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&fingerprintUsername, "username", "", "registered username whose pinned relay to show")
	return cmd
}
