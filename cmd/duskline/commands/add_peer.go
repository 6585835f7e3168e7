package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"duskline/internal/domain"
)

var addPeerUsername string

func addPeerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-peer <peer>",
		Short: "Run X3DH against a peer's bundle and seed a ratchet session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			if addPeerUsername == "" {
				return fmt.Errorf("--username required")
			}
			peer := domain.Username(args[0])

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			mgr, err := appCtx.Connect(ctx, passphrase, appCtx.PinnedRelayKey(domain.Username(addPeerUsername)))
			if err != nil {
				return err
			}
			defer mgr.Close()
			go mgr.Run(ctx)
			mgr.SetUsername(domain.Username(addPeerUsername))

			if err := mgr.AddPeer(ctx, peer); err != nil {
				return err
			}
			fmt.Printf("Session established with %s\n", peer)
			return nil
		},
	}
	cmd.Flags().StringVar(&addPeerUsername, "username", "", "your registered username")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}
