package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"duskline/internal/domain"
)

var chatUsername string

func chatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat <peer>",
		Short: "Open a persistent chat session with a peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			if chatUsername == "" {
				return fmt.Errorf("--username required")
			}
			peer := domain.Username(args[0])

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			mgr, err := appCtx.Connect(ctx, passphrase, appCtx.PinnedRelayKey(domain.Username(chatUsername)))
			if err != nil {
				return err
			}
			defer mgr.Close()
			mgr.SetUsername(domain.Username(chatUsername))

			runErr := make(chan error, 1)
			go func() { runErr <- mgr.Run(ctx) }()

			if err := mgr.AddPeer(ctx, peer); err != nil {
				return fmt.Errorf("chat: establishing session with %q: %w", peer, err)
			}

			go func() {
				for msg := range mgr.Events() {
					fmt.Printf("\r%s: %s\n> ", msg.From, string(msg.Plaintext))
				}
			}()

			fmt.Printf("Chatting with %s. Type a line and press enter to send; Ctrl-D to quit.\n", peer)
			scanner := bufio.NewScanner(os.Stdin)
			fmt.Print("> ")
			for scanner.Scan() {
				line := scanner.Text()
				if line != "" {
					if err := mgr.SendMessage(ctx, peer, []byte(line)); err != nil {
						fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
					}
				}
				fmt.Print("> ")
			}

			cancel()
			<-runErr
			return scanner.Err()
		},
	}
	cmd.Flags().StringVar(&chatUsername, "username", "", "your registered username")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}
