package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"duskline/internal/domain"
	"duskline/internal/wire"
)

// oneTimePreKeyBatch is how many one-time pre-keys register generates
// per call, per the registration-only refill policy: the pool is never
// topped up outside this command.
const oneTimePreKeyBatch = 20

func registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <username>",
		Short: "Generate pre-keys and reserve a username with the relay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			username := args[0]

			spkPub, _, err := appCtx.Wire.Prekeys.GenerateAndStorePreKeys(passphrase, oneTimePreKeyBatch)
			if err != nil {
				return err
			}
			_ = spkPub

			id, err := appCtx.Wire.IDs.LoadIdentity(passphrase)
			if err != nil {
				return err
			}
			spkID, ok, err := currentSignedPreKeyID(appCtx.Wire.PreKeys)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("register: no signed pre-key after generation")
			}
			_, pub, sig, found, err := appCtx.Wire.PreKeys.LoadSignedPreKey(spkID)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("register: signed pre-key %q vanished", spkID)
			}
			otpks, err := appCtx.Wire.PreKeys.ListOneTimePreKeyPublics()
			if err != nil {
				return err
			}
			otpkStrings := make([]string, len(otpks))
			for i, otpk := range otpks {
				otpkStrings[i] = wire.B64(otpk.Pub[:])
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			mgr, err := appCtx.Connect(ctx, passphrase, appCtx.PinnedRelayKey(domain.Username(username)))
			if err != nil {
				return err
			}
			defer mgr.Close()
			go mgr.Run(ctx)
			mgr.SetUsername(domain.Username(username))

			req := wire.RegisterRequest{
				Username:              username,
				IdentityKey:           wire.B64(id.XPub[:]),
				SigningKey:            wire.B64(id.EdPub[:]),
				SignedPreKeyID:        spkID.String(),
				SignedPreKey:          wire.B64(pub[:]),
				SignedPreKeySignature: wire.B64(sig),
				OneTimePreKeys:        otpkStrings,
			}
			resp, err := mgr.Call(ctx, wire.MsgRegister, req)
			if err != nil {
				return err
			}
			if resp.Status != wire.StatusOK {
				return fmt.Errorf("register: relay refused: %s", resp.Status)
			}

			profile := domain.AccountProfile{
				ServerURL:        relayURL,
				Username:         domain.Username(username),
				RelayIdentityKey: mgr.RelayIdentityKey(),
				RelayFingerprint: mgr.RelayFingerprint(),
			}
			if err := appCtx.Wire.Accounts.SaveAccountProfile(profile); err != nil {
				return err
			}

			fmt.Printf("Registered %q with relay.\nRelay fingerprint: %s\n", username, mgr.RelayFingerprint())
			return nil
		},
	}
}

// currentSignedPreKeyID reads the pre-key store's notion of "current"
// directly; register then loads that signed pre-key and the whole
// one-time pre-key pool from the store itself, since
// domain.PreKeyService's LoadBundle embeds at most one one-time pre-key.
func currentSignedPreKeyID(ps domain.PreKeyStore) (domain.SignedPreKeyID, bool, error) {
	return ps.CurrentSignedPreKeyID()
}
