package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"duskline/internal/domain"
	"duskline/internal/relayserver"
	"duskline/internal/services/identity"
	"duskline/internal/services/prekey"
	"duskline/internal/store"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	home := flag.String("home", "", "relay state directory (default ~/.duskline-relay)")
	passphrase := flag.String("passphrase", "", "passphrase protecting the relay's own identity at rest")
	flag.Parse()

	if *passphrase == "" {
		log.Fatal("relay: --passphrase required")
	}
	if *home == "" {
		dir, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("relay: %v", err)
		}
		*home = filepath.Join(dir, ".duskline-relay")
	}
	if err := os.MkdirAll(*home, 0o700); err != nil {
		log.Fatalf("relay: %v", err)
	}

	idStore := store.NewIdentityFileStore(*home)
	pkStore := store.NewPrekeyFileStore(*home)
	idSvc := identity.New(idStore)
	pkSvc := prekey.New(idStore, pkStore)

	id, err := loadOrCreateIdentity(idSvc, *passphrase)
	if err != nil {
		log.Fatalf("relay: identity: %v", err)
	}
	spkID, spkPub, spkSig, err := loadOrCreateSignedPreKey(pkSvc, pkStore, *passphrase)
	if err != nil {
		log.Fatalf("relay: signed pre-key: %v", err)
	}

	srv := relayserver.NewServer(id, spkID, spkPub, spkSig)
	fmt.Printf("relay fingerprint: %s\n", srv.Fingerprint())

	mux := http.NewServeMux()
	mux.Handle("/ws", srv)
	mux.HandleFunc("/bundle", srv.ServeBundle)

	log.Printf("relay listening on %s", *addr)
	log.Fatal(http.ListenAndServe(*addr, mux))
}

// loadOrCreateIdentity unlocks the relay's persisted identity, or
// generates a fresh one on first start. Any other load failure (a wrong
// passphrase, a corrupted file) is returned rather than overwriting the
// existing identity.
func loadOrCreateIdentity(idSvc domain.IdentityService, passphrase string) (domain.Identity, error) {
	id, err := idSvc.LoadIdentity(passphrase)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return domain.Identity{}, err
	}
	id, _, err = idSvc.GenerateIdentity(passphrase)
	return id, err
}

// loadOrCreateSignedPreKey unlocks the relay's current signed pre-key,
// or mints one (with an empty one-time pre-key pool — the relay never
// plays responder in any handshake, so it never needs any) on first
// start. Only the public half and its signature leave the store.
func loadOrCreateSignedPreKey(
	pkSvc domain.PreKeyService,
	pkStore domain.PreKeyStore,
	passphrase string,
) (domain.SignedPreKeyID, domain.X25519Public, []byte, error) {
	spkID, ok, err := pkStore.CurrentSignedPreKeyID()
	if err != nil {
		return "", domain.X25519Public{}, nil, err
	}
	if !ok {
		if _, _, err := pkSvc.GenerateAndStorePreKeys(passphrase, 0); err != nil {
			return "", domain.X25519Public{}, nil, err
		}
		spkID, ok, err = pkStore.CurrentSignedPreKeyID()
		if err != nil || !ok {
			return "", domain.X25519Public{}, nil, fmt.Errorf("relay: signed pre-key generation did not take")
		}
	}

	priv, pub, sig, found, err := pkStore.LoadSignedPreKey(spkID)
	if err != nil {
		return "", domain.X25519Public{}, nil, err
	}
	if !found {
		return "", domain.X25519Public{}, nil, fmt.Errorf("relay: signed pre-key %q vanished", spkID)
	}
	priv.Zero()
	return spkID, pub, sig, nil
}
