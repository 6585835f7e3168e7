package app

import (
	"duskline/internal/domain"
	"duskline/internal/services/identity"
	"duskline/internal/services/prekey"
	"duskline/internal/store"
)

// Wire bundles all stores and services for the CLI.
type Wire struct {
	Identity domain.IdentityStore
	PreKeys  domain.PreKeyStore
	Accounts domain.AccountStore

	IDs     domain.IdentityService
	Prekeys domain.PreKeyService
}

// NewWire constructs the dependency graph from cfg. Every store is
// file-based and rooted at cfg.Home.
func NewWire(cfg Config) *Wire {
	identityStore := store.NewIdentityFileStore(cfg.Home)
	prekeyStore := store.NewPrekeyFileStore(cfg.Home)
	accountStore := store.NewAccountFileStore(cfg.Home)

	idSvc := identity.New(identityStore)
	pkSvc := prekey.New(identityStore, prekeyStore)

	return &Wire{
		Identity: identityStore,
		PreKeys:  prekeyStore,
		Accounts: accountStore,
		IDs:      idSvc,
		Prekeys:  pkSvc,
	}
}
