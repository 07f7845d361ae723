package main

import (
	"context"
	"log"

	"vaultmesh/internal/config"
	"vaultmesh/internal/infra/cas"
	httpinfra "vaultmesh/internal/infra/http"
	"vaultmesh/internal/infra/identity"
	"vaultmesh/internal/infra/index"
	"vaultmesh/internal/infra/policyopa"
	"vaultmesh/internal/usecase"
)

func main() {
	cfg := config.FromEnv()

	dir, err := cfg.ResolveLedgerDir()
	if err != nil {
		log.Fatalf("resolve ledger dir: %v", err)
	}
	store, err := cas.Open(dir)
	if err != nil {
		log.Fatalf("open ledger: %v", err)
	}

	ledger := usecase.NewLedger(store)
	ledger.Identity = identity.Options{
		OverrideDID: cfg.ActorDID,
		WebDomain:   cfg.DIDWebDomain,
		OIDCToken:   cfg.OIDCToken,
		KeyPath:     cfg.ActorKeyPath,
	}
	if cfg.PolicyBundle != "" {
		engine, err := policyopa.NewEngineFromBundlePath(context.Background(), cfg.PolicyBundle)
		if err != nil {
			log.Fatalf("load policy bundle: %v", err)
		}
		ledger.Policy = engine
	} else {
		log.Printf("VM_POLICY_BUNDLE not set; policy gate disabled.")
	}
	idx, err := index.NewStore(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("init ledger index: %v", err)
	}
	ledger.Index = idx

	srv := httpinfra.NewServer(cfg, ledger)
	log.Printf("meshd listening on %s (ledger %s)", cfg.HTTPAddr, dir)
	if err := srv.Run(); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
