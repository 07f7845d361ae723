package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"vaultmesh/internal/config"
	"vaultmesh/internal/domain"
	httpinfra "vaultmesh/internal/infra/http"
	"vaultmesh/internal/infra/identity"
)

func runSeal(args []string) int {
	fs := flag.NewFlagSet("seal", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var date string
	fs.StringVar(&date, "date", "", "day to seal (YYYY-MM-DD, default today)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}

	ledger, err := openLedger(config.FromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "open ledger: %v\n", err)
		return 1
	}
	daily, err := ledger.Seal(context.Background(), date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seal: %v\n", err)
		return 1
	}
	fmt.Printf("%s %d %s\n", daily.Date, daily.LeafCount, daily.Root)
	return 0
}

func runAnchor(args []string) int {
	fs := flag.NewFlagSet("anchor", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var inPath string
	var outPath string
	fs.StringVar(&inPath, "in", "", "receipt path")
	fs.StringVar(&outPath, "out", "", "output path (default overwrite input)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" {
		fmt.Fprintln(os.Stderr, "anchor requires --in")
		return 1
	}

	ledger, err := openLedger(config.FromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "open ledger: %v\n", err)
		return 1
	}
	var receipt domain.Receipt
	if err := readJSON(inPath, &receipt); err != nil {
		fmt.Fprintf(os.Stderr, "read receipt: %v\n", err)
		return 1
	}
	if err := ledger.Anchor(&receipt); err != nil {
		fmt.Fprintf(os.Stderr, "anchor: %v\n", err)
		return 1
	}
	if outPath == "" {
		outPath = inPath
	}
	if err := writeJSON(outPath, &receipt); err != nil {
		fmt.Fprintf(os.Stderr, "write receipt: %v\n", err)
		return 1
	}
	fmt.Printf("anchored under %s (%s)\n", receipt.Merkle.Root, receipt.Merkle.Date)
	return 0
}

func runVerify(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var inPath string
	var provPath string
	var strict bool
	fs.StringVar(&inPath, "in", "", "receipt path")
	fs.StringVar(&provPath, "prov", "", "provenance path (bundle check)")
	fs.BoolVar(&strict, "strict", false, "require leaf recomputation and sealed-root inclusion")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" {
		fmt.Fprintln(os.Stderr, "verify requires --in")
		return 1
	}

	ledger, err := openLedger(config.FromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "open ledger: %v\n", err)
		return 1
	}
	raw, err := os.ReadFile(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read receipt: %v\n", err)
		return 1
	}

	ctx := context.Background()
	var warnings []domain.Warning
	if provPath != "" {
		var bundle domain.Bundle
		if err := json.Unmarshal(raw, &bundle.Receipt); err != nil {
			fmt.Fprintf(os.Stderr, "decode receipt: %v\n", err)
			return 1
		}
		if err := readJSON(provPath, &bundle.Provenance); err != nil {
			fmt.Fprintf(os.Stderr, "read provenance: %v\n", err)
			return 1
		}
		result, err := ledger.VerifyBundle(ctx, bundle, strict)
		if err != nil {
			fmt.Fprintf(os.Stderr, "verify: %v\n", err)
			return 1
		}
		warnings = result.Warnings
	} else {
		result, err := ledger.Verify(ctx, raw, strict)
		if err != nil {
			fmt.Fprintf(os.Stderr, "verify: %v\n", err)
			return 1
		}
		warnings = result.Warnings
	}

	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "warning: %s: %s\n", w.Code, w.Message)
	}
	fmt.Println("verified")
	return 0
}

func runKeygen(args []string) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var path string
	fs.StringVar(&path, "path", "", "keyfile path (default ~/.vaultmesh/actor.key)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if path == "" {
		p, err := identity.DefaultKeyPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "keygen: %v\n", err)
			return 1
		}
		path = p
	}
	_, did, err := identity.EnsureKeypair(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "keygen: %v\n", err)
		return 1
	}
	fmt.Println(did)
	return 0
}

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg := config.FromEnv()
	ledger, err := openLedger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open ledger: %v\n", err)
		return 1
	}
	srv := httpinfra.NewServer(cfg, ledger)
	if err := srv.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "server exited: %v\n", err)
		return 1
	}
	return 0
}
