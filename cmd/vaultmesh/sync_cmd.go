package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"vaultmesh/internal/config"
	"vaultmesh/internal/domain"
	"vaultmesh/internal/infra/peer"
)

func runPush(args []string) int {
	fs := flag.NewFlagSet("push", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var peerURL string
	var inPath string
	var provPath string
	fs.StringVar(&peerURL, "peer", "", "peer base URL")
	fs.StringVar(&inPath, "in", "", "receipt path")
	fs.StringVar(&provPath, "prov", "", "provenance path")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if peerURL == "" || inPath == "" || provPath == "" {
		fmt.Fprintln(os.Stderr, "push requires --peer, --in and --prov")
		return 1
	}

	cfg := config.FromEnv()
	ledger, err := openLedger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open ledger: %v\n", err)
		return 1
	}
	var bundle domain.Bundle
	if err := readJSON(inPath, &bundle.Receipt); err != nil {
		fmt.Fprintf(os.Stderr, "read receipt: %v\n", err)
		return 1
	}
	if err := readJSON(provPath, &bundle.Provenance); err != nil {
		fmt.Fprintf(os.Stderr, "read provenance: %v\n", err)
		return 1
	}

	client := peer.New(cfg.PeerTimeout())
	result, err := ledger.Push(context.Background(), client, peerURL, bundle)
	if err != nil {
		fmt.Fprintf(os.Stderr, "push: %v\n", err)
		return 1
	}
	fmt.Printf("%s %s %s\n", result.Status, result.ReceiptDigest, result.MerkleRoot)
	return 0
}

func runPeerVerify(args []string) int {
	fs := flag.NewFlagSet("peer verify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var peerURL string
	var digest string
	fs.StringVar(&peerURL, "peer", "", "peer base URL")
	fs.StringVar(&digest, "digest", "", "receipt digest hex")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if peerURL == "" || digest == "" {
		fmt.Fprintln(os.Stderr, "peer verify requires --peer and --digest")
		return 1
	}

	cfg := config.FromEnv()
	ledger, err := openLedger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open ledger: %v\n", err)
		return 1
	}
	client := peer.New(cfg.PeerTimeout())
	result, err := ledger.VerifyRemote(context.Background(), client, peerURL, digest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "peer verify: %v\n", err)
		return 1
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s: %s\n", w.Code, w.Message)
	}
	fmt.Println("verified")
	return 0
}
