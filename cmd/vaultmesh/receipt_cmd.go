package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"vaultmesh/internal/config"
	"vaultmesh/internal/domain"
	"vaultmesh/internal/infra/cas"
	"vaultmesh/internal/infra/crypto"
	"vaultmesh/internal/infra/identity"
	"vaultmesh/internal/infra/index"
	"vaultmesh/internal/infra/policyopa"
	"vaultmesh/internal/usecase"
)

func openLedger(cfg config.Config) (*usecase.Ledger, error) {
	dir, err := cfg.ResolveLedgerDir()
	if err != nil {
		return nil, err
	}
	store, err := cas.Open(dir)
	if err != nil {
		return nil, err
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
			return nil, fmt.Errorf("load policy bundle: %w", err)
		}
		ledger.Policy = engine
	}
	idx, err := index.NewStore(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	ledger.Index = idx
	return ledger, nil
}

func runReceiptEmit(args []string) int {
	fs := flag.NewFlagSet("receipt emit", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var kind string
	var subjectKind string
	var subjectDigest string
	var subjectFile string
	var mediaType string
	var mode string
	var artifact string
	var artifactHash string
	var outPath string
	var provOutPath string

	fs.StringVar(&kind, "kind", "", "receipt kind, e.g. build, deploy")
	fs.StringVar(&subjectKind, "subject-kind", "artifact", "subject kind")
	fs.StringVar(&subjectDigest, "subject-digest", "", "subject digest hex")
	fs.StringVar(&subjectFile, "subject-file", "", "artifact file to hash instead of --subject-digest")
	fs.StringVar(&mediaType, "media-type", "", "artifact media type for normalization")
	fs.StringVar(&mode, "mode", "refer", "provenance mode: refer, embed or braid")
	fs.StringVar(&artifact, "artifact", "", "artifact name")
	fs.StringVar(&artifactHash, "artifact-hash", "", "artifact hash hex")
	fs.StringVar(&outPath, "out", "", "output receipt path (default stdout)")
	fs.StringVar(&provOutPath, "prov-out", "", "output provenance path")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if subjectDigest == "" && subjectFile != "" {
		data, err := os.ReadFile(subjectFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read subject file: %v\n", err)
			return 1
		}
		subjectDigest, err = crypto.HashArtifact(mediaType, data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "hash subject file: %v\n", err)
			return 1
		}
		if artifact == "" {
			artifact = subjectFile
		}
	}
	if kind == "" || subjectDigest == "" {
		fmt.Fprintln(os.Stderr, "receipt emit requires --kind and --subject-digest or --subject-file")
		return 1
	}

	ledger, err := openLedger(config.FromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "open ledger: %v\n", err)
		return 1
	}
	receipt, prov, err := ledger.Emit(usecase.EmitRequest{
		Kind:          kind,
		SubjectKind:   subjectKind,
		SubjectDigest: subjectDigest,
		Mode:          domain.ProvenanceMode(mode),
		Artifact:      artifact,
		ArtifactHash:  artifactHash,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "emit: %v\n", err)
		return 1
	}
	if err := writeJSON(outPath, receipt); err != nil {
		fmt.Fprintf(os.Stderr, "write receipt: %v\n", err)
		return 1
	}
	if prov != nil {
		if provOutPath == "" {
			provOutPath = "provenance.json"
		}
		if err := writeJSON(provOutPath, prov); err != nil {
			fmt.Fprintf(os.Stderr, "write provenance: %v\n", err)
			return 1
		}
	}
	return 0
}

func runReceiptFinalize(args []string) int {
	fs := flag.NewFlagSet("receipt finalize", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var inPath string
	var outPath string
	fs.StringVar(&inPath, "in", "", "receipt path")
	fs.StringVar(&outPath, "out", "", "output path (default overwrite input)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" {
		fmt.Fprintln(os.Stderr, "receipt finalize requires --in")
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
	if err := ledger.Finalize(&receipt); err != nil {
		fmt.Fprintf(os.Stderr, "finalize: %v\n", err)
		return 1
	}
	if outPath == "" {
		outPath = inPath
	}
	if err := writeJSON(outPath, &receipt); err != nil {
		fmt.Fprintf(os.Stderr, "write receipt: %v\n", err)
		return 1
	}
	return 0
}

func runReceiptSign(args []string) int {
	fs := flag.NewFlagSet("receipt sign", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var inPath string
	var provPath string
	var outPath string
	var provOutPath string
	fs.StringVar(&inPath, "in", "", "receipt path")
	fs.StringVar(&provPath, "prov", "", "provenance path (braid binding)")
	fs.StringVar(&outPath, "out", "", "output path (default overwrite input)")
	fs.StringVar(&provOutPath, "prov-out", "", "provenance output path (default overwrite)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" {
		fmt.Fprintln(os.Stderr, "receipt sign requires --in")
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
	var prov *domain.Provenance
	if provPath != "" {
		prov = &domain.Provenance{}
		if err := readJSON(provPath, prov); err != nil {
			fmt.Fprintf(os.Stderr, "read provenance: %v\n", err)
			return 1
		}
	}
	if err := ledger.Sign(&receipt, prov); err != nil {
		fmt.Fprintf(os.Stderr, "sign: %v\n", err)
		return 1
	}

	ctx := context.Background()
	digest, err := ledger.PutReceipt(ctx, &receipt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "store receipt: %v\n", err)
		return 1
	}
	if prov != nil {
		if _, err := ledger.PutProvenance(ctx, prov); err != nil {
			fmt.Fprintf(os.Stderr, "store provenance: %v\n", err)
			return 1
		}
		if provOutPath == "" {
			provOutPath = provPath
		}
		if err := writeJSON(provOutPath, prov); err != nil {
			fmt.Fprintf(os.Stderr, "write provenance: %v\n", err)
			return 1
		}
	}
	if outPath == "" {
		outPath = inPath
	}
	if err := writeJSON(outPath, &receipt); err != nil {
		fmt.Fprintf(os.Stderr, "write receipt: %v\n", err)
		return 1
	}
	fmt.Println(digest)
	return 0
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
