package main

import (
	"fmt"
	"os"
	"path/filepath"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	if len(args) < 2 {
		usage(args)
		return 1
	}

	switch args[1] {
	case "receipt":
		if len(args) >= 3 {
			switch args[2] {
			case "emit":
				return runReceiptEmit(args[3:])
			case "finalize":
				return runReceiptFinalize(args[3:])
			case "sign":
				return runReceiptSign(args[3:])
			}
		}
	case "seal":
		return runSeal(args[2:])
	case "anchor":
		return runAnchor(args[2:])
	case "verify":
		return runVerify(args[2:])
	case "keygen":
		return runKeygen(args[2:])
	case "push":
		return runPush(args[2:])
	case "peer":
		if len(args) >= 3 && args[2] == "verify" {
			return runPeerVerify(args[3:])
		}
	case "serve":
		return runServe(args[2:])
	}

	usage(args)
	return 1
}

func usage(args []string) {
	name := "vaultmesh"
	if len(args) > 0 && args[0] != "" {
		name = filepath.Base(args[0])
	}
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  %s receipt emit --kind <kind> (--subject-digest <hex>|--subject-file <file> [--media-type <type>]) [--subject-kind <kind>] [--mode refer|embed|braid] [--artifact <name>] [--artifact-hash <hex>] [--out <file>] [--prov-out <file>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s receipt finalize --in <receipt.json> [--out <file>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s receipt sign --in <receipt.json> [--prov <prov.json>] [--out <file>] [--prov-out <file>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s seal [--date <YYYY-MM-DD>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s anchor --in <receipt.json> [--out <file>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s verify --in <receipt.json> [--prov <prov.json>] [--strict]\n", name)
	fmt.Fprintf(os.Stderr, "  %s keygen [--path <keyfile>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s push --peer <url> --in <receipt.json> --prov <prov.json>\n", name)
	fmt.Fprintf(os.Stderr, "  %s peer verify --peer <url> --digest <hex>\n", name)
	fmt.Fprintf(os.Stderr, "  %s serve\n", name)
}
