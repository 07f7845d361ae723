package policyopa

import "github.com/open-policy-agent/opa/ast"

// allowedBuiltins is the deterministic subset policy bundles may use.
// Rules see receipt metadata and env strings, so string and collection
// builtins cover the useful surface; anything touching the network,
// clock, or host environment is excluded up front.
var allowedBuiltins = map[string]struct{}{
	// comparison
	"eq":    {},
	"equal": {},
	"neq":   {},

	// strings: DID prefixes, receipt kinds, env values
	"concat":          {},
	"contains":        {},
	"endswith":        {},
	"startswith":      {},
	"lower":           {},
	"upper":           {},
	"replace":         {},
	"split":           {},
	"sprintf":         {},
	"substring":       {},
	"trim":            {},
	"trim_left":       {},
	"trim_right":      {},
	"urlquery.decode": {}, // did:web subjects arrive percent-encoded
	"urlquery.encode": {},

	// collections and objects
	"count":         {},
	"max":           {},
	"min":           {},
	"sort":          {},
	"sum":           {},
	"object.get":    {},
	"object.remove": {},
	"object.union":  {},

	// structured env values
	"json.marshal":   {},
	"json.unmarshal": {},

	// arithmetic
	"abs":           {},
	"ceil":          {},
	"floor":         {},
	"round":         {},
	"pow":           {},
	"format_int":    {},
	"format_number": {},
}

func filterBuiltins(builtins []*ast.Builtin) []*ast.Builtin {
	kept := make([]*ast.Builtin, 0, len(builtins))
	for _, b := range builtins {
		if _, ok := allowedBuiltins[b.Name]; ok {
			kept = append(kept, b)
		}
	}
	return kept
}
