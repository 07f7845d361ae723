package policyopa

import (
	"context"
	"fmt"
	"sort"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"

	"vaultmesh/internal/domain"
)

const denyQuery = "data.vaultmesh.policy.deny"

// Engine is the boundary to the external policy evaluator. The core
// marshals a PolicyInput, evaluates the deny query and interprets a
// non-empty deny set as refusal; the rules themselves live in the bundle.
type Engine struct {
	query      rego.PreparedEvalQuery
	bundleHash string
}

// NewEngineFromBundlePath prepares the deny query from a rego file or
// bundle directory.
func NewEngineFromBundlePath(ctx context.Context, bundlePath string) (*Engine, error) {
	bundleHash, err := BundleHash(bundlePath)
	if err != nil {
		return nil, err
	}
	// Policy evaluation must stay deterministic: no http.send, no time,
	// no environment access from rego.
	capabilities := ast.CapabilitiesForThisVersion()
	capabilities.Builtins = filterBuiltins(capabilities.Builtins)
	compiler := ast.NewCompiler().WithCapabilities(capabilities)

	r := rego.New(
		rego.Query(denyQuery),
		rego.Compiler(compiler),
		rego.StrictBuiltinErrors(true),
		rego.Load([]string{bundlePath}, nil),
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("preparing policy bundle: %w", err)
	}
	return &Engine{query: prepared, bundleHash: bundleHash}, nil
}

// Evaluate runs the gate. A nil engine allows everything: the gate is an
// optional collaborator, not core policy.
func (e *Engine) Evaluate(ctx context.Context, input domain.PolicyInput) (domain.PolicyEvaluation, error) {
	if e == nil {
		return domain.PolicyEvaluation{}, nil
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return domain.PolicyEvaluation{}, fmt.Errorf("evaluating policy: %w", err)
	}
	deny := collectDeny(results)
	sort.Strings(deny)
	return domain.PolicyEvaluation{BundleHash: e.bundleHash, Deny: deny}, nil
}

// Check evaluates and converts a non-empty deny set into ErrPolicyDenied.
// Denials are never silently ignored.
func (e *Engine) Check(ctx context.Context, input domain.PolicyInput) error {
	eval, err := e.Evaluate(ctx, input)
	if err != nil {
		return err
	}
	if !eval.Allowed() {
		return fmt.Errorf("%w: %v", domain.ErrPolicyDenied, eval.Deny)
	}
	return nil
}

func collectDeny(results rego.ResultSet) []string {
	var deny []string
	for _, result := range results {
		for _, expr := range result.Expressions {
			deny = append(deny, flatten(expr.Value)...)
		}
	}
	return deny
}

func flatten(value any) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		return []string{v}
	case []any:
		var out []string
		for _, item := range v {
			out = append(out, flatten(item)...)
		}
		return out
	default:
		return []string{fmt.Sprintf("%v", v)}
	}
}
