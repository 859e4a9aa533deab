package service

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

// RegoQuery is the rule every policy module must define.
const RegoQuery = "data.rollcall.authz.allow"

// DefaultRegoModule mirrors AdminPolicy so switching engines changes nothing
// until an operator supplies their own module.
const DefaultRegoModule = `package rollcall.authz

default allow := false

allow if {
	"admin" in input.identity.roles
}
`

// RegoPolicy evaluates an OPA module compiled once at startup. The input
// document is:
//
//	{"identity": {"username", "roles", "expanded_roles"}, "resource", "action"}
type RegoPolicy struct {
	query rego.PreparedEvalQuery
}

// NewRegoPolicy compiles module and prepares the allow query.
func NewRegoPolicy(ctx context.Context, module string) (*RegoPolicy, error) {
	compiler, err := ast.CompileModules(map[string]string{"authz.rego": module})
	if err != nil {
		return nil, fmt.Errorf("compile policy: %w", err)
	}

	query, err := rego.New(
		rego.Query(RegoQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare policy: %w", err)
	}
	return &RegoPolicy{query: query}, nil
}

// LoadRegoPolicy reads a module from path. An empty path loads
// DefaultRegoModule.
func LoadRegoPolicy(ctx context.Context, path string) (*RegoPolicy, error) {
	if path == "" {
		return NewRegoPolicy(ctx, DefaultRegoModule)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}
	return NewRegoPolicy(ctx, string(raw))
}

func (p *RegoPolicy) Allow(ctx context.Context, in PolicyInput) (bool, error) {
	input := map[string]any{
		"identity": map[string]any{
			"username":       in.Identity.Username,
			"roles":          toAny(in.Identity.Roles),
			"expanded_roles": toAny(in.ExpandedRoles),
		},
		"resource": in.Resource,
		"action":   in.Action,
	}

	rs, err := p.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("evaluate policy: %w", err)
	}
	return rs.Allowed(), nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
