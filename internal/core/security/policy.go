// Package security provides authorization-adjacent policies and request
// identity plumbing.
package security

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"docuvault/internal/core/apperror"
	appctx "docuvault/internal/core/context"
)

// TransitionPolicy gates sensitive workflow actions beyond RBAC. Different
// tenants may configure different rules (e.g. approval requires MFA).
type TransitionPolicy interface {
	// CanApply returns nil when actor may perform action, or a domain
	// violation describing the unmet condition.
	CanApply(ctx context.Context, action string, actor *appctx.UserContext) error
}

// OpenTransitionPolicy allows every action (development/testing).
type OpenTransitionPolicy struct{}

func (OpenTransitionPolicy) CanApply(ctx context.Context, action string, actor *appctx.UserContext) error {
	return nil
}

// RulePolicy evaluates one CEL expression per action against the caller
// snapshot. Expressions see:
//
//	mfa         bool          whether MFA is active on the session
//	roles       list<string>  role ids held by the caller
//	permissions list<string>  flattened permission codes
//
// Example rule for "approve": `mfa && "DOCUMENT_APPROVE" in permissions`.
type RulePolicy struct {
	programs map[string]cel.Program
}

// NewRulePolicy compiles one rule per action. Actions without a rule are
// unrestricted.
func NewRulePolicy(rules map[string]string) (*RulePolicy, error) {
	env, err := cel.NewEnv(
		cel.Variable("mfa", cel.BoolType),
		cel.Variable("roles", cel.ListType(cel.StringType)),
		cel.Variable("permissions", cel.ListType(cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	programs := make(map[string]cel.Program, len(rules))
	for action, expr := range rules {
		ast, iss := env.Compile(expr)
		if iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("compile rule for %q: %w", action, iss.Err())
		}
		if ast.OutputType() != cel.BoolType {
			return nil, fmt.Errorf("rule for %q must evaluate to bool", action)
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("program rule for %q: %w", action, err)
		}
		programs[action] = prg
	}
	return &RulePolicy{programs: programs}, nil
}

// CanApply evaluates the rule for action, if any.
func (p *RulePolicy) CanApply(ctx context.Context, action string, actor *appctx.UserContext) error {
	prg, ok := p.programs[action]
	if !ok {
		return nil
	}
	if actor == nil {
		return apperror.NewInvalidIdentity("actor is required for policy evaluation")
	}

	out, _, err := prg.Eval(map[string]any{
		"mfa":         actor.MFAActive,
		"roles":       actor.RoleIDs,
		"permissions": actor.Permissions,
	})
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("evaluate rule for %q: %w", action, err))
	}

	allowed, ok := out.Value().(bool)
	if !ok {
		return apperror.NewInternal(fmt.Errorf("rule for %q returned non-bool", action))
	}
	if !allowed {
		return apperror.NewDomainViolation(
			apperror.CodeDomainViolation,
			fmt.Sprintf("transition policy does not permit %q for this session", action),
		).WithDetail("action", action)
	}
	return nil
}

var _ TransitionPolicy = (*RulePolicy)(nil)
var _ TransitionPolicy = OpenTransitionPolicy{}
