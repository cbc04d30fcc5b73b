package engine

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/open-policy-agent/opa/v1/rego"

	accountdomain "carescope/backend/internal/account/domain"
	"carescope/backend/internal/platform/rbac"
)

// OPAEvaluator implements rbac.BypassEvaluator with a prepared Rego query.
// Evaluation errors and undefined results fall back to rbac.StaticPolicy.
type OPAEvaluator struct {
	query    rego.PreparedEvalQuery
	fallback rbac.StaticPolicy
}

var _ rbac.BypassEvaluator = (*OPAEvaluator)(nil)

// NewOPAEvaluator compiles source and prepares the bypass query.
func NewOPAEvaluator(ctx context.Context, source string) (*OPAEvaluator, error) {
	pq, err := rego.New(
		rego.Query(bypassQuery),
		rego.Module("access.rego", source),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile access policy: %w", err)
	}
	return &OPAEvaluator{query: pq}, nil
}

// CanBypass implements rbac.BypassEvaluator.
func (e *OPAEvaluator) CanBypass(ctx context.Context, op rbac.Operation, role accountdomain.GlobalRole) bool {
	allowed, err := e.eval(ctx, op, role)
	if err != nil {
		log.FromContext(ctx).Warn("policy: bypass evaluation failed, using static rule", "operation", op.Name, "err", err)
		return e.fallback.CanBypass(ctx, op, role)
	}
	return allowed
}

func (e *OPAEvaluator) eval(ctx context.Context, op rbac.Operation, role accountdomain.GlobalRole) (bool, error) {
	input := map[string]interface{}{
		"role": role.String(),
		"operation": map[string]interface{}{
			"name": op.Name,
			"mode": op.Mode.String(),
		},
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, err
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, fmt.Errorf("query %s returned no result", bypassQuery)
	}
	v, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("query %s returned %T, want bool", bypassQuery, rs[0].Expressions[0].Value)
	}
	return v, nil
}

// HealthCheck evaluates the prepared query once against a minimal input.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	if _, err := e.eval(ctx, rbac.Operation{Name: "health", Mode: rbac.Scoped}, accountdomain.RoleStaff); err != nil {
		return fmt.Errorf("eval access policy: %w", err)
	}
	return nil
}
