package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/aussiebroadwan/rollcall/internal/auth/domain"
	"github.com/aussiebroadwan/rollcall/internal/auth/metrics"
	"github.com/aussiebroadwan/rollcall/internal/auth/rbac"
	"github.com/aussiebroadwan/rollcall/pkg/slogx"
)

// PolicyInput is what a Policy decides on.
type PolicyInput struct {
	Identity      domain.Identity
	ExpandedRoles []string
	Resource      string
	Action        string
}

// Policy answers whether an authenticated identity may perform action on
// resource.
type Policy interface {
	Allow(ctx context.Context, in PolicyInput) (bool, error)
}

// AdminPolicy allows an identity iff its literal roles include admin. It
// ignores resource and action, and deliberately skips hierarchy expansion.
type AdminPolicy struct{}

func (AdminPolicy) Allow(_ context.Context, in PolicyInput) (bool, error) {
	return slices.ContainsFunc(in.Identity.Roles, func(r string) bool {
		return rbac.Normalize(r) == domain.RoleAdmin
	}), nil
}

// Gate turns an authenticated identity into an allow/deny decision.
type Gate struct {
	Hierarchy *rbac.Hierarchy
	Policy    Policy           // defaults to AdminPolicy
	Metrics   *metrics.Metrics // optional
}

// Require passes id through when its expanded roles intersect allowed, and
// fails with ErrForbidden otherwise.
func (g *Gate) Require(ctx context.Context, id domain.Identity, allowed ...string) (domain.Identity, error) {
	expanded := g.hierarchy().Expand(id.Roles)
	if rbac.Intersects(expanded, allowed...) {
		g.Metrics.Decision("require", true)
		return id, nil
	}

	// The authn middleware already put the username on the context logger.
	slogx.FromContext(ctx).Info("role check denied",
		"roles", id.Roles,
		"allowed", allowed,
	)
	g.Metrics.Decision("require", false)
	return domain.Identity{}, ErrForbidden
}

// Authorize asks the configured Policy about resource/action. Evaluation
// errors deny.
func (g *Gate) Authorize(ctx context.Context, id domain.Identity, resource, action string) error {
	ctx, span := tracer.Start(ctx, "Gate.Authorize")
	defer span.End()
	l := slogx.FromContext(ctx)

	policy := g.Policy
	if policy == nil {
		policy = AdminPolicy{}
	}

	ok, err := policy.Allow(ctx, PolicyInput{
		Identity:      id,
		ExpandedRoles: g.hierarchy().Expand(id.Roles),
		Resource:      resource,
		Action:        action,
	})
	if err != nil {
		l.Error("policy evaluation failed", "error", err, "resource", resource, "action", action)
		g.Metrics.Decision("policy", false)
		return fail(span, fmt.Errorf("%w: policy evaluation failed", ErrForbidden))
	}
	if !ok {
		l.Info("policy denied", "resource", resource, "action", action)
		g.Metrics.Decision("policy", false)
		return fail(span, ErrForbidden)
	}

	g.Metrics.Decision("policy", true)
	return nil
}

func (g *Gate) hierarchy() *rbac.Hierarchy {
	if g.Hierarchy == nil {
		return rbac.Default()
	}
	return g.Hierarchy
}
