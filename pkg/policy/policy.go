// Package policy implements the BEFORE/AFTER policy pipeline that
// cluster-action executors consult before and after doing their work, plus
// the static registry of policy-type constructors.
package policy

import (
	"context"
	"sort"

	"github.com/cuemby/clusterd/pkg/metrics"
	"github.com/cuemby/clusterd/pkg/storage"
	"github.com/cuemby/clusterd/pkg/types"
)

// Phase is a stage of the policy pipeline relative to the action it guards.
type Phase string

const (
	PhaseBefore Phase = "BEFORE"
	PhaseAfter  Phase = "AFTER"
)

// CheckStatus is the outcome stamped onto an Envelope by a policy hook.
type CheckStatus string

const (
	CheckOK     CheckStatus = "CHECK_OK"
	CheckFailed CheckStatus = "CHECK_FAILED"
)

type storeKey struct{}

// WithStore attaches store to ctx so policy implementations that need
// entity-store access (e.g. the deletion policy resolving node profiles)
// can reach it without a package-level singleton.
func WithStore(ctx context.Context, store storage.Store) context.Context {
	return context.WithValue(ctx, storeKey{}, store)
}

// StoreFromContext retrieves the store attached by WithStore, if any.
func StoreFromContext(ctx context.Context) (storage.Store, bool) {
	s, ok := ctx.Value(storeKey{}).(storage.Store)
	return s, ok
}

// Envelope is the mutable policy_data value threaded through one pipeline
// run. It is per-action, never shared across actions.
type Envelope struct {
	Status CheckStatus
	Reason string
	Data   map[string]interface{}
}

// NewEnvelope returns the pipeline's starting envelope.
func NewEnvelope() *Envelope {
	return &Envelope{Status: CheckOK, Data: make(map[string]interface{})}
}

// Fail marks e CHECK_FAILED with reason. Subsequent policies in the same
// pipeline run are skipped once this is observed.
func (e *Envelope) Fail(reason string) {
	e.Status = CheckFailed
	e.Reason = reason
}

func (e *Envelope) Failed() bool { return e.Status == CheckFailed }

// Policy is the behavior a policy type contributes to the pipeline.
type Policy interface {
	// Target reports whether this policy applies to (phase, verb).
	Target(phase Phase, verb string) bool
	// Attach validates that binding is allowed to attach to cluster. It may
	// reject the attach outright (e.g. a second policy of the same type).
	Attach(ctx context.Context, clusterID string, spec map[string]interface{}) error
	// Detach releases any state the policy held for the binding.
	Detach(ctx context.Context, clusterID string) error
	// PreOp runs during BEFORE; PostOp during AFTER. Both mutate env in place.
	PreOp(ctx context.Context, clusterID string, action *types.Action, env *Envelope) error
	PostOp(ctx context.Context, clusterID string, action *types.Action, env *Envelope) error
}

// Constructor builds a Policy from its stored row.
type Constructor func(p *types.Policy) (Policy, error)

var registry = map[string]Constructor{}

// Register binds policyType to ctor. Called from each policy type's init().
func Register(policyType string, ctor Constructor) {
	registry[policyType] = ctor
}

// Build resolves p.Type in the registry.
func Build(p *types.Policy) (Policy, error) {
	ctor, ok := registry[p.Type]
	if !ok {
		return nil, nil
	}
	return ctor(p)
}

// binding pairs a resolved Policy with the ClusterPolicy row that attached it.
type binding struct {
	cp     types.ClusterPolicy
	policy types.Policy
	impl   Policy
}

// Pipeline runs the BEFORE/AFTER policy pipeline for a cluster's attached,
// enabled bindings.
type Pipeline struct {
	store storage.Store
}

func NewPipeline(store storage.Store) *Pipeline {
	return &Pipeline{store: store}
}

// Run loads clusterID's enabled bindings, sorted by priority descending
// (ties broken by binding creation order), and invokes each whose policy
// Targets (phase, verb), stopping at the first CHECK_FAILED.
func (p *Pipeline) Run(ctx context.Context, clusterID string, phase Phase, action *types.Action) (*Envelope, error) {
	t := metrics.NewTimer()
	ctx = WithStore(ctx, p.store)

	bindings, err := p.loadBindings(clusterID)
	if err != nil {
		return nil, err
	}

	env := NewEnvelope()
	for _, b := range bindings {
		if !b.impl.Target(phase, action.Action) {
			continue
		}
		var opErr error
		if phase == PhaseBefore {
			opErr = b.impl.PreOp(ctx, clusterID, action, env)
		} else {
			opErr = b.impl.PostOp(ctx, clusterID, action, env)
		}
		t.ObserveDurationVec(metrics.PolicyCheckDuration, b.policy.Type, string(phase))
		if opErr != nil {
			return nil, opErr
		}
		if env.Failed() {
			break
		}
	}
	return env, nil
}

// loadBindings returns clusterID's enabled cluster-policy bindings with
// their policies resolved and sorted priority descending, ties by the
// ClusterPolicy row's creation order.
func (p *Pipeline) loadBindings(clusterID string) ([]binding, error) {
	cps, err := p.store.ListClusterPolicies(clusterID)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(cps, func(i, j int) bool {
		if cps[i].Priority != cps[j].Priority {
			return cps[i].Priority > cps[j].Priority
		}
		return cps[i].CreatedAt.Before(cps[j].CreatedAt)
	})

	var out []binding
	for _, cp := range cps {
		if !cp.Enabled {
			continue
		}
		pol, err := p.store.GetPolicy(cp.PolicyID)
		if err != nil {
			continue
		}
		impl, err := Build(pol)
		if err != nil || impl == nil {
			continue
		}
		out = append(out, binding{cp: cp, policy: *pol, impl: impl})
	}
	return out, nil
}
