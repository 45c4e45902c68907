package policy

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"sort"

	"github.com/cuemby/clusterd/pkg/types"
)

var errNoStore = errors.New("policy: no store attached to context")

// Criteria selects which nodes a deletion picks as candidates.
type Criteria string

const (
	CriteriaRandom            Criteria = "RANDOM"
	CriteriaOldestFirst       Criteria = "OLDEST_FIRST"
	CriteriaYoungestFirst     Criteria = "YOUNGEST_FIRST"
	CriteriaOldestProfileFirst Criteria = "OLDEST_PROFILE_FIRST"
)

const deletionPolicyType = "deletion"

func init() {
	Register(deletionPolicyType, newDeletionPolicy)
}

// deletionPolicy picks deletion candidates for CLUSTER_SCALE_IN / the
// delete side of CLUSTER_DEL_NODES. It only runs in the BEFORE phase: its
// PreOp populates policy_data.deletion for the executor to consume.
type deletionPolicy struct {
	criteria              Criteria
	destroyAfterDeletion  bool
	gracePeriod           int
	reduceDesiredCapacity bool
}

func newDeletionPolicy(p *types.Policy) (Policy, error) {
	dp := &deletionPolicy{
		criteria:              CriteriaRandom,
		destroyAfterDeletion:  true,
		reduceDesiredCapacity: true,
	}
	if c, ok := p.Spec["criteria"].(string); ok && c != "" {
		dp.criteria = Criteria(c)
	}
	if d, ok := p.Spec["destroy_after_deletion"].(bool); ok {
		dp.destroyAfterDeletion = d
	}
	if g, ok := types.IntInput(p.Spec, "grace_period"); ok {
		dp.gracePeriod = g
	}
	if r, ok := p.Spec["reduce_desired_capacity"].(bool); ok {
		dp.reduceDesiredCapacity = r
	}
	return dp, nil
}

func (d *deletionPolicy) Target(phase Phase, verb string) bool {
	if phase != PhaseBefore {
		return false
	}
	return verb == "CLUSTER_SCALE_IN" || verb == "CLUSTER_DEL_NODES"
}

func (d *deletionPolicy) Attach(ctx context.Context, clusterID string, spec map[string]interface{}) error {
	return nil
}

func (d *deletionPolicy) Detach(ctx context.Context, clusterID string) error {
	return nil
}

func (d *deletionPolicy) PreOp(ctx context.Context, clusterID string, action *types.Action, env *Envelope) error {
	store, ok := StoreFromContext(ctx)
	if !ok {
		return errNoStore
	}

	nodes, err := store.ListNodesByCluster(clusterID, false)
	if err != nil {
		return err
	}

	count := 1
	if c, ok := types.IntInput(action.Inputs, "count"); ok && c > 0 {
		count = c
	}
	if count > len(nodes) {
		count = len(nodes)
	}

	candidates, err := d.selectCandidates(ctx, nodes, count)
	if err != nil {
		return err
	}

	env.Data["deletion"] = map[string]interface{}{
		"count":                   count,
		"candidates":              candidates,
		"destroy_after_deletion":  d.destroyAfterDeletion,
		"grace_period":            d.gracePeriod,
		"reduce_desired_capacity": d.reduceDesiredCapacity,
	}
	return nil
}

func (d *deletionPolicy) PostOp(ctx context.Context, clusterID string, action *types.Action, env *Envelope) error {
	return nil
}

// selectCandidates implements the four criteria. YOUNGEST_FIRST iterates
// the ascending-sorted list from its tail (sorted_list[-1-i] for i in
// [0,count)) rather than its head, and OLDEST_PROFILE_FIRST appends node
// references rather than ad-hoc maps, matching the other branches.
func (d *deletionPolicy) selectCandidates(ctx context.Context, nodes []*types.Node, count int) ([]*types.Node, error) {
	switch d.criteria {
	case CriteriaOldestFirst, CriteriaYoungestFirst:
		sorted := append([]*types.Node(nil), nodes...)
		sort.Slice(sorted, func(i, j int) bool {
			if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
				return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
			}
			return sorted[i].Name < sorted[j].Name
		})
		if d.criteria == CriteriaOldestFirst {
			return sorted[:count], nil
		}
		out := make([]*types.Node, 0, count)
		for i := 0; i < count; i++ {
			out = append(out, sorted[len(sorted)-1-i])
		}
		return out, nil

	case CriteriaOldestProfileFirst:
		type withProfileTime struct {
			node        *types.Node
			profileTime int64
		}
		store, _ := StoreFromContext(ctx)
		withTimes := make([]withProfileTime, 0, len(nodes))
		for _, n := range nodes {
			var t int64
			if store != nil {
				if p, err := store.GetProfile(n.ProfileID); err == nil {
					t = p.CreatedAt.Unix()
				}
			}
			withTimes = append(withTimes, withProfileTime{node: n, profileTime: t})
		}
		sort.Slice(withTimes, func(i, j int) bool {
			return withTimes[i].profileTime < withTimes[j].profileTime
		})
		out := make([]*types.Node, 0, count)
		for i := 0; i < count; i++ {
			out = append(out, withTimes[i].node)
		}
		return out, nil

	default: // CriteriaRandom
		pool := append([]*types.Node(nil), nodes...)
		out := make([]*types.Node, 0, count)
		for i := 0; i < count && len(pool) > 0; i++ {
			idx, err := randIndex(len(pool))
			if err != nil {
				return nil, err
			}
			out = append(out, pool[idx])
			pool = append(pool[:idx], pool[idx+1:]...)
		}
		return out, nil
	}
}

func randIndex(n int) (int, error) {
	max := big.NewInt(int64(n))
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
