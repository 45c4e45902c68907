package policy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/clusterd/pkg/types"
)

// fakeStore implements storage.Store with just enough behavior to drive
// the deletion policy's candidate selection: ListNodesByCluster and
// GetProfile. Every other method is unused by these tests.
type fakeStore struct {
	nodes    []*types.Node
	profiles map[string]*types.Profile
}

func (f *fakeStore) CreateCluster(c *types.Cluster) error                       { return nil }
func (f *fakeStore) GetCluster(id string, showDeleted bool) (*types.Cluster, error) { return nil, nil }
func (f *fakeStore) GetClusterByName(name string, showDeleted bool) (*types.Cluster, error) {
	return nil, nil
}
func (f *fakeStore) ListClusters(showDeleted bool) ([]*types.Cluster, error) { return nil, nil }
func (f *fakeStore) UpdateCluster(c *types.Cluster) error                    { return nil }
func (f *fakeStore) SoftDeleteCluster(id string, at int64) error             { return nil }

func (f *fakeStore) CreateNode(n *types.Node) error               { return nil }
func (f *fakeStore) GetNode(id string, showDeleted bool) (*types.Node, error) { return nil, nil }
func (f *fakeStore) ListNodes(showDeleted bool) ([]*types.Node, error) { return nil, nil }
func (f *fakeStore) ListNodesByCluster(clusterID string, showDeleted bool) ([]*types.Node, error) {
	return f.nodes, nil
}
func (f *fakeStore) UpdateNode(n *types.Node) error    { return nil }
func (f *fakeStore) SoftDeleteNode(id string, at int64) error { return nil }

func (f *fakeStore) CreateProfile(p *types.Profile) error { return nil }
func (f *fakeStore) GetProfile(id string) (*types.Profile, error) {
	p, ok := f.profiles[id]
	if !ok {
		return nil, assertNotFound(id)
	}
	return p, nil
}
func (f *fakeStore) ListProfiles(showDeleted bool) ([]*types.Profile, error) { return nil, nil }
func (f *fakeStore) SoftDeleteProfile(id string, at int64) error             { return nil }

func (f *fakeStore) CreatePolicy(p *types.Policy) error                 { return nil }
func (f *fakeStore) GetPolicy(id string) (*types.Policy, error)         { return nil, nil }
func (f *fakeStore) ListPolicies(showDeleted bool) ([]*types.Policy, error) { return nil, nil }
func (f *fakeStore) SoftDeletePolicy(id string, at int64) error         { return nil }

func (f *fakeStore) AttachPolicy(cp *types.ClusterPolicy) error       { return nil }
func (f *fakeStore) DetachPolicy(clusterID, policyID string) error    { return nil }
func (f *fakeStore) GetClusterPolicy(clusterID, policyID string) (*types.ClusterPolicy, error) {
	return nil, nil
}
func (f *fakeStore) ListClusterPolicies(clusterID string) ([]*types.ClusterPolicy, error) {
	return nil, nil
}
func (f *fakeStore) UpdateClusterPolicy(cp *types.ClusterPolicy) error { return nil }

func (f *fakeStore) AppendEvent(e *types.Event) error            { return nil }
func (f *fakeStore) ListEvents(objID string) ([]*types.Event, error) { return nil, nil }

func (f *fakeStore) CreateAction(a *types.Action) error                         { return nil }
func (f *fakeStore) GetAction(id string) (*types.Action, error)                 { return nil, nil }
func (f *fakeStore) ListActions() ([]*types.Action, error)                      { return nil, nil }
func (f *fakeStore) ListActionsByTarget(target string) ([]*types.Action, error) { return nil, nil }
func (f *fakeStore) ListActionsByStatus(status types.ActionStatus) ([]*types.Action, error) {
	return nil, nil
}
func (f *fakeStore) UpdateAction(a *types.Action) error                       { return nil }
func (f *fakeStore) AddDependency(actionID, dependsOnID string) error         { return nil }
func (f *fakeStore) ResolveDependents(actionID string) ([]string, error)      { return nil, nil }
func (f *fakeStore) Close() error                                             { return nil }

func assertNotFound(id string) error { return &notFoundErr{id} }

type notFoundErr struct{ id string }

func (e *notFoundErr) Error() string { return "not found: " + e.id }

func nodeAt(id string, t time.Time) *types.Node {
	return &types.Node{ID: id, Name: id, CreatedAt: t}
}

func TestDeletionPolicy_OldestFirst(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{nodes: []*types.Node{
		nodeAt("n3", base.Add(2*time.Hour)),
		nodeAt("n1", base),
		nodeAt("n2", base.Add(time.Hour)),
	}}

	pol, err := newDeletionPolicy(&types.Policy{Spec: map[string]interface{}{"criteria": "OLDEST_FIRST"}})
	require.NoError(t, err)

	ctx := WithStore(context.Background(), store)
	env := NewEnvelope()
	action := &types.Action{Action: "CLUSTER_SCALE_IN", Inputs: map[string]interface{}{"count": 2}}
	require.NoError(t, pol.PreOp(ctx, "c1", action, env))

	deletion := env.Data["deletion"].(map[string]interface{})
	candidates := deletion["candidates"].([]*types.Node)
	require.Len(t, candidates, 2)
	assert.Equal(t, "n1", candidates[0].ID)
	assert.Equal(t, "n2", candidates[1].ID)
}

func TestDeletionPolicy_YoungestFirst(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{nodes: []*types.Node{
		nodeAt("n1", base),
		nodeAt("n2", base.Add(time.Hour)),
		nodeAt("n3", base.Add(2 * time.Hour)),
	}}

	pol, err := newDeletionPolicy(&types.Policy{Spec: map[string]interface{}{"criteria": "YOUNGEST_FIRST"}})
	require.NoError(t, err)

	ctx := WithStore(context.Background(), store)
	env := NewEnvelope()
	action := &types.Action{Action: "CLUSTER_SCALE_IN", Inputs: map[string]interface{}{"count": 2}}
	require.NoError(t, pol.PreOp(ctx, "c1", action, env))

	deletion := env.Data["deletion"].(map[string]interface{})
	candidates := deletion["candidates"].([]*types.Node)
	require.Len(t, candidates, 2)
	// Youngest (most recently created) first: n3 then n2, never n1.
	assert.Equal(t, "n3", candidates[0].ID)
	assert.Equal(t, "n2", candidates[1].ID)
}

func TestDeletionPolicy_OldestProfileFirst(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{
		nodes: []*types.Node{
			{ID: "n1", Name: "n1", ProfileID: "p-new"},
			{ID: "n2", Name: "n2", ProfileID: "p-old"},
		},
		profiles: map[string]*types.Profile{
			"p-new": {ID: "p-new", CreatedAt: base.Add(time.Hour)},
			"p-old": {ID: "p-old", CreatedAt: base},
		},
	}

	pol, err := newDeletionPolicy(&types.Policy{Spec: map[string]interface{}{"criteria": "OLDEST_PROFILE_FIRST"}})
	require.NoError(t, err)

	ctx := WithStore(context.Background(), store)
	env := NewEnvelope()
	action := &types.Action{Action: "CLUSTER_DEL_NODES", Inputs: map[string]interface{}{"count": 1}}
	require.NoError(t, pol.PreOp(ctx, "c1", action, env))

	deletion := env.Data["deletion"].(map[string]interface{})
	candidates := deletion["candidates"].([]*types.Node)
	require.Len(t, candidates, 1)
	assert.Equal(t, "n2", candidates[0].ID)
}

func TestDeletionPolicy_CountClampedToPopulation(t *testing.T) {
	store := &fakeStore{nodes: []*types.Node{nodeAt("n1", time.Now())}}
	pol, err := newDeletionPolicy(&types.Policy{Spec: map[string]interface{}{"criteria": "RANDOM"}})
	require.NoError(t, err)

	ctx := WithStore(context.Background(), store)
	env := NewEnvelope()
	action := &types.Action{Action: "CLUSTER_SCALE_IN", Inputs: map[string]interface{}{"count": 50}}
	require.NoError(t, pol.PreOp(ctx, "c1", action, env))

	deletion := env.Data["deletion"].(map[string]interface{})
	assert.Equal(t, 1, deletion["count"])
}

func TestEnvelope_FailStopsPipeline(t *testing.T) {
	env := NewEnvelope()
	assert.False(t, env.Failed())
	env.Fail("no capacity")
	assert.True(t, env.Failed())
	assert.Equal(t, "no capacity", env.Reason)
}
