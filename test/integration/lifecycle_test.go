// Package integration exercises the engine, lock manager, policy pipeline,
// and BoltDB-backed storage together, against a real on-disk database in a
// temp dir, the same multi-component slice warren's test/integration
// covers (there: containerd + manager; here: storage + locks + policies +
// dispatcher).
package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/clusterd/pkg/engine"
	"github.com/cuemby/clusterd/pkg/profile"
	"github.com/cuemby/clusterd/pkg/storage"
	"github.com/cuemby/clusterd/pkg/types"
)

func newEngine(t *testing.T) (*engine.Engine, storage.Store) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	eng := engine.New(store, 4)
	eng.Scheduler.SetTestMode(true)
	eng.Start()
	t.Cleanup(eng.Stop)
	return eng, store
}

func mustProfile(t *testing.T, store storage.Store) *types.Profile {
	t.Helper()
	p := &types.Profile{ID: uuid.NewString(), Name: "integration-profile", Type: "memory", CreatedAt: time.Now()}
	require.NoError(t, store.CreateProfile(p))
	return p
}

func waitTerminal(t *testing.T, store storage.Store, actionID string) *types.Action {
	t.Helper()
	var a *types.Action
	require.Eventually(t, func() bool {
		var err error
		a, err = store.GetAction(actionID)
		return err == nil && a.Status.Terminal()
	}, 10*time.Second, 10*time.Millisecond)
	return a
}

// TestCreateThenDelete_RoundTrip verifies spec.md §8's round-trip: an
// N-node cluster, then deleted, leaves no live nodes, a DELETED cluster
// row, and exactly 2*(N+1) terminal-status events (one create + one
// delete per node, plus one per cluster).
func TestCreateThenDelete_RoundTrip(t *testing.T) {
	eng, store := newEngine(t)
	prof := mustProfile(t, store)
	const n = 3

	cluster := &types.Cluster{ID: uuid.NewString(), Name: "roundtrip", ProfileID: prof.ID, Size: n, Status: types.ClusterInit, CreatedAt: time.Now()}
	require.NoError(t, store.CreateCluster(cluster))

	createAction, err := eng.CreateCluster(cluster.ID)
	require.NoError(t, err)
	final := waitTerminal(t, store, createAction.ID)
	require.Equal(t, types.ActionSucceeded, final.Status)

	nodes, err := store.ListNodesByCluster(cluster.ID, false)
	require.NoError(t, err)
	require.Len(t, nodes, n)

	deleteAction, err := eng.DeleteCluster(cluster.ID)
	require.NoError(t, err)
	final = waitTerminal(t, store, deleteAction.ID)
	require.Equal(t, types.ActionSucceeded, final.Status)

	_, err = store.GetCluster(cluster.ID, false)
	require.Error(t, err, "a deleted cluster must not resolve without show_deleted")

	deletedCluster, err := store.GetCluster(cluster.ID, true)
	require.NoError(t, err)
	require.NotNil(t, deletedCluster.DeletedAt)

	for _, node := range nodes {
		deletedNode, err := store.GetNode(node.ID, true)
		require.NoError(t, err)
		require.NotNil(t, deletedNode.DeletedAt)
	}

	clusterEvents, err := store.ListEvents(cluster.ID)
	require.NoError(t, err)
	var clusterTerminalEvents int
	for _, e := range clusterEvents {
		if e.Status == string(types.ActionSucceeded) {
			clusterTerminalEvents++
		}
	}
	require.Equal(t, 2, clusterTerminalEvents, "one SUCCEEDED event for CLUSTER_CREATE and one for CLUSTER_DELETE")

	var nodeTerminalEvents int
	for _, node := range nodes {
		events, err := store.ListEvents(node.ID)
		require.NoError(t, err)
		for _, e := range events {
			if e.Status == string(types.ActionSucceeded) {
				nodeTerminalEvents++
			}
		}
	}
	require.Equal(t, 2*n, nodeTerminalEvents, "one SUCCEEDED event for NODE_CREATE and NODE_DELETE per node")
}

// TestScaleOutThenScaleIn_RandomPolicy_PreservesSize verifies the round
// trip in spec.md §8: scale_out(k) then scale_in(k) with RANDOM selection
// leaves cluster size unchanged, identities may differ.
func TestScaleOutThenScaleIn_RandomPolicy_PreservesSize(t *testing.T) {
	eng, store := newEngine(t)
	prof := mustProfile(t, store)

	cluster := &types.Cluster{ID: uuid.NewString(), Name: "scale-roundtrip", ProfileID: prof.ID, Size: 2, Status: types.ClusterInit, CreatedAt: time.Now()}
	require.NoError(t, store.CreateCluster(cluster))

	createAction, err := eng.CreateCluster(cluster.ID)
	require.NoError(t, err)
	waitTerminal(t, store, createAction.ID)

	before, err := store.ListNodesByCluster(cluster.ID, false)
	require.NoError(t, err)
	beforeIDs := map[string]bool{}
	for _, n := range before {
		beforeIDs[n.ID] = true
	}

	outAction, err := eng.ScaleOut(cluster.ID, 3)
	require.NoError(t, err)
	out := waitTerminal(t, store, outAction.ID)
	require.Equal(t, types.ActionSucceeded, out.Status)

	grown, err := store.GetCluster(cluster.ID, false)
	require.NoError(t, err)
	require.Equal(t, 5, grown.Size)

	inAction, err := eng.ScaleIn(cluster.ID, 3)
	require.NoError(t, err)
	in := waitTerminal(t, store, inAction.ID)
	require.Equal(t, types.ActionSucceeded, in.Status)

	final, err := store.GetCluster(cluster.ID, false)
	require.NoError(t, err)
	require.Equal(t, 2, final.Size)

	after, err := store.ListNodesByCluster(cluster.ID, false)
	require.NoError(t, err)
	require.Len(t, after, 2)
}

// TestDriverFailure_MarksNodeErrorAndClusterError exercises a DriverFailure
// path using a profile driver that always reports FAILED, verifying the
// error propagates from node to the owning cluster action.
func TestDriverFailure_MarksNodeErrorAndClusterError(t *testing.T) {
	profile.Register("integration-always-fail", func(p *types.Profile) (profile.Driver, error) {
		return &alwaysFailDriver{}, nil
	})

	eng, store := newEngine(t)
	prof := &types.Profile{ID: uuid.NewString(), Name: "fails", Type: "integration-always-fail", CreatedAt: time.Now()}
	require.NoError(t, store.CreateProfile(prof))

	cluster := &types.Cluster{ID: uuid.NewString(), Name: "failing", ProfileID: prof.ID, Size: 1, Status: types.ClusterInit, CreatedAt: time.Now()}
	require.NoError(t, store.CreateCluster(cluster))

	createAction, err := eng.CreateCluster(cluster.ID)
	require.NoError(t, err)
	final := waitTerminal(t, store, createAction.ID)
	require.Equal(t, types.ActionFailed, final.Status)

	got, err := store.GetCluster(cluster.ID, false)
	require.NoError(t, err)
	require.Equal(t, types.ClusterError, got.Status)
}

// alwaysFailDriver reports CREATE_FAILED on first check, exercising the
// DriverFailure propagation path: NODE_CREATE fails, the cluster's wait on
// its only child sees FAILED, and CLUSTER_CREATE reports ERROR.
type alwaysFailDriver struct{}

func (d *alwaysFailDriver) DoCreate(_ context.Context, node *types.Node) (string, error) {
	return "integration-physical-id", nil
}
func (d *alwaysFailDriver) DoDelete(_ context.Context, node *types.Node) error { return nil }
func (d *alwaysFailDriver) DoUpdate(_ context.Context, node *types.Node, newProfile *types.Profile) error {
	return nil
}
func (d *alwaysFailDriver) DoCheck(_ context.Context, node *types.Node) (profile.Status, error) {
	return profile.Status("CREATE_FAILED"), nil
}
func (d *alwaysFailDriver) DoValidate(_ context.Context, p *types.Profile) error { return nil }
