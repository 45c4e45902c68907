// Package e2e drives a full in-process Engine through the scenarios
// enumerated in spec.md §8, the same role warren's test/e2e plays against
// a live manager process — here the "process" is the embedded engine,
// since the RPC transport is out of scope per spec.md §1.
package e2e

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/clusterd/pkg/engine"
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
	p := &types.Profile{ID: uuid.NewString(), Name: "e2e-profile", Type: "memory", CreatedAt: time.Now()}
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

// Scenario 4: concurrent update + delete on the same cluster — DELETE
// preempts (forced lock), UPDATE transitions to CANCELLED with a reason
// mentioning preemption, and the cluster reaches DELETED.
func TestScenario_ConcurrentUpdateAndDelete_DeletePreempts(t *testing.T) {
	eng, store := newEngine(t)
	prof := mustProfile(t, store)
	newProf := mustProfile(t, store)

	cluster := &types.Cluster{ID: uuid.NewString(), Name: "preempt", ProfileID: prof.ID, Size: 2, Status: types.ClusterInit, CreatedAt: time.Now()}
	require.NoError(t, store.CreateCluster(cluster))

	createAction, err := eng.CreateCluster(cluster.ID)
	require.NoError(t, err)
	waitTerminal(t, store, createAction.ID)

	// Submit UPDATE first; it acquires the cluster lock unforced. Submit
	// DELETE immediately after; CLUSTER_DELETE always acquires forced, so
	// it evicts UPDATE's hold the moment UPDATE is holding (or about to
	// hold) the lock.
	updateAction, err := eng.UpdateCluster(cluster.ID, newProf.ID)
	require.NoError(t, err)
	deleteAction, err := eng.DeleteCluster(cluster.ID)
	require.NoError(t, err)

	finalDelete := waitTerminal(t, store, deleteAction.ID)
	finalUpdate := waitTerminal(t, store, updateAction.ID)

	require.Equal(t, types.ActionSucceeded, finalDelete.Status)
	// UPDATE either never got the lock (and failed locking, retried, then
	// lost to DELETE once DELETE deleted the cluster) or got preempted
	// mid-flight; either way it must not SUCCEED once DELETE has run.
	require.NotEqual(t, types.ActionSucceeded, finalUpdate.Status)
	if finalUpdate.Status == types.ActionCancelled {
		require.Contains(t, finalUpdate.Reason, "preempt")
	}

	_, err = store.GetCluster(cluster.ID, false)
	require.Error(t, err, "cluster must be DELETED (soft-deleted) once DELETE wins")
}

// Scenario 6: add-nodes validation — adding three nodes where one already
// belongs to another cluster returns RES_ERROR with a per-node failure
// map and spawns no children for any of the three.
func TestScenario_AddNodesValidation_RejectsWhenOneNodeIsOwnedElsewhere(t *testing.T) {
	eng, store := newEngine(t)
	prof := mustProfile(t, store)

	target := &types.Cluster{ID: uuid.NewString(), Name: "target", ProfileID: prof.ID, Size: 0, Status: types.ClusterActive, CreatedAt: time.Now()}
	require.NoError(t, store.CreateCluster(target))

	other := &types.Cluster{ID: uuid.NewString(), Name: "other", ProfileID: prof.ID, Size: 1, Status: types.ClusterInit, CreatedAt: time.Now()}
	require.NoError(t, store.CreateCluster(other))
	otherCreate, err := eng.CreateCluster(other.ID)
	require.NoError(t, err)
	waitTerminal(t, store, otherCreate.ID)

	ownedElsewhere, err := store.ListNodesByCluster(other.ID, false)
	require.NoError(t, err)
	require.Len(t, ownedElsewhere, 1)
	nodeB := ownedElsewhere[0]

	freeA := &types.Node{ID: uuid.NewString(), Name: "free-a", ProfileID: prof.ID, Status: types.NodeActive, Tags: map[string]string{}, Data: map[string]string{}, CreatedAt: time.Now()}
	require.NoError(t, store.CreateNode(freeA))
	freeC := &types.Node{ID: uuid.NewString(), Name: "free-c", ProfileID: prof.ID, Status: types.NodeActive, Tags: map[string]string{}, Data: map[string]string{}, CreatedAt: time.Now()}
	require.NoError(t, store.CreateNode(freeC))

	before, err := store.ListActionsByTarget(freeA.ID)
	require.NoError(t, err)
	require.Empty(t, before)

	addAction, err := eng.AddNodes(target.ID, []string{freeA.ID, nodeB.ID, freeC.ID})
	require.NoError(t, err)
	final := waitTerminal(t, store, addAction.ID)
	require.Equal(t, types.ActionFailed, final.Status)

	failures, _ := final.Outputs["failures"].(map[string]interface{})
	require.Contains(t, failures, nodeB.ID)

	// No NODE_JOIN child was created for any of the three nodes: a hard
	// rejection on one id aborts the whole batch per spec.md §4.E.
	for _, id := range []string{freeA.ID, nodeB.ID, freeC.ID} {
		actions, err := store.ListActionsByTarget(id)
		require.NoError(t, err)
		for _, a := range actions {
			require.NotEqual(t, "NODE_JOIN", a.Action)
		}
	}
}
