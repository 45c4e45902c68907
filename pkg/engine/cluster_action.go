package engine

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/cuemby/clusterd/pkg/clustererr"
	"github.com/cuemby/clusterd/pkg/clusterlock"
	"github.com/cuemby/clusterd/pkg/policy"
	"github.com/cuemby/clusterd/pkg/profile"
	"github.com/cuemby/clusterd/pkg/types"
)

func init() {
	RegisterVerb("CLUSTER_CREATE", clusterCreateHandler)
	RegisterVerb("CLUSTER_DELETE", clusterDeleteHandler)
	RegisterVerb("CLUSTER_UPDATE", clusterUpdateHandler)
	RegisterVerb("CLUSTER_ADD_NODES", clusterAddNodesHandler)
	RegisterVerb("CLUSTER_DEL_NODES", clusterDelNodesHandler)
	RegisterVerb("CLUSTER_SCALE_OUT", clusterScaleOutHandler)
	RegisterVerb("CLUSTER_SCALE_IN", clusterScaleInHandler)
	RegisterVerb("CLUSTER_ATTACH_POLICY", clusterAttachPolicyHandler)
	RegisterVerb("CLUSTER_DETACH_POLICY", clusterDetachPolicyHandler)
	RegisterVerb("CLUSTER_UPDATE_POLICY", clusterUpdatePolicyHandler)
}

// clusterWork performs a verb's one-time side effects (spawning children,
// mutating the cluster row) on first entry. It runs exactly once per
// action, guarded by action.Data["phase"].
type clusterWork func(ctx context.Context, eng *Engine, action *types.Action, cluster *types.Cluster, before *policy.Envelope) error

// clusterApply commits the verb's final effect on cluster once its result
// is known (terminal, not waiting).
type clusterApply func(eng *Engine, cluster *types.Cluster, result waitResult, reason string)

// runClusterAction is the shared envelope every CLUSTER_* verb follows:
// load the target, acquire the cluster lock (forced for CLUSTER_DELETE),
// run policy BEFORE, do the verb-specific work once, wait for any spawned
// dependents, run policy AFTER, release the lock, and apply the final
// result to the cluster row.
func runClusterAction(ctx context.Context, eng *Engine, action *types.Action, forced bool, work clusterWork, apply clusterApply) {
	cluster, err := eng.Store.GetCluster(action.Target, false)
	if err != nil {
		eng.finishAction(action, types.ActionFailed, "cluster not found")
		return
	}

	if !eng.Locks.Acquire(clusterlock.ScopeCluster, cluster.ID, action.ID, forced) {
		eng.Scheduler.Reschedule(action.ID, lockRetrySeconds)
		return
	}

	phase, _ := action.Data["phase"].(string)
	if phase != "spawned" {
		if action.StartTime.IsZero() {
			action.StartTime = eng.Scheduler.Wallclock()
		}
		action.Status = types.ActionRunning
		_ = eng.Store.UpdateAction(action)

		before, err := eng.Policies.Run(ctx, cluster.ID, policy.PhaseBefore, action)
		if err != nil {
			eng.Locks.Release(clusterlock.ScopeCluster, cluster.ID, action.ID)
			eng.finishAction(action, types.ActionFailed, err.Error())
			return
		}
		if before.Failed() {
			eng.Locks.Release(clusterlock.ScopeCluster, cluster.ID, action.ID)
			eng.finishAction(action, types.ActionFailed, before.Reason)
			return
		}

		if err := work(ctx, eng, action, cluster, before); err != nil {
			eng.Locks.Release(clusterlock.ScopeCluster, cluster.ID, action.ID)
			eng.finishAction(action, types.ActionFailed, err.Error())
			return
		}

		action.Data["phase"] = "spawned"
		_ = eng.Store.UpdateAction(action)
	}

	result, reason, waiting := eng.waitForDependents(action)
	if waiting {
		return
	}

	after, err := eng.Policies.Run(ctx, cluster.ID, policy.PhaseAfter, action)
	if err != nil {
		result, reason = waitError, err.Error()
	} else if after.Failed() {
		result, reason = waitError, after.Reason
	}

	eng.Locks.Release(clusterlock.ScopeCluster, cluster.ID, action.ID)
	apply(eng, cluster, result, reason)
	eng.finishForResult(action, result, reason)
}

func clusterCreateHandler(ctx context.Context, eng *Engine, action *types.Action) {
	runClusterAction(ctx, eng, action, false, clusterCreateWork, clusterSimpleApply)
}

func clusterCreateWork(ctx context.Context, eng *Engine, action *types.Action, cluster *types.Cluster, before *policy.Envelope) error {
	prof, err := eng.Store.GetProfile(cluster.ProfileID)
	if err != nil {
		return err
	}
	drv, err := profile.Build(prof)
	if err != nil {
		return err
	}
	if err := drv.DoValidate(ctx, prof); err != nil {
		return clustererr.DriverFailure(cluster.ID, "cluster-level artifact validation failed", err)
	}

	cluster.Status = types.ClusterCreating
	_ = eng.Store.UpdateCluster(cluster)

	placement, _ := before.Data["placement"].(map[string]interface{})

	for i := 1; i <= cluster.Size; i++ {
		node := &types.Node{
			ID:        uuid.NewString(),
			Name:      fmt.Sprintf("%s-%d", cluster.Name, i),
			ClusterID: cluster.ID,
			Index:     i,
			ProfileID: cluster.ProfileID,
			Status:    types.NodeInit,
			Tags:      map[string]string{},
			Data:      map[string]string{},
			CreatedAt: eng.Scheduler.Wallclock(),
		}
		if placement != nil {
			if p, ok := placement[fmt.Sprint(i)].(string); ok {
				node.Data["placement"] = p
			}
		}
		if err := eng.Store.CreateNode(node); err != nil {
			return err
		}
		if _, err := eng.spawnChild(action, node.ID, "NODE_CREATE", nil); err != nil {
			return err
		}
	}
	return nil
}

func clusterDeleteHandler(ctx context.Context, eng *Engine, action *types.Action) {
	runClusterAction(ctx, eng, action, true, clusterDeleteWork, func(eng *Engine, cluster *types.Cluster, result waitResult, reason string) {
		if result == waitOK {
			_ = eng.Store.SoftDeleteCluster(cluster.ID, eng.Scheduler.Wallclock().Unix())
			return
		}
		cluster.Status = types.ClusterActive
		cluster.Reason = reason
		_ = eng.Store.UpdateCluster(cluster)
	})
}

func clusterDeleteWork(ctx context.Context, eng *Engine, action *types.Action, cluster *types.Cluster, before *policy.Envelope) error {
	cluster.Status = types.ClusterDeleting
	_ = eng.Store.UpdateCluster(cluster)

	nodes, err := eng.Store.ListNodesByCluster(cluster.ID, false)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		if _, err := eng.spawnChild(action, n.ID, "NODE_DELETE", map[string]interface{}{"destroy_after_delete": true}); err != nil {
			return err
		}
	}
	return nil
}

func clusterUpdateHandler(ctx context.Context, eng *Engine, action *types.Action) {
	runClusterAction(ctx, eng, action, false, clusterUpdateWork, clusterSimpleApply)
}

func clusterUpdateWork(ctx context.Context, eng *Engine, action *types.Action, cluster *types.Cluster, before *policy.Envelope) error {
	newProfileID, _ := action.Inputs["new_profile_id"].(string)
	if newProfileID == "" {
		return clustererr.ValidationFailed("CLUSTER_UPDATE requires inputs.new_profile_id")
	}
	if _, err := eng.Store.GetProfile(newProfileID); err != nil {
		return err
	}

	cluster.Status = types.ClusterUpdating
	cluster.ProfileID = newProfileID
	_ = eng.Store.UpdateCluster(cluster)

	nodes, err := eng.Store.ListNodesByCluster(cluster.ID, false)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		inputs := map[string]interface{}{"new_profile_id": newProfileID}
		if _, err := eng.spawnChild(action, n.ID, "NODE_UPDATE", inputs); err != nil {
			return err
		}
	}
	return nil
}

func clusterAddNodesHandler(ctx context.Context, eng *Engine, action *types.Action) {
	runClusterAction(ctx, eng, action, false, clusterAddNodesWork, clusterSimpleApply)
}

func clusterAddNodesWork(ctx context.Context, eng *Engine, action *types.Action, cluster *types.Cluster, before *policy.Envelope) error {
	rawIDs, _ := types.StringSliceInput(action.Inputs, "nodes")

	// Two-pass validation: the first pass only reads node state and
	// classifies each id, the second pass spawns children for the ids
	// that passed. Mutating the candidate list while classifying it (as a
	// single combined pass would) drops entries when a rejection shifts
	// later indices.
	var toJoin []*types.Node
	failures := make(map[string]string)
	for _, id := range rawIDs {
		node, err := eng.Store.GetNode(id, false)
		if err != nil {
			failures[id] = "not found"
			continue
		}
		if node.ClusterID == cluster.ID {
			continue // already in this cluster: skipped silently
		}
		if node.ClusterID != "" {
			failures[id] = "already belongs to another cluster"
			continue
		}
		if node.Status != types.NodeActive {
			failures[id] = "node is not ACTIVE"
			continue
		}
		prof, err := eng.Store.GetProfile(node.ProfileID)
		if err != nil {
			failures[id] = "profile not found"
			continue
		}
		clusterProf, err := eng.Store.GetProfile(cluster.ProfileID)
		if err != nil {
			return err
		}
		if prof.Type != clusterProf.Type {
			failures[id] = "profile type mismatch"
			continue
		}
		toJoin = append(toJoin, node)
	}

	if len(failures) > 0 {
		action.Outputs = map[string]interface{}{"failures": failures}
		_ = eng.Store.UpdateAction(action)
		return clustererr.ValidationFailed("one or more nodes failed CLUSTER_ADD_NODES validation")
	}

	for _, n := range toJoin {
		if _, err := eng.spawnChild(action, n.ID, "NODE_JOIN", map[string]interface{}{"cluster_id": cluster.ID}); err != nil {
			return err
		}
	}
	return nil
}

func clusterDelNodesHandler(ctx context.Context, eng *Engine, action *types.Action) {
	runClusterAction(ctx, eng, action, false, clusterDelNodesWork, clusterSimpleApply)
}

func clusterDelNodesWork(ctx context.Context, eng *Engine, action *types.Action, cluster *types.Cluster, before *policy.Envelope) error {
	rawIDs, _ := types.StringSliceInput(action.Inputs, "nodes")
	for _, id := range rawIDs {
		node, err := eng.Store.GetNode(id, false)
		if err != nil {
			continue // silently drop ids that no longer exist
		}
		if node.ClusterID == "" {
			continue // already outside a cluster: silently dropped
		}
		if _, err := eng.spawnChild(action, node.ID, "NODE_LEAVE", map[string]interface{}{"destroy_after_delete": false}); err != nil {
			return err
		}
	}
	return nil
}

func clusterScaleOutHandler(ctx context.Context, eng *Engine, action *types.Action) {
	runClusterAction(ctx, eng, action, false, clusterScaleOutWork, clusterSimpleApply)
}

func clusterScaleOutWork(ctx context.Context, eng *Engine, action *types.Action, cluster *types.Cluster, before *policy.Envelope) error {
	count, _ := types.IntInput(action.Inputs, "count")
	if count == 0 {
		if creation, ok := before.Data["creation"].(map[string]interface{}); ok {
			if c, ok := types.IntInput(creation, "count"); ok {
				count = c
			}
		}
	}
	if count == 0 {
		count = 1
	}

	startIndex := cluster.Size + 1
	for i := 0; i < count; i++ {
		idx := startIndex + i
		node := &types.Node{
			ID:        uuid.NewString(),
			Name:      fmt.Sprintf("%s-%d", cluster.Name, idx),
			ClusterID: cluster.ID,
			Index:     idx,
			ProfileID: cluster.ProfileID,
			Status:    types.NodeInit,
			Tags:      map[string]string{},
			Data:      map[string]string{},
			CreatedAt: eng.Scheduler.Wallclock(),
		}
		if err := eng.Store.CreateNode(node); err != nil {
			return err
		}
		if _, err := eng.spawnChild(action, node.ID, "NODE_CREATE", nil); err != nil {
			return err
		}
	}
	cluster.Size += count
	_ = eng.Store.UpdateCluster(cluster)
	return nil
}

func clusterScaleInHandler(ctx context.Context, eng *Engine, action *types.Action) {
	runClusterAction(ctx, eng, action, false, clusterScaleInWork, clusterSimpleApply)
}

func clusterScaleInWork(ctx context.Context, eng *Engine, action *types.Action, cluster *types.Cluster, before *policy.Envelope) error {
	count, _ := types.IntInput(action.Inputs, "count")
	if count == 0 {
		if deletion, ok := before.Data["deletion"].(map[string]interface{}); ok {
			if c, ok := types.IntInput(deletion, "count"); ok {
				count = c
			}
		}
	}
	if count == 0 {
		count = 1
	}

	var candidates []*types.Node
	if deletion, ok := before.Data["deletion"].(map[string]interface{}); ok {
		if c, ok := deletion["candidates"].([]*types.Node); ok {
			candidates = c
		}
	}

	if candidates == nil {
		nodes, err := eng.Store.ListNodesByCluster(cluster.ID, false)
		if err != nil {
			return err
		}
		if count > len(nodes) {
			count = len(nodes)
		}
		pool := append([]*types.Node(nil), nodes...)
		for i := 0; i < count && len(pool) > 0; i++ {
			idx := rand.Intn(len(pool))
			candidates = append(candidates, pool[idx])
			pool = append(pool[:idx], pool[idx+1:]...)
		}
	}

	destroyAfterDelete := true
	reduceDesiredCapacity := true
	if deletion, ok := before.Data["deletion"].(map[string]interface{}); ok {
		if d, ok := deletion["destroy_after_deletion"].(bool); ok {
			destroyAfterDelete = d
		}
		if r, ok := deletion["reduce_desired_capacity"].(bool); ok {
			reduceDesiredCapacity = r
		}
	}

	for _, n := range candidates {
		if _, err := eng.spawnChild(action, n.ID, "NODE_DELETE", map[string]interface{}{"destroy_after_delete": destroyAfterDelete}); err != nil {
			return err
		}
	}
	// reduce_desired_capacity=false leaves cluster.Size untouched; nothing
	// in the engine recreates the deleted nodes afterwards.
	if reduceDesiredCapacity {
		cluster.Size -= len(candidates)
		if cluster.Size < 0 {
			cluster.Size = 0
		}
	}
	_ = eng.Store.UpdateCluster(cluster)
	return nil
}

func clusterSimpleApply(eng *Engine, cluster *types.Cluster, result waitResult, reason string) {
	if result == waitOK {
		cluster.Status = types.ClusterActive
		cluster.Reason = ""
	} else {
		cluster.Status = types.ClusterError
		cluster.Reason = reason
	}
	_ = eng.Store.UpdateCluster(cluster)
}

func clusterAttachPolicyHandler(ctx context.Context, eng *Engine, action *types.Action) {
	runClusterAction(ctx, eng, action, false, clusterAttachPolicyWork, clusterSimpleApply)
}

func clusterAttachPolicyWork(ctx context.Context, eng *Engine, action *types.Action, cluster *types.Cluster, before *policy.Envelope) error {
	policyID, _ := action.Inputs["policy_id"].(string)
	if policyID == "" {
		return clustererr.ValidationFailed("CLUSTER_ATTACH_POLICY requires inputs.policy_id")
	}

	if existing, err := eng.Store.GetClusterPolicy(cluster.ID, policyID); err == nil && existing != nil {
		return nil // idempotent: same binding already attached
	}

	newPolicy, err := eng.Store.GetPolicy(policyID)
	if err != nil {
		return err
	}

	bindings, err := eng.Store.ListClusterPolicies(cluster.ID)
	if err != nil {
		return err
	}
	for _, b := range bindings {
		existingPolicy, err := eng.Store.GetPolicy(b.PolicyID)
		if err == nil && existingPolicy.Type == newPolicy.Type {
			return clustererr.Conflict(cluster.ID, fmt.Sprintf("a policy of type %q is already attached", newPolicy.Type))
		}
	}

	impl, err := policy.Build(newPolicy)
	if err != nil {
		return err
	}
	if impl != nil {
		if err := impl.Attach(ctx, cluster.ID, newPolicy.Spec); err != nil {
			return err
		}
	}

	priority := 50
	if p, ok := types.IntInput(action.Inputs, "priority"); ok {
		priority = p
	}
	level := newPolicy.Level
	if l, ok := types.IntInput(action.Inputs, "level"); ok {
		level = l
	}
	cooldown := newPolicy.Cooldown
	if c, ok := types.IntInput(action.Inputs, "cooldown"); ok {
		cooldown = c
	}
	return eng.Store.AttachPolicy(&types.ClusterPolicy{
		ClusterID: cluster.ID,
		PolicyID:  policyID,
		Priority:  priority,
		Level:     level,
		Cooldown:  cooldown,
		Enabled:   true,
		CreatedAt: eng.Scheduler.Wallclock(),
	})
}

func clusterDetachPolicyHandler(ctx context.Context, eng *Engine, action *types.Action) {
	runClusterAction(ctx, eng, action, false, clusterDetachPolicyWork, clusterSimpleApply)
}

func clusterDetachPolicyWork(ctx context.Context, eng *Engine, action *types.Action, cluster *types.Cluster, before *policy.Envelope) error {
	policyID, _ := action.Inputs["policy_id"].(string)
	if policyID == "" {
		return clustererr.ValidationFailed("CLUSTER_DETACH_POLICY requires inputs.policy_id")
	}
	if pol, err := eng.Store.GetPolicy(policyID); err == nil {
		if impl, err := policy.Build(pol); err == nil && impl != nil {
			_ = impl.Detach(ctx, cluster.ID)
		}
	}
	return eng.Store.DetachPolicy(cluster.ID, policyID)
}

func clusterUpdatePolicyHandler(ctx context.Context, eng *Engine, action *types.Action) {
	runClusterAction(ctx, eng, action, false, clusterUpdatePolicyWork, clusterSimpleApply)
}

func clusterUpdatePolicyWork(ctx context.Context, eng *Engine, action *types.Action, cluster *types.Cluster, before *policy.Envelope) error {
	policyID, _ := action.Inputs["policy_id"].(string)
	if policyID == "" {
		return clustererr.ValidationFailed("CLUSTER_UPDATE_POLICY requires inputs.policy_id")
	}
	cp, err := eng.Store.GetClusterPolicy(cluster.ID, policyID)
	if err != nil {
		return err
	}
	if p, ok := types.IntInput(action.Inputs, "priority"); ok {
		cp.Priority = p
	}
	if l, ok := types.IntInput(action.Inputs, "level"); ok {
		cp.Level = l
	}
	if c, ok := types.IntInput(action.Inputs, "cooldown"); ok {
		cp.Cooldown = c
	}
	if e, ok := action.Inputs["enabled"].(bool); ok {
		cp.Enabled = e
	}
	return eng.Store.UpdateClusterPolicy(cp)
}
