package engine

import (
	"context"
	"time"

	"github.com/cuemby/clusterd/pkg/clusterlock"
	"github.com/cuemby/clusterd/pkg/profile"
	"github.com/cuemby/clusterd/pkg/types"
)

const driverPollSeconds = 1

func init() {
	RegisterVerb("NODE_CREATE", nodeCreateHandler)
	RegisterVerb("NODE_DELETE", nodeDeleteHandler)
	RegisterVerb("NODE_UPDATE", nodeUpdateHandler)
	RegisterVerb("NODE_JOIN", nodeJoinHandler)
	RegisterVerb("NODE_LEAVE", nodeLeaveHandler)
}

// nodeWork performs a verb's one-time driver call on first entry (DoCreate,
// DoDelete, DoUpdate); the polling loop that follows is shared by every
// verb and lives in runNodeAction.
type nodeWork func(ctx context.Context, eng *Engine, action *types.Action, node *types.Node, drv profile.Driver) error

// nodeApply commits the verb's effect on the node row once the driver
// reports a terminal stage.
type nodeApply func(eng *Engine, node *types.Node, ok bool)

// runNodeAction mirrors runClusterAction with node-scope locking: load the
// node, acquire its lock, call the one-time driver operation, then poll
// DoCheck until it reports COMPLETE or FAILED, rescheduling between polls
// so the dispatcher worker is free to service other actions meanwhile.
func runNodeAction(ctx context.Context, eng *Engine, action *types.Action, wantVerb profile.Verb, work nodeWork, apply nodeApply) {
	node, err := eng.Store.GetNode(action.Target, false)
	if err != nil {
		eng.finishAction(action, types.ActionFailed, "node not found")
		return
	}

	if !eng.Locks.Acquire(clusterlock.ScopeNode, node.ID, action.ID, false) {
		eng.Scheduler.Reschedule(action.ID, lockRetrySeconds)
		return
	}

	prof, err := eng.Store.GetProfile(node.ProfileID)
	if err != nil {
		eng.Locks.Release(clusterlock.ScopeNode, node.ID, action.ID)
		eng.finishAction(action, types.ActionFailed, "profile not found")
		return
	}
	drv, err := profile.Build(prof)
	if err != nil {
		eng.Locks.Release(clusterlock.ScopeNode, node.ID, action.ID)
		eng.finishAction(action, types.ActionFailed, err.Error())
		return
	}

	phase, _ := action.Data["phase"].(string)
	if phase != "dispatched" {
		if action.StartTime.IsZero() {
			action.StartTime = eng.Scheduler.Wallclock()
		}
		action.Status = types.ActionRunning
		_ = eng.Store.UpdateAction(action)

		if err := work(ctx, eng, action, node, drv); err != nil {
			eng.Locks.Release(clusterlock.ScopeNode, node.ID, action.ID)
			eng.finishAction(action, types.ActionFailed, err.Error())
			return
		}
		action.Data["phase"] = "dispatched"
		_ = eng.Store.UpdateAction(action)
	}

	status, err := drv.DoCheck(ctx, node)
	if err != nil {
		eng.Locks.Release(clusterlock.ScopeNode, node.ID, action.ID)
		eng.finishAction(action, types.ActionFailed, err.Error())
		return
	}
	stage, err := status.ExpectVerb(wantVerb)
	if err != nil {
		eng.Locks.Release(clusterlock.ScopeNode, node.ID, action.ID)
		eng.finishAction(action, types.ActionFailed, err.Error())
		return
	}

	switch stage {
	case profile.StageInProgress:
		if action.Timeout > 0 && eng.Scheduler.Wallclock().Sub(action.StartTime) > time.Duration(action.Timeout)*time.Second {
			eng.Locks.Release(clusterlock.ScopeNode, node.ID, action.ID)
			apply(eng, node, false)
			eng.finishAction(action, types.ActionTimeout, "profile driver did not complete within timeout")
			return
		}
		action.Status = types.ActionWaiting
		_ = eng.Store.UpdateAction(action)
		eng.Scheduler.Reschedule(action.ID, driverPollSeconds)
		return
	case profile.StageFailed:
		eng.Locks.Release(clusterlock.ScopeNode, node.ID, action.ID)
		apply(eng, node, false)
		eng.finishAction(action, types.ActionFailed, "profile driver reported failure")
		return
	default: // StageComplete
		eng.Locks.Release(clusterlock.ScopeNode, node.ID, action.ID)
		apply(eng, node, true)
		eng.finishAction(action, types.ActionSucceeded, "")
	}
}

func nodeCreateHandler(ctx context.Context, eng *Engine, action *types.Action) {
	runNodeAction(ctx, eng, action, profile.VerbCreate, nodeCreateWork, func(eng *Engine, node *types.Node, ok bool) {
		if ok {
			node.Status = types.NodeActive
		} else {
			node.Status = types.NodeError
		}
		_ = eng.Store.UpdateNode(node)
	})
}

func nodeCreateWork(ctx context.Context, eng *Engine, action *types.Action, node *types.Node, drv profile.Driver) error {
	node.Status = types.NodeCreating
	_ = eng.Store.UpdateNode(node)

	physicalID, err := drv.DoCreate(ctx, node)
	if err != nil {
		return err
	}
	node.PhysicalID = physicalID
	return eng.Store.UpdateNode(node)
}

func nodeDeleteHandler(ctx context.Context, eng *Engine, action *types.Action) {
	runNodeAction(ctx, eng, action, profile.VerbDelete, nodeDeleteWork, func(eng *Engine, node *types.Node, ok bool) {
		if ok {
			node.ClusterID = ""
			_ = eng.Store.UpdateNode(node)
			_ = eng.Store.SoftDeleteNode(node.ID, eng.Scheduler.Wallclock().Unix())
		} else {
			node.Status = types.NodeError
			_ = eng.Store.UpdateNode(node)
		}
	})
}

func nodeDeleteWork(ctx context.Context, eng *Engine, action *types.Action, node *types.Node, drv profile.Driver) error {
	node.Status = types.NodeDeleting
	_ = eng.Store.UpdateNode(node)
	return drv.DoDelete(ctx, node)
}

func nodeUpdateHandler(ctx context.Context, eng *Engine, action *types.Action) {
	runNodeAction(ctx, eng, action, profile.VerbUpdate, nodeUpdateWork, func(eng *Engine, node *types.Node, ok bool) {
		if ok {
			node.Status = types.NodeActive
		} else {
			node.Status = types.NodeError
		}
		_ = eng.Store.UpdateNode(node)
	})
}

func nodeUpdateWork(ctx context.Context, eng *Engine, action *types.Action, node *types.Node, drv profile.Driver) error {
	newProfileID, _ := action.Inputs["new_profile_id"].(string)
	newProfile, err := eng.Store.GetProfile(newProfileID)
	if err != nil {
		return err
	}

	node.Status = types.NodeUpdating
	_ = eng.Store.UpdateNode(node)

	if err := drv.DoUpdate(ctx, node, newProfile); err != nil {
		return err
	}
	node.ProfileID = newProfileID
	return eng.Store.UpdateNode(node)
}

// nodeJoinHandler sets cluster_id only after the profile driver confirms
// the join completed; nodeJoinWork stages the target cluster id on the
// node's Data map so the poll loop can commit it once DoCheck reports
// COMPLETE.
func nodeJoinHandler(ctx context.Context, eng *Engine, action *types.Action) {
	runNodeAction(ctx, eng, action, profile.VerbUpdate, nodeJoinWork, func(eng *Engine, node *types.Node, ok bool) {
		if ok {
			node.ClusterID = node.Data["_pending_cluster_id"]
			delete(node.Data, "_pending_cluster_id")
			node.Status = types.NodeActive
		} else {
			node.Status = types.NodeError
		}
		_ = eng.Store.UpdateNode(node)
	})
}

func nodeJoinWork(ctx context.Context, eng *Engine, action *types.Action, node *types.Node, drv profile.Driver) error {
	clusterID, _ := action.Inputs["cluster_id"].(string)
	node.Status = types.NodeJoining
	if node.Data == nil {
		node.Data = map[string]string{}
	}
	node.Data["_pending_cluster_id"] = clusterID
	_ = eng.Store.UpdateNode(node)
	return drv.DoUpdate(ctx, node, nil)
}

// nodeLeaveHandler clears cluster_id but never destroys the backing
// artifact, even when destroy_after_delete was requested by the caller.
// NODE_DELETE always destroys it; neither verb reads that input.
func nodeLeaveHandler(ctx context.Context, eng *Engine, action *types.Action) {
	runNodeAction(ctx, eng, action, profile.VerbUpdate, nodeLeaveWork, func(eng *Engine, node *types.Node, ok bool) {
		if ok {
			node.ClusterID = ""
			node.Status = types.NodeActive
		} else {
			node.Status = types.NodeError
		}
		_ = eng.Store.UpdateNode(node)
	})
}

func nodeLeaveWork(ctx context.Context, eng *Engine, action *types.Action, node *types.Node, drv profile.Driver) error {
	node.Status = types.NodeLeaving
	_ = eng.Store.UpdateNode(node)
	return drv.DoUpdate(ctx, node, nil)
}
