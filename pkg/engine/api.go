package engine

import (
	"github.com/cuemby/clusterd/pkg/types"
)

// This file is the Go-native expression of the RPC surface in spec.md §6's
// cluster group: each exported method submits one user-caused action and
// returns immediately with the driving action, the way warren's manager
// RPCs hand back a ticket the caller polls. The out-of-scope transport
// (REST/gRPC front-end) would marshal these straight onto the wire; this
// repo stops at the Go interface since §1 explicitly excludes the
// transport.

// CreateCluster submits CLUSTER_CREATE for an already-persisted cluster
// row (cluster rows are written by the entity-store caller, not here,
// since the cluster's name/profile/size must be validated before any
// action exists to act on them).
func (eng *Engine) CreateCluster(clusterID string) (*types.Action, error) {
	return eng.submitAction(clusterID, "CLUSTER_CREATE", nil)
}

// UpdateCluster submits CLUSTER_UPDATE, moving the cluster onto newProfileID.
func (eng *Engine) UpdateCluster(clusterID, newProfileID string) (*types.Action, error) {
	return eng.submitAction(clusterID, "CLUSTER_UPDATE", map[string]interface{}{
		"new_profile_id": newProfileID,
	})
}

// DeleteCluster submits CLUSTER_DELETE.
func (eng *Engine) DeleteCluster(clusterID string) (*types.Action, error) {
	return eng.submitAction(clusterID, "CLUSTER_DELETE", nil)
}

// AddNodes submits CLUSTER_ADD_NODES for the given existing node ids.
func (eng *Engine) AddNodes(clusterID string, nodeIDs []string) (*types.Action, error) {
	return eng.submitAction(clusterID, "CLUSTER_ADD_NODES", map[string]interface{}{
		"nodes": nodeIDs,
	})
}

// DelNodes submits CLUSTER_DEL_NODES for the given node ids, which leave
// (not destroy) their backing resource.
func (eng *Engine) DelNodes(clusterID string, nodeIDs []string) (*types.Action, error) {
	return eng.submitAction(clusterID, "CLUSTER_DEL_NODES", map[string]interface{}{
		"nodes": nodeIDs,
	})
}

// ScaleOut submits CLUSTER_SCALE_OUT. count of 0 defers to an attached
// creation policy's count, falling back to 1.
func (eng *Engine) ScaleOut(clusterID string, count int) (*types.Action, error) {
	return eng.submitAction(clusterID, "CLUSTER_SCALE_OUT", map[string]interface{}{
		"count": count,
	})
}

// ScaleIn submits CLUSTER_SCALE_IN. count of 0 defers to an attached
// deletion policy's count, falling back to 1.
func (eng *Engine) ScaleIn(clusterID string, count int) (*types.Action, error) {
	return eng.submitAction(clusterID, "CLUSTER_SCALE_IN", map[string]interface{}{
		"count": count,
	})
}

// AttachPolicy submits CLUSTER_ATTACH_POLICY.
func (eng *Engine) AttachPolicy(clusterID, policyID string, priority int) (*types.Action, error) {
	return eng.submitAction(clusterID, "CLUSTER_ATTACH_POLICY", map[string]interface{}{
		"policy_id": policyID,
		"priority":  priority,
	})
}

// DetachPolicy submits CLUSTER_DETACH_POLICY.
func (eng *Engine) DetachPolicy(clusterID, policyID string) (*types.Action, error) {
	return eng.submitAction(clusterID, "CLUSTER_DETACH_POLICY", map[string]interface{}{
		"policy_id": policyID,
	})
}

// UpdatePolicyBinding submits CLUSTER_UPDATE_POLICY. Only the fields set
// among priority/level/cooldown/enabled are applied, matching spec.md
// §4.E's "copies only the fields present in inputs".
func (eng *Engine) UpdatePolicyBinding(clusterID, policyID string, priority, level, cooldown *int, enabled *bool) (*types.Action, error) {
	inputs := map[string]interface{}{"policy_id": policyID}
	if priority != nil {
		inputs["priority"] = *priority
	}
	if level != nil {
		inputs["level"] = *level
	}
	if cooldown != nil {
		inputs["cooldown"] = *cooldown
	}
	if enabled != nil {
		inputs["enabled"] = *enabled
	}
	return eng.submitAction(clusterID, "CLUSTER_UPDATE_POLICY", inputs)
}

// Cancel sets actionID's Cancelled flag (and its reason, when given); the
// status is left as it is. A cluster action observes the flag the next
// time it checks its dependents and then ends CANCELLED; node actions do
// not read it. In-flight work is not synchronously interrupted.
func (eng *Engine) Cancel(actionID, reason string) error {
	a, err := eng.Store.GetAction(actionID)
	if err != nil {
		return err
	}
	if a.Status.Terminal() {
		return nil
	}
	a.Cancelled = true
	if reason != "" {
		a.Reason = reason
	}
	return eng.Store.UpdateAction(a)
}
