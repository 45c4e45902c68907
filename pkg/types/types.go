package types

import "time"

// Cluster is a named collection of nodes realized from a shared profile.
type Cluster struct {
	ID        string
	Name      string
	ProjectID string
	ProfileID string
	Size      int
	Timeout   int // seconds
	Status    ClusterStatus
	Reason    string
	ParentID  string // optional parent cluster, for nested clusters
	Tags      map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// ClusterStatus is the lifecycle state of a Cluster.
type ClusterStatus string

const (
	ClusterInit     ClusterStatus = "INIT"
	ClusterCreating ClusterStatus = "CREATING"
	ClusterActive   ClusterStatus = "ACTIVE"
	ClusterUpdating ClusterStatus = "UPDATING"
	ClusterDeleting ClusterStatus = "DELETING"
	ClusterError    ClusterStatus = "ERROR"
	ClusterDeleted  ClusterStatus = "DELETED"
)

// Node is a single member of a cluster, backed by a physical resource
// realized through the cluster's profile driver.
type Node struct {
	ID         string
	Name       string
	ClusterID  string // empty when the node belongs to no cluster
	Index      int    // monotone per cluster, never reused
	ProfileID  string
	Role       string
	Status     NodeStatus
	Reason     string
	PhysicalID string // opaque handle returned by the profile driver
	Tags       map[string]string
	Data       map[string]string // arbitrary hints, e.g. placement
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  *time.Time
}

// NodeStatus is the lifecycle state of a Node.
type NodeStatus string

const (
	NodeInit     NodeStatus = "INIT"
	NodeCreating NodeStatus = "CREATING"
	NodeActive   NodeStatus = "ACTIVE"
	NodeUpdating NodeStatus = "UPDATING"
	NodeDeleting NodeStatus = "DELETING"
	NodeError    NodeStatus = "ERROR"
	NodeLeaving  NodeStatus = "LEAVING"
	NodeJoining  NodeStatus = "JOINING"
	NodeDeleted  NodeStatus = "DELETED"
)

// Profile is an immutable template describing how to realize one node.
// Once referenced by a live cluster or node, it must not be mutated in place;
// callers create a new Profile row instead.
type Profile struct {
	ID        string
	Name      string
	ProjectID string
	Type      string // resolved via the driver registry, e.g. "heat_stack", "vm"
	Spec      map[string]interface{}
	CreatedAt time.Time
	DeletedAt *time.Time
}

// Policy is a named, typed rule set that can be attached to clusters.
type Policy struct {
	ID        string
	Name      string
	ProjectID string
	Type      string // resolved via the policy registry, e.g. "deletion"
	Level     int    // severity/ordering hint a binding falls back to when unset
	Cooldown  int    // seconds, minimum gap between two triggers of this policy
	Spec      map[string]interface{}
	CreatedAt time.Time
	DeletedAt *time.Time
}

// ClusterPolicy is the binding of a Policy to a Cluster. Level and Cooldown
// default to the Policy's own values at attach time but may be overridden
// per binding.
type ClusterPolicy struct {
	ClusterID string
	PolicyID  string
	Priority  int
	Level     int
	Cooldown  int
	Enabled   bool
	CreatedAt time.Time
}

// Cause records how an Action came to exist.
type Cause string

const (
	CauseUser    Cause = "USER"
	CauseDerived Cause = "DERIVED"
	CauseRPC     Cause = "RPC"
)

// ActionStatus is the lifecycle state of an Action.
type ActionStatus string

const (
	ActionInit      ActionStatus = "INIT"
	ActionWaiting   ActionStatus = "WAITING"
	ActionReady     ActionStatus = "READY"
	ActionRunning   ActionStatus = "RUNNING"
	ActionSucceeded ActionStatus = "SUCCEEDED"
	ActionFailed    ActionStatus = "FAILED"
	ActionCancelled ActionStatus = "CANCELLED"
	ActionTimeout   ActionStatus = "TIMEOUT"
)

// Terminal reports whether s is one a waiting parent can stop polling on.
func (s ActionStatus) Terminal() bool {
	switch s {
	case ActionSucceeded, ActionFailed, ActionCancelled, ActionTimeout:
		return true
	default:
		return false
	}
}

// Action is the unit of scheduled work dispatched against a cluster or node.
type Action struct {
	ID         string
	Name       string
	Target     string // cluster or node id
	Action     string // verb, e.g. CLUSTER_SCALE_IN
	Cause      Cause
	Owner      string // worker id currently holding the action, empty when unclaimed
	Inputs     map[string]interface{}
	Outputs    map[string]interface{}
	Data       map[string]interface{} // shared policy_data envelope
	Status     ActionStatus
	Reason     string
	StartTime  time.Time
	EndTime    time.Time
	Timeout    int // seconds, 0 means inherit cluster default
	DependsOn  []string
	DependedBy []string
	Cancelled  bool
	CreatedAt  time.Time
	DeletedAt  *time.Time
}

// Event is an append-only record of a status transition, independent of the
// mutable Cluster/Node/Action rows it describes.
type Event struct {
	ID        string
	Timestamp time.Time
	ObjID     string // cluster/node/action id
	ObjType   string // "cluster", "node", "action"
	ObjName   string
	Action    string
	Status    string
	Reason    string
}
