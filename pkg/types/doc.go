/*
Package types defines the core data structures shared across clusterd.

This package contains the domain model used by every other package: clusters,
nodes, profiles, policies, cluster-policy bindings, actions, and events. These
types carry no behavior of their own; they are the shapes that pkg/storage
persists, pkg/engine operates on, and cmd/clusterd reports.

# Core Types

Cluster Topology:
  - Cluster: a named collection of nodes realized from a shared profile
  - ClusterStatus: INIT, CREATING, ACTIVE, UPDATING, DELETING, ERROR, DELETED
  - Node: a single member of a cluster, backed by a profile-driven resource
  - NodeStatus: INIT, CREATING, ACTIVE, UPDATING, DELETING, ERROR, JOINING, LEAVING, DELETED

Templates and Rules:
  - Profile: an immutable template for realizing one node
  - Policy: a named, typed rule set attachable to clusters
  - ClusterPolicy: the binding of a Policy to a Cluster, with priority,
    level, cooldown, and enablement

Scheduled Work:
  - Action: the unit of work dispatched against a cluster or node
  - ActionStatus: INIT, WAITING, READY, RUNNING, SUCCEEDED, FAILED, CANCELLED, TIMEOUT
  - Cause: USER, RPC, or DERIVED (child action spawned by a parent)

History:
  - Event: an append-only record of a status transition

# Design Patterns

Enumeration Pattern:

	All enums use typed string constants:
	  type NodeStatus string
	  const (
	      NodeActive NodeStatus = "ACTIVE"
	  )

Soft Delete:

	Cluster, Node, Profile, and Policy carry a *time.Time DeletedAt rather than
	being physically removed, so a Show-deleted query can still resolve history
	that Action/Event rows reference.

Dependency Edges:

	Action.DependsOn and Action.DependedBy mirror the rows pkg/storage keeps
	in a separate dependency bucket; the slices on Action are a read-time
	convenience, not the source of truth.

# Thread Safety

Types in this package carry no synchronization of their own. Callers holding
a *Cluster, *Node, or *Action returned from pkg/storage must treat it as a
private copy; pkg/storage never hands out the same pointer twice.

# See Also

  - pkg/storage for persistence of these types
  - pkg/engine for the state machines that mutate ActionStatus and NodeStatus
  - pkg/policy for how Policy.Spec is interpreted per Policy.Type
*/
package types
