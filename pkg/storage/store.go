package storage

import (
	"github.com/cuemby/clusterd/pkg/types"
)

// Store is the persistence boundary for both the Entity Store (clusters,
// nodes, profiles, policies, cluster-policy bindings, events) and the
// Action Store (actions plus their dependency edges). A single BoltDB file
// backs both in BoltStore; the split interface below exists so pkg/engine
// can depend on only the slice it needs in tests.
type Store interface {
	EntityStore
	ActionStore
	Close() error
}

// EntityStore covers the long-lived, soft-deleted domain objects.
type EntityStore interface {
	CreateCluster(c *types.Cluster) error
	GetCluster(id string, showDeleted bool) (*types.Cluster, error)
	GetClusterByName(name string, showDeleted bool) (*types.Cluster, error)
	ListClusters(showDeleted bool) ([]*types.Cluster, error)
	UpdateCluster(c *types.Cluster) error
	SoftDeleteCluster(id string, at int64) error

	CreateNode(n *types.Node) error
	GetNode(id string, showDeleted bool) (*types.Node, error)
	ListNodes(showDeleted bool) ([]*types.Node, error)
	ListNodesByCluster(clusterID string, showDeleted bool) ([]*types.Node, error)
	UpdateNode(n *types.Node) error
	SoftDeleteNode(id string, at int64) error

	CreateProfile(p *types.Profile) error
	GetProfile(id string) (*types.Profile, error)
	ListProfiles(showDeleted bool) ([]*types.Profile, error)
	SoftDeleteProfile(id string, at int64) error

	CreatePolicy(p *types.Policy) error
	GetPolicy(id string) (*types.Policy, error)
	ListPolicies(showDeleted bool) ([]*types.Policy, error)
	SoftDeletePolicy(id string, at int64) error

	AttachPolicy(cp *types.ClusterPolicy) error
	DetachPolicy(clusterID, policyID string) error
	GetClusterPolicy(clusterID, policyID string) (*types.ClusterPolicy, error)
	ListClusterPolicies(clusterID string) ([]*types.ClusterPolicy, error)
	UpdateClusterPolicy(cp *types.ClusterPolicy) error

	AppendEvent(e *types.Event) error
	ListEvents(objID string) ([]*types.Event, error)
}

// ActionStore covers actions and the dependency edges between them.
// DependsOn/DependedBy on a returned *types.Action are populated from the
// edge bucket; callers must not rely on them being set on an action passed
// into Create/Update before the edges are separately recorded.
type ActionStore interface {
	CreateAction(a *types.Action) error
	GetAction(id string) (*types.Action, error)
	ListActions() ([]*types.Action, error)
	ListActionsByTarget(target string) ([]*types.Action, error)
	ListActionsByStatus(status types.ActionStatus) ([]*types.Action, error)
	UpdateAction(a *types.Action) error

	AddDependency(actionID, dependsOnID string) error
	// ResolveDependents returns the ids of actions waiting on actionID,
	// i.e. the reverse of AddDependency.
	ResolveDependents(actionID string) ([]string, error)
}
