/*
Package storage provides BoltDB-backed persistence for clusterd's domain
state: the Entity Store (clusters, nodes, profiles, policies,
cluster-policy bindings, events) and the Action Store (actions and their
dependency edges).

# Buckets

	clusters, nodes, profiles, policies, cluster_policies, events
	actions, action_dependencies, action_depended_by

Each entity bucket is keyed by ID and holds a JSON-encoded value, following
the same upsert-via-Create, full-scan-via-ForEach pattern used across the
bucket set. action_dependencies and action_depended_by are separate from
actions itself: they hold []string edge lists keyed by action ID, so
AddDependency can update both directions in one transaction without
rewriting the action row.

# Soft Delete

Cluster, Node, Profile, and Policy rows are never physically removed.
SoftDelete<Entity> stamps DeletedAt; Get/List take a showDeleted bool so
that a Show-deleted query on a cluster under deletion, or the Action/Event
history referencing it, can still resolve.

# Uniqueness

CreateCluster rejects a name collision with an existing, distinctly-IDed
cluster row (see GetClusterByName) before writing, inside the same
transaction.

# Dependency Cycles

AddDependency rejects the direct cycle (an action depending on itself) and
the one-level cycle (B already depends on A, and A is asked to depend on
B). It does not walk the full graph for longer cycles; clusterd's own
action construction in pkg/engine never produces one.

# See Also

  - pkg/types for the structures persisted here
  - pkg/engine for the Action Store's only writer/reader
  - pkg/clustererr for the NotFound/Conflict errors this package returns
*/
package storage
