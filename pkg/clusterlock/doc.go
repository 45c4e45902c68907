/*
Package clusterlock serializes action execution against a shared resource.

# Model

A lock is keyed by (scope, resource_id): ScopeCluster locks a whole cluster,
ScopeNode locks one node within it. At most one action id holds a given key
at a time. Manager.Acquire returns false, not an error, when the resource is
already held by a different action and forced is false — callers treat this
as "try again later", typically by rescheduling the action a few seconds
out.

# Forced Acquisition

Deletion actions acquire with forced=true: the prior holder is evicted via
the Evictor, marked CANCELLED with reason "preempted by deletion", and the
deleting action takes the lock immediately. This is the only way a holder
changes without Release being called first.

# See Also

  - pkg/engine, the only caller of Acquire/Release
*/
package clusterlock
