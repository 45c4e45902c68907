/*
Package policy implements the BEFORE/AFTER pipeline that guards every
cluster-action verb, plus the policy types that plug into it.

# Pipeline

Pipeline.Run loads a cluster's enabled bindings sorted by priority
descending (ties broken by binding creation order), and calls PreOp (BEFORE)
or PostOp (AFTER) on each whose Target matches the running verb. A policy
stops the pipeline by marking the shared Envelope CHECK_FAILED; later
bindings in that run are skipped. The envelope is per-action: it is built
fresh by Pipeline.Run and never shared across actions.

# Deletion Policy

deletion.go is the canonical policy type. Its PreOp populates
policy_data["deletion"] with count, candidates, destroy_after_deletion, and
grace_period ahead of CLUSTER_SCALE_IN / CLUSTER_DEL_NODES. Candidate
selection has four criteria (RANDOM, OLDEST_FIRST, YOUNGEST_FIRST,
OLDEST_PROFILE_FIRST); YOUNGEST_FIRST reads the ascending-sorted list from
its tail and OLDEST_PROFILE_FIRST returns node references rather than
standalone maps, matching the other three branches.

# Registry

Register binds a policy type string to a Constructor at init time. Policies
needing store access receive it through the context Pipeline.Run attaches
via WithStore, not a package-level singleton.

# See Also

  - pkg/engine/cluster_action.go, the only caller of Pipeline.Run
*/
package policy
