/*
Package profile is the interface boundary between the engine and whatever
system actually provisions nodes.

# Driver

Driver has five operations — DoCreate, DoDelete, DoUpdate, DoCheck,
DoValidate — mirroring a node's lifecycle. DoCheck is polled by pkg/engine
until it reports a terminal Stage; its Status value must parse as
"<VERB>_<STAGE>", and a VERB that doesn't match the operation the engine is
polling for is treated as an Internal error, not a retryable mismatch.

# Registry

Register binds a profile type string to a Constructor at package init time,
the same static-map pattern pkg/policy uses for policy types. memdriver.go
registers "memory", a driver with no external dependency that completes
every operation on its first poll; it exists for tests and for running the
engine without a real provisioning backend wired in.

# See Also

  - pkg/engine/node_action.go, the only caller of DoCheck
  - pkg/engine/cluster_action.go, which calls Build and DoValidate for CLUSTER_CREATE
*/
package profile
