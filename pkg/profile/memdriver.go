package profile

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/cuemby/clusterd/pkg/types"
)

// memType is the profile type handled by the in-memory reference driver.
const memType = "memory"

func init() {
	Register(memType, newMemDriver)
}

// memDriver is a reference Driver backed by an in-process map instead of a
// real provisioning backend. It completes every operation on the first
// DoCheck poll, making it suitable for tests and for local exploration of
// the engine without external dependencies.
type memDriver struct {
	mu        sync.Mutex
	resources map[string]bool // physical_id -> exists
}

// sharedMemDriver is the single instance handed out for every "memory"
// profile, so a physical id created through one Build call is known to the
// driver returned by the next.
var sharedMemDriver = &memDriver{resources: make(map[string]bool)}

func newMemDriver(_ *types.Profile) (Driver, error) {
	return sharedMemDriver, nil
}

func (d *memDriver) DoCreate(_ context.Context, node *types.Node) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := fmt.Sprintf("mem-%s", uuid.NewString())
	d.resources[id] = true
	return id, nil
}

func (d *memDriver) DoDelete(_ context.Context, node *types.Node) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.resources, node.PhysicalID)
	return nil
}

func (d *memDriver) DoUpdate(_ context.Context, node *types.Node, newProfile *types.Profile) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.resources[node.PhysicalID] {
		return fmt.Errorf("memdriver: unknown physical id %q", node.PhysicalID)
	}
	return nil
}

func (d *memDriver) DoCheck(_ context.Context, node *types.Node) (Status, error) {
	return Status(fmt.Sprintf("%s_%s", verbForNode(node), StageComplete)), nil
}

func (d *memDriver) DoValidate(_ context.Context, profile *types.Profile) error {
	if profile.Type != memType {
		return fmt.Errorf("memdriver: profile type %q does not match %q", profile.Type, memType)
	}
	return nil
}

// verbForNode infers the in-flight verb from the node's current status so
// DoCheck can report a status word of the correct shape. A real driver
// tracks this per-operation instead of re-deriving it from node state.
func verbForNode(node *types.Node) Verb {
	switch node.Status {
	case types.NodeDeleting:
		return VerbDelete
	case types.NodeUpdating, types.NodeJoining, types.NodeLeaving:
		return VerbUpdate
	default:
		return VerbCreate
	}
}
