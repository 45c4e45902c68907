package clusterlock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeEvictor struct {
	cancelled []string
	reasons   []string
}

func (f *fakeEvictor) Cancel(actionID, reason string) error {
	f.cancelled = append(f.cancelled, actionID)
	f.reasons = append(f.reasons, reason)
	return nil
}

func TestAcquire_FreeResource(t *testing.T) {
	m := NewManager(nil)
	ok := m.Acquire(ScopeCluster, "cluster-1", "action-1", false)
	assert.True(t, ok)

	holder, held := m.Holder(ScopeCluster, "cluster-1")
	assert.True(t, held)
	assert.Equal(t, "action-1", holder)
}

func TestAcquire_SameHolderIsIdempotent(t *testing.T) {
	m := NewManager(nil)
	assert.True(t, m.Acquire(ScopeCluster, "cluster-1", "action-1", false))
	assert.True(t, m.Acquire(ScopeCluster, "cluster-1", "action-1", false))
}

func TestAcquire_BlockedWithoutForce(t *testing.T) {
	m := NewManager(nil)
	assert.True(t, m.Acquire(ScopeCluster, "cluster-1", "action-1", false))
	ok := m.Acquire(ScopeCluster, "cluster-1", "action-2", false)
	assert.False(t, ok)

	holder, _ := m.Holder(ScopeCluster, "cluster-1")
	assert.Equal(t, "action-1", holder)
}

func TestAcquire_ForcedEvictsPriorHolder(t *testing.T) {
	ev := &fakeEvictor{}
	m := NewManager(ev)
	assert.True(t, m.Acquire(ScopeCluster, "cluster-1", "action-1", false))

	ok := m.Acquire(ScopeCluster, "cluster-1", "action-2", true)
	assert.True(t, ok)

	holder, _ := m.Holder(ScopeCluster, "cluster-1")
	assert.Equal(t, "action-2", holder)

	assert.Equal(t, []string{"action-1"}, ev.cancelled)
	assert.Equal(t, []string{"preempted by deletion"}, ev.reasons)
}

func TestRelease_OnlyCurrentHolderReleases(t *testing.T) {
	m := NewManager(nil)
	assert.True(t, m.Acquire(ScopeNode, "node-1", "action-1", false))

	// Releasing with the wrong action id is a no-op.
	m.Release(ScopeNode, "node-1", "action-2")
	_, held := m.Holder(ScopeNode, "node-1")
	assert.True(t, held)

	m.Release(ScopeNode, "node-1", "action-1")
	_, held = m.Holder(ScopeNode, "node-1")
	assert.False(t, held)
}

func TestRelease_IsIdempotent(t *testing.T) {
	m := NewManager(nil)
	assert.True(t, m.Acquire(ScopeNode, "node-1", "action-1", false))
	m.Release(ScopeNode, "node-1", "action-1")
	// Second release of an already-released lock must not panic or error.
	m.Release(ScopeNode, "node-1", "action-1")

	_, held := m.Holder(ScopeNode, "node-1")
	assert.False(t, held)
}

func TestIndependentResourcesDoNotContend(t *testing.T) {
	m := NewManager(nil)
	assert.True(t, m.Acquire(ScopeCluster, "cluster-1", "action-1", false))
	assert.True(t, m.Acquire(ScopeCluster, "cluster-2", "action-2", false))
	assert.True(t, m.Acquire(ScopeNode, "cluster-1", "action-3", false))
}
