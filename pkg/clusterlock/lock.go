// Package clusterlock implements the process-wide registry of cluster- and
// node-scope locks that serializes actions against the same resource while
// letting actions against different resources run concurrently.
package clusterlock

import (
	"sync"
	"time"

	"github.com/cuemby/clusterd/pkg/log"
	"github.com/cuemby/clusterd/pkg/metrics"
)

// Scope is the granularity a lock is held at.
type Scope string

const (
	ScopeCluster Scope = "cluster"
	ScopeNode    Scope = "node"
)

type key struct {
	scope      Scope
	resourceID string
}

// Evictor cancels a previously-held action when it is force-evicted. Its
// only implementation lives in pkg/engine, which also owns the action
// store; clusterlock itself has no notion of an action beyond its id.
type Evictor interface {
	// Cancel marks actionID CANCELLED with the given reason.
	Cancel(actionID, reason string) error
}

// Manager is a registry of (scope, resource_id) -> holder action id.
type Manager struct {
	mu      sync.Mutex
	holders map[key]holder
	evictor Evictor
}

type holder struct {
	actionID  string
	acquired  time.Time
}

// NewManager creates a lock manager. evictor is invoked, outside the lock,
// whenever a forced acquisition preempts a current holder.
func NewManager(evictor Evictor) *Manager {
	return &Manager{
		holders: make(map[key]holder),
		evictor: evictor,
	}
}

// Acquire grants the lock for (scope, resourceID) to actionID. It returns
// true on success. If forced is true and the resource is already held by a
// different action, that action is evicted: it is marked CANCELLED with
// reason "preempted by deletion" and the new holder takes over.
// Acquisition failure is a normal, non-error return — pkg/engine
// reschedules the action and tries again a couple of seconds later.
func (m *Manager) Acquire(scope Scope, resourceID, actionID string, forced bool) bool {
	k := key{scope, resourceID}
	logger := log.WithComponent("clusterlock")

	m.mu.Lock()
	current, held := m.holders[k]
	if !held {
		m.holders[k] = holder{actionID: actionID, acquired: time.Now()}
		m.mu.Unlock()
		metrics.LockContention.WithLabelValues(string(scope), "acquired").Inc()
		return true
	}
	if current.actionID == actionID {
		m.mu.Unlock()
		return true
	}
	if !forced {
		m.mu.Unlock()
		metrics.LockContention.WithLabelValues(string(scope), "blocked").Inc()
		return false
	}

	m.holders[k] = holder{actionID: actionID, acquired: time.Now()}
	m.mu.Unlock()

	metrics.LockContention.WithLabelValues(string(scope), "forced").Inc()
	logger.Warn().
		Str("resource_id", resourceID).
		Str("evicted_action", current.actionID).
		Str("new_action", actionID).
		Msg("forced lock acquisition evicted prior holder")

	if m.evictor != nil {
		if err := m.evictor.Cancel(current.actionID, "preempted by deletion"); err != nil {
			logger.Error().Err(err).Str("action_id", current.actionID).Msg("failed to cancel preempted action")
		}
	}
	return true
}

// Release drops the lock for (scope, resourceID) iff actionID is the
// current holder. Release is idempotent: releasing a lock not held by
// actionID (including one already released) is a no-op.
func (m *Manager) Release(scope Scope, resourceID, actionID string) {
	k := key{scope, resourceID}

	m.mu.Lock()
	current, held := m.holders[k]
	if !held || current.actionID != actionID {
		m.mu.Unlock()
		return
	}
	delete(m.holders, k)
	m.mu.Unlock()

	metrics.LockHoldDuration.Observe(time.Since(current.acquired).Seconds())
}

// Holder returns the action id currently holding (scope, resourceID), and
// whether anyone holds it.
func (m *Manager) Holder(scope Scope, resourceID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.holders[key{scope, resourceID}]
	return h.actionID, ok
}
