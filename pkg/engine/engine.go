package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/clusterd/pkg/clusterlock"
	"github.com/cuemby/clusterd/pkg/events"
	"github.com/cuemby/clusterd/pkg/log"
	"github.com/cuemby/clusterd/pkg/metrics"
	"github.com/cuemby/clusterd/pkg/policy"
	"github.com/cuemby/clusterd/pkg/storage"
	"github.com/cuemby/clusterd/pkg/types"
)

const (
	lockRetrySeconds = 2
	waitPollSeconds  = 2
)

// Engine is the facade tying storage, the lock manager, the policy
// pipeline, the event broker, and the dispatcher/scheduler together. It is
// the single entry point callers (cmd/clusterd) use to submit work.
type Engine struct {
	Store      storage.Store
	Locks      *clusterlock.Manager
	Policies   *policy.Pipeline
	Broker     *events.Broker
	Dispatcher *Dispatcher
	Scheduler  *Scheduler
}

// New builds an Engine backed by store, with workers concurrent dispatcher
// slots.
func New(store storage.Store, workers int) *Engine {
	broker := events.NewBroker()
	dispatcher := NewDispatcher(store, workers)
	scheduler := NewScheduler(dispatcher)

	eng := &Engine{
		Store:      store,
		Locks:      clusterlock.NewManager(&actionEvictor{store: store, broker: broker}),
		Policies:   policy.NewPipeline(store),
		Broker:     broker,
		Dispatcher: dispatcher,
		Scheduler:  scheduler,
	}
	return eng
}

// Start launches the event broker and the dispatcher loop.
func (eng *Engine) Start() {
	eng.Broker.Start()
	eng.Dispatcher.Start(eng)
}

// Stop halts the dispatcher and the event broker.
func (eng *Engine) Stop() {
	eng.Dispatcher.Stop()
	eng.Broker.Stop()
}

// actionEvictor adapts storage + the event broker to clusterlock.Evictor so
// a forced lock acquisition can cancel the action it preempts.
type actionEvictor struct {
	store  storage.Store
	broker *events.Broker
}

func (e *actionEvictor) Cancel(actionID, reason string) error {
	a, err := e.store.GetAction(actionID)
	if err != nil {
		return err
	}
	a.Status = types.ActionCancelled
	a.Reason = reason
	a.Cancelled = true
	a.EndTime = time.Now()
	if err := e.store.UpdateAction(a); err != nil {
		return err
	}
	e.broker.Publish(&events.Event{
		ID:      uuid.NewString(),
		Type:    events.EventActionCancelled,
		Subject: a.ID,
		Message: reason,
	})
	return nil
}

// submitAction creates a user-initiated action against target with verb,
// marks it READY, and notifies the dispatcher. It is the entry point for
// every RPC-surface mutation in §6.
func (eng *Engine) submitAction(target, verb string, inputs map[string]interface{}) (*types.Action, error) {
	a := &types.Action{
		ID:        uuid.NewString(),
		Name:      fmt.Sprintf("%s_%s", verb, shortID(target)),
		Target:    target,
		Action:    verb,
		Cause:     types.CauseUser,
		Inputs:    inputs,
		Data:      make(map[string]interface{}),
		Status:    types.ActionReady,
		CreatedAt: eng.Scheduler.Wallclock(),
	}
	if c, err := eng.Store.GetCluster(target, false); err == nil {
		a.Timeout = c.Timeout
	}
	if err := eng.Store.CreateAction(a); err != nil {
		return nil, err
	}
	eng.Dispatcher.Notify(a.ID)
	return a, nil
}

// spawnChild creates a DERIVED action against target, records that parent
// awaits it, marks it READY, and notifies the dispatcher. Its name is
// bound from the target passed to this specific call, never a shared loop
// variable, so `node_join_<node_id_prefix>` names the right node even when
// a caller spawns many children in a loop.
func (eng *Engine) spawnChild(parent *types.Action, target, verb string, inputs map[string]interface{}) (*types.Action, error) {
	child := &types.Action{
		ID:        uuid.NewString(),
		Name:      fmt.Sprintf("%s_%s", lowerVerb(verb), shortID(target)),
		Target:    target,
		Action:    verb,
		Cause:     types.CauseDerived,
		Inputs:    inputs,
		Data:      make(map[string]interface{}),
		Status:    types.ActionReady,
		CreatedAt: eng.Scheduler.Wallclock(),
	}
	if err := eng.Store.CreateAction(child); err != nil {
		return nil, err
	}
	if err := eng.Store.AddDependency(parent.ID, child.ID); err != nil {
		return nil, err
	}
	eng.Dispatcher.Notify(child.ID)
	return child, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func lowerVerb(verb string) string {
	out := make([]byte, len(verb))
	for i := 0; i < len(verb); i++ {
		c := verb[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// waitResult is the outcome of aggregating a parent's children, per the
// action state machine's aggregation rules.
type waitResult int

const (
	waitContinue waitResult = iota
	waitOK
	waitError
	waitCancel
	waitTimeout
)

func (r waitResult) status() types.ActionStatus {
	switch r {
	case waitOK:
		return types.ActionSucceeded
	case waitCancel:
		return types.ActionCancelled
	case waitTimeout:
		return types.ActionTimeout
	default:
		return types.ActionFailed
	}
}

// aggregateChildren computes a parent's wait-result from the statuses of
// its depends_on children, in the priority order the action state machine
// specifies: FAILED children beat CANCELLED, which beats TIMEOUT (a child
// timing out, or the parent's own elapsed timeout), which beats the
// all-succeeded case. An explicit cancellation flag observed on the parent
// itself short-circuits everything else.
func (eng *Engine) aggregateChildren(parent *types.Action) (waitResult, string) {
	if parent.Cancelled {
		return waitCancel, "action cancelled"
	}

	var anyFailed, anyCancelled, anyTimeout bool
	allSucceeded := true
	for _, childID := range parent.DependsOn {
		child, err := eng.Store.GetAction(childID)
		if err != nil {
			return waitError, err.Error()
		}
		switch child.Status {
		case types.ActionFailed:
			anyFailed = true
		case types.ActionCancelled:
			anyCancelled = true
		case types.ActionTimeout:
			anyTimeout = true
		}
		if child.Status != types.ActionSucceeded {
			allSucceeded = false
		}
	}

	elapsed := parent.Timeout > 0 && !parent.StartTime.IsZero() &&
		eng.Scheduler.Wallclock().Sub(parent.StartTime) > time.Duration(parent.Timeout)*time.Second

	switch {
	case anyFailed:
		return waitError, "a child action failed"
	case anyCancelled:
		return waitCancel, "a child action was cancelled"
	case anyTimeout || elapsed:
		return waitTimeout, "a child action or the parent itself timed out"
	case allSucceeded:
		return waitOK, ""
	default:
		return waitContinue, ""
	}
}

// waitForDependents re-fetches action (to get its current depends_on edges
// and status), aggregates its children, and either returns a terminal
// result or marks the action WAITING and reschedules it, returning with
// waiting=true so the caller's handler returns immediately and frees its
// dispatcher worker.
func (eng *Engine) waitForDependents(action *types.Action) (result waitResult, reason string, waiting bool) {
	fresh, err := eng.Store.GetAction(action.ID)
	if err != nil {
		return waitError, err.Error(), false
	}
	action.DependsOn = fresh.DependsOn

	result, reason = eng.aggregateChildren(fresh)
	if result == waitContinue {
		action.Status = types.ActionWaiting
		_ = eng.Store.UpdateAction(action)
		eng.Scheduler.Reschedule(action.ID, waitPollSeconds)
		return waitContinue, "", true
	}
	return result, reason, false
}

// finishAction persists a terminal status/reason on action, stamps
// EndTime, publishes the corresponding event, and appends an Event row
// keyed by the action's target cluster or node.
func (eng *Engine) finishAction(action *types.Action, status types.ActionStatus, reason string) {
	action.Status = status
	action.Reason = reason
	action.EndTime = eng.Scheduler.Wallclock()
	_ = eng.Store.UpdateAction(action)

	if !action.StartTime.IsZero() {
		metrics.ActionDuration.WithLabelValues(action.Action, string(status)).Observe(action.EndTime.Sub(action.StartTime).Seconds())
	}

	eventType := eventTypeForStatus(status)
	eng.Broker.Publish(&events.Event{
		ID:      uuid.NewString(),
		Type:    eventType,
		Subject: action.ID,
		Message: reason,
	})
	objType := "node"
	if strings.HasPrefix(action.Action, "CLUSTER_") {
		objType = "cluster"
	}
	_ = eng.Store.AppendEvent(&types.Event{
		ID:        uuid.NewString(),
		Timestamp: eng.Scheduler.Wallclock(),
		ObjID:     action.Target,
		ObjType:   objType,
		ObjName:   action.Name,
		Action:    action.Action,
		Status:    string(status),
		Reason:    reason,
	})

	log.WithActionID(action.ID).Info().
		Str("verb", action.Action).
		Str("status", string(status)).
		Str("reason", reason).
		Msg("action reached terminal status")
}

// finishForResult maps a waitResult to its terminal action status.
func (eng *Engine) finishForResult(action *types.Action, result waitResult, reason string) {
	eng.finishAction(action, result.status(), reason)
}

func eventTypeForStatus(status types.ActionStatus) events.EventType {
	switch status {
	case types.ActionSucceeded:
		return events.EventActionSucceeded
	case types.ActionFailed:
		return events.EventActionFailed
	case types.ActionCancelled:
		return events.EventActionCancelled
	case types.ActionTimeout:
		return events.EventActionTimeout
	default:
		return events.EventActionRunning
	}
}
