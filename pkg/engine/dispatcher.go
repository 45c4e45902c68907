package engine

import (
	"context"
	"sync"

	"github.com/cuemby/clusterd/pkg/log"
	"github.com/cuemby/clusterd/pkg/metrics"
	"github.com/cuemby/clusterd/pkg/storage"
	"github.com/cuemby/clusterd/pkg/types"
)

// HandlerFunc executes one action verb to completion or to its next
// suspension point. It is looked up by action.Action in verbHandlers.
type HandlerFunc func(ctx context.Context, eng *Engine, action *types.Action)

// verbHandlers is the static verb-dispatch table: every cluster and node
// action verb registers its handler here from an init() in
// cluster_action.go / node_action.go, replacing runtime string-dispatch
// with a fixed map built at program start.
var verbHandlers = map[string]HandlerFunc{}

// RegisterVerb binds verb to handler. Panics on a duplicate registration,
// since two handlers for one verb is a programming error caught at
// package-init time, not a runtime condition to recover from.
func RegisterVerb(verb string, handler HandlerFunc) {
	if _, exists := verbHandlers[verb]; exists {
		panic("engine: duplicate verb handler registration for " + verb)
	}
	verbHandlers[verb] = handler
}

// Dispatcher is the single logical sink for NEW_ACTION notifications. It is
// not a strict fixed-size pool: the run loop spawns a goroutine per ready action,
// gated by a counting semaphore, so actions against different clusters run
// concurrently while actions against the same cluster serialize through
// clusterlock inside their handler.
type Dispatcher struct {
	store   storage.Store
	engine  *Engine
	sem     chan struct{}
	readyCh chan string
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with workers concurrent execution
// slots.
func NewDispatcher(store storage.Store, workers int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		store:   store,
		sem:     make(chan struct{}, workers),
		readyCh: make(chan string, 256),
		stopCh:  make(chan struct{}),
	}
}

// Start begins consuming notifications. eng is the facade handlers use to
// reach storage, locks, policies, and the scheduler.
func (d *Dispatcher) Start(eng *Engine) {
	d.engine = eng
	d.wg.Add(1)
	go d.run()
}

// Stop halts the dispatch loop. In-flight handlers are not interrupted;
// Stop returns once no new action is accepted.
func (d *Dispatcher) Stop() {
	close(d.stopCh)
	d.wg.Wait()
}

// Notify enqueues actionID for dispatch. It blocks while the 256-slot
// channel buffer is full, and returns without enqueuing once the
// dispatcher is stopped.
func (d *Dispatcher) Notify(actionID string) {
	metrics.DispatcherBacklog.Inc()
	select {
	case d.readyCh <- actionID:
	case <-d.stopCh:
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case id := <-d.readyCh:
			metrics.DispatcherBacklog.Dec()
			d.sem <- struct{}{}
			metrics.DispatcherWorkersActive.Inc()
			go func(id string) {
				defer func() {
					<-d.sem
					metrics.DispatcherWorkersActive.Dec()
				}()
				d.execute(id)
			}(id)
		case <-d.stopCh:
			return
		}
	}
}

func (d *Dispatcher) execute(id string) {
	logger := log.WithActionID(id)

	action, err := d.store.GetAction(id)
	if err != nil {
		logger.Error().Err(err).Msg("dispatcher: action not found")
		return
	}
	if action.Status.Terminal() {
		return
	}
	handler, ok := verbHandlers[action.Action]
	if !ok {
		logger.Error().Str("verb", action.Action).Msg("dispatcher: no handler registered for verb")
		action.Status = types.ActionFailed
		action.Reason = "no handler registered for verb " + action.Action
		_ = d.store.UpdateAction(action)
		return
	}
	handler(context.Background(), d.engine, action)
}
