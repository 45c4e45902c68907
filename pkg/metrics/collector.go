package metrics

import (
	"time"

	"github.com/cuemby/clusterd/pkg/storage"
	"github.com/cuemby/clusterd/pkg/types"
)

// Collector periodically samples gauge metrics from the entity and action
// stores, the same ticker-loop shape clusterd's other background loops use.
type Collector struct {
	store  storage.Store
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector over store.
func NewCollector(store storage.Store) *Collector {
	return &Collector{
		store:  store,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics every 15 seconds, collecting once
// immediately first.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectClusterMetrics()
	c.collectNodeMetrics()
	c.collectActionMetrics()
}

func (c *Collector) collectClusterMetrics() {
	clusters, err := c.store.ListClusters(false)
	if err != nil {
		return
	}
	counts := make(map[types.ClusterStatus]int)
	for _, cl := range clusters {
		counts[cl.Status]++
	}
	for status, count := range counts {
		ClustersTotal.WithLabelValues(string(status)).Set(float64(count))
	}
}

func (c *Collector) collectNodeMetrics() {
	nodes, err := c.store.ListNodes(false)
	if err != nil {
		return
	}
	counts := make(map[types.NodeStatus]int)
	for _, n := range nodes {
		counts[n.Status]++
	}
	for status, count := range counts {
		NodesTotal.WithLabelValues(string(status)).Set(float64(count))
	}
}

func (c *Collector) collectActionMetrics() {
	actions, err := c.store.ListActions()
	if err != nil {
		return
	}
	counts := make(map[types.ActionStatus]int)
	ready := 0
	for _, a := range actions {
		counts[a.Status]++
		if a.Status == types.ActionReady {
			ready++
		}
	}
	for status, count := range counts {
		ActionsTotal.WithLabelValues(string(status)).Set(float64(count))
	}
	ActionQueueDepth.Set(float64(ready))
}
