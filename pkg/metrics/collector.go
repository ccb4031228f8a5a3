package metrics

import (
	"time"

	"github.com/cuemby/clusterupgrade/pkg/types"
)

// Inventory is the state the collector samples
type Inventory interface {
	ListClusters() ([]*types.Cluster, error)
	ListNodes() ([]*types.Node, error)
	ListRelations() ([]*types.UpgradeRelation, error)
}

// Collector periodically samples inventory gauges
type Collector struct {
	inventory Inventory
	interval  time.Duration
	stopCh    chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(inventory Inventory) *Collector {
	return &Collector{
		inventory: inventory,
		interval:  15 * time.Second,
		stopCh:    make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
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

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	if clusters, err := c.inventory.ListClusters(); err == nil {
		ClustersTotal.Set(float64(len(clusters)))
	}

	if nodes, err := c.inventory.ListNodes(); err == nil {
		counts := make(map[types.NodeStatus]int)
		for _, node := range nodes {
			counts[node.Status]++
		}
		NodesTotal.Reset()
		for status, count := range counts {
			NodesTotal.WithLabelValues(string(status)).Set(float64(count))
		}
	}

	if relations, err := c.inventory.ListRelations(); err == nil {
		RelationsTotal.Set(float64(len(relations)))
	}
}
