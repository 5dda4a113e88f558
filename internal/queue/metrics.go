package queue

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DepthCollector exports queue sizes on scrape.
type DepthCollector struct {
	Inspector Inspector
	Queue     string

	size     *prometheus.Desc
	archived *prometheus.Desc
	retry    *prometheus.Desc
}

// NewDepthCollector builds a collector for the given queue.
func NewDepthCollector(namespace string, inspector Inspector, queue string) *DepthCollector {
	if queue == "" {
		queue = DefaultQueue
	}
	labels := []string{"queue"}
	return &DepthCollector{
		Inspector: inspector,
		Queue:     queue,
		size:      prometheus.NewDesc(prometheus.BuildFQName(namespace, "queue", "depth"), "Tasks in the queue across all states", labels, nil),
		archived:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "queue", "archived"), "Tasks that exhausted their retries", labels, nil),
		retry:     prometheus.NewDesc(prometheus.BuildFQName(namespace, "queue", "retry"), "Tasks waiting for another attempt", labels, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *DepthCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.size
	ch <- c.archived
	ch <- c.retry
}

// Collect implements prometheus.Collector. Inspection errors yield no samples.
func (c *DepthCollector) Collect(ch chan<- prometheus.Metric) {
	info, err := c.Inspector.GetQueueInfo(c.Queue)
	if err != nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(info.Size), c.Queue)
	ch <- prometheus.MustNewConstMetric(c.archived, prometheus.GaugeValue, float64(info.Archived), c.Queue)
	ch <- prometheus.MustNewConstMetric(c.retry, prometheus.GaugeValue, float64(info.Retry), c.Queue)
}
