// Package metrics exposes a Prometheus Collector tracking packet flow,
// queueing delay, and TCP/DVR behavior across a running scenario.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	namespace = "netsim"
	subsystem = "sim"
)

// Label names shared across the metric vectors below.
const (
	labelLink = "link"
	labelNode = "node"
)

// Collector holds every Prometheus metric netsimctl exports while
// driving a scenario.
type Collector struct {
	// PacketsSent counts packets a node originates, per node.
	PacketsSent *prometheus.CounterVec

	// PacketsForwarded counts packets a node forwards toward another
	// hop, per node.
	PacketsForwarded *prometheus.CounterVec

	// PacketsDelivered counts packets a node accepts as their final
	// destination, per node.
	PacketsDelivered *prometheus.CounterVec

	// PacketsDropped counts packets a link discards, because its loss
	// trial failed or its queue was full, per link.
	PacketsDropped *prometheus.CounterVec

	// QueueingDelay observes each link's queueing delay (seconds
	// spent waiting for the transmitter to free up), per link.
	QueueingDelay *prometheus.HistogramVec

	// TCPRetransmits counts timer-driven retransmissions, per node.
	TCPRetransmits *prometheus.CounterVec

	// TCPFastRetransmits counts duplicate-ACK-triggered fast
	// retransmissions, per node.
	TCPFastRetransmits *prometheus.CounterVec

	// DVRUpdates counts distance-vector recomputations that changed a
	// route, per node.
	DVRUpdates *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics against
// reg. If reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()
	reg.MustRegister(
		c.PacketsSent,
		c.PacketsForwarded,
		c.PacketsDelivered,
		c.PacketsDropped,
		c.QueueingDelay,
		c.TCPRetransmits,
		c.TCPFastRetransmits,
		c.DVRUpdates,
	)
	return c
}

func newMetrics() *Collector {
	nodeLabels := []string{labelNode}
	linkLabels := []string{labelLink}

	return &Collector{
		PacketsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_sent_total",
			Help:      "Total packets originated by a node.",
		}, nodeLabels),

		PacketsForwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_forwarded_total",
			Help:      "Total packets a node forwarded toward another hop.",
		}, nodeLabels),

		PacketsDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_delivered_total",
			Help:      "Total packets a node accepted as final destination.",
		}, nodeLabels),

		PacketsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_dropped_total",
			Help:      "Total packets a link discarded in its loss trial or because its queue was full.",
		}, linkLabels),

		QueueingDelay: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queueing_delay_seconds",
			Help:      "Per-packet queueing delay observed at a link's transmitter.",
			Buckets:   prometheus.DefBuckets,
		}, linkLabels),

		TCPRetransmits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tcp_retransmits_total",
			Help:      "Total timer-driven TCP retransmissions.",
		}, nodeLabels),

		TCPFastRetransmits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tcp_fast_retransmits_total",
			Help:      "Total duplicate-ACK-triggered TCP fast retransmissions.",
		}, nodeLabels),

		DVRUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dvr_updates_total",
			Help:      "Total distance-vector recomputations that changed a route.",
		}, nodeLabels),
	}
}

// ObserveLinkTransmit records the queueing delay a packet experienced
// on link before being selected for transmission.
func (c *Collector) ObserveLinkTransmit(link string, queueingDelay float64) {
	c.QueueingDelay.WithLabelValues(link).Observe(queueingDelay)
}

// ObserveLinkDrop records that link discarded a packet instead of
// delivering it.
func (c *Collector) ObserveLinkDrop(link string) {
	c.PacketsDropped.WithLabelValues(link).Inc()
}

// ObserveTCPRetransmit records a retransmission originated by a TCP
// connection bound on hostname. fast distinguishes a duplicate-ACK-
// triggered fast retransmit from a timer-driven one.
func (c *Collector) ObserveTCPRetransmit(hostname string, fast bool) {
	if fast {
		c.TCPFastRetransmits.WithLabelValues(hostname).Inc()
	} else {
		c.TCPRetransmits.WithLabelValues(hostname).Inc()
	}
}

// ObserveDVRUpdate records that hostname's Router recomputed a route
// to a shorter cost.
func (c *Collector) ObserveDVRUpdate(hostname string) {
	c.DVRUpdates.WithLabelValues(hostname).Inc()
}
