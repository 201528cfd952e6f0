package router

import "github.com/prometheus/client_golang/prometheus"

// metrics mirrors the counters cluster/delegate.go registers for its own
// gossip traffic, renamed to this runtime's message model.
type metrics struct {
	messagesReceived     prometheus.Counter
	messagesReceivedSize prometheus.Counter
	messagesSent         prometheus.Counter
	messagesSentSize     prometheus.Counter
	clusterSize          prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		messagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "theater_router_messages_received_total",
			Help: "Total number of cluster messages received.",
		}),
		messagesReceivedSize: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "theater_router_messages_received_bytes_total",
			Help: "Total size of cluster messages received.",
		}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "theater_router_messages_sent_total",
			Help: "Total number of cluster messages sent.",
		}),
		messagesSentSize: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "theater_router_messages_sent_bytes_total",
			Help: "Total size of cluster messages sent.",
		}),
		clusterSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "theater_router_cluster_members",
			Help: "Number of members currently known to memberlist, including client-only peers.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.messagesReceived, m.messagesReceivedSize, m.messagesSent, m.messagesSentSize, m.clusterSize)
	}
	return m
}
