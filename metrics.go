package sfs

import (
	"github.com/prometheus/client_golang/prometheus"
)

type counterDesc struct {
	desc  *prometheus.Desc
	value func(ClientStats) uint64
}

// MetricsCollector exposes the statistics of a client to Prometheus.
// Values are read from Client.Stats at scrape time.
type MetricsCollector struct {
	client    *Client
	counters  []counterDesc
	connected *prometheus.Desc
	queued    *prometheus.Desc
}

var _ prometheus.Collector = (*MetricsCollector)(nil)

// NewMetricsCollector returns a collector for c. Register it with
// prometheus.MustRegister or a custom registry.
func NewMetricsCollector(c *Client, namespace string) *MetricsCollector {
	labels := prometheus.Labels{"client_id": c.ID()}
	counter := func(name, help string, value func(ClientStats) uint64) counterDesc {
		return counterDesc{
			desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "client", name), help, nil, labels),
			value: value,
		}
	}

	return &MetricsCollector{
		client: c,
		counters: []counterDesc{
			counter("messages_received_total", "Messages received from the server.", func(s ClientStats) uint64 { return s.MessagesReceived }),
			counter("messages_sent_total", "Messages sent to the server.", func(s ClientStats) uint64 { return s.MessagesSent }),
			counter("parse_errors_total", "Messages dropped because they could not be decoded.", func(s ClientStats) uint64 { return s.ParseErrors }),
			counter("dropped_messages_total", "Messages ignored by the router.", func(s ClientStats) uint64 { return s.DroppedMessages }),
			counter("events_dispatched_total", "Events delivered to a handler.", func(s ClientStats) uint64 { return s.EventsDispatched }),
			counter("events_unhandled_total", "Events without a registered handler.", func(s ClientStats) uint64 { return s.UnhandledEvents }),
			counter("socket_connects_total", "Successful socket connections.", func(s ClientStats) uint64 { return s.SocketConnects }),
			counter("tunnel_connects_total", "Successful HTTP tunnel connections.", func(s ClientStats) uint64 { return s.TunnelConnects }),
			counter("fallbacks_total", "Socket failures that fell back to the HTTP tunnel.", func(s ClientStats) uint64 { return s.Fallbacks }),
			counter("connect_failures_total", "Failed connection attempts.", func(s ClientStats) uint64 { return s.ConnectFailures }),
		},
		connected: prometheus.NewDesc(prometheus.BuildFQName(namespace, "client", "connected"),
			"Whether the client is connected, by transport.", []string{"mode"}, labels),
		queued: prometheus.NewDesc(prometheus.BuildFQName(namespace, "client", "queued_events"),
			"Events waiting in the queue.", nil, labels),
	}
}

func (m *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.counters {
		ch <- c.desc
	}
	ch <- m.connected
	ch <- m.queued
}

func (m *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	stats := m.client.Stats()
	for _, c := range m.counters {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(c.value(stats)))
	}

	mode := m.client.ConnectionMode()
	for _, candidate := range []ConnectionMode{ModeSocket, ModeHTTP} {
		v := 0.0
		if mode == candidate {
			v = 1
		}
		ch <- prometheus.MustNewConstMetric(m.connected, prometheus.GaugeValue, v, string(candidate))
	}
	ch <- prometheus.MustNewConstMetric(m.queued, prometheus.GaugeValue, float64(m.client.QueueLen()))
}
