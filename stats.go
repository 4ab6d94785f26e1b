package sfs

import (
	"sync/atomic"
)

// ClientStats contains statistics about a client session.
// All fields are safe for concurrent access.
//
// For Prometheus integration, see NewMetricsCollector. Every field is a
// monotonic counter.
type ClientStats struct {
	MessagesReceived uint64 // Raw messages handed to the decoder
	MessagesSent     uint64 // Messages written to a transport
	ParseErrors      uint64 // Messages dropped because they could not be decoded
	DroppedMessages  uint64 // Decoded messages with no handler, or ignored formats
	EventsDispatched uint64 // Events delivered to a registered handler
	UnhandledEvents  uint64 // Events delivered with no registered handler
	SocketConnects   uint64 // Successful socket connections
	TunnelConnects   uint64 // Successful HTTP tunnel sessions
	Fallbacks        uint64 // Socket failures that fell back to the tunnel
	ConnectFailures  uint64 // Connect attempts that produced a failure event
}

// clientStatsCollector provides internal methods for updating client stats.
// Not exported - client updates its own stats.
type clientStatsCollector struct {
	stats *ClientStats
}

func newClientStatsCollector() *clientStatsCollector {
	return &clientStatsCollector{
		stats: &ClientStats{},
	}
}

func (c *clientStatsCollector) recordReceive() {
	atomic.AddUint64(&c.stats.MessagesReceived, 1)
}

func (c *clientStatsCollector) recordSend() {
	atomic.AddUint64(&c.stats.MessagesSent, 1)
}

func (c *clientStatsCollector) recordParseError() {
	atomic.AddUint64(&c.stats.ParseErrors, 1)
}

func (c *clientStatsCollector) recordDrop() {
	atomic.AddUint64(&c.stats.DroppedMessages, 1)
}

func (c *clientStatsCollector) recordDispatch(handled bool) {
	if handled {
		atomic.AddUint64(&c.stats.EventsDispatched, 1)
	} else {
		atomic.AddUint64(&c.stats.UnhandledEvents, 1)
	}
}

func (c *clientStatsCollector) recordSocketConnect() {
	atomic.AddUint64(&c.stats.SocketConnects, 1)
}

func (c *clientStatsCollector) recordTunnelConnect() {
	atomic.AddUint64(&c.stats.TunnelConnects, 1)
}

func (c *clientStatsCollector) recordFallback() {
	atomic.AddUint64(&c.stats.Fallbacks, 1)
}

func (c *clientStatsCollector) recordConnectFailure() {
	atomic.AddUint64(&c.stats.ConnectFailures, 1)
}

func (c *clientStatsCollector) snapshot() ClientStats {
	return ClientStats{
		MessagesReceived: atomic.LoadUint64(&c.stats.MessagesReceived),
		MessagesSent:     atomic.LoadUint64(&c.stats.MessagesSent),
		ParseErrors:      atomic.LoadUint64(&c.stats.ParseErrors),
		DroppedMessages:  atomic.LoadUint64(&c.stats.DroppedMessages),
		EventsDispatched: atomic.LoadUint64(&c.stats.EventsDispatched),
		UnhandledEvents:  atomic.LoadUint64(&c.stats.UnhandledEvents),
		SocketConnects:   atomic.LoadUint64(&c.stats.SocketConnects),
		TunnelConnects:   atomic.LoadUint64(&c.stats.TunnelConnects),
		Fallbacks:        atomic.LoadUint64(&c.stats.Fallbacks),
		ConnectFailures:  atomic.LoadUint64(&c.stats.ConnectFailures),
	}
}
