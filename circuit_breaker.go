package sfs

import (
	"net"
	"time"

	"github.com/sony/gobreaker/v2"
)

// NewCircuitBreakerConfig returns a function that creates circuit breakers for socket servers.
// This is a helper for common use cases.
// While a breaker is open, Connect skips the socket dial and goes straight to the HTTP tunnel
// when SmartConnect is enabled.
func NewCircuitBreakerConfig(maxRequests uint32, interval, timeout time.Duration) func(string) *gobreaker.CircuitBreaker[net.Conn] {
	return func(serverAddr string) *gobreaker.CircuitBreaker[net.Conn] {
		settings := gobreaker.Settings{
			Name:        serverAddr,
			MaxRequests: maxRequests,
			Interval:    interval,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
		}
		return gobreaker.NewCircuitBreaker[net.Conn](settings)
	}
}

// breakerFor returns the breaker guarding addr, creating it on first use.
// It returns nil when no breaker factory is configured.
func (c *Client) breakerFor(addr string) *gobreaker.CircuitBreaker[net.Conn] {
	if c.newBreaker == nil {
		return nil
	}

	c.breakersMu.Lock()
	defer c.breakersMu.Unlock()

	cb, ok := c.breakers[addr]
	if !ok {
		cb = c.newBreaker(addr)
		c.breakers[addr] = cb
	}
	return cb
}
