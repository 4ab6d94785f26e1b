// Package coarsetime is a clock refreshed every 50ms. Transports stamp every
// read and write, so they use it instead of time.Now.
package coarsetime

import (
	"sync/atomic"
	"time"
)

const Resolution = 50 * time.Millisecond

var now atomic.Int64

func init() {
	now.Store(time.Now().UnixNano())

	ticker := time.NewTicker(Resolution)
	go func() {
		for t := range ticker.C {
			now.Store(t.UnixNano())
		}
	}()
}

// Now returns the time of the last tick.
func Now() time.Time {
	return time.Unix(0, now.Load())
}

// Since returns the time elapsed since t, at tick resolution.
func Since(t time.Time) time.Duration {
	return Now().Sub(t)
}
