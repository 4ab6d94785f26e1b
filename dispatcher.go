package sfs

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// DispatchMode selects how events reach the application.
type DispatchMode int

const (
	// DispatchQueued appends events to a FIFO that the application drains
	// from its own goroutine with ProcessEventQueue or ProcessSingleEvent.
	DispatchQueued DispatchMode = iota

	// DispatchImmediate calls handlers synchronously on the goroutine that
	// produced the event: the transport reader, the tunnel poller, or the
	// caller of a request method.
	DispatchImmediate
)

func (m DispatchMode) String() string {
	switch m {
	case DispatchQueued:
		return "queued"
	case DispatchImmediate:
		return "immediate"
	}
	return fmt.Sprintf("DispatchMode(%d)", int(m))
}

// dispatcher funnels events to the registered handlers. The queue is the
// only structure shared between producers and the application goroutine.
type dispatcher struct {
	mode   DispatchMode
	logger zerolog.Logger
	stats  *clientStatsCollector

	queueMu sync.Mutex
	queue   []Event

	handlersMu sync.RWMutex
	handlers   map[EventType]func(Event)
}

func newDispatcher(mode DispatchMode, logger zerolog.Logger, stats *clientStatsCollector) *dispatcher {
	return &dispatcher{
		mode:     mode,
		logger:   logger,
		stats:    stats,
		handlers: make(map[EventType]func(Event)),
	}
}

func (d *dispatcher) handle(t EventType, fn func(Event)) {
	d.handlersMu.Lock()
	defer d.handlersMu.Unlock()
	if fn == nil {
		delete(d.handlers, t)
		return
	}
	d.handlers[t] = fn
}

func (d *dispatcher) dispatch(evt Event) {
	if d.mode == DispatchImmediate {
		d.deliver(evt)
		return
	}

	d.queueMu.Lock()
	d.queue = append(d.queue, evt)
	d.queueMu.Unlock()
}

// processAll drains the queue as it is now. Events queued by handlers
// during the drain are left for the next call.
func (d *dispatcher) processAll() int {
	if d.mode != DispatchQueued {
		return 0
	}

	d.queueMu.Lock()
	events := d.queue
	d.queue = nil
	d.queueMu.Unlock()

	for _, evt := range events {
		d.deliver(evt)
	}
	return len(events)
}

func (d *dispatcher) processOne() bool {
	if d.mode != DispatchQueued {
		return false
	}

	d.queueMu.Lock()
	if len(d.queue) == 0 {
		d.queueMu.Unlock()
		return false
	}
	evt := d.queue[0]
	d.queue[0] = nil
	d.queue = d.queue[1:]
	d.queueMu.Unlock()

	d.deliver(evt)
	return true
}

func (d *dispatcher) len() int {
	d.queueMu.Lock()
	defer d.queueMu.Unlock()
	return len(d.queue)
}

func (d *dispatcher) deliver(evt Event) {
	d.handlersMu.RLock()
	fn := d.handlers[evt.Type()]
	d.handlersMu.RUnlock()

	if fn == nil {
		d.stats.recordDispatch(false)
		d.logger.Error().Str("event", string(evt.Type())).Msg("no handler registered for event")
		return
	}
	d.stats.recordDispatch(true)

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().
				Str("event", string(evt.Type())).
				Interface("panic", r).
				Msg("event handler panicked")
		}
	}()
	fn(evt)
}
