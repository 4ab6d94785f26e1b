package sfs

import (
	"errors"

	"github.com/pior/sfs/internal/coarsetime"
	"github.com/pior/sfs/wire"
)

// MessageHandler processes decoded messages for one handler key ("sys",
// "xt"). Calls are serialized by the client.
type MessageHandler interface {
	HandleMessage(env *wire.Envelope)
}

// handleMessage is the entry point of both transports.
func (c *Client) handleMessage(raw string) {
	c.stats.recordReceive()
	c.lastMessage.Store(coarsetime.Now().UnixNano())
	c.logger.Debug().Str("msg", raw).Msg("receive")

	env, err := wire.Decode(raw, byte(c.separator.Load()))
	if err != nil {
		if errors.Is(err, wire.ErrUnknownFormat) || errors.Is(err, wire.ErrEmptyMessage) {
			c.stats.recordDrop()
			c.logger.Debug().Str("msg", raw).Msg("ignoring message of unknown format")
			return
		}
		c.stats.recordParseError()
		c.logger.Warn().Err(err).Str("msg", raw).Msg("dropping malformed message")
		return
	}

	c.route(env)
}

func (c *Client) route(env *wire.Envelope) {
	h, ok := c.handlers[env.Handler]
	if !ok {
		c.stats.recordDrop()
		c.logger.Debug().Str("handler", env.Handler).Msg("no handler for message")
		return
	}

	c.inbound.Lock()
	defer c.inbound.Unlock()
	h.HandleMessage(env)
}
