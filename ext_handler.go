package sfs

import (
	"github.com/pior/sfs/object"
	"github.com/pior/sfs/wire"
	"github.com/rs/zerolog"
)

// extHandler turns server extension replies into ExtensionResponseEvent,
// whatever format the extension answered in.
type extHandler struct {
	c      *Client
	logger zerolog.Logger
}

var _ MessageHandler = (*extHandler)(nil)

func newExtHandler(c *Client) *extHandler {
	return &extHandler{
		c:      c,
		logger: c.baseLogger.With().Str("component", "xt").Logger(),
	}
}

func (h *extHandler) HandleMessage(env *wire.Envelope) {
	switch env.Format {
	case wire.FormatXML:
		if env.Action != "xtRes" {
			h.logger.Debug().Str("action", env.Action).Msg("unknown xt action")
			return
		}
		obj, err := object.Decode(env.Body.Text())
		if err != nil {
			h.logger.Warn().Err(err).Msg("dropping undecodable extension response")
			return
		}
		h.c.dispatch(&ExtensionResponseEvent{Format: wire.FormatXML, Object: obj})

	case wire.FormatJSON:
		h.c.dispatch(&ExtensionResponseEvent{Format: wire.FormatJSON, Object: object.FromAny(env.JSON["o"])})

	case wire.FormatString:
		h.c.dispatch(&ExtensionResponseEvent{Format: wire.FormatString, Fields: env.Fields})
	}
}
