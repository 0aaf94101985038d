package relay

import (
	"net/http"

	"github.com/pondio/pondrelay/bus"
	"github.com/pondio/pondrelay/httperr"
)

// handleWSMessages implements GET /ws/messages/{addr} (protected): a live
// feed of messages addressed to addr.
func (s *Service) handleWSMessages(w http.ResponseWriter, r *http.Request) {
	addr, err := addrParam(r)
	if err != nil {
		httperr.Write(w, err)
		return
	}
	if !s.requirePoP(w, r, addr) {
		return
	}
	if err := bus.ServeSubscriber(s.bus, w, r, addr); err != nil {
		s.logger.Debug().Err(err).Msg("websocket upgrade failed")
	}
}

// handleWSFeeds implements GET /ws/feeds/{addr}: public, same as the feed's
// GET.
func (s *Service) handleWSFeeds(w http.ResponseWriter, r *http.Request) {
	addr, err := addrParam(r)
	if err != nil {
		httperr.Write(w, err)
		return
	}
	if err := bus.ServeSubscriber(s.bus, w, r, addr); err != nil {
		s.logger.Debug().Err(err).Msg("websocket upgrade failed")
	}
}
