package relay

import (
	"net/http"

	"github.com/pondio/pondrelay/httperr"
	"github.com/pondio/pondrelay/store"
	"github.com/pondio/pondrelay/wire"
)

// handleGetPayloads implements GET /payloads/{addr} (protected): the same
// selection logic as messages, but strips message framing down to just the
// server-assigned receive time and the opaque payload.
func (s *Service) handleGetPayloads(w http.ResponseWriter, r *http.Request) {
	addr, err := addrParam(r)
	if err != nil {
		httperr.Write(w, err)
		return
	}
	if !s.requirePoP(w, r, addr) {
		return
	}
	records, ok := s.getRecords(w, r, store.NSMessage)
	if !ok {
		return
	}

	page := &wire.PayloadPage{Items: make([]*wire.TimedPayload, 0, len(records))}
	for _, raw := range records {
		m, derr := wire.UnmarshalMessage(raw)
		if derr != nil {
			httperr.Write(w, httperr.Internal(derr))
			return
		}
		page.Items = append(page.Items, &wire.TimedPayload{ServerTime: m.ReceivedTime, Payload: m.Payload})
	}
	writeBinary(w, http.StatusOK, page.Marshal())
}
