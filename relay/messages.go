package relay

import (
	"net/http"

	"github.com/pondio/pondrelay/httperr"
	"github.com/pondio/pondrelay/store"
	"github.com/pondio/pondrelay/wire"
)

// handleGetMessages implements GET /messages/{addr} (protected).
func (s *Service) handleGetMessages(w http.ResponseWriter, r *http.Request) {
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
	writeBinary(w, http.StatusOK, (&wire.MessagePage{Messages: records}).Marshal())
}

// handlePutMessages implements PUT /messages/{addr} (open, sender pays by
// stamp — §4.8).
func (s *Service) handlePutMessages(w http.ResponseWriter, r *http.Request) {
	if _, err := addrParam(r); err != nil {
		httperr.Write(w, err)
		return
	}
	body, rerr := readLimited(r, int64(s.cfg.Limits.MessageSize))
	if rerr != nil {
		httperr.Write(w, rerr)
		return
	}
	set, derr := wire.UnmarshalMessageSet(body)
	if derr != nil {
		httperr.Write(w, httperr.BadRequest("malformed message set"))
		return
	}
	if err := s.ingestMessages(r.Context(), store.NSMessage, set); err != nil {
		httperr.Write(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleDeleteMessages implements DELETE /messages/{addr} (protected).
func (s *Service) handleDeleteMessages(w http.ResponseWriter, r *http.Request) {
	addr, err := addrParam(r)
	if err != nil {
		httperr.Write(w, err)
		return
	}
	if !s.requirePoP(w, r, addr) {
		return
	}
	if !s.deleteRecords(w, r, store.NSMessage) {
		return
	}
	w.WriteHeader(http.StatusOK)
}
