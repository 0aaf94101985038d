package relay

import (
	"net/http"

	"github.com/pondio/pondrelay/httperr"
	"github.com/pondio/pondrelay/store"
	"github.com/pondio/pondrelay/wire"
)

// handleGetFeed implements GET /feeds/{addr}: public, readers need no PoP.
func (s *Service) handleGetFeed(w http.ResponseWriter, r *http.Request) {
	records, ok := s.getRecords(w, r, store.NSFeed)
	if !ok {
		return
	}
	writeBinary(w, http.StatusOK, (&wire.MessagePage{Messages: records}).Marshal())
}

// handlePutFeed implements PUT /feeds/{addr}: only the addressee (holder of
// its PoP) may curate their own feed.
func (s *Service) handlePutFeed(w http.ResponseWriter, r *http.Request) {
	addr, err := addrParam(r)
	if err != nil {
		httperr.Write(w, err)
		return
	}
	if !s.requirePoP(w, r, addr) {
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
	if err := s.ingestMessages(r.Context(), store.NSFeed, set); err != nil {
		httperr.Write(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleDeleteFeed implements DELETE /feeds/{addr}: same gating as the PUT.
func (s *Service) handleDeleteFeed(w http.ResponseWriter, r *http.Request) {
	addr, err := addrParam(r)
	if err != nil {
		httperr.Write(w, err)
		return
	}
	if !s.requirePoP(w, r, addr) {
		return
	}
	if !s.deleteRecords(w, r, store.NSFeed) {
		return
	}
	w.WriteHeader(http.StatusOK)
}
