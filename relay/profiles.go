package relay

import (
	"net/http"

	"github.com/pondio/pondrelay/auth"
	"github.com/pondio/pondrelay/httperr"
	"github.com/pondio/pondrelay/store"
	"github.com/pondio/pondrelay/wire"
)

// handleGetProfile implements GET /profiles/{addr}: unprotected, returns
// the raw stored AuthWrapper blob.
func (s *Service) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	addr, err := addrParam(r)
	if err != nil {
		httperr.Write(w, err)
		return
	}
	val, err := s.store.GetByDigest(addr, nsProfile, profileDigestKey(addr))
	if err != nil {
		if err == store.ErrNotFound {
			httperr.Write(w, httperr.NotFound("no profile stored for this address"))
			return
		}
		httperr.Write(w, httperr.Internal(err))
		return
	}
	writeBinary(w, http.StatusOK, val)
}

// handlePutProfile implements PUT /profiles/{addr}: parses and verifies the
// AuthWrapper, gates on the address's PoP, and stores the canonical
// re-encoded blob under namespace 'p'.
func (s *Service) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	addr, err := addrParam(r)
	if err != nil {
		httperr.Write(w, err)
		return
	}

	body, rerr := readLimited(r, int64(s.cfg.Limits.MessageSize))
	if rerr != nil {
		httperr.Write(w, rerr)
		return
	}
	wrapper, derr := wire.UnmarshalAuthWrapper(body)
	if derr != nil {
		httperr.Write(w, httperr.BadRequest("malformed auth wrapper"))
		return
	}
	parsed, perr := auth.Parse(wrapper)
	if perr != nil {
		httperr.Write(w, httperr.Wrap(http.StatusBadRequest, "invalid auth wrapper", perr))
		return
	}
	if verr := auth.Verify(parsed); verr != nil {
		httperr.Write(w, httperr.Wrap(http.StatusBadRequest, "signature verification failed", verr))
		return
	}

	if !s.requirePoP(w, r, addr) {
		return
	}

	wrapper.PayloadDigest = parsed.PayloadDigest
	canonical := wrapper.Marshal()
	// Every PUT lands at the same fixed (timestamp, digest) pair, so a
	// second write is a byte-for-byte overwrite of the first rather than a
	// new row: there is exactly one profile slot per address.
	if err := s.store.Push(addr, nsProfile, 0, canonical, profileDigestKey(addr)); err != nil {
		httperr.Write(w, httperr.Internal(err))
		return
	}
	w.WriteHeader(http.StatusOK)
}

// profileDigestKey is the fixed digest this namespace's single row is kept
// under: there is exactly one profile per address, so the store's digest
// index is repurposed as a plain single-slot lookup rather than a real
// payload digest.
func profileDigestKey(addr []byte) []byte {
	key := make([]byte, 32)
	copy(key, addr)
	return key
}
