package relay

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pondio/pondrelay/address"
	"github.com/pondio/pondrelay/httperr"
)

// nsProfile namespaces profile rows; messages and feeds use store.NSMessage
// and store.NSFeed respectively.
const nsProfile byte = 'p'

// readLimited reads r's body up to limit+1 bytes, rejecting it with a 413
// if it would exceed limit.
func readLimited(r *http.Request, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, httperr.Wrap(http.StatusInternalServerError, "failed to read body", err)
	}
	if int64(len(body)) > limit {
		return nil, httperr.TooLarge("request body too large")
	}
	return body, nil
}

// addrParam decodes the {addr} path variable into its 20-byte body.
func addrParam(r *http.Request) ([]byte, error) {
	s := mux.Vars(r)["addr"]
	body, err := address.Decode(s)
	if err != nil {
		return nil, httperr.BadRequest("invalid address")
	}
	return body, nil
}

func writeBinary(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
