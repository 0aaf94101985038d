package keyserver

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pondio/pondrelay/address"
	"github.com/pondio/pondrelay/httperr"
)

// nsMeta is the single namespace the meta store uses: one row per address,
// keyed by the address body itself (a profile has no timestamp axis).
const nsMeta byte = 'k'

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
