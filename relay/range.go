package relay

import (
	"encoding/hex"
	"net/http"

	"github.com/pondio/pondrelay/httperr"
	"github.com/pondio/pondrelay/store"
)

// parseRangeQuery implements §6's query-parameter rules for range reads:
// start_time XOR start_digest (one required), end_time XOR end_digest
// (optional, defaults to "through the end of the namespace").
func parseRangeQuery(r *http.Request) (start, end store.Bound, err error) {
	q := r.URL.Query()

	if q.Get("start_time") == "" && q.Get("start_digest") == "" {
		return store.Bound{}, store.Bound{}, httperr.BadRequest("missing start bound")
	}
	start, err = parseBound(q.Get("start_time"), q.Get("start_digest"))
	if err != nil {
		return store.Bound{}, store.Bound{}, err
	}

	if q.Get("end_time") == "" && q.Get("end_digest") == "" {
		return start, store.TimestampBound(store.MaxTimestamp), nil
	}
	end, err = parseBound(q.Get("end_time"), q.Get("end_digest"))
	if err != nil {
		return store.Bound{}, store.Bound{}, err
	}
	return start, end, nil
}

func parseBound(timeVal, digestVal string) (store.Bound, error) {
	if timeVal != "" && digestVal != "" {
		return store.Bound{}, httperr.BadRequest("both time and digest bound given")
	}
	if digestVal != "" {
		digest, err := hex.DecodeString(digestVal)
		if err != nil {
			return store.Bound{}, httperr.BadRequest("invalid bound digest hex")
		}
		return store.DigestBound(digest), nil
	}
	if timeVal == "" {
		return store.Bound{}, nil
	}
	ts, err := parseUint64(timeVal)
	if err != nil {
		return store.Bound{}, httperr.BadRequest("invalid bound timestamp")
	}
	return store.TimestampBound(ts), nil
}

func parseUint64(s string) (uint64, error) {
	var v uint64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, httperr.BadRequest("invalid integer")
		}
		v = v*10 + uint64(c-'0')
	}
	return v, nil
}
