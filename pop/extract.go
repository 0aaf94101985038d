package pop

import (
	"net/http"
	"strings"
)

const bearerPrefix = "POP "

// Extract pulls a PoP token from a request, accepting either an
// `Authorization: POP <token>` header or a `?access_token=POP <token>`
// query parameter (§4.3).
func Extract(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := stripBearer(h); ok {
			return token, true
		}
	}
	if q := r.URL.Query().Get("access_token"); q != "" {
		if token, ok := stripBearer(q); ok {
			return token, true
		}
	}
	return "", false
}

func stripBearer(v string) (string, bool) {
	if !strings.HasPrefix(v, bearerPrefix) {
		return "", false
	}
	token := strings.TrimPrefix(v, bearerPrefix)
	if token == "" {
		return "", false
	}
	return token, true
}
