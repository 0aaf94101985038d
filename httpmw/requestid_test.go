package httpmw

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRequestIDMintsAndEchoesHeader(t *testing.T) {
	r := mux.NewRouter()
	r.Use(RequestID(zerolog.Nop()))
	r.HandleFunc("/ping", func(w http.ResponseWriter, req *http.Request) {
		require.NotEmpty(t, RequestIDFromContext(req.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestRequestIDReusesCallerSuppliedID(t *testing.T) {
	r := mux.NewRouter()
	r.Use(RequestID(zerolog.Nop()))
	r.HandleFunc("/ping", func(w http.ResponseWriter, req *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "caller-supplied-id")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, "caller-supplied-id", rec.Header().Get(RequestIDHeader))
}
