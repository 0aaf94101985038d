// Package httperr maps internal error kinds to the HTTP status taxonomy of
// §7: it never serializes an underlying error for a 5xx response, and 4xx
// bodies carry only a short human message.
package httperr

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Error is a classified handler failure: Status is the HTTP status to
// return, Message is the short 4xx-safe string, and Cause (if any) is
// logged but never written to the response body.
type Error struct {
	Status  int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func New(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

func Wrap(status int, message string, cause error) *Error {
	return &Error{Status: status, Message: message, Cause: cause}
}

func BadRequest(message string) *Error { return New(http.StatusBadRequest, message) }
func NotFound(message string) *Error   { return New(http.StatusNotFound, message) }
func TooLarge(message string) *Error   { return New(http.StatusRequestEntityTooLarge, message) }
func NotImplemented(message string) *Error {
	return New(http.StatusNotImplemented, message)
}

func Internal(cause error) *Error {
	return Wrap(http.StatusInternalServerError, "internal error", cause)
}

type body struct {
	Error string `json:"error"`
}

// Write renders err to w. 5xx responses carry an empty body; everything
// else carries {"error": message}.
func Write(w http.ResponseWriter, err error) {
	e, ok := err.(*Error)
	if !ok {
		e = Internal(err)
	}
	if e.Cause != nil {
		log.Error().Err(e.Cause).Int("status", e.Status).Msg(e.Message)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	if e.Status >= 500 {
		return
	}
	_ = json.NewEncoder(w).Encode(body{Error: e.Message})
}
