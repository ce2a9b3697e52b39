package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ShlokMathur/planet-s-trajectory/internal/elements"
	"github.com/ShlokMathur/planet-s-trajectory/internal/propagation"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ErrorStatus maps a domain error to an HTTP status and a stable code.
func ErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, propagation.ErrInvalidDateFormat):
		return http.StatusBadRequest, "invalid_date_format"
	case errors.Is(err, propagation.ErrUnsupportedMode):
		return http.StatusBadRequest, "unsupported_mode"
	case errors.Is(err, propagation.ErrInvalidRange):
		return http.StatusBadRequest, "invalid_range"
	case errors.Is(err, propagation.ErrTooManyFrames):
		return http.StatusBadRequest, "too_many_frames"
	case errors.Is(err, propagation.ErrUnknownBody):
		return http.StatusNotFound, "unknown_body"
	case errors.Is(err, propagation.ErrNoTable):
		return http.StatusServiceUnavailable, "no_table"
	case errors.Is(err, elements.ErrNoSource):
		return http.StatusServiceUnavailable, "no_source"
	case errors.Is(err, propagation.ErrMissingReference):
		return http.StatusUnprocessableEntity, "missing_reference"
	case errors.Is(err, propagation.ErrNonFinitePosition):
		return http.StatusUnprocessableEntity, "non_finite_position"
	case errors.Is(err, elements.ErrMissingField), errors.Is(err, elements.ErrMalformedRow):
		return http.StatusUnprocessableEntity, "invalid_table"
	}
	return http.StatusInternalServerError, "internal"
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes err as an ErrorBody with its mapped status.
func WriteError(w http.ResponseWriter, err error) {
	status, code := ErrorStatus(err)
	WriteJSON(w, status, ErrorBody{Error: err.Error(), Code: code})
}

// BadRequest writes a 400 for malformed query parameters.
func BadRequest(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusBadRequest, ErrorBody{Error: msg, Code: "bad_request"})
}
