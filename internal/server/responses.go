package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/simonvc/contaledger/internal/ledger"
	"github.com/simonvc/contaledger/internal/log"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	var ve *ledger.ValidationError
	if errors.As(err, &ve) {
		resp.Field = ve.Field
	}
	writeJSON(w, mapError(err), resp)
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func mapError(err error) int {
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, ledger.ErrEntryNotFound),
		errors.Is(err, ledger.ErrPartyNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrDuplicateAccount),
		errors.Is(err, ledger.ErrAlreadyVoided),
		errors.Is(err, ledger.ErrConcurrencyConflict):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrValidation),
		errors.Is(err, ledger.ErrInvalidTenant):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrUnbalancedEntry),
		errors.Is(err, ledger.ErrUnbalancedGeneratedEntry),
		errors.Is(err, ledger.ErrNonPostableAccount),
		errors.Is(err, ledger.ErrClosedPeriod),
		errors.Is(err, ledger.ErrMissingDefaultAccount),
		errors.Is(err, ledger.ErrSystemAccountImmutable),
		errors.Is(err, ledger.ErrAccountHasMovements):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

// fail logs unexpected errors before writing them.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	if mapError(err) == http.StatusInternalServerError {
		log.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, err)
}

func queryDate(r *http.Request, name string) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(ledger.DateLayout, v)
	if err != nil {
		return time.Time{}, &ledger.ValidationError{Field: name, Reason: fmt.Sprintf("%q is not a YYYY-MM-DD date", v)}
	}
	return t, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &ledger.ValidationError{Field: name, Reason: fmt.Sprintf("%q is not a number", v)}
	}
	return n, nil
}

func queryBool(r *http.Request, name string) bool {
	v := r.URL.Query().Get(name)
	return v == "true" || v == "1"
}

func pathInt(v, name string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &ledger.ValidationError{Field: name, Reason: fmt.Sprintf("%q is not a number", v)}
	}
	return n, nil
}
