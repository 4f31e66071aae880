package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"memelend/core/state"
	"memelend/services/lendingd/protocol"
)

const maxBodyBytes = 1 << 20

// Problem is the error body of every failed request.
type Problem struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Code      int    `json:"code,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, kind, msg string, code int) {
	writeJSON(w, status, Problem{
		Error:     kind,
		Message:   msg,
		Code:      code,
		RequestID: chimw.GetReqID(r.Context()),
	})
}

// writeEngineError maps protocol error codes onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	code := protocol.Code(err)
	status := http.StatusUnprocessableEntity
	kind := "rejected"
	switch {
	case code == 6037 || code == 6041 || code == 6003 || errors.Is(err, protocol.ErrPoolNotFound):
		status, kind = http.StatusNotFound, "not_found"
	case code == 6000:
		status, kind = http.StatusServiceUnavailable, "paused"
	case code == 6001:
		status, kind = http.StatusForbidden, "unauthorized"
	case code == 6060 || code == 6061:
		status, kind = http.StatusConflict, "not_ready"
	case code != 0, isLedgerError(err):
	default:
		status, kind = http.StatusInternalServerError, "internal"
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeProblem(w, r, status, kind, msg, code)
}

func isLedgerError(err error) bool {
	for _, target := range []error{
		state.ErrInsufficientLamports,
		state.ErrInsufficientTokens,
		state.ErrTokenAuthority,
		state.ErrTokenAccountExists,
		state.ErrTokenAccountMissing,
		state.ErrTokenAccountNotEmpty,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
