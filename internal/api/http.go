package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"tola-ledger/internal/ledger"
)

const jsonContentType = "application/json; charset=utf-8"

// HandlerFunc is an http.HandlerFunc that returns an error. The wrapper maps
// the error to the taxonomy code and HTTP status and writes the error body.
type HandlerFunc func(http.ResponseWriter, *http.Request) error

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// httpError carries an explicit status and code for errors that do not come
// out of the ledger taxonomy, like malformed request bodies.
type httpError struct {
	status int
	code   string
	cause  error
}

func (e *httpError) Error() string { return e.cause.Error() }

func badRequest(cause error) error {
	return &httpError{status: http.StatusBadRequest, code: "BadRequest", cause: cause}
}

// statusFor maps a taxonomy code to its HTTP status.
func statusFor(code string) int {
	switch code {
	case "InvalidAmount", "InvalidAddress":
		return http.StatusBadRequest
	case "Unauthorized":
		return http.StatusUnauthorized
	case "AccountNotFound", "TransactionNotFound":
		return http.StatusNotFound
	case "InsufficientBalance", "InsufficientStaked", "NotPending":
		return http.StatusConflict
	case "Contention":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// wrap converts a HandlerFunc to an http.HandlerFunc with uniform error
// rendering. Contention responses carry Retry-After since the command had no
// effect and retrying is safe.
func wrap(logger *zap.Logger, f HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := f(w, r)
		if err == nil {
			return
		}

		status := 0
		code := ""
		var he *httpError
		if errors.As(err, &he) {
			status, code = he.status, he.code
		} else {
			code = ledger.ErrorCode(err)
			status = statusFor(code)
		}

		if status == http.StatusServiceUnavailable {
			w.Header().Set("Retry-After", "1")
		}
		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Error(err))
		}

		w.Header().Set("Content-Type", jsonContentType)
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(errorResponse{Error: errorBody{Code: code, Message: err.Error()}})
	}
}

// parseJSON decodes a request body in strict mode.
func parseJSON(r io.Reader, v interface{}) error {
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// writeJSON responds with obj in JSON encoding.
func writeJSON(w http.ResponseWriter, obj interface{}) error {
	w.Header().Set("Content-Type", jsonContentType)
	return json.NewEncoder(w).Encode(obj)
}
